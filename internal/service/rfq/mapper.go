package rfq

import "rfqgateway/internal/model"

// MapCard turns a parsed row into the card view model. Missing fields degrade to
// defaults; a nil row maps to nil.
func MapCard(row *model.CardRow) *model.Card {
	if row == nil {
		return nil
	}

	card := &model.Card{
		ID:           row.ID,
		PublicID:     row.PublicID,
		SellerRfqID:  row.SellerRfqID,
		Title:        firstNonEmpty(row.Title, row.PublicID, "RFQ"),
		Status:       firstNonEmpty(row.Status, model.RFQStatusActive),
		PostedAt:     row.PostedAt,
		CategoryPath: firstNonEmpty(row.FirstCategoryPath, row.CategoryPath),
		ItemsPreview: []string{},
		ItemsSummary: []model.ItemSummary{},
	}

	if row.QuotationsCount != nil {
		card.QuotationsCount = *row.QuotationsCount
	}
	switch {
	case row.ItemsCount != nil:
		card.ItemsCount = *row.ItemsCount
	case row.ItemsTotalCount != nil:
		card.ItemsCount = *row.ItemsTotalCount
	}
	if row.ItemsPreview != nil {
		card.ItemsPreview = row.ItemsPreview
	}
	if row.ItemsSummary != nil {
		card.ItemsSummary = row.ItemsSummary
	}
	card.ItemsTotalCount = row.ItemsTotalCount
	card.ItemsOverflowCount = row.ItemsOverflowCount

	if row.City != nil || row.State != nil || row.Country != nil {
		card.CompanyLocation = &model.CompanyLocation{
			City:    row.City,
			State:   row.State,
			Country: row.Country,
		}
	}

	return card
}

// MapCards maps an enriched page, skipping nil rows.
func MapCards(rows []*model.CardRow) []*model.Card {
	cards := make([]*model.Card, 0, len(rows))
	for _, r := range rows {
		if card := MapCard(r); card != nil {
			cards = append(cards, card)
		}
	}
	return cards
}

// ParseRows parses a decoded page of view rows.
func ParseRows(raw []map[string]any) []*model.CardRow {
	rows := make([]*model.CardRow, 0, len(raw))
	for _, r := range raw {
		if row := ParseCardRow(r); row != nil {
			rows = append(rows, row)
		}
	}
	return rows
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
