package rfq

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"rfqgateway/internal/model"
)

// ParseCardRow resolves the snake_case and camelCase variants the card view has shipped
// over time into one CardRow. A nil row yields nil.
func ParseCardRow(raw map[string]any) *model.CardRow {
	if raw == nil {
		return nil
	}

	row := &model.CardRow{
		ID:                str(pick(raw, "id")),
		PublicID:          str(pick(raw, "public_id", "publicId")),
		SellerRfqID:       str(pick(raw, "seller_rfq_id", "sellerRfqId")),
		Title:             str(pick(raw, "title")),
		Status:            str(pick(raw, "status")),
		PostedAt:          str(pick(raw, "posted_at", "postedAt", "created_at", "createdAt")),
		FirstCategoryPath: str(pick(raw, "first_category_path", "firstCategoryPath")),
		CategoryPath:      str(pick(raw, "category_path", "categoryPath")),
		BuyerCompanyID:    str(pick(raw, "buyer_company_id", "buyerCompanyId")),

		QuotationsCount: intPtr(pick(raw, "quotations_count", "quotes_count", "quotationsCount", "quotesCount")),
		ItemsCount:      intPtr(pick(raw, "items_count", "itemsCount")),
		ItemsPreview:    strList(pick(raw, "items_preview", "itemsPreview")),
		ItemsSummary:    summaryList(pick(raw, "items_summary", "itemsSummary")),

		ItemsTotalCount:    intPtr(pick(raw, "items_total_count", "itemsTotalCount")),
		ItemsOverflowCount: intPtr(pick(raw, "items_overflow_count", "itemsOverflowCount")),
	}

	row.City = strPtr(pick(raw, "city"))
	row.State = strPtr(pick(raw, "state"))
	row.Country = strPtr(pick(raw, "country"))
	if loc, ok := pick(raw, "company_location", "companyLocation").(map[string]any); ok {
		if row.City == nil {
			row.City = strPtr(loc["city"])
		}
		if row.State == nil {
			row.State = strPtr(loc["state"])
		}
		if row.Country == nil {
			row.Country = strPtr(loc["country"])
		}
	}

	return row
}

// pick returns the first non-nil value among keys.
func pick(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func strPtr(v any) *string {
	if v == nil {
		return nil
	}
	s := str(v)
	return &s
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	default:
		return 0, false
	}
}

func intPtr(v any) *int {
	f, ok := number(v)
	if !ok {
		return nil
	}
	n := int(f)
	return &n
}

func floatPtr(v any) *float64 {
	f, ok := number(v)
	if !ok {
		return nil
	}
	return &f
}

func strList(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func summaryList(v any) []model.ItemSummary {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]model.ItemSummary, 0, len(arr))
	for _, e := range arr {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		item := model.ItemSummary{
			Name:           str(pick(m, "name")),
			Quantity:       floatPtr(m["quantity"]),
			CategoryPath:   str(pick(m, "category_path", "categoryPath")),
			Specifications: map[string]string{},
		}
		if specs, ok := pick(m, "specifications", "specs").(map[string]any); ok {
			for k, sv := range specs {
				item.Specifications[k] = str(sv)
			}
		}
		out = append(out, item)
	}
	return out
}
