package rfq

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapCard_Nil(t *testing.T) {
	assert.Nil(t, MapCard(nil))
	assert.Nil(t, ParseCardRow(nil))
}

func TestMapCard_EmptyRowDefaults(t *testing.T) {
	card := MapCard(ParseCardRow(map[string]any{}))
	require.NotNil(t, card)

	assert.Equal(t, "active", card.Status)
	assert.Equal(t, "RFQ", card.Title)
	assert.Equal(t, 0, card.QuotationsCount)
	assert.Equal(t, []string{}, card.ItemsPreview)
	assert.Empty(t, card.ItemsSummary)
	assert.Nil(t, card.CompanyLocation)

	b, err := json.Marshal(card)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.NotContains(t, out, "companyLocation")
	assert.Equal(t, []any{}, out["itemsPreview"])
	assert.Equal(t, []any{}, out["itemsSummary"])
}

func TestMapCard_FieldFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		raw      map[string]any
		title    string
		category string
		quotes   int
	}{
		{
			name:     "snake case",
			raw:      map[string]any{"id": "r1", "title": "Steel", "first_category_path": "a/b", "category_path": "a", "quotations_count": float64(3)},
			title:    "Steel",
			category: "a/b",
			quotes:   3,
		},
		{
			name:     "public id as title",
			raw:      map[string]any{"id": "r2", "public_id": "RFQ-0002", "categoryPath": "x", "quotes_count": "4"},
			title:    "RFQ-0002",
			category: "x",
			quotes:   4,
		},
		{
			name:     "camel case count",
			raw:      map[string]any{"id": "r3", "quotationsCount": float64(7)},
			title:    "RFQ",
			category: "",
			quotes:   7,
		},
		{
			name:     "non numeric count",
			raw:      map[string]any{"id": "r4", "quotations_count": "many"},
			title:    "RFQ",
			quotes:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := MapCard(ParseCardRow(tt.raw))
			require.NotNil(t, card)
			assert.Equal(t, tt.title, card.Title)
			assert.Equal(t, tt.category, card.CategoryPath)
			assert.Equal(t, tt.quotes, card.QuotationsCount)
		})
	}
}

func TestMapCard_CompanyLocation(t *testing.T) {
	card := MapCard(ParseCardRow(map[string]any{"id": "r1", "city": "Lyon", "state": nil}))
	require.NotNil(t, card.CompanyLocation)
	require.NotNil(t, card.CompanyLocation.City)
	assert.Equal(t, "Lyon", *card.CompanyLocation.City)
	assert.Nil(t, card.CompanyLocation.State)

	nested := MapCard(ParseCardRow(map[string]any{
		"id":               "r2",
		"company_location": map[string]any{"country": "FR"},
	}))
	require.NotNil(t, nested.CompanyLocation)
	assert.Equal(t, "FR", *nested.CompanyLocation.Country)
}

func TestParseCardRow_PrepopulatedLists(t *testing.T) {
	row := ParseCardRow(map[string]any{
		"id":            "r1",
		"items_preview": []any{"Bolts", 12, "Nuts"},
		"itemsSummary": []any{
			map[string]any{"name": "Bolts", "quantity": float64(100), "specifications": map[string]any{"Size": "M8"}},
			"garbage",
		},
	})

	assert.Equal(t, []string{"Bolts", "Nuts"}, row.ItemsPreview)
	require.Len(t, row.ItemsSummary, 1)
	assert.Equal(t, 100.0, *row.ItemsSummary[0].Quantity)
	assert.Equal(t, "M8", row.ItemsSummary[0].Specifications["Size"])
}
