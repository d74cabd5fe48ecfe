package model

// RFQ statuses as stored in the rfqs table.
const (
	RFQStatusActive   = "active"
	RFQStatusClosed   = "closed"
	RFQStatusDraft    = "draft"
	RFQStatusPaused   = "paused"
	RFQStatusInactive = "inactive"
)

// CardRow is one row of the RFQ card view, parsed into a single canonical shape.
// Optional fields are nil when the view did not provide them.
type CardRow struct {
	ID                string
	PublicID          string
	SellerRfqID       string
	Title             string
	Status            string
	PostedAt          string
	FirstCategoryPath string
	CategoryPath      string
	BuyerCompanyID    string

	QuotationsCount *int
	ItemsCount      *int
	ItemsPreview    []string
	ItemsSummary    []ItemSummary

	ItemsTotalCount    *int
	ItemsOverflowCount *int

	City    *string
	State   *string
	Country *string
}

// ItemSummary is the denormalized preview of one RFQ line item.
type ItemSummary struct {
	Name           string            `json:"name"`
	Quantity       *float64          `json:"quantity"`
	CategoryPath   string            `json:"categoryPath"`
	Specifications map[string]string `json:"specifications"`
}

type CompanyLocation struct {
	City    *string `json:"city"`
	State   *string `json:"state"`
	Country *string `json:"country"`
}

// Card is the view model returned to the SPA.
type Card struct {
	ID                 string           `json:"id"`
	PublicID           string           `json:"publicId,omitempty"`
	SellerRfqID        string           `json:"sellerRfqId,omitempty"`
	Title              string           `json:"title"`
	Status             string           `json:"status"`
	PostedAt           string           `json:"postedAt,omitempty"`
	CategoryPath       string           `json:"categoryPath"`
	QuotationsCount    int              `json:"quotationsCount"`
	ItemsCount         int              `json:"itemsCount"`
	ItemsPreview       []string         `json:"itemsPreview"`
	ItemsSummary       []ItemSummary    `json:"itemsSummary"`
	ItemsTotalCount    *int             `json:"itemsTotalCount,omitempty"`
	ItemsOverflowCount *int             `json:"itemsOverflowCount,omitempty"`
	CompanyLocation    *CompanyLocation `json:"companyLocation,omitempty"`
}
