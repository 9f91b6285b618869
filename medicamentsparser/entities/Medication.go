package entities

// Medication is one row of the enriched dataset. Index is the row position,
// which is also the row of its vector in the embedding store.
type Medication struct {
	Index             int      `json:"index"`
	FullName          string   `json:"fullName"`
	ShortName         string   `json:"shortName"`
	ActiveIngredient  string   `json:"activeIngredient"`
	PriceBrousse      *float64 `json:"priceBrousse"`
	PriceNoumea       *float64 `json:"priceNoumea"`
	ApplicationDate   string   `json:"applicationDate"`
	ReimbursementCode *int     `json:"reimbursementCode"`
	ReimbursementRate string   `json:"reimbursementRate"`
	Brand             string   `json:"brand"`
	Dosage            *string  `json:"dosage"`
	Form              string   `json:"form"`
}

// RawMedication is a row of the source dataset before enrichment.
type RawMedication struct {
	FullName          string
	ShortName         string
	ActiveIngredient  string
	PriceBrousse      *float64
	PriceNoumea       *float64
	ApplicationDate   string
	ReimbursementCode *int
}
