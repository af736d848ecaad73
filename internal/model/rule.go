package model

// ReferenceRule is a hand-authored deterministic pattern for zero-cost
// classification. A rule fires when any merchant fragment or at least
// one keyword appears in the transaction text; its confidence scales
// with the fraction of keywords matched.
type ReferenceRule struct {
	Name               string   `json:"name"`
	Category           string   `json:"category"`
	TaxCategory        string   `json:"tax_category"`
	Keywords           []string `json:"keywords"`
	MerchantFragments  []string `json:"merchant_fragments,omitempty"`
	Priority           int      `json:"priority"`
	BaseConfidence     float64  `json:"base_confidence"`
	BusinessUsePercent int      `json:"business_use_percent"`
	IsTaxDeductible    bool     `json:"is_tax_deductible"`
	IsActive           bool     `json:"is_active"`
}
