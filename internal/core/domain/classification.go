package domain

// QueryVariants are LLM-produced reformulations of the raw question.
type QueryVariants struct {
	Query2Doc string `json:"query2doc"`
	HyDE      string `json:"hyde"`
}

type WeightedKeyword struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// ClassificationResult is the boundary contract produced once per request by
// the upstream LLM classifier. It is immutable and request-scoped.
type ClassificationResult struct {
	IsLegalDomain    bool              `json:"is_legal_domain"`
	Confidence       float64           `json:"confidence"`
	IdentifiedCrimes []string          `json:"identified_crimes,omitempty"`
	Variants         QueryVariants     `json:"query_variants"`
	WeightedKeywords []WeightedKeyword `json:"weighted_keywords,omitempty"`
}
