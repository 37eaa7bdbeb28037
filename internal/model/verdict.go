package model

// Known regions inspected by the visual similarity service
const (
	RegionProfile   = "profile"
	RegionSignature = "sign"
)

// RegionSimilarity holds the two independent similarity decisions for one region
type RegionSimilarity struct {
	Region              string  `json:"region"`
	EmbeddingSimilarity float64 `json:"deep_learning_similarity"` // Learned embedding comparator, [0,1]
	EmbeddingMatch      bool    `json:"deep_learning_match"`
	KeypointSimilarity  float64 `json:"sift_similarity"` // Classical keypoint matcher, [0,1]
	KeypointMatch       bool    `json:"sift_match"`
	Error               string  `json:"error,omitempty"` // Set when the region could not be inspected
}

// Failed reports whether the region carries an error instead of scores
func (r RegionSimilarity) Failed() bool {
	return r.Error != ""
}

// VisualResult is the parsed response of the visual similarity service
type VisualResult struct {
	Regions            []RegionSimilarity `json:"regions"` // Sorted by region name
	TamperingSuspected bool               `json:"tampering_suspected"`
}

// VerdictPolicy selects how match decisions are derived
type VerdictPolicy string

const (
	PolicyService VerdictPolicy = "service" // Surface the service's booleans and flag as-is
	PolicyLocal   VerdictPolicy = "local"   // Re-derive matches from raw scores with local thresholds
)

// TamperVerdict is the aggregated, immutable outcome of the visual stage
type TamperVerdict struct {
	Policy             VerdictPolicy      `json:"policy"`
	Summary            []string           `json:"summary"` // Human-readable bullet points
	Regions            []RegionSimilarity `json:"regions"`
	ServiceFlag        bool               `json:"service_flag"` // tampering_suspected as reported upstream
	TamperingSuspected bool               `json:"tampering_suspected"`
	Notes              []string           `json:"notes,omitempty"` // Local policy disagreements
}
