package moderation

// IdentityMatch is one celebrity/identity hit returned by the provider.
type IdentityMatch struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	ProviderID string  `json:"providerId"`
}

// ContentLabel is one content-policy label returned by the provider.
type ContentLabel struct {
	Name           string  `json:"name"`
	ParentCategory string  `json:"parentCategory"`
	Confidence     float64 `json:"confidence"`
	TaxonomyLevel  int     `json:"taxonomyLevel"`
}

// AgeRange is the provider's estimated age span for one detected face.
type AgeRange struct {
	Low  int `json:"ageLow"`
	High int `json:"ageHigh"`
}

// FaceSummary aggregates face/age findings for one image. Faces below the
// detection-confidence floor are excluded from age reasoning but counted
// for diagnostics.
type FaceSummary struct {
	FacesConsidered           int        `json:"facesConsidered"`
	FacesBelowConfidenceFloor int        `json:"facesBelowConfidenceFloor"`
	MinorFaces                []AgeRange `json:"minorFaces,omitempty"`
}

// Result is the fused moderation decision for one image.
//
// Invariant: ServiceUnavailable implies !Approved. The pipeline fails closed
// when the vision provider is unconfigured.
type Result struct {
	Approved           bool            `json:"approved"`
	HasIdentityMatch   bool            `json:"hasIdentityMatch"`
	HasMinorSignal     bool            `json:"hasMinorSignal"`
	Reasons            []string        `json:"reasons,omitempty"`
	IdentityMatches    []IdentityMatch `json:"identityMatches,omitempty"`
	ContentLabels      []ContentLabel  `json:"contentLabels,omitempty"`
	FaceSummary        FaceSummary     `json:"faceSummary"`
	ServiceUnavailable bool            `json:"serviceUnavailable,omitempty"`

	// Richest confidences observed across all raw matches/labels, used by
	// the upload status assigner. Zero when no signal of that kind was seen.
	MaxIdentityConfidence float64 `json:"maxIdentityConfidence,omitempty"`
	MaxMinorConfidence    float64 `json:"maxMinorConfidence,omitempty"`

	// DetectorError carries the message of an unexpected screening failure.
	// It already appears in Reasons; kept separately so the status assigner
	// can route uncertainty to manual review.
	DetectorError string `json:"detectorError,omitempty"`
}

// Errored reports whether the screening itself failed, as opposed to the
// image being rejected on findings.
func (r Result) Errored() bool {
	return r.DetectorError != ""
}

// BatchResult is the outcome of screening an ordered list of images.
// FailedIndex is the zero-based index of the first non-approved image,
// or -1 when the whole batch passed.
type BatchResult struct {
	Approved    bool      `json:"approved"`
	FailedIndex int       `json:"failedIndex"`
	Reasons     []string  `json:"reasons,omitempty"`
	Results     []*Result `json:"results,omitempty"`
}
