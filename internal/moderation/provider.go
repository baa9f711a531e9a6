package moderation

import "context"

// CelebrityMatch is a raw identity hit from the vision provider, before
// threshold filtering.
type CelebrityMatch struct {
	Name       string
	Confidence float64
	ProviderID string
	URLs       []string
}

// Label is a raw content-policy label from the vision provider.
type Label struct {
	Name           string
	ParentCategory string
	Confidence     float64
	TaxonomyLevel  int
}

// Face is one detected face with the provider's estimated age range and
// its detection confidence.
type Face struct {
	AgeLow     int
	AgeHigh    int
	Confidence float64
}

// Provider is the opaque scored-signal source behind the screening pipeline.
// Implementations must accept JPEG payloads; the normalizer transcodes
// everything it receives before any call is made.
type Provider interface {
	RecognizeCelebrities(ctx context.Context, image []byte) ([]CelebrityMatch, error)
	DetectLabels(ctx context.Context, image []byte, minConfidence float64) ([]Label, error)
	DetectFaces(ctx context.Context, image []byte) ([]Face, error)
}
