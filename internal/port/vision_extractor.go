package port

import (
	"context"

	"policonv/internal/domain"
)

// ExtractInput carries the data needed for vision extraction.
type ExtractInput struct {
	FileBytes    []byte
	ContentType  string
	DocumentType string
}

// ExtractOutput contains the per-page observations from a vision extractor.
type ExtractOutput struct {
	Pages     []domain.PageExtraction
	ModelUsed string
}

// VisionExtractor abstracts model-based field and table extraction. The
// extractor is a black box; downstream reconciliation treats its output as
// noisy observations.
type VisionExtractor interface {
	ExtractPages(ctx context.Context, input ExtractInput) (*ExtractOutput, error)
}
