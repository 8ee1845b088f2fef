package port

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"policonv/internal/canonical"
	"policonv/internal/domain"
)

// SnapshotRepository persists the heavyweight per-job artifacts that do not
// belong in the database: extracted pages, canonical bundles, and mapping
// traces.
type SnapshotRepository interface {
	SavePages(ctx context.Context, jobID uuid.UUID, pages []domain.PageExtraction) error
	LoadPages(ctx context.Context, jobID uuid.UUID) ([]domain.PageExtraction, error)
	SaveBundle(ctx context.Context, jobID uuid.UUID, bundle *canonical.Bundle) error
	LoadBundle(ctx context.Context, jobID uuid.UUID) (*canonical.Bundle, error)
	SaveTrace(ctx context.Context, jobID uuid.UUID, trace json.RawMessage) error
}
