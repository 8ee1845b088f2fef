// Package snapshot stores per-job artifacts as JSON files on disk. The
// database carries lifecycle state only; extracted pages, canonical bundles,
// and mapping traces live here where reviewers can inspect them directly.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"policonv/internal/canonical"
	"policonv/internal/domain"
	"policonv/internal/port"
)

const (
	pagesFilename  = "pages.json"
	bundleFilename = "bundle.json"
	traceFilename  = "trace.json"
)

type fsRepository struct {
	baseDir string
}

// NewFSRepository creates a filesystem-backed SnapshotRepository rooted at
// baseDir. The directory is created on first write.
func NewFSRepository(baseDir string) port.SnapshotRepository {
	return &fsRepository{baseDir: baseDir}
}

func (r *fsRepository) SavePages(ctx context.Context, jobID uuid.UUID, pages []domain.PageExtraction) error {
	return r.write(jobID, pagesFilename, pages)
}

func (r *fsRepository) LoadPages(ctx context.Context, jobID uuid.UUID) ([]domain.PageExtraction, error) {
	data, err := r.read(jobID, pagesFilename)
	if err != nil {
		return nil, err
	}
	var pages []domain.PageExtraction
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("snapshot.LoadPages %s: %w", jobID, err)
	}
	return pages, nil
}

func (r *fsRepository) SaveBundle(ctx context.Context, jobID uuid.UUID, bundle *canonical.Bundle) error {
	return r.write(jobID, bundleFilename, bundle)
}

func (r *fsRepository) LoadBundle(ctx context.Context, jobID uuid.UUID) (*canonical.Bundle, error) {
	data, err := r.read(jobID, bundleFilename)
	if err != nil {
		return nil, err
	}
	bundle, err := canonical.ParseBundle(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot.LoadBundle %s: %w", jobID, err)
	}
	return bundle, nil
}

func (r *fsRepository) SaveTrace(ctx context.Context, jobID uuid.UUID, trace json.RawMessage) error {
	return r.write(jobID, traceFilename, trace)
}

func (r *fsRepository) write(jobID uuid.UUID, filename string, payload any) error {
	jobDir := filepath.Join(r.baseDir, jobID.String())
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return fmt.Errorf("snapshot: creating %s: %w", jobDir, err)
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: marshaling %s for %s: %w", filename, jobID, err)
	}
	path := filepath.Join(jobDir, filename)

	// Write-then-rename so readers never observe a partial file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("snapshot: renaming %s: %w", tmp, err)
	}
	return nil
}

func (r *fsRepository) read(jobID uuid.UUID, filename string) ([]byte, error) {
	path := filepath.Join(r.baseDir, jobID.String(), filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("snapshot: reading %s: %w", path, err)
	}
	return data, nil
}
