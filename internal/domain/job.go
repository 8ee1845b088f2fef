package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job tracks the lifecycle of one uploaded document through extraction and
// canonical mapping. Extracted pages and canonical bundles are persisted as
// JSON snapshots outside the database; the job row carries lifecycle state
// and summary metrics only.
type Job struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	Filename           string          `db:"filename" json:"filename"`
	ContentType        string          `db:"content_type" json:"content_type"`
	StorageKey         string          `db:"storage_key" json:"storage_key"`
	Status             JobStatus       `db:"status" json:"status"`
	PageCount          int             `db:"page_count" json:"page_count"`
	DocumentCategories json.RawMessage `db:"document_categories" json:"document_categories"`
	PageCategories     json.RawMessage `db:"page_categories" json:"page_categories"`
	ConfidenceMean     *float64        `db:"confidence_mean" json:"confidence_mean"`
	FieldsMapped       int             `db:"fields_mapped" json:"fields_mapped"`
	ErrorMessage       string          `db:"error_message" json:"error_message"`
	MapAttempts        int             `db:"map_attempts" json:"map_attempts"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
	CompletedAt        *time.Time      `db:"completed_at" json:"completed_at"`
}

// Transition moves the job to the next status, enforcing the state machine.
func (j *Job) Transition(next JobStatus) error {
	if !j.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: cannot move job %s from %s to %s", ErrJobNotMappable, j.ID, j.Status, next)
	}
	j.Status = next
	if next.IsTerminal() {
		now := time.Now().UTC()
		j.CompletedAt = &now
	}
	return nil
}

// Categories decodes the stored document category hints.
func (j *Job) Categories() []string {
	if len(j.DocumentCategories) == 0 {
		return nil
	}
	var categories []string
	if err := json.Unmarshal(j.DocumentCategories, &categories); err != nil {
		return nil
	}
	return categories
}

// PerPageCategories decodes the stored page-level category hints.
func (j *Job) PerPageCategories() map[int][]string {
	if len(j.PageCategories) == 0 {
		return nil
	}
	var categories map[int][]string
	if err := json.Unmarshal(j.PageCategories, &categories); err != nil {
		return nil
	}
	return categories
}
