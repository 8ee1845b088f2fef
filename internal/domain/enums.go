package domain

import "strings"

// FileType represents the allowed document types for upload.
type FileType string

const (
	FileTypePDF      FileType = "pdf"
	FileTypeMarkdown FileType = "md"
)

// AllowedFileTypes maps FileType to its MIME content type.
var AllowedFileTypes = map[FileType]string{
	FileTypePDF:      "application/pdf",
	FileTypeMarkdown: "text/markdown",
}

// AllowedContentTypes maps MIME content types back to FileType.
var AllowedContentTypes = map[string]FileType{
	"application/pdf": FileTypePDF,
	"text/markdown":   FileTypeMarkdown,
}

// AllowedExtensions maps file extensions (without dot) to FileType.
var AllowedExtensions = map[string]FileType{
	"pdf":      FileTypePDF,
	"md":       FileTypeMarkdown,
	"markdown": FileTypeMarkdown,
}

// JobStatus represents the lifecycle of a document-intelligence job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusMapping    JobStatus = "mapping"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// jobTransitions lists the legal status transitions.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusQueued:     {JobStatusProcessing, JobStatusFailed},
	JobStatusProcessing: {JobStatusMapping, JobStatusFailed},
	JobStatusMapping:    {JobStatusCompleted, JobStatusFailed},
	JobStatusFailed:     {JobStatusQueued},
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the job lifecycle.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// DocumentCategory is a classification hint restricting which canonical
// fields are eligible on a page or document.
type DocumentCategory string

const (
	CategoryInvoice DocumentCategory = "INVOICE"
	CategoryCMR     DocumentCategory = "CMR"
	CategoryUB04    DocumentCategory = "UB04"
)

// categoryAliases normalizes upstream classifier labels to mapper categories.
var categoryAliases = map[string]DocumentCategory{
	"facility_invoice":            CategoryInvoice,
	"facility-invoice":            CategoryInvoice,
	"invoice":                     CategoryInvoice,
	"general_invoice":             CategoryInvoice,
	"cmr_form":                    CategoryCMR,
	"cmr":                         CategoryCMR,
	"continued_monthly_residence": CategoryCMR,
	"ub04":                        CategoryUB04,
	"ub-04":                       CategoryUB04,
	"ub 04":                       CategoryUB04,
}

// NormalizeCategory maps a raw classifier label to a DocumentCategory.
// Unknown labels are upper-cased and passed through; blank labels yield
// an empty category.
func NormalizeCategory(raw string) DocumentCategory {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return ""
	}
	if category, ok := categoryAliases[normalized]; ok {
		return category
	}
	return DocumentCategory(strings.ToUpper(normalized))
}
