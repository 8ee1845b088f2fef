// Package mapping generates canonical policy-conversion bundles by combining
// the deterministic mapper with an LLM pass over the raw extraction payload.
package mapping

import (
	"policonv/internal/domain"
)

// Payload is the extraction JSON handed to the mapping model. The shape
// mirrors what reviewers see in the snapshot files so model output can be
// traced back to specific fields and tables.
type Payload struct {
	JobID              string                   `json:"jobId"`
	DocumentType       string                   `json:"documentType,omitempty"`
	DocumentCategories []string                 `json:"documentCategories"`
	OriginalFilename   string                   `json:"originalFilename,omitempty"`
	PageCategories     map[int][]string         `json:"pageCategories,omitempty"`
	Pages              []payloadPage            `json:"pages"`
	TableGroups        map[string]payloadTable  `json:"tableGroups,omitempty"`
}

type payloadPage struct {
	PageNumber int             `json:"pageNumber"`
	Fields     []payloadField  `json:"fields"`
	Tables     []payloadTable  `json:"tables"`
}

type payloadField struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Value      string              `json:"value"`
	Confidence float64             `json:"confidence"`
	BBox       *domain.BoundingBox `json:"bbox,omitempty"`
	Page       int                 `json:"page"`
	FieldType  string              `json:"fieldType,omitempty"`
}

type payloadTable struct {
	ID         string              `json:"id"`
	Page       int                 `json:"page"`
	Confidence float64             `json:"confidence"`
	Title      string              `json:"title,omitempty"`
	BBox       *domain.BoundingBox `json:"bbox,omitempty"`
	Rows       [][]payloadCell     `json:"rows"`
	NumRows    int                 `json:"numRows"`
	NumColumns int                 `json:"numColumns"`
}

type payloadCell struct {
	Value      string              `json:"value"`
	Confidence *float64            `json:"confidence"`
	BBox       *domain.BoundingBox `json:"bbox,omitempty"`
	IsHeader   bool                `json:"isHeader"`
}

// PayloadInput carries everything BuildPayload needs about one job.
type PayloadInput struct {
	JobID              string
	Filename           string
	DocumentType       string
	DocumentCategories []string
	PageCategories     map[int][]string
	Pages              []domain.PageExtraction
	MergedTables       map[string]*domain.TableExtraction
}

// BuildPayload serializes a job's extractions into the mapping payload.
func BuildPayload(input PayloadInput) Payload {
	categories := input.DocumentCategories
	if categories == nil {
		categories = []string{}
	}
	payload := Payload{
		JobID:              input.JobID,
		DocumentType:       input.DocumentType,
		DocumentCategories: categories,
		OriginalFilename:   input.Filename,
		PageCategories:     input.PageCategories,
		Pages:              make([]payloadPage, 0, len(input.Pages)),
	}
	for i := range input.Pages {
		payload.Pages = append(payload.Pages, serializePage(&input.Pages[i]))
	}
	if len(input.MergedTables) > 0 {
		payload.TableGroups = make(map[string]payloadTable, len(input.MergedTables))
		for groupID, table := range input.MergedTables {
			payload.TableGroups[groupID] = serializeTable(table)
		}
	}
	return payload
}

func serializePage(page *domain.PageExtraction) payloadPage {
	out := payloadPage{
		PageNumber: page.PageNumber,
		Fields:     make([]payloadField, 0, len(page.Fields)),
		Tables:     make([]payloadTable, 0, len(page.Tables)),
	}
	for i := range page.Fields {
		field := &page.Fields[i]
		out.Fields = append(out.Fields, payloadField{
			ID:         field.ID,
			Name:       field.FieldName,
			Value:      field.Value,
			Confidence: field.Confidence.Value(),
			BBox:       field.BoundingBox,
			Page:       field.PageNumber,
			FieldType:  field.FieldType,
		})
	}
	for i := range page.Tables {
		out.Tables = append(out.Tables, serializeTable(&page.Tables[i]))
	}
	return out
}

func serializeTable(table *domain.TableExtraction) payloadTable {
	grid := table.Grid()
	rows := make([][]payloadCell, 0, len(grid))
	for _, row := range grid {
		serialized := make([]payloadCell, 0, len(row))
		for _, cell := range row {
			if cell == nil {
				serialized = append(serialized, payloadCell{Value: ""})
				continue
			}
			var confidence *float64
			if cell.Confidence != nil {
				c := cell.Confidence.Value()
				confidence = &c
			}
			serialized = append(serialized, payloadCell{
				Value:      cell.Content,
				Confidence: confidence,
				BBox:       cell.BoundingBox,
				IsHeader:   cell.IsHeader,
			})
		}
		rows = append(rows, serialized)
	}
	return payloadTable{
		ID:         table.ID,
		Page:       table.PageNumber,
		Confidence: table.Confidence.Value(),
		Title:      table.Title,
		BBox:       table.BoundingBox,
		Rows:       rows,
		NumRows:    table.NumRows(),
		NumColumns: table.NumColumns(),
	}
}
