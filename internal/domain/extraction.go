package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// FieldExtraction is a single observed field on one page. Instances are
// immutable; an edit produces a new instance with WasEdited set.
type FieldExtraction struct {
	ID          string       `json:"id"`
	FieldName   string       `json:"name"`
	Value       string       `json:"value"`
	FieldType   string       `json:"fieldType"`
	Confidence  Confidence   `json:"confidence"`
	PageNumber  int          `json:"page"`
	BoundingBox *BoundingBox `json:"bbox,omitempty"`
	WasEdited   bool         `json:"wasEdited,omitempty"`
}

// NewFieldExtraction validates and constructs a field observation. Confidence
// must already be in [0, 1]; out-of-range values indicate an upstream contract
// violation and are rejected rather than coerced.
func NewFieldExtraction(fieldName, value, fieldType string, confidence float64, pageNumber int, bbox *BoundingBox) (FieldExtraction, error) {
	if strings.TrimSpace(fieldName) == "" {
		return FieldExtraction{}, fmt.Errorf("%w: field name is empty", ErrValidation)
	}
	if confidence < 0 || confidence > 1 {
		return FieldExtraction{}, fmt.Errorf("%w: confidence %v outside [0,1]", ErrValidation, confidence)
	}
	if pageNumber < 1 {
		return FieldExtraction{}, fmt.Errorf("%w: page number %d must be positive", ErrValidation, pageNumber)
	}
	return FieldExtraction{
		ID:          uuid.NewString(),
		FieldName:   fieldName,
		Value:       value,
		FieldType:   fieldType,
		Confidence:  Confidence(confidence),
		PageNumber:  pageNumber,
		BoundingBox: bbox,
	}, nil
}

// WithValue returns a copy carrying an edited value.
func (f FieldExtraction) WithValue(value string) FieldExtraction {
	edited := f
	edited.Value = value
	edited.WasEdited = true
	return edited
}

// TableCell is one cell of a table observation. Row and Column are zero-based
// grid coordinates; Rowspan and Colspan are at least 1.
type TableCell struct {
	Row         int          `json:"row"`
	Column      int          `json:"column"`
	Content     string       `json:"content"`
	IsHeader    bool         `json:"isHeader"`
	Rowspan     int          `json:"rowspan"`
	Colspan     int          `json:"colspan"`
	Confidence  *Confidence  `json:"confidence,omitempty"`
	BoundingBox *BoundingBox `json:"bbox,omitempty"`
}

// NewTableCell validates and constructs a table cell. confidence may be nil
// when the extractor reported none.
func NewTableCell(row, column int, content string, isHeader bool, rowspan, colspan int, confidence *float64, bbox *BoundingBox) (TableCell, error) {
	if row < 0 || column < 0 {
		return TableCell{}, fmt.Errorf("%w: cell position (%d,%d) must be non-negative", ErrValidation, row, column)
	}
	if rowspan < 1 || colspan < 1 {
		return TableCell{}, fmt.Errorf("%w: cell span (%d,%d) must be at least 1", ErrValidation, rowspan, colspan)
	}
	cell := TableCell{
		Row:         row,
		Column:      column,
		Content:     content,
		IsHeader:    isHeader,
		Rowspan:     rowspan,
		Colspan:     colspan,
		BoundingBox: bbox,
	}
	if confidence != nil {
		if *confidence < 0 || *confidence > 1 {
			return TableCell{}, fmt.Errorf("%w: cell confidence %v outside [0,1]", ErrValidation, *confidence)
		}
		c := Confidence(*confidence)
		cell.Confidence = &c
	}
	return cell, nil
}

// TableExtraction is a single observed table on one page. The group metadata
// fields are zero-valued until table grouping runs.
type TableExtraction struct {
	ID          string       `json:"id"`
	PageNumber  int          `json:"page"`
	Title       string       `json:"title,omitempty"`
	Confidence  Confidence   `json:"confidence"`
	BoundingBox *BoundingBox `json:"bbox,omitempty"`
	Cells       []TableCell  `json:"cells"`

	// Assigned by tablegroup when the table participates in a cross-page group.
	TableGroupID          string   `json:"tableGroupId,omitempty"`
	ContinuationOf        string   `json:"continuationOf,omitempty"`
	RowStartIndex         int      `json:"rowStartIndex"`
	InferredHeaders       bool     `json:"inferredHeaders"`
	InheritedHeaderLabels []string `json:"inheritedHeaders,omitempty"`
}

// NewTableExtraction validates and constructs a table observation.
func NewTableExtraction(pageNumber int, title string, confidence float64, cells []TableCell, bbox *BoundingBox) (TableExtraction, error) {
	if pageNumber < 1 {
		return TableExtraction{}, fmt.Errorf("%w: page number %d must be positive", ErrValidation, pageNumber)
	}
	if confidence < 0 || confidence > 1 {
		return TableExtraction{}, fmt.Errorf("%w: confidence %v outside [0,1]", ErrValidation, confidence)
	}
	return TableExtraction{
		ID:          uuid.NewString(),
		PageNumber:  pageNumber,
		Title:       title,
		Confidence:  Confidence(confidence),
		BoundingBox: bbox,
		Cells:       cells,
	}, nil
}

// NumRows is the derived row count: max(row+rowspan) over all cells.
func (t *TableExtraction) NumRows() int {
	max := 0
	for _, cell := range t.Cells {
		if end := cell.Row + cell.Rowspan; end > max {
			max = end
		}
	}
	return max
}

// NumColumns is the derived column count: max(column+colspan) over all cells.
func (t *TableExtraction) NumColumns() int {
	max := 0
	for _, cell := range t.Cells {
		if end := cell.Column + cell.Colspan; end > max {
			max = end
		}
	}
	return max
}

// HeaderRows returns the set of row indices containing any header cell.
func (t *TableExtraction) HeaderRows() map[int]bool {
	rows := make(map[int]bool)
	for _, cell := range t.Cells {
		if cell.IsHeader {
			rows[cell.Row] = true
		}
	}
	return rows
}

// HeaderLabels returns the header cell texts in column order. When the table
// has no flagged headers, labels inherited from a preceding table segment are
// returned instead.
func (t *TableExtraction) HeaderLabels() []string {
	headerRows := t.HeaderRows()
	if len(headerRows) == 0 {
		return append([]string(nil), t.InheritedHeaderLabels...)
	}
	labels := make([]string, t.NumColumns())
	for _, cell := range t.Cells {
		if !cell.IsHeader {
			continue
		}
		if labels[cell.Column] == "" {
			labels[cell.Column] = strings.TrimSpace(cell.Content)
		}
	}
	return labels
}

// HasHeaders reports whether any cell carries a non-blank header label.
func (t *TableExtraction) HasHeaders() bool {
	for _, cell := range t.Cells {
		if cell.IsHeader && strings.TrimSpace(cell.Content) != "" {
			return true
		}
	}
	return false
}

// Grid expands the cells into a dense row-major grid, honoring row and column
// spans. Positions not covered by any cell are nil.
func (t *TableExtraction) Grid() [][]*TableCell {
	numRows, numCols := t.NumRows(), t.NumColumns()
	if numRows == 0 || numCols == 0 {
		return nil
	}
	grid := make([][]*TableCell, numRows)
	for r := range grid {
		grid[r] = make([]*TableCell, numCols)
	}
	for i := range t.Cells {
		cell := &t.Cells[i]
		for r := cell.Row; r < cell.Row+cell.Rowspan && r < numRows; r++ {
			for c := cell.Column; c < cell.Column+cell.Colspan && c < numCols; c++ {
				if grid[r][c] == nil {
					grid[r][c] = cell
				}
			}
		}
	}
	return grid
}

// RowSignature returns the trimmed cell values of one grid row joined with a
// unit separator, for duplicate-row detection across page breaks.
func RowSignature(row []*TableCell) string {
	parts := make([]string, len(row))
	for i, cell := range row {
		if cell != nil {
			parts[i] = strings.TrimSpace(cell.Content)
		}
	}
	return strings.Join(parts, "\x1f")
}

// RemoveRow deletes all cells belonging to grid row r and shifts later rows up.
func (t *TableExtraction) RemoveRow(r int) {
	kept := t.Cells[:0]
	for _, cell := range t.Cells {
		if cell.Row == r {
			continue
		}
		if cell.Row > r {
			cell.Row--
		}
		kept = append(kept, cell)
	}
	t.Cells = kept
}

// PageExtraction aggregates all observations on one physical page.
type PageExtraction struct {
	PageNumber int               `json:"pageNumber"`
	Fields     []FieldExtraction `json:"fields"`
	Tables     []TableExtraction `json:"tables"`
}

// NewPageExtraction validates and constructs a page aggregate.
func NewPageExtraction(pageNumber int, fields []FieldExtraction, tables []TableExtraction) (PageExtraction, error) {
	if pageNumber < 1 {
		return PageExtraction{}, fmt.Errorf("%w: page number %d must be positive", ErrValidation, pageNumber)
	}
	return PageExtraction{PageNumber: pageNumber, Fields: fields, Tables: tables}, nil
}
