package canonical

import (
	"strings"

	"policonv/internal/domain"
)

// Keys the line-item extraction treats as substantive: a row populating none
// of these is a stray separator and is skipped.
var lineItemAnchorKeys = []string{"description", "totalCharge", "revenueCode", "procedureCode"}

// lineItemHeaderAliases maps header spellings to canonical line-item keys.
// Alias text is normalized before comparison, so spacing is cosmetic.
var lineItemHeaderAliases = []struct {
	alias string
	key   string
}{
	{"revenue code", "revenueCode"},
	{"rev code", "revenueCode"},
	{"rev", "revenueCode"},
	{"description", "description"},
	{"desc", "description"},
	{"hcpcs", "procedureCode"},
	{"procedure code", "procedureCode"},
	{"procedure", "procedureCode"},
	{"cpt", "procedureCode"},
	{"modifier", "procedureModifier"},
	{"service date", "serviceDate"},
	{"serv date", "serviceDate"},
	{"dos", "serviceDate"},
	{"date from", "serviceDateFrom"},
	{"date through", "serviceDateTo"},
	{"units", "units"},
	{"unit", "units"},
	{"qty", "units"},
	{"quantity", "units"},
	{"days", "units"},
	{"rate", "rate"},
	{"total charge", "totalCharge"},
	{"total charges", "totalCharge"},
	{"charges", "totalCharge"},
	{"charge", "totalCharge"},
	{"amount", "totalCharge"},
}

// NormalizeLineItemHeader resolves a raw header label to a canonical
// line-item key. Exact normalized match wins; otherwise the longest alias of
// at least 3 characters appearing as a substring of the normalized label
// wins. Unrecognized labels report no match.
func NormalizeLineItemHeader(label string) (string, bool) {
	normalized := NormalizeKey(label)
	if normalized == "" {
		return "", false
	}
	for _, entry := range lineItemHeaderAliases {
		if NormalizeKey(entry.alias) == normalized {
			return entry.key, true
		}
	}
	bestKey, bestLen := "", 0
	for _, entry := range lineItemHeaderAliases {
		aliasKey := NormalizeKey(entry.alias)
		if len(aliasKey) < 3 {
			continue
		}
		if strings.Contains(normalized, aliasKey) && len(aliasKey) > bestLen {
			bestKey, bestLen = entry.key, len(aliasKey)
		}
	}
	if bestKey == "" {
		return "", false
	}
	return bestKey, true
}

// ExtractTableLineItems recognizes a UB-04 style charges table and extracts
// its rows as structured items. A table whose headers normalize to no known
// key is not a line-item table; the second return value is false and the
// table is simply ignored.
func ExtractTableLineItems(table *domain.TableExtraction) (*TableLineItems, bool) {
	grid := table.Grid()
	if len(grid) == 0 {
		return nil, false
	}

	headerRows := table.HeaderRows()
	if len(headerRows) == 0 {
		// OCR frequently fails to tag headers; assume row 0.
		headerRows = map[int]bool{0: true}
	}

	numCols := table.NumColumns()
	headers := make([]TableHeader, 0, numCols)
	keyByColumn := make(map[int]string)
	for col := 0; col < numCols; col++ {
		label := headerLabelForColumn(grid, headerRows, col)
		header := TableHeader{ColumnIndex: col, Label: label}
		if key, ok := NormalizeLineItemHeader(label); ok {
			header.Key = key
			keyByColumn[col] = key
		}
		headers = append(headers, header)
	}
	if len(keyByColumn) == 0 {
		return nil, false
	}

	tableConfidence := table.Confidence.Value()
	var items []map[string]*Value
	var rowConfidences []float64
	for rowIdx, row := range grid {
		if headerRows[rowIdx] {
			continue
		}
		item, rowConfidence := buildRowItem(row, keyByColumn, tableConfidence)
		if item == nil {
			continue
		}
		items = append(items, item)
		rowConfidences = append(rowConfidences, rowConfidence)
	}
	if len(items) == 0 {
		return nil, false
	}

	aggregate := tableConfidence
	if len(rowConfidences) > 0 {
		aggregate = domain.MeanConfidence(rowConfidences)
	}
	page := table.PageNumber
	return &TableLineItems{
		TableID:    table.ID,
		Title:      table.Title,
		Confidence: &aggregate,
		Headers:    headers,
		Items:      items,
		Sources:    []Source{{Page: &page, TableID: table.ID}},
	}, true
}

func headerLabelForColumn(grid [][]*domain.TableCell, headerRows map[int]bool, col int) string {
	for rowIdx, row := range grid {
		if !headerRows[rowIdx] || col >= len(row) {
			continue
		}
		if cell := row[col]; cell != nil {
			if label := strings.TrimSpace(cell.Content); label != "" {
				return label
			}
		}
	}
	return ""
}

// buildRowItem assembles one item from a data row, keeping the highest-
// confidence value per key when noisy OCR maps several columns to the same
// key. Returns nil for rows with no substantive attribute.
func buildRowItem(row []*domain.TableCell, keyByColumn map[int]string, tableConfidence float64) (map[string]*Value, float64) {
	type candidate struct {
		value      string
		confidence *float64
	}
	best := make(map[string]candidate)
	var cellConfidences []float64
	for col, cell := range row {
		if cell == nil {
			continue
		}
		if cell.Confidence != nil {
			cellConfidences = append(cellConfidences, cell.Confidence.Value())
		}
		key, ok := keyByColumn[col]
		if !ok {
			continue
		}
		content := strings.TrimSpace(cell.Content)
		if content == "" {
			continue
		}
		var confidence *float64
		if cell.Confidence != nil {
			v := cell.Confidence.Value()
			confidence = &v
		}
		existing, seen := best[key]
		if !seen || confidenceOf(confidence) > confidenceOf(existing.confidence) {
			best[key] = candidate{value: content, confidence: confidence}
		}
	}

	anchored := false
	for _, anchor := range lineItemAnchorKeys {
		if _, ok := best[anchor]; ok {
			anchored = true
			break
		}
	}
	if !anchored {
		return nil, 0
	}

	rowConfidence := tableConfidence
	if len(cellConfidences) > 0 {
		rowConfidence = domain.MeanConfidence(cellConfidences)
	}

	item := make(map[string]*Value, len(best))
	for key, chosen := range best {
		confidence := rowConfidence
		if chosen.confidence != nil {
			confidence = *chosen.confidence
		}
		c := confidence
		item[key] = &Value{Value: chosen.value, Confidence: &c, Sources: []Source{}}
	}
	return item, rowConfidence
}

func confidenceOf(c *float64) float64 {
	if c == nil {
		return -1
	}
	return *c
}
