// Package tablegroup detects tables that continue across page breaks and
// collapses their segments into logical tables.
package tablegroup

import (
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"policonv/internal/domain"
)

// Continuation scoring. A candidate pairing must reach the threshold to be
// treated as the same logical table.
const (
	scoreAdjacentPage   = 2
	scoreWidthBand      = 1
	scoreHeaderMatch    = 2
	scoreHeaderless     = 1
	scoreCaptionMatch   = 1
	scoreColumnCount    = 1
	continuationScore   = 3
	widthRatioMin       = 0.65
	widthRatioMax       = 1.35
	headerSimilarityMin = 0.6
)

// AssignTableGroups walks pages in page-number order and annotates each table
// with its group membership. Tables recognised as continuations inherit the
// group id and header labels of the segment they extend; all others open a
// fresh single-member group. Tables are mutated in place and the returned map
// points into the given pages.
func AssignTableGroups(pages []domain.PageExtraction) map[string][]*domain.TableExtraction {
	groups := make(map[string][]*domain.TableExtraction)
	var processed []*domain.TableExtraction

	ordered := make([]*domain.PageExtraction, 0, len(pages))
	for i := range pages {
		ordered = append(ordered, &pages[i])
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].PageNumber < ordered[j].PageNumber })

	for _, page := range ordered {
		for i := range page.Tables {
			table := &page.Tables[i]
			if candidate := findContinuation(processed, table); candidate != nil {
				removeDuplicateOverlap(candidate, table)
				table.TableGroupID = candidate.TableGroupID
				table.ContinuationOf = candidate.TableGroupID
				table.RowStartIndex = candidate.RowStartIndex + dataRowCount(candidate)
				if !table.HasHeaders() {
					table.InheritedHeaderLabels = candidate.HeaderLabels()
					table.InferredHeaders = true
				} else {
					table.InferredHeaders = false
				}
				groups[table.TableGroupID] = append(groups[table.TableGroupID], table)
			} else {
				groupID := uuid.NewString()
				table.TableGroupID = groupID
				table.ContinuationOf = ""
				table.RowStartIndex = 0
				table.InferredHeaders = false
				groups[groupID] = append(groups[groupID], table)
			}
			processed = append(processed, table)
		}
	}

	return groups
}

// MergeTableSegments collapses each group into one logical table. Segments
// concatenate in page then row-start order; repeated header rows and rows
// duplicated across a page break are dropped.
func MergeTableSegments(groups map[string][]*domain.TableExtraction) map[string]*domain.TableExtraction {
	merged := make(map[string]*domain.TableExtraction, len(groups))

	for groupID, segments := range groups {
		if len(segments) == 0 {
			continue
		}
		ordered := append([]*domain.TableExtraction(nil), segments...)
		sort.SliceStable(ordered, func(i, j int) bool {
			if ordered[i].PageNumber != ordered[j].PageNumber {
				return ordered[i].PageNumber < ordered[j].PageNumber
			}
			return ordered[i].RowStartIndex < ordered[j].RowStartIndex
		})

		first := ordered[0]
		table := &domain.TableExtraction{
			ID:            groupID + "-merged",
			PageNumber:    first.PageNumber,
			Title:         first.Title,
			Confidence:    first.Confidence,
			BoundingBox:   first.BoundingBox,
			TableGroupID:  groupID,
			RowStartIndex: 0,
		}
		if !first.HasHeaders() {
			table.InheritedHeaderLabels = append([]string(nil), first.InheritedHeaderLabels...)
		}

		nextRow := 0
		lastSignature := ""
		haveSignature := false
		for segIdx, segment := range ordered {
			grid := segment.Grid()
			headerRows := segment.HeaderRows()
			for r := range grid {
				if headerRows[r] {
					// Headers only from the leading segment; continuations
					// repeat them.
					if segIdx > 0 {
						continue
					}
				} else {
					signature := domain.RowSignature(grid[r])
					if haveSignature && signature == lastSignature {
						continue
					}
					lastSignature, haveSignature = signature, true
				}
				for _, cell := range segment.Cells {
					if cell.Row != r {
						continue
					}
					copied := cell
					copied.Row = nextRow
					table.Cells = append(table.Cells, copied)
				}
				nextRow++
			}
			if segment.InferredHeaders {
				table.InferredHeaders = true
			}
		}

		merged[groupID] = table
	}

	return merged
}

// findContinuation scans earlier tables newest-first. Only the immediately
// preceding page can host the head of a continuation, so the scan stops as
// soon as the page gap exceeds one.
func findContinuation(processed []*domain.TableExtraction, current *domain.TableExtraction) *domain.TableExtraction {
	for i := len(processed) - 1; i >= 0; i-- {
		candidate := processed[i]
		if current.PageNumber <= candidate.PageNumber {
			continue
		}
		if current.PageNumber-candidate.PageNumber > 1 {
			break
		}
		if isPotentialContinuation(candidate, current) {
			return candidate
		}
	}
	return nil
}

func isPotentialContinuation(previous, current *domain.TableExtraction) bool {
	if current.PageNumber <= previous.PageNumber {
		return false
	}
	if current.PageNumber-previous.PageNumber > 1 {
		return false
	}

	score := 0

	if current.PageNumber == previous.PageNumber+1 {
		score += scoreAdjacentPage
	}

	if ratio, ok := widthRatio(previous, current); ok && ratio >= widthRatioMin && ratio <= widthRatioMax {
		score += scoreWidthBand
	}

	if headerSimilarity(previous, current) >= headerSimilarityMin {
		score += scoreHeaderMatch
	} else if !current.HasHeaders() {
		score += scoreHeaderless
	}

	if previous.Title != "" && current.Title != "" &&
		strings.EqualFold(strings.TrimSpace(previous.Title), strings.TrimSpace(current.Title)) {
		score += scoreCaptionMatch
	}

	prevCols, currCols := previous.NumColumns(), current.NumColumns()
	switch {
	case prevCols > 0 && currCols > 0 && abs(prevCols-currCols) <= 1:
		score += scoreColumnCount
	case prevCols > 0 && currCols == 0:
		score += scoreColumnCount
	}

	return score >= continuationScore
}

// headerSimilarity is the share of the previous table's effective header
// labels that reappear in the current table, case-insensitively. Either side
// lacking labels yields zero.
func headerSimilarity(previous, current *domain.TableExtraction) float64 {
	prev := headerSet(previous)
	if len(prev) == 0 {
		return 0
	}
	curr := headerSet(current)
	if len(curr) == 0 {
		return 0
	}
	matches := 0
	for label := range prev {
		if curr[label] {
			matches++
		}
	}
	return float64(matches) / float64(len(prev))
}

func headerSet(table *domain.TableExtraction) map[string]bool {
	set := make(map[string]bool)
	for _, label := range table.HeaderLabels() {
		label = strings.ToLower(strings.TrimSpace(label))
		if label != "" {
			set[label] = true
		}
	}
	return set
}

func widthRatio(previous, current *domain.TableExtraction) (float64, bool) {
	if previous.BoundingBox == nil || current.BoundingBox == nil {
		return 0, false
	}
	if previous.BoundingBox.Width == 0 || math.IsNaN(previous.BoundingBox.Width) {
		return 0, false
	}
	return current.BoundingBox.Width / previous.BoundingBox.Width, true
}

// removeDuplicateOverlap drops the current table's first data row when it
// repeats the previous segment's last row, a common artifact of extractors
// re-reading the row that straddles the page break.
func removeDuplicateOverlap(previous, current *domain.TableExtraction) {
	prevGrid := previous.Grid()
	currGrid := current.Grid()
	if len(prevGrid) == 0 || len(currGrid) == 0 {
		return
	}
	firstData := firstDataRow(current)
	if firstData < 0 {
		return
	}
	if domain.RowSignature(prevGrid[len(prevGrid)-1]) == domain.RowSignature(currGrid[firstData]) {
		current.RemoveRow(firstData)
	}
}

func firstDataRow(table *domain.TableExtraction) int {
	headerRows := table.HeaderRows()
	for r := 0; r < table.NumRows(); r++ {
		if !headerRows[r] {
			return r
		}
	}
	return -1
}

func dataRowCount(table *domain.TableExtraction) int {
	return table.NumRows() - len(table.HeaderRows())
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
