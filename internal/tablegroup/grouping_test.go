package tablegroup_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policonv/internal/domain"
	"policonv/internal/tablegroup"
)

// makeTable builds a table with one optional header row and the given data
// rows, all spanning a single cell each.
func makeTable(id string, page int, headers []string, rows [][]string, width float64) domain.TableExtraction {
	var cells []domain.TableCell
	rowOffset := 0
	if len(headers) > 0 {
		for col, label := range headers {
			cells = append(cells, domain.TableCell{
				Row: 0, Column: col, Content: label, IsHeader: true, Rowspan: 1, Colspan: 1,
			})
		}
		rowOffset = 1
	}
	for r, row := range rows {
		for col, content := range row {
			cells = append(cells, domain.TableCell{
				Row: rowOffset + r, Column: col, Content: content, Rowspan: 1, Colspan: 1,
			})
		}
	}
	return domain.TableExtraction{
		ID:          id,
		PageNumber:  page,
		Confidence:  0.9,
		BoundingBox: &domain.BoundingBox{X: 0.1, Y: 0.2, Width: width, Height: 0.5},
		Cells:       cells,
	}
}

func chargeHeaders() []string {
	return []string{"Rev Code", "Description", "Charges"}
}

func TestAssignTableGroups_HeaderlessContinuation(t *testing.T) {
	pages := []domain.PageExtraction{
		{PageNumber: 1, Tables: []domain.TableExtraction{
			makeTable("t-1", 1, chargeHeaders(), [][]string{
				{"0120", "ROOM-BOARD/SEMI", "9,000.00"},
				{"0250", "PHARMACY", "312.40"},
			}, 0.8),
		}},
		{PageNumber: 2, Tables: []domain.TableExtraction{
			makeTable("t-2", 2, nil, [][]string{
				{"0300", "LABORATORY", "88.00"},
			}, 0.8),
		}},
	}

	groups := tablegroup.AssignTableGroups(pages)
	require.Len(t, groups, 1, "the page-2 table must join the page-1 group")

	first := &pages[0].Tables[0]
	second := &pages[1].Tables[0]
	assert.NotEmpty(t, first.TableGroupID)
	assert.Equal(t, first.TableGroupID, second.TableGroupID)
	assert.Empty(t, first.ContinuationOf)
	assert.Equal(t, first.TableGroupID, second.ContinuationOf)
	assert.Equal(t, 0, first.RowStartIndex)
	assert.Equal(t, 2, second.RowStartIndex, "continuation rows start after the head's data rows")
	assert.True(t, second.InferredHeaders)
	assert.Equal(t, chargeHeaders(), second.InheritedHeaderLabels)
}

func TestAssignTableGroups_RepeatedHeaderContinuation(t *testing.T) {
	pages := []domain.PageExtraction{
		{PageNumber: 1, Tables: []domain.TableExtraction{
			makeTable("t-1", 1, chargeHeaders(), [][]string{
				{"0120", "ROOM-BOARD/SEMI", "9,000.00"},
			}, 0.8),
		}},
		{PageNumber: 2, Tables: []domain.TableExtraction{
			makeTable("t-2", 2, chargeHeaders(), [][]string{
				{"0250", "PHARMACY", "312.40"},
			}, 0.8),
		}},
	}

	groups := tablegroup.AssignTableGroups(pages)
	require.Len(t, groups, 1)
	second := &pages[1].Tables[0]
	assert.False(t, second.InferredHeaders, "a continuation with its own headers inherits nothing")
	assert.Empty(t, second.InheritedHeaderLabels)
	assert.Equal(t, 1, second.RowStartIndex)
}

func TestAssignTableGroups_DropsDuplicateBorderRow(t *testing.T) {
	pages := []domain.PageExtraction{
		{PageNumber: 1, Tables: []domain.TableExtraction{
			makeTable("t-1", 1, chargeHeaders(), [][]string{
				{"0120", "ROOM-BOARD/SEMI", "9,000.00"},
			}, 0.8),
		}},
		{PageNumber: 2, Tables: []domain.TableExtraction{
			// First row re-reads the row straddling the page break.
			makeTable("t-2", 2, nil, [][]string{
				{"0120", "ROOM-BOARD/SEMI", "9,000.00"},
				{"0250", "PHARMACY", "312.40"},
			}, 0.8),
		}},
	}

	tablegroup.AssignTableGroups(pages)

	second := &pages[1].Tables[0]
	assert.Equal(t, 1, second.NumRows(), "duplicated border row is removed")
	grid := second.Grid()
	require.Len(t, grid, 1)
	assert.Equal(t, "0250", grid[0][0].Content)
}

func TestAssignTableGroups_UnrelatedTableOpensNewGroup(t *testing.T) {
	pages := []domain.PageExtraction{
		{PageNumber: 1, Tables: []domain.TableExtraction{
			makeTable("t-1", 1, chargeHeaders(), [][]string{
				{"0120", "ROOM-BOARD/SEMI", "9,000.00"},
			}, 0.8),
		}},
		{PageNumber: 2, Tables: []domain.TableExtraction{
			// Own dissimilar headers, two extra columns, and a much narrower
			// box leave only the adjacent-page signal.
			makeTable("t-2", 2, []string{"Weekday", "Visitors", "Notes", "Signed by", "Shift"}, [][]string{
				{"Monday", "3", "", "RN", "Day"},
			}, 0.3),
		}},
	}

	groups := tablegroup.AssignTableGroups(pages)
	assert.Len(t, groups, 2, "dissimilar headers, shape, and width must not chain")
	assert.Empty(t, pages[1].Tables[0].ContinuationOf)
}

func TestAssignTableGroups_NonAdjacentPageNeverChains(t *testing.T) {
	pages := []domain.PageExtraction{
		{PageNumber: 1, Tables: []domain.TableExtraction{
			makeTable("t-1", 1, chargeHeaders(), [][]string{
				{"0120", "ROOM-BOARD/SEMI", "9,000.00"},
			}, 0.8),
		}},
		{PageNumber: 3, Tables: []domain.TableExtraction{
			makeTable("t-2", 3, nil, [][]string{
				{"0250", "PHARMACY", "312.40"},
			}, 0.8),
		}},
	}

	groups := tablegroup.AssignTableGroups(pages)
	assert.Len(t, groups, 2)
}

func TestAssignTableGroups_SamePageTablesStaySeparate(t *testing.T) {
	pages := []domain.PageExtraction{
		{PageNumber: 1, Tables: []domain.TableExtraction{
			makeTable("t-1", 1, chargeHeaders(), [][]string{
				{"0120", "ROOM-BOARD/SEMI", "9,000.00"},
			}, 0.8),
			makeTable("t-2", 1, chargeHeaders(), [][]string{
				{"0250", "PHARMACY", "312.40"},
			}, 0.8),
		}},
	}

	groups := tablegroup.AssignTableGroups(pages)
	assert.Len(t, groups, 2)
}

func TestAssignTableGroups_WidthBandIsTheDecidingSignal(t *testing.T) {
	build := func(width float64) []domain.PageExtraction {
		return []domain.PageExtraction{
			{PageNumber: 1, Tables: []domain.TableExtraction{
				makeTable("t-1", 1, chargeHeaders(), [][]string{
					{"0120", "ROOM-BOARD/SEMI", "9,000.00"},
				}, 0.8),
			}},
			{PageNumber: 2, Tables: []domain.TableExtraction{
				// One column with its own unrelated header: only the
				// adjacent-page signal plus, possibly, the width band.
				makeTable("t-2", 2, []string{"Totals"}, [][]string{
					{"9,000.00"},
				}, width),
			}},
		}
	}

	inBand := tablegroup.AssignTableGroups(build(0.8))
	assert.Len(t, inBand, 1, "width inside the band tips the score over the threshold")

	outOfBand := tablegroup.AssignTableGroups(build(0.2))
	assert.Len(t, outOfBand, 2, "width outside the band leaves the score short")
}

func TestMergeTableSegments_ConcatenatesDataRows(t *testing.T) {
	pages := []domain.PageExtraction{
		{PageNumber: 1, Tables: []domain.TableExtraction{
			makeTable("t-1", 1, chargeHeaders(), [][]string{
				{"0120", "ROOM-BOARD/SEMI", "9,000.00"},
				{"0250", "PHARMACY", "312.40"},
			}, 0.8),
		}},
		{PageNumber: 2, Tables: []domain.TableExtraction{
			makeTable("t-2", 2, chargeHeaders(), [][]string{
				{"0300", "LABORATORY", "88.00"},
			}, 0.8),
		}},
	}

	groups := tablegroup.AssignTableGroups(pages)
	require.Len(t, groups, 1)

	merged := tablegroup.MergeTableSegments(groups)
	require.Len(t, merged, 1)

	var table *domain.TableExtraction
	for groupID, m := range merged {
		assert.Equal(t, groupID+"-merged", m.ID)
		assert.Equal(t, groupID, m.TableGroupID)
		table = m
	}
	require.NotNil(t, table)

	assert.Equal(t, 1, table.PageNumber, "merged table reports the head segment's page")
	assert.Equal(t, 4, table.NumRows(), "one header row plus three data rows; the repeated header is dropped")

	grid := table.Grid()
	assert.Equal(t, "Rev Code", grid[0][0].Content)
	assert.Equal(t, "0120", grid[1][0].Content)
	assert.Equal(t, "0250", grid[2][0].Content)
	assert.Equal(t, "0300", grid[3][0].Content)
}

func TestMergeTableSegments_DedupesConsecutiveRows(t *testing.T) {
	head := makeTable("t-1", 1, chargeHeaders(), [][]string{
		{"0120", "ROOM-BOARD/SEMI", "9,000.00"},
	}, 0.8)
	tail := makeTable("t-2", 2, nil, [][]string{
		{"0120", "ROOM-BOARD/SEMI", "9,000.00"},
		{"0250", "PHARMACY", "312.40"},
	}, 0.8)
	head.TableGroupID = "g-1"
	tail.TableGroupID = "g-1"
	tail.ContinuationOf = "g-1"
	tail.RowStartIndex = 1

	merged := tablegroup.MergeTableSegments(map[string][]*domain.TableExtraction{
		"g-1": {&head, &tail},
	})
	require.Len(t, merged, 1)

	table := merged["g-1"]
	require.NotNil(t, table)
	assert.Equal(t, 3, table.NumRows(), "the row repeated across the break appears once")

	grid := table.Grid()
	assert.Equal(t, "0120", grid[1][0].Content)
	assert.Equal(t, "0250", grid[2][0].Content)
}

func TestMergeTableSegments_SingleSegmentPassesThrough(t *testing.T) {
	only := makeTable("t-1", 1, chargeHeaders(), [][]string{
		{"0120", "ROOM-BOARD/SEMI", "9,000.00"},
	}, 0.8)
	only.TableGroupID = "g-1"

	merged := tablegroup.MergeTableSegments(map[string][]*domain.TableExtraction{
		"g-1": {&only},
	})

	table := merged["g-1"]
	require.NotNil(t, table)
	assert.Equal(t, 2, table.NumRows())
	assert.Equal(t, only.Title, table.Title)
}
