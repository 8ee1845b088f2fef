package canonical_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policonv/internal/canonical"
	"policonv/internal/domain"
)

func TestNormalizeLineItemHeader(t *testing.T) {
	cases := []struct {
		label string
		key   string
		ok    bool
	}{
		{"Rev Code", "revenueCode", true},
		{"Description", "description", true},
		{"HCPCS", "procedureCode", true},
		{"Serv Date", "serviceDate", true},
		{"Qty", "units", true},
		{"Units", "units", true},
		{"Total Charges", "totalCharge", true},
		{"Charges", "totalCharge", true},
		{"Svc Description", "description", true},
		{"Notes", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		key, ok := canonical.NormalizeLineItemHeader(tc.label)
		assert.Equal(t, tc.ok, ok, "label %q", tc.label)
		assert.Equal(t, tc.key, key, "label %q", tc.label)
	}
}

func headerCell(col int, content string) domain.TableCell {
	return domain.TableCell{Row: 0, Column: col, Content: content, IsHeader: true, Rowspan: 1, Colspan: 1}
}

func dataCell(row, col int, content string) domain.TableCell {
	return domain.TableCell{Row: row, Column: col, Content: content, Rowspan: 1, Colspan: 1}
}

func TestExtractTableLineItems_RecognizedTable(t *testing.T) {
	table := domain.TableExtraction{
		ID:         "t-1",
		PageNumber: 2,
		Title:      "Itemized Charges",
		Confidence: 0.8,
		Cells: []domain.TableCell{
			headerCell(0, "Rev Code"),
			headerCell(1, "Description"),
			headerCell(2, "Notes"),
			headerCell(3, "Charges"),
			dataCell(1, 0, "0120"),
			dataCell(1, 1, "ROOM-BOARD/SEMI"),
			dataCell(1, 2, "n/a"),
			dataCell(1, 3, "9,000.00"),
			dataCell(2, 0, ""),
			dataCell(2, 1, ""),
			dataCell(2, 2, ""),
			dataCell(2, 3, ""),
		},
	}

	extracted, ok := canonical.ExtractTableLineItems(&table)
	require.True(t, ok)
	assert.Equal(t, "t-1", extracted.TableID)
	assert.Equal(t, "Itemized Charges", extracted.Title)

	require.Len(t, extracted.Headers, 4)
	assert.Equal(t, "revenueCode", extracted.Headers[0].Key)
	assert.Equal(t, "description", extracted.Headers[1].Key)
	assert.Empty(t, extracted.Headers[2].Key, "unmapped columns keep an empty key")
	assert.Equal(t, "totalCharge", extracted.Headers[3].Key)

	require.Len(t, extracted.Items, 1, "empty rows are dropped")
	item := extracted.Items[0]
	assert.Equal(t, "0120", item["revenueCode"].Value)
	assert.Equal(t, "9,000.00", item["totalCharge"].Value)
	assert.NotContains(t, item, "Notes")

	require.Len(t, extracted.Sources, 1)
	require.NotNil(t, extracted.Sources[0].Page)
	assert.Equal(t, 2, *extracted.Sources[0].Page)
	assert.Equal(t, "t-1", extracted.Sources[0].TableID)
}

func TestExtractTableLineItems_AssumesFirstRowHeaderWhenUntagged(t *testing.T) {
	table := domain.TableExtraction{
		ID:         "t-2",
		PageNumber: 1,
		Confidence: 0.8,
		Cells: []domain.TableCell{
			dataCell(0, 0, "Description"),
			dataCell(0, 1, "Amount"),
			dataCell(1, 0, "Care services"),
			dataCell(1, 1, "850.00"),
		},
	}

	extracted, ok := canonical.ExtractTableLineItems(&table)
	require.True(t, ok)
	require.Len(t, extracted.Items, 1)
	assert.Equal(t, "Care services", extracted.Items[0]["description"].Value)
	assert.Equal(t, "850.00", extracted.Items[0]["totalCharge"].Value)
}

func TestExtractTableLineItems_RejectsUnrecognizedTable(t *testing.T) {
	table := domain.TableExtraction{
		ID:         "t-3",
		PageNumber: 1,
		Confidence: 0.8,
		Cells: []domain.TableCell{
			headerCell(0, "Weekday"),
			headerCell(1, "Visitors"),
			dataCell(1, 0, "Monday"),
			dataCell(1, 1, "3"),
		},
	}

	_, ok := canonical.ExtractTableLineItems(&table)
	assert.False(t, ok)
}

func TestExtractTableLineItems_EmptyTable(t *testing.T) {
	table := domain.TableExtraction{ID: "t-4", PageNumber: 1}
	_, ok := canonical.ExtractTableLineItems(&table)
	assert.False(t, ok)
}

func TestParseAbsenceDetails(t *testing.T) {
	details := canonical.ParseAbsenceDetails("Departure: 03/01/2024; Return: 03/09/2024\nReason: rehab stay; Admission: 03/02/2024")

	require.NotNil(t, details.DepartureDate)
	assert.Equal(t, "03/01/2024", *details.DepartureDate)
	require.NotNil(t, details.ReturnDate)
	assert.Equal(t, "03/09/2024", *details.ReturnDate)
	require.NotNil(t, details.Reason)
	assert.Equal(t, "rehab stay", *details.Reason)
	require.NotNil(t, details.AdmissionDate)
	assert.Equal(t, "03/02/2024", *details.AdmissionDate)
	assert.Nil(t, details.DischargeDate)
	assert.Contains(t, details.RawText, "Departure")
}

func TestParseAbsenceDetails_NoKeywords(t *testing.T) {
	details := canonical.ParseAbsenceDetails("resident traveled briefly")
	assert.Nil(t, details.DepartureDate)
	assert.Nil(t, details.Reason)
	assert.Equal(t, "resident traveled briefly", details.RawText)
}
