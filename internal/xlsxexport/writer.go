// Package xlsxexport renders canonical bundles as XLSX workbooks for the
// downstream spreadsheet consumers.
package xlsxexport

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"policonv/internal/canonical"
)

const (
	sheetFields   = "Policy Conversion"
	sheetInvoice  = "Invoice Line Items"
	sheetUB04     = "UB04 Line Items"
	sheetIdentity = "Identity Blocks"
)

// Write renders the bundle into an XLSX workbook on w. One row per canonical
// field in registry order, plus sheets for line items and identity blocks.
func Write(w io.Writer, bundle *canonical.Bundle) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := writeFieldSheet(f, bundle); err != nil {
		return err
	}
	if err := writeInvoiceSheet(f, bundle.InvoiceLineItems); err != nil {
		return err
	}
	if err := writeUB04Sheet(f, bundle.UB04LineItems); err != nil {
		return err
	}
	if err := writeIdentitySheet(f, bundle.IdentityBlocks); err != nil {
		return err
	}

	// excelize creates a default "Sheet1"; the field sheet replaces it.
	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsxexport: writing workbook: %w", err)
	}
	return nil
}

func writeFieldSheet(f *excelize.File, bundle *canonical.Bundle) error {
	if err := f.SetSheetName("Sheet1", sheetFields); err != nil {
		return fmt.Errorf("xlsxexport: renaming sheet: %w", err)
	}
	header := []any{"Order", "Identifier", "Label", "Value", "Confidence", "Pages"}
	if err := setRow(f, sheetFields, 1, header); err != nil {
		return err
	}

	row := 2
	for _, field := range canonical.Ordered() {
		entry := bundle.PolicyConversion[field.Label]
		values := []any{field.Order, field.Identifier, field.Label, "", "", ""}
		if entry != nil {
			values[3] = renderValue(entry.Value)
			if entry.Confidence != nil {
				values[4] = *entry.Confidence
			}
			values[5] = renderSourcePages(entry.Sources)
		}
		if err := setRow(f, sheetFields, row, values); err != nil {
			return err
		}
		row++
	}
	return nil
}

func writeInvoiceSheet(f *excelize.File, items []canonical.LineItem) error {
	if _, err := f.NewSheet(sheetInvoice); err != nil {
		return fmt.Errorf("xlsxexport: creating sheet: %w", err)
	}

	keys := collectKeys(items)
	header := make([]any, 0, len(keys)+1)
	header = append(header, "#")
	for _, key := range keys {
		header = append(header, key)
	}
	if err := setRow(f, sheetInvoice, 1, header); err != nil {
		return err
	}

	for i, item := range items {
		values := make([]any, 0, len(keys)+1)
		values = append(values, i+1)
		for _, key := range keys {
			if entry := item[key]; entry != nil {
				values = append(values, renderValue(entry.Value))
			} else {
				values = append(values, "")
			}
		}
		if err := setRow(f, sheetInvoice, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func writeUB04Sheet(f *excelize.File, tables []canonical.TableLineItems) error {
	if _, err := f.NewSheet(sheetUB04); err != nil {
		return fmt.Errorf("xlsxexport: creating sheet: %w", err)
	}

	row := 1
	for _, table := range tables {
		title := table.Title
		if title == "" {
			title = table.TableID
		}
		if err := setRow(f, sheetUB04, row, []any{title}); err != nil {
			return err
		}
		row++

		keys := make([]string, 0, len(table.Headers))
		header := []any{}
		for _, h := range table.Headers {
			if h.Key == "" {
				continue
			}
			keys = append(keys, h.Key)
			header = append(header, h.Label)
		}
		if err := setRow(f, sheetUB04, row, header); err != nil {
			return err
		}
		row++

		for _, item := range table.Items {
			values := make([]any, 0, len(keys))
			for _, key := range keys {
				if entry := item[key]; entry != nil {
					values = append(values, renderValue(entry.Value))
				} else {
					values = append(values, "")
				}
			}
			if err := setRow(f, sheetUB04, row, values); err != nil {
				return err
			}
			row++
		}
		row++ // blank row between tables
	}
	return nil
}

func writeIdentitySheet(f *excelize.File, blocks []canonical.IdentityBlock) error {
	if _, err := f.NewSheet(sheetIdentity); err != nil {
		return fmt.Errorf("xlsxexport: creating sheet: %w", err)
	}

	header := []any{"Sequence", "Block Type", "Page", "Present Fields"}
	if err := setRow(f, sheetIdentity, 1, header); err != nil {
		return err
	}
	for i, block := range blocks {
		page := any("")
		if block.Source.Page != nil {
			page = *block.Source.Page
		}
		values := []any{block.Sequence, block.BlockType, page, strings.Join(block.PresentFields, ", ")}
		if err := setRow(f, sheetIdentity, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("xlsxexport: cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("xlsxexport: writing row %d: %w", row, err)
	}
	return nil
}

// renderValue flattens a canonical value into cell text. Structured values
// (absence details, nested maps) render as compact JSON.
func renderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", v), "0"), ".")
	case bool:
		return fmt.Sprintf("%t", v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

func renderSourcePages(sources []canonical.Source) string {
	var pages []int
	seen := make(map[int]bool)
	for _, src := range sources {
		if src.Page != nil && !seen[*src.Page] {
			seen[*src.Page] = true
			pages = append(pages, *src.Page)
		}
	}
	sort.Ints(pages)
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ", ")
}

// collectKeys returns the union of item attribute keys in first-seen order.
func collectKeys(items []canonical.LineItem) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, item := range items {
		itemKeys := make([]string, 0, len(item))
		for key := range item {
			itemKeys = append(itemKeys, key)
		}
		sort.Strings(itemKeys)
		for _, key := range itemKeys {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	return keys
}
