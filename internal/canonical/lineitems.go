package canonical

import (
	"sort"
	"strings"
)

// lineItemAccumulator groups flat per-field line-item attributes (e.g.
// "Description row 2", "Amount row 2") into item records, indexed per page.
// Scoped to one mapping pass.
type lineItemAccumulator struct {
	overrideThreshold float64
	itemsByPage       map[int][]LineItem
	pageOrder         []int
}

func newLineItemAccumulator(overrideThreshold float64) *lineItemAccumulator {
	return &lineItemAccumulator{
		overrideThreshold: overrideThreshold,
		itemsByPage:       make(map[int][]LineItem),
	}
}

// add routes one line-item attribute observation into its item. Blank values
// are skipped. A 1-based item index is inferred from digits embedded in the
// raw field name when present; otherwise a description attribute starts a
// new item and any other attribute lands on the latest open item.
func (a *lineItemAccumulator) add(field FieldDefinition, rawValue string, confidence float64, pageNumber int, fieldName, fieldID string) {
	if strings.TrimSpace(rawValue) == "" {
		return
	}
	items := a.itemsByPage[pageNumber]
	if items == nil {
		a.pageOrder = append(a.pageOrder, pageNumber)
	}

	index, explicit := inferItemIndex(fieldName)
	switch {
	case explicit:
		for len(items) < index {
			items = append(items, LineItem{})
		}
	case field.LineItemAttribute == "description":
		items = append(items, LineItem{})
		index = len(items)
	default:
		if len(items) == 0 {
			items = append(items, LineItem{})
		}
		index = len(items)
	}
	a.itemsByPage[pageNumber] = items

	item := items[index-1]
	slot, ok := item[field.LineItemAttribute]
	if !ok {
		slot = &Value{Sources: []Source{}}
		item[field.LineItemAttribute] = slot
	}
	page := pageNumber
	mergeValueIntoSlot(slot, rawValue, confidence, a.overrideThreshold, Source{Page: &page, FieldID: fieldID})
}

// serialize emits items ordered by page number, then insertion order within
// a page.
func (a *lineItemAccumulator) serialize() []LineItem {
	pages := append([]int(nil), a.pageOrder...)
	sort.Ints(pages)
	var out []LineItem
	for _, page := range pages {
		out = append(out, a.itemsByPage[page]...)
	}
	if out == nil {
		out = []LineItem{}
	}
	return out
}

// inferItemIndex extracts a 1-based item index from the first digit run in
// the raw field name ("description_2" -> 2). Zero or missing digits report
// no index.
func inferItemIndex(fieldName string) (int, bool) {
	index := 0
	seen := false
	for _, r := range fieldName {
		if r >= '0' && r <= '9' {
			index = index*10 + int(r-'0')
			seen = true
			continue
		}
		if seen {
			break
		}
	}
	if !seen || index < 1 {
		return 0, false
	}
	return index, true
}
