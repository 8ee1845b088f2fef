package mapping

import (
	"strings"
	"time"

	"policonv/internal/canonical"
)

// MergeBundles combines the deterministic bundle with model output. The
// deterministic side wins wherever it holds a value; the model fills gaps
// only. Provenance from both sides is retained on populated fields.
func MergeBundles(deterministic, llm *canonical.Bundle) *canonical.Bundle {
	merged := cloneBundle(deterministic)
	if llm == nil {
		return merged
	}

	if merged.SchemaVersion == "" && llm.SchemaVersion != "" {
		merged.SchemaVersion = llm.SchemaVersion
	}
	if merged.GeneratedAt.IsZero() && !llm.GeneratedAt.IsZero() {
		merged.GeneratedAt = llm.GeneratedAt
	}
	if merged.GeneratedAt.IsZero() {
		merged.GeneratedAt = time.Now().UTC()
	}

	merged.DocumentCategories = dedupePreserveOrder(append(merged.DocumentCategories, llm.DocumentCategories...))
	merged.DocumentTypes = dedupePreserveOrder(append(merged.DocumentTypes, llm.DocumentTypes...))
	merged.ReasoningNotes = dedupePreserveOrder(append(merged.ReasoningNotes, llm.ReasoningNotes...))

	for label, entry := range merged.PolicyConversion {
		mergeEntry(entry, llm.PolicyConversion[label])
	}

	// Model output replaces digit-index inferred items wholesale when present;
	// positional inference is the weaker signal.
	if len(llm.InvoiceLineItems) > 0 {
		merged.InvoiceLineItems = llm.InvoiceLineItems
	}
	if len(merged.UB04LineItems) == 0 && len(llm.UB04LineItems) > 0 {
		merged.UB04LineItems = llm.UB04LineItems
	}
	if len(merged.IdentityBlocks) == 0 && len(llm.IdentityBlocks) > 0 {
		merged.IdentityBlocks = llm.IdentityBlocks
	}

	mergeSourceMap(merged.SourceMap, llm.SourceMap)
	return merged
}

// mergeEntry applies deterministic-wins semantics to one canonical slot.
func mergeEntry(det *canonical.Value, llm *canonical.Value) {
	if det.HasValue() {
		if llm != nil {
			for _, src := range llm.Sources {
				if !containsSource(det.Sources, src) {
					det.Sources = append(det.Sources, src)
				}
			}
			if det.Confidence == nil && llm.Confidence != nil {
				det.Confidence = llm.Confidence
			}
		}
		return
	}

	if llm == nil {
		det.Value = nil
		det.Confidence = nil
		det.Sources = []canonical.Source{}
		return
	}

	det.Value = llm.Value
	det.Confidence = llm.Confidence
	det.Sources = append([]canonical.Source{}, llm.Sources...)
}

func mergeSourceMap(base, llm map[string]*canonical.SourceSummary) {
	for identifier, entry := range llm {
		if entry == nil {
			continue
		}
		existing, ok := base[identifier]
		if !ok {
			existing = &canonical.SourceSummary{}
			base[identifier] = existing
		}
		existing.Pages = dedupePreserveOrderInts(append(existing.Pages, entry.Pages...))
		existing.FieldIDs = dedupePreserveOrder(append(existing.FieldIDs, entry.FieldIDs...))
		existing.TableIDs = dedupePreserveOrder(append(existing.TableIDs, entry.TableIDs...))
		existing.Columns = dedupePreserveOrderInts(append(existing.Columns, entry.Columns...))
		if existing.ConfidenceAggregate == nil && entry.ConfidenceAggregate != nil {
			existing.ConfidenceAggregate = entry.ConfidenceAggregate
		}
	}
}

func cloneBundle(bundle *canonical.Bundle) *canonical.Bundle {
	clone := &canonical.Bundle{
		SchemaVersion:      "",
		PolicyConversion:   canonical.PolicyConversion{},
		IdentityBlocks:     []canonical.IdentityBlock{},
		InvoiceLineItems:   []canonical.LineItem{},
		UB04LineItems:      []canonical.TableLineItems{},
		SourceMap:          map[string]*canonical.SourceSummary{},
		DocumentTypes:      []string{},
		DocumentCategories: []string{},
		ReasoningNotes:     []string{},
	}
	if bundle == nil {
		return clone
	}
	clone.SchemaVersion = bundle.SchemaVersion
	clone.GeneratedAt = bundle.GeneratedAt
	clone.DocumentTypes = append(clone.DocumentTypes, bundle.DocumentTypes...)
	clone.DocumentCategories = append(clone.DocumentCategories, bundle.DocumentCategories...)
	clone.ReasoningNotes = append(clone.ReasoningNotes, bundle.ReasoningNotes...)
	clone.IdentityBlocks = append(clone.IdentityBlocks, bundle.IdentityBlocks...)
	clone.InvoiceLineItems = append(clone.InvoiceLineItems, bundle.InvoiceLineItems...)
	clone.UB04LineItems = append(clone.UB04LineItems, bundle.UB04LineItems...)
	for label, entry := range bundle.PolicyConversion {
		copied := canonical.Value{Sources: append([]canonical.Source{}, entry.Sources...)}
		copied.Value = entry.Value
		if entry.Confidence != nil {
			c := *entry.Confidence
			copied.Confidence = &c
		}
		clone.PolicyConversion[label] = &copied
	}
	for identifier, summary := range bundle.SourceMap {
		if summary == nil {
			continue
		}
		copied := canonical.SourceSummary{
			Pages:    append([]int(nil), summary.Pages...),
			FieldIDs: append([]string(nil), summary.FieldIDs...),
			TableIDs: append([]string(nil), summary.TableIDs...),
			Columns:  append([]int(nil), summary.Columns...),
		}
		if summary.ConfidenceAggregate != nil {
			c := *summary.ConfidenceAggregate
			copied.ConfidenceAggregate = &c
		}
		clone.SourceMap[identifier] = &copied
	}
	return clone
}

func containsSource(sources []canonical.Source, candidate canonical.Source) bool {
	for _, src := range sources {
		if sourceEqual(src, candidate) {
			return true
		}
	}
	return false
}

func sourceEqual(a, b canonical.Source) bool {
	if !intPtrEqual(a.Page, b.Page) || !intPtrEqual(a.Column, b.Column) {
		return false
	}
	return a.FieldID == b.FieldID && a.TableID == b.TableID &&
		strings.TrimSpace(a.Snippet) == strings.TrimSpace(b.Snippet)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func dedupePreserveOrder(items []string) []string {
	seen := make(map[string]bool, len(items))
	deduped := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		deduped = append(deduped, item)
	}
	return deduped
}

func dedupePreserveOrderInts(items []int) []int {
	seen := make(map[int]bool, len(items))
	deduped := make([]int, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		deduped = append(deduped, item)
	}
	return deduped
}
