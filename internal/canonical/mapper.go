package canonical

import (
	"sort"
	"strings"
	"time"

	"policonv/internal/domain"
)

// OverrideConfidenceThreshold is the score at or above which a new
// observation replaces an existing value regardless of the comparison
// against the current confidence.
const OverrideConfidenceThreshold = 0.92

// DocumentTypePolicyConversion tags every bundle this mapper produces.
const DocumentTypePolicyConversion = "policy_conversion"

// Mapper reconciles per-page extraction observations into one canonical
// bundle. It is a deterministic function of its inputs: no I/O, no shared
// state, safe to call from any goroutine.
type Mapper struct {
	schemaVersion     string
	overrideThreshold float64
	lookup            map[string][]*FieldDefinition
}

// NewMapper creates a mapper with the default schema version and override
// threshold. The normalized-name lookup table is built once here.
func NewMapper() *Mapper {
	return NewMapperWithVersion(SchemaVersion)
}

// NewMapperWithVersion creates a mapper stamping bundles with the given
// schema version.
func NewMapperWithVersion(schemaVersion string) *Mapper {
	return &Mapper{
		schemaVersion:     schemaVersion,
		overrideThreshold: OverrideConfidenceThreshold,
		lookup:            buildNameLookup(),
	}
}

// BuildEmptyBundle returns the bundle skeleton: exactly one null-valued
// entry per canonical field, regardless of category hints.
func (m *Mapper) BuildEmptyBundle(documentCategories []string) *Bundle {
	policyConversion := make(PolicyConversion, len(allFields))
	for _, field := range allFields {
		policyConversion[field.Label] = &Value{Sources: []Source{}}
	}
	categories := append([]string(nil), documentCategories...)
	if categories == nil {
		categories = []string{}
	}
	return &Bundle{
		SchemaVersion:      m.schemaVersion,
		GeneratedAt:        time.Now().UTC(),
		DocumentTypes:      []string{DocumentTypePolicyConversion},
		DocumentCategories: categories,
		PolicyConversion:   policyConversion,
		IdentityBlocks:     []IdentityBlock{},
		InvoiceLineItems:   []LineItem{},
		UB04LineItems:      []TableLineItems{},
		SourceMap:          map[string]*SourceSummary{},
		ReasoningNotes:     []string{},
	}
}

// MapDocument runs the full reconciliation over the given pages. Category
// hints, when present, restrict which canonical fields are eligible per page;
// absent hints mean all fields are eligible everywhere. Pages are processed
// in page-number order, fields in per-page order.
func (m *Mapper) MapDocument(pages []domain.PageExtraction, documentCategories []string, pageCategories map[int][]string) *Bundle {
	bundle := m.BuildEmptyBundle(documentCategories)

	ordered := append([]domain.PageExtraction(nil), pages...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].PageNumber < ordered[j].PageNumber })

	documentGroups := groupsForCategories(documentCategories)
	identity := newIdentityAccumulator()
	items := newLineItemAccumulator(m.overrideThreshold)
	sources := newSourceAggregator()

	for p := range ordered {
		page := &ordered[p]
		pageGroups := documentGroups
		if hints, ok := pageCategories[page.PageNumber]; ok {
			pageGroups = groupsForCategories(hints)
		}

		for f := range page.Fields {
			field := &page.Fields[f]
			def := m.resolve(field.FieldName, pageGroups)
			if def == nil {
				// Noise field; documents routinely contain names that map
				// to nothing canonical.
				continue
			}
			confidence := field.Confidence.Value()
			sources.recordField(def.Identifier, page.PageNumber, field.ID, confidence)

			switch {
			case def.IdentityMember:
				if field.Value != "" {
					identity.add(*def, field.Value, page.PageNumber, field.ID)
				}
			case def.LineItemAttribute != "":
				items.add(*def, field.Value, confidence, page.PageNumber, field.FieldName, field.ID)
			default:
				slot := bundle.PolicyConversion[def.Label]
				var value any = field.Value
				if field.Value == "" {
					value = nil
				}
				if def.Identifier == FieldAbsenceDetails && field.Value != "" {
					value = ParseAbsenceDetails(field.Value)
				}
				pageNumber := page.PageNumber
				mergeValueIntoSlot(slot, value, confidence, m.overrideThreshold, Source{Page: &pageNumber, FieldID: field.ID})
			}
		}

		for t := range page.Tables {
			table := &page.Tables[t]
			extracted, ok := ExtractTableLineItems(table)
			if !ok {
				continue
			}
			bundle.UB04LineItems = append(bundle.UB04LineItems, *extracted)
			sources.recordTable(FieldLineItems, page.PageNumber, table.ID, extracted)
		}
	}

	bundle.IdentityBlocks = identity.serialize()
	bundle.InvoiceLineItems = items.serialize()
	bundle.SourceMap = sources.summarize()
	return bundle
}

// resolve maps a raw extracted field name to a canonical definition, picking
// the first candidate eligible under the page's category hints. Indexed names
// ("Description 2") fall back to their digit-stripped form so line-item
// attributes resolve; the index itself is recovered by the accumulator.
// Unresolvable or ineligible names report nil and are dropped by the caller.
func (m *Mapper) resolve(name string, eligibleGroups map[Group]bool) *FieldDefinition {
	key := NormalizeKey(name)
	candidates := m.lookup[key]
	if len(candidates) == 0 {
		if stripped := strings.TrimRight(key, "0123456789"); stripped != key {
			candidates = m.lookup[stripped]
		}
	}
	for _, candidate := range candidates {
		if len(eligibleGroups) == 0 || eligibleGroups[candidate.Group] {
			return candidate
		}
	}
	return nil
}

func groupsForCategories(categories []string) map[Group]bool {
	groups := make(map[Group]bool)
	for _, raw := range categories {
		switch domain.NormalizeCategory(raw) {
		case domain.CategoryInvoice:
			groups[GroupGeneralInvoice] = true
		case domain.CategoryCMR:
			groups[GroupCMR] = true
		case domain.CategoryUB04:
			groups[GroupUB04] = true
		}
	}
	return groups
}

// mergeValueIntoSlot applies the confidence-priority policy and appends the
// observation's provenance whether or not the value was accepted.
func mergeValueIntoSlot(slot *Value, value any, confidence, overrideThreshold float64, src Source) bool {
	accepted := false
	switch {
	case slot.Confidence == nil:
		accepted = true
	case confidence >= overrideThreshold:
		accepted = true
	case confidence > *slot.Confidence:
		accepted = true
	case !slot.HasValue() && hasValue(value):
		// Prefer any value over none, even at equal or lower confidence.
		accepted = true
	}
	if accepted {
		slot.Value = value
		c := confidence
		slot.Confidence = &c
	}
	slot.Sources = append(slot.Sources, src)
	return accepted
}

// sourceAggregator builds the per-identifier source map incrementally during
// one mapping pass. Scoped to the MapDocument call; never shared.
type sourceAggregator struct {
	entries map[string]*sourceEntry
}

type sourceEntry struct {
	pages    []int
	fieldIDs []string
	tableIDs []string
	columns  []int
	samples  []float64
}

func newSourceAggregator() *sourceAggregator {
	return &sourceAggregator{entries: make(map[string]*sourceEntry)}
}

func (a *sourceAggregator) entry(identifier string) *sourceEntry {
	entry, ok := a.entries[identifier]
	if !ok {
		entry = &sourceEntry{}
		a.entries[identifier] = entry
	}
	return entry
}

func (a *sourceAggregator) recordField(identifier string, page int, fieldID string, confidence float64) {
	entry := a.entry(identifier)
	entry.pages = appendUniqueInt(entry.pages, page)
	entry.fieldIDs = appendUnique(entry.fieldIDs, fieldID)
	entry.samples = append(entry.samples, confidence)
}

func (a *sourceAggregator) recordTable(identifier string, page int, tableID string, extracted *TableLineItems) {
	entry := a.entry(identifier)
	entry.pages = appendUniqueInt(entry.pages, page)
	entry.tableIDs = appendUnique(entry.tableIDs, tableID)
	for _, header := range extracted.Headers {
		if header.Key != "" {
			entry.columns = appendUniqueInt(entry.columns, header.ColumnIndex)
		}
	}
	if extracted.Confidence != nil {
		entry.samples = append(entry.samples, *extracted.Confidence)
	}
}

func (a *sourceAggregator) summarize() map[string]*SourceSummary {
	summaries := make(map[string]*SourceSummary, len(a.entries))
	for identifier, entry := range a.entries {
		summary := &SourceSummary{
			Pages:    entry.pages,
			FieldIDs: entry.fieldIDs,
			TableIDs: entry.tableIDs,
			Columns:  entry.columns,
		}
		if len(entry.samples) > 0 {
			mean := domain.MeanConfidence(entry.samples)
			summary.ConfidenceAggregate = &mean
		}
		summaries[identifier] = summary
	}
	return summaries
}

func appendUniqueInt(values []int, value int) []int {
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}
