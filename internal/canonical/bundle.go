package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// SchemaVersion identifies the canonical bundle wire format.
const SchemaVersion = "1.0.0"

// Source records where one observation of a canonical value came from.
// Field names are a wire contract shared with the export and API layers.
type Source struct {
	Page    *int   `json:"page,omitempty"`
	FieldID string `json:"fieldId,omitempty"`
	TableID string `json:"tableId,omitempty"`
	Column  *int   `json:"column,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Value is the reconciliation unit for one canonical field: the winning
// value plus every contributing source. Value is a string for ordinary
// fields and a nested object for structured parses (absence details).
type Value struct {
	Value      any      `json:"value"`
	Confidence *float64 `json:"confidence"`
	Sources    []Source `json:"sources"`
}

// UnmarshalJSON accepts both the canonical object shape and a bare scalar
// (model output is not always well behaved).
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		type alias Value
		var decoded alias
		if err := json.Unmarshal(trimmed, &decoded); err != nil {
			return err
		}
		*v = Value(decoded)
		if v.Sources == nil {
			v.Sources = []Source{}
		}
		return nil
	}
	var scalarValue any
	if err := json.Unmarshal(trimmed, &scalarValue); err != nil {
		return err
	}
	*v = Value{Value: scalarValue, Sources: []Source{}}
	return nil
}

// HasValue reports whether the slot holds a non-empty value.
func (v *Value) HasValue() bool {
	return hasValue(v.Value)
}

func hasValue(value any) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(typed) != ""
	case []any:
		return len(typed) > 0
	case map[string]any:
		return len(typed) > 0
	default:
		return true
	}
}

// PolicyConversion maps canonical field labels to their reconciled values.
// It serializes in registry order so downstream consumers see a stable
// field sequence.
type PolicyConversion map[string]*Value

// MarshalJSON emits entries in canonical field order, with any labels
// outside the registry (tolerated from model output) appended alphabetically.
func (p PolicyConversion) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	written := make(map[string]bool, len(p))
	first := true
	writeEntry := func(label string, value *Value) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		keyJSON, err := json.Marshal(label)
		if err != nil {
			return err
		}
		valueJSON, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(valueJSON)
		return nil
	}
	for _, field := range allFields {
		value, ok := p[field.Label]
		if !ok {
			continue
		}
		if err := writeEntry(field.Label, value); err != nil {
			return nil, err
		}
		written[field.Label] = true
	}
	var extras []string
	for label := range p {
		if !written[label] {
			extras = append(extras, label)
		}
	}
	sort.Strings(extras)
	for _, label := range extras {
		if err := writeEntry(label, p[label]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// SourceSummary aggregates provenance per canonical identifier across all
// observations, winning or not.
type SourceSummary struct {
	Pages               []int    `json:"pages,omitempty"`
	FieldIDs            []string `json:"fieldIds,omitempty"`
	TableIDs            []string `json:"tableIds,omitempty"`
	Columns             []int    `json:"columns,omitempty"`
	ConfidenceAggregate *float64 `json:"confidenceAggregate,omitempty"`
}

// TableHeader describes one normalized column of a line-item table.
type TableHeader struct {
	ColumnIndex int    `json:"columnIndex"`
	Label       string `json:"label"`
	Key         string `json:"key,omitempty"`
}

// TableLineItems holds structured row items extracted from one UB-04 style
// charges table. Provenance is recorded at table granularity.
type TableLineItems struct {
	TableID    string              `json:"tableId"`
	Title      string              `json:"title,omitempty"`
	Confidence *float64            `json:"confidence,omitempty"`
	Headers    []TableHeader       `json:"headers"`
	Items      []map[string]*Value `json:"items"`
	Sources    []Source            `json:"sources,omitempty"`
}

// LineItem is one row of the repeated invoice line-item structure.
type LineItem map[string]*Value

// Bundle is the canonical output aggregate for one mapping run.
type Bundle struct {
	SchemaVersion      string                    `json:"schemaVersion"`
	GeneratedAt        time.Time                 `json:"generatedAt"`
	DocumentTypes      []string                  `json:"documentTypes"`
	DocumentCategories []string                  `json:"documentCategories"`
	PolicyConversion   PolicyConversion          `json:"policyConversion"`
	IdentityBlocks     []IdentityBlock           `json:"identityBlocks"`
	InvoiceLineItems   []LineItem                `json:"invoiceLineItems"`
	UB04LineItems      []TableLineItems          `json:"ub04LineItems"`
	SourceMap          map[string]*SourceSummary `json:"sourceMap"`
	ReasoningNotes     []string                  `json:"reasoningNotes"`
}

// ParseBundle decodes a bundle from JSON, tolerating the loose shapes an
// enrichment model produces. Missing collections come back empty, not nil.
func ParseBundle(data []byte) (*Bundle, error) {
	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("parsing canonical bundle: %w", err)
	}
	bundle.normalize()
	return &bundle, nil
}

func (b *Bundle) normalize() {
	if b.PolicyConversion == nil {
		b.PolicyConversion = PolicyConversion{}
	}
	for label, value := range b.PolicyConversion {
		if value == nil {
			b.PolicyConversion[label] = &Value{Sources: []Source{}}
		} else if value.Sources == nil {
			value.Sources = []Source{}
		}
	}
	if b.IdentityBlocks == nil {
		b.IdentityBlocks = []IdentityBlock{}
	}
	if b.InvoiceLineItems == nil {
		b.InvoiceLineItems = []LineItem{}
	}
	if b.UB04LineItems == nil {
		b.UB04LineItems = []TableLineItems{}
	}
	if b.SourceMap == nil {
		b.SourceMap = map[string]*SourceSummary{}
	}
	if b.ReasoningNotes == nil {
		b.ReasoningNotes = []string{}
	}
	if b.DocumentTypes == nil {
		b.DocumentTypes = []string{}
	}
	if b.DocumentCategories == nil {
		b.DocumentCategories = []string{}
	}
}
