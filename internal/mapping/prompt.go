package mapping

import (
	"fmt"
	"strings"

	"policonv/internal/canonical"
)

// PromptBundle holds the generated prompt components. The pieces are kept
// separate so traces can show each one individually.
type PromptBundle struct {
	SystemPrompt  string
	Instructions  string
	SchemaSummary string
	OutputSchema  string
}

// BuildPromptBundle assembles the mapping prompt for the canonical field
// registry at the given schema version.
func BuildPromptBundle(schemaVersion string) PromptBundle {
	return PromptBundle{
		SystemPrompt:  renderSystemPrompt(),
		Instructions:  renderInstructions(schemaVersion),
		SchemaSummary: renderSchemaSummary(),
		OutputSchema:  renderOutputSchema(),
	}
}

// GuidanceText composes the user-facing instruction block sent alongside the
// deterministic skeleton and extraction payload.
func (b PromptBundle) GuidanceText() string {
	return b.Instructions +
		"\n\nOutput requirements:\n" + b.OutputSchema +
		"\n\nCanonical schema overview:\n" + b.SchemaSummary +
		"\n\nFill in the canonical bundle using the provided skeleton and extraction payload."
}

func renderSystemPrompt() string {
	lines := []string{
		"You are a policy conversion mapping assistant.",
		"Transform OCR/JSON extraction output into the canonical policy conversion schema.",
		"Respond with strict JSON matching the output schema.",
		"Mark missing fields as null and include sources and confidence for every populated value.",
	}
	return strings.Join(lines, "\n")
}

func renderInstructions(schemaVersion string) string {
	lines := []string{
		fmt.Sprintf("Schema version: %s.", schemaVersion),
		"Rules:",
		"1. Populate a field only when evidence exists in the extraction JSON.",
		"2. Include sources: page, fieldId/tableId when available.",
		"3. Provide confidence for each value; use lower confidence when evidence is weak.",
		"4. If no evidence, set the value to null and do not fabricate data.",
		"5. Preserve provided skeleton values; only overwrite when new evidence is stronger.",
	}
	return strings.Join(lines, "\n")
}

func renderOutputSchema() string {
	lines := []string{
		"Return strict JSON with keys:",
		"- schemaVersion: string",
		"- generatedAt: ISO8601 UTC timestamp",
		`- documentTypes: array, must include "policy_conversion"`,
		"- documentCategories: array of document category strings",
		"- policyConversion: object with exactly the field labels shown in the schema summary; each value is",
		`  {"value": string|null, "confidence": number|null, "sources": [{"page": int optional, "fieldId": string optional, "tableId": string optional, "column": int optional, "snippet": string optional}] }`,
		"- sourceMap: object keyed by canonical identifiers with source metadata.",
		"- reasoningNotes: array of strings for any assumptions or low-confidence areas.",
	}
	return strings.Join(lines, "\n")
}

func renderSchemaSummary() string {
	fields := canonical.Ordered()
	lines := make([]string, 0, len(fields)+1)
	lines = append(lines, fmt.Sprintf("Policy Conversion Fields (%d):", len(fields)))
	for _, field := range fields {
		lines = append(lines, fmt.Sprintf("- %s: %s", field.Label, field.Description))
	}
	return strings.Join(lines, "\n")
}
