package canonical

import "strings"

// AbsenceDetails is the structured parse of the CMR absence free-text block.
// Unrecognized text survives verbatim in RawText.
type AbsenceDetails struct {
	DepartureDate *string `json:"departureDate"`
	ReturnDate    *string `json:"returnDate"`
	Reason        *string `json:"reason"`
	AdmissionDate *string `json:"admissionDate"`
	DischargeDate *string `json:"dischargeDate"`
	RawText       string  `json:"rawText"`
}

// absenceKeywords maps a lower-case token to the sub-field it populates.
var absenceKeywords = []struct {
	token string
	set   func(*AbsenceDetails, string)
}{
	{"departure", func(d *AbsenceDetails, v string) { d.DepartureDate = &v }},
	{"return", func(d *AbsenceDetails, v string) { d.ReturnDate = &v }},
	{"reason", func(d *AbsenceDetails, v string) { d.Reason = &v }},
	{"admission", func(d *AbsenceDetails, v string) { d.AdmissionDate = &v }},
	{"discharge", func(d *AbsenceDetails, v string) { d.DischargeDate = &v }},
}

// ParseAbsenceDetails splits the free text on semicolons and newlines and
// assigns each segment to a sub-field by case-insensitive keyword match.
// Best effort: segments without a recognizable keyword leave their sub-field
// nil, and parsing never fails.
func ParseAbsenceDetails(text string) AbsenceDetails {
	details := AbsenceDetails{RawText: text}
	segments := strings.FieldsFunc(text, func(r rune) bool {
		return r == ';' || r == '\n'
	})
	for _, segment := range segments {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		lower := strings.ToLower(segment)
		for _, keyword := range absenceKeywords {
			if !strings.Contains(lower, keyword.token) {
				continue
			}
			value := segment
			if idx := strings.Index(segment, ":"); idx >= 0 {
				value = strings.TrimSpace(segment[idx+1:])
			}
			if value != "" {
				keyword.set(&details, value)
			}
			break
		}
	}
	return details
}
