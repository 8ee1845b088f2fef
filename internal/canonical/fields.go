// Package canonical implements the policy-conversion reconciliation engine:
// a fixed registry of canonical fields and a mapper that merges noisy
// per-page extraction observations into one provenance-tracked bundle.
package canonical

import (
	"fmt"
	"strings"

	"policonv/internal/domain"
)

// Group is the logical form section a canonical field belongs to.
type Group string

const (
	GroupGeneralInvoice Group = "GENERAL_INVOICE"
	GroupCMR            Group = "CMR"
	GroupUB04           Group = "UB04"
)

// Category returns the document-category hint that makes this group eligible.
func (g Group) Category() domain.DocumentCategory {
	switch g {
	case GroupGeneralInvoice:
		return domain.CategoryInvoice
	case GroupCMR:
		return domain.CategoryCMR
	case GroupUB04:
		return domain.CategoryUB04
	}
	return ""
}

// Identity block types for fields that legitimately repeat per page.
const (
	BlockPolicyHolderIdentity = "policyHolderIdentity"
	BlockProviderIdentity     = "providerIdentity"
	BlockPatientIdentity      = "patientIdentity"
)

// FieldDefinition describes one canonical attribute. The set is fixed at
// process start and never mutated.
type FieldDefinition struct {
	Identifier  string
	Label       string
	Description string
	Group       Group
	Order       int

	// IdentityMember marks fields routed to the identity accumulator; the
	// block type and attribute name say where their values land.
	IdentityMember bool
	BlockType      string
	BlockAttribute string

	// LineItemAttribute names the invoice line-item attribute this field
	// feeds; empty for ordinary fields.
	LineItemAttribute string

	// IncludeInGroup is false for fields that only exist as line-item or
	// table carriers and never populate a scalar slot directly.
	IncludeInGroup bool
}

// Identifiers referenced by name in the mapper.
const (
	FieldAbsenceDetails = "ABSENCE_DETAILS"
	FieldLineItems      = "LINE_ITEMS"
)

func scalar(identifier, label string, group Group, order int, description string) FieldDefinition {
	return FieldDefinition{
		Identifier:     identifier,
		Label:          label,
		Description:    description,
		Group:          group,
		Order:          order,
		IncludeInGroup: true,
	}
}

func lineItem(identifier, label string, order int, attribute, description string) FieldDefinition {
	return FieldDefinition{
		Identifier:        identifier,
		Label:             label,
		Description:       description,
		Group:             GroupGeneralInvoice,
		Order:             order,
		LineItemAttribute: attribute,
	}
}

func identity(identifier, label string, group Group, order int, blockType, blockAttribute, description string) FieldDefinition {
	return FieldDefinition{
		Identifier:     identifier,
		Label:          label,
		Description:    description,
		Group:          group,
		Order:          order,
		IdentityMember: true,
		BlockType:      blockType,
		BlockAttribute: blockAttribute,
		IncludeInGroup: true,
	}
}

// allFields is the ordered catalog of canonical policy-conversion attributes.
// Labels are unique; the (CMR) suffix disambiguates the fields the CMR form
// repeats from the general invoice section.
var allFields = []FieldDefinition{
	scalar("POLICY_NUMBER", "Policy number", GroupGeneralInvoice, 1,
		"Unique LTC policy identifier (alphanumeric; matches insurer records)."),
	scalar("POLICYHOLDER_NAME", "Policyholder name", GroupGeneralInvoice, 2,
		"Full legal name of the policyholder."),
	scalar("POLICYHOLDER_ADDRESS", "Policyholder address", GroupGeneralInvoice, 3,
		"Complete mailing address (street, city, state, ZIP)."),
	scalar("PROVIDER_NAME", "Provider name", GroupGeneralInvoice, 4,
		"Official name of the billing facility or service organization."),
	scalar("PROVIDER_ADDRESS", "Provider address", GroupGeneralInvoice, 5,
		"Facility/provider mailing address (street, city, state, ZIP)."),
	scalar("INVOICE_NUMBER", "Invoice number", GroupGeneralInvoice, 6,
		"Provider-issued billing or statement identifier."),
	scalar("INVOICE_DATE_STATEMENT_DATE", "Invoice date / statement date", GroupGeneralInvoice, 7,
		"Date the invoice/statement was issued."),
	scalar("TAX_ID", "Tax ID", GroupGeneralInvoice, 8,
		"Provider FEIN (often also present on UB04 forms)."),
	scalar("TOTAL_AMOUNT", "Total amount", GroupGeneralInvoice, 9,
		"Gross charges before credits or adjustments."),

	lineItem("DESCRIPTION_ACTIVITY", "Description / activity", 10, "description",
		"Invoice line item description."),
	lineItem("START_DATE", "Start date", 11, "startDate",
		"Line item service start date."),
	lineItem("END_DATE", "End date", 12, "endDate",
		"Line item service end date."),
	lineItem("UNIT_TYPE", "Unit type", 13, "unitType",
		"Line item billing unit type."),
	lineItem("UNIT_QUANTITY", "Unit / quantity", 14, "unitQuantity",
		"Line item quantity."),
	lineItem("CHARGES_AMOUNT", "Charges / amount", 15, "chargesAmount",
		"Line item charge amount."),
	lineItem("BALANCE", "Balance", 16, "balance",
		"Line item remaining balance."),
	lineItem("TOTAL_DUE_BALANCE_DUE", "Total due / balance due", 17, "totalDue",
		"Line item total due."),
	lineItem("CREDITS", "Credits", 18, "credits",
		"Line item credits or adjustments."),

	scalar("CMR_POLICY_NUMBER", "Policy number (CMR)", GroupCMR, 21,
		"LTC policy identifier tied to the resident."),
	scalar("CMR_POLICYHOLDER_NAME", "Policyholder name (CMR)", GroupCMR, 22,
		"Insured resident's full legal name."),
	scalar("CMR_POLICYHOLDER_ADDRESS", "Policyholder address (CMR)", GroupCMR, 23,
		"Resident mailing address (street, city, state, ZIP)."),
	scalar("CMR_PROVIDER_NAME", "Provider name (CMR)", GroupCMR, 24,
		"Residential facility name."),
	scalar("CMR_PROVIDER_ADDRESS", "Provider address (CMR)", GroupCMR, 25,
		"Facility mailing address (street, city, state, ZIP)."),
	scalar("MONTH_OF_SERVICE_FROM", "Month of service from", GroupCMR, 26,
		"First month/year of the documented service period."),
	scalar("MONTH_OF_SERVICE_THROUGH", "Month of service through", GroupCMR, 27,
		"Last month/year of the documented service period."),
	scalar("SELECT_THE_LEVEL_OF_CARE", "Select the level of care", GroupCMR, 28,
		"Facility-selected care category (assisted living, nursing, memory care, etc.)."),
	scalar("ABSENCE_QUESTION", "Yes / no (absence question)", GroupCMR, 29,
		"Response indicating whether the resident was absent during the period."),
	scalar(FieldAbsenceDetails, "Absence details (if yes)", GroupCMR, 30,
		"Departure date, return date, reason, admission date, discharge date (composite block)."),
	identity("CMR_POLICY_NUMBER_DUPLICATE", "Policy number (duplicate block)", GroupCMR, 31,
		BlockPolicyHolderIdentity, "policyNumber",
		"Repeated policy identifier for verification."),
	identity("CMR_POLICYHOLDER_NAME_DUPLICATE", "Policyholder name (duplicate block)", GroupCMR, 32,
		BlockPolicyHolderIdentity, "policyholderName",
		"Repeated policyholder name."),
	identity("CMR_POLICYHOLDER_ADDRESS_DUPLICATE", "Policyholder address (duplicate block)", GroupCMR, 33,
		BlockPolicyHolderIdentity, "policyholderAddress",
		"Repeated policyholder address."),
	identity("CMR_PROVIDER_NAME_DUPLICATE", "Provider name (duplicate block)", GroupCMR, 34,
		BlockProviderIdentity, "providerName",
		"Repeated facility/provider name."),

	scalar("UB04_PROVIDER_NAME", "Provider name (Box 1/2)", GroupUB04, 35,
		"Billing provider's legal name."),
	scalar("UB04_PROVIDER_ADDRESS", "Provider address (Box 1/2)", GroupUB04, 36,
		"Provider address (street, city, state, ZIP)."),
	scalar("TYPE_OF_BILL", "Type of bill (Box 4)", GroupUB04, 37,
		"Three-digit code (facility, classification, frequency)."),
	scalar("FED_TAX_NO", "Fed tax no (Box 5)", GroupUB04, 38,
		"Provider EIN/TIN."),
	scalar("STATEMENT_PERIOD", "Statement period / service dates (Box 6)", GroupUB04, 39,
		"Start and end service period dates."),
	scalar("PATIENT_NAME", "Patient name (Box 8)", GroupUB04, 40,
		"Patient legal name (Last, First, MI)."),
	scalar("PATIENT_ADDRESS", "Patient address (Box 9)", GroupUB04, 41,
		"Patient address (street, city, state, ZIP)."),
	scalar("BIRTH_DATE", "Birth date (Box 10)", GroupUB04, 42,
		"Patient DOB (MMDDYYYY)."),
	scalar("MEDICARE_MEDICAID_NUMBER", "Medicare/Medicaid number (Box 38)", GroupUB04, 43,
		"Beneficiary identification number."),
	{
		Identifier:  FieldLineItems,
		Label:       "Line items (Boxes 42-47)",
		Description: "Itemized services: revenue code, description, procedure code, service date, units, total charge.",
		Group:       GroupUB04,
		Order:       44,
	},
	scalar("TOTAL", "Total", GroupUB04, 45,
		"Sum of all billed charges pre-adjustment."),
	scalar("PAYER_NAMES", "Payer name(s) (Box 50)", GroupUB04, 46,
		"Ordered payer list (primary -> secondary)."),
	scalar("AOB_ON_FILE", "AOB on file (Box 53)", GroupUB04, 47,
		"Assignment of Benefits indicator (Y/N)."),
	scalar("ESTIMATED_AMOUNT_DUE", "Estimated amount due (Box 55)", GroupUB04, 48,
		"Estimated patient/secondary responsibility amount."),
	identity("UB04_PROVIDER_NAME_DUPLICATE", "Provider name (duplicate, Box 1/2)", GroupUB04, 49,
		BlockProviderIdentity, "providerName",
		"Repeated provider name block."),
	identity("UB04_PROVIDER_ADDRESS_DUPLICATE", "Provider address (duplicate, Box 1/2)", GroupUB04, 50,
		BlockProviderIdentity, "providerAddress",
		"Repeated provider address block."),
	identity("TYPE_OF_BILL_DUPLICATE", "Type of bill (duplicate, Box 4)", GroupUB04, 51,
		BlockProviderIdentity, "typeOfBill",
		"Repeated bill-type code."),
	identity("FED_TAX_NO_DUPLICATE", "Fed tax no (duplicate, Box 5)", GroupUB04, 52,
		BlockProviderIdentity, "fedTaxNo",
		"Repeated EIN/TIN."),
	identity("STATEMENT_PERIOD_DUPLICATE", "Statement period / service dates (duplicate, Box 6)", GroupUB04, 53,
		BlockPatientIdentity, "statementPeriod",
		"Repeated service period dates."),
	identity("PATIENT_NAME_DUPLICATE", "Patient name (duplicate, Box 8)", GroupUB04, 54,
		BlockPatientIdentity, "patientName",
		"Repeated patient name."),
	identity("PATIENT_ADDRESS_DUPLICATE", "Patient address (duplicate, Box 9)", GroupUB04, 55,
		BlockPatientIdentity, "patientAddress",
		"Repeated patient address."),
	identity("BIRTH_DATE_DUPLICATE", "Birth date (duplicate, Box 10)", GroupUB04, 56,
		BlockPatientIdentity, "birthDate",
		"Repeated patient DOB (MMDDYYYY)."),
}

// fieldAliases maps hand-maintained alternate names to the identifiers they
// resolve to. Keys are normalized with NormalizeKey before lookup, so spacing
// and punctuation here are cosmetic.
var fieldAliases = map[string][]string{
	// The CMR form repeats the base invoice labels; resolution by page
	// category picks the right section at mapping time.
	"policy number":        {"POLICY_NUMBER", "CMR_POLICY_NUMBER"},
	"policyholder name":    {"POLICYHOLDER_NAME", "CMR_POLICYHOLDER_NAME"},
	"policyholder address": {"POLICYHOLDER_ADDRESS", "CMR_POLICYHOLDER_ADDRESS"},
	"provider name":        {"PROVIDER_NAME", "CMR_PROVIDER_NAME", "UB04_PROVIDER_NAME"},
	"provider address":     {"PROVIDER_ADDRESS", "CMR_PROVIDER_ADDRESS", "UB04_PROVIDER_ADDRESS"},
	"policy no":           {"POLICY_NUMBER", "CMR_POLICY_NUMBER"},
	"policy #":            {"POLICY_NUMBER", "CMR_POLICY_NUMBER"},
	"insured name":        {"POLICYHOLDER_NAME", "CMR_POLICYHOLDER_NAME"},
	"resident name":       {"CMR_POLICYHOLDER_NAME"},
	"facility name":       {"PROVIDER_NAME", "CMR_PROVIDER_NAME", "UB04_PROVIDER_NAME"},
	"facility address":    {"PROVIDER_ADDRESS", "CMR_PROVIDER_ADDRESS", "UB04_PROVIDER_ADDRESS"},
	"statement date":      {"INVOICE_DATE_STATEMENT_DATE"},
	"invoice date":        {"INVOICE_DATE_STATEMENT_DATE"},
	"statement number":    {"INVOICE_NUMBER"},
	"account number":      {"INVOICE_NUMBER"},
	"fein":                {"TAX_ID", "FED_TAX_NO"},
	"tax id number":       {"TAX_ID", "FED_TAX_NO"},
	"fed tax number":      {"FED_TAX_NO"},
	"total charges":       {"TOTAL_AMOUNT", "TOTAL"},
	"amount due":          {"TOTAL_DUE_BALANCE_DUE", "ESTIMATED_AMOUNT_DUE"},
	"balance due":         {"TOTAL_DUE_BALANCE_DUE"},
	"dob":                 {"BIRTH_DATE", "BIRTH_DATE_DUPLICATE"},
	"date of birth":       {"BIRTH_DATE", "BIRTH_DATE_DUPLICATE"},
	"level of care":       {"SELECT_THE_LEVEL_OF_CARE"},
	"service from":        {"MONTH_OF_SERVICE_FROM"},
	"service through":     {"MONTH_OF_SERVICE_THROUGH"},
	"absence details":     {FieldAbsenceDetails},
	"medicare number":     {"MEDICARE_MEDICAID_NUMBER"},
	"medicaid number":     {"MEDICARE_MEDICAID_NUMBER"},
	"payer":               {"PAYER_NAMES"},
	"payer name":          {"PAYER_NAMES"},
	"assignment of benefits": {"AOB_ON_FILE"},
	"qty":                 {"UNIT_QUANTITY"},
	"units":               {"UNIT_QUANTITY"},
	"amount":              {"CHARGES_AMOUNT"},
	"charges":             {"CHARGES_AMOUNT"},
	"description":         {"DESCRIPTION_ACTIVITY"},
	"activity":            {"DESCRIPTION_ACTIVITY"},
	"service start":       {"START_DATE"},
	"service end":         {"END_DATE"},
}

var (
	fieldsByIdentifier = make(map[string]*FieldDefinition, len(allFields))
	fieldsByLabel      = make(map[string]*FieldDefinition, len(allFields))
)

func init() {
	for i := range allFields {
		field := &allFields[i]
		fieldsByIdentifier[field.Identifier] = field
		fieldsByLabel[field.Label] = field
	}
}

// Ordered returns every canonical field definition in display order.
func Ordered() []FieldDefinition {
	return append([]FieldDefinition(nil), allFields...)
}

// ByIdentifier looks up a field by its stable identifier. A miss is a
// programming error, reported via domain.ErrUnknownField.
func ByIdentifier(identifier string) (FieldDefinition, error) {
	if field, ok := fieldsByIdentifier[identifier]; ok {
		return *field, nil
	}
	return FieldDefinition{}, fmt.Errorf("%w: identifier %q", domain.ErrUnknownField, identifier)
}

// ByLabel looks up a field by its display label.
func ByLabel(label string) (FieldDefinition, error) {
	if field, ok := fieldsByLabel[label]; ok {
		return *field, nil
	}
	return FieldDefinition{}, fmt.Errorf("%w: label %q", domain.ErrUnknownField, label)
}

// IdentityFields returns the fields routed to the identity accumulator.
func IdentityFields() []FieldDefinition {
	var fields []FieldDefinition
	for _, field := range allFields {
		if field.IdentityMember {
			fields = append(fields, field)
		}
	}
	return fields
}

// NormalizeKey reduces a raw field name to its lookup key: lower-cased with
// every non-alphanumeric character stripped.
func NormalizeKey(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// buildNameLookup constructs the normalized-name resolution table from
// labels, identifiers, and the manual alias list. Values are candidate lists
// in registry order; duplicate labels across form sections resolve by page
// eligibility at mapping time.
func buildNameLookup() map[string][]*FieldDefinition {
	lookup := make(map[string][]*FieldDefinition)
	add := func(key string, field *FieldDefinition) {
		if key == "" {
			return
		}
		for _, existing := range lookup[key] {
			if existing == field {
				return
			}
		}
		lookup[key] = append(lookup[key], field)
	}
	for i := range allFields {
		field := &allFields[i]
		add(NormalizeKey(field.Label), field)
		add(NormalizeKey(field.Identifier), field)
	}
	for alias, identifiers := range fieldAliases {
		for _, identifier := range identifiers {
			if field, ok := fieldsByIdentifier[identifier]; ok {
				add(NormalizeKey(alias), field)
			}
		}
	}
	return lookup
}
