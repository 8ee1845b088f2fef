package canonical

import "sort"

// BlockSource records where an identity block's fields were observed.
type BlockSource struct {
	Page     *int     `json:"page"`
	FieldIDs []string `json:"fieldIds"`
}

// IdentityBlock is one consolidated instance of a repeated identity section
// (policyholder, provider, or patient info that legitimately duplicates
// across pages). Attribute fields are nil when never observed.
type IdentityBlock struct {
	BlockType           string      `json:"blockType"`
	Sequence            int         `json:"sequence"`
	PresentFields       []string    `json:"presentFields"`
	PolicyNumber        *string     `json:"policyNumber"`
	PolicyholderName    *string     `json:"policyholderName"`
	PolicyholderAddress *string     `json:"policyholderAddress"`
	ProviderName        *string     `json:"providerName"`
	ProviderAddress     *string     `json:"providerAddress"`
	PatientName         *string     `json:"patientName"`
	PatientAddress      *string     `json:"patientAddress"`
	BirthDate           *string     `json:"birthDate"`
	TypeOfBill          *string     `json:"typeOfBill"`
	FedTaxNo            *string     `json:"fedTaxNo"`
	StatementPeriod     *string     `json:"statementPeriod"`
	Source              BlockSource `json:"source"`
}

func (b *IdentityBlock) setAttribute(name, value string) {
	v := value
	switch name {
	case "policyNumber":
		b.PolicyNumber = &v
	case "policyholderName":
		b.PolicyholderName = &v
	case "policyholderAddress":
		b.PolicyholderAddress = &v
	case "providerName":
		b.ProviderName = &v
	case "providerAddress":
		b.ProviderAddress = &v
	case "patientName":
		b.PatientName = &v
	case "patientAddress":
		b.PatientAddress = &v
	case "birthDate":
		b.BirthDate = &v
	case "typeOfBill":
		b.TypeOfBill = &v
	case "fedTaxNo":
		b.FedTaxNo = &v
	case "statementPeriod":
		b.StatementPeriod = &v
	}
}

type blockKey struct {
	blockType string
	page      int
}

// identityAccumulator merges duplicate identity-block fields into logical
// blocks keyed by (block type, page). It lives for one mapping pass.
type identityAccumulator struct {
	blocks       map[blockKey]*IdentityBlock
	nextSequence int
}

func newIdentityAccumulator() *identityAccumulator {
	return &identityAccumulator{blocks: make(map[blockKey]*IdentityBlock), nextSequence: 1}
}

// add routes one identity-member observation into its block, creating the
// block on first encounter. Sequence numbers are assigned in encounter order
// and never reused.
func (a *identityAccumulator) add(field FieldDefinition, value string, pageNumber int, fieldID string) {
	key := blockKey{blockType: field.BlockType, page: pageNumber}
	block, ok := a.blocks[key]
	if !ok {
		page := pageNumber
		block = &IdentityBlock{
			BlockType:     field.BlockType,
			Sequence:      a.nextSequence,
			PresentFields: []string{},
			Source:        BlockSource{Page: &page, FieldIDs: []string{}},
		}
		a.nextSequence++
		a.blocks[key] = block
	}
	block.setAttribute(field.BlockAttribute, value)
	block.PresentFields = appendUnique(block.PresentFields, field.Identifier)
	block.Source.FieldIDs = appendUnique(block.Source.FieldIDs, fieldID)
}

// serialize returns the accumulated blocks sorted by sequence.
func (a *identityAccumulator) serialize() []IdentityBlock {
	blocks := make([]IdentityBlock, 0, len(a.blocks))
	for _, block := range a.blocks {
		blocks = append(blocks, *block)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Sequence < blocks[j].Sequence })
	return blocks
}

func appendUnique(values []string, value string) []string {
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}
