package canonical_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policonv/internal/canonical"
	"policonv/internal/domain"
)

func TestOrdered_RegistryShape(t *testing.T) {
	fields := canonical.Ordered()
	assert.Len(t, fields, 54)

	labels := make(map[string]bool)
	identifiers := make(map[string]bool)
	lastOrder := 0
	for _, field := range fields {
		assert.False(t, labels[field.Label], "duplicate label %q", field.Label)
		assert.False(t, identifiers[field.Identifier], "duplicate identifier %q", field.Identifier)
		labels[field.Label] = true
		identifiers[field.Identifier] = true
		assert.Greater(t, field.Order, lastOrder, "orders must be strictly increasing at %q", field.Identifier)
		lastOrder = field.Order
	}
}

func TestByIdentifier(t *testing.T) {
	field, err := canonical.ByIdentifier("POLICY_NUMBER")
	require.NoError(t, err)
	assert.Equal(t, "Policy number", field.Label)
	assert.Equal(t, canonical.GroupGeneralInvoice, field.Group)

	_, err = canonical.ByIdentifier("NOT_A_FIELD")
	assert.ErrorIs(t, err, domain.ErrUnknownField)
}

func TestByLabel(t *testing.T) {
	field, err := canonical.ByLabel("Policy number (CMR)")
	require.NoError(t, err)
	assert.Equal(t, "CMR_POLICY_NUMBER", field.Identifier)
	assert.Equal(t, canonical.GroupCMR, field.Group)

	_, err = canonical.ByLabel("No such label")
	assert.ErrorIs(t, err, domain.ErrUnknownField)
}

func TestIdentityFields(t *testing.T) {
	fields := canonical.IdentityFields()
	require.NotEmpty(t, fields)
	for _, field := range fields {
		assert.True(t, field.IdentityMember)
		assert.NotEmpty(t, field.BlockType)
		assert.NotEmpty(t, field.BlockAttribute)
	}
}

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Policy number", "policynumber"},
		{"Policy  Number:", "policynumber"},
		{"Fed tax no (Box 5)", "fedtaxnobox5"},
		{"  ", ""},
		{"UB-04", "ub04"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, canonical.NormalizeKey(tc.in), "input %q", tc.in)
	}
}
