package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		lead    Lead
		wantErr string
	}{
		{"valid", Lead{ID: "12.345.678/0001-90", Name: "Padaria Pão Quente", Address: "Rua A, 10"}, ""},
		{"empty id", Lead{ID: "  ", Name: "X", Address: "Y"}, "identifier is empty"},
		{"bad char", Lead{ID: "abc;drop", Name: "X", Address: "Y"}, "invalid character"},
		{"empty name", Lead{ID: "1", Name: "...", Address: "Y"}, "name is empty"},
		{"empty address", Lead{ID: "1", Name: "X", Address: ""}, "address is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.lead.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			var ve *ValidationError
			assert.True(t, errors.As(err, &ve))
			assert.True(t, IsValidation(err))
		})
	}
}

func TestLeadValidate_LongIdentifier(t *testing.T) {
	t.Parallel()
	id := make([]byte, 129)
	for i := range id {
		id[i] = 'a'
	}
	err := Lead{ID: string(id), Name: "X", Address: "Y"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "longer than 128")
}

func TestNormalizeKeyPart(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "sao paulo sp", NormalizeKeyPart("  São Paulo, SP. "))
	assert.Equal(t, "sao paulo sp", NormalizeKeyPart("sao   paulo\tsp"))
	assert.Equal(t, "saopaulo", NormalizeKeyPart("São-Paulo"))
	assert.Equal(t, "12345678000190", NormalizeKeyPart("12.345.678/0001-90"))
	assert.Equal(t, "", NormalizeKeyPart(" ,.; "))
	assert.Equal(t, "cafe 123", NormalizeKeyPart(NormalizeKeyPart("Café #123")))
}

func TestFingerprint_FormattingInvariant(t *testing.T) {
	t.Parallel()

	a := Lead{ID: "ABC-1", Name: "Padaria São João", Address: "Av. Paulista, 1000"}
	b := Lead{ID: "abc1", Name: "  padaria sao joao ", Address: "av paulista 1000", Phone: "11 99999-0000"}
	c := Lead{ID: "abc-1", Name: "Padaria São José", Address: "Av. Paulista, 1000"}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)
}

func TestFingerprint_FormattedTaxID(t *testing.T) {
	t.Parallel()

	formatted := Lead{ID: "12.345.678/0001-90", Name: "Padaria Pão Quente", Address: "Rua A, 10"}
	plain := Lead{ID: "12345678000190", Name: "padaria pao quente", Address: "rua a 10"}

	assert.Equal(t, NormalizeKeyPart(formatted.ID), NormalizeKeyPart(plain.ID))
	assert.Equal(t, formatted.Fingerprint(), plain.Fingerprint())
}

func TestFullAddress(t *testing.T) {
	t.Parallel()
	l := Lead{Address: "Rua A, 10", City: "Campinas", State: " SP "}
	assert.Equal(t, "Rua A, 10, Campinas, SP", l.FullAddress())
	assert.Equal(t, "Rua B", Lead{Address: "Rua B"}.FullAddress())
}
