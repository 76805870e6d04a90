package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choreolang/choreo/internal/ir"
)

const dealSchema = `
Offer: {amount: int, currency: string}
Accept: {final: int}
Reject: {reason: string}
`

func TestLoadAndTypeNames(t *testing.T) {
	s, err := Load(dealSchema)
	require.NoError(t, err)

	assert.Equal(t, []string{"Accept", "Offer", "Reject"}, s.TypeNames())
	assert.True(t, s.Has("Offer"))
	assert.False(t, s.Has("Counter"))
}

func TestLoadRejectsBadCUE(t *testing.T) {
	_, err := Load(`Offer: {amount: int` /* unbalanced */)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.cue")
	require.NoError(t, os.WriteFile(path, []byte(dealSchema), 0o644))

	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, s.Has("Reject"))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}

func TestValidateValue(t *testing.T) {
	s, err := Load(dealSchema)
	require.NoError(t, err)

	tests := []struct {
		name    string
		typeRef string
		value   any
		code    string // empty = valid
	}{
		{"conforming offer", "Offer", map[string]any{"amount": 100, "currency": "EUR"}, ""},
		{"wrong field type", "Offer", map[string]any{"amount": "lots", "currency": "EUR"}, ErrValueMismatch},
		{"missing field", "Offer", map[string]any{"amount": 100}, ErrValueMismatch},
		{"undeclared type", "Counter", map[string]any{"amount": 100}, ErrUndeclaredType},
		{"conforming reject", "Reject", map[string]any{"reason": "too low"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ValidateValue(tt.typeRef, tt.value)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var se *Error
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.code, se.Code)
			assert.Equal(t, tt.typeRef, se.TypeRef)
		})
	}
}

func TestCheckProtocol(t *testing.T) {
	s, err := Load(dealSchema)
	require.NoError(t, err)

	declared := &ir.GlobalProtocol{
		Name:  "Deal",
		Roles: []ir.Role{"Buyer", "Seller"},
		Body: &ir.GMessage{From: "Buyer", To: "Seller", Payload: "Offer",
			Cont: &ir.GChoice{Decider: "Seller", Branches: []ir.GBranch{
				{Label: "accept", Body: &ir.GMessage{From: "Seller", To: "Buyer",
					Payload: "Accept", Cont: &ir.GEnd{}}},
				{Label: "reject", Body: &ir.GMessage{From: "Seller", To: "Buyer",
					Payload: "Reject", Cont: &ir.GEnd{}}},
			}}},
	}
	assert.NoError(t, s.CheckProtocol(declared))

	undeclared := &ir.GlobalProtocol{
		Name:  "Deal",
		Roles: []ir.Role{"Buyer", "Seller"},
		Body: &ir.GRec{Label: "t",
			Body: &ir.GMessage{From: "Buyer", To: "Seller", Payload: "Counter",
				Cont: &ir.GVar{Label: "t"}}},
	}
	err = s.CheckProtocol(undeclared)
	require.Error(t, err)

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrUndeclaredType, se.Code)
	assert.Equal(t, "Counter", se.TypeRef)
}
