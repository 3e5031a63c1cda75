package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func referenceSet() []DataType {
	return []DataType{
		{ID: 1, Label: "temperature", Unit: "C"},
		{ID: 2, Label: "salinity", Unit: "psu"},
		{ID: 3, Label: "CTD-TMP#1", Unit: "C"},
		{ID: 4, Label: "CTD TMP 1", Unit: "C"},
		{ID: 5, Label: "oxygen", Unit: "umol/kg"},
	}
}

func TestSanitizeAlias(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain label", "temperature", "temperature"},
		{"punctuation stripped", "CTD-TMP#1", "CTDTMP1"},
		{"spaces stripped", "CTD TMP 1", "CTDTMP1"},
		{"only punctuation", "##--!!", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeAlias(tt.input))
		})
	}
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry(referenceSet())

	t.Run("resolves in request order", func(t *testing.T) {
		resolved, err := reg.Resolve([]string{"salinity", "temperature"})
		require.NoError(t, err)
		require.Len(t, resolved, 2)
		assert.Equal(t, ResolvedType{Name: "salinity", TypeID: 2, Alias: "salinity"}, resolved[0])
		assert.Equal(t, ResolvedType{Name: "temperature", TypeID: 1, Alias: "temperature"}, resolved[1])
	})

	t.Run("empty request defaults to temperature", func(t *testing.T) {
		resolved, err := reg.Resolve(nil)
		require.NoError(t, err)
		require.Len(t, resolved, 1)
		assert.Equal(t, "temperature", resolved[0].Name)
		assert.Equal(t, int64(1), resolved[0].TypeID)
	})

	t.Run("sanitizes punctuated label", func(t *testing.T) {
		resolved, err := reg.Resolve([]string{"CTD-TMP#1"})
		require.NoError(t, err)
		assert.Equal(t, "CTDTMP1", resolved[0].Alias)
		assert.Equal(t, "CTDTMP1_value", resolved[0].Column())
	})

	t.Run("unknown label", func(t *testing.T) {
		_, err := reg.Resolve([]string{"temperature", "chlorophyll"})
		var unknown *UnknownMeasurementTypeError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "chlorophyll", unknown.Name)
	})

	t.Run("distinct labels colliding on alias", func(t *testing.T) {
		_, err := reg.Resolve([]string{"CTD-TMP#1", "CTD TMP 1"})
		var dup *DuplicateAliasError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "CTDTMP1", dup.Alias)
		assert.Equal(t, "CTD-TMP#1", dup.First)
		assert.Equal(t, "CTD TMP 1", dup.Second)
	})

	t.Run("exact duplicate collapsed", func(t *testing.T) {
		resolved, err := reg.Resolve([]string{"oxygen", "oxygen"})
		require.NoError(t, err)
		assert.Len(t, resolved, 1)
	})

	t.Run("nothing left after sanitization", func(t *testing.T) {
		_, err := reg.Resolve([]string{"##--", "!!"})
		assert.True(t, errors.Is(err, ErrEmptyTypeSet))
	})

	t.Run("collision check runs before lookup", func(t *testing.T) {
		// Both labels are unknown, but the alias collision is a
		// configuration error and must win.
		_, err := reg.Resolve([]string{"no-such#type", "no such type"})
		var dup *DuplicateAliasError
		assert.ErrorAs(t, err, &dup)
	})
}
