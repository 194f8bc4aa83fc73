package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantity_Value(t *testing.T) {
	q := NewQuantity(3)
	assert.True(t, q.Value(MustMoney("50000")).Equal(MustMoney("150000")))

	metres := NewQuantityFromFloat64(120.5)
	assert.True(t, metres.Value(MustMoney("2000")).Equal(MustMoney("241000")))
}

func TestQuantity_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Quantity
	}{
		{"integer", `3`, NewQuantity(3)},
		{"fraction", `1.25`, Quantity(12_500)},
		{"string", `"305"`, NewQuantity(305)},
		{"truncates", `0.123456`, Quantity(1_234)},
		{"null", `null`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q Quantity
			require.NoError(t, json.Unmarshal([]byte(tt.in), &q))
			assert.Equal(t, tt.want, q)
		})
	}
}

func TestQuantity_IsNegligible(t *testing.T) {
	assert.True(t, Quantity(0).IsNegligible())
	assert.True(t, QuantityEpsilon.IsNegligible())
	assert.False(t, Quantity(2).IsNegligible())
}

func TestNewQuantityFromDecimal(t *testing.T) {
	assert.Equal(t, Quantity(12_346), NewQuantityFromDecimal(MustMoney("1.23456")))
	assert.Equal(t, "185.0000", NewQuantityFromDecimal(MustMoney("185")).String())
}
