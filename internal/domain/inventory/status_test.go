package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ispledger/internal/core/id"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to UnitStatus
		want     bool
	}{
		{UnitAvailable, UnitLoaned, true},
		{UnitAvailable, UnitInTransit, true},
		{UnitAvailable, UnitInstalled, false},
		{UnitInTransit, UnitAvailable, true},
		{UnitLoaned, UnitInstalled, true},
		{UnitLoaned, UnitLost, true},
		{UnitLoaned, UnitInRepair, false},
		{UnitInstalled, UnitLoaned, false},
		{UnitDamaged, UnitInRepair, true},
		{UnitDamaged, UnitAvailable, false},
		{UnitLost, UnitWrittenOff, true},
		{UnitInRepair, UnitAvailable, true},
		{UnitAwaitingReturnToSupplier, UnitScrap, true},
		{UnitWrittenOff, UnitAvailable, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestUnitStatus_Terminal(t *testing.T) {
	assert.True(t, UnitWrittenOff.IsTerminal())
	assert.False(t, UnitScrap.IsTerminal())
	assert.False(t, UnitAvailable.IsTerminal())
}

func TestParseUnitStatus(t *testing.T) {
	st, err := ParseUnitStatus("awaiting_return_to_supplier")
	require.NoError(t, err)
	assert.Equal(t, UnitAwaitingReturnToSupplier, st)

	_, err = ParseUnitStatus("borrowed")
	assert.Error(t, err)
}

func TestLocation_Apply(t *testing.T) {
	wh := id.New()
	u := &TrackedUnit{WarehouseID: &wh}

	Unchanged().apply(u)
	require.NotNil(t, u.WarehouseID)

	InField().apply(u)
	assert.Nil(t, u.WarehouseID)

	AtWarehouse(wh).apply(u)
	require.NotNil(t, u.WarehouseID)
	assert.Equal(t, wh, *u.WarehouseID)
}
