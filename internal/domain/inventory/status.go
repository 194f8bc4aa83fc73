package inventory

import (
	"fmt"
	"slices"
)

// UnitStatus is the single logical state a tracked unit occupies.
type UnitStatus string

const (
	UnitAvailable                UnitStatus = "available"
	UnitInTransit                UnitStatus = "in_transit"
	UnitLoaned                   UnitStatus = "loaned"
	UnitInstalled                UnitStatus = "installed"
	UnitDamaged                  UnitStatus = "damaged"
	UnitInRepair                 UnitStatus = "in_repair"
	UnitAwaitingReturnToSupplier UnitStatus = "awaiting_return_to_supplier"
	UnitWrittenOff               UnitStatus = "written_off"
	UnitScrap                    UnitStatus = "scrap"
	UnitLost                     UnitStatus = "lost"
)

// unitTransitions is the complete set of allowed from -> to moves.
// Anything not listed is rejected.
var unitTransitions = map[UnitStatus][]UnitStatus{
	UnitAvailable:                {UnitInTransit, UnitLoaned, UnitAwaitingReturnToSupplier},
	UnitInTransit:                {UnitAvailable},
	UnitLoaned:                   {UnitAvailable, UnitDamaged, UnitScrap, UnitLost, UnitInstalled},
	UnitInstalled:                {UnitAvailable, UnitDamaged, UnitScrap, UnitLost},
	UnitDamaged:                  {UnitInRepair, UnitAwaitingReturnToSupplier, UnitWrittenOff},
	UnitLost:                     {UnitInRepair, UnitAwaitingReturnToSupplier, UnitWrittenOff},
	UnitScrap:                    {UnitInRepair, UnitAwaitingReturnToSupplier, UnitWrittenOff},
	UnitInRepair:                 {UnitAvailable, UnitDamaged, UnitWrittenOff, UnitScrap},
	UnitAwaitingReturnToSupplier: {UnitAvailable, UnitDamaged, UnitWrittenOff, UnitScrap},
	UnitWrittenOff:               {},
}

// ReturnConditions are the states a unit may come back in from the field.
var ReturnConditions = []UnitStatus{UnitAvailable, UnitDamaged, UnitScrap, UnitLost}

// ParseUnitStatus rejects anything outside the closed set.
func ParseUnitStatus(s string) (UnitStatus, error) {
	st := UnitStatus(s)
	if _, ok := unitTransitions[st]; !ok {
		return "", fmt.Errorf("unknown unit status %q", s)
	}
	return st, nil
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to UnitStatus) bool {
	return slices.Contains(unitTransitions[from], to)
}

// IsTerminal reports whether no transition leaves s.
func (s UnitStatus) IsTerminal() bool {
	return len(unitTransitions[s]) == 0
}

// IsValid reports whether s is a known status.
func (s UnitStatus) IsValid() bool {
	_, ok := unitTransitions[s]
	return ok
}

func (s UnitStatus) String() string { return string(s) }
