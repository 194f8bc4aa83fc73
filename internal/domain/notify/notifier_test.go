package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ispledger/internal/core/id"
)

func TestDispatch_SwallowsFailures(t *testing.T) {
	rec := &Recorder{Err: errors.New("redis down")}

	assert.NotPanics(t, func() {
		Dispatch(context.Background(), rec, NewEvent(EventCheckoutCreated, "checkout", id.New()))
	})
	assert.Empty(t, rec.Events)
}

func TestDispatch_NilNotifier(t *testing.T) {
	assert.NotPanics(t, func() {
		Dispatch(context.Background(), nil, NewEvent(EventDebtReturned, "debt", id.New()))
	})
}

func TestEvent_With(t *testing.T) {
	debtA, debtB := id.New(), id.New()
	rec := &Recorder{}

	e := NewEvent(EventSettlementProcessed, "settlement", id.New()).
		With("debt", debtA, debtB).
		ForTechnician("tech-1")
	Dispatch(context.Background(), rec, e)

	require.Len(t, rec.Events, 1)
	assert.Equal(t, []id.ID{debtA, debtB}, rec.Events[0].EntityIDs["debt"])
	assert.Equal(t, "tech-1", rec.Events[0].TechnicianID)
	assert.Equal(t, []EventType{EventSettlementProcessed}, rec.Types())
}
