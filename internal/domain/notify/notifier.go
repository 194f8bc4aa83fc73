// Package notify defines the post-commit notification contract.
//
// Notifications are fire-and-forget: they are sent only after a unit of work
// has committed, and a delivery failure never affects the ledger state.
package notify

import (
	"context"
	"time"

	"ispledger/internal/core/id"
	"ispledger/pkg/logger"
)

// EventType names a ledger event.
type EventType string

const (
	EventCheckoutCreated       EventType = "checkout.created"
	EventCheckoutLimitExceeded EventType = "checkout.limit_exceeded"
	EventDebtReturned          EventType = "debt.returned"
	EventDebtWrittenOff        EventType = "debt.written_off"
	EventSettlementProcessed   EventType = "settlement.processed"
	EventInstallationCreated   EventType = "installation.created"
	EventInstallationRemoved   EventType = "installation.removed"
	EventInstallationReplaced  EventType = "installation.replaced"
	EventUnitWrittenOff        EventType = "unit.written_off"
)

// Event is what collaborators receive: a type plus the affected entity IDs.
type Event struct {
	Type EventType `json:"type"`
	// AggregateType is the primary entity kind, e.g. "checkout" or "tracked_unit".
	AggregateType string `json:"aggregateType"`
	AggregateID   id.ID  `json:"aggregateId"`
	// EntityIDs lists every other row touched, keyed by kind.
	EntityIDs    map[string][]id.ID `json:"entityIds,omitempty"`
	TechnicianID string             `json:"technicianId,omitempty"`
	OccurredAt   time.Time          `json:"occurredAt"`
}

// NewEvent builds an Event stamped with the current time.
func NewEvent(t EventType, aggregateType string, aggregateID id.ID) Event {
	return Event{
		Type:          t,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EntityIDs:     make(map[string][]id.ID),
		OccurredAt:    time.Now().UTC(),
	}
}

// With appends related IDs under kind.
func (e Event) With(kind string, ids ...id.ID) Event {
	if e.EntityIDs == nil {
		e.EntityIDs = make(map[string][]id.ID)
	}
	e.EntityIDs[kind] = append(e.EntityIDs[kind], ids...)
	return e
}

// ForTechnician sets the technician the event concerns.
func (e Event) ForTechnician(technicianID string) Event {
	e.TechnicianID = technicianID
	return e
}

// Notifier delivers events to the notification collaborator.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Dispatch sends events one by one, logging and swallowing failures.
// Call it only after the unit of work has committed. A nil notifier is a no-op.
func Dispatch(ctx context.Context, n Notifier, events ...Event) {
	if n == nil {
		return
	}
	for _, e := range events {
		if err := n.Notify(ctx, e); err != nil {
			logger.Warn(ctx, "notification failed",
				"event_type", e.Type,
				"aggregate_id", e.AggregateID,
				"error", err,
			)
		}
	}
}

// Recorder keeps events in memory. Used by tests and the scenario suite.
type Recorder struct {
	Events []Event
	Err    error
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, e Event) error {
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, e)
	return nil
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []EventType {
	out := make([]EventType, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Type)
	}
	return out
}
