/*
events.go - Domain events emitted after a committed write

PURPOSE:
  Other systems (payroll exports, notifications) react to schedule changes
  without polling. Services publish an Event once their transaction has
  committed. Publishing is best effort: a failed publish is logged and
  never undoes or fails the write that caused it.

EVENT TYPES:
  shift.created, shift.updated, shift.hidden, shift.deleted
  exchange.requested, exchange.decided
  plan.copied
  attendance.recorded, attendance.deleted, attendance.missing

PUBLISHERS:
  LogPublisher  Writes events to the structured log (default)
  SQSPublisher  Sends events to an SQS queue as JSON
  Multi         Fans out to several publishers

SEE ALSO:
  - schedule/: the services that publish
*/
package events

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/warp/worktrack/core"
)

const (
	ShiftCreated       = "shift.created"
	ShiftUpdated       = "shift.updated"
	ShiftHidden        = "shift.hidden"
	ShiftDeleted       = "shift.deleted"
	ExchangeRequested  = "exchange.requested"
	ExchangeDecided    = "exchange.decided"
	PlanCopied         = "plan.copied"
	AttendanceRecorded = "attendance.recorded"
	AttendanceDeleted  = "attendance.deleted"
	AttendanceMissing  = "attendance.missing"
)

// Event is the envelope published for every domain change.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	ActorID    core.EmployeeID `json:"actor_id"`
	Payload    map[string]any  `json:"payload,omitempty"`
}

// New stamps a ULID and the current time.
func New(typ string, actor core.Actor, payload map[string]any) Event {
	return Event{
		ID:         ulid.Make().String(),
		Type:       typ,
		OccurredAt: time.Now().UTC(),
		ActorID:    actor.EmployeeID,
		Payload:    payload,
	}
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Emit publishes and logs failures. It never returns an error: the write
// that produced e has already committed.
func Emit(ctx context.Context, p Publisher, log logrus.FieldLogger, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"event_id":   e.ID,
			"event_type": e.Type,
		}).Warn("failed to publish event")
	}
}

// =============================================================================
// PUBLISHERS
// =============================================================================

// LogPublisher writes each event as a structured log line.
type LogPublisher struct {
	Log logrus.FieldLogger
}

func (p LogPublisher) Publish(_ context.Context, e Event) error {
	p.Log.WithFields(logrus.Fields{
		"event_id":   e.ID,
		"event_type": e.Type,
		"actor_id":   e.ActorID,
		"payload":    e.Payload,
	}).Info("domain event")
	return nil
}

// Multi publishes to every publisher and returns the first error.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
