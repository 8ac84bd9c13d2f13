// Package events publishes the audit feed consumed by external
// reporting collaborators: appointment-created, appointment-status-changed
// and reminder-fired.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	AppointmentCreated       EventType = "appointment.created"
	AppointmentStatusChanged EventType = "appointment.status_changed"
	ReminderFired            EventType = "reminder.fired"
)

type Event struct {
	Type           EventType `json:"type"`
	AppointmentID  uuid.UUID `json:"appointment_id"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	NewStatus      string    `json:"new_status,omitempty"`
	Threshold      string    `json:"threshold,omitempty"`
	ActorID        uuid.UUID `json:"actor_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher drops events. Used when no broker is configured and in
// tests that do not assert on the audit feed.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
