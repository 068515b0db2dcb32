package appointment

import (
	"context"
	"time"
)

// EventType names the kind of change an [Event] reports.
type EventType string

const (
	EventCreated   EventType = "appointment.created"
	EventUpdated   EventType = "appointment.updated"
	EventCancelled EventType = "appointment.cancelled"
	EventDeleted   EventType = "appointment.deleted"
)

// Subject returns the customer-facing subject line for the event type.
func (t EventType) Subject() string {
	switch t {
	case EventCreated:
		return "Appointment Confirmation"
	case EventCancelled, EventDeleted:
		return "Appointment Cancelled"
	default:
		return "Appointment Updated"
	}
}

// Event describes a completed change to an appointment. It is published after
// the store write succeeds.
type Event struct {
	ID          string      `json:"id"`
	Type        EventType   `json:"type"`
	Subject     string      `json:"subject"`
	TenantID    string      `json:"tenantId"`
	Appointment Appointment `json:"appointment"`
	OccurredAt  time.Time   `json:"occurredAt"`
}

// Notifier publishes appointment events, for example to a queue that drives
// customer emails.
type Notifier interface {
	Notify(ctx context.Context, event *Event) error
}
