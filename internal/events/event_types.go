package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered     EventType = "user_registered"
	EventTicketIssued       EventType = "ticket_issued"
	EventTicketUsageChanged EventType = "ticket_usage_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        uuid.UUID   `json:"id"`
	Type      EventType   `json:"type"`
	ActorID   uuid.UUID   `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserRegisteredPayload carries what the verification mail needs.
type UserRegisteredPayload struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	Username  string    `json:"username"`
}

// TicketIssuedPayload payload.
type TicketIssuedPayload struct {
	TicketID    uuid.UUID `json:"ticket_id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	ScreeningID uuid.UUID `json:"screening_id"`
	TheatreID   uuid.UUID `json:"theatre_id"`
}

// TicketUsageChangedPayload payload.
type TicketUsageChangedPayload struct {
	TicketID uuid.UUID `json:"ticket_id"`
	Used     bool      `json:"used"`
	Previous bool      `json:"previous"`
}
