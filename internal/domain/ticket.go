package domain

import (
	"time"

	"github.com/google/uuid"
)

// Ticket is an issued seat for one screening. Tickets are never deleted;
// only Used changes after creation.
type Ticket struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	IssuerID     uuid.UUID
	ScreeningID  uuid.UUID
	TicketTypeID uuid.UUID
	SeatRow      int
	SeatColumn   int
	IssuedAt     time.Time
	ExpiresAt    time.Time
	Used         bool
}

// ExpiredAt reports whether the ticket can no longer be redeemed at now.
func (t *Ticket) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
