package domain

import (
	"time"

	"github.com/google/uuid"
)

// Theatre is a venue. Staff roles are scoped to one theatre.
type Theatre struct {
	ID        uuid.UUID
	Name      string
	IsDeleted bool
}

// Screening is one showing of a movie in a theatre hall.
type Screening struct {
	ID           uuid.UUID
	TheatreID    uuid.UUID
	HallID       uuid.UUID
	MovieID      uuid.UUID
	StartingTime time.Time
}

// TicketType is a priced ticket category offered by a theatre.
type TicketType struct {
	ID         uuid.UUID
	TheatreID  uuid.UUID
	Name       string
	Currency   string
	PriceMinor int64
	IsDeleted  bool
}
