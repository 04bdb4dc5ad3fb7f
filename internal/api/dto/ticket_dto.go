package dto

import (
	"time"

	"github.com/spec-kit/theatre-service/internal/domain"
)

// IssueTicketRequest payload. OwnerID defaults to the caller.
type IssueTicketRequest struct {
	OwnerID      *string `json:"owner_id"`
	ScreeningID  string  `json:"theatre_screening_id"`
	TicketTypeID string  `json:"ticket_type_id"`
	SeatRow      int     `json:"seat_row"`
	SeatColumn   int     `json:"seat_column"`
}

// TicketResponse describes a ticket.
type TicketResponse struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_user_id"`
	IssuerID     string    `json:"issuer_user_id"`
	ScreeningID  string    `json:"theatre_screening_id"`
	TicketTypeID string    `json:"ticket_type_id"`
	SeatRow      int       `json:"seat_row"`
	SeatColumn   int       `json:"seat_column"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Used         bool      `json:"used"`
}

// IssuedTicketResponse pairs a ticket with its redemption token.
type IssuedTicketResponse struct {
	Ticket    TicketResponse `json:"ticket"`
	TicketJWT string         `json:"ticket_jwt"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:           t.ID.String(),
		OwnerID:      t.OwnerID.String(),
		IssuerID:     t.IssuerID.String(),
		ScreeningID:  t.ScreeningID.String(),
		TicketTypeID: t.TicketTypeID.String(),
		SeatRow:      t.SeatRow,
		SeatColumn:   t.SeatColumn,
		IssuedAt:     t.IssuedAt,
		ExpiresAt:    t.ExpiresAt,
		Used:         t.Used,
	}
}
