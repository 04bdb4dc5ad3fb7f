package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/theatre-service/internal/auth"
	"github.com/spec-kit/theatre-service/internal/authz"
	"github.com/spec-kit/theatre-service/internal/domain"
	"github.com/spec-kit/theatre-service/internal/events"
	"github.com/spec-kit/theatre-service/internal/repository"
	apperrors "github.com/spec-kit/theatre-service/pkg/util/errorutil"
)

// ExpiryPolicy decides when a ticket for screening stops admitting its holder.
type ExpiryPolicy func(screening *domain.Screening, issuedAt time.Time) time.Time

// ValidAfterStart keeps tickets valid for d after the screening starts.
func ValidAfterStart(d time.Duration) ExpiryPolicy {
	return func(screening *domain.Screening, _ time.Time) time.Time {
		return screening.StartingTime.Add(d)
	}
}

// TicketLedger issues, redeems and marks tickets.
type TicketLedger struct {
	tickets        repository.TicketRepository
	screenings     repository.ScreeningRepository
	theatres       repository.TheatreRepository
	users          repository.UserRepository
	resolver       *authz.Resolver
	tokens         *auth.TokenCodec
	dispatcher     events.Dispatcher
	expiry         ExpiryPolicy
	selfIssueLimit int
	now            func() time.Time
}

// TicketDependencies encapsulates requirements for the ledger.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	ScreeningRepo  repository.ScreeningRepository
	TheatreRepo    repository.TheatreRepository
	UserRepo       repository.UserRepository
	Resolver       *authz.Resolver
	Tokens         *auth.TokenCodec
	Dispatcher     events.Dispatcher
	Expiry         ExpiryPolicy
	SelfIssueLimit int
	Now            func() time.Time
}

// IssueInput describes a ticket request. A nil OwnerID issues to the caller.
type IssueInput struct {
	TheatreID    uuid.UUID
	OwnerID      *uuid.UUID
	ScreeningID  uuid.UUID
	TicketTypeID uuid.UUID
	SeatRow      int
	SeatColumn   int
}

// IssuedTicket pairs a ticket with its redemption token.
type IssuedTicket struct {
	Ticket *domain.Ticket
	Token  string
}

// NewTicketLedger builds the ledger. Expiry defaults to three hours after
// the screening starts and SelfIssueLimit to three tickets.
func NewTicketLedger(deps TicketDependencies) *TicketLedger {
	l := &TicketLedger{
		tickets:        deps.TicketRepo,
		screenings:     deps.ScreeningRepo,
		theatres:       deps.TheatreRepo,
		users:          deps.UserRepo,
		resolver:       deps.Resolver,
		tokens:         deps.Tokens,
		dispatcher:     deps.Dispatcher,
		expiry:         deps.Expiry,
		selfIssueLimit: deps.SelfIssueLimit,
		now:            deps.Now,
	}
	if l.expiry == nil {
		l.expiry = ValidAfterStart(3 * time.Hour)
	}
	if l.selfIssueLimit <= 0 {
		l.selfIssueLimit = 3
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Issue creates a ticket. Issuing to someone else needs TheatreOwner or
// TicketManager in the screening's theatre and is not capped; self-issued
// tickets are capped per owner and screening.
func (l *TicketLedger) Issue(ctx context.Context, issuer *domain.User, in IssueInput) (*IssuedTicket, error) {
	if issuer == nil {
		return nil, apperrors.NewNoAuth("authentication required")
	}
	if in.SeatRow < 0 || in.SeatColumn < 0 {
		return nil, apperrors.NewValidationError("seat position must not be negative",
			map[string]any{"seat_row": in.SeatRow, "seat_column": in.SeatColumn})
	}

	screening, err := l.screenings.GetByID(ctx, in.ScreeningID)
	if err != nil {
		return nil, notFoundOr(err, "screening")
	}
	if in.TheatreID != uuid.Nil && screening.TheatreID != in.TheatreID {
		return nil, apperrors.NewNotFound("screening", nil)
	}
	ticketType, err := l.screenings.GetTicketType(ctx, in.TicketTypeID)
	if err != nil {
		return nil, notFoundOr(err, "ticket type")
	}
	if ticketType.TheatreID != screening.TheatreID {
		return nil, apperrors.NewNotFound("ticket type", nil)
	}

	ownerID := issuer.ID
	limit := l.selfIssueLimit
	if in.OwnerID != nil && *in.OwnerID != issuer.ID {
		if err := l.resolver.AuthorizeAny(ctx, issuer, screening.TheatreID,
			domain.RoleTheatreOwner, domain.RoleTicketManager); err != nil {
			return nil, err
		}
		if _, err := l.users.GetByID(ctx, *in.OwnerID); err != nil {
			return nil, notFoundOr(err, "user")
		}
		ownerID = *in.OwnerID
		limit = 0
	} else if issuer.IsDeleted {
		return nil, apperrors.NewForbidden("account deleted")
	}

	now := l.now()
	expiresAt := l.expiry(screening, now)
	if expiresAt.Before(now) {
		return nil, apperrors.NewInvalid("screening no longer admits tickets")
	}

	ticket := &domain.Ticket{
		OwnerID:      ownerID,
		IssuerID:     issuer.ID,
		ScreeningID:  screening.ID,
		TicketTypeID: ticketType.ID,
		SeatRow:      in.SeatRow,
		SeatColumn:   in.SeatColumn,
		IssuedAt:     now,
		ExpiresAt:    expiresAt,
	}
	if err := l.tickets.CreateCapped(ctx, ticket, limit); err != nil {
		if errors.Is(err, repository.ErrLimitReached) {
			return nil, apperrors.NewForbidden(fmt.Sprintf("at most %d self-issued tickets per screening", limit))
		}
		return nil, apperrors.NewInternalError(err)
	}

	token, _, err := l.tokens.IssueTicket(ticket)
	if err != nil {
		return nil, err
	}

	l.publish(ctx, events.EventTicketIssued, issuer.ID, events.TicketIssuedPayload{
		TicketID:    ticket.ID,
		OwnerID:     ticket.OwnerID,
		ScreeningID: ticket.ScreeningID,
		TheatreID:   screening.TheatreID,
	})
	return &IssuedTicket{Ticket: ticket, Token: token}, nil
}

// Redeem verifies a ticket token for theatreID on behalf of actor, who needs
// TheatreOwner or TicketChecker there. Usage state is not changed.
func (l *TicketLedger) Redeem(ctx context.Context, actor *domain.User, theatreID uuid.UUID, token string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewNoAuth("authentication required")
	}
	claims, err := l.tokens.Verify(domain.TokenKindTicket, token)
	if err != nil {
		return nil, err
	}

	ticket, err := l.tickets.GetInTheatre(ctx, claims.ID, theatreID)
	if err != nil {
		return nil, notFoundOr(err, "ticket")
	}
	if err := l.resolver.AuthorizeAny(ctx, actor, theatreID,
		domain.RoleTheatreOwner, domain.RoleTicketChecker); err != nil {
		return nil, err
	}
	if ticket.ExpiredAt(l.now()) {
		return nil, apperrors.NewExpired("ticket expired")
	}
	return ticket, nil
}

// Mark sets the used flag of ticketID. Marking with the current value is a no-op.
func (l *TicketLedger) Mark(ctx context.Context, actorID, ticketID uuid.UUID, used bool) (bool, error) {
	previous, err := l.tickets.SetUsed(ctx, ticketID, used)
	if err != nil {
		return false, notFoundOr(err, "ticket")
	}
	if previous != used {
		l.publish(ctx, events.EventTicketUsageChanged, actorID, events.TicketUsageChangedPayload{
			TicketID: ticketID,
			Used:     used,
			Previous: previous,
		})
	}
	return previous, nil
}

// SetUsage redeems token and then marks the ticket.
func (l *TicketLedger) SetUsage(ctx context.Context, actor *domain.User, theatreID uuid.UUID, token string, used bool) (*domain.Ticket, error) {
	ticket, err := l.Redeem(ctx, actor, theatreID, token)
	if err != nil {
		return nil, err
	}
	if _, err := l.Mark(ctx, actor.ID, ticket.ID, used); err != nil {
		return nil, err
	}
	ticket.Used = used
	return ticket, nil
}

// Consume redeems token and marks the ticket used in one step. A ticket
// that was already used yields a conflict.
func (l *TicketLedger) Consume(ctx context.Context, actor *domain.User, theatreID uuid.UUID, token string) (*domain.Ticket, error) {
	ticket, err := l.Redeem(ctx, actor, theatreID, token)
	if err != nil {
		return nil, err
	}
	previous, err := l.Mark(ctx, actor.ID, ticket.ID, true)
	if err != nil {
		return nil, err
	}
	if previous {
		return nil, apperrors.NewConflict("ticket already used", map[string]any{"ticket_id": ticket.ID})
	}
	ticket.Used = true
	return ticket, nil
}

// Query lists tickets of a theatre for TheatreOwner or TicketManager holders.
func (l *TicketLedger) Query(ctx context.Context, actor *domain.User, filter repository.TicketFilter) ([]domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewNoAuth("authentication required")
	}
	if _, err := l.theatres.GetByID(ctx, filter.TheatreID); err != nil {
		return nil, notFoundOr(err, "theatre")
	}
	if err := l.resolver.AuthorizeAny(ctx, actor, filter.TheatreID,
		domain.RoleTheatreOwner, domain.RoleTicketManager); err != nil {
		return nil, err
	}
	tickets, err := l.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return tickets, nil
}

// Owned lists the user's tickets, each with a fresh redemption token.
func (l *TicketLedger) Owned(ctx context.Context, user *domain.User) ([]IssuedTicket, error) {
	if user == nil {
		return nil, apperrors.NewNoAuth("authentication required")
	}
	tickets, err := l.tickets.ListByOwner(ctx, user.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	out := make([]IssuedTicket, 0, len(tickets))
	for i := range tickets {
		ticket := tickets[i]
		token, _, err := l.tokens.IssueTicket(&ticket)
		if err != nil {
			return nil, err
		}
		out = append(out, IssuedTicket{Ticket: &ticket, Token: token})
	}
	return out, nil
}

// publish notifies subscribers; the ticket change is already committed, so
// handler failures are not returned to the caller.
func (l *TicketLedger) publish(ctx context.Context, eventType events.EventType, actorID uuid.UUID, payload any) {
	if l.dispatcher == nil {
		return
	}
	_ = l.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.New(),
		Type:      eventType,
		ActorID:   actorID,
		Timestamp: l.now(),
		Payload:   payload,
	})
}

func notFoundOr(err error, resource string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, nil)
	}
	return apperrors.NewInternalError(err)
}
