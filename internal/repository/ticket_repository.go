package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/theatre-service/internal/domain"
)

// TicketFilter captures theatre-scoped ticket search parameters.
type TicketFilter struct {
	TheatreID    uuid.UUID
	OwnerID      *uuid.UUID
	IssuerID     *uuid.UUID
	ScreeningID  *uuid.UUID
	TicketTypeID *uuid.UUID
	HallID       *uuid.UUID
	MovieID      *uuid.UUID
	Used         *bool
	Limit        int
	Offset       int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	CreateCapped(ctx context.Context, ticket *domain.Ticket, limit int) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	GetInTheatre(ctx context.Context, id, theatreID uuid.UUID) (*domain.Ticket, error)
	SetUsed(ctx context.Context, id uuid.UUID, used bool) (bool, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `t.id, t.owner_user_id, t.issuer_user_id, t.theatre_screening_id, t.ticket_type_id,
               t.seat_row, t.seat_column, t.issued_at, t.expires_at, t.used`

// CreateCapped inserts the ticket. When limit is positive the owner's ticket
// count for the screening is checked under a transaction-scoped advisory
// lock, and ErrLimitReached is returned once it reaches limit.
func (r *ticketRepository) CreateCapped(ctx context.Context, ticket *domain.Ticket, limit int) error {
	const lock = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
	const count = `
        SELECT COUNT(*) FROM tickets
        WHERE owner_user_id=$1 AND theatre_screening_id=$2`
	const insert = `
        INSERT INTO tickets (owner_user_id, issuer_user_id, theatre_screening_id, ticket_type_id,
                             seat_row, seat_column, issued_at, expires_at, used)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,false)
        RETURNING id`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if limit > 0 {
		key := ticket.OwnerID.String() + ":" + ticket.ScreeningID.String()
		if _, err := tx.Exec(ctx, lock, key); err != nil {
			return err
		}
		var owned int
		if err := tx.QueryRow(ctx, count, ticket.OwnerID, ticket.ScreeningID).Scan(&owned); err != nil {
			return err
		}
		if owned >= limit {
			return ErrLimitReached
		}
	}

	if err := tx.QueryRow(ctx, insert,
		ticket.OwnerID,
		ticket.IssuerID,
		ticket.ScreeningID,
		ticket.TicketTypeID,
		ticket.SeatRow,
		ticket.SeatColumn,
		ticket.IssuedAt,
		ticket.ExpiresAt,
	).Scan(&ticket.ID); err != nil {
		return err
	}
	ticket.Used = false
	return tx.Commit(ctx)
}

func (r *ticketRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

// GetInTheatre loads the ticket only if its screening belongs to theatreID.
func (r *ticketRepository) GetInTheatre(ctx context.Context, id, theatreID uuid.UUID) (*domain.Ticket, error) {
	const query = `
        SELECT ` + ticketColumns + `
        FROM tickets t
        JOIN theatre_screenings s ON s.id = t.theatre_screening_id
        JOIN theatres th ON th.id = s.theatre_id
        WHERE t.id=$1 AND s.theatre_id=$2 AND th.is_deleted=false`
	return scanTicket(r.pool.QueryRow(ctx, query, id, theatreID))
}

// SetUsed writes the flag under a row lock and returns its previous value.
func (r *ticketRepository) SetUsed(ctx context.Context, id uuid.UUID, used bool) (bool, error) {
	const query = `
        WITH prev AS (
            SELECT id, used FROM tickets WHERE id=$2 FOR UPDATE
        )
        UPDATE tickets t SET used=$1
        FROM prev WHERE t.id = prev.id
        RETURNING prev.used`
	var previous bool
	if err := r.pool.QueryRow(ctx, query, used, id).Scan(&previous); err != nil {
		return false, err
	}
	return previous, nil
}

func (r *ticketRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Ticket, error) {
	const query = `
        SELECT ` + ticketColumns + `
        FROM tickets t WHERE t.owner_user_id=$1
        ORDER BY t.issued_at DESC`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + `
             FROM tickets t
             JOIN theatre_screenings s ON s.id = t.theatre_screening_id`
	args := []any{filter.TheatreID}
	clauses := []string{"s.theatre_id=$1"}

	eq := func(column string, value *uuid.UUID) {
		if value == nil {
			return
		}
		args = append(args, *value)
		clauses = append(clauses, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	eq("t.owner_user_id", filter.OwnerID)
	eq("t.issuer_user_id", filter.IssuerID)
	eq("t.theatre_screening_id", filter.ScreeningID)
	eq("t.ticket_type_id", filter.TicketTypeID)
	eq("s.hall_id", filter.HallID)
	eq("s.movie_id", filter.MovieID)
	if filter.Used != nil {
		args = append(args, *filter.Used)
		clauses = append(clauses, fmt.Sprintf("t.used=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY t.issued_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.OwnerID,
		&ticket.IssuerID,
		&ticket.ScreeningID,
		&ticket.TicketTypeID,
		&ticket.SeatRow,
		&ticket.SeatColumn,
		&ticket.IssuedAt,
		&ticket.ExpiresAt,
		&ticket.Used,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
