package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/theatre-service/internal/domain"
)

// ScreeningRepository reads screenings and the ticket types sold for them.
type ScreeningRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Screening, error)
	GetTicketType(ctx context.Context, id uuid.UUID) (*domain.TicketType, error)
}

type screeningRepository struct {
	pool *pgxpool.Pool
}

// NewScreeningRepository builds the repository.
func NewScreeningRepository(pool *pgxpool.Pool) ScreeningRepository {
	return &screeningRepository{pool: pool}
}

func (r *screeningRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Screening, error) {
	const query = `
        SELECT s.id, s.theatre_id, s.hall_id, s.movie_id, s.starting_time
        FROM theatre_screenings s
        JOIN theatres t ON t.id = s.theatre_id
        WHERE s.id=$1 AND t.is_deleted=false`
	var screening domain.Screening
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&screening.ID,
		&screening.TheatreID,
		&screening.HallID,
		&screening.MovieID,
		&screening.StartingTime,
	); err != nil {
		return nil, err
	}
	return &screening, nil
}

func (r *screeningRepository) GetTicketType(ctx context.Context, id uuid.UUID) (*domain.TicketType, error) {
	const query = `
        SELECT id, theatre_id, name, currency, price_minor, is_deleted
        FROM ticket_types WHERE id=$1 AND is_deleted=false`
	var tt domain.TicketType
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&tt.ID,
		&tt.TheatreID,
		&tt.Name,
		&tt.Currency,
		&tt.PriceMinor,
		&tt.IsDeleted,
	); err != nil {
		return nil, err
	}
	return &tt, nil
}
