package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/theatre-service/internal/domain"
)

// TheatreRepository reads theatres. Soft-deleted theatres are invisible.
type TheatreRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Theatre, error)
}

type theatreRepository struct {
	pool *pgxpool.Pool
}

// NewTheatreRepository builds the repository.
func NewTheatreRepository(pool *pgxpool.Pool) TheatreRepository {
	return &theatreRepository{pool: pool}
}

func (r *theatreRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Theatre, error) {
	const query = `SELECT id, name, is_deleted FROM theatres WHERE id=$1 AND is_deleted=false`
	var theatre domain.Theatre
	if err := r.pool.QueryRow(ctx, query, id).Scan(&theatre.ID, &theatre.Name, &theatre.IsDeleted); err != nil {
		return nil, err
	}
	return &theatre, nil
}
