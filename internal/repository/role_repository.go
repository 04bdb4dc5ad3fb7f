package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/theatre-service/internal/domain"
)

// RoleRepository reads the seeded theatre_roles rows.
type RoleRepository interface {
	GetByName(ctx context.Context, name string) (*domain.RoleRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RoleRecord, error)
	List(ctx context.Context) ([]domain.RoleRecord, error)
}

type roleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository builds the repository.
func NewRoleRepository(pool *pgxpool.Pool) RoleRepository {
	return &roleRepository{pool: pool}
}

func (r *roleRepository) GetByName(ctx context.Context, name string) (*domain.RoleRecord, error) {
	const query = `SELECT id, name FROM theatre_roles WHERE name=$1`
	var role domain.RoleRecord
	if err := r.pool.QueryRow(ctx, query, name).Scan(&role.ID, &role.Name); err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.RoleRecord, error) {
	const query = `SELECT id, name FROM theatre_roles WHERE id=$1`
	var role domain.RoleRecord
	if err := r.pool.QueryRow(ctx, query, id).Scan(&role.ID, &role.Name); err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) List(ctx context.Context) ([]domain.RoleRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM theatre_roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RoleRecord
	for rows.Next() {
		var role domain.RoleRecord
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, err
		}
		result = append(result, role)
	}
	return result, rows.Err()
}
