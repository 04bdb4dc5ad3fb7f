package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/theatre-service/internal/domain"
)

// UserTheatreRoleRepository manages the (user, role, theatre) bridge table.
type UserTheatreRoleRepository interface {
	Exists(ctx context.Context, userID, roleID, theatreID uuid.UUID) (bool, error)
	ListByTheatre(ctx context.Context, theatreID uuid.UUID) ([]domain.UserTheatreRole, error)
	ApplyBatch(ctx context.Context, grants, revokes []domain.UserTheatreRole) error
}

type userTheatreRoleRepository struct {
	pool *pgxpool.Pool
}

// NewUserTheatreRoleRepository builds the repository.
func NewUserTheatreRoleRepository(pool *pgxpool.Pool) UserTheatreRoleRepository {
	return &userTheatreRoleRepository{pool: pool}
}

func (r *userTheatreRoleRepository) Exists(ctx context.Context, userID, roleID, theatreID uuid.UUID) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM users_theatre_roles
            WHERE user_id=$1 AND role_id=$2 AND theatre_id=$3
        )`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, roleID, theatreID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *userTheatreRoleRepository) ListByTheatre(ctx context.Context, theatreID uuid.UUID) ([]domain.UserTheatreRole, error) {
	const query = `
        SELECT utr.user_id, utr.role_id, utr.theatre_id
        FROM users_theatre_roles utr
        JOIN users u ON u.id = utr.user_id
        WHERE utr.theatre_id=$1 AND u.is_deleted=false
        ORDER BY utr.user_id, utr.role_id`
	rows, err := r.pool.Query(ctx, query, theatreID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.UserTheatreRole
	for rows.Next() {
		var assignment domain.UserTheatreRole
		if err := rows.Scan(&assignment.UserID, &assignment.RoleID, &assignment.TheatreID); err != nil {
			return nil, err
		}
		result = append(result, assignment)
	}
	return result, rows.Err()
}

// ApplyBatch inserts grants and deletes revokes in one transaction. Grants
// that already exist are left untouched.
func (r *userTheatreRoleRepository) ApplyBatch(ctx context.Context, grants, revokes []domain.UserTheatreRole) error {
	const insert = `
        INSERT INTO users_theatre_roles (user_id, role_id, theatre_id)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id, role_id, theatre_id) DO NOTHING`
	const remove = `
        DELETE FROM users_theatre_roles
        WHERE user_id=$1 AND role_id=$2 AND theatre_id=$3`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, g := range grants {
		batch.Queue(insert, g.UserID, g.RoleID, g.TheatreID)
	}
	for _, rv := range revokes {
		batch.Queue(remove, rv.UserID, rv.RoleID, rv.TheatreID)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
