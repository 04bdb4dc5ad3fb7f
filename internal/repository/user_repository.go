package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/theatre-service/internal/domain"
)

// UserRepository defines persistence access for users. Reads never return
// soft-deleted rows.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Activate(ctx context.Context, id uuid.UUID) (bool, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, first_name, last_name, email, username, password_hash,
               is_super_user, is_activated, is_deleted, created_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (first_name, last_name, email, username, password_hash)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, is_super_user, is_activated, is_deleted, created_at`

	err := r.pool.QueryRow(ctx, query,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Username,
		user.PasswordHash,
	).Scan(&user.ID, &user.IsSuperUser, &user.IsActivated, &user.IsDeleted, &user.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id=$1 AND is_deleted=false`
	return r.fetchSingle(ctx, query, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE LOWER(email)=LOWER($1) AND is_deleted=false`
	return r.fetchSingle(ctx, query, email)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username=$1 AND is_deleted=false`
	return r.fetchSingle(ctx, query, username)
}

// Activate flips is_activated once. It reports false when the user was
// already active.
func (r *userRepository) Activate(ctx context.Context, id uuid.UUID) (bool, error) {
	const query = `
        WITH target AS (
            SELECT id, is_activated FROM users WHERE id=$1 AND is_deleted=false FOR UPDATE
        )
        UPDATE users u SET is_activated=true
        FROM target WHERE u.id = target.id
        RETURNING target.is_activated`

	var wasActive bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&wasActive); err != nil {
		return false, err
	}
	return !wasActive, nil
}

func (r *userRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE users SET is_deleted=true WHERE id=$1 AND is_deleted=false`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.IsSuperUser,
		&user.IsActivated,
		&user.IsDeleted,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
