package authz

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/theatre-service/internal/domain"
	"github.com/spec-kit/theatre-service/internal/repository"
	apperrors "github.com/spec-kit/theatre-service/pkg/util/errorutil"
)

// RoleCache is an optional read-through cache in front of the role table.
type RoleCache interface {
	Get(ctx context.Context, name string) (*domain.RoleRecord, bool)
	Set(ctx context.Context, role domain.RoleRecord) error
}

// Catalog maps RoleKind values onto their seeded RoleRecord rows.
type Catalog struct {
	roles repository.RoleRepository
	cache RoleCache
}

// NewCatalog builds a catalog. cache may be nil.
func NewCatalog(roles repository.RoleRepository, cache RoleCache) *Catalog {
	return &Catalog{roles: roles, cache: cache}
}

// Lookup resolves kind to its stored record. A kind without a seeded row
// yields ok=false and no error.
func (c *Catalog) Lookup(ctx context.Context, kind domain.RoleKind) (*domain.RoleRecord, bool, error) {
	if !kind.Valid() {
		return nil, false, nil
	}
	name := kind.String()
	if c.cache != nil {
		if role, hit := c.cache.Get(ctx, name); hit {
			return role, true, nil
		}
	}

	role, err := c.roles.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, apperrors.NewInternalError(err)
	}
	if c.cache != nil {
		_ = c.cache.Set(ctx, *role)
	}
	return role, true, nil
}

// KindOf maps a stored role id back to its RoleKind. Rows whose name is not
// a known kind yield ok=false.
func (c *Catalog) KindOf(ctx context.Context, roleID uuid.UUID) (domain.RoleKind, bool, error) {
	role, err := c.roles.GetByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, apperrors.NewInternalError(err)
	}
	kind, ok := domain.ParseRoleKind(role.Name)
	return kind, ok, nil
}

// Available returns seeded records that map to a known kind.
func (c *Catalog) Available(ctx context.Context) ([]domain.RoleRecord, error) {
	roles, err := c.roles.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	out := make([]domain.RoleRecord, 0, len(roles))
	for _, role := range roles {
		if _, ok := domain.ParseRoleKind(role.Name); ok {
			out = append(out, role)
		}
	}
	return out, nil
}
