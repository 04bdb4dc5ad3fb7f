package authz

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/theatre-service/internal/domain"
	"github.com/spec-kit/theatre-service/internal/repository"
	apperrors "github.com/spec-kit/theatre-service/pkg/util/errorutil"
)

// Combinator selects how a set of required roles is combined.
type Combinator int

const (
	// Any passes when the user holds at least one of the roles.
	Any Combinator = iota
	// All passes only when the user holds every role.
	All
)

// Resolver decides whether a user may act within a theatre.
type Resolver struct {
	catalog     *Catalog
	assignments repository.UserTheatreRoleRepository
}

// NewResolver builds a resolver.
func NewResolver(catalog *Catalog, assignments repository.UserTheatreRoleRepository) *Resolver {
	return &Resolver{catalog: catalog, assignments: assignments}
}

// AuthorizeAny passes when user holds any of required in theatreID.
func (r *Resolver) AuthorizeAny(ctx context.Context, user *domain.User, theatreID uuid.UUID, required ...domain.RoleKind) error {
	return r.Authorize(ctx, user, theatreID, Any, required...)
}

// AuthorizeAll passes when user holds every one of required in theatreID.
func (r *Resolver) AuthorizeAll(ctx context.Context, user *domain.User, theatreID uuid.UUID, required ...domain.RoleKind) error {
	return r.Authorize(ctx, user, theatreID, All, required...)
}

// Authorize returns nil when allowed and an InsufficientPermission error
// otherwise. Superusers are always allowed. Without a theatre scope or a
// required role only superusers pass.
func (r *Resolver) Authorize(ctx context.Context, user *domain.User, theatreID uuid.UUID, mode Combinator, required ...domain.RoleKind) error {
	if user == nil {
		return apperrors.NewNoAuth("authentication required")
	}
	if user.IsDeleted {
		return forbidden()
	}
	if user.IsSuperUser {
		return nil
	}
	if theatreID == uuid.Nil || len(required) == 0 {
		return forbidden()
	}

	for _, kind := range required {
		held, err := r.holds(ctx, user.ID, theatreID, kind)
		if err != nil {
			return err
		}
		switch {
		case held && mode == Any:
			return nil
		case !held && mode == All:
			return forbidden()
		}
	}
	if mode == All {
		return nil
	}
	return forbidden()
}

func (r *Resolver) holds(ctx context.Context, userID, theatreID uuid.UUID, kind domain.RoleKind) (bool, error) {
	role, ok, err := r.catalog.Lookup(ctx, kind)
	if err != nil || !ok {
		return false, err
	}
	exists, err := r.assignments.Exists(ctx, userID, role.ID, theatreID)
	if err != nil {
		return false, apperrors.NewInternalError(err)
	}
	return exists, nil
}

func forbidden() error {
	return apperrors.NewForbidden("insufficient permission")
}
