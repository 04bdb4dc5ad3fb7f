package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/spec-kit/theatre-service/internal/authz"
	"github.com/spec-kit/theatre-service/internal/domain"
	"github.com/spec-kit/theatre-service/internal/repository"
	apperrors "github.com/spec-kit/theatre-service/pkg/util/errorutil"
)

// RoleAction is one step of an assignment update.
type RoleAction string

const (
	RoleActionCreate RoleAction = "create"
	RoleActionDelete RoleAction = "delete"
)

// RoleChange grants or revokes one role in a theatre.
type RoleChange struct {
	Action RoleAction
	UserID uuid.UUID
	RoleID uuid.UUID
}

// RoleAssignment is a user's role in a theatre with the role name resolved.
type RoleAssignment struct {
	UserID uuid.UUID
	RoleID uuid.UUID
	Role   string
}

// RoleService manages theatre role assignments.
type RoleService struct {
	theatres    repository.TheatreRepository
	users       repository.UserRepository
	assignments repository.UserTheatreRoleRepository
	catalog     *authz.Catalog
	resolver    *authz.Resolver
}

// RoleDependencies encapsulates requirements for role service.
type RoleDependencies struct {
	TheatreRepo    repository.TheatreRepository
	UserRepo       repository.UserRepository
	AssignmentRepo repository.UserTheatreRoleRepository
	Catalog        *authz.Catalog
	Resolver       *authz.Resolver
}

// NewRoleService constructs the service.
func NewRoleService(deps RoleDependencies) *RoleService {
	return &RoleService{
		theatres:    deps.TheatreRepo,
		users:       deps.UserRepo,
		assignments: deps.AssignmentRepo,
		catalog:     deps.Catalog,
		resolver:    deps.Resolver,
	}
}

// Available lists every seeded role.
func (s *RoleService) Available(ctx context.Context) ([]domain.RoleRecord, error) {
	return s.catalog.Available(ctx)
}

// ListAssignments returns the theatre's assignments to TheatreOwner and
// UserManager holders.
func (s *RoleService) ListAssignments(ctx context.Context, actor *domain.User, theatreID uuid.UUID) ([]RoleAssignment, error) {
	if err := s.authorizeTheatre(ctx, actor, theatreID); err != nil {
		return nil, err
	}

	rows, err := s.assignments.ListByTheatre(ctx, theatreID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	out := make([]RoleAssignment, 0, len(rows))
	for _, row := range rows {
		kind, ok, err := s.catalog.KindOf(ctx, row.RoleID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, RoleAssignment{UserID: row.UserID, RoleID: row.RoleID, Role: kind.String()})
	}
	return out, nil
}

// UpdateAssignments applies changes in one transaction. Non-superusers may
// not change their own assignments.
func (s *RoleService) UpdateAssignments(ctx context.Context, actor *domain.User, theatreID uuid.UUID, changes []RoleChange) error {
	if err := s.authorizeTheatre(ctx, actor, theatreID); err != nil {
		return err
	}
	if len(changes) == 0 {
		return apperrors.NewValidationError("no role changes given", nil)
	}
	if !actor.IsSuperUser {
		for _, change := range changes {
			if change.UserID == actor.ID {
				return apperrors.NewForbidden("cannot change own role assignments")
			}
		}
	}

	var grants, revokes []domain.UserTheatreRole
	for i, change := range changes {
		if _, ok, err := s.catalog.KindOf(ctx, change.RoleID); err != nil {
			return err
		} else if !ok {
			return apperrors.NewInvalid(fmt.Sprintf("unknown role in change %d", i))
		}
		row := domain.UserTheatreRole{UserID: change.UserID, RoleID: change.RoleID, TheatreID: theatreID}
		switch change.Action {
		case RoleActionCreate:
			if _, err := s.users.GetByID(ctx, change.UserID); err != nil {
				return notFoundOr(err, "user")
			}
			grants = append(grants, row)
		case RoleActionDelete:
			revokes = append(revokes, row)
		default:
			return apperrors.NewValidationError("unknown action", map[string]any{"index": i, "action": change.Action})
		}
	}

	if err := s.assignments.ApplyBatch(ctx, grants, revokes); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

func (s *RoleService) authorizeTheatre(ctx context.Context, actor *domain.User, theatreID uuid.UUID) error {
	if actor == nil {
		return apperrors.NewNoAuth("authentication required")
	}
	if _, err := s.theatres.GetByID(ctx, theatreID); err != nil {
		return notFoundOr(err, "theatre")
	}
	return s.resolver.AuthorizeAny(ctx, actor, theatreID, domain.RoleTheatreOwner, domain.RoleUserManager)
}
