package service

import (
	"context"

	"github.com/spec-kit/theatre-service/internal/domain"
	"github.com/spec-kit/theatre-service/internal/repository"
	apperrors "github.com/spec-kit/theatre-service/pkg/util/errorutil"
)

// UserService exposes the caller's own account.
type UserService struct {
	users  repository.UserRepository
	ledger *TicketLedger
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, ledger *TicketLedger) *UserService {
	return &UserService{users: users, ledger: ledger}
}

// Me reloads the caller.
func (s *UserService) Me(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user == nil {
		return nil, apperrors.NewNoAuth("authentication required")
	}
	fresh, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		return nil, notFoundOr(err, "user")
	}
	return fresh, nil
}

// SoftDelete flags the caller deleted. Tokens already issued stop working because
// lookups skip deleted users.
func (s *UserService) SoftDelete(ctx context.Context, user *domain.User) error {
	if user == nil {
		return apperrors.NewNoAuth("authentication required")
	}
	if err := s.users.SoftDelete(ctx, user.ID); err != nil {
		return notFoundOr(err, "user")
	}
	return nil
}

// Tickets lists the caller's tickets with redemption tokens.
func (s *UserService) Tickets(ctx context.Context, user *domain.User) ([]IssuedTicket, error) {
	return s.ledger.Owned(ctx, user)
}
