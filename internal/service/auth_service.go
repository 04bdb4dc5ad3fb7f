package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/theatre-service/internal/auth"
	"github.com/spec-kit/theatre-service/internal/domain"
	"github.com/spec-kit/theatre-service/internal/events"
	"github.com/spec-kit/theatre-service/internal/repository"
	apperrors "github.com/spec-kit/theatre-service/pkg/util/errorutil"
)

const (
	minUsernameLength = 3
	minPasswordLength = 8
)

// AuthService coordinates registration, email verification and login.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenCodec
	passwords  *auth.Passwords
	dispatcher events.Dispatcher
	now        func() time.Time
}

// AuthDependencies encapsulates requirements for auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Tokens     *auth.TokenCodec
	Passwords  *auth.Passwords
	Dispatcher events.Dispatcher
	Now        func() time.Time
}

// RegisterInput describes a new account.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Username  string
	Password  string
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		users:      deps.UserRepo,
		tokens:     deps.Tokens,
		passwords:  deps.Passwords,
		dispatcher: deps.Dispatcher,
		now:        now,
	}
}

// Tokens exposes the codec for middleware wiring.
func (s *AuthService) Tokens() *auth.TokenCodec {
	return s.tokens
}

// Register creates an unactivated account and publishes EventUserRegistered,
// whose handler queues the verification mail.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := validateRegistration(in); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"field": "email"})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewInternalError(err)
	}
	if _, err := s.users.GetByUsername(ctx, in.Username); err == nil {
		return nil, apperrors.NewConflict("username already taken", map[string]any{"field": "username"})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewInternalError(err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: &hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewConflict("email or username already registered", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}

	if s.dispatcher != nil {
		err := s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.New(),
			Type:      events.EventUserRegistered,
			ActorID:   user.ID,
			Timestamp: s.now(),
			Payload: events.UserRegisteredPayload{
				UserID:    user.ID,
				Email:     user.Email,
				FirstName: user.FirstName,
				Username:  user.Username,
			},
		})
		if err != nil {
			return nil, apperrors.NewInternalError(fmt.Errorf("queue verification mail: %w", err))
		}
	}
	return user, nil
}

func validateRegistration(in RegisterInput) error {
	details := map[string]any{}
	if in.FirstName == "" {
		details["first_name"] = "required"
	}
	if in.LastName == "" {
		details["last_name"] = "required"
	}
	if _, err := mail.ParseAddress(in.Email); err != nil || !strings.Contains(in.Email, "@") {
		details["email"] = "must be a valid address"
	}
	if len(in.Username) < minUsernameLength || strings.Contains(in.Username, "@") {
		details["username"] = fmt.Sprintf("at least %d characters, no @", minUsernameLength)
	}
	if len(in.Password) < minPasswordLength {
		details["password"] = fmt.Sprintf("at least %d characters", minPasswordLength)
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid registration", details)
	}
	return nil
}

// VerifyEmail activates the account named by an email verification token.
// It reports whether this call performed the activation.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*domain.User, bool, error) {
	claims, err := s.tokens.Verify(domain.TokenKindEmail, token)
	if err != nil {
		return nil, false, err
	}

	activated, err := s.users.Activate(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, apperrors.NewNotFound("user", nil)
		}
		return nil, false, apperrors.NewInternalError(err)
	}
	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, false, apperrors.MapError(err)
	}
	return user, activated, nil
}

// Login authenticates by email or username and returns an Auth token.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*domain.User, string, time.Time, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, "", time.Time{}, apperrors.NewValidationError("login and password required", nil)
	}

	var (
		user *domain.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.users.GetByEmail(ctx, identifier)
	} else {
		user, err = s.users.GetByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewInvalid("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}

	if !user.IsActivated {
		return nil, "", time.Time{}, apperrors.NewEmailNotVerified("email address not verified")
	}
	if !user.HasPassword() {
		return nil, "", time.Time{}, apperrors.NewConflict("account has no password login", nil)
	}
	if !s.passwords.Matches(*user.PasswordHash, password) {
		return nil, "", time.Time{}, apperrors.NewInvalid("invalid credentials")
	}

	token, exp, err := s.tokens.IssueUser(user.ID)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}
