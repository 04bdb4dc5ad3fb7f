package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/theatre-service/internal/domain"
	"github.com/spec-kit/theatre-service/internal/repository"
	apperrors "github.com/spec-kit/theatre-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	User   *domain.User
	Claims *Claims
}

// AuthMiddleware verifies the Auth token carried in the Authorization header
// and loads the calling user.
type AuthMiddleware struct {
	tokens *TokenCodec
	users  repository.UserRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenCodec, users repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	claims, err := m.ExtractClaims(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}

	user, err := m.users.GetByID(c.UserContext(), claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNoAuth("user not found")
		}
		return apperrors.MapError(err)
	}

	c.Locals(principalKey, &Principal{User: user, Claims: claims})
	return c.Next()
}

// ExtractClaims verifies the raw header value as an Auth token. The token is
// sent without a scheme; a "Bearer " prefix is tolerated.
func (m *AuthMiddleware) ExtractClaims(header string) (*Claims, error) {
	token := strings.TrimSpace(header)
	if token == "" {
		return nil, apperrors.NewNoAuth("missing authorization header")
	}
	if len(token) > 7 && strings.EqualFold(token[:7], "Bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return m.tokens.Verify(domain.TokenKindUser, token)
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// CurrentUser returns the authenticated user or a NoAuth error.
func CurrentUser(c *fiber.Ctx) (*domain.User, error) {
	principal, ok := PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return nil, apperrors.NewNoAuth("authentication required")
	}
	return principal.User, nil
}
