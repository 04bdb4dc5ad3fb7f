package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/theatre-service/internal/api/dto"
	"github.com/spec-kit/theatre-service/internal/service"
	apperrors "github.com/spec-kit/theatre-service/pkg/util/errorutil"
)

// LoginLimiter throttles login attempts per key.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// AuthHandler exposes registration, verification and login.
type AuthHandler struct {
	auth    *service.AuthService
	limiter LoginLimiter
	logger  *zap.Logger
}

// NewAuthHandler constructs handler. limiter may be nil.
func NewAuthHandler(authService *service.AuthService, limiter LoginLimiter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, limiter: limiter, logger: logger}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Verify handles GET /api/v1/auth/verify?email_key=.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	key, err := requiredQuery(c, "email_key")
	if err != nil {
		return err
	}
	user, activated, err := h.auth.VerifyEmail(c.UserContext(), key)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"user":      dto.NewUserResponse(user),
		"activated": activated,
	}})
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	if h.limiter != nil {
		allowed, err := h.limiter.Allow(c.UserContext(), c.IP())
		if err != nil {
			h.logger.Warn("login rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			return apperrors.NewDomainError("RATE_LIMITED", "too many login attempts", http.StatusTooManyRequests, nil)
		}
	}

	var req dto.UserLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, token, exp, err := h.auth.Login(c.UserContext(), req.Login, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": dto.NewUserResponse(user),
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}
