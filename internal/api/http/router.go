package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/theatre-service/internal/api/http/handlers"
	"github.com/spec-kit/theatre-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UserHandler
	Roles          *handlers.RoleHandler
	Tickets        *handlers.TicketHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/verify", cfg.Auth.Verify)

	api.Get("/role/available", cfg.Roles.Available)

	me := api.Group("/user/@me", cfg.AuthMiddleware.Handle)
	me.Get("", cfg.Users.Me)
	me.Delete("", cfg.Users.Delete)
	me.Get("/tickets", cfg.Users.Tickets)

	theatre := api.Group("/theatre/:id", cfg.AuthMiddleware.Handle)
	theatre.Get("/role/all", cfg.Roles.List)
	theatre.Put("/role/update", cfg.Roles.Update)
	theatre.Post("/ticket/issue", cfg.Tickets.Issue)
	theatre.Get("/ticket/query", cfg.Tickets.Query)
	theatre.Get("/ticket/validate", cfg.Tickets.Validate)
	theatre.Put("/ticket/mark", cfg.Tickets.Mark)
	theatre.Post("/ticket/consume", cfg.Tickets.Consume)
}
