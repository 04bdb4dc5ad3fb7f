package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/theatre-service/internal/api/dto"
	"github.com/spec-kit/theatre-service/internal/auth"
	"github.com/spec-kit/theatre-service/internal/service"
)

// UserHandler serves the caller's own account.
type UserHandler struct {
	users *service.UserService
}

// NewUserHandler constructs handler.
func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Me GET /api/v1/user/@me.
func (h *UserHandler) Me(c *fiber.Ctx) error {
	current, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	user, err := h.users.Me(c.UserContext(), current)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Delete DELETE /api/v1/user/@me.
func (h *UserHandler) Delete(c *fiber.Ctx) error {
	current, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	if err := h.users.SoftDelete(c.UserContext(), current); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Tickets GET /api/v1/user/@me/tickets.
func (h *UserHandler) Tickets(c *fiber.Ctx) error {
	current, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	owned, err := h.users.Tickets(c.UserContext(), current)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issuedTickets(owned)})
}

func issuedTickets(items []service.IssuedTicket) []dto.IssuedTicketResponse {
	out := make([]dto.IssuedTicketResponse, 0, len(items))
	for _, it := range items {
		out = append(out, dto.IssuedTicketResponse{Ticket: dto.NewTicketResponse(it.Ticket), TicketJWT: it.Token})
	}
	return out
}
