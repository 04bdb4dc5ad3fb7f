package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/theatre-service/internal/api/dto"
	"github.com/spec-kit/theatre-service/internal/auth"
	"github.com/spec-kit/theatre-service/internal/service"
	apperrors "github.com/spec-kit/theatre-service/pkg/util/errorutil"
)

// RoleHandler manages theatre roles.
type RoleHandler struct {
	roles *service.RoleService
}

// NewRoleHandler constructs handler.
func NewRoleHandler(roles *service.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// Available GET /api/v1/role/available.
func (h *RoleHandler) Available(c *fiber.Ctx) error {
	roles, err := h.roles.Available(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.RoleResponse, 0, len(roles))
	for _, r := range roles {
		items = append(items, dto.RoleResponse{ID: r.ID.String(), Name: r.Name})
	}
	return c.JSON(fiber.Map{"data": items})
}

// List GET /api/v1/theatre/:id/role/all.
func (h *RoleHandler) List(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	theatreID, err := theatreParam(c)
	if err != nil {
		return err
	}
	assignments, err := h.roles.ListAssignments(c.UserContext(), user, theatreID)
	if err != nil {
		return err
	}
	items := make([]dto.RoleAssignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		items = append(items, dto.RoleAssignmentResponse{UserID: a.UserID.String(), RoleID: a.RoleID.String(), Role: a.Role})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Update PUT /api/v1/theatre/:id/role/update.
func (h *RoleHandler) Update(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	theatreID, err := theatreParam(c)
	if err != nil {
		return err
	}
	var req dto.UpdateRolesRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	changes := make([]service.RoleChange, 0, len(req.Changes))
	for i, ch := range req.Changes {
		userID, err := parseUUID("changes["+strconv.Itoa(i)+"].user_id", ch.UserID)
		if err != nil {
			return err
		}
		roleID, err := parseUUID("changes["+strconv.Itoa(i)+"].theatre_role_id", ch.RoleID)
		if err != nil {
			return err
		}
		changes = append(changes, service.RoleChange{Action: service.RoleAction(ch.Action), UserID: userID, RoleID: roleID})
	}

	if err := h.roles.UpdateAssignments(c.UserContext(), user, theatreID, changes); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
