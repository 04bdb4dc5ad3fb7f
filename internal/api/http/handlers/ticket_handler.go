package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/theatre-service/internal/api/dto"
	"github.com/spec-kit/theatre-service/internal/auth"
	"github.com/spec-kit/theatre-service/internal/domain"
	"github.com/spec-kit/theatre-service/internal/repository"
	"github.com/spec-kit/theatre-service/internal/service"
	apperrors "github.com/spec-kit/theatre-service/pkg/util/errorutil"
)

// TicketHandler serves theatre scoped ticket endpoints.
type TicketHandler struct {
	ledger *service.TicketLedger
}

// NewTicketHandler constructs handler.
func NewTicketHandler(ledger *service.TicketLedger) *TicketHandler {
	return &TicketHandler{ledger: ledger}
}

// Issue POST /api/v1/theatre/:id/ticket/issue.
func (h *TicketHandler) Issue(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	theatreID, err := theatreParam(c)
	if err != nil {
		return err
	}
	var req dto.IssueTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	in := service.IssueInput{
		TheatreID:  theatreID,
		SeatRow:    req.SeatRow,
		SeatColumn: req.SeatColumn,
	}
	if in.ScreeningID, err = parseUUID("theatre_screening_id", req.ScreeningID); err != nil {
		return err
	}
	if in.TicketTypeID, err = parseUUID("ticket_type_id", req.TicketTypeID); err != nil {
		return err
	}
	if req.OwnerID != nil && *req.OwnerID != "" {
		owner, err := parseUUID("owner_id", *req.OwnerID)
		if err != nil {
			return err
		}
		in.OwnerID = &owner
	}

	issued, err := h.ledger.Issue(c.UserContext(), user, in)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.IssuedTicketResponse{
		Ticket:    dto.NewTicketResponse(issued.Ticket),
		TicketJWT: issued.Token,
	}})
}

// Query GET /api/v1/theatre/:id/ticket/query.
func (h *TicketHandler) Query(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.ledger.Query(c.UserContext(), user, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Validate GET /api/v1/theatre/:id/ticket/validate?ticket_jwt=.
func (h *TicketHandler) Validate(c *fiber.Ctx) error {
	user, theatreID, token, err := redeemArgs(c)
	if err != nil {
		return err
	}
	ticket, err := h.ledger.Redeem(c.UserContext(), user, theatreID, token)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Mark PUT /api/v1/theatre/:id/ticket/mark?ticket_jwt=&used=.
func (h *TicketHandler) Mark(c *fiber.Ctx) error {
	user, theatreID, token, err := redeemArgs(c)
	if err != nil {
		return err
	}
	used, err := optionalBoolQuery(c, "used")
	if err != nil {
		return err
	}
	if used == nil {
		return apperrors.NewValidationError("used required", map[string]any{"field": "used"})
	}
	ticket, err := h.ledger.SetUsage(c.UserContext(), user, theatreID, token, *used)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Consume POST /api/v1/theatre/:id/ticket/consume?ticket_jwt=.
func (h *TicketHandler) Consume(c *fiber.Ctx) error {
	user, theatreID, token, err := redeemArgs(c)
	if err != nil {
		return err
	}
	ticket, err := h.ledger.Consume(c.UserContext(), user, theatreID, token)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

func redeemArgs(c *fiber.Ctx) (user *domain.User, theatreID uuid.UUID, token string, err error) {
	if user, err = auth.CurrentUser(c); err != nil {
		return nil, uuid.Nil, "", err
	}
	if theatreID, err = theatreParam(c); err != nil {
		return nil, uuid.Nil, "", err
	}
	if token, err = requiredQuery(c, "ticket_jwt"); err != nil {
		return nil, uuid.Nil, "", err
	}
	return user, theatreID, token, nil
}

func parseTicketQuery(c *fiber.Ctx) (repository.TicketFilter, error) {
	theatreID, err := theatreParam(c)
	if err != nil {
		return repository.TicketFilter{}, err
	}
	filter := repository.TicketFilter{TheatreID: theatreID}

	uuidFields := []struct {
		name string
		dst  **uuid.UUID
	}{
		{"owner_user_id", &filter.OwnerID},
		{"issuer_user_id", &filter.IssuerID},
		{"theatre_screening_id", &filter.ScreeningID},
		{"ticket_type_id", &filter.TicketTypeID},
		{"hall_id", &filter.HallID},
		{"movie_id", &filter.MovieID},
	}
	for _, f := range uuidFields {
		if *f.dst, err = optionalUUIDQuery(c, f.name); err != nil {
			return repository.TicketFilter{}, err
		}
	}
	if filter.Used, err = optionalBoolQuery(c, "used"); err != nil {
		return repository.TicketFilter{}, err
	}

	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, nil
}
