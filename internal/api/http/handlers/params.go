package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	apperrors "github.com/spec-kit/theatre-service/pkg/util/errorutil"
)

func parseUUID(field, val string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(val))
	if err != nil {
		return uuid.Nil, apperrors.NewValidationError("invalid id", map[string]any{"field": field})
	}
	return id, nil
}

func theatreParam(c *fiber.Ctx) (uuid.UUID, error) {
	return parseUUID("id", c.Params("id"))
}

func optionalUUIDQuery(c *fiber.Ctx, field string) (*uuid.UUID, error) {
	val := c.Query(field)
	if val == "" {
		return nil, nil
	}
	id, err := parseUUID(field, val)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func optionalBoolQuery(c *fiber.Ctx, field string) (*bool, error) {
	val := c.Query(field)
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid boolean", map[string]any{"field": field})
	}
	return &b, nil
}

func requiredQuery(c *fiber.Ctx, field string) (string, error) {
	val := strings.TrimSpace(c.Query(field))
	if val == "" {
		return "", apperrors.NewValidationError(field+" required", map[string]any{"field": field})
	}
	return val, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
