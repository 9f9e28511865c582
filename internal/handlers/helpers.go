package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/serviciocomunal/backend/internal/services"
	"github.com/serviciocomunal/backend/pkg/utils"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// serviceError maps engine error kinds onto the response envelope.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return utils.Error(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden):
		return utils.Error(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrInvalidTarget):
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrGroupFull),
		errors.Is(err, services.ErrAlreadyMember),
		errors.Is(err, services.ErrAlreadyInGroup),
		errors.Is(err, services.ErrNotAMember),
		errors.Is(err, services.ErrAlreadyLeader),
		errors.Is(err, services.ErrAlreadyAssigned),
		errors.Is(err, services.ErrNotAssigned),
		errors.Is(err, services.ErrGroupExists),
		errors.Is(err, services.ErrGroupNotEmpty),
		errors.Is(err, services.ErrDuplicateRequest),
		errors.Is(err, services.ErrAlreadyResolved):
		return utils.Error(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, services.ErrStoreUnavailable):
		return utils.Error(c, fiber.StatusServiceUnavailable, err.Error())
	default:
		return utils.Error(c, fiber.StatusInternalServerError, "internal error")
	}
}
