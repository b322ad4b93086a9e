package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/learncircle/backend/internal/services"
	"github.com/learncircle/backend/pkg/utils"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// serviceError maps service-layer domain errors onto HTTP statuses, keeping
// the human-readable message in the envelope.
func serviceError(c *fiber.Ctx, err error) error {
	var status int
	switch {
	case errors.Is(err, services.ErrValidation):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrNoRecording),
		errors.Is(err, services.ErrNoTranscript):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrDuplicateInvitation),
		errors.Is(err, services.ErrAlreadyMember),
		errors.Is(err, services.ErrInvitationResolved),
		errors.Is(err, services.ErrDuplicateFollowUp):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrNotGroupHost):
		status = fiber.StatusForbidden
	case errors.Is(err, services.ErrPayloadTooLarge):
		status = fiber.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrDependency):
		status = fiber.StatusBadGateway
	default:
		return utils.Error(c, fiber.StatusInternalServerError, "internal error")
	}
	return utils.Error(c, status, err.Error())
}
