package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/learncircle/backend/internal/middleware"
	"github.com/learncircle/backend/internal/services"
	"github.com/learncircle/backend/pkg/utils"
)

type InvitationsHandler struct {
	Membership *services.MembershipService
}

func NewInvitationsHandler(membership *services.MembershipService) *InvitationsHandler {
	return &InvitationsHandler{Membership: membership}
}

// ListMine returns the pending invitations addressed to the current user's
// email.
func (h *InvitationsHandler) ListMine(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	invitations, err := h.Membership.PendingInvitations(c.Context(), currentUser.Email)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading invitations")
	}
	return utils.Success(c, fiber.StatusOK, invitations)
}

func (h *InvitationsHandler) Accept(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	invitationID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid invitation id")
	}

	invitation, err := h.Membership.Accept(c.Context(), invitationID, currentUser.ID, currentUser.Email)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, invitation)
}

func (h *InvitationsHandler) Decline(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	invitationID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid invitation id")
	}

	invitation, err := h.Membership.Decline(c.Context(), invitationID, currentUser.Email)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, invitation)
}
