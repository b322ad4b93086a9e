package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/learncircle/backend/internal/middleware"
	"github.com/learncircle/backend/internal/services"
	"github.com/learncircle/backend/pkg/utils"
)

// ChatHandler exposes the per-meeting question/answer conversation.
type ChatHandler struct {
	Scheduler *services.SchedulerService
	Assistant *services.AssistantService
}

func NewChatHandler(scheduler *services.SchedulerService, assistant *services.AssistantService) *ChatHandler {
	return &ChatHandler{Scheduler: scheduler, Assistant: assistant}
}

type askRequest struct {
	Question string `json:"question"`
}

// Ask answers a participant's question grounded in the meeting's notes and
// appends both turns to the conversation.
func (h *ChatHandler) Ask(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	meetingID, resp := h.requireParticipant(c, currentUser.ID)
	if meetingID == uuid.Nil {
		return resp
	}

	var req askRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	answer, err := h.Assistant.Ask(c.Context(), meetingID, currentUser.ID, req.Question)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusCreated, fiber.Map{"answer": answer})
}

// History returns the conversation in creation order.
func (h *ChatHandler) History(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	meetingID, resp := h.requireParticipant(c, currentUser.ID)
	if meetingID == uuid.Nil {
		return resp
	}

	turns, err := h.Assistant.History(c.Context(), meetingID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading conversation")
	}
	return utils.Success(c, fiber.StatusOK, turns)
}

// Clear wipes the meeting's conversation and reports how many turns were
// removed.
func (h *ChatHandler) Clear(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	meetingID, resp := h.requireParticipant(c, currentUser.ID)
	if meetingID == uuid.Nil {
		return resp
	}

	removed, err := h.Assistant.ClearHistory(c.Context(), meetingID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed clearing conversation")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"removed": removed})
}

func (h *ChatHandler) requireParticipant(c *fiber.Ctx, userID uuid.UUID) (uuid.UUID, error) {
	meetingID, err := parseUUID(c.Params("id"))
	if err != nil {
		return uuid.Nil, utils.Error(c, fiber.StatusBadRequest, "invalid meeting id")
	}

	participant, err := h.Scheduler.IsParticipant(c.Context(), meetingID, userID)
	if err != nil {
		return uuid.Nil, utils.Error(c, fiber.StatusInternalServerError, "failed checking participation")
	}
	if !participant {
		return uuid.Nil, utils.Error(c, fiber.StatusForbidden, "you are not a participant of this meeting")
	}
	return meetingID, nil
}
