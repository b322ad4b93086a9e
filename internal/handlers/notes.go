package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/learncircle/backend/internal/middleware"
	"github.com/learncircle/backend/internal/models"
	"github.com/learncircle/backend/internal/services"
	"github.com/learncircle/backend/pkg/utils"
	"gorm.io/gorm"
)

// NotesHandler manages the per-participant learning notes on a meeting. One
// note per (meeting, participant); saving again replaces the previous text.
type NotesHandler struct {
	DB        *gorm.DB
	Scheduler *services.SchedulerService
}

func NewNotesHandler(db *gorm.DB, scheduler *services.SchedulerService) *NotesHandler {
	return &NotesHandler{DB: db, Scheduler: scheduler}
}

type saveNoteRequest struct {
	Note string `json:"note"`
}

// Save upserts the caller's learning note for the meeting.
func (h *NotesHandler) Save(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	meetingID, resp := h.requireParticipant(c, currentUser.ID)
	if meetingID == uuid.Nil {
		return resp
	}

	var req saveNoteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Note) == "" {
		return utils.Error(c, fiber.StatusBadRequest, "note text is required")
	}

	var note models.LearningNote
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&note, "meeting_id = ? AND user_id = ?", meetingID, currentUser.ID).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			note = models.LearningNote{
				MeetingID: meetingID,
				UserID:    currentUser.ID,
				Note:      req.Note,
			}
			return tx.Create(&note).Error
		case err != nil:
			return err
		}
		note.Note = req.Note
		return tx.Model(&models.LearningNote{}).
			Where("id = ?", note.ID).
			Update("note", req.Note).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed saving note")
	}
	return utils.Success(c, fiber.StatusOK, note)
}

// GetMine returns the caller's own note for the meeting.
func (h *NotesHandler) GetMine(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	meetingID, resp := h.requireParticipant(c, currentUser.ID)
	if meetingID == uuid.Nil {
		return resp
	}

	var note models.LearningNote
	err := h.DB.First(&note, "meeting_id = ? AND user_id = ?", meetingID, currentUser.ID).Error
	if err == gorm.ErrRecordNotFound {
		return utils.Error(c, fiber.StatusNotFound, "no note saved for this meeting")
	}
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading note")
	}
	return utils.Success(c, fiber.StatusOK, note)
}

// List returns every participant's note for the meeting, oldest first.
func (h *NotesHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	meetingID, resp := h.requireParticipant(c, currentUser.ID)
	if meetingID == uuid.Nil {
		return resp
	}

	var notes []models.LearningNote
	err := h.DB.
		Preload("User").
		Where("meeting_id = ?", meetingID).
		Order("created_at ASC").
		Find(&notes).Error
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading notes")
	}
	return utils.Success(c, fiber.StatusOK, notes)
}

func (h *NotesHandler) requireParticipant(c *fiber.Ctx, userID uuid.UUID) (uuid.UUID, error) {
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
