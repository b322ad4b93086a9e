package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/learncircle/backend/internal/middleware"
	"github.com/learncircle/backend/internal/models"
	"github.com/learncircle/backend/internal/services"
	"github.com/learncircle/backend/pkg/logger"
	"github.com/learncircle/backend/pkg/utils"
	"gorm.io/gorm"
)

type MeetingsHandler struct {
	DB        *gorm.DB
	Scheduler *services.SchedulerService
	Mailer    *services.Mailer
}

func NewMeetingsHandler(db *gorm.DB, scheduler *services.SchedulerService, mailer *services.Mailer) *MeetingsHandler {
	return &MeetingsHandler{DB: db, Scheduler: scheduler, Mailer: mailer}
}

type createMeetingRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	GroupID     string     `json:"groupID"`
	ScheduledAt *time.Time `json:"scheduledAt"`
}

func (h *MeetingsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createMeetingRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	groupID, err := parseUUID(req.GroupID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	meeting, err := h.Scheduler.CreateMeeting(c.Context(), req.Title, req.Description, groupID, currentUser.ID, req.ScheduledAt)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusCreated, meeting)
}

// List returns every meeting the current user participates in, soonest
// scheduled first with unscheduled meetings last.
func (h *MeetingsHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var meetings []models.Meeting
	err := h.DB.
		Model(&models.Meeting{}).
		Preload("Group").
		Preload("Host").
		Joins("JOIN meeting_participants ON meeting_participants.meeting_id = meetings.id").
		Where("meeting_participants.user_id = ?", currentUser.ID).
		Order("meetings.scheduled_at IS NULL, meetings.scheduled_at ASC").
		Find(&meetings).Error
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading meetings")
	}
	return utils.Success(c, fiber.StatusOK, meetings)
}

func (h *MeetingsHandler) Upcoming(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	days := c.QueryInt("days", 7)
	meetings, err := h.Scheduler.Upcoming(c.Context(), currentUser.ID, days)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading meetings")
	}
	return utils.Success(c, fiber.StatusOK, meetings)
}

// Get returns a meeting with its participant roster. Only enrolled
// participants can see it.
func (h *MeetingsHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	meetingID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid meeting id")
	}

	var meeting models.Meeting
	if err := h.DB.Preload("Group").Preload("Host").First(&meeting, "id = ?", meetingID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "meeting not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading meeting")
	}

	if handled, resp := h.requireParticipant(c, meetingID, currentUser.ID); handled {
		return resp
	}

	participants, err := h.Scheduler.Participants(c.Context(), meetingID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading participants")
	}
	meeting.ParticipantCount = int64(len(participants))

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"meeting":      meeting,
		"participants": participants,
	})
}

// ByGroup lists a group's meetings for its members, newest first.
func (h *MeetingsHandler) ByGroup(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	var membership int64
	if err := h.DB.Model(&models.GroupMembership{}).
		Where("group_id = ? AND user_id = ?", groupID, currentUser.ID).
		Count(&membership).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking membership")
	}
	if membership == 0 {
		return utils.Error(c, fiber.StatusForbidden, "you are not a member of this group")
	}

	var meetings []models.Meeting
	err = h.DB.
		Preload("Host").
		Where("group_id = ?", groupID).
		Order("created_at DESC").
		Find(&meetings).Error
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading meetings")
	}
	return utils.Success(c, fiber.StatusOK, meetings)
}

type createFollowUpRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

func (h *MeetingsHandler) CreateFollowUp(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	meetingID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid meeting id")
	}

	var req createFollowUpRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	meeting, err := h.Scheduler.CreateFollowUp(c.Context(), meetingID, currentUser.ID, req.Title, req.Description)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusCreated, meeting)
}

// GetFollowUp resolves the follow-up chain around a meeting: the follow-up it
// spawned and, when this meeting is itself a follow-up, its original.
func (h *MeetingsHandler) GetFollowUp(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	meetingID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid meeting id")
	}
	if handled, resp := h.requireParticipant(c, meetingID, currentUser.ID); handled {
		return resp
	}

	payload := fiber.Map{"follow_up": nil, "original": nil}
	if followUp, err := h.Scheduler.FollowUpOf(c.Context(), meetingID); err == nil {
		payload["follow_up"] = followUp
	}
	if original, err := h.Scheduler.OriginalOf(c.Context(), meetingID); err == nil {
		payload["original"] = original
	}
	return utils.Success(c, fiber.StatusOK, payload)
}

// Reminders lists the host's meetings that still need an upcoming reminder.
func (h *MeetingsHandler) Reminders(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	hours := c.QueryInt("hours", 24)
	meetings, err := h.Scheduler.NeedingReminder(c.Context(), currentUser.ID, hours, services.ReminderKindUpcoming)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading reminders")
	}
	return utils.Success(c, fiber.StatusOK, meetings)
}

// DispatchReminders emails every participant of the host's due meetings and
// records the dispatch so a meeting is reminded at most once.
func (h *MeetingsHandler) DispatchReminders(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	hours := c.QueryInt("hours", 24)
	meetings, err := h.Scheduler.NeedingReminder(c.Context(), currentUser.ID, hours, services.ReminderKindUpcoming)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading reminders")
	}

	dispatches := make([]fiber.Map, 0, len(meetings))
	for _, meeting := range meetings {
		participants, err := h.Scheduler.Participants(c.Context(), meeting.ID)
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed loading participants")
		}

		recipients := make([]services.Recipient, 0, len(participants))
		for _, p := range participants {
			recipients = append(recipients, services.Recipient{Name: p.Name, Email: p.Email})
		}

		scheduledAt := ""
		if meeting.ScheduledAt != nil {
			scheduledAt = meeting.ScheduledAt.Format("2006-01-02 15:04")
		}
		result := h.Mailer.SendToRecipients(c.Context(), services.KindReminder, services.NotificationData{
			GroupName:    meeting.Group.Name,
			MeetingTitle: meeting.Title,
			HostName:     currentUser.Name,
			ScheduledAt:  scheduledAt,
		}, recipients)

		if result.Success {
			if err := h.Scheduler.MarkReminded(c.Context(), meeting.ID, services.ReminderKindUpcoming); err != nil {
				logger.Warn("reminder_mark_failed", map[string]interface{}{
					"meeting_id": meeting.ID.String(),
					"error":      err.Error(),
				})
			}
		}
		dispatches = append(dispatches, fiber.Map{
			"meeting_id": meeting.ID,
			"result":     result,
		})
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"dispatched": dispatches,
	})
}

// requireParticipant rejects callers who are not enrolled in the meeting.
// When handled is true the response has been written and the handler must
// return resp.
func (h *MeetingsHandler) requireParticipant(c *fiber.Ctx, meetingID, userID uuid.UUID) (handled bool, resp error) {
	participant, err := h.Scheduler.IsParticipant(c.Context(), meetingID, userID)
	if err != nil {
		return true, utils.Error(c, fiber.StatusInternalServerError, "failed checking participation")
	}
	if !participant {
		return true, utils.Error(c, fiber.StatusForbidden, "you are not a participant of this meeting")
	}
	return false, nil
}
