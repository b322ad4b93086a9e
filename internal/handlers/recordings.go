package handlers

import (
	"io"
	"mime"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/learncircle/backend/internal/middleware"
	"github.com/learncircle/backend/internal/models"
	"github.com/learncircle/backend/internal/services"
	"github.com/learncircle/backend/pkg/logger"
	"github.com/learncircle/backend/pkg/utils"
	"gorm.io/gorm"
)

// RecordingsHandler exposes the audio/transcript/minutes pipeline for a
// meeting's recording.
type RecordingsHandler struct {
	DB        *gorm.DB
	Scheduler *services.SchedulerService
	Capture   *services.CaptureService
	Mailer    *services.Mailer
}

func NewRecordingsHandler(db *gorm.DB, scheduler *services.SchedulerService, capture *services.CaptureService, mailer *services.Mailer) *RecordingsHandler {
	return &RecordingsHandler{DB: db, Scheduler: scheduler, Capture: capture, Mailer: mailer}
}

// UploadAudio ingests a multipart audio file, transcribes it and stores the
// transcript on the meeting's recording. Meeting hosts only.
func (h *RecordingsHandler) UploadAudio(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	meeting, resp := h.requireMeetingHost(c, currentUser.ID)
	if meeting == nil {
		return resp
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "audio file is required")
	}
	if fileHeader.Size > services.MaxAudioBytes {
		return utils.Error(c, fiber.StatusRequestEntityTooLarge, "audio file exceeds the 25 MB limit")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "failed reading audio file")
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "failed reading audio file")
	}

	recording, err := h.Capture.IngestAudio(c.Context(), meeting.ID, audio, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), currentUser.ID)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusCreated, recording)
}

// DownloadAudio streams the stored audio through the API for participants,
// for clients that cannot follow a presigned storage URL.
func (h *RecordingsHandler) DownloadAudio(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	meetingID, resp := h.requireParticipant(c, currentUser.ID)
	if meetingID == uuid.Nil {
		return resp
	}

	reader, objectName, err := h.Capture.AudioStream(c.Context(), meetingID)
	if err != nil {
		return serviceError(c, err)
	}
	defer reader.Close()

	audio, err := io.ReadAll(reader)
	if err != nil {
		return utils.Error(c, fiber.StatusBadGateway, "failed reading audio artifact")
	}

	contentType := mime.TypeByExtension(filepath.Ext(objectName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+objectName+`"`)
	return c.Send(audio)
}

// AudioURL returns a short-lived playback URL for the stored audio.
func (h *RecordingsHandler) AudioURL(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	meetingID, resp := h.requireParticipant(c, currentUser.ID)
	if meetingID == uuid.Nil {
		return resp
	}

	url, err := h.Capture.AudioURL(c.Context(), meetingID)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"url": url})
}

// Get returns the meeting's recording for participants.
func (h *RecordingsHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	meetingID, resp := h.requireParticipant(c, currentUser.ID)
	if meetingID == uuid.Nil {
		return resp
	}

	recording, err := h.Capture.Recording(c.Context(), meetingID)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, recording)
}

type saveTranscriptRequest struct {
	Transcript string `json:"transcript"`
}

// SaveTranscript stores a manually entered or corrected transcript.
func (h *RecordingsHandler) SaveTranscript(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	meeting, resp := h.requireMeetingHost(c, currentUser.ID)
	if meeting == nil {
		return resp
	}

	var req saveTranscriptRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	recording, err := h.Capture.SaveTranscript(c.Context(), meeting.ID, req.Transcript, currentUser.ID)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, recording)
}

// GenerateMinutes produces structured minutes from the stored transcript. The
// result is returned for review, not persisted.
func (h *RecordingsHandler) GenerateMinutes(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	meeting, resp := h.requireMeetingHost(c, currentUser.ID)
	if meeting == nil {
		return resp
	}

	recording, err := h.Capture.Recording(c.Context(), meeting.ID)
	if err != nil {
		return serviceError(c, err)
	}

	minutes, err := h.Capture.GenerateMinutes(c.Context(), recording.Transcript)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"minutes": minutes})
}

type saveMinutesRequest struct {
	Minutes string `json:"minutes"`
}

// SaveMinutes commits reviewed minutes onto the recording, replacing any
// previously saved version.
func (h *RecordingsHandler) SaveMinutes(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	meeting, resp := h.requireMeetingHost(c, currentUser.ID)
	if meeting == nil {
		return resp
	}

	var req saveMinutesRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	recording, err := h.Capture.SaveMinutes(c.Context(), meeting.ID, req.Minutes)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, recording)
}

// EmailMinutes sends the saved minutes to every participant and reports
// per-recipient outcomes.
func (h *RecordingsHandler) EmailMinutes(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	meeting, resp := h.requireMeetingHost(c, currentUser.ID)
	if meeting == nil {
		return resp
	}

	recording, err := h.Capture.Recording(c.Context(), meeting.ID)
	if err != nil {
		return serviceError(c, err)
	}
	if recording.Summary == nil || *recording.Summary == "" {
		return utils.Error(c, fiber.StatusNotFound, "no minutes saved for this meeting")
	}

	participants, err := h.Scheduler.Participants(c.Context(), meeting.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading participants")
	}
	recipients := make([]services.Recipient, 0, len(participants))
	for _, p := range participants {
		recipients = append(recipients, services.Recipient{Name: p.Name, Email: p.Email})
	}

	result := h.Mailer.SendToRecipients(c.Context(), services.KindMinutes, services.NotificationData{
		GroupName:    meeting.Group.Name,
		MeetingTitle: meeting.Title,
		HostName:     currentUser.Name,
		Minutes:      *recording.Summary,
	}, recipients)

	logger.InfoWithUser(currentUser.ID.String(), "minutes_email_sent", map[string]interface{}{
		"meeting_id": meeting.ID.String(),
		"sent":       len(result.Sent),
		"failed":     len(result.Failed),
	})
	return utils.Success(c, fiber.StatusOK, result)
}

// requireMeetingHost loads the meeting and rejects callers other than its
// host. A nil meeting means the response has been written.
func (h *RecordingsHandler) requireMeetingHost(c *fiber.Ctx, userID uuid.UUID) (*models.Meeting, error) {
	meetingID, err := parseUUID(c.Params("id"))
	if err != nil {
		return nil, utils.Error(c, fiber.StatusBadRequest, "invalid meeting id")
	}

	var meeting models.Meeting
	if err := h.DB.Preload("Group").First(&meeting, "id = ?", meetingID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.Error(c, fiber.StatusNotFound, "meeting not found")
		}
		return nil, utils.Error(c, fiber.StatusInternalServerError, "failed loading meeting")
	}
	if meeting.HostID != userID {
		return nil, utils.Error(c, fiber.StatusForbidden, "only the meeting host can do this")
	}
	return &meeting, nil
}

// requireParticipant resolves the meeting id and rejects non-participants.
// uuid.Nil means the response has been written.
func (h *RecordingsHandler) requireParticipant(c *fiber.Ctx, userID uuid.UUID) (uuid.UUID, error) {
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
