package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/learncircle/backend/internal/models"
	"github.com/learncircle/backend/pkg/logger"
	"gorm.io/gorm"
)

// ReminderKindUpcoming is the dedup key for the "meeting is coming up"
// reminder. De-duplication is per (meeting, kind).
const ReminderKindUpcoming = "upcoming"

const followUpOffset = 7 * 24 * time.Hour

// SchedulerService owns the meeting lifecycle: creation with participant
// seeding, upcoming/reminder queries and follow-up chaining.
type SchedulerService struct {
	DB *gorm.DB
}

func NewSchedulerService(db *gorm.DB) *SchedulerService {
	return &SchedulerService{DB: db}
}

// CreateMeeting inserts the meeting and enrolls every current member of the
// group as a participant in the same transaction. The participant set is a
// snapshot; members who join the group later are not added.
func (s *SchedulerService) CreateMeeting(ctx context.Context, title string, description *string, groupID, hostID uuid.UUID, scheduledAt *time.Time) (*models.Meeting, error) {
	var meeting *models.Meeting
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		meeting, err = s.createMeeting(tx, title, description, groupID, hostID, scheduledAt)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(hostID.String(), "meeting_created", map[string]interface{}{
		"meeting_id": meeting.ID.String(),
		"group_id":   groupID.String(),
		"title":      meeting.Title,
	})
	return meeting, nil
}

// createMeeting inserts the meeting and seeds its participant snapshot inside
// the caller's transaction.
func (s *SchedulerService) createMeeting(tx *gorm.DB, title string, description *string, groupID, hostID uuid.UUID, scheduledAt *time.Time) (*models.Meeting, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validationError("meeting title is required")
	}

	var group models.Group
	if err := tx.First(&group, "id = ?", groupID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFoundError("group not found")
		}
		return nil, err
	}
	if group.HostID != hostID {
		return nil, ErrNotGroupHost
	}

	meeting := models.Meeting{
		Title:       title,
		Description: description,
		GroupID:     groupID,
		HostID:      hostID,
		ScheduledAt: scheduledAt,
	}
	if err := tx.Create(&meeting).Error; err != nil {
		return nil, err
	}

	var memberships []models.GroupMembership
	if err := tx.Where("group_id = ?", groupID).Find(&memberships).Error; err != nil {
		return nil, err
	}

	participants := make([]models.MeetingParticipant, 0, len(memberships))
	for _, m := range memberships {
		participants = append(participants, models.MeetingParticipant{
			MeetingID: meeting.ID,
			UserID:    m.UserID,
		})
	}
	if len(participants) > 0 {
		if err := tx.Create(&participants).Error; err != nil {
			return nil, err
		}
	}
	return &meeting, nil
}

// Upcoming returns the meetings the user participates in whose scheduled time
// falls within [now, now+horizonDays], soonest first.
func (s *SchedulerService) Upcoming(ctx context.Context, userID uuid.UUID, horizonDays int) ([]models.Meeting, error) {
	if horizonDays <= 0 {
		horizonDays = 7
	}
	now := time.Now()
	until := now.AddDate(0, 0, horizonDays)

	var meetings []models.Meeting
	err := s.DB.WithContext(ctx).
		Model(&models.Meeting{}).
		Preload("Group").
		Preload("Host").
		Joins("JOIN meeting_participants ON meeting_participants.meeting_id = meetings.id").
		Where("meeting_participants.user_id = ?", userID).
		Where("meetings.scheduled_at IS NOT NULL").
		Where("meetings.scheduled_at >= ? AND meetings.scheduled_at <= ?", now, until).
		Order("meetings.scheduled_at ASC").
		Find(&meetings).Error
	if err != nil {
		return nil, err
	}
	return meetings, nil
}

// NeedingReminder returns meetings hosted by hostID whose scheduled time is
// within hoursBefore hours from now and for which no reminder of the given
// kind has been recorded yet.
func (s *SchedulerService) NeedingReminder(ctx context.Context, hostID uuid.UUID, hoursBefore int, kind string) ([]models.Meeting, error) {
	if hoursBefore <= 0 {
		hoursBefore = 24
	}
	now := time.Now()
	until := now.Add(time.Duration(hoursBefore) * time.Hour)

	var meetings []models.Meeting
	err := s.DB.WithContext(ctx).
		Model(&models.Meeting{}).
		Preload("Group").
		Where("meetings.host_id = ?", hostID).
		Where("meetings.scheduled_at IS NOT NULL").
		Where("meetings.scheduled_at >= ? AND meetings.scheduled_at <= ?", now, until).
		Where("NOT EXISTS (SELECT 1 FROM reminder_logs WHERE reminder_logs.meeting_id = meetings.id AND reminder_logs.kind = ?)", kind).
		Order("meetings.scheduled_at ASC").
		Find(&meetings).Error
	if err != nil {
		return nil, err
	}
	return meetings, nil
}

// MarkReminded records that a reminder of the given kind went out for the
// meeting, making subsequent eligibility checks skip it.
func (s *SchedulerService) MarkReminded(ctx context.Context, meetingID uuid.UUID, kind string) error {
	entry := models.ReminderLog{
		MeetingID: meetingID,
		Kind:      kind,
	}
	return s.DB.WithContext(ctx).Create(&entry).Error
}

// CreateFollowUp creates a new meeting in the same group one week after the
// original (one week from now if the original was unscheduled) and links it.
// The meeting and the link are inserted in one transaction, so a link failure
// never strands an unlinked follow-up meeting.
func (s *SchedulerService) CreateFollowUp(ctx context.Context, originalID, hostID uuid.UUID, title string, description *string) (*models.Meeting, error) {
	var meeting *models.Meeting
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var original models.Meeting
		if err := tx.First(&original, "id = ?", originalID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return notFoundError("meeting not found")
			}
			return err
		}

		var linked int64
		if err := tx.Model(&models.FollowUpLink{}).
			Where("original_meeting_id = ?", originalID).
			Count(&linked).Error; err != nil {
			return err
		}
		if linked > 0 {
			return ErrDuplicateFollowUp
		}

		base := time.Now()
		if original.ScheduledAt != nil {
			base = *original.ScheduledAt
		}
		scheduledAt := base.Add(followUpOffset)

		if strings.TrimSpace(title) == "" {
			title = original.Title + " (follow-up)"
		}

		var err error
		meeting, err = s.createMeeting(tx, title, description, original.GroupID, hostID, &scheduledAt)
		if err != nil {
			return err
		}

		link := models.FollowUpLink{
			OriginalMeetingID: originalID,
			FollowUpMeetingID: meeting.ID,
		}
		if err := tx.Create(&link).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateFollowUp
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(hostID.String(), "follow_up_created", map[string]interface{}{
		"original_meeting_id": originalID.String(),
		"meeting_id":          meeting.ID.String(),
	})
	return meeting, nil
}

// FollowUpOf returns the follow-up meeting linked to the original, if any.
func (s *SchedulerService) FollowUpOf(ctx context.Context, originalID uuid.UUID) (*models.Meeting, error) {
	var link models.FollowUpLink
	err := s.DB.WithContext(ctx).
		Preload("FollowUpMeeting").
		Preload("FollowUpMeeting.Group").
		Preload("FollowUpMeeting.Host").
		First(&link, "original_meeting_id = ?", originalID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFoundError("no follow-up scheduled")
		}
		return nil, err
	}
	return &link.FollowUpMeeting, nil
}

// OriginalOf returns the meeting this one follows up on, if any.
func (s *SchedulerService) OriginalOf(ctx context.Context, followUpID uuid.UUID) (*models.Meeting, error) {
	var link models.FollowUpLink
	err := s.DB.WithContext(ctx).
		Preload("OriginalMeeting").
		Preload("OriginalMeeting.Group").
		Preload("OriginalMeeting.Host").
		First(&link, "follow_up_meeting_id = ?", followUpID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFoundError("not a follow-up meeting")
		}
		return nil, err
	}
	return &link.OriginalMeeting, nil
}

// Participants returns the users enrolled in the meeting, in enrollment order.
func (s *SchedulerService) Participants(ctx context.Context, meetingID uuid.UUID) ([]models.User, error) {
	var users []models.User
	err := s.DB.WithContext(ctx).
		Model(&models.User{}).
		Joins("JOIN meeting_participants ON meeting_participants.user_id = users.id").
		Where("meeting_participants.meeting_id = ?", meetingID).
		Order("meeting_participants.created_at ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// IsParticipant reports whether the user is enrolled in the meeting.
func (s *SchedulerService) IsParticipant(ctx context.Context, meetingID, userID uuid.UUID) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.MeetingParticipant{}).
		Where("meeting_id = ? AND user_id = ?", meetingID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
