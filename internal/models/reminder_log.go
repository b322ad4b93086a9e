package models

import "github.com/google/uuid"

// ReminderLog records that a reminder of a given kind was dispatched for a
// meeting, so opportunistic reminder checks stay idempotent.
type ReminderLog struct {
	BaseModel
	MeetingID uuid.UUID `json:"meetingID" gorm:"type:uuid;not null;uniqueIndex:idx_meeting_reminder_kind"`
	Kind      string    `json:"kind" gorm:"type:varchar(30);not null;uniqueIndex:idx_meeting_reminder_kind"`
}
