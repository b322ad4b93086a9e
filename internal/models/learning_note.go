package models

import "github.com/google/uuid"

type LearningNote struct {
	BaseModel
	MeetingID uuid.UUID `json:"meetingID" gorm:"type:uuid;not null;index;uniqueIndex:idx_meeting_note_user"`
	UserID    uuid.UUID `json:"userID" gorm:"type:uuid;not null;uniqueIndex:idx_meeting_note_user"`
	Note      string    `json:"note" gorm:"type:text;not null"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
