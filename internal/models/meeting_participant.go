package models

import "github.com/google/uuid"

// MeetingParticipant rows are a snapshot of the group membership at the time
// the meeting was created; they are never re-derived afterwards.
type MeetingParticipant struct {
	BaseModel
	MeetingID uuid.UUID `json:"meetingID" gorm:"type:uuid;not null;index;uniqueIndex:idx_meeting_user"`
	UserID    uuid.UUID `json:"userID" gorm:"type:uuid;not null;index;uniqueIndex:idx_meeting_user"`

	Meeting Meeting `json:"meeting,omitempty" gorm:"foreignKey:MeetingID"`
	User    User    `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
