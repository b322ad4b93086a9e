package models

import "github.com/google/uuid"

// FollowUpLink associates a meeting with the later meeting that continues it.
// The pair is unique and each meeting can be the original of at most one link.
type FollowUpLink struct {
	BaseModel
	OriginalMeetingID uuid.UUID `json:"originalMeetingID" gorm:"type:uuid;not null;uniqueIndex:idx_follow_up_pair;uniqueIndex:idx_follow_up_original"`
	FollowUpMeetingID uuid.UUID `json:"followUpMeetingID" gorm:"type:uuid;not null;uniqueIndex:idx_follow_up_pair;index"`

	OriginalMeeting Meeting `json:"originalMeeting,omitempty" gorm:"foreignKey:OriginalMeetingID"`
	FollowUpMeeting Meeting `json:"followUpMeeting,omitempty" gorm:"foreignKey:FollowUpMeetingID"`
}
