package models

import "github.com/google/uuid"

// Recording holds the captured artifacts for one meeting: the stored audio
// object (if any), the transcript and the generated minutes. At most one row
// exists per meeting; transcript and summary are overwritten in place.
type Recording struct {
	BaseModel
	MeetingID   uuid.UUID `json:"meetingID" gorm:"type:uuid;not null;uniqueIndex"`
	AudioObject *string   `json:"audioObject,omitempty" gorm:"type:text"`
	Transcript  string    `json:"transcript" gorm:"type:text;not null"`
	Summary     *string   `json:"summary,omitempty" gorm:"type:text"`
	CreatedByID uuid.UUID `json:"createdByID" gorm:"type:uuid;not null"`

	Meeting   Meeting `json:"meeting,omitempty" gorm:"foreignKey:MeetingID"`
	CreatedBy User    `json:"createdBy,omitempty" gorm:"foreignKey:CreatedByID"`
}
