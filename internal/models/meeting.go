package models

import (
	"time"

	"github.com/google/uuid"
)

type Meeting struct {
	BaseModel
	Title       string     `json:"title" gorm:"type:varchar(255);not null"`
	Description *string    `json:"description,omitempty" gorm:"type:text"`
	GroupID     uuid.UUID  `json:"groupID" gorm:"type:uuid;not null;index"`
	HostID      uuid.UUID  `json:"hostID" gorm:"type:uuid;not null;index"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty" gorm:"index"`

	Group        Group                `json:"group,omitempty" gorm:"foreignKey:GroupID"`
	Host         User                 `json:"host,omitempty" gorm:"foreignKey:HostID"`
	Participants []MeetingParticipant `json:"participants,omitempty" gorm:"foreignKey:MeetingID"`

	ParticipantCount int64 `json:"participantCount" gorm:"-"`
}
