package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one conversation turn. Unlike the other tables it keys on an
// autoincrement sequence so turns carry a monotonic insertion order that does
// not depend on timestamp precision.
type ChatMessage struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"createdAt"`
	MeetingID uuid.UUID `json:"meetingID" gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID `json:"userID" gorm:"type:uuid;not null"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	IsAI      bool      `json:"isAI" gorm:"not null;default:false"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
