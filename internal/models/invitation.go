package models

import "github.com/google/uuid"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

type Invitation struct {
	BaseModel
	GroupID     uuid.UUID        `json:"groupID" gorm:"type:uuid;not null;index;uniqueIndex:idx_group_email"`
	Email       string           `json:"email" gorm:"type:varchar(255);not null;uniqueIndex:idx_group_email"`
	InvitedByID uuid.UUID        `json:"invitedByID" gorm:"type:uuid;not null"`
	Status      InvitationStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`

	Group     Group `json:"group,omitempty" gorm:"foreignKey:GroupID"`
	InvitedBy User  `json:"invitedBy,omitempty" gorm:"foreignKey:InvitedByID"`
}
