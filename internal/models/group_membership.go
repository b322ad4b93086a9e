package models

import "github.com/google/uuid"

type GroupMembership struct {
	BaseModel
	GroupID uuid.UUID `json:"groupID" gorm:"type:uuid;not null;index;uniqueIndex:idx_group_user"`
	UserID  uuid.UUID `json:"userID" gorm:"type:uuid;not null;index;uniqueIndex:idx_group_user"`

	Group Group `json:"group,omitempty" gorm:"foreignKey:GroupID"`
	User  User  `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
