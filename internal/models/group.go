package models

import "github.com/google/uuid"

type Group struct {
	BaseModel
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	Description *string   `json:"description,omitempty" gorm:"type:text"`
	HostID      uuid.UUID `json:"hostID" gorm:"type:uuid;not null;index"`

	Host        User              `json:"host,omitempty" gorm:"foreignKey:HostID"`
	Memberships []GroupMembership `json:"memberships,omitempty" gorm:"foreignKey:GroupID"`

	MemberCount int64 `json:"memberCount" gorm:"-"`
}
