package models

type UserRole string

const (
	UserRoleHost        UserRole = "host"
	UserRoleParticipant UserRole = "participant"
)

type User struct {
	BaseModel
	Name         string   `json:"name" gorm:"type:varchar(100);not null"`
	Email        string   `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string   `json:"-" gorm:"type:text;not null"`
	Role         UserRole `json:"role" gorm:"type:varchar(20);not null;default:'participant'"`

	Memberships  []GroupMembership `json:"-" gorm:"foreignKey:UserID"`
	HostedGroups []Group           `json:"-" gorm:"foreignKey:HostID"`
}
