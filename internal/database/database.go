package database

import (
	"fmt"

	"github.com/learncircle/backend/internal/config"
	"github.com/learncircle/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := addStatusConstraint(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the schema. Exported so tests can run it against
// an in-memory database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMembership{},
		&models.Invitation{},
		&models.Meeting{},
		&models.MeetingParticipant{},
		&models.Recording{},
		&models.ChatMessage{},
		&models.LearningNote{},
		&models.FollowUpLink{},
		&models.ReminderLog{},
	)
}

func addStatusConstraint(db *gorm.DB) error {
	constraint := `
DO $$
BEGIN
  IF NOT EXISTS (
    SELECT 1
    FROM pg_constraint
    WHERE conname = 'invitation_status_check'
  ) THEN
    ALTER TABLE invitations
    ADD CONSTRAINT invitation_status_check
    CHECK (status IN ('pending', 'accepted', 'declined'));
  END IF;
END $$;`

	return db.Exec(constraint).Error
}
