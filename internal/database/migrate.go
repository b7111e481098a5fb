package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/gema-notify/internal/models"
)

// Migrate creates or updates the tables read and written by the notifier.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Student{},
		&models.Course{},
		&models.Team{},
		&models.Assignment{},
		&models.Submission{},
		&models.PeerReview{},
		&models.Grade{},
		&models.DeadlineCheckpoint{},
		&models.NotificationDelivery{},
	)
}
