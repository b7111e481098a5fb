package models

import (
	"time"

	"gorm.io/datatypes"
)

// Delivery statuses recorded per recipient.
const (
	DeliveryStatusSent   = "sent"
	DeliveryStatusFailed = "failed"
)

// DeadlineCheckpoint is the last instant through which an (assignment, deadline kind) pair was evaluated.
type DeadlineCheckpoint struct {
	AssignmentID AssignmentID `gorm:"primaryKey;autoIncrement:false" json:"assignment_id"`
	Kind         DeadlineKind `gorm:"primaryKey;size:32" json:"kind"`
	CheckpointAt time.Time    `gorm:"not null" json:"checkpoint_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NotificationDelivery is the audit record of one attempted e-mail.
type NotificationDelivery struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	DispatchID   string            `gorm:"size:64;index;not null" json:"dispatch_id"`
	EventKind    string            `gorm:"size:64;index;not null" json:"event_kind"`
	CourseID     CourseID          `gorm:"size:128;index" json:"course_id"`
	AssignmentID AssignmentID      `gorm:"index" json:"assignment_id"`
	Recipient    string            `gorm:"size:255;not null" json:"recipient"`
	Template     string            `gorm:"size:64;not null" json:"template"`
	Status       string            `gorm:"size:16;not null" json:"status"`
	Reason       string            `gorm:"type:text" json:"reason"`
	Data         datatypes.JSONMap `gorm:"type:json" json:"data"`
	CreatedAt    time.Time         `json:"created_at"`
}
