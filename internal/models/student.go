package models

import "time"

// Student represents a learner enrolled in one or more courses.
type Student struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"size:255;not null" json:"name"`
	Email     StudentEmail `gorm:"size:255;uniqueIndex;not null" json:"email"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
