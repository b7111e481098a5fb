package models

import "time"

// Course represents a course section owned by a professor.
type Course struct {
	ID             CourseID  `gorm:"primaryKey;size:128" json:"id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	ProfessorName  string    `gorm:"size:255" json:"professor_name"`
	ProfessorEmail string    `gorm:"size:255;not null" json:"professor_email"`
	Students       []Student `gorm:"many2many:course_students" json:"students"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
