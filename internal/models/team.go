package models

import "time"

// Team is a group of students of one course that submits assignments jointly.
type Team struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CourseID  CourseID  `gorm:"size:128;not null;uniqueIndex:idx_team_course_name" json:"course_id"`
	Name      TeamName  `gorm:"size:128;not null;uniqueIndex:idx_team_course_name" json:"name"`
	Members   []Student `gorm:"many2many:team_members" json:"members"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
