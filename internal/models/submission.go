package models

import "time"

// Submission records that a team turned in an assignment.
type Submission struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	AssignmentID AssignmentID `gorm:"not null;index" json:"assignment_id"`
	TeamID       uint         `gorm:"not null;index" json:"team_id"`
	CreatedAt    time.Time    `json:"created_at"`
}

// PeerReview is one team's evaluation of another team's submission.
type PeerReview struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	AssignmentID   AssignmentID `gorm:"not null;index" json:"assignment_id"`
	ReviewerTeamID uint         `gorm:"not null;index" json:"reviewer_team_id"`
	ReviewedTeamID uint         `gorm:"not null;index" json:"reviewed_team_id"`
	Submitted      bool         `gorm:"not null;default:false" json:"submitted"`
	SubmittedAt    *time.Time   `json:"submitted_at"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Grade is the score a team received for an assignment.
type Grade struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	AssignmentID AssignmentID `gorm:"not null;uniqueIndex:idx_grade_assignment_team" json:"assignment_id"`
	TeamID       uint         `gorm:"not null;uniqueIndex:idx_grade_assignment_team" json:"team_id"`
	Score        float64      `gorm:"not null" json:"score"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
