package models

import "time"

// Assignment represents a course assignment with its submission and peer-review deadlines.
type Assignment struct {
	ID                 AssignmentID `gorm:"primaryKey" json:"id"`
	CourseID           CourseID     `gorm:"size:128;not null;index" json:"course_id"`
	Title              string       `gorm:"size:255;not null" json:"title"`
	Deadline           time.Time    `gorm:"not null;index" json:"deadline"`
	PeerReviewDeadline *time.Time   `gorm:"index" json:"peer_review_deadline"`
	PeerReviewQuota    int          `gorm:"not null;default:0" json:"peer_review_quota"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// Quota returns the number of peer reviews each team owes, falling back to fallback when unset.
func (a Assignment) Quota(fallback int) int {
	if a.PeerReviewQuota > 0 {
		return a.PeerReviewQuota
	}
	return fallback
}

// DeadlineFor returns the deadline of the given kind, if the assignment has one.
func (a Assignment) DeadlineFor(kind DeadlineKind) (time.Time, bool) {
	switch kind {
	case DeadlineSubmission:
		return a.Deadline, !a.Deadline.IsZero()
	case DeadlinePeerReview:
		if a.PeerReviewDeadline == nil {
			return time.Time{}, false
		}
		return *a.PeerReviewDeadline, true
	default:
		return time.Time{}, false
	}
}
