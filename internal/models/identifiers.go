package models

import (
	"strings"
)

// CourseID identifies a course section, e.g. "MAI101-1-101-Spring-2023".
type CourseID string

// AssignmentID identifies an assignment.
type AssignmentID uint

// TeamName identifies a team within its course.
type TeamName string

// StudentEmail identifies a student across courses.
type StudentEmail string

// Normalize lowercases and trims the address.
func (e StudentEmail) Normalize() StudentEmail {
	return StudentEmail(strings.ToLower(strings.TrimSpace(string(e))))
}

// DeadlineKind distinguishes the deadlines watched by the tracker.
type DeadlineKind string

const (
	// DeadlineSubmission is the assignment's submission deadline.
	DeadlineSubmission DeadlineKind = "submission"
	// DeadlinePeerReview is the assignment's peer-review deadline.
	DeadlinePeerReview DeadlineKind = "peer_review"
)

// DeadlineKinds lists every kind the tracker evaluates.
var DeadlineKinds = []DeadlineKind{DeadlineSubmission, DeadlinePeerReview}
