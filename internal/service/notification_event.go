package service

import (
	"github.com/noah-isme/gema-notify/internal/models"
)

// EventKind names a notification trigger. Kinds double as e-mail template identifiers.
type EventKind string

const (
	KindAssignmentCreated        EventKind = "assignment_created"
	KindAssignmentSubmitted      EventKind = "assignment_submitted"
	KindAllAssignmentsSubmitted  EventKind = "all_assignments_submitted"
	KindPeerReviewAssigned       EventKind = "peer_review_assigned"
	KindPeerReviewSubmitted      EventKind = "peer_review_submitted"
	KindAllPeerReviewsSubmitted  EventKind = "all_peer_reviews_submitted"
	KindSubmissionDeadlinePassed EventKind = "submission_deadline_passed"
	KindReviewDeadlinePassed     EventKind = "review_deadline_passed"
	KindGradeReceived            EventKind = "grade_received"
	KindOutlierDetected          EventKind = "outlier_detected"
)

// EventKinds lists every supported kind.
var EventKinds = []EventKind{
	KindAssignmentCreated,
	KindAssignmentSubmitted,
	KindAllAssignmentsSubmitted,
	KindPeerReviewAssigned,
	KindPeerReviewSubmitted,
	KindAllPeerReviewsSubmitted,
	KindSubmissionDeadlinePassed,
	KindReviewDeadlinePassed,
	KindGradeReceived,
	KindOutlierDetected,
}

// NotificationEvent is one assignment lifecycle fact that may require e-mail.
// The set of implementations is closed to this package.
type NotificationEvent interface {
	Kind() EventKind
	Course() models.CourseID
	Assignment() models.AssignmentID
	notificationEvent()
}

// courseAssignment carries the references shared by every event.
type courseAssignment struct {
	CourseID     models.CourseID
	AssignmentID models.AssignmentID
}

func (c courseAssignment) Course() models.CourseID         { return c.CourseID }
func (c courseAssignment) Assignment() models.AssignmentID { return c.AssignmentID }
func (courseAssignment) notificationEvent()                {}

// AssignmentCreated announces a new assignment to the whole roster.
type AssignmentCreated struct{ courseAssignment }

// AssignmentSubmitted confirms a submission to the submitting team.
type AssignmentSubmitted struct {
	courseAssignment
	Team models.TeamName
}

// AllAssignmentsSubmitted tells the professor every team has submitted.
type AllAssignmentsSubmitted struct{ courseAssignment }

// PeerReviewAssigned announces peer reviews to the whole roster.
type PeerReviewAssigned struct{ courseAssignment }

// PeerReviewSubmitted tells the reviewed team a review of its work arrived.
type PeerReviewSubmitted struct {
	courseAssignment
	Reviewer     models.StudentEmail
	ReviewedTeam models.TeamName
}

// AllPeerReviewsSubmitted tells the professor every team met its review quota.
type AllPeerReviewsSubmitted struct{ courseAssignment }

// SubmissionDeadlinePassed reports teams missing a submission to the professor.
type SubmissionDeadlinePassed struct{ courseAssignment }

// ReviewDeadlinePassed reports teams short of their review quota to the professor.
type ReviewDeadlinePassed struct{ courseAssignment }

// GradeReceived tells a team its grade is available.
type GradeReceived struct {
	courseAssignment
	Team models.TeamName
}

// OutlierDetected alerts the professor about a team flagged by grade analysis.
type OutlierDetected struct {
	courseAssignment
	Team models.TeamName
}

func (AssignmentCreated) Kind() EventKind        { return KindAssignmentCreated }
func (AssignmentSubmitted) Kind() EventKind      { return KindAssignmentSubmitted }
func (AllAssignmentsSubmitted) Kind() EventKind  { return KindAllAssignmentsSubmitted }
func (PeerReviewAssigned) Kind() EventKind       { return KindPeerReviewAssigned }
func (PeerReviewSubmitted) Kind() EventKind      { return KindPeerReviewSubmitted }
func (AllPeerReviewsSubmitted) Kind() EventKind  { return KindAllPeerReviewsSubmitted }
func (SubmissionDeadlinePassed) Kind() EventKind { return KindSubmissionDeadlinePassed }
func (ReviewDeadlinePassed) Kind() EventKind     { return KindReviewDeadlinePassed }
func (GradeReceived) Kind() EventKind            { return KindGradeReceived }
func (OutlierDetected) Kind() EventKind          { return KindOutlierDetected }

func ref(courseID models.CourseID, assignmentID models.AssignmentID) courseAssignment {
	return courseAssignment{CourseID: courseID, AssignmentID: assignmentID}
}

// NewAssignmentCreated builds the event.
func NewAssignmentCreated(courseID models.CourseID, assignmentID models.AssignmentID) AssignmentCreated {
	return AssignmentCreated{ref(courseID, assignmentID)}
}

// NewAssignmentSubmitted builds the event.
func NewAssignmentSubmitted(courseID models.CourseID, team models.TeamName, assignmentID models.AssignmentID) AssignmentSubmitted {
	return AssignmentSubmitted{courseAssignment: ref(courseID, assignmentID), Team: team}
}

// NewAllAssignmentsSubmitted builds the event.
func NewAllAssignmentsSubmitted(courseID models.CourseID, assignmentID models.AssignmentID) AllAssignmentsSubmitted {
	return AllAssignmentsSubmitted{ref(courseID, assignmentID)}
}

// NewPeerReviewAssigned builds the event.
func NewPeerReviewAssigned(courseID models.CourseID, assignmentID models.AssignmentID) PeerReviewAssigned {
	return PeerReviewAssigned{ref(courseID, assignmentID)}
}

// NewPeerReviewSubmitted builds the event. reviewedTeam is the team whose submission was evaluated.
func NewPeerReviewSubmitted(reviewer models.StudentEmail, courseID models.CourseID, reviewedTeam models.TeamName, assignmentID models.AssignmentID) PeerReviewSubmitted {
	return PeerReviewSubmitted{courseAssignment: ref(courseID, assignmentID), Reviewer: reviewer, ReviewedTeam: reviewedTeam}
}

// NewAllPeerReviewsSubmitted builds the event.
func NewAllPeerReviewsSubmitted(courseID models.CourseID, assignmentID models.AssignmentID) AllPeerReviewsSubmitted {
	return AllPeerReviewsSubmitted{ref(courseID, assignmentID)}
}

// NewSubmissionDeadlinePassed builds the event.
func NewSubmissionDeadlinePassed(courseID models.CourseID, assignmentID models.AssignmentID) SubmissionDeadlinePassed {
	return SubmissionDeadlinePassed{ref(courseID, assignmentID)}
}

// NewReviewDeadlinePassed builds the event.
func NewReviewDeadlinePassed(courseID models.CourseID, assignmentID models.AssignmentID) ReviewDeadlinePassed {
	return ReviewDeadlinePassed{ref(courseID, assignmentID)}
}

// NewGradeReceived builds the event.
func NewGradeReceived(courseID models.CourseID, assignmentID models.AssignmentID, team models.TeamName) GradeReceived {
	return GradeReceived{courseAssignment: ref(courseID, assignmentID), Team: team}
}

// NewOutlierDetected builds the event.
func NewOutlierDetected(courseID models.CourseID, team models.TeamName, assignmentID models.AssignmentID) OutlierDetected {
	return OutlierDetected{courseAssignment: ref(courseID, assignmentID), Team: team}
}
