package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/gema-notify/internal/models"
	"github.com/noah-isme/gema-notify/internal/repository"
)

// ReviewShortfall describes a team that has not submitted enough peer reviews.
type ReviewShortfall struct {
	TeamName  string `json:"team_name"`
	Submitted int    `json:"submitted"`
	Required  int    `json:"required"`
}

// MessageData is the template input of every notification e-mail. Fields irrelevant to a kind stay empty.
type MessageData struct {
	CourseID           string            `json:"course_id"`
	CourseName         string            `json:"course_name"`
	ProfessorName      string            `json:"professor_name,omitempty"`
	AssignmentID       uint              `json:"assignment_id"`
	AssignmentTitle    string            `json:"assignment_title"`
	Deadline           time.Time         `json:"deadline"`
	PeerReviewDeadline *time.Time        `json:"peer_review_deadline,omitempty"`
	RecipientName      string            `json:"recipient_name,omitempty"`
	TeamName           string            `json:"team_name,omitempty"`
	ReviewerTeam       string            `json:"reviewer_team,omitempty"`
	Score              *float64          `json:"score,omitempty"`
	Quota              int               `json:"quota,omitempty"`
	MissingTeams       []string          `json:"missing_teams,omitempty"`
	ReviewShortfalls   []ReviewShortfall `json:"review_shortfalls,omitempty"`
}

// AsMap converts the data into a JSON object, as stored in the delivery log.
func (d MessageData) AsMap() map[string]interface{} {
	payload, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil
	}
	return out
}

// Envelope is one decided e-mail: who receives it, which template renders it, and with what data.
type Envelope struct {
	Recipient string
	Template  EventKind
	Data      MessageData
}

// NotificationRules decides, per event kind, which recipients must be e-mailed.
// Rules read through the repository and never write or send anything.
type NotificationRules struct {
	repo         repository.CourseworkRepository
	defaultQuota int
}

// NewNotificationRules constructs the decision engine. defaultQuota applies to assignments without a stored quota.
func NewNotificationRules(repo repository.CourseworkRepository, defaultQuota int) *NotificationRules {
	if defaultQuota <= 0 {
		defaultQuota = 2
	}
	return &NotificationRules{repo: repo, defaultQuota: defaultQuota}
}

// Decide resolves the identifiers carried by event and applies the matching rule.
func (r *NotificationRules) Decide(ctx context.Context, event NotificationEvent) ([]Envelope, error) {
	course, err := r.repo.GetCourse(ctx, event.Course())
	if err != nil {
		return nil, err
	}

	assignment, err := r.repo.GetAssignment(ctx, course.ID, event.Assignment())
	if err != nil {
		return nil, err
	}

	switch e := event.(type) {
	case AssignmentCreated:
		return r.AssignmentCreated(course, assignment), nil
	case AssignmentSubmitted:
		team, err := r.repo.GetTeam(ctx, course.ID, e.Team)
		if err != nil {
			return nil, err
		}
		return r.AssignmentSubmitted(course, team, assignment), nil
	case AllAssignmentsSubmitted:
		return r.AllAssignmentsSubmitted(ctx, course, assignment)
	case PeerReviewAssigned:
		return r.PeerReviewAssigned(course, assignment), nil
	case PeerReviewSubmitted:
		reviewer, err := r.repo.GetStudentByEmail(ctx, e.Reviewer)
		if err != nil {
			return nil, err
		}
		reviewed, err := r.repo.GetTeam(ctx, course.ID, e.ReviewedTeam)
		if err != nil {
			return nil, err
		}
		return r.PeerReviewSubmitted(ctx, reviewer, course, reviewed, assignment)
	case AllPeerReviewsSubmitted:
		return r.AllPeerReviewsSubmitted(ctx, course, assignment)
	case SubmissionDeadlinePassed:
		return r.AssignmentDeadlinePassed(ctx, course, assignment)
	case ReviewDeadlinePassed:
		return r.PeerReviewDeadlinePassed(ctx, course, assignment)
	case GradeReceived:
		team, err := r.repo.GetTeam(ctx, course.ID, e.Team)
		if err != nil {
			return nil, err
		}
		return r.GradeReceived(ctx, course, assignment, team)
	case OutlierDetected:
		team, err := r.repo.GetTeam(ctx, course.ID, e.Team)
		if err != nil {
			return nil, err
		}
		return r.OutlierDetected(course, team, assignment), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventKind, event.Kind())
	}
}

// AssignmentCreated announces the assignment to every student of the course.
func (r *NotificationRules) AssignmentCreated(course models.Course, assignment models.Assignment) []Envelope {
	return toStudents(course.Students, KindAssignmentCreated, baseData(course, assignment))
}

// AssignmentSubmitted confirms the submission to every member of the team.
func (r *NotificationRules) AssignmentSubmitted(course models.Course, team models.Team, assignment models.Assignment) []Envelope {
	data := baseData(course, assignment)
	data.TeamName = string(team.Name)
	return toStudents(team.Members, KindAssignmentSubmitted, data)
}

// AllAssignmentsSubmitted notifies the professor once every team of the course has a submission.
// A course without teams is complete as it stands.
func (r *NotificationRules) AllAssignmentsSubmitted(ctx context.Context, course models.Course, assignment models.Assignment) ([]Envelope, error) {
	missing, err := r.missingSubmissions(ctx, course, assignment)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, nil
	}
	return toProfessor(course, KindAllAssignmentsSubmitted, baseData(course, assignment)), nil
}

// PeerReviewAssigned announces peer reviews to every student of the course.
func (r *NotificationRules) PeerReviewAssigned(course models.Course, assignment models.Assignment) []Envelope {
	data := baseData(course, assignment)
	data.Quota = assignment.Quota(r.defaultQuota)
	return toStudents(course.Students, KindPeerReviewAssigned, data)
}

// PeerReviewSubmitted notifies the members of the reviewed team. The reviewer's own team is resolved
// only to look up the review assignment linking it to the reviewed team.
func (r *NotificationRules) PeerReviewSubmitted(ctx context.Context, reviewer models.Student, course models.Course, reviewed models.Team, assignment models.Assignment) ([]Envelope, error) {
	reviewerTeam, err := r.repo.FindStudentTeam(ctx, course.ID, reviewer.ID)
	if err != nil {
		return nil, err
	}

	if _, err := r.repo.GetPeerReview(ctx, assignment.ID, reviewerTeam.ID, reviewed.ID); err != nil {
		return nil, err
	}

	data := baseData(course, assignment)
	data.TeamName = string(reviewed.Name)
	data.ReviewerTeam = string(reviewerTeam.Name)
	return toStudents(reviewed.Members, KindPeerReviewSubmitted, data), nil
}

// AllPeerReviewsSubmitted notifies the professor once every team has submitted at least its quota of reviews.
func (r *NotificationRules) AllPeerReviewsSubmitted(ctx context.Context, course models.Course, assignment models.Assignment) ([]Envelope, error) {
	shortfalls, err := r.reviewShortfalls(ctx, course, assignment)
	if err != nil {
		return nil, err
	}
	if len(shortfalls) > 0 {
		return nil, nil
	}

	data := baseData(course, assignment)
	data.Quota = assignment.Quota(r.defaultQuota)
	return toProfessor(course, KindAllPeerReviewsSubmitted, data), nil
}

// AssignmentDeadlinePassed sends the professor the list of teams without a submission, if any.
// It evaluates completeness as of the call and does not check the clock against the deadline.
func (r *NotificationRules) AssignmentDeadlinePassed(ctx context.Context, course models.Course, assignment models.Assignment) ([]Envelope, error) {
	missing, err := r.missingSubmissions(ctx, course, assignment)
	if err != nil {
		return nil, err
	}
	if len(missing) == 0 {
		return nil, nil
	}

	data := baseData(course, assignment)
	data.MissingTeams = missing
	return toProfessor(course, KindSubmissionDeadlinePassed, data), nil
}

// PeerReviewDeadlinePassed sends the professor the list of teams short of their review quota, if any.
// Like AssignmentDeadlinePassed it does not check the clock.
func (r *NotificationRules) PeerReviewDeadlinePassed(ctx context.Context, course models.Course, assignment models.Assignment) ([]Envelope, error) {
	shortfalls, err := r.reviewShortfalls(ctx, course, assignment)
	if err != nil {
		return nil, err
	}
	if len(shortfalls) == 0 {
		return nil, nil
	}

	data := baseData(course, assignment)
	data.Quota = assignment.Quota(r.defaultQuota)
	data.ReviewShortfalls = shortfalls
	return toProfessor(course, KindReviewDeadlinePassed, data), nil
}

// GradeReceived notifies the members of the team once a grade is recorded.
func (r *NotificationRules) GradeReceived(ctx context.Context, course models.Course, assignment models.Assignment, team models.Team) ([]Envelope, error) {
	grade, err := r.repo.GetGrade(ctx, assignment.ID, team.ID)
	if err != nil {
		return nil, err
	}

	data := baseData(course, assignment)
	data.TeamName = string(team.Name)
	score := grade.Score
	data.Score = &score
	return toStudents(team.Members, KindGradeReceived, data), nil
}

// OutlierDetected alerts the professor about the team. Whether the team is an outlier is the caller's call.
func (r *NotificationRules) OutlierDetected(course models.Course, team models.Team, assignment models.Assignment) []Envelope {
	data := baseData(course, assignment)
	data.TeamName = string(team.Name)
	return toProfessor(course, KindOutlierDetected, data)
}

func (r *NotificationRules) missingSubmissions(ctx context.Context, course models.Course, assignment models.Assignment) ([]string, error) {
	teams, err := r.repo.ListTeams(ctx, course.ID)
	if err != nil {
		return nil, err
	}

	submittedIDs, err := r.repo.ListSubmittedTeams(ctx, assignment.ID)
	if err != nil {
		return nil, err
	}

	submitted := make(map[uint]struct{}, len(submittedIDs))
	for _, id := range submittedIDs {
		submitted[id] = struct{}{}
	}

	missing := make([]string, 0)
	for _, team := range teams {
		if _, ok := submitted[team.ID]; !ok {
			missing = append(missing, string(team.Name))
		}
	}
	sort.Strings(missing)

	return missing, nil
}

func (r *NotificationRules) reviewShortfalls(ctx context.Context, course models.Course, assignment models.Assignment) ([]ReviewShortfall, error) {
	teams, err := r.repo.ListTeams(ctx, course.ID)
	if err != nil {
		return nil, err
	}

	counts, err := r.repo.ListPeerReviewCounts(ctx, assignment.ID)
	if err != nil {
		return nil, err
	}

	quota := assignment.Quota(r.defaultQuota)
	shortfalls := make([]ReviewShortfall, 0)
	for _, team := range teams {
		if counts[team.ID] < quota {
			shortfalls = append(shortfalls, ReviewShortfall{
				TeamName:  string(team.Name),
				Submitted: counts[team.ID],
				Required:  quota,
			})
		}
	}
	sort.Slice(shortfalls, func(i, j int) bool {
		return shortfalls[i].TeamName < shortfalls[j].TeamName
	})

	return shortfalls, nil
}

func baseData(course models.Course, assignment models.Assignment) MessageData {
	return MessageData{
		CourseID:           string(course.ID),
		CourseName:         course.Name,
		ProfessorName:      course.ProfessorName,
		AssignmentID:       uint(assignment.ID),
		AssignmentTitle:    assignment.Title,
		Deadline:           assignment.Deadline,
		PeerReviewDeadline: assignment.PeerReviewDeadline,
	}
}

func toStudents(students []models.Student, kind EventKind, data MessageData) []Envelope {
	envelopes := make([]Envelope, 0, len(students))
	for _, student := range students {
		personal := data
		personal.RecipientName = student.Name
		envelopes = append(envelopes, Envelope{
			Recipient: string(student.Email),
			Template:  kind,
			Data:      personal,
		})
	}
	return envelopes
}

func toProfessor(course models.Course, kind EventKind, data MessageData) []Envelope {
	data.RecipientName = course.ProfessorName
	return []Envelope{{
		Recipient: course.ProfessorEmail,
		Template:  kind,
		Data:      data,
	}}
}
