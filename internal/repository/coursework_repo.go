package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-notify/internal/models"
)

// CourseworkRepository is the read-only view over course, roster, team and assignment records
// that notification decisions are made from. Every call is a fresh query.
type CourseworkRepository interface {
	GetCourse(ctx context.Context, id models.CourseID) (models.Course, error)
	GetAssignment(ctx context.Context, courseID models.CourseID, id models.AssignmentID) (models.Assignment, error)
	GetTeam(ctx context.Context, courseID models.CourseID, name models.TeamName) (models.Team, error)
	GetStudent(ctx context.Context, id uint) (models.Student, error)
	GetStudentByEmail(ctx context.Context, email models.StudentEmail) (models.Student, error)
	FindStudentTeam(ctx context.Context, courseID models.CourseID, studentID uint) (models.Team, error)
	ListTeams(ctx context.Context, courseID models.CourseID) ([]models.Team, error)
	ListSubmittedTeams(ctx context.Context, assignmentID models.AssignmentID) ([]uint, error)
	ListPeerReviewCounts(ctx context.Context, assignmentID models.AssignmentID) (map[uint]int, error)
	GetPeerReview(ctx context.Context, assignmentID models.AssignmentID, reviewerTeamID, reviewedTeamID uint) (models.PeerReview, error)
	GetGrade(ctx context.Context, assignmentID models.AssignmentID, teamID uint) (models.Grade, error)
	ListAssignmentsDue(ctx context.Context, from, to time.Time) ([]models.Assignment, error)
}

type courseworkRepository struct {
	db *gorm.DB
}

// NewCourseworkRepository constructs a repository backed by GORM.
func NewCourseworkRepository(db *gorm.DB) CourseworkRepository {
	return &courseworkRepository{db: db}
}

func orderByStudentID(db *gorm.DB) *gorm.DB {
	return db.Order("students.id ASC")
}

func (r *courseworkRepository) GetCourse(ctx context.Context, id models.CourseID) (models.Course, error) {
	var course models.Course
	err := r.db.WithContext(ctx).
		Preload("Students", orderByStudentID).
		Where("id = ?", id).
		First(&course).Error
	if err != nil {
		return models.Course{}, translateError(err, "course", id)
	}
	return course, nil
}

func (r *courseworkRepository) GetAssignment(ctx context.Context, courseID models.CourseID, id models.AssignmentID) (models.Assignment, error) {
	var assignment models.Assignment
	err := r.db.WithContext(ctx).
		Where("id = ? AND course_id = ?", id, courseID).
		First(&assignment).Error
	if err != nil {
		return models.Assignment{}, translateError(err, "assignment", id)
	}
	return assignment, nil
}

func (r *courseworkRepository) GetTeam(ctx context.Context, courseID models.CourseID, name models.TeamName) (models.Team, error) {
	var team models.Team
	err := r.db.WithContext(ctx).
		Preload("Members", orderByStudentID).
		Where("course_id = ? AND name = ?", courseID, strings.TrimSpace(string(name))).
		First(&team).Error
	if err != nil {
		return models.Team{}, translateError(err, "team", name)
	}
	return team, nil
}

func (r *courseworkRepository) GetStudent(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return models.Student{}, translateError(err, "student", id)
	}
	return student, nil
}

func (r *courseworkRepository) GetStudentByEmail(ctx context.Context, email models.StudentEmail) (models.Student, error) {
	normalized := email.Normalize()

	var student models.Student
	if err := r.db.WithContext(ctx).Where("LOWER(email) = ?", normalized).First(&student).Error; err != nil {
		return models.Student{}, translateError(err, "student", normalized)
	}
	return student, nil
}

func (r *courseworkRepository) FindStudentTeam(ctx context.Context, courseID models.CourseID, studentID uint) (models.Team, error) {
	var team models.Team
	err := r.db.WithContext(ctx).
		Preload("Members", orderByStudentID).
		Joins("JOIN team_members ON team_members.team_id = teams.id").
		Where("teams.course_id = ? AND team_members.student_id = ?", courseID, studentID).
		First(&team).Error
	if err != nil {
		return models.Team{}, translateError(err, "team of student", studentID)
	}
	return team, nil
}

func (r *courseworkRepository) ListTeams(ctx context.Context, courseID models.CourseID) ([]models.Team, error) {
	var teams []models.Team
	err := r.db.WithContext(ctx).
		Preload("Members", orderByStudentID).
		Where("course_id = ?", courseID).
		Order("name ASC").
		Find(&teams).Error
	if err != nil {
		return nil, translateError(err, "teams of course", courseID)
	}
	return teams, nil
}

func (r *courseworkRepository) ListSubmittedTeams(ctx context.Context, assignmentID models.AssignmentID) ([]uint, error) {
	var teamIDs []uint
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("assignment_id = ?", assignmentID).
		Distinct().
		Pluck("team_id", &teamIDs).Error
	if err != nil {
		return nil, translateError(err, "submissions of assignment", assignmentID)
	}
	return teamIDs, nil
}

type reviewCountRow struct {
	ReviewerTeamID uint
	Total          int
}

// ListPeerReviewCounts returns, per reviewing team, how many of its assigned reviews are submitted.
func (r *courseworkRepository) ListPeerReviewCounts(ctx context.Context, assignmentID models.AssignmentID) (map[uint]int, error) {
	var rows []reviewCountRow
	err := r.db.WithContext(ctx).
		Model(&models.PeerReview{}).
		Select("reviewer_team_id, COUNT(*) AS total").
		Where("assignment_id = ? AND submitted = ?", assignmentID, true).
		Group("reviewer_team_id").
		Scan(&rows).Error
	if err != nil {
		return nil, translateError(err, "peer reviews of assignment", assignmentID)
	}

	counts := make(map[uint]int, len(rows))
	for _, row := range rows {
		counts[row.ReviewerTeamID] = row.Total
	}
	return counts, nil
}

func (r *courseworkRepository) GetPeerReview(ctx context.Context, assignmentID models.AssignmentID, reviewerTeamID, reviewedTeamID uint) (models.PeerReview, error) {
	var review models.PeerReview
	err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND reviewer_team_id = ? AND reviewed_team_id = ?", assignmentID, reviewerTeamID, reviewedTeamID).
		First(&review).Error
	if err != nil {
		return models.PeerReview{}, translateError(err, "peer review assignment", assignmentID)
	}
	return review, nil
}

func (r *courseworkRepository) GetGrade(ctx context.Context, assignmentID models.AssignmentID, teamID uint) (models.Grade, error) {
	var grade models.Grade
	err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND team_id = ?", assignmentID, teamID).
		First(&grade).Error
	if err != nil {
		return models.Grade{}, translateError(err, "grade", assignmentID)
	}
	return grade, nil
}

// ListAssignmentsDue returns assignments with a submission or peer-review deadline inside (from, to].
// A zero from lists every deadline up to to.
func (r *courseworkRepository) ListAssignmentsDue(ctx context.Context, from, to time.Time) ([]models.Assignment, error) {
	query := r.db.WithContext(ctx)
	if from.IsZero() {
		query = query.Where("deadline <= ? OR peer_review_deadline <= ?", to, to)
	} else {
		query = query.Where("(deadline > ? AND deadline <= ?) OR (peer_review_deadline > ? AND peer_review_deadline <= ?)", from, to, from, to)
	}

	var assignments []models.Assignment
	err := query.Order("id ASC").Find(&assignments).Error
	if err != nil {
		return nil, translateError(err, "assignments due", to)
	}
	return assignments, nil
}
