// Package testutil seeds in-memory coursework databases shared by repository and service tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/gema-notify/internal/database"
	"github.com/noah-isme/gema-notify/internal/models"
)

// Course and team identifiers used by the seeded fixture.
const (
	MainCourse models.CourseID = "MAI101-1-101-Spring-2023"
	AltCourse  models.CourseID = "ALT101-1-101-Spring-2023"

	Team12 models.TeamName = "T12"
	Team34 models.TeamName = "T34"
	Team56 models.TeamName = "T56"
	Team78 models.TeamName = "T78"

	MainProfessorEmail = "main.professor@oswego.test"
	AltProfessorEmail  = "alt.professor@oswego.test"
)

// Fixture exposes the seeded records.
type Fixture struct {
	DB          *gorm.DB
	MainCourse  models.Course
	AltCourse   models.Course
	Students    []models.Student // students 1-6 of the main course, then the alt-only student
	Teams       map[models.TeamName]models.Team
	Assignment1 models.Assignment // nobody submitted
	Assignment2 models.Assignment // everyone submitted, no peer reviews
	Assignment3 models.Assignment // everyone submitted and finished their reviews
	Base        time.Time
}

// NewDB opens an isolated in-memory SQLite database with the full schema migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

// StudentEmail returns the address of the n-th (1-based) main course student.
func StudentEmail(n int) models.StudentEmail {
	return models.StudentEmail(fmt.Sprintf("student%d@oswego.test", n))
}

// Seed creates two courses, seven students, four teams and three assignments:
//
//	main course: students 1-6, teams T12, T34, T56
//	alt course:  student 6 and the alt student, team T78 (student 5 and the alt student)
func Seed(t *testing.T, db *gorm.DB) Fixture {
	t.Helper()

	base := time.Date(2023, time.March, 1, 12, 0, 0, 0, time.UTC)
	fx := Fixture{DB: db, Base: base, Teams: map[models.TeamName]models.Team{}}

	for i := 1; i <= 6; i++ {
		student := models.Student{Name: fmt.Sprintf("Student %d", i), Email: StudentEmail(i)}
		require.NoError(t, db.Create(&student).Error)
		fx.Students = append(fx.Students, student)
	}
	alt := models.Student{Name: "Alt Student", Email: "alt.student@oswego.test"}
	require.NoError(t, db.Create(&alt).Error)
	fx.Students = append(fx.Students, alt)

	fx.MainCourse = models.Course{
		ID:             MainCourse,
		Name:           "Main Course",
		ProfessorName:  "Main Professor",
		ProfessorEmail: MainProfessorEmail,
		Students:       append([]models.Student(nil), fx.Students[:6]...),
	}
	require.NoError(t, db.Create(&fx.MainCourse).Error)

	fx.AltCourse = models.Course{
		ID:             AltCourse,
		Name:           "Alt Course",
		ProfessorName:  "Alt Professor",
		ProfessorEmail: AltProfessorEmail,
		Students:       []models.Student{fx.Students[5], alt},
	}
	require.NoError(t, db.Create(&fx.AltCourse).Error)

	fx.Teams[Team12] = createTeam(t, db, MainCourse, Team12, fx.Students[0], fx.Students[1])
	fx.Teams[Team34] = createTeam(t, db, MainCourse, Team34, fx.Students[2], fx.Students[3])
	fx.Teams[Team56] = createTeam(t, db, MainCourse, Team56, fx.Students[4], fx.Students[5])
	fx.Teams[Team78] = createTeam(t, db, AltCourse, Team78, fx.Students[4], alt)

	reviewDeadline := base.Add(14 * 24 * time.Hour)
	fx.Assignment1 = createAssignment(t, db, "Assignment 1", base, nil)
	fx.Assignment2 = createAssignment(t, db, "Assignment 2", base, nil)
	fx.Assignment3 = createAssignment(t, db, "Assignment 3", base, &reviewDeadline)

	for _, name := range []models.TeamName{Team12, Team34, Team56} {
		Submit(t, db, fx.Assignment2.ID, fx.Teams[name])
		Submit(t, db, fx.Assignment3.ID, fx.Teams[name])
	}

	// round robin, two reviews per team, all submitted
	ring := []models.TeamName{Team12, Team34, Team56}
	for i, reviewer := range ring {
		for offset := 1; offset <= 2; offset++ {
			reviewed := ring[(i+offset)%len(ring)]
			AssignReview(t, db, fx.Assignment3.ID, fx.Teams[reviewer], fx.Teams[reviewed], true)
		}
	}

	return fx
}

func createTeam(t *testing.T, db *gorm.DB, courseID models.CourseID, name models.TeamName, members ...models.Student) models.Team {
	t.Helper()
	team := models.Team{CourseID: courseID, Name: name, Members: members}
	require.NoError(t, db.Create(&team).Error)
	return team
}

func createAssignment(t *testing.T, db *gorm.DB, title string, base time.Time, reviewDeadline *time.Time) models.Assignment {
	t.Helper()
	assignment := models.Assignment{
		CourseID:           MainCourse,
		Title:              title,
		Deadline:           base.Add(7 * 24 * time.Hour),
		PeerReviewDeadline: reviewDeadline,
		PeerReviewQuota:    2,
		CreatedAt:          base,
	}
	require.NoError(t, db.Create(&assignment).Error)
	return assignment
}

// Submit records a submission of the team for the assignment.
func Submit(t *testing.T, db *gorm.DB, assignmentID models.AssignmentID, team models.Team) {
	t.Helper()
	require.NoError(t, db.Create(&models.Submission{AssignmentID: assignmentID, TeamID: team.ID}).Error)
}

// AssignReview records that reviewer must review reviewed, optionally already submitted.
func AssignReview(t *testing.T, db *gorm.DB, assignmentID models.AssignmentID, reviewer, reviewed models.Team, submitted bool) {
	t.Helper()
	review := models.PeerReview{
		AssignmentID:   assignmentID,
		ReviewerTeamID: reviewer.ID,
		ReviewedTeamID: reviewed.ID,
		Submitted:      submitted,
	}
	if submitted {
		at := time.Date(2023, time.March, 10, 9, 0, 0, 0, time.UTC)
		review.SubmittedAt = &at
	}
	require.NoError(t, db.Create(&review).Error)
}

// RecordGrade stores a grade for the team.
func RecordGrade(t *testing.T, db *gorm.DB, assignmentID models.AssignmentID, team models.Team, score float64) {
	t.Helper()
	require.NoError(t, db.Create(&models.Grade{AssignmentID: assignmentID, TeamID: team.ID, Score: score}).Error)
}
