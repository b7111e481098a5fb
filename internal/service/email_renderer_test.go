package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleData() MessageData {
	reviewDeadline := time.Date(2023, time.March, 15, 12, 0, 0, 0, time.UTC)
	return MessageData{
		CourseID:           "MAI101-1-101-Spring-2023",
		CourseName:         "Main Course",
		AssignmentID:       1,
		AssignmentTitle:    "Assignment 1",
		Deadline:           time.Date(2023, time.March, 8, 12, 0, 0, 0, time.UTC),
		PeerReviewDeadline: &reviewDeadline,
		RecipientName:      "Student 1",
		TeamName:           "T12",
		ReviewerTeam:       "T34",
		Quota:              2,
	}
}

func TestRendererCoversEveryKind(t *testing.T) {
	renderer := NewEmailRenderer()
	score := 91.0

	for _, kind := range EventKinds {
		data := sampleData()
		data.Score = &score
		data.MissingTeams = []string{"T56"}
		data.ReviewShortfalls = []ReviewShortfall{{TeamName: "T56", Submitted: 1, Required: 2}}

		msg, err := renderer.Render(Envelope{Recipient: "student1@oswego.test", Template: kind, Data: data})
		require.NoError(t, err, kind)
		require.Equal(t, "student1@oswego.test", msg.To)
		require.Equal(t, string(kind), msg.Template)
		require.NotEmpty(t, msg.Subject, kind)
		require.Contains(t, msg.Text, "Hello Student 1,", kind)
		require.Contains(t, msg.HTML, "<p>Hello Student 1,</p>", kind)
	}
}

func TestRendererDeadlineTemplates(t *testing.T) {
	renderer := NewEmailRenderer()

	data := sampleData()
	data.MissingTeams = []string{"T34", "T56"}
	msg, err := renderer.Render(Envelope{Recipient: "prof@oswego.test", Template: KindSubmissionDeadlinePassed, Data: data})
	require.NoError(t, err)
	require.Equal(t, "Missing submissions for Assignment 1", msg.Subject)
	require.Contains(t, msg.Text, "- T34\n- T56")
	require.Contains(t, msg.Text, "Wed, 08 Mar 2023 12:00 UTC")

	data = sampleData()
	data.ReviewShortfalls = []ReviewShortfall{{TeamName: "T12", Submitted: 1, Required: 2}}
	msg, err = renderer.Render(Envelope{Recipient: "prof@oswego.test", Template: KindReviewDeadlinePassed, Data: data})
	require.NoError(t, err)
	require.Contains(t, msg.Text, "- T12: 1 of 2")

	data = sampleData()
	score := 87.5
	data.Score = &score
	msg, err = renderer.Render(Envelope{Recipient: "student1@oswego.test", Template: KindGradeReceived, Data: data})
	require.NoError(t, err)
	require.Contains(t, msg.Text, "received a grade of 87.50")
}

func TestRendererStripsMarkup(t *testing.T) {
	renderer := NewEmailRenderer()

	data := sampleData()
	data.AssignmentTitle = `Essay <script>alert("x")</script><b>Draft</b> & notes`
	msg, err := renderer.Render(Envelope{Recipient: "student1@oswego.test", Template: KindAssignmentCreated, Data: data})
	require.NoError(t, err)

	require.NotContains(t, msg.Text, "<script>")
	require.NotContains(t, msg.Text, "<b>")
	require.Contains(t, msg.Text, "Draft & notes")
	require.NotContains(t, msg.HTML, "<script>")
	require.Contains(t, msg.HTML, "Draft &amp; notes")
}

func TestRendererRejectsUnknownTemplate(t *testing.T) {
	_, err := NewEmailRenderer().Render(Envelope{Recipient: "a@b.test", Template: "mystery"})
	require.ErrorIs(t, err, ErrUnknownEventKind)
}
