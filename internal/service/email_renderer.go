package service

import (
	"bytes"
	"fmt"
	"html"
	htmltemplate "html/template"
	"strings"
	"text/template"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

var emailSources = map[EventKind][2]string{
	KindAssignmentCreated: {
		`New assignment in {{.CourseName}}: {{.AssignmentTitle}}`,
		`A new assignment "{{.AssignmentTitle}}" was published in {{.CourseName}}.
It is due {{date .Deadline}}.`,
	},
	KindAssignmentSubmitted: {
		`Submission received: {{.AssignmentTitle}}`,
		`Team {{.TeamName}} submitted "{{.AssignmentTitle}}" for {{.CourseName}}.`,
	},
	KindAllAssignmentsSubmitted: {
		`All teams submitted {{.AssignmentTitle}}`,
		`Every team of {{.CourseName}} has submitted "{{.AssignmentTitle}}".`,
	},
	KindPeerReviewAssigned: {
		`Peer reviews assigned: {{.AssignmentTitle}}`,
		`Peer reviews for "{{.AssignmentTitle}}" in {{.CourseName}} are now open.
Each team must submit {{.Quota}} review(s){{with .PeerReviewDeadline}} by {{date .}}{{end}}.`,
	},
	KindPeerReviewSubmitted: {
		`New peer review of {{.AssignmentTitle}}`,
		`Team {{.ReviewerTeam}} submitted a peer review of team {{.TeamName}}'s work on "{{.AssignmentTitle}}" ({{.CourseName}}).`,
	},
	KindAllPeerReviewsSubmitted: {
		`All peer reviews submitted for {{.AssignmentTitle}}`,
		`Every team of {{.CourseName}} has submitted at least {{.Quota}} peer review(s) for "{{.AssignmentTitle}}".`,
	},
	KindSubmissionDeadlinePassed: {
		`Missing submissions for {{.AssignmentTitle}}`,
		`The deadline of "{{.AssignmentTitle}}" ({{date .Deadline}}) has passed.
Teams without a submission:
{{range .MissingTeams}}- {{.}}
{{end}}`,
	},
	KindReviewDeadlinePassed: {
		`Missing peer reviews for {{.AssignmentTitle}}`,
		`The peer review deadline of "{{.AssignmentTitle}}" has passed.
Teams below the quota of {{.Quota}} review(s):
{{range .ReviewShortfalls}}- {{.TeamName}}: {{.Submitted}} of {{.Required}}
{{end}}`,
	},
	KindGradeReceived: {
		`Grade available: {{.AssignmentTitle}}`,
		`Team {{.TeamName}} received a grade{{with .Score}} of {{score .}}{{end}} for "{{.AssignmentTitle}}" in {{.CourseName}}.`,
	},
	KindOutlierDetected: {
		`Outlier grade detected: {{.AssignmentTitle}}`,
		`The grades of team {{.TeamName}} for "{{.AssignmentTitle}}" in {{.CourseName}} were flagged as an outlier.`,
	},
}

const emailLayout = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
{{if .Name}}<p>Hello {{.Name}},</p>{{end}}
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}<p style="color: #777;">This message was sent automatically by GEMA Classroom.</p>
</body>
</html>`

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.UTC().Format("Mon, 02 Jan 2006 15:04 MST")
	},
	"score": func(s *float64) string {
		return fmt.Sprintf("%.2f", *s)
	},
}

// EmailRenderer turns an envelope into a ready to send message using fixed per-kind templates.
type EmailRenderer struct {
	templates map[EventKind]emailTemplate
	layout    *htmltemplate.Template
	policy    *bluemonday.Policy
}

// NewEmailRenderer parses every template. It panics on a malformed built-in template.
func NewEmailRenderer() *EmailRenderer {
	templates := make(map[EventKind]emailTemplate, len(emailSources))
	for kind, source := range emailSources {
		templates[kind] = emailTemplate{
			subject: template.Must(template.New(string(kind) + "_subject").Funcs(templateFuncs).Parse(source[0])),
			body:    template.Must(template.New(string(kind) + "_body").Funcs(templateFuncs).Parse(source[1])),
		}
	}

	return &EmailRenderer{
		templates: templates,
		layout:    htmltemplate.Must(htmltemplate.New("layout").Parse(emailLayout)),
		policy:    bluemonday.StrictPolicy(),
	}
}

// Render produces the message for one envelope.
func (r *EmailRenderer) Render(envelope Envelope) (Message, error) {
	tmpl, ok := r.templates[envelope.Template]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownEventKind, envelope.Template)
	}

	data := r.sanitize(envelope.Data)

	var subject bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", envelope.Template, err)
	}

	var body bytes.Buffer
	if err := tmpl.body.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render %s body: %w", envelope.Template, err)
	}
	text := strings.TrimSpace(body.String())

	var htmlBody bytes.Buffer
	layoutData := struct {
		Name       string
		Paragraphs []string
	}{Name: data.RecipientName, Paragraphs: strings.Split(text, "\n")}
	if err := r.layout.Execute(&htmlBody, layoutData); err != nil {
		return Message{}, fmt.Errorf("render %s layout: %w", envelope.Template, err)
	}

	if data.RecipientName != "" {
		text = fmt.Sprintf("Hello %s,\n\n%s", data.RecipientName, text)
	}

	return Message{
		To:       envelope.Recipient,
		ToName:   data.RecipientName,
		Subject:  strings.Join(strings.Fields(subject.String()), " "),
		Text:     text,
		HTML:     htmlBody.String(),
		Template: string(envelope.Template),
	}, nil
}

func (r *EmailRenderer) sanitize(data MessageData) MessageData {
	data.CourseName = r.clean(data.CourseName)
	data.ProfessorName = r.clean(data.ProfessorName)
	data.AssignmentTitle = r.clean(data.AssignmentTitle)
	data.RecipientName = r.clean(data.RecipientName)
	data.TeamName = r.clean(data.TeamName)
	data.ReviewerTeam = r.clean(data.ReviewerTeam)

	if len(data.MissingTeams) > 0 {
		missing := make([]string, len(data.MissingTeams))
		for i, team := range data.MissingTeams {
			missing[i] = r.clean(team)
		}
		data.MissingTeams = missing
	}

	if len(data.ReviewShortfalls) > 0 {
		shortfalls := make([]ReviewShortfall, len(data.ReviewShortfalls))
		for i, shortfall := range data.ReviewShortfalls {
			shortfall.TeamName = r.clean(shortfall.TeamName)
			shortfalls[i] = shortfall
		}
		data.ReviewShortfalls = shortfalls
	}

	return data
}

// clean strips markup. The result is plain text; the HTML layout escapes it again.
func (r *EmailRenderer) clean(value string) string {
	return strings.TrimSpace(html.UnescapeString(r.policy.Sanitize(value)))
}
