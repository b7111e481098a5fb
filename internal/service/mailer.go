package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// DefaultSendGridHost is the public SendGrid API.
const DefaultSendGridHost = "https://api.sendgrid.com"

const sendGridEndpoint = "/v3/mail/send"

// Message is one rendered e-mail addressed to a single recipient.
type Message struct {
	To       string
	ToName   string
	Subject  string
	Text     string
	HTML     string
	Template string
}

// Mailer hands a message to an e-mail provider. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger zerolog.Logger
}

// NewLogMailer constructs a logging mailer.
func NewLogMailer(logger zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With().Str("component", "log_mailer").Logger()}
}

// Send logs the message and always succeeds unless the context is done.
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.logger.Info().
		Str("to", maskEmailAddress(msg.To)).
		Str("template", msg.Template).
		Str("subject", msg.Subject).
		Msg("notification e-mail delivered to log")
	return nil
}

// SendGridMailer sends messages through the SendGrid v3 mail API.
type SendGridMailer struct {
	apiKey        string
	host          string
	from          *sgmail.Email
	subjectPrefix string
}

// NewSendGridMailer constructs a SendGrid mailer. An empty host targets DefaultSendGridHost.
func NewSendGridMailer(apiKey, host, fromName, fromAddress, subjectPrefix string) *SendGridMailer {
	if strings.TrimSpace(host) == "" {
		host = DefaultSendGridHost
	}
	return &SendGridMailer{
		apiKey:        apiKey,
		host:          strings.TrimRight(host, "/"),
		from:          sgmail.NewEmail(fromName, fromAddress),
		subjectPrefix: subjectPrefix,
	}
}

// Send posts the message. Any status outside 2xx is a delivery failure.
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	personalization := sgmail.NewPersonalization()
	personalization.AddTos(sgmail.NewEmail(msg.ToName, msg.To))
	personalization.Subject = m.subjectPrefix + msg.Subject

	mail := sgmail.NewV3Mail()
	mail.SetFrom(m.from)
	mail.AddPersonalizations(personalization)
	mail.AddContent(
		sgmail.NewContent("text/plain", msg.Text),
		sgmail.NewContent("text/html", msg.HTML),
	)
	mail.AddCategories(msg.Template)

	req := sendgrid.GetRequest(m.apiKey, sendGridEndpoint, m.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(mail)

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("sendgrid rejected message: status %d", res.StatusCode)
	}
	return nil
}
