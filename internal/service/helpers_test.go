package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-notify/internal/repository"
	"github.com/noah-isme/gema-notify/internal/testutil"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type recordingMailer struct {
	mu      sync.Mutex
	sent    []Message
	failFor map[string]error
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{failFor: map[string]error{}}
}

func (m *recordingMailer) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, msg)
	if err, ok := m.failFor[msg.To]; ok {
		return err
	}
	return nil
}

func (m *recordingMailer) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.sent))
	for _, msg := range m.sent {
		out = append(out, msg.To)
	}
	return out
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

var errMailbox = errors.New("mailbox unavailable")

type serviceFixture struct {
	testutil.Fixture
	repo    repository.CourseworkRepository
	mailer  *recordingMailer
	service NotificationService
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()

	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	repo := repository.NewCourseworkRepository(db)
	mailer := newRecordingMailer()

	svc := NewNotificationService(
		NewNotificationRules(repo, 2),
		NewEmailDispatcher(NewEmailRenderer(), mailer, 0, 2, testLogger()),
		repository.NewDeliveryRepository(db),
		nil,
		nil,
		NotificationServiceOptions{},
		testLogger(),
	)

	return serviceFixture{Fixture: fx, repo: repo, mailer: mailer, service: svc}
}

func recipientsOf(envelopes []Envelope) []string {
	out := make([]string, 0, len(envelopes))
	for _, envelope := range envelopes {
		out = append(out, envelope.Recipient)
	}
	return out
}

func studentAddresses(numbers ...int) []string {
	out := make([]string, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, string(testutil.StudentEmail(n)))
	}
	return out
}

func closeDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	_ = sqlDB.Close()
}
