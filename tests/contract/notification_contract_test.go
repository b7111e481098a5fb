package contract_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-notify/internal/dto"
	"github.com/noah-isme/gema-notify/internal/handler"
	"github.com/noah-isme/gema-notify/internal/repository"
	"github.com/noah-isme/gema-notify/internal/service"
	"github.com/noah-isme/gema-notify/internal/testutil"
)

type flakyMailer struct {
	failFor string
}

func (m flakyMailer) Send(_ context.Context, msg service.Message) error {
	if msg.To == m.failFor {
		return errors.New("mailbox unavailable")
	}
	return nil
}

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)
	return schema
}

func newContractApp(t *testing.T, mailer service.Mailer) (*fiber.App, testutil.Fixture) {
	t.Helper()
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	logger := zerolog.Nop()

	repo := repository.NewCourseworkRepository(db)
	notifications := service.NewNotificationService(
		service.NewNotificationRules(repo, 2),
		service.NewEmailDispatcher(service.NewEmailRenderer(), mailer, 0, 4, logger),
		repository.NewDeliveryRepository(db),
		nil,
		nil,
		service.NotificationServiceOptions{},
		logger,
	)
	tracker := service.NewDeadlineTracker(repo, repository.NewGormCheckpointStore(db), notifications, service.TrackerOptions{}, logger)

	app := fiber.New()
	handler.NewNotificationHandler(notifications, tracker, logger).Register(app.Group("/api/v1/notifications"))
	return app, fx
}

func validateBody(t *testing.T, schema *jsonschema.Schema, resp *http.Response) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}

func postTrigger(t *testing.T, app *fiber.App, req dto.TriggerRequest) *http.Response {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/triggers", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(httpReq)
	require.NoError(t, err)
	return resp
}

func TestDispatchReportContract(t *testing.T) {
	schema := compileSchema(t, "dispatch_report.schema.json")
	app, fx := newContractApp(t, service.NewLogMailer(zerolog.Nop()))

	resp := postTrigger(t, app, dto.TriggerRequest{
		Kind:         "assignment_created",
		CourseID:     string(testutil.MainCourse),
		AssignmentID: uint(fx.Assignment1.ID),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	validateBody(t, schema, resp)
}

func TestPartialDispatchReportContract(t *testing.T) {
	schema := compileSchema(t, "dispatch_report.schema.json")
	app, fx := newContractApp(t, flakyMailer{failFor: string(testutil.StudentEmail(1))})

	resp := postTrigger(t, app, dto.TriggerRequest{
		Kind:         "assignment_submitted",
		CourseID:     string(testutil.MainCourse),
		AssignmentID: uint(fx.Assignment2.ID),
		TeamName:     string(testutil.Team12),
	})
	require.Equal(t, http.StatusMultiStatus, resp.StatusCode)
	validateBody(t, schema, resp)
}

func TestTickSummaryContract(t *testing.T) {
	schema := compileSchema(t, "tick_summary.schema.json")
	app, _ := newContractApp(t, service.NewLogMailer(zerolog.Nop()))

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/notifications/deadlines/scan", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	validateBody(t, schema, resp)
}
