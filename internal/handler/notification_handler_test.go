package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-notify/internal/dto"
	"github.com/noah-isme/gema-notify/internal/handler"
	"github.com/noah-isme/gema-notify/internal/repository"
	"github.com/noah-isme/gema-notify/internal/service"
)

type mockNotificationService struct {
	service.NotificationService
	lastRequest dto.TriggerRequest
	report      dto.DispatchReport
	err         error
}

func (m *mockNotificationService) HandleRequest(_ context.Context, req dto.TriggerRequest) (dto.DispatchReport, error) {
	m.lastRequest = req
	return m.report, m.err
}

type mockScanner struct {
	summary dto.TickSummary
	err     error
	calls   int
}

func (m *mockScanner) Tick(context.Context) (dto.TickSummary, error) {
	m.calls++
	return m.summary, m.err
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message"`
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func newNotificationApp(svc service.NotificationService, scanner handler.DeadlineScanner) *fiber.App {
	app := fiber.New()
	handler.NewNotificationHandler(svc, scanner, zerolog.New(io.Discard)).Register(app.Group("/api/v1/notifications"))
	return app
}

func postTrigger(t *testing.T, app *fiber.App, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/triggers", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestNotificationHandler_TriggerSuccess(t *testing.T) {
	svc := &mockNotificationService{report: dto.DispatchReport{DispatchID: "d-1", EventKind: "assignment_created", Sent: 6}}
	app := newNotificationApp(svc, nil)

	resp := postTrigger(t, app, dto.TriggerRequest{Kind: "assignment_created", CourseID: "MAI101-1-101-Spring-2023", AssignmentID: 1})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body envelope[dto.DispatchReport]
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, "notifications dispatched", body.Message)
	require.Equal(t, 6, body.Data.Sent)
	require.Equal(t, uint(1), svc.lastRequest.AssignmentID)
	require.Equal(t, "MAI101-1-101-Spring-2023", svc.lastRequest.CourseID)
}

func TestNotificationHandler_InvalidBody(t *testing.T) {
	svc := &mockNotificationService{}
	app := newNotificationApp(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/triggers", bytes.NewReader([]byte("{broken")))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Empty(t, svc.lastRequest.Kind)
}

func TestNotificationHandler_ServiceErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		statusCode int
	}{
		{name: "invalid", err: service.ErrInvalidTrigger, statusCode: fiber.StatusUnprocessableEntity},
		{name: "unknown kind", err: service.ErrUnknownEventKind, statusCode: fiber.StatusUnprocessableEntity},
		{name: "duplicate", err: service.ErrDuplicateTrigger, statusCode: fiber.StatusConflict},
		{name: "not found", err: repository.ErrNotFound, statusCode: fiber.StatusNotFound},
		{name: "store unavailable", err: repository.ErrStoreUnavailable, statusCode: fiber.StatusServiceUnavailable},
		{name: "generic", err: errors.New("boom"), statusCode: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newNotificationApp(&mockNotificationService{err: tc.err}, nil)

			resp := postTrigger(t, app, dto.TriggerRequest{Kind: "assignment_created", CourseID: "C", AssignmentID: 1})
			require.Equal(t, tc.statusCode, resp.StatusCode)

			var body envelope[json.RawMessage]
			decodeResponse(t, resp, &body)
			require.False(t, body.Success)
			require.NotEmpty(t, body.Message)
		})
	}
}

func TestNotificationHandler_PartialDeliveryCarriesReport(t *testing.T) {
	report := dto.DispatchReport{
		DispatchID: "d-2",
		Sent:       1,
		Failed:     1,
		Results: []dto.DeliveryResult{
			{Recipient: "student1@oswego.test", Template: "assignment_submitted", Status: dto.DeliveryStatusSent},
			{Recipient: "student2@oswego.test", Template: "assignment_submitted", Status: dto.DeliveryStatusFailed, Reason: "mailbox unavailable"},
		},
	}
	svc := &mockNotificationService{
		report: report,
		err:    &service.PartialDeliveryError{Failed: report.FailedResults()},
	}
	app := newNotificationApp(svc, nil)

	resp := postTrigger(t, app, dto.TriggerRequest{Kind: "assignment_submitted", CourseID: "C", AssignmentID: 2, TeamName: "T12"})
	require.Equal(t, fiber.StatusMultiStatus, resp.StatusCode)

	var body envelope[dto.DispatchReport]
	decodeResponse(t, resp, &body)
	require.False(t, body.Success)
	require.Equal(t, report, body.Data)
}

func TestNotificationHandler_Scan(t *testing.T) {
	scanner := &mockScanner{summary: dto.TickSummary{Evaluated: 3, Fired: 2, WindowEnd: time.Date(2023, time.March, 8, 0, 0, 0, 0, time.UTC)}}
	app := newNotificationApp(&mockNotificationService{}, scanner)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/notifications/deadlines/scan", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body envelope[dto.TickSummary]
	decodeResponse(t, resp, &body)
	require.Equal(t, 2, body.Data.Fired)
	require.Equal(t, 1, scanner.calls)

	scanner.err = repository.ErrStoreUnavailable
	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/notifications/deadlines/scan", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestNotificationHandler_ScanRouteNeedsScanner(t *testing.T) {
	app := newNotificationApp(&mockNotificationService{}, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/notifications/deadlines/scan", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
