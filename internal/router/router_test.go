package router_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-notify/internal/config"
	"github.com/noah-isme/gema-notify/internal/dto"
	"github.com/noah-isme/gema-notify/internal/handler"
	"github.com/noah-isme/gema-notify/internal/middleware"
	"github.com/noah-isme/gema-notify/internal/router"
	"github.com/noah-isme/gema-notify/internal/service"
)

const secret = "router-secret"

type stubService struct {
	service.NotificationService
	calls int
}

func (s *stubService) HandleRequest(context.Context, dto.TriggerRequest) (dto.DispatchReport, error) {
	s.calls++
	return dto.DispatchReport{DispatchID: "d-1"}, nil
}

func newApp(svc service.NotificationService) *fiber.App {
	app := fiber.New()
	logger := zerolog.New(io.Discard)
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "GEMA Notifier", AppEnv: "test", JWTSecret: secret}, router.Dependencies{
		NotificationHandler: handler.NewNotificationHandler(svc, nil, logger),
	})
	return app
}

func token(t *testing.T, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func trigger(t *testing.T, app *fiber.App, bearer string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/triggers", bytes.NewReader([]byte(`{"kind":"assignment_created","course_id":"C","assignment_id":1}`)))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestTriggerRouteIsGuarded(t *testing.T) {
	svc := &stubService{}
	app := newApp(svc)

	require.Equal(t, fiber.StatusUnauthorized, trigger(t, app, ""))
	require.Equal(t, fiber.StatusForbidden, trigger(t, app, token(t, "student")))
	require.Zero(t, svc.calls)

	require.Equal(t, fiber.StatusOK, trigger(t, app, token(t, "professor")))
	require.Equal(t, fiber.StatusOK, trigger(t, app, token(t, "admin")))
	require.Equal(t, 2, svc.calls)
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	app := newApp(&stubService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "GEMA Notifier", resp.Header.Get("X-Application"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "http_requests_total"))
}
