package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/The-Ops-King/closerMetrix-sub003/internal/calls"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/http/handlers"
	"github.com/The-Ops-King/closerMetrix-sub003/internal/queue"
	"github.com/The-Ops-King/closerMetrix-sub003/pkg/logging"
)

type noopEnqueuer struct{}

func (noopEnqueuer) EnqueueNotification(context.Context, queue.NotificationJob) error { return nil }
func (noopEnqueuer) EnqueueTranscript(context.Context, queue.TranscriptJob) error     { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := logging.Default()
	reg := prometheus.NewRegistry()

	cfg := &Config{
		Logger:            logger,
		CalendarWebhook:   handlers.NewCalendarWebhookHandler("hush", noopEnqueuer{}, nil, nil, nil, logger),
		TranscriptWebhook: handlers.NewTranscriptWebhookHandler("hush", noopEnqueuer{}, nil, nil, logger),
		AdminCalls:        handlers.NewAdminCallsHandler(emptyCallReader{}, nil, nil, logger),
		AdminAuthSecret:   "admin-secret",
		MetricsHandler:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	return New(cfg)
}

type emptyCallReader struct{}

func (emptyCallReader) ListByOrg(context.Context, string, int) ([]calls.Call, error) {
	return nil, nil
}

func (emptyCallReader) GetByID(context.Context, string, uuid.UUID) (*calls.Call, error) {
	return nil, nil
}

func TestRouterHealthEndpoint(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
}

func TestRouterCalendarWebhookRegistered(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/calendar", nil)
	req.Header.Set("X-Goog-Channel-ID", "chan-1")
	req.Header.Set("X-Goog-Resource-ID", "res-1")
	req.Header.Set("X-Goog-Resource-State", "exists")
	req.Header.Set("X-Goog-Channel-Token", "org=org-a&secret=hush")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
}

func TestRouterAdminRequiresJWT(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/calls?org_id=org-a", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d without token, got %d", http.StatusUnauthorized, rr.Code)
	}

	claims := jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("admin-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/calls?org_id=org-a", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d with token, got %d", http.StatusOK, rr.Code)
	}
}
