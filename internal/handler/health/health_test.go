package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/playperu/tuttifrutti/internal/handler/health"
)

func ok(context.Context) error { return nil }

func failing(msg string) health.CheckerFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]health.Checker
		wantStatus int
		wantBody   map[string]string
	}{
		{
			name: "all healthy",
			checks: map[string]health.Checker{
				"cache": health.CheckerFunc(ok),
				"redis": health.CheckerFunc(ok),
			},
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"cache": "ok", "redis": "ok"},
		},
		{
			name: "cache down",
			checks: map[string]health.Checker{
				"cache": failing("database is locked"),
				"redis": health.CheckerFunc(ok),
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"cache": "error", "redis": "ok"},
		},
		{
			name: "redis down",
			checks: map[string]health.Checker{
				"cache": health.CheckerFunc(ok),
				"redis": failing("connection refused"),
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"cache": "ok", "redis": "error"},
		},
		{
			name:       "nothing to check",
			checks:     map[string]health.Checker{},
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := health.NewHandler(slog.New(slog.DiscardHandler), tt.checks)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			h.Routes().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body map[string]struct{ Status string }
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			if len(body) != len(tt.wantBody) {
				t.Errorf("got %d checks, want %d", len(body), len(tt.wantBody))
			}
			for name, want := range tt.wantBody {
				if got := body[name].Status; got != want {
					t.Errorf("%s status = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestHandlerRespectsDeadline(t *testing.T) {
	slow := health.CheckerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	h := health.NewHandler(slog.New(slog.DiscardHandler), map[string]health.Checker{"judge": slow})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
