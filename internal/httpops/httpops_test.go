package httpops

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ringscoop/internal/leader"
)

type stubStatusSource struct {
	ready  bool
	backup leader.Backup
	hasB   bool
	rt     RoundTripSnapshot
}

func (s stubStatusSource) LeaderSnapshot() (leader.Backup, bool) { return s.backup, s.hasB }
func (s stubStatusSource) RoundTrips() RoundTripSnapshot         { return s.rt }
func (s stubStatusSource) Ready() bool                           { return s.ready }

func TestHealthAlwaysOK(t *testing.T) {
	srv := New(stubStatusSource{}, 0, 0, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadyReflectsSource(t *testing.T) {
	srv := New(stubStatusSource{ready: false}, 0, 0, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when not ready, got %d", rec.Code)
	}

	srv = New(stubStatusSource{ready: true}, 0, 0, nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when ready, got %d", rec.Code)
	}
}

func TestMetricsPrometheusFormat(t *testing.T) {
	srv := New(stubStatusSource{ready: true, rt: RoundTripSnapshot{Samples: 3}}, 0, 0, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics?format=prometheus", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); len(body) == 0 {
		t.Fatal("expected non-empty prometheus body")
	}
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	srv := New(stubStatusSource{ready: true}, 1, time.Minute, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected first call allowed, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second call rate-limited, got %d", rec.Code)
	}
}
