package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_polls_and_commands(t *testing.T) {
	m := New()

	m.ObservePoll(20*time.Millisecond, nil)
	m.ObservePoll(5*time.Millisecond, errors.New("boom"))
	m.ObservePoll(5*time.Millisecond, errors.New("boom"))
	m.ObserveCommand("Cut", nil)
	m.ObserveCommand("Cut", errors.New("500"))
	m.SetConnected(true)
	m.SetInputs(7)

	if got := testutil.ToFloat64(m.pollsTotal.WithLabelValues(ResultOK)); got != 1 {
		t.Errorf("ok polls = %v", got)
	}
	if got := testutil.ToFloat64(m.pollsTotal.WithLabelValues(ResultError)); got != 2 {
		t.Errorf("failed polls = %v", got)
	}
	if got := testutil.ToFloat64(m.commandsTotal.WithLabelValues("Cut", ResultError)); got != 1 {
		t.Errorf("failed Cut = %v", got)
	}
	if got := testutil.ToFloat64(m.connected); got != 1 {
		t.Errorf("connected = %v", got)
	}
	if got := testutil.ToFloat64(m.inputs); got != 7 {
		t.Errorf("inputs = %v", got)
	}
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	mw := RequestMiddleware(m, "/metrics")
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/state", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if got := testutil.ToFloat64(m.requestsTotal); got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.errorsTotal); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
}

func TestHandler_serves_registry(t *testing.T) {
	m := New()
	m.SetConnected(false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "vmix_connected 0") {
		t.Errorf("missing vmix_connected in:\n%s", rec.Body.String())
	}
}
