package mixer

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// fakeMixer serves /api/ like the real web controller: a status document for
// plain GETs, and function calls recorded from ?Function=... requests.
type fakeMixer struct {
	mu         sync.Mutex
	status     string
	pollStatus int // non-zero overrides the poll response code
	callStatus int // non-zero overrides the function response code
	calls      []url.Values
	polls      int
	onCall     func(m *fakeMixer, q url.Values)
	srv        *httptest.Server
}

func newFakeMixer(t *testing.T, status string) *fakeMixer {
	t.Helper()
	m := &fakeMixer{status: status}
	m.srv = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.srv.Close)
	return m
}

func (m *fakeMixer) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/" {
		http.NotFound(w, r)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	q := r.URL.Query()
	if q.Get("Function") != "" {
		m.calls = append(m.calls, q)
		if m.callStatus != 0 {
			w.WriteHeader(m.callStatus)
			return
		}
		if m.onCall != nil {
			m.onCall(m, q)
		}
		io.WriteString(w, "Function completed successfully.")
		return
	}

	m.polls++
	if m.pollStatus != 0 {
		w.WriteHeader(m.pollStatus)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	io.WriteString(w, m.status)
}

func (m *fakeMixer) connection() *Connection {
	u, _ := url.Parse(m.srv.URL)
	return NewConnection(ConnectionConfig{Host: u.Hostname(), Port: u.Port()})
}

func (m *fakeMixer) setStatus(s string) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *fakeMixer) setPollStatus(code int) {
	m.mu.Lock()
	m.pollStatus = code
	m.mu.Unlock()
}

func (m *fakeMixer) recordedCalls() []url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]url.Values(nil), m.calls...)
}

func (m *fakeMixer) pollCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
