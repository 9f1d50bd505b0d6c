package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/talentops/skillgate/internal/audit"
)

func newTestAPI(t *testing.T, cfg Config) (*Server, *audit.Store) {
	t.Helper()

	store := audit.Open(filepath.Join(t.TempDir(), "audit.db"))
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, audit.NewQuerier(store), logger), store
}

func seedEvents(t *testing.T, store *audit.Store, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		ev := audit.Event{
			Operation:  "get_employee_skills",
			SessionID:  "sess-test",
			ClientName: "dashboard",
			Status:     audit.StatusSuccess,
			DurationMS: float64(10 + i),
		}
		if i%3 == 2 {
			ev.Status = audit.StatusError
			ev.ErrorDetail = "upstream returned 500: boom"
		}
		if _, err := store.Append(ctx, ev); err != nil {
			t.Fatalf("seed append failed: %v", err)
		}
	}
}

func doGet(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "192.0.2.1:12345"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEvents(t *testing.T, rec *httptest.ResponseRecorder) ([]audit.Event, int) {
	t.Helper()
	var body struct {
		Events []audit.Event `json:"events"`
		Count  int           `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body.Events, body.Count
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return body["error"]
}

func TestHealthz(t *testing.T) {
	s, _ := newTestAPI(t, Config{})

	rec := doGet(t, s.Handler(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("unexpected content type: %q", got)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected body: %q", rec.Body.String())
	}
}

func TestRecentReturnsNewestFirst(t *testing.T) {
	s, store := newTestAPI(t, Config{})
	seedEvents(t, store, 5)

	rec := doGet(t, s.Handler(), "/api/audit/recent?limit=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	events, count := decodeEvents(t, rec)
	if count != 2 || len(events) != 2 {
		t.Fatalf("expected 2 events, got count=%d len=%d", count, len(events))
	}
	if events[0].ID <= events[1].ID {
		t.Errorf("expected newest first, got IDs %d, %d", events[0].ID, events[1].ID)
	}
}

func TestRecentRejectsMalformedLimit(t *testing.T) {
	s, _ := newTestAPI(t, Config{})

	rec := doGet(t, s.Handler(), "/api/audit/recent?limit=ten")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); !strings.Contains(msg, "invalid limit") {
		t.Errorf("expected limit error, got %q", msg)
	}

	rec = doGet(t, s.Handler(), "/api/audit/recent?limit=-1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative limit, got %d", rec.Code)
	}
}

func TestEventsAppliesFilters(t *testing.T) {
	s, store := newTestAPI(t, Config{})
	seedEvents(t, store, 6)

	rec := doGet(t, s.Handler(), "/api/audit/events?errors_only=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	events, count := decodeEvents(t, rec)
	if count != 2 {
		t.Fatalf("expected 2 error events, got %d", count)
	}
	for _, ev := range events {
		if ev.Status != audit.StatusError {
			t.Errorf("expected only errors, got %q", ev.Status)
		}
	}
}

func TestEventsRejectsBadTimeBound(t *testing.T) {
	s, _ := newTestAPI(t, Config{})

	rec := doGet(t, s.Handler(), "/api/audit/events?since=yesterday")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); !strings.Contains(msg, "invalid since") {
		t.Errorf("expected since error, got %q", msg)
	}
}

func TestEventsEmptyStoreReturnsEmptyList(t *testing.T) {
	s, _ := newTestAPI(t, Config{})

	rec := doGet(t, s.Handler(), "/api/audit/events")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"events":[]`) {
		t.Errorf("expected empty events array, got %q", rec.Body.String())
	}
}

func TestSummaryReportsAggregates(t *testing.T) {
	s, store := newTestAPI(t, Config{})
	seedEvents(t, store, 6)

	rec := doGet(t, s.Handler(), "/api/audit/summary")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Summary audit.Summary `json:"summary"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if body.Summary.TotalCalls != 6 {
		t.Errorf("expected 6 total calls, got %d", body.Summary.TotalCalls)
	}
	if body.Summary.ErrorCount != 2 {
		t.Errorf("expected 2 errors, got %d", body.Summary.ErrorCount)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	s, _ := newTestAPI(t, Config{CORSOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "192.0.2.1:12345"
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("expected origin echoed, got %q", got)
	}
}

func TestCORSIgnoresUnknownOrigin(t *testing.T) {
	s, _ := newTestAPI(t, Config{CORSOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "192.0.2.1:12345"
	req.Header.Set("Origin", "http://evil.example")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS header, got %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestAPI(t, Config{CORSOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/audit/recent", nil)
	req.RemoteAddr = "192.0.2.1:12345"
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "GET") {
		t.Errorf("expected GET in allowed methods, got %q", got)
	}
}

func TestRateLimitExceeded(t *testing.T) {
	s, _ := newTestAPI(t, Config{RateLimit: 1, RateBurst: 1})
	h := s.Handler()

	first := doGet(t, h, "/healthz")
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}
	second := doGet(t, h, "/healthz")
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if msg := decodeError(t, second); !strings.Contains(msg, "rate limit") {
		t.Errorf("unexpected error message: %q", msg)
	}
}

func TestRateLimitTracksClientsSeparately(t *testing.T) {
	s, _ := newTestAPI(t, Config{RateLimit: 1, RateBurst: 1})
	h := s.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "192.0.2.1:1000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first client should pass, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "192.0.2.2:1000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("second client should have its own bucket, got %d", rec.Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	s, _ := newTestAPI(t, Config{RateLimit: -1})
	h := s.Handler()

	for i := 0; i < 50; i++ {
		if rec := doGet(t, h, "/healthz"); rec.Code != http.StatusOK {
			t.Fatalf("expected all requests to pass, got %d on request %d", rec.Code, i)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestAPI(t, Config{})

	req := httptest.NewRequest(http.MethodPost, "/api/audit/recent", nil)
	req.RemoteAddr = "192.0.2.1:12345"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestStartServesUntilCancelled(t *testing.T) {
	s, store := newTestAPI(t, Config{Addr: "127.0.0.1:0"})
	seedEvents(t, store, 1)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start(ctx)
	}()

	// Wait for the listener to come up
	deadline := time.Now().Add(2 * time.Second)
	var addr string
	for time.Now().Before(deadline) {
		if addr = s.Addr(); addr != "" {
			if conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond); err == nil {
				conn.Close()
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == "" {
		t.Fatal("server failed to start within timeout")
	}

	resp, err := http.Get("http://" + addr + "/api/audit/recent")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down after cancel")
	}
}
