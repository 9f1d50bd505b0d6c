package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/talentops/skillgate/internal/audit"
	"github.com/talentops/skillgate/internal/gateway"
)

// upstreamCapture records the last request the fake upstream API saw.
type upstreamCapture struct {
	mu    sync.Mutex
	path  string
	query url.Values
	hits  int
}

func (u *upstreamCapture) last() (string, url.Values) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.path, u.query
}

func newTestServer(t *testing.T, status int, body string) (*Server, *audit.Store, *upstreamCapture) {
	t.Helper()

	up := &upstreamCapture{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up.mu.Lock()
		up.path = r.URL.Path
		up.query = r.URL.Query()
		up.hits++
		up.mu.Unlock()
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)

	store := audit.Open(filepath.Join(t.TempDir(), "audit.db"))
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(Config{
		Upstream:     gateway.New(gateway.Config{BaseURL: ts.URL}),
		Recorder:     audit.NewRecorder(store, audit.DefaultPolicy(), logger),
		Querier:      audit.NewQuerier(store),
		ResourcesDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("failed to create MCP server: %v", err)
	}
	return s, store, up
}

func resultText(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("expected a result with content")
	}
	text, ok := result.Content[0].(*mcpsdk.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func floatPtr(v float64) *float64 { return &v }

func TestForwardReturnsUpstreamBody(t *testing.T) {
	s, store, up := newTestServer(t, http.StatusOK, `{"skills":[{"skill_id":1}]}`)
	ctx := context.Background()

	result, _, err := s.handleGetEmployeeSkills(ctx, &mcpsdk.CallToolRequest{}, EmployeeSkillsInput{
		EmployeeID: "EMP000001",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatal("expected success, got error result")
	}
	if got := resultText(t, result); got != `{"skills":[{"skill_id":1}]}` {
		t.Fatalf("unexpected body: %q", got)
	}

	path, _ := up.last()
	if path != "/tm/employees/EMP000001/skills" {
		t.Fatalf("unexpected upstream path: %q", path)
	}

	events, err := store.Scan(ctx, audit.Filter{})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(events))
	}
	ev := events[0]
	if ev.Operation != "get_employee_skills" {
		t.Errorf("unexpected operation: %q", ev.Operation)
	}
	if ev.Status != audit.StatusSuccess {
		t.Errorf("expected success status, got %q", ev.Status)
	}
	if !strings.Contains(ev.Arguments, `"employee_id":"EMP000001"`) {
		t.Errorf("arguments not captured: %q", ev.Arguments)
	}
	if ev.RequestID == "" {
		t.Error("expected a request ID")
	}
}

func TestForwardRecordsUpstreamError(t *testing.T) {
	s, store, _ := newTestServer(t, http.StatusInternalServerError, "boom")
	ctx := context.Background()

	result, _, err := s.handleGetEmployeeSkills(ctx, &mcpsdk.CallToolRequest{}, EmployeeSkillsInput{
		EmployeeID: "EMP000001",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatal("expected IsError result for upstream failure")
	}
	if got := resultText(t, result); !strings.Contains(got, "upstream returned 500") {
		t.Fatalf("expected upstream status in result, got %q", got)
	}

	events, err := store.Scan(ctx, audit.Filter{ErrorsOnly: true})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 error event, got %d", len(events))
	}
	if !strings.Contains(events[0].ErrorDetail, "500") {
		t.Errorf("expected status in error detail, got %q", events[0].ErrorDetail)
	}
}

func TestForwardUsesFallbackSession(t *testing.T) {
	s, store, _ := newTestServer(t, http.StatusOK, "{}")
	ctx := context.Background()

	_, _, err := s.handleBrowseSkills(ctx, &mcpsdk.CallToolRequest{}, BrowseSkillsInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events, err := store.Scan(ctx, audit.Filter{})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].SessionID != s.sessionID {
		t.Errorf("expected fallback session %q, got %q", s.sessionID, events[0].SessionID)
	}
	if !strings.HasPrefix(events[0].SessionID, "sess-") {
		t.Errorf("unexpected session ID format: %q", events[0].SessionID)
	}
}

func TestEachForwardGetsDistinctRequestID(t *testing.T) {
	s, store, _ := newTestServer(t, http.StatusOK, "{}")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := s.handleBrowseSkills(ctx, &mcpsdk.CallToolRequest{}, BrowseSkillsInput{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	events, err := store.Scan(ctx, audit.Filter{})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	seen := make(map[string]bool)
	for _, ev := range events {
		if seen[ev.RequestID] {
			t.Fatalf("duplicate request ID %q", ev.RequestID)
		}
		seen[ev.RequestID] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 distinct request IDs, got %d", len(seen))
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error when upstream is missing")
	}

	store := audit.Open(filepath.Join(t.TempDir(), "audit.db"))
	t.Cleanup(func() { store.Close() })
	upstream := gateway.New(gateway.Config{BaseURL: "http://localhost:1"})

	if _, err := New(Config{Upstream: upstream}); err == nil {
		t.Fatal("expected error when recorder is missing")
	}
	if _, err := New(Config{
		Upstream: upstream,
		Recorder: audit.NewRecorder(store, nil, nil),
	}); err == nil {
		t.Fatal("expected error when querier is missing")
	}
}

func TestToolRegistration(t *testing.T) {
	s, _, _ := newTestServer(t, http.StatusOK, "{}")
	if s.mcpServer == nil {
		t.Fatal("expected MCP server to be initialized")
	}
}
