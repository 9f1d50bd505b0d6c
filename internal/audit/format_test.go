package audit

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func formatTestEvents() []Event {
	ts := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	return []Event{
		{
			ID: 2, Timestamp: ts.Add(time.Minute),
			Operation: "search_talent", ClientName: "claude",
			Status: StatusError, ErrorDetail: "upstream returned 503", DurationMS: 120.5,
		},
		{
			ID: 1, Timestamp: ts,
			Operation: "get_top_skills", ClientName: "claude",
			Status: StatusSuccess, DurationMS: 41.2,
		},
	}
}

func TestFormatEventsColumns(t *testing.T) {
	out := FormatEvents(formatTestEvents())

	if !strings.Contains(out, "get_top_skills") {
		t.Error("expected operation name in output")
	}
	if !strings.Contains(out, "search_talent") {
		t.Error("expected second operation in output")
	}
	if !strings.Contains(out, "error") {
		t.Error("expected error status in output")
	}
	if !strings.Contains(out, "upstream returned 503") {
		t.Errorf("expected error detail line, got:\n%s", out)
	}
	if !strings.Contains(out, "2 event(s)") {
		t.Errorf("expected event count footer, got:\n%s", out)
	}
}

func TestFormatEventsEmpty(t *testing.T) {
	out := FormatEvents(nil)
	if !strings.Contains(out, "No events recorded") {
		t.Errorf("expected 'No events recorded' message, got:\n%s", out)
	}
}

func TestFormatSummaryZero(t *testing.T) {
	out := FormatSummary(Summary{})
	if !strings.Contains(out, "Total calls:     0") {
		t.Errorf("expected zero total, got:\n%s", out)
	}
	if strings.Contains(out, "Errors:") {
		t.Errorf("expected no detail lines for empty summary, got:\n%s", out)
	}
}

func TestFormatSummaryTable(t *testing.T) {
	sum := Summary{
		TotalCalls:     4,
		UniqueOps:      1,
		UniqueClients:  1,
		UniqueSessions: 1,
		ErrorCount:     1,
		ErrorRate:      0.25,
		AvgDurationMS:  25,
		MaxDurationMS:  40,
		FirstCall:      "2026-03-01T12:00:00.000Z",
		LastCall:       "2026-03-01T12:05:00.000Z",
		Operations: []OperationStats{
			{Operation: "X", Calls: 4, Errors: 1, ErrorRate: 0.25, AvgDurationMS: 25, MaxDurationMS: 40},
		},
	}

	out := FormatSummary(sum)
	if !strings.Contains(out, "rate 0.250") {
		t.Errorf("expected error rate, got:\n%s", out)
	}
	if !strings.Contains(out, "OPERATION") {
		t.Errorf("expected breakdown header, got:\n%s", out)
	}
	if !strings.Contains(out, "X") || !strings.Contains(out, "0.250") {
		t.Errorf("expected operation row, got:\n%s", out)
	}
}

func TestFormatJSONRoundTrips(t *testing.T) {
	jsonStr, err := FormatJSON(formatTestEvents())
	if err != nil {
		t.Fatal(err)
	}

	var parsed []Event
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		t.Fatalf("JSON output not valid: %v", err)
	}
	if len(parsed) != 2 {
		t.Errorf("expected 2 events in JSON, got %d", len(parsed))
	}
	if parsed[0].ID != 2 || parsed[0].Status != StatusError {
		t.Errorf("unexpected first event %+v", parsed[0])
	}
}

func TestTruncateLongValues(t *testing.T) {
	long := strings.Repeat("a", 40)
	got := truncate(long, 10)
	if len(got) != 10 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncate = %q", got)
	}
	if truncate("short", 10) != "short" {
		t.Error("expected short strings unchanged")
	}
}
