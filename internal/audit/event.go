package audit

import "time"

// TimestampFormat is the layout used for timestamps persisted in the store.
// Fixed millisecond precision keeps lexical order identical to time order,
// so SQL range comparisons on the text column are correct.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Status marks the terminal outcome of an audited invocation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Event is one immutable record of a single operation call and its outcome.
// Events are write-once: the store never mutates or deletes them.
type Event struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id,omitempty"`
	SessionID     string    `json:"session_id,omitempty"`
	ClientName    string    `json:"client_name,omitempty"`
	ClientVersion string    `json:"client_version,omitempty"`
	Operation     string    `json:"operation"`
	Arguments     string    `json:"arguments,omitempty"`
	Status        Status    `json:"status"`
	ErrorDetail   string    `json:"error_detail,omitempty"`
	DurationMS    float64   `json:"duration_ms"`
}

// Filter holds predicates for scanning events. All set predicates combine
// with logical AND. Zero values mean "no constraint".
type Filter struct {
	Operation  string
	SessionID  string
	ClientName string
	Since      time.Time // zero value = no lower bound
	Until      time.Time // zero value = no upper bound
	ErrorsOnly bool
	Limit      int // <= 0 uses DefaultScanLimit; capped at MaxScanLimit
}

// Summary aggregates the full event log.
type Summary struct {
	TotalCalls     int64            `json:"total_calls"`
	UniqueOps      int64            `json:"unique_operations"`
	UniqueClients  int64            `json:"unique_clients"`
	UniqueSessions int64            `json:"unique_sessions"`
	ErrorCount     int64            `json:"error_count"`
	ErrorRate      float64          `json:"error_rate"`
	AvgDurationMS  float64          `json:"avg_duration_ms"`
	MaxDurationMS  float64          `json:"max_duration_ms"`
	FirstCall      string           `json:"first_call,omitempty"`
	LastCall       string           `json:"last_call,omitempty"`
	Operations     []OperationStats `json:"operations"`
}

// OperationStats is the per-operation slice of a Summary.
type OperationStats struct {
	Operation     string  `json:"operation"`
	Calls         int64   `json:"calls"`
	Errors        int64   `json:"errors"`
	ErrorRate     float64 `json:"error_rate"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
	MaxDurationMS float64 `json:"max_duration_ms"`
}
