package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// writeTimeout bounds how long a single audit write may take. The write
// context is detached from the caller so cancelling an operation never
// cancels its own audit record.
const writeTimeout = 5 * time.Second

// Invocation describes one completed operation call for recording.
type Invocation struct {
	Operation     string
	RequestID     string
	SessionID     string
	ClientName    string
	ClientVersion string
	Arguments     any
	Duration      time.Duration
	Err           error // nil on success
}

// Recorder is the audit write path. Record never returns an error: audit is
// best-effort from the perspective of the operation being audited, so write
// failures are logged to the diagnostic sink and suppressed.
type Recorder struct {
	store  *Store
	logger *slog.Logger

	mu     sync.RWMutex
	policy *Policy
}

// NewRecorder wraps the store with the given recording policy. A nil policy
// falls back to DefaultPolicy; a nil logger falls back to slog.Default.
func NewRecorder(store *Store, policy *Policy, logger *slog.Logger) *Recorder {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger, policy: policy}
}

// SetPolicy swaps the recording policy. Safe to call while recording.
func (r *Recorder) SetPolicy(p *Policy) {
	if p == nil {
		p = DefaultPolicy()
	}
	r.mu.Lock()
	r.policy = p
	r.mu.Unlock()
}

// Record persists one invocation event. Operations the policy skips are not
// recorded. Failures never propagate to the caller.
func (r *Recorder) Record(inv Invocation) {
	r.mu.RLock()
	policy := r.policy
	r.mu.RUnlock()

	if policy.Skips(inv.Operation) {
		return
	}

	ev := Event{
		Timestamp:     time.Now().UTC(),
		RequestID:     inv.RequestID,
		SessionID:     inv.SessionID,
		ClientName:    inv.ClientName,
		ClientVersion: inv.ClientVersion,
		Operation:     inv.Operation,
		Status:        StatusSuccess,
		DurationMS:    float64(inv.Duration) / float64(time.Millisecond),
	}
	if ev.DurationMS < 0 {
		ev.DurationMS = 0
	}
	if inv.Err != nil {
		ev.Status = StatusError
		ev.ErrorDetail = inv.Err.Error()
		if ev.ErrorDetail == "" {
			ev.ErrorDetail = "unknown error"
		}
	}

	if inv.Arguments != nil {
		data, err := json.Marshal(inv.Arguments)
		if err != nil {
			r.logger.Warn("audit: marshal arguments failed", "operation", inv.Operation, "error", err)
		} else {
			ev.Arguments = string(data)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if _, err := r.store.Append(ctx, ev); err != nil {
		r.logger.Warn("audit: write failed", "operation", inv.Operation, "error", err)
	}
}
