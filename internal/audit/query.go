package audit

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// DefaultRecentLimit is the row cap for Recent when the caller gives none.
const DefaultRecentLimit = 50

// ValidationError reports a malformed query parameter. It is returned
// before any storage access so a bad request never initializes or reads
// the store.
type ValidationError struct {
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
}

// QueryParams holds raw, unvalidated filter inputs as they arrive from a
// transport (query string, tool arguments). Empty strings mean "unset".
type QueryParams struct {
	Operation  string
	SessionID  string
	ClientName string
	Since      string // RFC 3339, or YYYY-MM-DD for whole-day bounds
	Until      string
	ErrorsOnly string // strconv.ParseBool syntax
	Limit      string // decimal, must be >= 0
}

// Querier is the audit read path: it validates and normalizes filter
// inputs, then delegates to the store. Reads never mutate the store and
// are safe under arbitrary concurrency.
type Querier struct {
	store *Store
}

// NewQuerier returns a Querier over the store.
func NewQuerier(store *Store) *Querier {
	return &Querier{store: store}
}

// Recent returns the last limit events, most recent first. A non-positive
// limit uses DefaultRecentLimit.
func (q *Querier) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return q.store.Scan(ctx, Filter{Limit: limit})
}

// Query validates the raw params, then scans. Malformed values return a
// *ValidationError naming the offending parameter.
func (q *Querier) Query(ctx context.Context, p QueryParams) ([]Event, error) {
	f, err := p.parse()
	if err != nil {
		return nil, err
	}
	return q.store.Scan(ctx, f)
}

// Summary returns the aggregate over the whole log.
func (q *Querier) Summary(ctx context.Context) (Summary, error) {
	return q.store.Aggregate(ctx)
}

func (p QueryParams) parse() (Filter, error) {
	f := Filter{
		Operation:  p.Operation,
		SessionID:  p.SessionID,
		ClientName: p.ClientName,
	}

	var err error
	if f.Since, err = parseTimeParam("since", p.Since); err != nil {
		return Filter{}, err
	}
	if f.Until, err = parseTimeParam("until", p.Until); err != nil {
		return Filter{}, err
	}
	if !f.Since.IsZero() && !f.Until.IsZero() && f.Since.After(f.Until) {
		return Filter{}, &ValidationError{Param: "since", Reason: "lower bound is after upper bound"}
	}

	if p.ErrorsOnly != "" {
		f.ErrorsOnly, err = strconv.ParseBool(p.ErrorsOnly)
		if err != nil {
			return Filter{}, &ValidationError{Param: "errors_only", Reason: fmt.Sprintf("cannot parse %q as boolean", p.ErrorsOnly)}
		}
	}

	if p.Limit != "" {
		f.Limit, err = strconv.Atoi(p.Limit)
		if err != nil {
			return Filter{}, &ValidationError{Param: "limit", Reason: fmt.Sprintf("cannot parse %q as integer", p.Limit)}
		}
		if f.Limit < 0 {
			return Filter{}, &ValidationError{Param: "limit", Reason: "must not be negative"}
		}
	}

	return f, nil
}

func parseTimeParam(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Time{}, &ValidationError{Param: name, Reason: fmt.Sprintf("cannot parse %q as RFC 3339 time or YYYY-MM-DD date", value)}
}
