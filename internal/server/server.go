// Package server provides the HTTP query API over the audit log.
//
// Endpoints:
//   - GET /healthz            - Health check
//   - GET /api/audit/recent   - Most recent tool calls
//   - GET /api/audit/events   - Filtered audit query
//   - GET /api/audit/summary  - Aggregate statistics
//
// The API is read-only and intended for the monitoring dashboard; writes
// happen only through the MCP forwarding path.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/talentops/skillgate/internal/audit"
)

const (
	// DefaultRateLimit is the per-client request rate applied when the
	// config leaves it unset.
	DefaultRateLimit = 10

	// DefaultRateBurst is the per-client burst size applied when the
	// config leaves it unset.
	DefaultRateBurst = 20

	// maxTrackedClients bounds the per-client limiter map. When exceeded
	// the map is reset, which refills every client's burst.
	maxTrackedClients = 1024
)

// Config holds HTTP API server configuration.
type Config struct {
	Addr        string
	CORSOrigins []string

	// RateLimit is requests per second per client. Zero applies
	// DefaultRateLimit; negative disables limiting.
	RateLimit float64
	RateBurst int
}

// Server serves audit queries over HTTP.
type Server struct {
	cfg     Config
	querier *audit.Querier
	logger  *slog.Logger
	origins map[string]bool

	limiters *limiterPool

	mu   sync.Mutex
	addr string
	srv  *http.Server
}

// New creates an HTTP API server backed by the given querier.
func New(cfg Config, querier *audit.Querier, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = DefaultRateBurst
	}

	origins := make(map[string]bool, len(cfg.CORSOrigins))
	for _, o := range cfg.CORSOrigins {
		if o != "" {
			origins[o] = true
		}
	}

	s := &Server{
		cfg:     cfg,
		querier: querier,
		logger:  logger,
		origins: origins,
	}
	if cfg.RateLimit > 0 {
		s.limiters = newLimiterPool(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the fully wired route handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/audit/recent", s.handleRecent)
	mux.HandleFunc("GET /api/audit/events", s.handleEvents)
	mux.HandleFunc("GET /api/audit/summary", s.handleSummary)
	return s.cors(s.rateLimit(mux))
}

// Start begins serving. Blocks until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http api listening", "addr", s.addr)
	err = s.srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Addr returns the bound listen address. Only valid after Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// --- Handlers ---

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit: cannot parse %q", raw))
			return
		}
		if n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit: must not be negative")
			return
		}
		limit = n
	}

	events, err := s.querier.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("audit recent failed", "error", err)
		writeError(w, http.StatusInternalServerError, "audit read failed")
		return
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: events, Count: len(events)})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := audit.QueryParams{
		Operation:  q.Get("operation"),
		SessionID:  q.Get("session_id"),
		ClientName: q.Get("client_name"),
		Since:      q.Get("since"),
		Until:      q.Get("until"),
		ErrorsOnly: q.Get("errors_only"),
		Limit:      q.Get("limit"),
	}

	events, err := s.querier.Query(r.Context(), params)
	if err != nil {
		var verr *audit.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		s.logger.Error("audit query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "audit read failed")
		return
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: events, Count: len(events)})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.querier.Summary(r.Context())
	if err != nil {
		s.logger.Error("audit summary failed", "error", err)
		writeError(w, http.StatusInternalServerError, "audit read failed")
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{Summary: summary})
}

// --- Middleware ---

// cors applies the configured origin allowlist and answers preflights.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.origins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit rejects clients that exceed the per-client rate.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiters == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiters.allow(clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies a client by IP for rate limiting.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// limiterPool hands out one token bucket per client.
type limiterPool struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newLimiterPool(limit rate.Limit, burst int) *limiterPool {
	return &limiterPool{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (p *limiterPool) allow(key string) bool {
	p.mu.Lock()
	if len(p.limiters) >= maxTrackedClients {
		p.limiters = make(map[string]*rate.Limiter)
	}
	lim, ok := p.limiters[key]
	if !ok {
		lim = rate.NewLimiter(p.limit, p.burst)
		p.limiters[key] = lim
	}
	p.mu.Unlock()
	return lim.Allow()
}

// --- Responses ---

type eventsResponse struct {
	Events []audit.Event `json:"events"`
	Count  int           `json:"count"`
}

type summaryResponse struct {
	Summary audit.Summary `json:"summary"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
