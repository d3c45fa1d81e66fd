package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"driftpursuit/intercept/internal/balance"
	"driftpursuit/intercept/internal/campaign"
	"driftpursuit/intercept/internal/combat"
	"driftpursuit/intercept/internal/logging"
	"driftpursuit/intercept/internal/replay"
)

// maxRequestBytes bounds simulation request bodies and websocket messages.
const maxRequestBytes = 64 << 10

const wsWriteTimeout = 5 * time.Second

// Simulator runs the simulations served over HTTP.
type Simulator interface {
	Simulate(ctx context.Context, req balance.Request) (balance.Response, error)
	Stream(ctx context.Context, req balance.Request, recorder campaign.Recorder) (campaign.Result, error)
	Catalog() combat.BalanceCatalog
}

// RateLimiter gates how frequently simulations may be requested.
type RateLimiter interface {
	Allow() bool
}

// Options configures the HandlerSet.
type Options struct {
	Logger      *logging.Logger
	Simulator   Simulator
	RateLimiter RateLimiter
	TimeSource  func() time.Time
	ReplayStats func() replay.StorageStats
}

// HandlerSet bundles the HTTP and websocket handlers.
type HandlerSet struct {
	logger      *logging.Logger
	simulator   Simulator
	rateLimiter RateLimiter
	now         func() time.Time
	started     time.Time
	replayStats func() replay.StorageStats
	upgrader    websocket.Upgrader

	simulations atomic.Uint64
	streams     atomic.Uint64
	rejected    atomic.Uint64
	failures    atomic.Uint64
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	return &HandlerSet{
		logger:      logger,
		simulator:   opts.Simulator,
		rateLimiter: opts.RateLimiter,
		now:         now,
		started:     now(),
		replayStats: opts.ReplayStats,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Register attaches all handlers to the provided mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/livez", h.LivenessHandler())
	mux.HandleFunc("/metrics", h.MetricsHandler())
	mux.HandleFunc("/catalog", h.CatalogHandler())
	mux.HandleFunc("/simulate", h.SimulateHandler())
	mux.HandleFunc("/ws/engagement", h.EngagementStreamHandler())
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// MetricsHandler emits Prometheus compatible text metrics.
func (h *HandlerSet) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprintf(w, "# HELP intercept_uptime_seconds Server uptime in seconds.\n")
		fmt.Fprintf(w, "# TYPE intercept_uptime_seconds gauge\n")
		fmt.Fprintf(w, "intercept_uptime_seconds %.0f\n", h.now().Sub(h.started).Seconds())

		fmt.Fprintf(w, "# HELP intercept_simulations_total Simulations served over HTTP.\n")
		fmt.Fprintf(w, "# TYPE intercept_simulations_total counter\n")
		fmt.Fprintf(w, "intercept_simulations_total %d\n", h.simulations.Load())

		fmt.Fprintf(w, "# HELP intercept_streams_total Engagement streams served over websocket.\n")
		fmt.Fprintf(w, "# TYPE intercept_streams_total counter\n")
		fmt.Fprintf(w, "intercept_streams_total %d\n", h.streams.Load())

		fmt.Fprintf(w, "# HELP intercept_rate_limited_total Simulation requests rejected by the rate limiter.\n")
		fmt.Fprintf(w, "# TYPE intercept_rate_limited_total counter\n")
		fmt.Fprintf(w, "intercept_rate_limited_total %d\n", h.rejected.Load())

		fmt.Fprintf(w, "# HELP intercept_simulation_failures_total Simulations that returned an error.\n")
		fmt.Fprintf(w, "# TYPE intercept_simulation_failures_total counter\n")
		fmt.Fprintf(w, "intercept_simulation_failures_total %d\n", h.failures.Load())

		if h.replayStats != nil {
			stats := h.replayStats()
			fmt.Fprintf(w, "# HELP intercept_replay_bundles Replay bundles retained on disk.\n")
			fmt.Fprintf(w, "# TYPE intercept_replay_bundles gauge\n")
			fmt.Fprintf(w, "intercept_replay_bundles %d\n", stats.Bundles)
			fmt.Fprintf(w, "# HELP intercept_replay_bytes Disk footprint of retained replay bundles.\n")
			fmt.Fprintf(w, "# TYPE intercept_replay_bytes gauge\n")
			fmt.Fprintf(w, "intercept_replay_bytes %d\n", stats.Bytes)
		}
	}
}

// CatalogHandler serves the balance catalog.
func (h *HandlerSet) CatalogHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.simulator == nil {
			http.Error(w, "simulation is unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, h.simulator.Catalog())
	}
}

// SimulateHandler runs one campaign or a trial batch from a JSON request body.
func (h *HandlerSet) SimulateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.LoggerFromContext(r.Context()).With(
			logging.String("handler", "simulate"),
			logging.String("remote_addr", r.RemoteAddr),
		)
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.rateLimiter != nil && !h.rateLimiter.Allow() {
			h.rejected.Add(1)
			if hinted, ok := h.rateLimiter.(interface{ RetryAfter() time.Duration }); ok {
				if wait := hinted.RetryAfter(); wait > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				}
			}
			reqLogger.Warn("simulation denied: rate limit exceeded")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		if h.simulator == nil {
			http.Error(w, "simulation is unavailable", http.StatusServiceUnavailable)
			return
		}
		//1.- Decode strictly so misspelled fields surface instead of silently defaulting.
		var req balance.Request
		decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		response, err := h.simulator.Simulate(r.Context(), req)
		if err != nil {
			status := errorStatus(err)
			if status == http.StatusInternalServerError {
				h.failures.Add(1)
				reqLogger.Error("simulation failed", logging.Error(err))
			}
			http.Error(w, err.Error(), status)
			return
		}
		h.simulations.Add(1)
		writeJSON(w, http.StatusOK, response)
	}
}

// EngagementStreamHandler upgrades to a websocket, reads one request message and streams
// the campaign's engagement boundaries and shots followed by the result.
func (h *HandlerSet) EngagementStreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.simulator == nil {
			http.Error(w, "simulation is unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", logging.Error(err))
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxRequestBytes)

		var req balance.Request
		if err := conn.ReadJSON(&req); err != nil {
			h.closeWith(conn, websocket.CloseUnsupportedData, "invalid request")
			return
		}
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		//1.- Stream synchronously from the campaign goroutine; a failed write cancels the run.
		sender := &wsSender{conn: conn, cancel: cancel}
		result, err := h.simulator.Stream(ctx, req, sender)
		if sender.Err() != nil {
			return
		}
		if err != nil {
			sender.emit(streamMessage{Kind: "error", Error: err.Error()})
			h.closeWith(conn, closeCode(err), "simulation failed")
			return
		}
		h.streams.Add(1)
		sender.emit(streamMessage{Kind: "result", Result: &result})
		h.closeWith(conn, websocket.CloseNormalClosure, "done")
	}
}

func (h *HandlerSet) closeWith(conn *websocket.Conn, code int, text string) {
	deadline := h.now().Add(wsWriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

// streamMessage is one websocket frame of an engagement stream.
type streamMessage struct {
	Kind       string            `json:"kind"`
	Engagement int               `json:"engagement"`
	StartA     float64           `json:"startA,omitempty"`
	StartB     float64           `json:"startB,omitempty"`
	Event      *combat.FireEvent `json:"event,omitempty"`
	Outcome    *combat.Outcome   `json:"outcome,omitempty"`
	Result     *campaign.Result  `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
}

type wsSender struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	index  int
	err    error
}

func (s *wsSender) BeginEngagement(index int, startA, startB float64) {
	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
	s.emit(streamMessage{Kind: "begin", Engagement: index, StartA: startA, StartB: startB})
}

func (s *wsSender) ObserveFire(event combat.FireEvent) {
	s.mu.Lock()
	index := s.index
	s.mu.Unlock()
	s.emit(streamMessage{Kind: "fire", Engagement: index, Event: &event})
}

func (s *wsSender) EndEngagement(index int, outcome combat.Outcome) {
	s.emit(streamMessage{Kind: "end", Engagement: index, Outcome: &outcome})
}

func (s *wsSender) emit(message streamMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := s.conn.WriteJSON(message); err != nil {
		s.err = err
		s.cancel()
	}
}

func (s *wsSender) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, balance.ErrInvalidRequest), errors.Is(err, campaign.ErrInvalidScenario):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func closeCode(err error) int {
	if errorStatus(err) == http.StatusBadRequest {
		return websocket.ClosePolicyViolation
	}
	return websocket.CloseInternalServerErr
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
