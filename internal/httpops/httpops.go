// Package httpops exposes a robot process's health, readiness, and metrics
// endpoints over plain HTTP, guarded by the same sliding-window request
// limiter this codebase's HTTP layer already uses to shed abusive traffic.
package httpops

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ringscoop/internal/leader"
	"ringscoop/internal/logging"
)

// StatusSource reports the data the operator endpoints surface. A robot
// process satisfies this with a thin adapter over its ring/leader state.
type StatusSource interface {
	// LeaderSnapshot returns the current LeaderBackup if this robot is (or
	// recently was) leader, and whether one is available at all.
	LeaderSnapshot() (leader.Backup, bool)
	// RoundTrips returns latency statistics for the token's most recent
	// circuits around the ring.
	RoundTrips() RoundTripSnapshot
	// Ready reports whether the robot has completed its ring-join
	// handshake and is eligible to serve traffic.
	Ready() bool
}

// Server hosts the operator-facing HTTP surface for one robot process.
type Server struct {
	log     *logging.Logger
	source  StatusSource
	limiter *SlidingWindowLimiter
	mux     *http.ServeMux
}

// New builds an httpops server. limit/window configure the request rate
// every endpoint shares; zero values disable limiting.
func New(source StatusSource, limit int, window time.Duration, log *logging.Logger) *Server {
	if log == nil {
		log = logging.L()
	}
	s := &Server{
		log:     log,
		source:  source,
		limiter: NewSlidingWindowLimiter(window, limit, nil),
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/readyz", s.handleReady)
	s.mux.HandleFunc("/metrics", s.handleMetrics)
	return s
}

// Handle mounts an additional handler (e.g. internal/opsfeed's websocket
// hub) on this server's mux, so operator tooling can reach it on the same
// port as health/ready/metrics.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.source.Ready() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

type statusPayload struct {
	Ready      bool              `json:"ready"`
	HasLeader  bool              `json:"has_leader_snapshot"`
	Backup     *leader.Backup    `json:"leader_backup,omitempty"`
	RoundTrips RoundTripSnapshot `json:"round_trips"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	backup, ok := s.source.LeaderSnapshot()
	payload := statusPayload{
		Ready:      s.source.Ready(),
		HasLeader:  ok,
		RoundTrips: s.source.RoundTrips(),
	}
	if ok {
		payload.Backup = &backup
	}

	if r.URL.Query().Get("format") == "prometheus" {
		s.writePrometheus(w, payload)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warn("failed to encode metrics payload", logging.Error(err))
	}
}

func (s *Server) writePrometheus(w http.ResponseWriter, payload statusPayload) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	ready := 0
	if payload.Ready {
		ready = 1
	}
	fmt.Fprintf(w, "ring_robot_ready %d\n", ready)
	fmt.Fprintf(w, "ring_token_roundtrip_samples %d\n", payload.RoundTrips.Samples)
	fmt.Fprintf(w, "ring_token_roundtrip_avg_ms %f\n", float64(payload.RoundTrips.Average.Milliseconds()))
	fmt.Fprintf(w, "ring_token_roundtrip_max_ms %f\n", float64(payload.RoundTrips.Max.Milliseconds()))
}

// SlidingWindowLimiter enforces a maximum number of events within a time
// window, guarding the operator endpoints from being hammered by a
// misbehaving monitoring client.
type SlidingWindowLimiter struct {
	window time.Duration
	limit  int
	now    func() time.Time

	mu     sync.Mutex
	events []time.Time
}

// NewSlidingWindowLimiter constructs a limiter allowing up to limit events
// per window. A non-positive window or limit disables limiting entirely.
func NewSlidingWindowLimiter(window time.Duration, limit int, timeSource func() time.Time) *SlidingWindowLimiter {
	if window <= 0 || limit <= 0 {
		return &SlidingWindowLimiter{window: window, limit: limit}
	}
	if timeSource == nil {
		timeSource = time.Now
	}
	return &SlidingWindowLimiter{window: window, limit: limit, now: timeSource}
}

// Allow reports whether the caller may proceed under the current rate limit.
func (l *SlidingWindowLimiter) Allow() bool {
	if l == nil || l.limit <= 0 || l.window <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	kept := l.events[:0]
	for _, ts := range l.events {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.events = kept
	if len(l.events) >= l.limit {
		return false
	}
	l.events = append(l.events, now)
	return true
}
