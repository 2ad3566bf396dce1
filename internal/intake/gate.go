// Package intake gates order submissions arriving from a screen before
// they reach the Leader, rejecting duplicate or out-of-sequence resends
// and submissions so old they can no longer be honestly attributed to a
// live screen session. The sequencing/freshness discipline follows this
// codebase's own per-client frame gate, narrowed to the one field a
// screen submission actually carries: a monotonically increasing
// sequence number.
package intake

import (
	"sync"
	"time"

	"ringscoop/internal/logging"
)

// Clock exposes the current time for freshness decisions.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config controls the freshness and sequencing gates applied to order
// submissions.
type Config struct {
	// MaxAge rejects a submission whose SentAt is older than this, zero
	// disables the check.
	MaxAge time.Duration
}

// DropReason enumerates why a submission was rejected by the gate.
type DropReason string

const (
	DropReasonNone     DropReason = ""
	DropReasonSequence DropReason = "sequence"
	DropReasonStale    DropReason = "stale"
)

// Decision summarises whether a submission passed validation.
type Decision struct {
	Accepted bool
	Reason   DropReason
}

// Submission captures the metadata required to gate an order submission.
type Submission struct {
	ScreenID   int
	SequenceID uint64
	SentAt     time.Time
}

type screenState struct {
	lastSequence uint64
}

// DropCounters aggregates per-reason drop counts for one screen.
type DropCounters struct {
	Sequence uint64 `json:"sequence"`
	Stale    uint64 `json:"stale"`
}

type metrics struct {
	mu    sync.RWMutex
	drops map[int]DropCounters
}

func newMetrics() *metrics { return &metrics{drops: make(map[int]DropCounters)} }

func (m *metrics) observe(screenID int, reason DropReason) {
	if reason == DropReasonNone {
		return
	}
	m.mu.Lock()
	counters := m.drops[screenID]
	switch reason {
	case DropReasonSequence:
		counters.Sequence++
	case DropReasonStale:
		counters.Stale++
	}
	m.drops[screenID] = counters
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[int]DropCounters {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.drops) == 0 {
		return nil
	}
	clone := make(map[int]DropCounters, len(m.drops))
	for screenID, counters := range m.drops {
		clone[screenID] = counters
	}
	return clone
}

func (m *metrics) forget(screenID int) {
	m.mu.Lock()
	delete(m.drops, screenID)
	m.mu.Unlock()
}

// Gate validates sequencing and freshness for inbound order submissions,
// one sequence counter per screen.
type Gate struct {
	mu      sync.Mutex
	cfg     Config
	clock   Clock
	log     *logging.Logger
	metrics *metrics
	screens map[int]*screenState
}

// Option customises gate construction.
type Option func(*Gate)

// WithClock overrides the clock used for freshness calculations, for tests.
func WithClock(clock Clock) Option {
	return func(g *Gate) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// NewGate constructs a gate with the supplied configuration and logger.
func NewGate(cfg Config, log *logging.Logger, opts ...Option) *Gate {
	if cfg.MaxAge < 0 {
		cfg.MaxAge = 0
	}
	if log == nil {
		log = logging.L()
	}
	g := &Gate{
		cfg:     cfg,
		clock:   systemClock{},
		log:     log,
		metrics: newMetrics(),
		screens: make(map[int]*screenState),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Evaluate applies the sequencing and freshness guards to sub. A
// SequenceID of zero always passes, since not every screen client tracks
// one; once a screen sends a non-zero sequence, later submissions must
// strictly increase it.
func (g *Gate) Evaluate(sub Submission) Decision {
	if sub.SequenceID == 0 {
		return Decision{Accepted: true}
	}

	now := g.clock.Now()
	decision := Decision{Accepted: true}
	if g.cfg.MaxAge > 0 && !sub.SentAt.IsZero() {
		if age := now.Sub(sub.SentAt); age > g.cfg.MaxAge {
			decision = Decision{Accepted: false, Reason: DropReasonStale}
		}
	}

	if decision.Accepted {
		g.mu.Lock()
		state := g.screens[sub.ScreenID]
		if state == nil {
			state = &screenState{}
			g.screens[sub.ScreenID] = state
		}
		if sub.SequenceID <= state.lastSequence {
			decision = Decision{Accepted: false, Reason: DropReasonSequence}
		} else {
			state.lastSequence = sub.SequenceID
		}
		g.mu.Unlock()
	}

	if !decision.Accepted {
		g.metrics.observe(sub.ScreenID, decision.Reason)
	}
	return decision
}

// Forget clears cached sequencing and metrics state for a disconnected
// screen.
func (g *Gate) Forget(screenID int) {
	g.mu.Lock()
	delete(g.screens, screenID)
	g.mu.Unlock()
	g.metrics.forget(screenID)
}

// Metrics returns a snapshot of the latest per-screen drop counters.
func (g *Gate) Metrics() map[int]DropCounters {
	return g.metrics.snapshot()
}
