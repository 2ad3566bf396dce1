package ringio

import (
	"sync"

	"ringscoop/internal/logging"
	"ringscoop/internal/ringaddr"
	"ringscoop/internal/token"
	"ringscoop/internal/wire"
)

// Ring owns one robot's outbound connection to the next live robot in the
// ring and implements the safe_send_next recovery rule: if the next
// robot has died, walk forward around the ring (skipping self) until a
// reachable robot accepts the connection, and adopt it as the new next
// hop. This is the only place in the codebase that reasons about ring
// topology as addresses rather than abstract neighbor IDs.
type Ring struct {
	mu        sync.Mutex
	selfID    int
	maxRobots int
	log       *logging.Logger
	backoff   *DialBackoff

	nextID   int
	nextConn *conn
}

// NewRing constructs a ring handle for selfID. Dial does not happen until
// the first ForwardToken/ForwardTokenBackup/BroadcastEnvelope call, so
// construction never blocks.
func NewRing(selfID, maxRobots int, log *logging.Logger) *Ring {
	return &Ring{
		selfID:    selfID,
		maxRobots: maxRobots,
		log:       log,
		backoff:   NewDialBackoff(0, 0),
		nextID:    -1,
	}
}

// ForwardToken implements ordermanager.TokenSink by sending tok to the
// next live robot, recovering the ring if necessary.
func (r *Ring) ForwardToken(tok token.Flavor) {
	r.safeSendNext(wire.Envelope{Type: wire.KindToken, Token: &tok})
}

// ForwardTokenBackup implements ordermanager.TokenSink by sending a
// recovery probe to the next live robot, recovering the ring if
// necessary.
func (r *Ring) ForwardTokenBackup(probe token.Backup) {
	r.safeSendNext(wire.Envelope{Type: wire.KindTokenBackup, TokenBackup: &probe})
}

// BroadcastEnvelope sends an arbitrary envelope (election ballots,
// new-leader announcements) one hop forward, using the same recovery
// path as token traffic.
func (r *Ring) BroadcastEnvelope(env wire.Envelope) {
	r.safeSendNext(env)
}

// safeSendNext is the ring-walk recovery rule: try the current next hop;
// on failure, probe candidate ids moving forward around the ring (never
// landing on self) until one accepts a connection, then send on it and
// adopt it as the new next hop.
func (r *Ring) safeSendNext(env wire.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.nextConn != nil {
		if err := r.nextConn.send(env); err == nil {
			r.backoff.RecordSuccess(ringaddr.Robot(r.nextID))
			return
		}
		r.nextConn.close()
		r.nextConn = nil
	}

	for offset := 1; offset < r.maxRobots; offset++ {
		candidate := (r.selfID + offset) % r.maxRobots
		if candidate == r.selfID {
			continue
		}
		addr := ringaddr.Robot(candidate)
		r.backoff.Wait(addr)
		c, err := dialRole(addr, wire.RolePrevRobot, 0)
		if err != nil {
			r.backoff.RecordFailure(addr)
			continue
		}
		if err := c.send(env); err != nil {
			c.close()
			r.backoff.RecordFailure(addr)
			continue
		}
		r.backoff.RecordSuccess(addr)
		r.nextID = candidate
		r.nextConn = c
		r.log.Info("ring recovered next hop", logging.Int("next_robot_id", candidate))
		return
	}
	r.log.Error("ring exhausted candidates, token forward dropped", logging.Int("self_id", r.selfID))
}

// SetNext adopts an already-dialed connection as the current next hop,
// so the next send doesn't need to re-probe.
func (r *Ring) SetNext(id int, c *conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nextConn != nil {
		r.nextConn.close()
	}
	r.nextID = id
	r.nextConn = c
}

// Close tears down the current next-hop connection, if any.
func (r *Ring) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nextConn != nil {
		r.nextConn.close()
		r.nextConn = nil
	}
}
