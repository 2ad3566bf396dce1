package ringio

import (
	"encoding/json"
	"net"
	"strconv"
	"sync"
	"time"

	"ringscoop/internal/backupstore"
	"ringscoop/internal/elector"
	"ringscoop/internal/httpops"
	"ringscoop/internal/intake"
	"ringscoop/internal/leader"
	"ringscoop/internal/logging"
	"ringscoop/internal/networking"
	"ringscoop/internal/opsfeed"
	"ringscoop/internal/ordermanager"
	"ringscoop/internal/orderpreparer"
	"ringscoop/internal/ringaddr"
	"ringscoop/internal/wire"
)

// Node is one robot process's connection handler: it listens for ring
// traffic from its predecessor and, whenever it holds the leadership,
// registration traffic from followers and screens. It owns no domain
// logic itself — every decoded envelope is handed to the Order Manager,
// Order Preparer, Leader, or election package that actually knows what
// to do with it.
type Node struct {
	selfID    int
	maxRobots int
	log       *logging.Logger

	ring        *Ring
	om          *ordermanager.Manager
	preparer    *orderpreparer.Preparer
	store       *backupstore.Store
	resultRelay *leaderResultRelay
	trips       *httpops.RoundTripMonitor
	intake      *intake.Gate
	bandwidth   *networking.BandwidthRegulator
	events      *opsfeed.Hub

	mu          sync.Mutex
	leaderID    int
	isLeader    bool
	leaderTask  *leader.Leader
	election    *elector.Election
	lastTokenAt time.Time

	robotLinks  map[int]*RobotLink
	screenLinks map[int]*ScreenLink

	ringListener   net.Listener
	leaderListener net.Listener
	stop           chan struct{}
}

// Config captures what Node needs to start a robot's connection layer.
// preparer and store are constructed by the caller (cmd/robot) since
// their own constructors need values (scoop-time factor, secrets) that
// don't belong in ringio; NewNode builds the Order Manager itself.
type Config struct {
	SelfID    int
	MaxRobots int
	Log       *logging.Logger
	Preparer  *orderpreparer.Preparer
	Store     *backupstore.Store
	// Events is optional; when set, ring occurrences (leader transitions,
	// election rounds, token-loss probes, order dispatch/completion) are
	// pushed to every attached operator dashboard.
	Events *opsfeed.Hub
}

// NewNode builds a Node and its Order Manager, wiring the manager's
// TokenSink to this node's Ring and its ResultSink to a relay that
// forwards to whichever robot currently holds leadership.
func NewNode(cfg Config, scoopTimeFactor int) *Node {
	n := &Node{
		selfID:      cfg.SelfID,
		maxRobots:   cfg.MaxRobots,
		log:         cfg.Log,
		preparer:    cfg.Preparer,
		store:       cfg.Store,
		resultRelay: newLeaderResultRelay(),
		trips:       httpops.NewRoundTripMonitor(),
		intake:      intake.NewGate(intake.Config{MaxAge: 30 * time.Second}, cfg.Log),
		bandwidth:   networking.NewBandwidthRegulator(networking.DefaultBandwidthLimitBytesPerSecond, nil),
		events:      cfg.Events,
		leaderID:    -1,
		robotLinks:  make(map[int]*RobotLink),
		screenLinks: make(map[int]*ScreenLink),
		stop:        make(chan struct{}),
	}
	n.ring = NewRing(cfg.SelfID, cfg.MaxRobots, cfg.Log)
	n.om = ordermanager.New(cfg.Log, n.ring, n.resultRelay, cfg.Preparer, cfg.MaxRobots, scoopTimeFactor)
	if cfg.Preparer != nil {
		cfg.Preparer.SetSink(n.om)
	}
	return n
}

// OrderManager exposes the node's Order Manager task so cmd/robot can
// start it and so orderpreparer's return sink can reach it.
func (n *Node) OrderManager() *ordermanager.Manager { return n.om }

// IsLeader reports whether this robot currently believes it holds
// leadership.
func (n *Node) IsLeader() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.isLeader
}

// LeaderSnapshot returns the current Leader task's replicated state, if
// this robot is leader, or the last backup this robot has on file
// otherwise. Satisfies httpops.StatusSource.
func (n *Node) LeaderSnapshot() (leader.Backup, bool) {
	n.mu.Lock()
	task := n.leaderTask
	n.mu.Unlock()
	if task != nil {
		return task.Snapshot(), true
	}
	if n.store != nil {
		b := n.store.Latest()
		return b, true
	}
	return leader.Backup{}, false
}

// Trips exposes the round-trip monitor so the admin service can report
// the same latency statistics httpops does.
func (n *Node) Trips() *httpops.RoundTripMonitor { return n.trips }

// RoundTrips reports latency statistics between successive token sightings
// at this robot, a proxy for how long the token takes to circulate the
// ring. Satisfies httpops.StatusSource.
func (n *Node) RoundTrips() httpops.RoundTripSnapshot {
	return n.trips.Snapshot()
}

// BandwidthUsage reports the per-screen throttling state tracked by this
// node's bandwidth regulator, keyed by screen id.
func (n *Node) BandwidthUsage() map[string]networking.BandwidthUsage {
	return n.bandwidth.SnapshotUsage()
}

// Ready reports whether the node knows who the leader is. It does not
// check whether a next hop in the ring has been reached.
func (n *Node) Ready() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.leaderID >= 0
}

// Start binds the ring and leader-registration listeners and begins
// accepting connections. It does not block.
func (n *Node) Start() error {
	ringLn, err := net.Listen("tcp", ringaddr.Robot(n.selfID))
	if err != nil {
		return err
	}
	n.ringListener = ringLn
	go n.acceptLoop(ringLn, n.handleRingConn)

	leaderLn, err := net.Listen("tcp", ringaddr.Leader(n.selfID))
	if err != nil {
		ringLn.Close()
		return err
	}
	n.leaderListener = leaderLn
	go n.acceptLoop(leaderLn, n.handleLeaderConn)

	go n.om.Run(n.stop)
	return nil
}

// Stop closes both listeners and signals the Order Manager to exit.
func (n *Node) Stop() {
	close(n.stop)
	if n.ringListener != nil {
		n.ringListener.Close()
	}
	if n.leaderListener != nil {
		n.leaderListener.Close()
	}
	n.ring.Close()
}

func (n *Node) acceptLoop(ln net.Listener, handle func(*conn, wire.Role, byte)) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-n.stop:
				return
			default:
				n.log.Warn("accept failed", logging.Error(err))
				return
			}
		}
		role, leaderID, err := wire.ReadRole(nc)
		if err != nil {
			nc.Close()
			continue
		}
		handle(wrapConn(nc), role, leaderID)
	}
}

// handleRingConn services a connection from the robot immediately behind
// us in the ring (role 'p'), decoding token, token-backup, election, and
// leader-announcement traffic and routing each to the right task. It also
// answers one-shot leader-discovery queries (role 'q') from screens that
// do not yet know which robot to register with.
func (n *Node) handleRingConn(c *conn, role wire.Role, _ byte) {
	if role == wire.RoleLeaderQuery {
		n.answerLeaderQuery(c)
		return
	}
	if role != wire.RolePrevRobot {
		c.close()
		return
	}
	go func() {
		defer c.close()
		for {
			env, err := c.dec.Decode()
			if err != nil {
				return
			}
			n.routeRingEnvelope(env)
		}
	}()
}

// answerLeaderQuery replies with the currently known leader id, or -1 if
// no election has completed yet, then closes the connection — it carries
// a single request/response exchange, not an ongoing session.
func (n *Node) answerLeaderQuery(c *conn) {
	defer c.close()
	n.mu.Lock()
	leaderID := n.leaderID
	n.mu.Unlock()
	if err := c.send(wire.Envelope{Type: wire.KindLeaderID, RobotID: leaderID}); err != nil {
		logConnError(n.log, "failed to answer leader query", "", err)
	}
}

func (n *Node) routeRingEnvelope(env wire.Envelope) {
	switch env.Type {
	case wire.KindToken:
		if env.Token != nil {
			n.observeTokenArrival()
			n.om.TransferToken(*env.Token)
		}
	case wire.KindTokenBackup:
		if env.TokenBackup != nil {
			n.events.Publish(opsfeed.Event{Kind: opsfeed.TokenLossProbe, RobotID: n.selfID})
			n.om.TokenBackupProbe(*env.TokenBackup)
		}
	case wire.KindLeaderBackup:
		if n.store != nil && env.Backup != nil {
			n.store.Record(fromBackupPayload(env.Backup))
		}
		n.ring.BroadcastEnvelope(env)
	case wire.KindNewLeader:
		n.onNewLeader(env.RobotID)
		n.ring.BroadcastEnvelope(env)
	case wire.KindNewElection:
		n.onElectionEnvelope(env)
	default:
		n.log.Warn("unexpected ring envelope kind", logging.String("kind", string(env.Type)))
	}
}

// StartElection begins a leader-election round originated by this robot,
// following the backup-validity correctness criterion: a robot that
// currently holds a valid last-known backup votes for itself as eligible.
func (n *Node) StartElection() {
	n.mu.Lock()
	hasBackup := n.store != nil
	n.election = elector.StartBallot(n.selfID, hasBackup)
	payload := ballotPayload(n.election)
	n.mu.Unlock()
	n.events.Publish(opsfeed.Event{Kind: opsfeed.ElectionRound, RobotID: n.selfID, Detail: "started"})
	n.ring.BroadcastEnvelope(wire.Envelope{Type: wire.KindNewElection, Ballot: payload})
}

func (n *Node) onElectionEnvelope(env wire.Envelope) {
	if env.Ballot == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	entries := make([]elector.Ballot, 0, len(env.Ballot.Ballots))
	for _, e := range env.Ballot.Ballots {
		entries = append(entries, elector.Ballot{RobotID: e.RobotID, HasBackup: e.HasBackup})
	}
	round := elector.FromBallots(env.Ballot.Origin, entries)

	if round.RoundComplete(n.selfID) {
		winner := round.ChooseWinner()
		n.events.Publish(opsfeed.Event{Kind: opsfeed.ElectionRound, RobotID: winner, Detail: "won"})
		n.ring.BroadcastEnvelope(wire.Envelope{Type: wire.KindNewLeader, RobotID: winner})
		n.applyNewLeaderLocked(winner)
		return
	}

	round.Append(n.selfID, n.store != nil)
	n.ring.BroadcastEnvelope(wire.Envelope{Type: wire.KindNewElection, Ballot: ballotPayload(round)})
}

// observeTokenArrival records the interval since this robot last saw the
// token go by, a per-robot proxy for the token's full ring-circulation
// latency.
func (n *Node) observeTokenArrival() {
	n.mu.Lock()
	now := time.Now()
	last := n.lastTokenAt
	n.lastTokenAt = now
	n.mu.Unlock()
	if !last.IsZero() {
		n.trips.Observe(now.Sub(last))
	}
}

func ballotPayload(e *elector.Election) *wire.BallotPayload {
	entries := make([]wire.BallotEntry, 0, len(e.Ballots()))
	for _, b := range e.Ballots() {
		entries = append(entries, wire.BallotEntry{RobotID: b.RobotID, HasBackup: b.HasBackup})
	}
	return &wire.BallotPayload{Origin: e.Origin, Ballots: entries}
}

func (n *Node) onNewLeader(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.applyNewLeaderLocked(id)
}

func (n *Node) applyNewLeaderLocked(id int) {
	if n.leaderID != id {
		n.events.Publish(opsfeed.Event{Kind: opsfeed.LeaderTransition, RobotID: id})
	}
	n.leaderID = id
	wasLeader := n.isLeader
	n.isLeader = id == n.selfID
	if n.isLeader && !wasLeader {
		var last leader.Backup
		if n.store != nil {
			last = n.store.Latest()
		}
		n.leaderTask = leader.NewFromBackup(n.selfID, n.log, last, n.onBackup)
		go n.leaderTask.Run(n.stop)
	} else if !n.isLeader && wasLeader {
		n.leaderTask = nil
	}
	if !n.isLeader {
		go n.joinLeaderAsync(id)
	}
}

// joinLeaderAsync dials the newly announced leader off the critical
// path, since JoinLeader blocks on a TCP dial and applyNewLeaderLocked
// runs under n.mu.
func (n *Node) joinLeaderAsync(id int) {
	if err := n.JoinLeader(id); err != nil {
		n.log.Warn("failed to register with new leader", logging.Int("leader_id", id), logging.Error(err))
	}
}

func (n *Node) onBackup(b leader.Backup) {
	if n.store != nil {
		n.store.Record(b)
	}
	for _, link := range n.robotLinks {
		if err := link.SendBackup(b); err != nil {
			logConnError(n.log, "failed to broadcast backup to robot", ringaddr.Robot(link.robotID), err)
		}
	}
	n.ring.BroadcastEnvelope(wire.Envelope{Type: wire.KindLeaderBackup, Backup: toBackupPayload(b)})
}

// handleLeaderConn services a registration connection from a follower
// robot or screen, only meaningful while this robot holds leadership.
func (n *Node) handleLeaderConn(c *conn, role wire.Role, _ byte) {
	env, err := c.dec.Decode()
	if err != nil {
		c.close()
		return
	}
	switch role {
	case wire.RoleRobotRegister:
		n.registerRobot(c, env.RobotID)
	case wire.RoleScreenRegister:
		n.registerScreen(c, env.ScreenID)
	default:
		c.close()
	}
}

func (n *Node) registerRobot(c *conn, robotID int) {
	n.mu.Lock()
	task := n.leaderTask
	n.mu.Unlock()
	if task == nil {
		c.close()
		return
	}
	link := NewRobotLink(robotID, c)
	n.mu.Lock()
	n.robotLinks[robotID] = link
	n.mu.Unlock()
	task.RegisterRobot(robotID, link)

	go func() {
		defer func() {
			n.mu.Lock()
			delete(n.robotLinks, robotID)
			n.mu.Unlock()
			task.RobotDied(robotID)
			c.close()
		}()
		for {
			env, err := c.dec.Decode()
			if err != nil {
				return
			}
			switch env.Type {
			case wire.KindOrderComplete:
				n.events.Publish(opsfeed.Event{Kind: opsfeed.OrderCompleted, RobotID: robotID})
				task.CompletedOrder(robotID)
			case wire.KindOrderNotFinished:
				n.events.Publish(opsfeed.Event{Kind: opsfeed.OrderCompleted, RobotID: robotID, Detail: "aborted:" + env.AbortedFlavor.String()})
				task.AbortedOrder(robotID, env.AbortedFlavor)
			}
		}
	}()
}

func (n *Node) registerScreen(c *conn, screenID int) {
	n.mu.Lock()
	task := n.leaderTask
	n.mu.Unlock()
	if task == nil {
		c.close()
		return
	}
	link := NewScreenLink(screenID, c)
	n.mu.Lock()
	n.screenLinks[screenID] = link
	n.mu.Unlock()
	task.RegisterScreen(screenID, link)

	go func() {
		defer func() {
			n.mu.Lock()
			delete(n.screenLinks, screenID)
			n.mu.Unlock()
			n.intake.Forget(screenID)
			n.bandwidth.Forget(strconv.Itoa(screenID))
			task.ScreenDied(screenID)
			c.close()
		}()
		for {
			env, err := c.dec.Decode()
			if err != nil {
				return
			}
			if env.Type == wire.KindNewOrder && env.Order != nil {
				if raw, err := json.Marshal(env.Order); err == nil && !n.bandwidth.Allow(strconv.Itoa(screenID), len(raw)) {
					n.log.Warn("dropped order submission", logging.Int("screen_id", screenID),
						logging.String("reason", "bandwidth"))
					continue
				}
				decision := n.intake.Evaluate(intake.Submission{
					ScreenID:   screenID,
					SequenceID: env.Order.SequenceID,
					SentAt:     time.Now(),
				})
				if !decision.Accepted {
					n.log.Warn("dropped order submission", logging.Int("screen_id", screenID),
						logging.String("reason", string(decision.Reason)))
					continue
				}
				n.events.Publish(opsfeed.Event{Kind: opsfeed.OrderDispatched, ScreenID: screenID, OrderID: env.Order.OrderID})
				task.AddNewOrder(*env.Order)
			}
		}
	}()
}
