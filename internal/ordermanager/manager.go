// Package ordermanager implements the Order Manager: the consumption half
// of the token protocol, holding at most one active order per robot.
package ordermanager

import (
	"sync"
	"time"

	"ringscoop/internal/flavor"
	"ringscoop/internal/logging"
	"ringscoop/internal/order"
	"ringscoop/internal/token"
)

// TokenSink is where a consumed or forwarded token is returned to, for
// onward ring transmission. Implementations live in ringio.
type TokenSink interface {
	ForwardToken(tok token.Flavor)
	ForwardTokenBackup(probe token.Backup)
}

// ResultSink reports order outcomes to the Leader.
type ResultSink interface {
	OrderPrepared()
	OrderAborted(f flavor.ID)
}

// Preparer is the Order Preparer this manager hands scooping work to.
type Preparer interface {
	ScoopFlavor(tok token.Flavor, grams uint32)
}

// lastSeen tracks the most-recently-observed residual per flavor, used both
// to answer TokenBackup probes conservatively and to seed a probe this
// robot originates when its own timer fires. Modeled on the
// dirty-tracking/clone-on-read discipline of a concurrent state store:
// writers record under lock, readers get a defensive copy.
type lastSeen struct {
	mu     sync.RWMutex
	amount map[flavor.ID]uint32
}

func newLastSeen() *lastSeen {
	return &lastSeen{amount: make(map[flavor.ID]uint32)}
}

func (l *lastSeen) record(id flavor.ID, amount uint32) {
	l.mu.Lock()
	l.amount[id] = amount
	l.mu.Unlock()
}

func (l *lastSeen) get(id flavor.ID) (uint32, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.amount[id]
	return v, ok
}

// Manager is the per-robot Order Manager task. All fields below are owned
// exclusively by the goroutine running Run; other tasks only ever send on
// its inbox.
type Manager struct {
	log      *logging.Logger
	sink     TokenSink
	results  ResultSink
	preparer Preparer

	timeout time.Duration

	inbox chan message

	flavorsNeeded map[flavor.ID]uint32
	scooping      bool
	aborted       bool
	seen          *lastSeen

	timerReset chan struct{}
	timerStop  chan struct{}
}

type message interface{ isOMMessage() }

type getNewOrder struct {
	info order.Info
}
type transferToken struct{ tok token.Flavor }
type getTokenBack struct{ tok token.Flavor }
type getTokenBackup struct{ probe token.Backup }

func (getNewOrder) isOMMessage()    {}
func (transferToken) isOMMessage()  {}
func (getTokenBack) isOMMessage()   {}
func (getTokenBackup) isOMMessage() {}

// New constructs an Order Manager for a ring of maxRobots nodes, where the
// lost-token timeout is (N-1) * scoopTimeFactor * 1000 / 2 ms.
func New(log *logging.Logger, sink TokenSink, results ResultSink, preparer Preparer, maxRobots, scoopTimeFactor int) *Manager {
	timeoutMs := (maxRobots - 1) * scoopTimeFactor * 1000 / 2
	return &Manager{
		log:        log,
		sink:       sink,
		results:    results,
		preparer:   preparer,
		timeout:    time.Duration(timeoutMs) * time.Millisecond,
		inbox:      make(chan message, 64),
		seen:       newLastSeen(),
		timerReset: make(chan struct{}, 1),
		timerStop:  make(chan struct{}, 1),
	}
}

func (m *Manager) GetNewOrder(info order.Info)    { m.inbox <- getNewOrder{info: info} }
func (m *Manager) TransferToken(tok token.Flavor) { m.inbox <- transferToken{tok: tok} }
func (m *Manager) TokenReturned(tok token.Flavor) { m.inbox <- getTokenBack{tok: tok} }
func (m *Manager) TokenBackupProbe(p token.Backup) { m.inbox <- getTokenBackup{probe: p} }

// Run drives the Order Manager's message loop until stop is closed.
func (m *Manager) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case msg := <-m.inbox:
			m.handle(msg)
		}
	}
}

func (m *Manager) handle(msg message) {
	switch v := msg.(type) {
	case getNewOrder:
		m.flavorsNeeded = make(map[flavor.ID]uint32, len(v.info.Order.Flavors))
		for _, fg := range v.info.Order.Flavors {
			m.flavorsNeeded[fg.Flavor] = fg.Grams
		}
		m.aborted = false
		m.armTimer()
	case transferToken:
		m.onTransferToken(v.tok)
	case getTokenBack:
		m.onTokenReturned(v.tok)
	case getTokenBackup:
		m.onTokenBackupProbe(v.probe)
	}
}

// onTransferToken is TransferToken(tok) from §4.2.
func (m *Manager) onTransferToken(tok token.Flavor) {
	m.seen.record(tok.ID, tok.Amount)

	grams, needed := m.flavorsNeeded[tok.ID]
	if m.scooping || !needed {
		m.sink.ForwardToken(tok)
		return
	}

	if !tok.CanServe(grams) {
		clear(m.flavorsNeeded)
		m.aborted = true
		m.results.OrderAborted(tok.ID)
		m.sink.ForwardToken(tok)
		m.stopTimer()
		return
	}

	m.scooping = true
	delete(m.flavorsNeeded, tok.ID)
	m.resetTimer()
	m.preparer.ScoopFlavor(tok, grams)
}

// onTokenReturned is OP's GetTokenBack(tok) handler.
func (m *Manager) onTokenReturned(tok token.Flavor) {
	m.scooping = false
	m.sink.ForwardToken(tok)
	if !m.aborted && len(m.flavorsNeeded) == 0 {
		m.results.OrderPrepared()
		m.stopTimer()
	}
}

// onTokenBackupProbe applies the conservative merge rule: tighten the
// probe to this robot's last-seen amount if it is a stricter bound, then
// forward.
func (m *Manager) onTokenBackupProbe(probe token.Backup) {
	if observed, ok := m.seen.get(probe.Flavor); ok {
		probe = probe.Merge(observed)
	}
	m.sink.ForwardTokenBackup(probe)
}

func (m *Manager) armTimer() {
	if m.timeout <= 0 {
		return
	}
	go m.runTimer()
}

func (m *Manager) resetTimer() {
	select {
	case m.timerReset <- struct{}{}:
	default:
	}
}

func (m *Manager) stopTimer() {
	select {
	case m.timerStop <- struct{}{}:
	default:
	}
}

// runTimer races the cancellable lost-token timeout. A signal on
// timerReset re-arms the deadline without firing; a signal on timerStop
// ends the timer. On expiry it calls onTimerExpired, then re-arms.
func (m *Manager) runTimer() {
	timer := time.NewTimer(m.timeout)
	defer timer.Stop()
	for {
		select {
		case <-m.timerStop:
			return
		case <-m.timerReset:
			if !timer.Stop() {
				<-timerDrain(timer)
			}
			timer.Reset(m.timeout)
		case <-timer.C:
			m.onTimerExpired()
			timer.Reset(m.timeout)
		}
	}
}

func timerDrain(t *time.Timer) <-chan time.Time {
	select {
	case v := <-t.C:
		ch := make(chan time.Time, 1)
		ch <- v
		return ch
	default:
		empty := make(chan time.Time)
		close(empty)
		return empty
	}
}

// onTimerExpired posts an expireTimer message to the inbox. handle has no
// case for expireTimer, so an expiry sends no TokenBackup probe; this
// manager only merges and forwards probes that reach it from the ring.
func (m *Manager) onTimerExpired() {
	m.inbox <- expireTimer{}
}

type expireTimer struct{}

func (expireTimer) isOMMessage() {}
