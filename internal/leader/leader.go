package leader

import (
	"ringscoop/internal/flavor"
	"ringscoop/internal/logging"
	"ringscoop/internal/order"
)

// RobotSink is the send-handle the Leader holds for one follower's
// connection. Implementations live in ringio; this package only depends on
// the interface, breaking the cyclic reference between the Leader and
// per-connection tasks per the post-construction-wiring guidance.
type RobotSink interface {
	SendNewOrder(info order.Info) error
	SendBackup(b Backup) error
}

// ScreenSink is the send-handle for one screen's connection.
type ScreenSink interface {
	SendOrderPrepared(orderID string) error
	SendOrderAborted(orderID string, cause error) error
}

// message is the tagged-union of events the Leader task consumes. One
// message is handled to completion before the next is dispatched,
// matching the message-serial actor discipline described for this system.
type message interface{ isLeaderMessage() }

type addNewOrder struct{ info order.Info }
type completedOrder struct{ robotID int }
type abortedOrder struct {
	robotID int
	flavor  flavor.ID
}
type robotDied struct{ robotID int }
type screenDied struct{ screenID int }
type changeScreen struct{ old, new int }
type registerRobot struct {
	robotID int
	sink    RobotSink
}
type registerScreen struct {
	screenID int
	sink     ScreenSink
}
type snapshotRequest struct{ reply chan Backup }

func (addNewOrder) isLeaderMessage()     {}
func (completedOrder) isLeaderMessage()  {}
func (abortedOrder) isLeaderMessage()    {}
func (robotDied) isLeaderMessage()       {}
func (screenDied) isLeaderMessage()      {}
func (changeScreen) isLeaderMessage()    {}
func (registerRobot) isLeaderMessage()   {}
func (registerScreen) isLeaderMessage()  {}
func (snapshotRequest) isLeaderMessage() {}

// Leader owns the dispatch queue, robot-to-order map, screen registry, and
// backup broadcaster. It exists only on the robot currently elected
// leader and is driven by a single goroutine that owns all of its state.
type Leader struct {
	selfID int
	log    *logging.Logger

	inbox chan message

	st      *state
	robots  map[int]RobotSink
	screens map[int]ScreenSink

	onBackup func(Backup) // invoked after every mutation; broadcasts to followers
}

// NewFresh builds the Leader at cold start: empty queue, no available
// robots, no assigned orders, no known screens yet (callers register
// screens as their connections succeed). It creates no flavor tokens;
// SeedTokens builds that set separately.
func NewFresh(selfID int, log *logging.Logger, onBackup func(Backup)) *Leader {
	l := &Leader{
		selfID:   selfID,
		log:      log,
		inbox:    make(chan message, 64),
		st:       newState(),
		robots:   make(map[int]RobotSink),
		screens:  make(map[int]ScreenSink),
		onBackup: onBackup,
	}
	return l
}

// NewFromBackup builds the Leader upon promotion, from the outgoing
// leader's last broadcast. The promoted robot removes itself from the
// available set and, if it held an in-flight order, requeues it first.
func NewFromBackup(selfID int, log *logging.Logger, last Backup, onBackup func(Backup)) *Leader {
	return &Leader{
		selfID:   selfID,
		log:      log,
		inbox:    make(chan message, 64),
		st:       restoreFromBackup(last, selfID),
		robots:   make(map[int]RobotSink),
		screens:  make(map[int]ScreenSink),
		onBackup: onBackup,
	}
}

// Run drives the Leader's message loop until stop is closed.
func (l *Leader) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case msg := <-l.inbox:
			l.handle(msg)
		}
	}
}

func (l *Leader) handle(msg message) {
	switch m := msg.(type) {
	case registerRobot:
		l.robots[m.robotID] = m.sink
		l.st.pushIdleRobot(m.robotID)
		l.assignNewOrder()
		l.broadcastBackup()
	case registerScreen:
		l.screens[m.screenID] = m.sink
		l.st.screens[m.screenID] = true
		l.broadcastBackup()
	case addNewOrder:
		l.st.enqueue(m.info)
		l.assignNewOrder()
		l.broadcastBackup()
	case completedOrder:
		l.resolveOrder(m.robotID, func(info order.Info) {
			l.deliver(info, func(sink ScreenSink) error { return sink.SendOrderPrepared(info.OrderID) },
				order.Outcome{Prepared: true})
		})
	case abortedOrder:
		l.resolveOrder(m.robotID, func(info order.Info) {
			cause := abortError(m.flavor)
			l.deliver(info, func(sink ScreenSink) error { return sink.SendOrderAborted(info.OrderID, cause) },
				order.Outcome{Aborted: m.flavor})
		})
	case robotDied:
		l.onRobotDied(m.robotID)
	case screenDied:
		delete(l.screens, m.screenID)
		delete(l.st.screens, m.screenID)
		l.broadcastBackup()
	case changeScreen:
		l.onChangeScreen(m.old, m.new)
	case snapshotRequest:
		m.reply <- l.st.snapshot()
	}
}

// resolveOrder frees robotID and hands its completed/aborted assignment to
// deliver, per the GetCompletedOrder/GetAbortedOrder result-handling rule:
// move the robot back to available, remove its assignment, then call
// make_and_send_backup() and assign_new_order().
func (l *Leader) resolveOrder(robotID int, deliver func(order.Info)) {
	info, ok := l.st.assigned[robotID]
	if !ok {
		return
	}
	delete(l.st.assigned, robotID)
	l.st.pushIdleRobot(robotID)
	deliver(info)
	l.broadcastBackup()
	l.assignNewOrder()
}

// deliver forwards a result to its originating screen, or stashes it as an
// OrderWaiting if that screen's connection is gone.
func (l *Leader) deliver(info order.Info, send func(ScreenSink) error, outcome order.Outcome) {
	sink, ok := l.screens[info.ScreenID]
	if ok {
		if err := send(sink); err == nil {
			return
		}
	}
	l.st.waiting = append(l.st.waiting, order.Waiting{
		OrderID:  info.OrderID,
		Outcome:  outcome,
		ScreenID: info.ScreenID,
	})
}

// assignNewOrder is add_new_order's dispatch half: while there is an idle
// robot and a queued order, pop both and dispatch.
func (l *Leader) assignNewOrder() {
	for {
		info, ok := l.st.popQueuedOrder()
		if !ok {
			return
		}
		robotID, ok := l.st.popIdleRobot()
		if !ok {
			l.st.pushQueuedOrderFront(info)
			return
		}
		sink, ok := l.robots[robotID]
		if !ok {
			// Connection not yet registered; put both back and stop.
			l.st.pushQueuedOrderFront(info)
			l.st.pushIdleRobot(robotID)
			return
		}
		if err := sink.SendNewOrder(info); err != nil {
			l.log.Warn("dispatch failed, requeueing", logging.String("order_id", info.OrderID))
			l.st.pushQueuedOrderFront(info)
			l.st.pushIdleRobot(robotID)
			return
		}
		l.st.assigned[robotID] = info
	}
}

// onRobotDied removes the dead robot, requeues any in-flight order at the
// front of the queue, and reassigns.
func (l *Leader) onRobotDied(robotID int) {
	if info, ok := l.st.assigned[robotID]; ok {
		delete(l.st.assigned, robotID)
		l.st.pushQueuedOrderFront(info)
	}
	l.removeIdle(robotID)
	delete(l.robots, robotID)
	l.assignNewOrder()
	l.broadcastBackup()
}

func (l *Leader) removeIdle(robotID int) {
	out := l.st.available[:0]
	for _, id := range l.st.available {
		if id != robotID {
			out = append(out, id)
		}
	}
	l.st.available = out
}

// onChangeScreen redelivers stashed results for old to new and rewrites
// screen_id on every queued and in-flight order.
func (l *Leader) onChangeScreen(old, new int) {
	remaining := l.st.waiting[:0]
	for _, w := range l.st.waiting {
		if w.ScreenID != old {
			remaining = append(remaining, w)
			continue
		}
		w.ScreenID = new
		sink, ok := l.screens[new]
		delivered := false
		if ok {
			var err error
			if w.Outcome.Prepared {
				err = sink.SendOrderPrepared(w.OrderID)
			} else {
				err = sink.SendOrderAborted(w.OrderID, abortError(w.Outcome.Aborted))
			}
			delivered = err == nil
		}
		if !delivered {
			remaining = append(remaining, w)
		}
	}
	l.st.waiting = remaining

	for i, info := range l.st.queue {
		if info.ScreenID == old {
			l.st.queue[i].ScreenID = new
		}
	}
	for robotID, info := range l.st.assigned {
		if info.ScreenID == old {
			info.ScreenID = new
			l.st.assigned[robotID] = info
		}
	}
	l.broadcastBackup()
}

func (l *Leader) broadcastBackup() {
	if l.onBackup == nil {
		return
	}
	l.onBackup(l.st.snapshot())
}

// Snapshot returns the current backup view; safe to call from outside the
// Leader's goroutine, as it round-trips through the inbox.
func (l *Leader) Snapshot() Backup {
	reply := make(chan Backup, 1)
	l.inbox <- snapshotRequest{reply: reply}
	return <-reply
}

func (l *Leader) AddNewOrder(info order.Info)        { l.inbox <- addNewOrder{info: info} }
func (l *Leader) CompletedOrder(robotID int)          { l.inbox <- completedOrder{robotID: robotID} }
func (l *Leader) AbortedOrder(robotID int, f flavor.ID) {
	l.inbox <- abortedOrder{robotID: robotID, flavor: f}
}
func (l *Leader) RobotDied(robotID int)   { l.inbox <- robotDied{robotID: robotID} }
func (l *Leader) ScreenDied(screenID int) { l.inbox <- screenDied{screenID: screenID} }
func (l *Leader) ChangeScreen(old, new int) { l.inbox <- changeScreen{old: old, new: new} }
func (l *Leader) RegisterRobot(robotID int, sink RobotSink) {
	l.inbox <- registerRobot{robotID: robotID, sink: sink}
}
func (l *Leader) RegisterScreen(screenID int, sink ScreenSink) {
	l.inbox <- registerScreen{screenID: screenID, sink: sink}
}

func abortError(f flavor.ID) error {
	return &abortedFlavorError{flavor: f}
}

type abortedFlavorError struct{ flavor flavor.ID }

func (e *abortedFlavorError) Error() string {
	return "flavor exhausted: " + e.flavor.String()
}

// AbortedFlavor extracts the exhausted flavor from an error returned
// alongside ScreenSink.SendOrderAborted's cause, for callers (ringio) that
// need to put it back on the wire.
func AbortedFlavor(err error) (flavor.ID, bool) {
	afe, ok := err.(*abortedFlavorError)
	if !ok {
		return "", false
	}
	return afe.flavor, true
}
