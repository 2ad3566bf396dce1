package ringio

import (
	"sync"

	"ringscoop/internal/flavor"
	"ringscoop/internal/logging"
	"ringscoop/internal/ordermanager"
	"ringscoop/internal/ringaddr"
	"ringscoop/internal/wire"
)

// leaderResultRelay implements ordermanager.ResultSink by forwarding order
// outcomes to whichever robot currently holds leadership. Its target
// connection is swapped out across elections, so the Order Manager can be
// constructed once at startup even though the leader it reports to
// changes over the robot's lifetime.
type leaderResultRelay struct {
	mu sync.Mutex
	c  *conn
}

var _ ordermanager.ResultSink = (*leaderResultRelay)(nil)

func newLeaderResultRelay() *leaderResultRelay {
	return &leaderResultRelay{}
}

func (r *leaderResultRelay) setConn(c *conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.c = c
}

func (r *leaderResultRelay) OrderPrepared() {
	r.send(wire.Envelope{Type: wire.KindOrderComplete})
}

func (r *leaderResultRelay) OrderAborted(f flavor.ID) {
	r.send(wire.Envelope{Type: wire.KindOrderNotFinished, AbortedFlavor: f})
}

func (r *leaderResultRelay) send(env wire.Envelope) {
	r.mu.Lock()
	c := r.c
	r.mu.Unlock()
	if c == nil {
		return
	}
	c.send(env)
}

// JoinLeader dials the robot currently believed to be leader, registers
// this robot as a follower, and starts the read loop that delivers
// incoming new orders and backup broadcasts. It replaces any previous
// leader connection, which is the normal path after a new election.
func (n *Node) JoinLeader(leaderID int) error {
	if leaderID == n.selfID {
		return nil
	}
	addr := ringaddr.Leader(leaderID)
	c, err := dialRole(addr, wire.RoleRobotRegister, 0)
	if err != nil {
		return err
	}
	if err := c.send(wire.Envelope{Type: wire.KindRequestConnection, RobotID: n.selfID}); err != nil {
		c.close()
		return err
	}
	n.resultRelay.setConn(c)

	go func() {
		defer c.close()
		for {
			env, err := c.dec.Decode()
			if err != nil {
				n.resultRelay.setConn(nil)
				return
			}
			switch env.Type {
			case wire.KindNewOrder:
				if env.Order != nil {
					n.om.GetNewOrder(*env.Order)
				}
			case wire.KindLeaderBackup:
				if n.store != nil && env.Backup != nil {
					n.store.Record(fromBackupPayload(env.Backup))
				}
			default:
				n.log.Warn("unexpected leader-link envelope kind", logging.String("kind", string(env.Type)))
			}
		}
	}()
	return nil
}
