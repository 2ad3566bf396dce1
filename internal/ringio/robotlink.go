package ringio

import (
	"ringscoop/internal/leader"
	"ringscoop/internal/order"
	"ringscoop/internal/wire"
)

// RobotLink is the Leader-side send-handle for one follower robot's
// connection, implementing leader.RobotSink over a framed TCP socket.
type RobotLink struct {
	robotID int
	c       *conn
}

// NewRobotLink wraps an already-established connection to robotID as a
// leader.RobotSink.
func NewRobotLink(robotID int, c *conn) *RobotLink {
	return &RobotLink{robotID: robotID, c: c}
}

var _ leader.RobotSink = (*RobotLink)(nil)

// SendNewOrder dispatches a freshly assigned order to the robot.
func (r *RobotLink) SendNewOrder(info order.Info) error {
	return r.c.send(wire.Envelope{Type: wire.KindNewOrder, RobotID: r.robotID, Order: &info})
}

// SendBackup broadcasts the Leader's latest replicated snapshot.
func (r *RobotLink) SendBackup(b leader.Backup) error {
	return r.c.send(wire.Envelope{Type: wire.KindLeaderBackup, Backup: toBackupPayload(b)})
}

// Close tears down the underlying connection.
func (r *RobotLink) Close() error { return r.c.close() }

func toBackupPayload(b leader.Backup) *wire.BackupPayload {
	return &wire.BackupPayload{
		AvailableRobots: b.AvailableRobots,
		OrdersOnQueue:   b.OrdersOnQueue,
		RobotsOrders:    b.RobotsOrders,
		Screens:         b.Screens,
		OrdersToBeSent:  b.OrdersToBeSent,
		Tokens:          b.Tokens,
	}
}

func fromBackupPayload(p *wire.BackupPayload) leader.Backup {
	if p == nil {
		return leader.Backup{}
	}
	return leader.Backup{
		AvailableRobots: p.AvailableRobots,
		OrdersOnQueue:   p.OrdersOnQueue,
		RobotsOrders:    p.RobotsOrders,
		Screens:         p.Screens,
		OrdersToBeSent:  p.OrdersToBeSent,
		Tokens:          p.Tokens,
	}
}
