package ringio

import (
	"ringscoop/internal/leader"
	"ringscoop/internal/wire"
)

// ScreenLink is the Leader-side send-handle for one attached screen's
// connection, implementing leader.ScreenSink over a framed TCP socket.
type ScreenLink struct {
	screenID int
	c        *conn
}

// NewScreenLink wraps an already-established connection to screenID as a
// leader.ScreenSink.
func NewScreenLink(screenID int, c *conn) *ScreenLink {
	return &ScreenLink{screenID: screenID, c: c}
}

var _ leader.ScreenSink = (*ScreenLink)(nil)

// SendOrderPrepared notifies the screen that an order finished scooping.
func (s *ScreenLink) SendOrderPrepared(orderID string) error {
	return s.c.send(wire.Envelope{Type: wire.KindOrderPrepared, ScreenID: s.screenID, OrderID: orderID})
}

// SendOrderAborted notifies the screen that an order could not be
// completed, naming the exhausted flavor via cause.
func (s *ScreenLink) SendOrderAborted(orderID string, cause error) error {
	env := wire.Envelope{Type: wire.KindOrderAborted, ScreenID: s.screenID, OrderID: orderID}
	if f, ok := leader.AbortedFlavor(cause); ok {
		env.AbortedFlavor = f
	}
	return s.c.send(env)
}

// Close tears down the underlying connection.
func (s *ScreenLink) Close() error { return s.c.close() }
