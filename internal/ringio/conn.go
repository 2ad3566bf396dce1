// Package ringio is the Ring Connection Handler: it owns every TCP socket
// a robot process holds (ring neighbors, the current leader, and attached
// screens), frames traffic with internal/wire, and routes decoded
// envelopes into the in-process Leader, Order Manager, Order Preparer,
// and election tasks. Nothing outside this package touches net.Conn.
package ringio

import (
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"ringscoop/internal/logging"
	"ringscoop/internal/wire"
)

// dialTimeout bounds how long a single dial attempt may block before the
// backoff governor retries against the next candidate address.
const dialTimeout = 2 * time.Second

// conn pairs a net.Conn with the framed encoder/decoder wrapped around it,
// plus a write mutex since wire.Encoder is not safe for concurrent use.
type conn struct {
	mu  sync.Mutex
	nc  net.Conn
	enc *wire.Encoder
	dec *wire.Decoder
}

func wrapConn(nc net.Conn) *conn {
	return &conn{nc: nc, enc: wire.NewEncoder(nc), dec: wire.NewDecoder(nc)}
}

func (c *conn) send(env wire.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enc.Encode(env)
}

func (c *conn) close() error {
	return c.nc.Close()
}

// dialRole opens a TCP connection to addr, announces role (and, for
// RoleLeaderAnnounce, leaderID), and returns the framed wrapper.
func dialRole(addr string, role wire.Role, leaderID byte) (*conn, error) {
	nc, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "ringio: dial %s", addr)
	}
	if err := wire.WriteRole(nc, role, leaderID); err != nil {
		nc.Close()
		return nil, err
	}
	return wrapConn(nc), nil
}

// logConnError is a small helper so every best-effort connection close or
// send failure is reported consistently.
func logConnError(log *logging.Logger, msg string, addr string, err error) {
	if err == nil {
		return
	}
	log.Warn(msg, logging.String("address", addr), logging.Error(err))
}
