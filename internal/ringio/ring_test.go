package ringio

import (
	"net"
	"testing"
	"time"

	"ringscoop/internal/flavor"
	"ringscoop/internal/logging"
	"ringscoop/internal/ringaddr"
	"ringscoop/internal/token"
	"ringscoop/internal/wire"
)

// TestSafeSendNextRecoversPastDeadNeighbor starts a live listener two hops
// around the ring and confirms ForwardToken reaches it once the immediate
// neighbor's address has nothing listening.
func TestSafeSendNextRecoversPastDeadNeighbor(t *testing.T) {
	const maxRobots = 3
	const selfID = 0
	const liveCandidate = 2 // (selfID + 2) % maxRobots, since offset 1's address has no listener

	addr := ringaddr.Robot(liveCandidate)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		t.Skipf("cannot bind fixed ring address %s in this environment: %v", addr, err)
	}
	defer ln.Close()

	received := make(chan wire.Envelope, 1)
	go func() {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		defer nc.Close()
		role, _, err := wire.ReadRole(nc)
		if err != nil || role != wire.RolePrevRobot {
			return
		}
		env, err := wire.NewDecoder(nc).Decode()
		if err == nil {
			received <- env
		}
	}()

	r := NewRing(selfID, maxRobots, logging.NewTestLogger())
	r.ForwardToken(token.Flavor{ID: flavor.Vanilla, Amount: 750})

	select {
	case env := <-received:
		if env.Type != wire.KindToken || env.Token == nil || env.Token.Amount != 750 {
			t.Fatalf("unexpected envelope received: %+v", env)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for recovered ring send")
	}
}
