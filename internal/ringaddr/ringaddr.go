// Package ringaddr derives the deterministic loopback addresses each
// robot process listens on, following the same listener-address-builder
// discipline as this codebase's own address-normalization helper.
package ringaddr

import (
	"fmt"
	"net"
	"strings"

	"github.com/pkg/errors"
)

const (
	ringPortBase   = 8070
	leaderPortBase = 3690
	screenPortBase = 7000
	opsPortBase    = 9000
	ringCtlOffset  = 1000
)

// Robot returns the address a robot with the given id listens on for ring
// (previous/next) connections.
func Robot(id int) string {
	return fmt.Sprintf("127.0.0.1:%d", ringPortBase+id)
}

// Leader returns the address a robot with the given id listens on while
// serving as leader.
func Leader(id int) string {
	return fmt.Sprintf("127.0.0.1:%d", leaderPortBase+id)
}

// Screen returns the address a screen with the given id listens on.
func Screen(id int) string {
	return fmt.Sprintf("127.0.0.1:%d", screenPortBase+id)
}

// Ops returns the operator HTTP (health/ready/metrics) address for a
// robot with the given id.
func Ops(id int) string {
	return fmt.Sprintf("127.0.0.1:%d", opsPortBase+id)
}

// RingCtl returns the gRPC admin address for a robot with the given id,
// offset from its ring port so the two never collide.
func RingCtl(id int) string {
	return fmt.Sprintf("127.0.0.1:%d", ringPortBase+id+ringCtlOffset)
}

// ParseRobotID validates that id falls within the ring's static id space,
// 0..maxRobots-1.
func ParseRobotID(id, maxRobots int) error {
	if id < 0 || id >= maxRobots {
		return errors.Errorf("robot id %d out of range 0..%d", id, maxRobots)
	}
	return nil
}

// ListenerURL returns a human-friendly URL for a listener address, for
// startup log lines. tlsEnabled selects the http/https scheme.
func ListenerURL(address string, tlsEnabled bool) string {
	scheme := "http"
	if tlsEnabled {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, NormaliseHostPort(address))
}

// NormaliseHostPort rewrites wildcard or empty hosts to "localhost" so a
// logged address is actually reachable from the machine that printed it.
func NormaliseHostPort(address string) string {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return "localhost"
	}
	host, port, err := net.SplitHostPort(trimmed)
	if err != nil {
		if strings.HasPrefix(trimmed, ":") {
			return "localhost" + trimmed
		}
		return trimmed
	}
	host = strings.TrimSpace(host)
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
