// Package grpc carries small, pb-free plumbing types shared by the admin
// service: a compressor abstraction and a generic event fan-out contract,
// kept separate from the hand-rolled ServiceDesc in internal/ringctl so
// they stay reusable outside of gRPC specifically.
package grpc

import "context"

// DiffEvent transports one state-change payload alongside its sequence
// number, as observed by a subscriber of DiffSource.
type DiffEvent struct {
	Tick    uint64
	Payload []byte
}

// DiffSource exposes subscription semantics for a fan-out of status
// change events.
type DiffSource interface {
	SubscribeStateDiffs(ctx context.Context) (<-chan DiffEvent, func(), error)
}
