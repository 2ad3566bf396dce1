package ringctl

import (
	"context"
	"sync"

	ringgrpc "ringscoop/internal/grpc"
)

// statusFeed fans out published status snapshots to every active
// WatchStatus subscriber, implementing the same subscribe/cancel contract
// as ringgrpc.DiffSource so a slow or gone subscriber never blocks a
// publish.
type statusFeed struct {
	mu   sync.Mutex
	tick uint64
	subs map[chan ringgrpc.DiffEvent]struct{}
}

func newStatusFeed() *statusFeed {
	return &statusFeed{subs: make(map[chan ringgrpc.DiffEvent]struct{})}
}

var _ ringgrpc.DiffSource = (*statusFeed)(nil)

// SubscribeStateDiffs registers a new subscriber and returns its event
// channel along with a cancel func that unregisters it. The channel is
// closed once cancel runs, so a range loop over it terminates cleanly.
func (f *statusFeed) SubscribeStateDiffs(ctx context.Context) (<-chan ringgrpc.DiffEvent, func(), error) {
	ch := make(chan ringgrpc.DiffEvent, 4)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel, nil
}

// publish fans payload out to every subscriber under a new tick number.
// A subscriber with a full buffer misses this tick rather than stall the
// publisher.
func (f *statusFeed) publish(payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tick++
	ev := ringgrpc.DiffEvent{Tick: f.tick, Payload: payload}
	for ch := range f.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
