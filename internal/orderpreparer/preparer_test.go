package orderpreparer

import (
	"sync"
	"testing"
	"time"

	"ringscoop/internal/flavor"
	"ringscoop/internal/token"
)

type stubReturnSink struct {
	mu       sync.Mutex
	returned []token.Flavor
	done     chan struct{}
}

func newStubReturnSink() *stubReturnSink {
	return &stubReturnSink{done: make(chan struct{}, 1)}
}

func (s *stubReturnSink) TokenReturned(tok token.Flavor) {
	s.mu.Lock()
	s.returned = append(s.returned, tok)
	s.mu.Unlock()
	s.done <- struct{}{}
}

func TestScoopFlavorReturnsReducedToken(t *testing.T) {
	sink := newStubReturnSink()
	p := New(sink, 1)
	p.ScoopFlavor(token.Flavor{ID: flavor.Strawberry, Amount: 1000}, 100)

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scoop to return")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.returned) != 1 {
		t.Fatalf("expected one returned token, got %d", len(sink.returned))
	}
	if sink.returned[0].Amount != 900 {
		t.Fatalf("expected 900g remaining after scooping 100g from 1000g, got %d", sink.returned[0].Amount)
	}
}

func TestSetSinkRewiresAfterConstruction(t *testing.T) {
	p := New(nil, 1)
	sink := newStubReturnSink()
	p.SetSink(sink)
	p.ScoopFlavor(token.Flavor{ID: flavor.Chocolate, Amount: 500}, 50)

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scoop to return after SetSink")
	}
}
