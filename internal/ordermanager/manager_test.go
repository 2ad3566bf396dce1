package ordermanager

import (
	"testing"
	"time"

	"ringscoop/internal/flavor"
	"ringscoop/internal/logging"
	"ringscoop/internal/order"
	"ringscoop/internal/token"
)

type stubSink struct {
	forwarded []token.Flavor
	probes    []token.Backup
}

func (s *stubSink) ForwardToken(tok token.Flavor)     { s.forwarded = append(s.forwarded, tok) }
func (s *stubSink) ForwardTokenBackup(p token.Backup) { s.probes = append(s.probes, p) }

type stubResults struct {
	prepared int
	aborted  []flavor.ID
}

func (r *stubResults) OrderPrepared()        { r.prepared++ }
func (r *stubResults) OrderAborted(f flavor.ID) { r.aborted = append(r.aborted, f) }

type stubPreparer struct {
	scooped []token.Flavor
}

func (p *stubPreparer) ScoopFlavor(tok token.Flavor, grams uint32) {
	p.scooped = append(p.scooped, tok)
}

func newTestManager() (*Manager, *stubSink, *stubResults, *stubPreparer) {
	sink := &stubSink{}
	results := &stubResults{}
	preparer := &stubPreparer{}
	m := New(logging.NewTestLogger(), sink, results, preparer, 4, 10)
	return m, sink, results, preparer
}

func TestTransferTokenNotNeededForwards(t *testing.T) {
	m, sink, _, _ := newTestManager()
	m.flavorsNeeded = map[flavor.ID]uint32{}
	m.onTransferToken(token.Flavor{ID: flavor.Vanilla, Amount: 500})
	if len(sink.forwarded) != 1 {
		t.Fatalf("expected token forwarded, got %d", len(sink.forwarded))
	}
}

func TestTransferTokenServesOrderStartsScoop(t *testing.T) {
	m, _, _, preparer := newTestManager()
	m.flavorsNeeded = map[flavor.ID]uint32{flavor.Vanilla: 100}
	m.onTransferToken(token.Flavor{ID: flavor.Vanilla, Amount: 500})
	if !m.scooping {
		t.Fatal("expected manager to enter scooping state")
	}
	if len(preparer.scooped) != 1 {
		t.Fatalf("expected preparer invoked once, got %d", len(preparer.scooped))
	}
}

func TestTransferTokenExactExhaustionAborts(t *testing.T) {
	m, sink, results, _ := newTestManager()
	m.flavorsNeeded = map[flavor.ID]uint32{flavor.Mint: 500}
	m.onTransferToken(token.Flavor{ID: flavor.Mint, Amount: 500})
	if len(results.aborted) != 1 || results.aborted[0] != flavor.Mint {
		t.Fatalf("expected abort on exact exhaustion, got %+v", results.aborted)
	}
	if len(sink.forwarded) != 1 {
		t.Fatalf("expected token still forwarded after abort, got %d", len(sink.forwarded))
	}
}

func TestTokenReturnedCompletesWhenNothingLeft(t *testing.T) {
	m, _, results, _ := newTestManager()
	m.flavorsNeeded = map[flavor.ID]uint32{}
	m.scooping = true
	m.onTokenReturned(token.Flavor{ID: flavor.Lemon, Amount: 10})
	if results.prepared != 1 {
		t.Fatalf("expected order prepared once, got %d", results.prepared)
	}
}

func TestTokenBackupProbeAppliesLastSeenMerge(t *testing.T) {
	m, sink, _, _ := newTestManager()
	m.seen.record(flavor.Pistachio, 200)
	m.onTokenBackupProbe(token.Backup{Flavor: flavor.Pistachio, Amount: 400, OriginRobot: 2})
	if len(sink.probes) != 1 {
		t.Fatalf("expected one probe forwarded, got %d", len(sink.probes))
	}
	if sink.probes[0].Amount != 200 {
		t.Fatalf("expected merge to tighten to 200, got %d", sink.probes[0].Amount)
	}
}

func TestGetNewOrderPopulatesFlavorsNeeded(t *testing.T) {
	m, _, _, _ := newTestManager()
	info := order.Info{
		Order: order.Order{Flavors: []order.FlavorGrams{{Flavor: flavor.Chocolate, Grams: 250}}},
	}
	m.handle(getNewOrder{info: info})
	if grams, ok := m.flavorsNeeded[flavor.Chocolate]; !ok || grams != 250 {
		t.Fatalf("expected chocolate need of 250g, got %v ok=%v", grams, ok)
	}
}

func TestLostTokenTimeoutFormula(t *testing.T) {
	m := New(logging.NewTestLogger(), &stubSink{}, &stubResults{}, &stubPreparer{}, 4, 10)
	want := 15 * time.Second
	if m.timeout != want {
		t.Fatalf("expected timeout %v for N=4 factor=10, got %v", want, m.timeout)
	}
}
