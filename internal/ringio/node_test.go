package ringio

import (
	"testing"

	"ringscoop/internal/logging"
	"ringscoop/internal/orderpreparer"
)

func newTestNode(t *testing.T, selfID, maxRobots int) *Node {
	t.Helper()
	preparer := orderpreparer.New(nil, 1)
	n := NewNode(Config{
		SelfID:    selfID,
		MaxRobots: maxRobots,
		Log:       logging.NewTestLogger(),
		Preparer:  preparer,
	}, 1)
	t.Cleanup(n.Stop)
	return n
}

func TestReadyFalseUntilLeaderKnown(t *testing.T) {
	n := newTestNode(t, 0, 3)
	if n.Ready() {
		t.Fatal("expected not ready before any leader is known")
	}
	n.onNewLeader(0)
	if !n.Ready() {
		t.Fatal("expected ready once a leader id is known")
	}
}

func TestApplyNewLeaderPromotesSelf(t *testing.T) {
	n := newTestNode(t, 2, 3)
	n.onNewLeader(2)
	if !n.IsLeader() {
		t.Fatal("expected self to be promoted when elected")
	}
	backup, ok := n.LeaderSnapshot()
	if !ok {
		t.Fatal("expected a snapshot available once promoted")
	}
	if len(backup.AvailableRobots) != 0 {
		t.Fatalf("expected fresh leader snapshot with no robots assigned, got %+v", backup)
	}
}

func TestApplyNewLeaderDemotesPreviousLeader(t *testing.T) {
	n := newTestNode(t, 1, 3)
	n.onNewLeader(1)
	if !n.IsLeader() {
		t.Fatal("expected promotion")
	}
	n.onNewLeader(0)
	if n.IsLeader() {
		t.Fatal("expected demotion once another robot is announced leader")
	}
}
