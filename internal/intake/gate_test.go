package intake

import (
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func TestEvaluateAcceptsZeroSequence(t *testing.T) {
	g := NewGate(Config{}, nil)
	d := g.Evaluate(Submission{ScreenID: 1, SequenceID: 0})
	if !d.Accepted {
		t.Fatal("expected sequence 0 to always pass")
	}
}

func TestEvaluateRejectsNonIncreasingSequence(t *testing.T) {
	g := NewGate(Config{}, nil)
	if d := g.Evaluate(Submission{ScreenID: 1, SequenceID: 5}); !d.Accepted {
		t.Fatalf("expected first submission to pass, got %+v", d)
	}
	d := g.Evaluate(Submission{ScreenID: 1, SequenceID: 5})
	if d.Accepted || d.Reason != DropReasonSequence {
		t.Fatalf("expected a repeated sequence to be rejected, got %+v", d)
	}
}

func TestEvaluateRejectsStaleSubmission(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	g := NewGate(Config{MaxAge: time.Second}, nil, WithClock(clock))
	d := g.Evaluate(Submission{ScreenID: 1, SequenceID: 1, SentAt: time.Unix(990, 0)})
	if d.Accepted || d.Reason != DropReasonStale {
		t.Fatalf("expected stale submission to be rejected, got %+v", d)
	}
}

func TestForgetClearsSequenceState(t *testing.T) {
	g := NewGate(Config{}, nil)
	g.Evaluate(Submission{ScreenID: 1, SequenceID: 5})
	g.Forget(1)
	d := g.Evaluate(Submission{ScreenID: 1, SequenceID: 5})
	if !d.Accepted {
		t.Fatal("expected sequencing state to reset after Forget")
	}
}
