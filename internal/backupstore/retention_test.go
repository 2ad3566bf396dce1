package backupstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ringscoop/internal/leader"
	"ringscoop/internal/logging"
)

func TestRetainerPrunesBeyondMaxSegments(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, 1, time.Hour, "", logging.NewTestLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer store.Close()

	var last string
	for i := 0; i < 3; i++ {
		store.Record(leader.Backup{AvailableRobots: []int{i}})
		if err := store.Flush(); err != nil {
			t.Fatalf("Flush: %v", err)
		}
		last, err = store.Archive()
		if err != nil {
			t.Fatalf("Archive: %v", err)
		}
		// force distinct mod times so newest-first sorting is meaningful
		future := time.Now().Add(time.Duration(i) * time.Second)
		os.Chtimes(last, future, future)
	}

	retainer := NewRetainer(dir, RetentionPolicy{MaxSegments: 1}, logging.NewTestLogger())
	retainer.RunOnce()

	entries, err := os.ReadDir(filepath.Join(dir, "archive"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one retained segment, got %d", len(entries))
	}
}
