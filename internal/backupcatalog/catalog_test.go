package backupcatalog

import (
	"path/filepath"
	"testing"
	"time"

	"ringscoop/internal/backupstore"
	"ringscoop/internal/leader"
)

func TestListCollectsStoresAndArchives(t *testing.T) {
	dir := t.TempDir()
	storeDir := filepath.Join(dir, "robot-2")

	store, err := backupstore.New(storeDir, 2, time.Hour, "", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	store.Record(leader.Backup{})
	if err := store.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, err := store.Archive(); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected single entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Header.RobotID != 2 {
		t.Fatalf("unexpected robot id: %d", entry.Header.RobotID)
	}
	if entry.ArchiveCount != 1 {
		t.Fatalf("expected one archive segment, got %d", entry.ArchiveCount)
	}

	payload, err := MarshalEntries(entries)
	if err != nil {
		t.Fatalf("MarshalEntries: %v", err)
	}
	if len(payload) == 0 {
		t.Fatalf("expected JSON payload to be non-empty")
	}

	count, err := Inspect(entry.ArchivePaths[0], "")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one archived backup, got %d", count)
	}
}
