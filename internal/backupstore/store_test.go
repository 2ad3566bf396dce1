package backupstore

import (
	"path/filepath"
	"testing"
	"time"

	"ringscoop/internal/leader"
	"ringscoop/internal/logging"
)

func TestRecordFlushAndArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, 2, time.Hour, "topsecret", logging.NewTestLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer store.Close()

	want := leader.Backup{AvailableRobots: []int{1, 3}}
	store.Record(want)
	if err := store.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	archivePath, err := store.Archive()
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}

	backups, err := LoadArchive(archivePath, "topsecret")
	if err != nil {
		t.Fatalf("LoadArchive: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("expected one archived snapshot, got %d", len(backups))
	}
	if len(backups[0].AvailableRobots) != 2 {
		t.Fatalf("expected 2 available robots preserved, got %+v", backups[0].AvailableRobots)
	}
}

func TestLoadArchiveRejectsTamperedSignature(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, 1, time.Hour, "correct-secret", logging.NewTestLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	store.Record(leader.Backup{AvailableRobots: []int{0}})
	if err := store.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	archivePath, err := store.Archive()
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	store.Close()

	if _, err := LoadArchive(archivePath, "wrong-secret"); err == nil {
		t.Fatal("expected signature verification failure with wrong secret")
	}
}

func TestHeaderWrittenOnFirstOpen(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, 4, time.Hour, "", logging.NewTestLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer store.Close()

	header, err := ReadHeader(filepath.Join(dir, "header.json"))
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if header.RobotID != 4 {
		t.Fatalf("expected header robot id 4, got %d", header.RobotID)
	}
}
