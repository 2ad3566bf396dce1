// Package backupstore persists the Leader's replicated LeaderBackup
// snapshots to disk: a signed, snappy-compressed live append log for
// crash recovery, and periodic zstd-compressed archive segments for
// longer-term history. The interval-flush/dirty-flag discipline and the
// live/archive split follow this codebase's own state-persistence and
// replay-writer components.
package backupstore

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"ringscoop/internal/leader"
	"ringscoop/internal/logging"
)

// HeaderSchemaVersion tracks the on-disk schema for store headers.
const HeaderSchemaVersion = 1

// Header describes one store directory so tooling (cmd/backupcatalog) can
// identify and validate it without parsing the live log.
type Header struct {
	SchemaVersion int    `json:"schema_version"`
	RobotID       int    `json:"robot_id"`
	CreatedAt     string `json:"created_at"`
}

// WriteHeader persists header to path as indented JSON.
func WriteHeader(path string, header Header) error {
	data, err := json.MarshalIndent(header, "", "  ")
	if err != nil {
		return errors.Wrap(err, "backupstore: marshal header")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "backupstore: create header dir")
	}
	return errors.Wrap(os.WriteFile(path, append(data, '\n'), 0o644), "backupstore: write header")
}

// ReadHeader loads a store header from disk.
func ReadHeader(path string) (Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, errors.Wrap(err, "backupstore: read header")
	}
	var header Header
	if err := json.Unmarshal(data, &header); err != nil {
		return Header{}, errors.Wrap(err, "backupstore: decode header")
	}
	return header, nil
}

type liveRecord struct {
	SavedAt      string `json:"saved_at"`
	PayloadB64   string `json:"payload_b64"`
	SignatureB64 string `json:"signature_b64"`
}

// Store owns one robot's on-disk backup history.
type Store struct {
	mu       sync.Mutex
	dir      string
	robotID  int
	interval time.Duration
	log      *logging.Logger
	secret   []byte
	now      func() time.Time

	latest leader.Backup
	dirty  bool

	liveFile   *os.File
	liveStream *snappy.Writer

	flushCh chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New opens (or creates) a backup store rooted at dir for the given
// robot, flushing dirty state at most once per interval. secret signs
// every live record; an empty secret disables signing (records are
// still written, just unauthenticated — used in tests).
func New(dir string, robotID int, interval time.Duration, secret string, log *logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.L()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "backupstore: create store dir")
	}
	headerPath := filepath.Join(dir, "header.json")
	if _, err := os.Stat(headerPath); os.IsNotExist(err) {
		if err := WriteHeader(headerPath, Header{
			SchemaVersion: HeaderSchemaVersion,
			RobotID:       robotID,
			CreatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
		}); err != nil {
			return nil, err
		}
	}

	livePath := filepath.Join(dir, "live.jsonl.sz")
	liveFile, err := os.OpenFile(livePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "backupstore: open live log")
	}

	s := &Store{
		dir:        dir,
		robotID:    robotID,
		interval:   interval,
		log:        log,
		secret:     []byte(secret),
		now:        time.Now,
		liveFile:   liveFile,
		liveStream: snappy.NewBufferedWriter(liveFile),
		flushCh:    make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	go s.loop()
	return s, nil
}

// Record stores b as the latest in-memory snapshot and marks the store
// dirty; the background loop (or an explicit Flush) persists it.
func (s *Store) Record(b leader.Backup) {
	s.mu.Lock()
	s.latest = b
	s.dirty = true
	s.mu.Unlock()
	select {
	case s.flushCh <- struct{}{}:
	default:
	}
}

// Latest returns the most recently recorded snapshot.
func (s *Store) Latest() leader.Backup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

func (s *Store) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)
	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-s.flushCh:
			s.flush()
		case <-s.stopCh:
			s.flush()
			return
		}
	}
}

func (s *Store) flush() {
	if err := s.Flush(); err != nil {
		s.log.Error("failed to persist backup snapshot", logging.Error(err))
	}
}

// Flush appends the current snapshot to the signed live log if dirty.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	payload, err := json.Marshal(s.latest)
	if err != nil {
		return errors.Wrap(err, "backupstore: marshal snapshot")
	}
	record := liveRecord{
		SavedAt:    s.now().UTC().Format(time.RFC3339Nano),
		PayloadB64: base64.StdEncoding.EncodeToString(payload),
	}
	if len(s.secret) > 0 {
		record.SignatureB64 = base64.StdEncoding.EncodeToString(sign(s.secret, payload))
	}
	line, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "backupstore: marshal record")
	}
	if _, err := s.liveStream.Write(append(line, '\n')); err != nil {
		return errors.Wrap(err, "backupstore: write live record")
	}
	if err := s.liveStream.Flush(); err != nil {
		return errors.Wrap(err, "backupstore: flush live stream")
	}
	s.dirty = false
	return nil
}

// Archive compacts the current live log into a zstd-compressed, named
// segment under dir/archive/ and truncates the live log, so the live
// log never grows unbounded across a long-running robot process.
func (s *Store) Archive() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	archiveDir := filepath.Join(s.dir, "archive")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", errors.Wrap(err, "backupstore: create archive dir")
	}
	name := fmt.Sprintf("robot-%d-%s.jsonl.zst", s.robotID, s.now().UTC().Format("20060102T150405.000000000Z"))
	archivePath := filepath.Join(archiveDir, name)

	if err := s.liveStream.Flush(); err != nil {
		return "", errors.Wrap(err, "backupstore: flush before archive")
	}

	livePath := filepath.Join(s.dir, "live.jsonl.sz")
	liveRead, err := os.Open(livePath)
	if err != nil {
		return "", errors.Wrap(err, "backupstore: open live log for archiving")
	}
	decompressed, err := io.ReadAll(snappy.NewReader(liveRead))
	liveRead.Close()
	if err != nil {
		return "", errors.Wrap(err, "backupstore: decode live log")
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return "", errors.Wrap(err, "backupstore: create archive segment")
	}
	defer out.Close()
	zw, err := zstd.NewWriter(out)
	if err != nil {
		return "", errors.Wrap(err, "backupstore: open zstd writer")
	}
	if _, err := zw.Write(decompressed); err != nil {
		zw.Close()
		return "", errors.Wrap(err, "backupstore: write archive segment")
	}
	if err := zw.Close(); err != nil {
		return "", errors.Wrap(err, "backupstore: close archive segment")
	}

	if err := s.liveFile.Close(); err != nil {
		return "", errors.Wrap(err, "backupstore: close live file for rotation")
	}
	liveFile, err := os.OpenFile(livePath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "backupstore: recreate live log")
	}
	s.liveFile = liveFile
	s.liveStream = snappy.NewBufferedWriter(liveFile)

	return archivePath, nil
}

// ListArchives returns the archive segment paths under dir/archive, in
// directory order (oldest first, since segment names are timestamped).
func (s *Store) ListArchives() ([]string, error) {
	archiveDir := filepath.Join(s.dir, "archive")
	entries, err := os.ReadDir(archiveDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "backupstore: list archives")
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(archiveDir, entry.Name()))
	}
	return paths, nil
}

// LoadArchive decodes every signed record out of a zstd archive segment,
// verifying signatures when secret is non-empty.
func LoadArchive(path, secret string) ([]leader.Backup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "backupstore: open archive")
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "backupstore: open zstd reader")
	}
	defer zr.Close()

	var out []leader.Backup
	scanner := bufio.NewScanner(zr)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		var record liveRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return nil, errors.Wrap(err, "backupstore: decode archived record")
		}
		payload, err := base64.StdEncoding.DecodeString(record.PayloadB64)
		if err != nil {
			return nil, errors.Wrap(err, "backupstore: decode archived payload")
		}
		if secret != "" && record.SignatureB64 != "" {
			sig, err := base64.StdEncoding.DecodeString(record.SignatureB64)
			if err != nil {
				return nil, errors.Wrap(err, "backupstore: decode archived signature")
			}
			if !verify([]byte(secret), payload, sig) {
				return nil, errors.New("backupstore: archived record failed signature check")
			}
		}
		var b leader.Backup
		if err := json.Unmarshal(payload, &b); err != nil {
			return nil, errors.Wrap(err, "backupstore: decode archived snapshot")
		}
		out = append(out, b)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "backupstore: scan archive")
	}
	return out, nil
}

// Close stops the background flush loop and persists any pending state.
func (s *Store) Close() error {
	close(s.stopCh)
	<-s.doneCh
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.liveStream.Close(); err != nil {
		return errors.Wrap(err, "backupstore: close live stream")
	}
	return errors.Wrap(s.liveFile.Close(), "backupstore: close live file")
}
