package backupstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"ringscoop/internal/logging"
)

// RetentionPolicy bounds how many archive segments, and how old, a backup
// store directory keeps on disk.
type RetentionPolicy struct {
	MaxSegments int
	MaxAge      time.Duration
}

// StorageStats summarises the archive directory's disk footprint.
type StorageStats struct {
	Segments  int
	Bytes     int64
	LastSweep time.Time
}

// Retainer periodically prunes archive segments under a store's directory
// according to a retention policy, the same sweep discipline this
// codebase's replay-retention component uses for match artefacts.
type Retainer struct {
	mu     sync.RWMutex
	dir    string
	policy RetentionPolicy
	log    *logging.Logger
	now    func() time.Time
	stats  StorageStats
}

// NewRetainer constructs a retainer for the archive directory under dir.
func NewRetainer(dir string, policy RetentionPolicy, log *logging.Logger) *Retainer {
	if log == nil {
		log = logging.L()
	}
	return &Retainer{dir: filepath.Join(dir, "archive"), policy: policy, log: log, now: time.Now}
}

// Run executes retention sweeps until ctx is cancelled.
func (r *Retainer) Run(ctx context.Context, interval time.Duration) {
	if r == nil || ctx == nil {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	r.sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// RunOnce performs a single retention sweep, primarily used in tests.
func (r *Retainer) RunOnce() {
	if r == nil {
		return
	}
	r.sweep()
}

// Stats returns the statistics recorded by the last sweep.
func (r *Retainer) Stats() StorageStats {
	if r == nil {
		return StorageStats{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

type segment struct {
	path    string
	size    int64
	modTime time.Time
}

func (r *Retainer) sweep() {
	if r == nil || strings.TrimSpace(r.dir) == "" {
		return
	}
	entries, err := os.ReadDir(r.dir)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		r.log.Warn("archive retention scan failed", logging.Error(err), logging.String("directory", r.dir))
		return
	}

	segments := r.collect(entries)
	now := r.now()
	kept := 0
	stats := StorageStats{LastSweep: now}
	for _, seg := range segments {
		shouldRemove, reason := r.shouldRemove(seg, now, kept)
		if shouldRemove {
			if err := os.Remove(seg.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				r.log.Warn("archive retention removal failed", logging.Error(err), logging.String("segment", seg.path))
				kept++
				stats.Segments++
				stats.Bytes += seg.size
				continue
			}
			r.log.Info("archive retention removed segment", logging.String("segment", seg.path), logging.String("reason", reason))
			continue
		}
		kept++
		stats.Segments++
		stats.Bytes += seg.size
	}
	r.mu.Lock()
	r.stats = stats
	r.mu.Unlock()
}

func (r *Retainer) collect(entries []os.DirEntry) []segment {
	segments := make([]segment, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			r.log.Warn("archive retention stat failed", logging.Error(err), logging.String("name", entry.Name()))
			continue
		}
		segments = append(segments, segment{
			path:    filepath.Join(r.dir, entry.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].modTime.After(segments[j].modTime) })
	return segments
}

func (r *Retainer) shouldRemove(seg segment, now time.Time, kept int) (bool, string) {
	reasons := make([]string, 0, 2)
	if r.policy.MaxAge > 0 && now.Sub(seg.modTime) > r.policy.MaxAge {
		reasons = append(reasons, fmt.Sprintf("age>%s", r.policy.MaxAge))
	}
	if r.policy.MaxSegments > 0 && kept >= r.policy.MaxSegments {
		reasons = append(reasons, fmt.Sprintf(">=%d segments", r.policy.MaxSegments))
	}
	return len(reasons) > 0, strings.Join(reasons, ", ")
}
