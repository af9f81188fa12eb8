package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"

	"adscribe/internal/logging"
)

type scannedEntry struct {
	dir  string
	meta entryMeta
	size int64
}

type pruneResult struct {
	count int
	bytes int64
}

// prune removes oldest entries until both size and free-space thresholds are
// satisfied. keepDir, when set, is never removed. An entry that fails to
// delete still counts toward the size total.
func (m *Manager) prune(ctx context.Context, keepDir string) (pruneResult, error) {
	var result pruneResult
	entries, total, err := m.scan(ctx)
	if err != nil {
		return result, err
	}

	for len(entries) > 0 {
		freeOK, err := m.freeSpaceOK()
		if err != nil {
			return result, err
		}
		if total <= m.maxBytes && freeOK {
			break
		}
		oldest := entries[0]
		entries = entries[1:]
		if keepDir != "" && filepath.Clean(oldest.dir) == filepath.Clean(keepDir) {
			continue
		}
		if !m.removeEntry(oldest, "evicted") {
			continue
		}
		m.logger.InfoContext(ctx, "evicted cache entry",
			logging.String("key", oldest.meta.Key),
			logging.String("stage", oldest.meta.Stage),
			logging.Int64("entry_size_bytes", oldest.size),
		)
		m.metrics.evicted()
		total -= oldest.size
		result.count++
		result.bytes += oldest.size
	}
	m.metrics.setSize(total)
	return result, nil
}

// removeEntry deletes one entry directory and reports whether it is gone.
// Failures are logged so one stuck entry does not end the sweep.
func (m *Manager) removeEntry(entry scannedEntry, reason string) bool {
	err := m.remove(entry.dir)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return true
	}
	logging.WarnWithContext(m.logger, "failed to remove cache entry; skipping", "cache_entry_skipped",
		logging.String("cache_dir", entry.dir),
		logging.String("key", entry.meta.Key),
		logging.String("reason", reason),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check permissions on the cache directory"),
		logging.String(logging.FieldImpact, "entry stays on disk until the next clean"),
	)
	return false
}

// scan lists readable entries oldest first. Entries that vanish or cannot be
// read mid-scan are skipped.
func (m *Manager) scan(ctx context.Context) ([]scannedEntry, int64, error) {
	var (
		entries []scannedEntry
		total   int64
	)
	prefixes, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("cache: list root: %w", err)
	}
	for _, prefix := range prefixes {
		if !prefix.IsDir() || strings.HasPrefix(prefix.Name(), ".") {
			continue
		}
		prefixDir := filepath.Join(m.root, prefix.Name())
		children, err := os.ReadDir(prefixDir)
		if err != nil {
			continue
		}
		for _, child := range children {
			if !child.IsDir() {
				continue
			}
			dir := filepath.Join(prefixDir, child.Name())
			meta, err := readMeta(dir)
			if err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					m.logger.WarnContext(ctx, "skipping unreadable cache entry",
						logging.String("cache_dir", dir),
						logging.Error(err),
						logging.String(logging.FieldEventType, "cache_entry_skipped"),
						logging.String(logging.FieldErrorHint, "remove the directory manually if it persists"),
					)
				}
				continue
			}
			size, err := dirSize(dir)
			if err != nil {
				continue
			}
			total += size
			entries = append(entries, scannedEntry{dir: dir, meta: meta, size: size})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].meta.CreatedAt.Before(entries[j].meta.CreatedAt)
	})
	return entries, total, nil
}

func (m *Manager) freeSpaceOK() (bool, error) {
	total, free, err := m.statfs(m.root)
	if err != nil {
		return false, fmt.Errorf("cache: statfs: %w", err)
	}
	if total == 0 {
		return true, nil
	}
	return float64(free)/float64(total) >= freeSpaceFloor, nil
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		size += info.Size()
		return nil
	})
	return size, err
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}
