package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/vmihailenco/msgpack/v5"

	"adscribe/internal/config"
	"adscribe/internal/logging"
)

const (
	// freeSpaceFloor is the minimum free-space ratio kept on the cache volume.
	freeSpaceFloor = 0.10

	metaFileName    = "meta.json"
	payloadFileName = "payload.msgpack"
	cleanLockName   = ".clean.lock"
	metaVersion     = 1
)

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

// Manager is the content-addressed result cache rooted at one directory.
type Manager struct {
	root      string
	maxAge    time.Duration
	maxBytes  int64
	chunkSize int
	checksum  bool
	logger    *slog.Logger
	metrics   *Metrics
	statfs    statfsFunc
	remove    func(path string) error
	now       func() time.Time
}

// Stats describes current cache usage.
type Stats struct {
	Entries      int       `json:"entries"`
	Expired      int       `json:"expired"`
	TotalBytes   int64     `json:"total_bytes"`
	MaxBytes     int64     `json:"max_bytes"`
	FreeBytes    uint64    `json:"free_bytes"`
	TotalFSBytes uint64    `json:"total_fs_bytes"`
	FreeRatio    float64   `json:"free_ratio"`
	Oldest       time.Time `json:"oldest,omitzero"`
	Newest       time.Time `json:"newest,omitzero"`
}

// CleanReport summarizes a Clean run.
type CleanReport struct {
	Skipped    bool  `json:"skipped"`
	Expired    int   `json:"expired"`
	Evicted    int   `json:"evicted"`
	FreedBytes int64 `json:"freed_bytes"`
	Remaining  int   `json:"remaining"`
}

type entryMeta struct {
	Version   int       `json:"version"`
	Key       string    `json:"key"`
	Stage     string    `json:"stage,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Spooled   bool      `json:"spooled,omitempty"`
	Chunks    int       `json:"chunks,omitempty"`
	SizeBytes int64     `json:"size_bytes"`
}

// NewManager builds a cache manager when enabled; returns nil when caching is disabled.
// All methods are safe on a nil Manager and behave as a permanently empty cache.
func NewManager(cfg *config.Config, logger *slog.Logger, metrics *Metrics) *Manager {
	if cfg == nil || !cfg.Cache.Enabled {
		return nil
	}
	root := strings.TrimSpace(cfg.Cache.Dir)
	if root == "" {
		return nil
	}
	return &Manager{
		root:      root,
		maxAge:    cfg.CacheMaxAge(),
		maxBytes:  int64(cfg.Cache.MaxSizeMB) * 1024 * 1024,
		chunkSize: cfg.Cache.ChunkSizeMB * 1024 * 1024,
		checksum:  cfg.Cache.Checksum,
		logger:    logging.NewComponentLogger(logger, "cache"),
		metrics:   metrics,
		statfs:    realStatfs,
		remove:    os.RemoveAll,
		now:       time.Now,
	}
}

// Root returns the cache directory.
func (m *Manager) Root() string {
	if m == nil {
		return ""
	}
	return m.root
}

// Get decodes the entry for key into out. It reports a miss for absent,
// expired, or unreadable entries.
func (m *Manager) Get(ctx context.Context, key string, out any) (bool, error) {
	if m == nil {
		return false, nil
	}
	dir := m.entryDir(key)
	meta, err := readMeta(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			m.logger.WarnContext(ctx, "cache entry metadata unreadable; treating as miss",
				logging.String("key", key),
				logging.Error(err),
				logging.String(logging.FieldEventType, "cache_entry_corrupt"),
				logging.String(logging.FieldErrorHint, "run 'adscribe cache clean' to remove broken entries"),
			)
		}
		m.metrics.miss()
		return false, nil
	}
	if m.expired(meta) {
		m.logger.DebugContext(ctx, "cache entry expired", logging.String("key", key), logging.String("stage", meta.Stage))
		_ = m.remove(dir)
		m.metrics.miss()
		return false, nil
	}
	payload, err := os.ReadFile(filepath.Join(dir, payloadFileName))
	if err != nil {
		m.metrics.miss()
		return false, nil
	}
	if err := msgpack.Unmarshal(payload, out); err != nil {
		m.metrics.miss()
		return false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	m.metrics.hit()
	return true, nil
}

// Put stores payload under key and prunes the cache to its budget.
func (m *Manager) Put(ctx context.Context, key, stage string, payload any) error {
	if m == nil {
		return nil
	}
	data, err := msgpack.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	dir := m.entryDir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache: ensure entry dir: %w", err)
	}
	if err := writeAtomic(dir, payloadFileName, data); err != nil {
		return err
	}
	meta := entryMeta{
		Version:   metaVersion,
		Key:       key,
		Stage:     stage,
		CreatedAt: m.now().UTC(),
		SizeBytes: int64(len(data)),
	}
	if err := writeMeta(dir, meta); err != nil {
		return err
	}
	m.logger.DebugContext(ctx, "stored cache entry",
		logging.String("key", key),
		logging.String("stage", stage),
		logging.Int64("size_bytes", meta.SizeBytes),
	)
	if _, err := m.prune(ctx, dir); err != nil {
		return fmt.Errorf("cache: prune after put: %w", err)
	}
	return nil
}

// Delete removes the entry for key if present.
func (m *Manager) Delete(key string) error {
	if m == nil {
		return nil
	}
	if err := m.remove(m.entryDir(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("cache: delete %s: %w", key, err)
	}
	return nil
}

// Clean removes expired entries and enforces the size and free-space limits.
// Entries that cannot be removed are logged and left for the next run.
// Concurrent cleaners are skipped via a non-blocking file lock.
func (m *Manager) Clean(ctx context.Context) (CleanReport, error) {
	var report CleanReport
	if m == nil {
		return report, nil
	}
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return report, fmt.Errorf("cache: ensure root: %w", err)
	}
	lock := flock.New(filepath.Join(m.root, cleanLockName))
	locked, err := lock.TryLock()
	if err != nil {
		return report, fmt.Errorf("cache: acquire clean lock: %w", err)
	}
	if !locked {
		m.logger.InfoContext(ctx, "cache clean already running; skipping")
		report.Skipped = true
		return report, nil
	}
	defer func() { _ = lock.Unlock() }()

	entries, _, err := m.scan(ctx)
	if err != nil {
		return report, err
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !m.expired(entry.meta) {
			continue
		}
		if !m.removeEntry(entry, "expired") {
			continue
		}
		report.Expired++
		report.FreedBytes += entry.size
	}

	pruned, err := m.prune(ctx, "")
	report.Evicted = pruned.count
	report.FreedBytes += pruned.bytes
	if err != nil {
		return report, err
	}
	remaining, total, err := m.scan(ctx)
	if err != nil {
		return report, err
	}
	report.Remaining = len(remaining)
	m.metrics.setSize(total)
	m.logger.InfoContext(ctx, "cache cleaned",
		logging.Int("expired", report.Expired),
		logging.Int("evicted", report.Evicted),
		logging.Int64("freed_bytes", report.FreedBytes),
		logging.Int("remaining", report.Remaining),
	)
	return report, nil
}

// Stats returns current cache usage and filesystem free-space info.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if m == nil {
		return s, nil
	}
	entries, total, err := m.scan(ctx)
	if err != nil {
		return s, err
	}
	s.Entries = len(entries)
	s.TotalBytes = total
	s.MaxBytes = m.maxBytes
	for i, entry := range entries {
		if m.expired(entry.meta) {
			s.Expired++
		}
		if i == 0 {
			s.Oldest = entry.meta.CreatedAt
		}
		s.Newest = entry.meta.CreatedAt
	}
	if err := os.MkdirAll(m.root, 0o755); err == nil {
		totalFS, freeFS, err := m.statfs(m.root)
		if err != nil {
			return s, fmt.Errorf("cache: statfs: %w", err)
		}
		s.TotalFSBytes = totalFS
		s.FreeBytes = freeFS
		s.FreeRatio = 1
		if totalFS > 0 {
			s.FreeRatio = float64(freeFS) / float64(totalFS)
		}
	}
	m.metrics.setSize(total)
	return s, nil
}

func (m *Manager) expired(meta entryMeta) bool {
	if m.maxAge <= 0 {
		return false
	}
	return m.now().Sub(meta.CreatedAt) > m.maxAge
}

func (m *Manager) entryDir(key string) string {
	key = sanitizeKey(key)
	prefix := key
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return filepath.Join(m.root, prefix, key)
}

func sanitizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "__"
	}
	return b.String()
}

func readMeta(dir string) (entryMeta, error) {
	var meta entryMeta
	data, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("decode metadata: %w", err)
	}
	if meta.Version != metaVersion {
		return meta, fmt.Errorf("unsupported metadata version %d", meta.Version)
	}
	return meta, nil
}

func writeMeta(dir string, meta entryMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("cache: encode metadata: %w", err)
	}
	return writeAtomic(dir, metaFileName, data)
}

// writeAtomic writes data to a temp file in dir and renames it over name.
func writeAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("cache: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("cache: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("cache: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("cache: rename %s: %w", name, err)
	}
	return nil
}
