package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"adscribe/internal/logging"
)

const chunkPrefix = "chunk_"

// Spool accumulates msgpack records for one key and writes them out in
// chunk files no larger than the configured chunk size. Nothing is visible
// to readers until Commit.
type Spool struct {
	m       *Manager
	key     string
	stage   string
	dir     string
	buf     bytes.Buffer
	enc     *msgpack.Encoder
	chunks  int
	records int
	size    int64
	done    bool
}

// NewSpool starts a staged entry for key. It returns nil for a nil Manager;
// a nil Spool accepts and discards records.
func (m *Manager) NewSpool(key, stage string) (*Spool, error) {
	if m == nil {
		return nil, nil
	}
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, fmt.Errorf("cache: ensure root: %w", err)
	}
	dir, err := os.MkdirTemp(m.root, ".spool-*")
	if err != nil {
		return nil, fmt.Errorf("cache: create spool dir: %w", err)
	}
	s := &Spool{m: m, key: key, stage: stage, dir: dir}
	s.enc = msgpack.NewEncoder(&s.buf)
	return s, nil
}

// Append encodes v into the current chunk, flushing when it reaches the chunk size.
func (s *Spool) Append(v any) error {
	if s == nil {
		return nil
	}
	if s.done {
		return errors.New("cache: spool already finished")
	}
	if err := s.enc.Encode(v); err != nil {
		return fmt.Errorf("cache: encode record: %w", err)
	}
	s.records++
	if s.m.chunkSize > 0 && s.buf.Len() >= s.m.chunkSize {
		return s.flush()
	}
	return nil
}

// Records reports how many records were appended.
func (s *Spool) Records() int {
	if s == nil {
		return 0
	}
	return s.records
}

func (s *Spool) flush() error {
	if s.buf.Len() == 0 {
		return nil
	}
	name := fmt.Sprintf("%s%04d", chunkPrefix, s.chunks)
	if err := os.WriteFile(filepath.Join(s.dir, name), s.buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("cache: write %s: %w", name, err)
	}
	s.size += int64(s.buf.Len())
	s.chunks++
	s.buf.Reset()
	return nil
}

// Commit flushes the remaining buffer and publishes the entry, replacing any
// existing entry for the same key.
func (s *Spool) Commit(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if s.done {
		return errors.New("cache: spool already finished")
	}
	s.done = true
	if err := s.flush(); err != nil {
		_ = os.RemoveAll(s.dir)
		return err
	}
	meta := entryMeta{
		Version:   metaVersion,
		Key:       s.key,
		Stage:     s.stage,
		CreatedAt: s.m.now().UTC(),
		Spooled:   true,
		Chunks:    s.chunks,
		SizeBytes: s.size,
	}
	if err := writeMeta(s.dir, meta); err != nil {
		_ = os.RemoveAll(s.dir)
		return err
	}
	target := s.m.entryDir(s.key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		_ = os.RemoveAll(s.dir)
		return fmt.Errorf("cache: ensure prefix dir: %w", err)
	}
	if err := os.RemoveAll(target); err != nil {
		_ = os.RemoveAll(s.dir)
		return fmt.Errorf("cache: replace entry: %w", err)
	}
	if err := os.Rename(s.dir, target); err != nil {
		_ = os.RemoveAll(s.dir)
		return fmt.Errorf("cache: publish spool: %w", err)
	}
	s.m.logger.DebugContext(ctx, "committed spooled cache entry",
		logging.String("key", s.key),
		logging.String("stage", s.stage),
		logging.Int("chunks", s.chunks),
		logging.Int("records", s.records),
	)
	if _, err := s.m.prune(ctx, target); err != nil {
		return fmt.Errorf("cache: prune after commit: %w", err)
	}
	return nil
}

// Abort discards the staged chunks.
func (s *Spool) Abort() {
	if s == nil || s.done {
		return
	}
	s.done = true
	_ = os.RemoveAll(s.dir)
}

// ChunkReader decodes records from a committed spool in order.
type ChunkReader struct {
	paths []string
	dec   *msgpack.Decoder
	cur   *os.File
}

// OpenChunks opens the spooled entry for key. ok is false on a miss, which
// includes expired entries.
func (m *Manager) OpenChunks(ctx context.Context, key string) (*ChunkReader, bool, error) {
	if m == nil {
		return nil, false, nil
	}
	dir := m.entryDir(key)
	meta, err := readMeta(dir)
	if err != nil || !meta.Spooled {
		m.metrics.miss()
		return nil, false, nil
	}
	if m.expired(meta) {
		m.logger.DebugContext(ctx, "spooled cache entry expired", logging.String("key", key))
		_ = os.RemoveAll(dir)
		m.metrics.miss()
		return nil, false, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		m.metrics.miss()
		return nil, false, nil
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), chunkPrefix) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	if len(paths) != meta.Chunks {
		m.metrics.miss()
		return nil, false, fmt.Errorf("cache: entry %s has %d chunks, metadata says %d", key, len(paths), meta.Chunks)
	}
	m.metrics.hit()
	return &ChunkReader{paths: paths}, true, nil
}

// Decode reads the next record into v. It returns io.EOF after the last record.
func (r *ChunkReader) Decode(v any) error {
	for {
		if r.dec == nil {
			if len(r.paths) == 0 {
				return io.EOF
			}
			f, err := os.Open(r.paths[0])
			if err != nil {
				return fmt.Errorf("cache: open chunk: %w", err)
			}
			r.paths = r.paths[1:]
			r.cur = f
			r.dec = msgpack.NewDecoder(f)
		}
		err := r.dec.Decode(v)
		if err == nil {
			return nil
		}
		if errors.Is(err, io.EOF) {
			_ = r.cur.Close()
			r.cur = nil
			r.dec = nil
			continue
		}
		return fmt.Errorf("cache: decode record: %w", err)
	}
}

// Close releases the open chunk file.
func (r *ChunkReader) Close() error {
	if r == nil || r.cur == nil {
		return nil
	}
	err := r.cur.Close()
	r.cur = nil
	r.dec = nil
	return err
}
