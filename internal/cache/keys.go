package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// KeyFor returns the key for a source file using the manager's checksum mode.
func (m *Manager) KeyFor(path string) (string, error) {
	if m != nil && m.checksum {
		return KeyForChecksum(path)
	}
	return KeyForFile(path)
}

// KeyForFile hashes the absolute path, size, and modification time of path.
func KeyForFile(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cache: resolve %q: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("cache: stat %q: %w", path, err)
	}
	return DeriveKey(abs, strconv.FormatInt(info.Size(), 10), strconv.FormatInt(info.ModTime().UnixNano(), 10)), nil
}

// KeyForChecksum hashes the full content of path.
func KeyForChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cache: open %q: %w", path, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("cache: hash %q: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DeriveKey combines a base key with stage parameters into a new key.
func DeriveKey(parts ...string) string {
	h := sha256.New()
	_, _ = io.WriteString(h, strings.Join(parts, "\x00"))
	return hex.EncodeToString(h.Sum(nil))
}
