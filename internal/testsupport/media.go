package testsupport

import (
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"
)

// ftypHeader is the leading box of an ISO base media file with the isom brand.
var ftypHeader = []byte{0, 0, 0, 16, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0, 0, 2, 0}

// WriteVideo writes a placeholder video of size bytes at path and returns
// the path. It starts with an MP4 ftyp box and continues with filler seeded
// from the file name, so fixtures of equal size still differ in content.
// Sizes below the box length truncate it; size <= 0 writes the box alone.
func WriteVideo(t testing.TB, path string, size int64) string {
	t.Helper()
	if size <= 0 {
		size = int64(len(ftypHeader))
	}
	body := make([]byte, size)
	seed := crc32.ChecksumIEEE([]byte(filepath.Base(path)))
	for i := copy(body, ftypHeader); i < len(body); i++ {
		seed = seed*1664525 + 1013904223
		body[i] = byte(seed >> 24)
	}
	writeFixture(t, path, body)
	return path
}

// WriteText writes a non-media fixture such as notes next to a video.
func WriteText(t testing.TB, path, text string) string {
	t.Helper()
	writeFixture(t, path, []byte(text))
	return path
}

func writeFixture(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
