package layertest

import (
	"archive/tar"
	"bytes"
	"path"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// A single tar entry. Entries whose name ends in "/" are directories.
type Entry struct {
	Name    string // Slash-separated path relative to the layer root.
	Content string // File content. Ignored for directories.
	Mode    int64  // Permission bits. Zero picks 0644 or 0755.
}

// Returns a file entry.
func File(name, content string) Entry {
	return Entry{Name: name, Content: content}
}

// Returns a directory entry.
func Dir(name string) Entry {
	return Entry{Name: strings.TrimSuffix(name, "/") + "/"}
}

// Returns a whiteout entry that deletes name from lower layers.
func Whiteout(name string) Entry {
	dir, base := path.Split(name)
	return Entry{Name: dir + ".wh." + base}
}

// Renders the entries as an uncompressed tar stream.
func Tar(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	for _, e := range entries {
		if err := writeEntry(tw, e); err != nil {
			t.Fatalf("write tar entry %q: %v", e.Name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	return buf.Bytes()
}

// Renders the entries as a gzip-compressed tar stream.
func Gzip(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(Tar(t, entries...)); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

// Renders the entries as a zstd-compressed tar stream.
func Zstd(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	if _, err := zw.Write(Tar(t, entries...)); err != nil {
		t.Fatalf("zstd: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zstd: %v", err)
	}
	return buf.Bytes()
}

func writeEntry(tw *tar.Writer, e Entry) error {
	if strings.HasSuffix(e.Name, "/") {
		return tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeDir,
			Name:     e.Name,
			Mode:     modeOr(e.Mode, 0755),
		})
	}

	if err := tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     e.Name,
		Mode:     modeOr(e.Mode, 0644),
		Size:     int64(len(e.Content)),
	}); err != nil {
		return err
	}
	_, err := tw.Write([]byte(e.Content))
	return err
}

func modeOr(mode, fallback int64) int64 {
	if mode == 0 {
		return fallback
	}
	return mode
}
