package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/containerd/v2/pkg/archive"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression names reported by [images.DiffCompression].
const (
	compressionNone = ""
	compressionGzip = "gzip"
	compressionZstd = "zstd"
)

// Decompresses a gzip-compressed tar stream and applies it onto dest.
//
// Existing files at the same paths are overwritten. Any failure is reported
// as [ErrExtraction].
func Extract(ctx context.Context, r io.Reader, dest string) error {
	return apply(ctx, r, compressionGzip, dest)
}

// Applies a layer blob onto dest, picking decompression from the layer's
// media type.
//
// Docker and OCI tar, tar+gzip and tar+zstd layer types are accepted. An
// empty media type is treated as tar+gzip.
func Layer(ctx context.Context, r io.Reader, mediaType, dest string) error {
	compression := compressionGzip
	if mediaType != "" {
		c, err := images.DiffCompression(ctx, mediaType)
		if err != nil {
			return fmt.Errorf("%w: media type %q: %w", ErrExtraction, mediaType, err)
		}
		compression = c
	}
	return apply(ctx, r, compression, dest)
}

func apply(ctx context.Context, r io.Reader, compression, dest string) error {
	tr, err := decompress(r, compression)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	defer tr.Close()

	n, err := archive.Apply(ctx, dest, tr, archive.WithNoSameOwner())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	slog.Debug("layer applied", "dest", dest, "compression", compressionLabel(compression), "bytes", n)
	return nil
}

// Wraps r in a reader producing the uncompressed tar stream.
func decompress(r io.Reader, compression string) (io.ReadCloser, error) {
	switch compression {
	case compressionNone:
		return io.NopCloser(r), nil
	case compressionGzip:
		return gzip.NewReader(r)
	case compressionZstd:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", compression)
	}
}

func compressionLabel(c string) string {
	if c == compressionNone {
		return "none"
	}
	return c
}
