package report

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
)

var ErrUnknownCompression = errors.New("unknown compression")

// Compression selects the codec of the compressed report copy.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
	CompressionSnappy
	CompressionBrotli
	CompressionLZ4
)

//nolint:gochecknoglobals
var compressionNames = map[Compression]string{
	CompressionNone:   "none",
	CompressionGzip:   "gzip",
	CompressionZstd:   "zstd",
	CompressionSnappy: "snappy",
	CompressionBrotli: "brotli",
	CompressionLZ4:    "lz4",
}

//nolint:gochecknoglobals
var compressionExtensions = map[Compression]string{
	CompressionGzip:   ".gz",
	CompressionZstd:   ".zst",
	CompressionSnappy: ".sz",
	CompressionBrotli: ".br",
	CompressionLZ4:    ".lz4",
}

func (c Compression) String() string {
	if name, ok := compressionNames[c]; ok {
		return name
	}

	return "unknown"
}

// Extension returns the file suffix for the codec, empty for CompressionNone.
func (c Compression) Extension() string {
	return compressionExtensions[c]
}

// ParseCompression accepts a codec name; "gz" and "zst" are accepted as aliases.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CompressionNone, nil
	case "gzip", "gz":
		return CompressionGzip, nil
	case "zstd", "zst":
		return CompressionZstd, nil
	case "snappy":
		return CompressionSnappy, nil
	case "brotli", "br":
		return CompressionBrotli, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("%w: %q (valid: none, gzip, zstd, snappy, brotli, lz4)", ErrUnknownCompression, name)
	}
}

// CompressionFromPath guesses the codec from a file extension. Unknown extensions read as plain.
func CompressionFromPath(path string) Compression {
	ext := strings.ToLower(filepath.Ext(path))
	for codec, known := range compressionExtensions {
		if ext == known {
			return codec
		}
	}

	return CompressionNone
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// NewWriter wraps w. Closing the returned writer flushes the codec but does not close w.
func (c Compression) NewWriter(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("creating zstd writer: %w", err)
		}

		return enc, nil
	case CompressionSnappy:
		return snappy.NewBufferedWriter(w), nil
	case CompressionBrotli:
		return brotli.NewWriterLevel(w, brotli.DefaultCompression), nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}
}

// NewReader wraps r. Closing the returned reader releases the codec but does not close r.
func (c Compression) NewReader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionGzip:
		dec, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("reading gzip header: %w", err)
		}

		return dec, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("creating zstd reader: %w", err)
		}

		return dec.IOReadCloser(), nil
	case CompressionSnappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case CompressionBrotli:
		return io.NopCloser(brotli.NewReader(r)), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}
}
