package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"
)

var ErrUnknownParquetCodec = errors.New("unknown parquet compression")

// WriteJSONL encodes one record per line.
func WriteJSONL(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)

	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("writing record %d: %w", i, err)
		}
	}

	return nil
}

// CompressCopy writes a codec-compressed copy of path next to it and returns the new path.
func CompressCopy(path string, codec Compression) (string, error) {
	if codec == CompressionNone {
		return "", nil
	}

	src, err := os.Open(path) //nolint:gosec // our own output file
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer src.Close()

	target := path + codec.Extension()

	dst, err := os.Create(target) //nolint:gosec // derived from our own output file
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", target, err)
	}
	defer dst.Close()

	enc, err := codec.NewWriter(dst)
	if err != nil {
		return "", err
	}

	if _, err = io.Copy(enc, src); err != nil {
		return "", fmt.Errorf("compressing %s: %w", path, err)
	}

	if err = enc.Close(); err != nil {
		return "", fmt.Errorf("finishing %s: %w", target, err)
	}

	if err = dst.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", target, err)
	}

	return target, nil
}

func parquetCodec(name string) (parquet.WriterOption, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return parquet.Compression(&parquet.Snappy), nil
	case "zstd":
		return parquet.Compression(&parquet.Zstd), nil
	case "gzip", "gz":
		return parquet.Compression(&parquet.Gzip), nil
	default:
		return nil, fmt.Errorf("%w: %q (valid: snappy, zstd, gzip)", ErrUnknownParquetCodec, name)
	}
}

// WriteParquet writes one Row per record.
func WriteParquet(w io.Writer, records []Record, codec string) error {
	compression, err := parquetCodec(codec)
	if err != nil {
		return err
	}

	rows := make([]Row, len(records))
	for i := range records {
		rows[i] = records[i].Row()
	}

	writer := parquet.NewGenericWriter[Row](w, compression)

	if _, err = writer.Write(rows); err != nil {
		return fmt.Errorf("writing parquet rows: %w", err)
	}

	if err = writer.Close(); err != nil {
		return fmt.Errorf("closing parquet writer: %w", err)
	}

	return nil
}
