package report

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/farcloser/auricle"
	"github.com/farcloser/auricle/internal/types"
)

func tone(amplitude, seconds float64) *types.AudioBuffer {
	const rate = 48000

	samples := make([]float64, int(seconds*rate))
	for i := range samples {
		samples[i] = amplitude * math.Sin(2*math.Pi*997*float64(i)/rate)
	}

	return &types.AudioBuffer{SampleRate: rate, Channels: [][]float64{samples, samples}}
}

func analyzed(t *testing.T, file string, buf *types.AudioBuffer) Record {
	t.Helper()

	result, err := auricle.Analyze(buf, auricle.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	return NewRecord(file, result, &Timing{TotalMs: 12.5})
}

func sampleRecords(t *testing.T) []Record {
	t.Helper()

	return []Record{
		analyzed(t, "loud.flac", tone(1.0, 4)),
		analyzed(t, "target.flac", tone(math.Pow(10, -14.0/20), 4)),
		analyzed(t, "quiet.flac", tone(0.01, 4)),
		analyzed(t, "silent.flac", &types.AudioBuffer{SampleRate: 48000, Channels: [][]float64{make([]float64, 48000)}}),
		{File: "broken.m4a", Error: "probe failed: exit status 1"},
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte(`{"file":"a.flac","analysis":{}}`+"\n"), 200)

	for _, codec := range []Compression{
		CompressionNone, CompressionGzip, CompressionZstd, CompressionSnappy, CompressionBrotli, CompressionLZ4,
	} {
		var buf bytes.Buffer

		w, err := codec.NewWriter(&buf)
		if err != nil {
			t.Fatalf("%s: %v", codec, err)
		}

		if _, err = w.Write(payload); err != nil {
			t.Fatalf("%s: %v", codec, err)
		}

		if err = w.Close(); err != nil {
			t.Fatalf("%s: %v", codec, err)
		}

		if codec != CompressionNone && buf.Len() >= len(payload) {
			t.Errorf("%s did not compress: %d >= %d", codec, buf.Len(), len(payload))
		}

		r, err := codec.NewReader(&buf)
		if err != nil {
			t.Fatalf("%s: %v", codec, err)
		}

		got, err := io.ReadAll(r)
		_ = r.Close()

		if err != nil || !bytes.Equal(got, payload) {
			t.Errorf("%s: round trip failed: %v", codec, err)
		}
	}
}

func TestParseCompression(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]Compression{
		"": CompressionNone, "gz": CompressionGzip, "ZSTD": CompressionZstd, "br": CompressionBrotli, "lz4": CompressionLZ4,
	} {
		if got, err := ParseCompression(name); err != nil || got != want {
			t.Errorf("ParseCompression(%q) = %s, %v", name, got, err)
		}
	}

	if _, err := ParseCompression("rar"); !errors.Is(err, ErrUnknownCompression) {
		t.Errorf("err = %v", err)
	}

	for path, want := range map[string]Compression{
		"auricle-report.jsonl":     CompressionNone,
		"auricle-report.jsonl.gz":  CompressionGzip,
		"auricle-report.jsonl.zst": CompressionZstd,
		"auricle-report.jsonl.sz":  CompressionSnappy,
		"auricle-report.jsonl.br":  CompressionBrotli,
		"auricle-report.jsonl.LZ4": CompressionLZ4,
	} {
		if got := CompressionFromPath(path); got != want {
			t.Errorf("CompressionFromPath(%q) = %s, want %s", path, got, want)
		}
	}
}

func TestReportAndDigest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "auricle-report.jsonl")

	var buf bytes.Buffer
	if err := WriteJSONL(&buf, sampleRecords(t)); err != nil {
		t.Fatal(err)
	}

	if strings.Contains(buf.String(), "Inf") || strings.Contains(buf.String(), "NaN") {
		t.Fatal("report must not contain non-finite numbers")
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}

	compressed, err := CompressCopy(path, CompressionZstd)
	if err != nil || compressed != path+".zst" {
		t.Fatalf("CompressCopy = %q, %v", compressed, err)
	}

	for _, report := range []string{path, compressed} {
		records, lines, err := ReadReport(report)
		if err != nil {
			t.Fatal(err)
		}

		if len(records) != 5 || len(lines) != 5 {
			t.Fatalf("%s: %d records", report, len(records))
		}

		digest := Summarize(records)

		if digest.Total != 5 || digest.Failed != 1 || digest.Analyzed != 4 {
			t.Errorf("counts = %d/%d/%d", digest.Total, digest.Failed, digest.Analyzed)
		}

		if digest.Measured != 3 || digest.Unmeasurable != 1 {
			t.Errorf("measured = %d, unmeasurable = %d", digest.Measured, digest.Unmeasurable)
		}

		if math.Abs(digest.MaxLUFS) > 0.1 || math.Abs(digest.MedianLUFS+14) > 0.1 || math.Abs(digest.MinLUFS+40) > 0.1 {
			t.Errorf("min/median/max = %v/%v/%v", digest.MinLUFS, digest.MedianLUFS, digest.MaxLUFS)
		}

		if digest.Loudest[0].File != "loud.flac" || digest.Quietest[0].File != "quiet.flac" {
			t.Errorf("loudest %v, quietest %v", digest.Loudest, digest.Quietest)
		}

		var out bytes.Buffer
		digest.Print(&out)

		for _, want := range []string{"Total files:   5", "target-loudness", "Median:        -14.0 LUFS"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("digest output missing %q:\n%s", want, out.String())
			}
		}

		entries := AffectedBy(records, lines, "target-loudness")
		if len(entries) != 2 || entries[0].File != "loud.flac" || entries[0].Detail["integrated_lufs"] == nil {
			t.Errorf("entries = %+v", entries)
		}
	}
}

func TestReadRecordsTolerance(t *testing.T) {
	t.Parallel()

	input := `{"file":"a.flac","analysis":{"summary":{"issue_count":0},"loudness":{"integrated_lufs":"N/A"}}}

not json
`

	records, lines, err := ReadRecords(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}

	if len(records) != 2 || len(lines) != 2 || records[1].Error != "parse error" {
		t.Fatalf("records = %+v", records)
	}

	if _, ok := records[0].Integrated(); ok {
		t.Error("N/A must not read as a level")
	}

	digest := Summarize(records)
	if !math.IsInf(digest.MedianLUFS, -1) {
		t.Errorf("median = %v, want unmeasurable", digest.MedianLUFS)
	}

	var out bytes.Buffer
	digest.Print(&out)

	if !strings.Contains(out.String(), "Median:        N/A") {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestWriteParquet(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteParquet(&buf, sampleRecords(t), "zstd"); err != nil {
		t.Fatal(err)
	}

	reader := parquet.NewGenericReader[Row](bytes.NewReader(buf.Bytes()))
	defer reader.Close()

	rows := make([]Row, 5)

	n, err := reader.Read(rows)
	if n != 5 || (err != nil && !errors.Is(err, io.EOF)) {
		t.Fatalf("read %d rows: %v", n, err)
	}

	if rows[0].File != "loud.flac" || rows[0].IntegratedLUFS == nil || math.Abs(*rows[0].IntegratedLUFS) > 0.1 {
		t.Errorf("row 0 = %+v", rows[0])
	}

	if rows[3].IntegratedLUFS != nil || rows[3].PeakDb != nil {
		t.Errorf("silent row should carry nulls: %+v", rows[3])
	}

	if rows[4].Error == "" || rows[4].SampleRate != 0 {
		t.Errorf("failed row = %+v", rows[4])
	}

	if err := WriteParquet(&buf, nil, "lzma"); !errors.Is(err, ErrUnknownParquetCodec) {
		t.Errorf("err = %v", err)
	}
}
