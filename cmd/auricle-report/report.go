//nolint:wrapcheck
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/farcloser/auricle"
	"github.com/farcloser/auricle/internal/integration/ffmpeg"
	"github.com/farcloser/auricle/internal/integration/ffprobe"
	"github.com/farcloser/auricle/internal/report"
)

const (
	outputFile  = "auricle-report.jsonl"
	parquetFile = "auricle-report.parquet"
)

var (
	errReportArgs   = errors.New("expected exactly one argument: folder path")
	errNotDirectory = errors.New("not a directory")
	errNoAudioFiles = errors.New("no audio files found")
)

type reportOptions struct {
	folder      string
	redact      bool
	workers     int
	analysis    auricle.Options
	compression report.Compression
	parquet     bool
	parquetZip  string
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Scan a music collection and write an auricle JSONL report",
		ArgsUsage: "<folder>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "redact-path",
				Usage: "Strip file paths from the report",
			},
			&cli.StringFlag{
				Name:    "platform",
				Aliases: []string{"p"},
				Usage:   "Delivery target setting the reference loudness: spotify, apple, youtube, ebu, atsc",
				Value:   "spotify",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "Number of concurrent workers",
				Value:   runtime.NumCPU(),
			},
			&cli.StringFlag{
				Name:  "compression",
				Usage: "Also write a compressed copy: none, gzip, zstd, snappy, brotli, lz4",
				Value: "gzip",
			},
			&cli.BoolFlag{
				Name:  "parquet",
				Usage: "Also write " + parquetFile,
			},
			&cli.StringFlag{
				Name:  "parquet-compression",
				Usage: "Parquet page compression: snappy, zstd, gzip",
				Value: "snappy",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return errReportArgs
			}

			platform, err := auricle.ParsePlatform(cmd.String("platform"))
			if err != nil {
				return err
			}

			compression, err := report.ParseCompression(cmd.String("compression"))
			if err != nil {
				return err
			}

			return runReport(ctx, reportOptions{
				folder:      cmd.Args().First(),
				redact:      cmd.Bool("redact-path"),
				workers:     max(cmd.Int("workers"), 1),
				analysis:    auricle.OptionsForPlatform(platform),
				compression: compression,
				parquet:     cmd.Bool("parquet"),
				parquetZip:  cmd.String("parquet-compression"),
			})
		},
	}
}

func runReport(ctx context.Context, opts reportOptions) error {
	info, err := os.Stat(opts.folder)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%q: %w", opts.folder, errNotDirectory)
	}

	files, err := report.CollectAudioFiles(opts.folder)
	if err != nil {
		return fmt.Errorf("scanning folder: %w", err)
	}

	if len(files) == 0 {
		return fmt.Errorf("%q: %w", opts.folder, errNoAudioFiles)
	}

	fmt.Fprintf(os.Stderr, "Found %d files to analyze (%d workers)\n", len(files), opts.workers)

	startTime := time.Now()
	records := make([]report.Record, len(files))

	var progress atomic.Int64

	sem := make(chan struct{}, opts.workers)

	var waitGroup sync.WaitGroup

	for idx, filePath := range files {
		waitGroup.Add(1)

		go func(idx int, filePath string) {
			defer waitGroup.Done()

			sem <- struct{}{}

			defer func() { <-sem }()

			records[idx] = processFile(ctx, filePath, opts.analysis)

			done := progress.Add(1)
			fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", done, len(files), filePath)
		}(idx, filePath)
	}

	waitGroup.Wait()

	failed := 0

	var totalProbe, totalDecode, totalAnalyze time.Duration

	for idx := range records {
		record := &records[idx]

		if record.Failed() {
			failed++
		}

		if record.Timing != nil {
			totalProbe += report.Millis(record.Timing.ProbeMs)
			totalDecode += report.Millis(record.Timing.DecodeMs)
			totalAnalyze += report.Millis(record.Timing.AnalyzeMs)
		}

		if opts.redact {
			record.File = ""
			record.Probe = redactProbe(record.Probe)
		}
	}

	if err = writeOutputs(records, opts); err != nil {
		return err
	}

	elapsed := time.Since(startTime)

	fmt.Fprintf(os.Stderr, "\nDone: %d files in %dm %ds (%d failed)\n",
		len(files), int(elapsed.Minutes()), int(elapsed.Seconds())%60, failed)

	analyzed := len(files) - failed
	fmt.Fprintf(os.Stderr, "\n--- Timing ---\n")
	fmt.Fprintf(os.Stderr, "  Wall clock:  %s\n", elapsed.Truncate(time.Millisecond))
	fmt.Fprintf(os.Stderr, "  ffprobe:     %s (cumulative)\n", totalProbe.Truncate(time.Millisecond))
	fmt.Fprintf(os.Stderr, "  ffmpeg:      %s (cumulative)\n", totalDecode.Truncate(time.Millisecond))
	fmt.Fprintf(os.Stderr, "  analysis:    %s (cumulative)\n", totalAnalyze.Truncate(time.Millisecond))

	if analyzed > 0 {
		perFile := time.Duration(analyzed)
		fmt.Fprintf(os.Stderr, "  avg/file:    %s (probe: %s, decode: %s, analyze: %s)\n",
			(totalProbe+totalDecode+totalAnalyze)/perFile,
			totalProbe/perFile,
			totalDecode/perFile,
			totalAnalyze/perFile,
		)
	}

	fmt.Fprintln(os.Stderr)

	return runDigest(outputFile, "")
}

func writeOutputs(records []report.Record, opts reportOptions) error {
	out, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer out.Close()

	if err = report.WriteJSONL(out, records); err != nil {
		return err
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Report written to %s\n", outputFile)

	if compressed, err := report.CompressCopy(outputFile, opts.compression); err != nil {
		slog.Error("compressing report", "codec", opts.compression, "error", err)
	} else if compressed != "" {
		fmt.Fprintf(os.Stderr, "Compressed copy written to %s\n", compressed)
	}

	if !opts.parquet {
		return nil
	}

	pq, err := os.Create(parquetFile)
	if err != nil {
		return fmt.Errorf("creating parquet file: %w", err)
	}
	defer pq.Close()

	if err = report.WriteParquet(pq, records, opts.parquetZip); err != nil {
		return err
	}

	if err = pq.Close(); err != nil {
		return fmt.Errorf("closing parquet file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Parquet export written to %s\n", parquetFile)

	return nil
}

func processFile(ctx context.Context, filePath string, opts auricle.Options) report.Record {
	fileStart := time.Now()
	timing := &report.Timing{}

	probeStart := time.Now()
	probe, err := ffprobe.Probe(ctx, filePath)
	timing.ProbeMs = report.DurationMs(time.Since(probeStart))

	if err != nil {
		return report.Record{File: filePath, Error: fmt.Sprintf("probe failed: %v", err), Timing: timing}
	}

	decodeStart := time.Now()
	decoded, err := ffmpeg.DecodeProbed(ctx, filePath, probe, 0)
	timing.DecodeMs = report.DurationMs(time.Since(decodeStart))

	if err != nil {
		return report.Record{File: filePath, Error: fmt.Sprintf("decode failed: %v", err), Timing: timing}
	}

	analyzeStart := time.Now()
	result, err := auricle.Analyze(decoded.Buffer, opts)
	timing.AnalyzeMs = report.DurationMs(time.Since(analyzeStart))
	timing.TotalMs = report.DurationMs(time.Since(fileStart))

	if err != nil {
		return report.Record{File: filePath, Error: fmt.Sprintf("analysis failed: %v", err), Timing: timing}
	}

	record := report.NewRecord(filePath, result, timing)

	probeJSON, err := json.Marshal(probe)
	if err == nil {
		record.Probe = probeJSON
	} else {
		record.ProbeError = "probe serialization failed"
	}

	return record
}

func redactProbe(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}

	var probe map[string]any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return raw
	}

	if format, ok := probe["format"].(map[string]any); ok {
		delete(format, "filename")
	}

	redacted, err := json.Marshal(probe)
	if err != nil {
		return raw
	}

	return redacted
}
