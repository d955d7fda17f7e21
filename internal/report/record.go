// Package report writes and reads collection reports: one JSON line per analyzed file,
// optional codec-compressed copies, a Parquet export and the digest summary.
//
//nolint:tagliatelle
package report

import (
	"encoding/json"
	"time"

	"github.com/farcloser/auricle"
	"github.com/farcloser/auricle/internal/output"
	"github.com/farcloser/auricle/internal/types"
)

// Record is a single line in the JSONL report file.
type Record struct {
	File       string          `json:"file,omitempty"`
	Analysis   map[string]any  `json:"analysis,omitempty"`
	Probe      json.RawMessage `json:"probe,omitempty"`
	ProbeError string          `json:"probe_error,omitempty"`
	Error      string          `json:"error,omitempty"`
	Timing     *Timing         `json:"timing,omitempty"`

	result *auricle.Result
}

// Timing captures per-file processing durations in milliseconds.
type Timing struct {
	ProbeMs   float64 `json:"probe_ms"`
	DecodeMs  float64 `json:"decode_ms"`
	AnalyzeMs float64 `json:"analyze_ms"`
	TotalMs   float64 `json:"total_ms"`
}

// NewRecord renders a successful analysis. The result is kept for the Parquet export.
func NewRecord(file string, result *auricle.Result, timing *Timing) Record {
	analysis := output.ResultToMap(result)
	analysis["measurements"] = output.SummaryToMap(result.Summary())

	return Record{File: file, Analysis: analysis, Timing: timing, result: result}
}

// Failed reports whether the file could not be analyzed.
func (r *Record) Failed() bool {
	return r.Error != "" || r.Analysis == nil
}

// DurationMs converts d to fractional milliseconds.
func DurationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

// Millis converts fractional milliseconds back to a duration.
func Millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// Row is the flat Parquet shape of a Record. Unmeasurable readings are null.
type Row struct {
	File            string   `parquet:"file"`
	Error           string   `parquet:"error"`
	Platform        string   `parquet:"platform"`
	TargetLUFS      float64  `parquet:"target_lufs"`
	IssueCount      int32    `parquet:"issue_count"`
	WorstSeverity   string   `parquet:"worst_severity"`
	SampleRate      int32    `parquet:"sample_rate"`
	Channels        int32    `parquet:"channels"`
	Layout          string   `parquet:"layout"`
	DurationSeconds float64  `parquet:"duration_seconds"`
	IntegratedLUFS  *float64 `parquet:"integrated_lufs"`
	MomentaryMax    *float64 `parquet:"momentary_max"`
	ShortTermMax    *float64 `parquet:"short_term_max"`
	LoudnessRange   float64  `parquet:"loudness_range"`
	PeakDb          *float64 `parquet:"peak_db"`
	RMSDb           *float64 `parquet:"rms_db"`
	NonFinite       int64    `parquet:"non_finite_samples"`
	CentroidHz      *float64 `parquet:"centroid_hz"`
	TotalMs         float64  `parquet:"total_ms"`
}

// Row flattens the record. Failed records keep only the file and the error.
func (r *Record) Row() Row {
	row := Row{File: r.File, Error: r.Error}
	if r.Timing != nil {
		row.TotalMs = r.Timing.TotalMs
	}

	res := r.result
	if res == nil {
		return row
	}

	row.Platform = res.Platform.String()
	row.TargetLUFS = res.TargetLUFS
	row.IssueCount = int32(res.IssueCount) //nolint:gosec // bounded by the number of checks
	row.WorstSeverity = res.WorstSeverity.String()
	row.SampleRate = int32(res.SampleRate) //nolint:gosec // validated sample rate
	row.Channels = int32(res.ChannelCount) //nolint:gosec // validated channel count
	row.Layout = res.Layout.String()
	row.DurationSeconds = res.DurationSeconds
	row.IntegratedLUFS = types.Optional(res.Loudness.IntegratedLUFS)
	row.MomentaryMax = types.Optional(res.Loudness.MomentaryMax)
	row.ShortTermMax = types.Optional(res.Loudness.ShortTermMax)
	row.LoudnessRange = res.Loudness.LoudnessRange
	row.PeakDb = types.Optional(res.Levels.PeakDb)
	row.RMSDb = types.Optional(res.Levels.RMSDb)
	row.NonFinite = int64(max(res.Loudness.NonFiniteSamples, res.Levels.NonFiniteSamples))

	if res.Spectral != nil && res.Spectral.Windows > 0 {
		row.CentroidHz = types.Optional(res.Spectral.CentroidHz)
	}

	return row
}
