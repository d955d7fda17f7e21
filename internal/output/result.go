// Package output provides shared result serialization for auricle JSON output.
package output

import (
	"math"

	"github.com/farcloser/auricle"
	"github.com/farcloser/auricle/internal/types"
)

// Level returns a measured reading rounded to two decimals, or "N/A".
// JSON cannot carry -Inf, and 0 would read as a real level.
func Level(v float64) any {
	if !types.IsMeasured(v) {
		return types.NotApplicable
	}

	rounded := math.Round(v*100) / 100
	if rounded == 0 {
		return 0.0
	}

	return rounded
}

// ResultToMap converts an analysis result into the canonical map structure
// used for JSON and JSONL serialization.
func ResultToMap(result *auricle.Result) map[string]any {
	meta := map[string]any{
		"summary": map[string]any{
			"issue_count":    result.IssueCount,
			"worst_severity": result.WorstSeverity.String(),
			"platform":       result.Platform.String(),
			"target_lufs":    result.TargetLUFS,
		},
		"signal": map[string]any{
			"duration_seconds": result.DurationSeconds,
			"sample_rate":      result.SampleRate,
			"channel_count":    result.ChannelCount,
			"layout":           result.Layout.String(),
		},
	}

	issues := make([]any, 0, len(result.Issues))
	for _, issue := range result.Issues {
		issues = append(issues, map[string]any{
			"check":      issue.Check.String(),
			"detected":   issue.Detected,
			"severity":   issue.Severity.String(),
			"summary":    issue.Summary,
			"confidence": issue.Confidence,
		})
	}

	meta["issues"] = issues

	if r := result.Loudness; r != nil {
		meta["loudness"] = LoudnessToMap(r)
	}

	if r := result.Levels; r != nil {
		meta["levels"] = LevelsToMap(r)
	}

	if r := result.Spectral; r != nil {
		meta["spectral"] = SpectralToMap(r)
	}

	if r := result.Waveform; r != nil {
		meta["waveform"] = WaveformToMap(r)
	}

	return meta
}

// SummaryToMap renders the flat analysis record.
func SummaryToMap(summary auricle.Summary) map[string]any {
	return map[string]any{
		"peak_level":        summary.PeakLevel,
		"peak_db":           Level(summary.PeakDb),
		"rms_level":         summary.RMSLevel,
		"rms_db":            Level(summary.RMSDb),
		"momentary_lufs":    Level(summary.MomentaryLUFS),
		"short_term_lufs":   Level(summary.ShortTermLUFS),
		"integrated_lufs":   Level(summary.IntegratedLUFS),
		"loudness_range_lu": Level(summary.LoudnessRangeLU),
		"duration_seconds":  summary.DurationSeconds,
		"sample_rate":       summary.SampleRate,
		"channel_count":     summary.ChannelCount,
	}
}

// LoudnessToMap converts loudness results to a map.
func LoudnessToMap(result *types.LoudnessResult) map[string]any {
	return map[string]any{
		"integrated_lufs":    Level(result.IntegratedLUFS),
		"momentary_lufs":     Level(result.MomentaryLUFS),
		"short_term_lufs":    Level(result.ShortTermLUFS),
		"momentary_max":      Level(result.MomentaryMax),
		"short_term_max":     Level(result.ShortTermMax),
		"loudness_range":     Level(result.LoudnessRange),
		"lra_low":            Level(result.LRALow),
		"lra_high":           Level(result.LRAHigh),
		"blocks":             result.Blocks,
		"gated_blocks":       result.GatedBlocks,
		"short_term_windows": result.ShortTermCount,
		"non_finite_samples": result.NonFiniteSamples,
		"frames":             result.Frames,
	}
}

// LevelsToMap converts peak and RMS results to a map.
func LevelsToMap(result *types.LevelResult) map[string]any {
	channels := make([]any, 0, len(result.ChannelPeaks))
	for i := range result.ChannelPeaks {
		channels = append(channels, map[string]any{
			"channel": i,
			"peak_db": Level(20 * math.Log10(result.ChannelPeaks[i])),
			"rms_db":  Level(20 * math.Log10(result.ChannelRMS[i])),
		})
	}

	return map[string]any{
		"peak":               result.Peak,
		"peak_db":            Level(result.PeakDb),
		"peak_channel":       result.PeakChannel,
		"rms":                result.RMS,
		"rms_db":             Level(result.RMSDb),
		"non_finite_samples": result.NonFiniteSamples,
		"frames":             result.Frames,
		"channels":           channels,
	}
}

// SpectralToMap converts spectral analysis results to a map.
func SpectralToMap(result *types.SpectralResult) map[string]any {
	meta := map[string]any{
		"windows":  result.Windows,
		"fft_size": result.FFTSize,
		"rolloff":  result.Rolloff,
		"frames":   result.Frames,
	}

	if result.Windows == 0 {
		meta["centroid_hz"] = types.NotApplicable
		meta["rolloff_hz"] = types.NotApplicable

		return meta
	}

	meta["centroid_hz"] = math.Round(result.CentroidHz)
	meta["rolloff_hz"] = math.Round(result.RolloffHz)

	return meta
}

// WaveformToMap converts the overview envelope into parallel min/max arrays.
func WaveformToMap(result *types.WaveformResult) map[string]any {
	mins := make([]float64, len(result.Columns))
	maxs := make([]float64, len(result.Columns))

	for i, column := range result.Columns {
		mins[i] = column.Min
		maxs[i] = column.Max
	}

	return map[string]any{
		"samples_per_column": result.SamplesPerColumn,
		"min":                mins,
		"max":                maxs,
	}
}
