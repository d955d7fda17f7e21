//nolint:wrapcheck
package main

import (
	"fmt"
	"os"

	"github.com/farcloser/primordium/format"

	"github.com/farcloser/auricle"
	"github.com/farcloser/auricle/internal/output"
	"github.com/farcloser/auricle/internal/types"
)

func outputResult(filePath string, result *auricle.Result, formatName string, debug bool) error {
	formatter, err := format.GetFormatter(formatName)
	if err != nil {
		return err
	}

	var meta map[string]any
	if debug {
		meta = output.ResultToMap(result)
		meta["measurements"] = output.SummaryToMap(result.Summary())
	} else {
		meta = buildFriendlyOutput(result)
	}

	data := &format.Data{
		Object: filePath,
		Meta:   meta,
	}

	return formatter.PrintAll([]*format.Data{data}, os.Stdout)
}

// buildFriendlyOutput keeps the findings and the headline figures.
func buildFriendlyOutput(result *auricle.Result) map[string]any {
	meta := map[string]any{
		"summary": map[string]any{
			"issue_count":    result.IssueCount,
			"worst_severity": result.WorstSeverity.String(),
			"platform":       result.Platform.String(),
			"target":         types.FormatLevel(result.TargetLUFS, "LUFS"),
		},
	}

	issues := make([]any, 0, len(result.Issues))
	for _, issue := range result.Issues {
		issues = append(issues, map[string]any{
			"check":    issue.Check.String(),
			"detected": issue.Detected,
			"severity": issue.Severity.String(),
			"summary":  issue.Summary,
		})
	}

	meta["issues"] = issues
	meta["properties"] = buildProperties(result)

	return meta
}

func buildProperties(result *auricle.Result) map[string]any {
	props := map[string]any{
		"duration": fmt.Sprintf("%.1f s", result.DurationSeconds),
		"signal":   fmt.Sprintf("%d Hz, %d ch (%s)", result.SampleRate, result.ChannelCount, result.Layout),
	}

	if r := result.Loudness; r != nil {
		props["integrated_lufs"] = types.FormatLevel(r.IntegratedLUFS, "LUFS")
		props["loudness_range"] = fmt.Sprintf("%.1f LU", r.LoudnessRange)
		props["max_momentary"] = types.FormatLevel(r.MomentaryMax, "LUFS")
	}

	if r := result.Levels; r != nil {
		props["sample_peak"] = types.FormatLevel(r.PeakDb, "dBFS")
		props["rms"] = types.FormatLevel(r.RMSDb, "dBFS")
	}

	if r := result.Spectral; r != nil && r.Windows > 0 {
		props["spectral_centroid"] = fmt.Sprintf("%.0f Hz", r.CentroidHz)
	}

	return props
}
