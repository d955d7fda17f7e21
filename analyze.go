//nolint:wrapcheck
package auricle

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/farcloser/auricle/internal/audit/levels"
	"github.com/farcloser/auricle/internal/audit/loudness"
	"github.com/farcloser/auricle/internal/audit/spectral"
	"github.com/farcloser/auricle/internal/audit/waveform"
	"github.com/farcloser/auricle/internal/types"
)

/*
Usage:

result, err := auricle.Analyze(buffer, auricle.DefaultOptions())
fmt.Println(types.FormatLevel(result.Loudness.IntegratedLUFS, "LUFS"))

// Judge against a delivery target
opts := auricle.OptionsForPlatform(auricle.PlatformEBU)
result, err := auricle.Analyze(buffer, opts)

// Measurements only
opts := auricle.DefaultOptions()
opts.Checks = auricle.CheckLoudness
result, err := auricle.Analyze(buffer, opts)

// Iterate issues
for _, issue := range result.Issues {
    if issue.Detected {
        fmt.Printf("[%s] %s\n", issue.Severity, issue.Summary)
    }
}
*/

// Check represents a high-level measurement or compliance check.
type Check int

const (
	CheckLoudness Check = 1 << iota
	CheckTargetLoudness
	CheckPeakHeadroom
	CheckDynamics
	CheckNonFinite
	CheckSpectral

	// Presets.
	ChecksCompliance = CheckTargetLoudness | CheckPeakHeadroom | CheckDynamics | CheckNonFinite

	ChecksMeasure = CheckLoudness | CheckSpectral

	ChecksAll = ChecksCompliance | ChecksMeasure
)

func (c Check) String() string {
	switch c {
	case CheckLoudness:
		return "loudness"
	case CheckTargetLoudness:
		return "target-loudness"
	case CheckPeakHeadroom:
		return "peak-headroom"
	case CheckDynamics:
		return "dynamics"
	case CheckNonFinite:
		return "non-finite"
	case CheckSpectral:
		return "spectral"
	}

	return "unknown"
}

//nolint:gochecknoglobals
var checkNames = map[string]Check{
	"loudness":        CheckLoudness,
	"target-loudness": CheckTargetLoudness,
	"peak-headroom":   CheckPeakHeadroom,
	"dynamics":        CheckDynamics,
	"non-finite":      CheckNonFinite,
	"spectral":        CheckSpectral,
	// Presets.
	"all":        ChecksAll,
	"compliance": ChecksCompliance,
	"measure":    ChecksMeasure,
}

// ParseChecks parses a comma-separated list of check names and presets. Empty means ChecksAll.
func ParseChecks(raw string) (Check, error) {
	var result Check

	for name := range strings.SplitSeq(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		check, ok := checkNames[name]
		if !ok {
			return 0, fmt.Errorf("%w: unknown check %q", types.ErrInvalidInput, name)
		}

		result |= check
	}

	if result == 0 {
		return ChecksAll, nil
	}

	return result, nil
}

// Severity indicates how bad a detected issue is.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityMild
	SeverityModerate
	SeveritySevere
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "no issue"
	case SeverityMild:
		return "mild"
	case SeverityModerate:
		return "moderate"
	case SeveritySevere:
		return "severe"
	}

	return "unknown"
}

// Issue represents a finding for one check.
type Issue struct {
	Check      Check
	Detected   bool
	Severity   Severity
	Summary    string  // human-readable summary
	Confidence float64 // 0.0-1.0
}

// Bands defines severity thresholds for a check. Direction is implicit:
// if Mild < Severe, higher values are worse (ascending, e.g. dB over target).
// If Mild > Severe, lower values are worse (descending, e.g. loudness range).
type Bands struct {
	Mild     float64
	Moderate float64
	Severe   float64
}

// Match returns the severity for a value.
// Returns (SeverityNone, false) when the value is below detection (the Mild threshold) or unmeasurable.
func (b Bands) Match(value float64) (Severity, bool) {
	if math.IsNaN(value) {
		return SeverityNone, false
	}

	if b.Mild <= b.Severe {
		// Ascending: higher = worse.
		switch {
		case value >= b.Severe:
			return SeveritySevere, true
		case value >= b.Moderate:
			return SeverityModerate, true
		case value >= b.Mild:
			return SeverityMild, true
		}
	} else {
		// Descending: lower = worse.
		switch {
		case value <= b.Severe:
			return SeveritySevere, true
		case value <= b.Moderate:
			return SeverityModerate, true
		case value <= b.Mild:
			return SeverityMild, true
		}
	}

	return SeverityNone, false
}

// Options configures the analysis.
type Options struct {
	Checks Check // which checks to run (default: ChecksAll)

	Platform Platform
	// TargetLUFS overrides the platform reference. Zero means unset and resolves to the platform
	// target, so a 0 LUFS target cannot be requested.
	TargetLUFS float64

	// Severity bands per check (zero value = use defaults).
	TargetDeviation Bands // LU away from the target, absolute
	PeakHeadroom    Bands // sample peak in dBFS
	Dynamics        Bands // loudness range in LU, descending
	NonFinite       Bands // count of NaN/Inf samples

	Spectral spectral.Options

	// WaveformWidth > 0 adds a min/max overview with that many columns.
	WaveformWidth int
}

// DefaultOptions returns the options for streaming delivery (Spotify / YouTube, -14 LUFS).
func DefaultOptions() Options {
	return OptionsForPlatform(PlatformSpotify)
}

// Result contains all analysis results.
type Result struct {
	Issues []Issue

	// Quick access booleans
	HasLoudnessDeviation bool
	HasLowHeadroom       bool
	IsOverCompressed     bool
	HasNonFinite         bool

	// Summary
	IssueCount    int
	WorstSeverity Severity

	Platform   Platform
	TargetLUFS float64

	DurationSeconds float64
	SampleRate      int
	ChannelCount    int
	Layout          types.Layout

	// Raw analysis results (nil if not requested)
	Loudness *types.LoudnessResult
	Levels   *types.LevelResult
	Spectral *types.SpectralResult
	Waveform *types.WaveformResult
}

// Analyze measures a decoded buffer. Loudness and levels are always measured; Checks selects
// which findings are interpreted and whether the spectral pass runs.
// Only structurally invalid buffers and rates below loudness.MinSampleRate return an error
// (wrapping types.ErrInvalidInput).
func Analyze(buf *types.AudioBuffer, opts Options) (*Result, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	if opts.Checks == 0 {
		opts.Checks = ChecksAll
	}

	applyDefaults(&opts)

	result := &Result{
		Platform:        opts.Platform,
		TargetLUFS:      opts.TargetLUFS,
		DurationSeconds: buf.Duration(),
		SampleRate:      buf.SampleRate,
		ChannelCount:    len(buf.Channels),
		Layout:          buf.ResolvedLayout(),
	}

	var err error

	slog.Debug("auricle.Analyze", "stage", "loudness", "frames", buf.Frames())

	result.Loudness, err = loudness.Measure(buf)
	if err != nil {
		return nil, err
	}

	slog.Debug("auricle.Analyze", "stage", "levels")

	result.Levels, err = levels.Measure(buf)
	if err != nil {
		return nil, err
	}

	if opts.Checks&CheckSpectral != 0 {
		slog.Debug("auricle.Analyze", "stage", "spectral")

		result.Spectral, err = spectral.Analyze(buf, opts.Spectral)
		if err != nil {
			return nil, err
		}
	}

	if opts.WaveformWidth > 0 {
		result.Waveform, err = waveform.Envelope(buf, opts.WaveformWidth)
		if err != nil {
			return nil, err
		}
	}

	interpretResults(result, opts)

	return result, nil
}

func applyDefaults(opts *Options) {
	defaults := OptionsForPlatform(opts.Platform)
	zeroBands := Bands{}

	if opts.TargetLUFS == 0 {
		opts.TargetLUFS = defaults.TargetLUFS
	}

	if opts.TargetDeviation == zeroBands {
		opts.TargetDeviation = defaults.TargetDeviation
	}

	if opts.PeakHeadroom == zeroBands {
		opts.PeakHeadroom = defaults.PeakHeadroom
	}

	if opts.Dynamics == zeroBands {
		opts.Dynamics = defaults.Dynamics
	}

	if opts.NonFinite == zeroBands {
		opts.NonFinite = defaults.NonFinite
	}

	if opts.Spectral == (spectral.Options{}) {
		opts.Spectral = spectral.DefaultOptions()
	}
}

func interpretResults(result *Result, opts Options) {
	loud := result.Loudness
	lvl := result.Levels

	// Loudness (informational, no bands)
	if opts.Checks&CheckLoudness != 0 {
		result.Issues = append(result.Issues, Issue{
			Check:    CheckLoudness,
			Detected: false, // informational
			Severity: SeverityNone,
			Summary: fmt.Sprintf(
				"Integrated %s, short-term %s, momentary %s, range %.1f LU",
				types.FormatLevel(loud.IntegratedLUFS, "LUFS"),
				types.FormatLevel(loud.ShortTermLUFS, "LUFS"),
				types.FormatLevel(loud.MomentaryLUFS, "LUFS"),
				loud.LoudnessRange,
			),
			Confidence: 1.0,
		})
	}

	// Target loudness (ascending bands on the absolute deviation)
	if opts.Checks&CheckTargetLoudness != 0 {
		issue := Issue{Check: CheckTargetLoudness, Confidence: 1.0}

		if !types.IsMeasured(loud.IntegratedLUFS) {
			issue.Summary = "Integrated loudness unmeasurable (silence, or nothing above the gates)"
			issue.Confidence = 0.5
		} else {
			deviation := loud.IntegratedLUFS - opts.TargetLUFS
			issue.Severity, issue.Detected = opts.TargetDeviation.Match(math.Abs(deviation))

			direction := "louder"
			if deviation < 0 {
				direction = "quieter"
			}

			if issue.Detected {
				issue.Summary = fmt.Sprintf("%.1f LU %s than the %s target (%.0f LUFS)",
					math.Abs(deviation), direction, opts.Platform, opts.TargetLUFS)
			} else {
				issue.Summary = fmt.Sprintf("Within %.1f LU of the %s target (%.0f LUFS)",
					opts.TargetDeviation.Mild, opts.Platform, opts.TargetLUFS)
			}
		}

		result.HasLoudnessDeviation = issue.Detected
		result.Issues = append(result.Issues, issue)
	}

	// Peak headroom (ascending bands on sample peak dBFS)
	if opts.Checks&CheckPeakHeadroom != 0 {
		severity, detected := SeverityNone, false
		if types.IsMeasured(lvl.PeakDb) {
			severity, detected = opts.PeakHeadroom.Match(lvl.PeakDb)
		}

		var summary string

		switch severity {
		case SeverityNone:
			summary = "Sample peak " + types.FormatLevel(lvl.PeakDb, "dBFS")
		case SeverityMild, SeverityModerate:
			summary = fmt.Sprintf("Little headroom: sample peak %s on channel %d",
				types.FormatLevel(lvl.PeakDb, "dBFS"), lvl.PeakChannel)
		case SeveritySevere:
			summary = fmt.Sprintf("Full scale reached on channel %d, likely clipped", lvl.PeakChannel)
		}

		result.HasLowHeadroom = detected
		result.Issues = append(result.Issues, Issue{
			Check:      CheckPeakHeadroom,
			Detected:   detected,
			Severity:   severity,
			Summary:    summary,
			Confidence: 0.9, // sample peak under-reads true peak
		})
	}

	// Dynamics (descending bands: lower LRA = more compressed)
	if opts.Checks&CheckDynamics != 0 {
		issue := Issue{Check: CheckDynamics, Confidence: 0.8}

		if loud.ShortTermCount < 2 || !types.IsMeasured(loud.LRAHigh) {
			issue.Summary = fmt.Sprintf("Too short or too quiet for a loudness range (%.1f LU)", loud.LoudnessRange)
			issue.Confidence = 0.3
		} else {
			issue.Severity, issue.Detected = opts.Dynamics.Match(loud.LoudnessRange)

			switch issue.Severity {
			case SeverityNone:
				issue.Summary = fmt.Sprintf("Loudness range %.1f LU", loud.LoudnessRange)
			case SeverityMild:
				issue.Summary = fmt.Sprintf("Compressed (LRA %.1f LU)", loud.LoudnessRange)
			case SeverityModerate:
				issue.Summary = fmt.Sprintf("Heavily compressed (LRA %.1f LU)", loud.LoudnessRange)
			case SeveritySevere:
				issue.Summary = fmt.Sprintf("Flat (LRA %.1f LU)", loud.LoudnessRange)
			}
		}

		result.IsOverCompressed = issue.Detected
		result.Issues = append(result.Issues, issue)
	}

	// Non-finite samples
	if opts.Checks&CheckNonFinite != 0 {
		count := max(loud.NonFiniteSamples, lvl.NonFiniteSamples)
		severity, detected := opts.NonFinite.Match(float64(count))

		summary := "All samples finite"
		if detected {
			summary = fmt.Sprintf("%d NaN/Inf samples ignored", count)
		}

		result.HasNonFinite = detected
		result.Issues = append(result.Issues, Issue{
			Check:      CheckNonFinite,
			Detected:   detected,
			Severity:   severity,
			Summary:    summary,
			Confidence: 1.0,
		})
	}

	// Spectral (informational)
	if result.Spectral != nil && opts.Checks&CheckSpectral != 0 {
		summary := "Spectrum unmeasurable (too short or silent)"
		if result.Spectral.Windows > 0 {
			summary = fmt.Sprintf("Centroid %.0f Hz, %.0f%% rolloff %.0f Hz",
				result.Spectral.CentroidHz, result.Spectral.Rolloff*100, result.Spectral.RolloffHz)
		}

		result.Issues = append(result.Issues, Issue{
			Check:      CheckSpectral,
			Summary:    summary,
			Confidence: 1.0,
		})
	}

	// Calculate summary stats
	for _, issue := range result.Issues {
		if issue.Detected {
			result.IssueCount++
		}

		if issue.Severity > result.WorstSeverity {
			result.WorstSeverity = issue.Severity
		}
	}
}
