package auricle

import (
	"fmt"
	"strings"

	"github.com/farcloser/auricle/internal/types"
)

// Platform is a delivery target with its own integrated loudness reference.
type Platform int

const (
	PlatformSpotify Platform = iota // -14 LUFS (default)
	PlatformApple                   // -16 LUFS, Sound Check
	PlatformYouTube                 // -14 LUFS
	PlatformEBU                     // EBU R128 broadcast, -23 LUFS
	PlatformATSC                    // ATSC A/85 broadcast (US), -24 LUFS
)

func (p Platform) String() string {
	switch p {
	case PlatformSpotify:
		return "spotify"
	case PlatformApple:
		return "apple"
	case PlatformYouTube:
		return "youtube"
	case PlatformEBU:
		return "ebu-r128"
	case PlatformATSC:
		return "atsc-a85"
	}

	return "unknown"
}

// Target returns the integrated loudness reference in LUFS.
func (p Platform) Target() float64 {
	switch p {
	case PlatformApple:
		return -16
	case PlatformEBU:
		return -23
	case PlatformATSC:
		return -24
	default:
		return -14
	}
}

// ParsePlatform converts a string to a Platform value.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(s) {
	case "spotify", "":
		return PlatformSpotify, nil
	case "apple", "apple-music":
		return PlatformApple, nil
	case "youtube":
		return PlatformYouTube, nil
	case "ebu", "ebu-r128", "r128":
		return PlatformEBU, nil
	case "atsc", "atsc-a85":
		return PlatformATSC, nil
	default:
		return 0, fmt.Errorf("%w: unknown platform %q (valid: spotify, apple, youtube, ebu, atsc)",
			types.ErrInvalidInput, s)
	}
}

// OptionsForPlatform returns the default Options for a delivery target.
// Broadcast targets are stricter on deviation and ask for more sample-peak headroom.
func OptionsForPlatform(platform Platform) Options {
	opts := Options{
		Checks:          ChecksAll,
		Platform:        platform,
		TargetLUFS:      platform.Target(),
		TargetDeviation: Bands{Mild: 1, Moderate: 3, Severe: 6},
		PeakHeadroom:    Bands{Mild: -1, Moderate: -0.3, Severe: 0},
		Dynamics:        Bands{Mild: 5, Moderate: 3, Severe: 1.5},
		NonFinite:       Bands{Mild: 1, Moderate: 100, Severe: 10000},
	}

	switch platform {
	case PlatformEBU, PlatformATSC:
		opts.TargetDeviation = Bands{Mild: 0.5, Moderate: 1, Severe: 2}
		opts.PeakHeadroom = Bands{Mild: -2, Moderate: -1, Severe: 0}
	case PlatformSpotify, PlatformApple, PlatformYouTube:
	}

	return opts
}

// Summary is the flat analysis record: levels, loudness figures and the signal's shape.
// Unmeasurable readings are -Inf; use types.FormatLevel or types.Optional to present them.
type Summary struct {
	PeakLevel       float64 // linear, 0-1
	PeakDb          float64
	RMSLevel        float64 // linear
	RMSDb           float64
	MomentaryLUFS   float64
	ShortTermLUFS   float64
	IntegratedLUFS  float64
	LoudnessRangeLU float64
	DurationSeconds float64
	SampleRate      int
	ChannelCount    int
}

// Summary flattens the result.
func (r *Result) Summary() Summary {
	return Summary{
		PeakLevel:       r.Levels.Peak,
		PeakDb:          r.Levels.PeakDb,
		RMSLevel:        r.Levels.RMS,
		RMSDb:           r.Levels.RMSDb,
		MomentaryLUFS:   r.Loudness.MomentaryLUFS,
		ShortTermLUFS:   r.Loudness.ShortTermLUFS,
		IntegratedLUFS:  r.Loudness.IntegratedLUFS,
		LoudnessRangeLU: r.Loudness.LoudnessRange,
		DurationSeconds: r.DurationSeconds,
		SampleRate:      r.SampleRate,
		ChannelCount:    r.ChannelCount,
	}
}
