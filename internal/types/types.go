//nolint:staticcheck // too dumb on Db vs. DB
package types

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidInput is returned when a buffer or format is structurally unusable.
var ErrInvalidInput = errors.New("invalid input")

type BitDepth uint

const (
	Depth16 BitDepth = 16
	Depth24 BitDepth = 24
	Depth32 BitDepth = 32
)

// PCMFormat describes interleaved little-endian PCM as produced by ffmpeg or read from stdin.
// Float selects IEEE 754 samples (only valid with Depth32).
type PCMFormat struct {
	SampleRate int
	BitDepth   BitDepth
	Channels   uint
	Float      bool
	Layout     Layout
}

// AudioBuffer is a decoded signal: one slice of samples per channel, nominally in [-1.0, 1.0].
// Analyzers never modify it.
type AudioBuffer struct {
	SampleRate int
	Channels   [][]float64
	Layout     Layout // zero value means "infer from channel count"
}

// Frames returns the per-channel sample count.
func (b *AudioBuffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}

	return len(b.Channels[0])
}

// Duration returns the signal length in seconds.
func (b *AudioBuffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}

	return float64(b.Frames()) / float64(b.SampleRate)
}

// Elapsed returns the signal length as a time.Duration.
func (b *AudioBuffer) Elapsed() time.Duration {
	return time.Duration(b.Duration() * float64(time.Second))
}

// ResolvedLayout returns the explicit layout, or the default one for the channel count.
func (b *AudioBuffer) ResolvedLayout() Layout {
	if b.Layout != LayoutUnknown {
		return b.Layout
	}

	return LayoutForChannels(len(b.Channels))
}

// Validate reports structural problems. Numeric content (NaN, silence) is not checked here.
func (b *AudioBuffer) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil buffer", ErrInvalidInput)
	}

	if b.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidInput, b.SampleRate)
	}

	if len(b.Channels) == 0 {
		return fmt.Errorf("%w: no channels", ErrInvalidInput)
	}

	frames := len(b.Channels[0])
	if frames == 0 {
		return fmt.Errorf("%w: empty channel", ErrInvalidInput)
	}

	for ch, samples := range b.Channels {
		if len(samples) != frames {
			return fmt.Errorf("%w: channel %d has %d samples, channel 0 has %d",
				ErrInvalidInput, ch, len(samples), frames)
		}
	}

	if b.Layout != LayoutUnknown && b.Layout.Channels() != len(b.Channels) {
		return fmt.Errorf("%w: layout %s expects %d channels, got %d",
			ErrInvalidInput, b.Layout, b.Layout.Channels(), len(b.Channels))
	}

	return nil
}

// Unmeasurable is the sentinel used for levels that cannot be computed (silence, everything gated).
// Display layers render it as "N/A".
func Unmeasurable() float64 {
	return math.Inf(-1)
}

// IsMeasured reports whether v is a real reading rather than the unmeasurable sentinel.
func IsMeasured(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

/*
Loudness Analysis Interpretation

## Integrated Loudness (LUFS)

| IntegratedLUFS | Context                                 |
|----------------|-----------------------------------------|
| -24 to -23     | Broadcast (EBU R128, ATSC A/85)         |
| -16 to -14     | Streaming target range                  |
| -12 to -10     | Loud/compressed master                  |
| -9 to -6       | Extremely loud (loudness war casualty)  |
| N/A            | Silence, or nothing above -70 LUFS      |

## Streaming Targets

| Platform       | Target LUFS | Normalization          |
|----------------|-------------|------------------------|
| Spotify        | -14         | Turns down loud tracks |
| Apple Music    | -16         | Sound Check enabled    |
| YouTube        | -14         | Always normalized      |
| EBU R128       | -23         | Broadcast              |
| ATSC A/85      | -24         | Broadcast (US)         |

## Momentary / Short-term

Momentary is the most recent 400ms block, short-term the most recent 3s window,
both on a 100ms hop. They are "current" readings: for a file, the reading at its end.
The maxima over the whole signal are reported next to them.

## Loudness Range (LRA)

| LRA (LU) | Interpretation                          |
|----------|-----------------------------------------|
| 0        | Single window, or flat signal           |
| < 5      | Very compressed, little dynamics        |
| 5-10     | Moderate dynamics, typical pop/rock     |
| 10-15    | Good dynamics, well-mastered            |
| 15-25    | Wide dynamics, classical/jazz           |
| > 25     | Extreme dynamics, may need limiting     |

## Channel Weights

| Channel            | Weight |
|--------------------|--------|
| L, R, C            | 1.0    |
| LFE                | 0.0    |
| Ls, Rs, rear/side  | 1.41   |
*/

// LoudnessResult contains the ITU-R BS.1770-4 measurements.
// Unmeasurable readings hold Unmeasurable() (-Inf), never 0.
type LoudnessResult struct {
	IntegratedLUFS float64 // gated, rounded to 0.1
	MomentaryLUFS  float64 // last 400ms block
	ShortTermLUFS  float64 // last 3s window
	MomentaryMax   float64
	ShortTermMax   float64
	LoudnessRange  float64 // LU
	LRALow         float64 // LUFS, 10th percentile of gated short-term
	LRAHigh        float64 // LUFS, 95th percentile of gated short-term

	Blocks         int // 400ms blocks produced
	GatedBlocks    int // blocks surviving both gates
	ShortTermCount int // 3s windows produced

	NonFiniteSamples uint64 // NaN/Inf samples ignored
	Frames           uint64
}

/*
Level Interpretation

Peak and RMS are unweighted and measured on the raw samples.

| PeakDb       | Interpretation                          |
|--------------|-----------------------------------------|
| 0            | Full scale. Likely clipped.             |
| -1 to 0      | No headroom for lossy encoding          |
| -6 to -1     | Typical master                          |
| N/A          | Digital silence                         |

RMS is computed over every sample of every channel (not channel 0 only).
*/

// LevelResult contains unweighted peak and RMS.
type LevelResult struct {
	Peak             float64 // linear, 0-1
	PeakDb           float64
	PeakChannel      int
	RMS              float64 // linear
	RMSDb            float64
	ChannelPeaks     []float64
	ChannelRMS       []float64
	NonFiniteSamples uint64
	Frames           uint64
}

// SpectralResult contains coarse spectral descriptors of the mono mix.
type SpectralResult struct {
	CentroidHz float64 // magnitude-weighted mean frequency
	RolloffHz  float64 // frequency below which RolloffFraction of the energy lies
	Rolloff    float64 // the fraction used (0.85 by default)
	Windows    int     // FFT windows averaged; 0 = signal too short or silent
	FFTSize    int
	Frames     uint64
}

// WaveformColumn is the sample range covered by one display column.
type WaveformColumn struct {
	Min float64
	Max float64
}

// WaveformResult is a min/max envelope of channel 0, suitable for drawing an overview.
type WaveformResult struct {
	Columns          []WaveformColumn
	SamplesPerColumn int
}
