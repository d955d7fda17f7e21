package loudness

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/farcloser/auricle/internal/types"
)

const (
	lufsOffset = -0.691

	absoluteGate = -70.0 // LUFS
	relativeGate = -10.0 // LU below the absolute-gated mean

	momentaryWindow = 0.4 // seconds
	shortTermWindow = 3.0 // seconds
	hopDuration     = 0.1 // seconds, 75% overlap on the momentary window

	lraLowPercentile  = 0.10
	lraHighPercentile = 0.95
)

// Windows holds the sample-rate dependent sizes for one measurement.
type Windows struct {
	Block     int // momentary / gating block
	ShortTerm int
	Hop       int
}

// WindowsFor derives block sizes from the operating sample rate.
func WindowsFor(sampleRate int) Windows {
	fs := float64(sampleRate)

	return Windows{
		Block:     int(math.Round(momentaryWindow * fs)),
		ShortTerm: int(math.Round(shortTermWindow * fs)),
		Hop:       max(int(math.Round(hopDuration*fs)), 1),
	}
}

// Measure runs the BS.1770-4 measurement over the whole buffer.
// The buffer is only read. Structural problems and rates below MinSampleRate return
// types.ErrInvalidInput; numeric
// problems never error and surface as types.Unmeasurable() readings instead.
func Measure(buf *types.AudioBuffer) (*types.LoudnessResult, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	if buf.SampleRate < MinSampleRate {
		return nil, fmt.Errorf("%w: sample rate %d Hz is below the %d Hz K-weighting minimum",
			types.ErrInvalidInput, buf.SampleRate, MinSampleRate)
	}

	windows := WindowsFor(buf.SampleRate)
	weights := types.ChannelWeights(buf.ResolvedLayout(), len(buf.Channels))

	power, nonFinite := weightedPower(buf, weights)
	if nonFinite > 0 {
		slog.Debug("loudness.Measure", "non-finite samples", nonFinite, "stage", "filter")
	}

	blockPowers := windowMeans(power, windows.Block, windows.Hop)
	shortTermPowers := windowMeans(power, windows.ShortTerm, windows.Hop)

	result := &types.LoudnessResult{
		IntegratedLUFS:   types.Unmeasurable(),
		MomentaryLUFS:    types.Unmeasurable(),
		ShortTermLUFS:    types.Unmeasurable(),
		MomentaryMax:     types.Unmeasurable(),
		ShortTermMax:     types.Unmeasurable(),
		LRALow:           types.Unmeasurable(),
		LRAHigh:          types.Unmeasurable(),
		Blocks:           len(blockPowers),
		ShortTermCount:   len(shortTermPowers),
		NonFiniteSamples: nonFinite,
		Frames:           uint64(buf.Frames()),
	}

	if len(blockPowers) > 0 {
		result.MomentaryLUFS = PowerToLUFS(blockPowers[len(blockPowers)-1])
		result.MomentaryMax = PowerToLUFS(floats.Max(blockPowers))
	}

	if len(shortTermPowers) > 0 {
		result.ShortTermLUFS = PowerToLUFS(shortTermPowers[len(shortTermPowers)-1])
		result.ShortTermMax = PowerToLUFS(floats.Max(shortTermPowers))
	}

	integrated, gated := IntegratedLoudness(blockPowers)
	result.IntegratedLUFS = RoundLUFS(integrated)
	result.GatedBlocks = gated

	result.LoudnessRange, result.LRALow, result.LRAHigh = LoudnessRange(shortTermPowers)

	return result, nil
}

// weightedPower K-weights every channel and returns, per frame, the channel-weighted
// sum of squared filtered samples. Zero-weight channels (LFE) are skipped entirely.
func weightedPower(buf *types.AudioBuffer, weights []float64) ([]float64, uint64) {
	pre, rlb := kWeighting(buf.SampleRate)
	power := make([]float64, buf.Frames())

	var nonFinite uint64

	for ch, samples := range buf.Channels {
		weight := weights[ch]
		if weight == 0 {
			continue
		}

		// Filter state is per channel and per call.
		var preState, rlbState biquadState

		for i, sample := range samples {
			if math.IsNaN(sample) || math.IsInf(sample, 0) {
				nonFinite++

				sample = 0
			}

			filtered := preState.process(&pre, sample)
			filtered = rlbState.process(&rlb, filtered)

			sq := filtered * filtered
			if math.IsNaN(sq) || math.IsInf(sq, 0) {
				nonFinite++

				// Do not let an overflow poison the rest of the channel.
				preState = biquadState{}
				rlbState = biquadState{}

				continue
			}

			power[i] += weight * sq
		}
	}

	return power, nonFinite
}

// windowMeans returns the mean of power over every complete window of the given size,
// windows starting every hop samples. Sums are built from hop-sized segments so that long
// signals do not accumulate the drift of a running sum.
func windowMeans(power []float64, window, hop int) []float64 {
	if window <= 0 || hop <= 0 || len(power) < window {
		return nil
	}

	segments := make([]float64, len(power)/hop)
	for k := range segments {
		segments[k] = floats.Sum(power[k*hop : (k+1)*hop])
	}

	whole := window / hop
	rest := window - whole*hop
	count := (len(power)-window)/hop + 1
	means := make([]float64, count)

	for j := range count {
		sum := floats.Sum(segments[j : j+whole])

		if rest > 0 {
			start := (j + whole) * hop
			sum += floats.Sum(power[start : start+rest])
		}

		means[j] = sum / float64(window)
	}

	return means
}

// PowerToLUFS converts a weighted mean square to LUFS. Non-positive power is unmeasurable.
func PowerToLUFS(power float64) float64 {
	if !(power > 0) || math.IsInf(power, 1) {
		return types.Unmeasurable()
	}

	return lufsOffset + 10*math.Log10(power)
}

// RMSToLUFS converts an RMS value to LUFS without ever taking the log of a non-positive number.
func RMSToLUFS(rms float64) float64 {
	if !(rms > 0) {
		return types.Unmeasurable()
	}

	return PowerToLUFS(rms * rms)
}

// RoundLUFS rounds to one decimal, half to even, and never returns negative zero.
func RoundLUFS(lufs float64) float64 {
	if !types.IsMeasured(lufs) {
		return lufs
	}

	rounded := math.RoundToEven(lufs*10) / 10
	if rounded == 0 {
		return 0
	}

	return rounded
}

// IntegratedLoudness applies the absolute and relative gates to block powers.
// It returns the gated loudness and the number of blocks that survived both gates.
func IntegratedLoudness(blockPowers []float64) (float64, int) {
	absGated := make([]float64, 0, len(blockPowers))

	for _, p := range blockPowers {
		if PowerToLUFS(p) >= absoluteGate {
			absGated = append(absGated, p)
		}
	}

	if len(absGated) == 0 {
		return types.Unmeasurable(), 0
	}

	threshold := PowerToLUFS(floats.Sum(absGated)/float64(len(absGated))) + relativeGate

	var (
		sum   float64
		count int
	)

	for _, p := range absGated {
		if PowerToLUFS(p) >= threshold {
			sum += p
			count++
		}
	}

	if count == 0 {
		return types.Unmeasurable(), 0
	}

	return PowerToLUFS(sum / float64(count)), count
}

// LoudnessRange computes LRA from short-term window powers: absolute gate, then the spread
// between the 10th and 95th percentiles using a truncating index floor(p*N).
// No surviving window yields 0 with unmeasurable bounds.
func LoudnessRange(shortTermPowers []float64) (lra, low, high float64) {
	values := make([]float64, 0, len(shortTermPowers))

	for _, p := range shortTermPowers {
		if lufs := PowerToLUFS(p); lufs >= absoluteGate {
			values = append(values, lufs)
		}
	}

	if len(values) == 0 {
		return 0, types.Unmeasurable(), types.Unmeasurable()
	}

	slices.Sort(values)

	low = values[percentileIndex(lraLowPercentile, len(values))]
	high = values[percentileIndex(lraHighPercentile, len(values))]

	return high - low, low, high
}

func percentileIndex(p float64, n int) int {
	return min(int(math.Floor(p*float64(n))), n-1)
}
