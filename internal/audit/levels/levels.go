//nolint:staticcheck // too dumb on Db vs. DB
package levels

import (
	"log/slog"
	"math"

	"github.com/farcloser/auricle/internal/types"
)

// Measure computes unweighted sample peak and RMS over every channel.
// Non-finite samples are skipped and counted; silence yields types.Unmeasurable() dB values.
func Measure(buf *types.AudioBuffer) (*types.LevelResult, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	numChannels := len(buf.Channels)

	result := &types.LevelResult{
		ChannelPeaks: make([]float64, numChannels),
		ChannelRMS:   make([]float64, numChannels),
		Frames:       uint64(buf.Frames()),
	}

	var (
		sumSquares float64
		counted    uint64
	)

	for ch, samples := range buf.Channels {
		var (
			channelPeak float64
			channelSum  float64
			channelN    uint64
		)

		for _, s := range samples {
			if math.IsNaN(s) || math.IsInf(s, 0) {
				result.NonFiniteSamples++

				continue
			}

			abs := math.Abs(s)
			if abs > channelPeak {
				channelPeak = abs
			}

			channelSum += s * s
			channelN++
		}

		result.ChannelPeaks[ch] = channelPeak
		if channelN > 0 {
			result.ChannelRMS[ch] = math.Sqrt(channelSum / float64(channelN))
		}

		if channelPeak > result.Peak {
			result.Peak = channelPeak
			result.PeakChannel = ch
		}

		sumSquares += channelSum
		counted += channelN
	}

	if result.NonFiniteSamples > 0 {
		slog.Debug("levels.Measure", "non-finite samples", result.NonFiniteSamples)
	}

	if counted > 0 {
		result.RMS = math.Sqrt(sumSquares / float64(counted))
	}

	result.PeakDb = ToDb(result.Peak)
	result.RMSDb = ToDb(result.RMS)

	return result, nil
}

// ToDb converts a linear amplitude to dBFS. Zero and negative values are unmeasurable.
func ToDb(v float64) float64 {
	if !(v > 0) {
		return types.Unmeasurable()
	}

	return 20 * math.Log10(v)
}
