package waveform

import (
	"fmt"
	"math"

	"github.com/farcloser/auricle/internal/types"
)

// DefaultWidth is the overview width used when none is requested.
const DefaultWidth = 600

// Envelope splits channel 0 into width columns and keeps the min and max sample of each.
// Signals shorter than width produce one column per sample. Non-finite samples are ignored.
func Envelope(buf *types.AudioBuffer, width int) (*types.WaveformResult, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	if width <= 0 {
		return nil, fmt.Errorf("%w: waveform width %d", types.ErrInvalidInput, width)
	}

	samples := buf.Channels[0]
	step := int(math.Ceil(float64(len(samples)) / float64(width)))
	columns := make([]types.WaveformColumn, 0, width)

	for start := 0; start < len(samples); start += step {
		end := min(start+step, len(samples))
		column := types.WaveformColumn{Min: math.Inf(1), Max: math.Inf(-1)}
		seen := false

		for _, s := range samples[start:end] {
			if math.IsNaN(s) || math.IsInf(s, 0) {
				continue
			}

			seen = true
			column.Min = min(column.Min, s)
			column.Max = max(column.Max, s)
		}

		if !seen {
			column = types.WaveformColumn{}
		}

		columns = append(columns, column)
	}

	return &types.WaveformResult{Columns: columns, SamplesPerColumn: step}, nil
}
