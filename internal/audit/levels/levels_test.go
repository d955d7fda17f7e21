//nolint:staticcheck // too dumb on Db vs. DB
package levels

import (
	"errors"
	"math"
	"testing"

	"github.com/farcloser/auricle/internal/types"
)

func sine(amplitude float64, frames int) []float64 {
	out := make([]float64, frames)
	for i := range out {
		// 1 kHz at 48k: the period is exactly 48 samples, so sample 12 hits the crest.
		out[i] = amplitude * math.Sin(2*math.Pi*1000*float64(i)/48000)
	}

	return out
}

func TestMeasureSinePeak(t *testing.T) {
	t.Parallel()

	for _, amplitude := range []float64{1.0, 0.5, 0.1} {
		res, err := Measure(&types.AudioBuffer{SampleRate: 48000, Channels: [][]float64{sine(amplitude, 48000)}})
		if err != nil {
			t.Fatal(err)
		}

		if math.Abs(res.Peak-amplitude) > 1e-9 {
			t.Errorf("peak = %v, want %v", res.Peak, amplitude)
		}

		if math.Abs(res.PeakDb-20*math.Log10(amplitude)) > 1e-9 {
			t.Errorf("peak dB = %v, want %v", res.PeakDb, 20*math.Log10(amplitude))
		}

		if math.Abs(res.RMS-amplitude/math.Sqrt2) > 1e-6 {
			t.Errorf("rms = %v, want %v", res.RMS, amplitude/math.Sqrt2)
		}
	}
}

func TestMeasureSilence(t *testing.T) {
	t.Parallel()

	res, err := Measure(&types.AudioBuffer{SampleRate: 48000, Channels: [][]float64{make([]float64, 100)}})
	if err != nil {
		t.Fatal(err)
	}

	if types.IsMeasured(res.PeakDb) || types.IsMeasured(res.RMSDb) {
		t.Errorf("silence: peak %v dB, rms %v dB, want unmeasurable", res.PeakDb, res.RMSDb)
	}
}

func TestMeasureAcrossChannels(t *testing.T) {
	t.Parallel()

	left := sine(0.25, 4800)
	right := sine(0.5, 4800)

	res, err := Measure(&types.AudioBuffer{SampleRate: 48000, Channels: [][]float64{left, right}})
	if err != nil {
		t.Fatal(err)
	}

	if res.PeakChannel != 1 || math.Abs(res.Peak-0.5) > 1e-9 {
		t.Errorf("peak = %v on channel %d, want 0.5 on 1", res.Peak, res.PeakChannel)
	}

	want := math.Sqrt((0.25*0.25 + 0.5*0.5) / 4)
	if math.Abs(res.RMS-want) > 1e-6 {
		t.Errorf("rms = %v, want %v (all channels)", res.RMS, want)
	}
}

func TestMeasureNonFinite(t *testing.T) {
	t.Parallel()

	samples := []float64{0.5, math.NaN(), -0.5, math.Inf(-1)}

	res, err := Measure(&types.AudioBuffer{SampleRate: 48000, Channels: [][]float64{samples}})
	if err != nil {
		t.Fatal(err)
	}

	if res.NonFiniteSamples != 2 || res.Peak != 0.5 || res.RMS != 0.5 {
		t.Errorf("got %+v", res)
	}
}

func TestMeasureInvalid(t *testing.T) {
	t.Parallel()

	if _, err := Measure(&types.AudioBuffer{SampleRate: -1, Channels: [][]float64{{0}}}); !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("err = %v", err)
	}
}

func TestToDb(t *testing.T) {
	t.Parallel()

	if ToDb(1) != 0 {
		t.Errorf("ToDb(1) = %v", ToDb(1))
	}

	if types.IsMeasured(ToDb(0)) || types.IsMeasured(ToDb(-1)) {
		t.Error("non-positive amplitudes must be unmeasurable")
	}
}
