package spectral

import (
	"math"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/farcloser/auricle/internal/types"
)

const minFFTSize = 256

type Options struct {
	FFTSize    int     // default 8192, shrunk to a power of two for short signals
	WindowsMax int     // max windows to analyze, evenly spaced (default 100)
	Rolloff    float64 // energy fraction for the rolloff frequency (default 0.85)
}

func DefaultOptions() Options {
	return Options{
		FFTSize:    8192,
		WindowsMax: 100,
		Rolloff:    0.85,
	}
}

// Analyze computes the average magnitude spectrum of the mono mix and derives centroid and rolloff.
// Silence and signals shorter than the minimum FFT size yield Windows == 0.
func Analyze(buf *types.AudioBuffer, opts Options) (*types.SpectralResult, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	defaults := DefaultOptions()
	if opts.FFTSize <= 0 {
		opts.FFTSize = defaults.FFTSize
	}

	if opts.WindowsMax <= 0 {
		opts.WindowsMax = defaults.WindowsMax
	}

	if !(opts.Rolloff > 0 && opts.Rolloff < 1) {
		opts.Rolloff = defaults.Rolloff
	}

	samples := monoMix(buf)

	fftSize := opts.FFTSize
	for fftSize > len(samples) && fftSize > minFFTSize {
		fftSize /= 2
	}

	result := &types.SpectralResult{
		Rolloff: opts.Rolloff,
		FFTSize: fftSize,
		Frames:  uint64(len(samples)),
	}

	if len(samples) < fftSize {
		return result, nil
	}

	positions := windowPositions(len(samples), fftSize, opts.WindowsMax)
	hann := window.Hann(fftSize)
	fft := fourier.NewFFT(fftSize)
	fftIn := make([]float64, fftSize)
	magnitudeSum := make([]float64, fftSize/2+1)

	var coeffs []complex128

	windows := 0

	for _, pos := range positions {
		for i := range fftSize {
			fftIn[i] = samples[pos+i] * hann[i]
		}

		coeffs = fft.Coefficients(coeffs, fftIn)

		var windowEnergy float64

		for i, c := range coeffs {
			mag := math.Hypot(real(c), imag(c))
			magnitudeSum[i] += mag
			windowEnergy += mag
		}

		if windowEnergy > 0 {
			windows++
		}
	}

	if windows == 0 {
		return result, nil
	}

	binHz := float64(buf.SampleRate) / float64(fftSize)

	result.Windows = windows
	result.CentroidHz = centroid(magnitudeSum, binHz)
	result.RolloffHz = rolloff(magnitudeSum, binHz, opts.Rolloff)

	return result, nil
}

// monoMix averages all channels. Non-finite samples contribute nothing.
func monoMix(buf *types.AudioBuffer) []float64 {
	frames := buf.Frames()
	mix := make([]float64, frames)
	scale := 1 / float64(len(buf.Channels))

	for _, samples := range buf.Channels {
		for i, s := range samples {
			if math.IsNaN(s) || math.IsInf(s, 0) {
				continue
			}

			mix[i] += s * scale
		}
	}

	return mix
}

// windowPositions spreads up to maxWindows FFT windows evenly across the signal.
func windowPositions(total, size, maxWindows int) []int {
	available := total - size
	if available < 0 {
		return nil
	}

	count := available/size + 1
	if count > maxWindows {
		count = maxWindows
	}

	positions := make([]int, count)
	if count == 1 {
		return positions
	}

	for i := range positions {
		positions[i] = i * available / (count - 1)
	}

	return positions
}

func centroid(magnitude []float64, binHz float64) float64 {
	var weighted float64

	for i, mag := range magnitude {
		weighted += float64(i) * binHz * mag
	}

	total := floats.Sum(magnitude)
	if total == 0 {
		return 0
	}

	return weighted / total
}

// rolloff returns the frequency of the first bin at which the cumulative energy reaches fraction of the total.
func rolloff(magnitude []float64, binHz, fraction float64) float64 {
	energy := make([]float64, len(magnitude))
	for i, mag := range magnitude {
		energy[i] = mag * mag
	}

	target := fraction * floats.Sum(energy)

	var cumulative float64

	for i, e := range energy {
		cumulative += e
		if cumulative >= target {
			return float64(i) * binHz
		}
	}

	return float64(len(energy)-1) * binHz
}
