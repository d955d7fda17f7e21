package loudness

import "math"

type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

type biquadState struct {
	z1, z2 float64
}

// process runs one sample through a transposed direct form II section.
func (s *biquadState) process(b *biquad, in float64) float64 {
	out := b.b0*in + s.z1
	s.z1 = b.b1*in - b.a1*out + s.z2
	s.z2 = b.b2*in - b.a2*out

	return out
}

// MinSampleRate is the lowest rate measured. The shelf stage sits at 1.68 kHz and needs to stay
// well under Nyquist for the bilinear transform to hold.
const MinSampleRate = 8000

// kWeighting derives the two K-weighting stages for a sample rate from their analog prototypes,
// so rates other than 48k get exact coefficients rather than the tabulated 48k ones.
// Stage 1 is the high shelf modelling the head, stage 2 the RLB high-pass. Order matters.
func kWeighting(sampleRate int) (shelf, highPass biquad) {
	fs := float64(sampleRate)

	const (
		shelfFreq  = 1681.974450955533
		shelfGain  = 3.999843853973347 // dB
		shelfQ     = 0.7071752369554196
		shelfBandP = 0.4996667741545416

		highPassFreq = 38.13547087602444
		highPassQ    = 0.5003270373238773
	)

	k := math.Tan(math.Pi * shelfFreq / fs)
	vh := math.Pow(10, shelfGain/20)
	vb := math.Pow(vh, shelfBandP)

	norm := 1 + k/shelfQ + k*k
	shelf = biquad{
		b0: (vh + vb*k/shelfQ + k*k) / norm,
		b1: 2 * (k*k - vh) / norm,
		b2: (vh - vb*k/shelfQ + k*k) / norm,
		a1: 2 * (k*k - 1) / norm,
		a2: (1 - k/shelfQ + k*k) / norm,
	}

	k = math.Tan(math.Pi * highPassFreq / fs)

	norm = 1 + k/highPassQ + k*k
	highPass = biquad{
		b0: 1 / norm,
		b1: -2 / norm,
		b2: 1 / norm,
		a1: 2 * (k*k - 1) / norm,
		a2: (1 - k/highPassQ + k*k) / norm,
	}

	return shelf, highPass
}
