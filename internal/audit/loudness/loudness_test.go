package loudness

import (
	"errors"
	"math"
	"reflect"
	"slices"
	"testing"

	"github.com/farcloser/auricle/internal/types"
)

func sine(freq, amplitude float64, sampleRate int, seconds float64) []float64 {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)

	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}

	return out
}

func mono(samples []float64, sampleRate int) *types.AudioBuffer {
	return &types.AudioBuffer{SampleRate: sampleRate, Channels: [][]float64{samples}}
}

func lufsToPower(lufs float64) float64 {
	return math.Pow(10, (lufs-lufsOffset)/10)
}

func TestMeasureReferenceTone(t *testing.T) {
	t.Parallel()

	for _, rate := range []int{44100, 48000, 96000} {
		res, err := Measure(mono(sine(997, 1.0, rate, 10), rate))
		if err != nil {
			t.Fatalf("%d: %v", rate, err)
		}

		if math.Abs(res.IntegratedLUFS-(-3.01)) > 0.1 {
			t.Errorf("%d: integrated = %.3f, want -3.01 ± 0.1", rate, res.IntegratedLUFS)
		}
	}
}

func TestMeasureConstantToneConverges(t *testing.T) {
	t.Parallel()

	res, err := Measure(mono(sine(1000, 0.5, 48000, 8), 48000))
	if err != nil {
		t.Fatal(err)
	}

	for name, v := range map[string]float64{
		"momentary":  res.MomentaryLUFS,
		"short-term": res.ShortTermLUFS,
	} {
		if math.Abs(v-res.IntegratedLUFS) > 0.1 {
			t.Errorf("%s = %.3f, integrated = %.3f", name, v, res.IntegratedLUFS)
		}
	}

	if res.GatedBlocks != res.Blocks {
		t.Errorf("gated blocks = %d, want all %d", res.GatedBlocks, res.Blocks)
	}

	if res.LoudnessRange > 0.1 {
		t.Errorf("LRA = %.3f, want ~0 for a constant tone", res.LoudnessRange)
	}
}

func TestMeasureBlockCounts(t *testing.T) {
	t.Parallel()

	// 10s at 48k: (480000-19200)/4800+1 blocks, (480000-144000)/4800+1 short-term windows.
	res, err := Measure(mono(sine(1000, 0.5, 48000, 10), 48000))
	if err != nil {
		t.Fatal(err)
	}

	if res.Blocks != 97 {
		t.Errorf("blocks = %d, want 97", res.Blocks)
	}

	if res.ShortTermCount != 71 {
		t.Errorf("short-term windows = %d, want 71", res.ShortTermCount)
	}
}

func TestMeasureSilence(t *testing.T) {
	t.Parallel()

	res, err := Measure(mono(make([]float64, 48000*4), 48000))
	if err != nil {
		t.Fatal(err)
	}

	for name, v := range map[string]float64{
		"integrated":    res.IntegratedLUFS,
		"momentary":     res.MomentaryLUFS,
		"short-term":    res.ShortTermLUFS,
		"momentary max": res.MomentaryMax,
	} {
		if types.IsMeasured(v) {
			t.Errorf("%s = %v, want unmeasurable", name, v)
		}
	}

	if res.LoudnessRange != 0 {
		t.Errorf("LRA = %v, want 0", res.LoudnessRange)
	}
}

func TestMeasureBelowAbsoluteGate(t *testing.T) {
	t.Parallel()

	// ~-83 LUFS: every block is dropped by the absolute gate.
	res, err := Measure(mono(sine(1000, 0.0001, 48000, 5), 48000))
	if err != nil {
		t.Fatal(err)
	}

	if types.IsMeasured(res.IntegratedLUFS) {
		t.Errorf("integrated = %v, want unmeasurable", res.IntegratedLUFS)
	}

	// Momentary is ungated.
	if !types.IsMeasured(res.MomentaryLUFS) || res.MomentaryLUFS > -70 {
		t.Errorf("momentary = %v, want a reading below -70", res.MomentaryLUFS)
	}
}

func TestMeasureLFEIsIgnored(t *testing.T) {
	t.Parallel()

	const rate = 48000

	tone := sine(1000, 0.5, rate, 5)
	silent := make([]float64, len(tone))

	surround := func(active int) *types.AudioBuffer {
		channels := make([][]float64, 6)
		for i := range channels {
			channels[i] = silent
		}

		channels[active] = tone

		return &types.AudioBuffer{SampleRate: rate, Channels: channels, Layout: types.Layout5_1}
	}

	center, err := Measure(surround(2))
	if err != nil {
		t.Fatal(err)
	}

	lfe, err := Measure(surround(3))
	if err != nil {
		t.Fatal(err)
	}

	if !types.IsMeasured(center.IntegratedLUFS) {
		t.Fatalf("center integrated unmeasurable")
	}

	if !(lfe.IntegratedLUFS < center.IntegratedLUFS) {
		t.Errorf("LFE %.2f should be quieter than center %.2f", lfe.IntegratedLUFS, center.IntegratedLUFS)
	}
}

func TestMeasureSurroundWeight(t *testing.T) {
	t.Parallel()

	const rate = 48000

	tone := sine(1000, 0.25, rate, 5)
	silent := make([]float64, len(tone))

	front, err := Measure(&types.AudioBuffer{
		SampleRate: rate,
		Channels:   [][]float64{tone, silent, silent, silent, silent, silent},
		Layout:     types.Layout5_1,
	})
	if err != nil {
		t.Fatal(err)
	}

	rear, err := Measure(&types.AudioBuffer{
		SampleRate: rate,
		Channels:   [][]float64{silent, silent, silent, silent, tone, silent},
		Layout:     types.Layout5_1,
	})
	if err != nil {
		t.Fatal(err)
	}

	// sqrt(2) weight on power is +1.5 dB.
	diff := rear.IntegratedLUFS - front.IntegratedLUFS
	if math.Abs(diff-10*math.Log10(math.Sqrt2)) > 0.15 {
		t.Errorf("surround - front = %.2f LU, want ~1.5", diff)
	}
}

func TestMeasureSingleWindowLRA(t *testing.T) {
	t.Parallel()

	// Exactly one short-term window, and a buffer too short for any.
	for _, seconds := range []float64{3, 0.45} {
		res, err := Measure(mono(sine(1000, 0.5, 48000, seconds), 48000))
		if err != nil {
			t.Fatal(err)
		}

		if res.LoudnessRange != 0 {
			t.Errorf("%.2fs: LRA = %v, want 0", seconds, res.LoudnessRange)
		}
	}
}

func TestMeasureShortBuffer(t *testing.T) {
	t.Parallel()

	res, err := Measure(mono(sine(1000, 0.5, 48000, 0.2), 48000))
	if err != nil {
		t.Fatal(err)
	}

	if res.Blocks != 0 || types.IsMeasured(res.MomentaryLUFS) || types.IsMeasured(res.IntegratedLUFS) {
		t.Errorf("sub-block buffer: %+v", res)
	}
}

func TestMeasureNonFinite(t *testing.T) {
	t.Parallel()

	samples := sine(997, 1.0, 48000, 5)
	samples[1000] = math.NaN()
	samples[2000] = math.Inf(1)

	res, err := Measure(mono(samples, 48000))
	if err != nil {
		t.Fatal(err)
	}

	if res.NonFiniteSamples != 2 {
		t.Errorf("non-finite = %d, want 2", res.NonFiniteSamples)
	}

	if !types.IsMeasured(res.IntegratedLUFS) || math.Abs(res.IntegratedLUFS-(-3.01)) > 0.1 {
		t.Errorf("integrated = %v, want ~-3.01", res.IntegratedLUFS)
	}
}

func TestMeasureDeterministic(t *testing.T) {
	t.Parallel()

	left := sine(440, 0.3, 44100, 6)
	right := sine(3000, 0.1, 44100, 6)
	pristine := slices.Clone(left)
	buf := &types.AudioBuffer{SampleRate: 44100, Channels: [][]float64{left, right}}

	first, err := Measure(buf)
	if err != nil {
		t.Fatal(err)
	}

	second, err := Measure(buf)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ:\n%+v\n%+v", first, second)
	}

	if !slices.Equal(left, pristine) {
		t.Error("input buffer was modified")
	}
}

func TestMeasureInvalidInput(t *testing.T) {
	t.Parallel()

	cases := map[string]*types.AudioBuffer{
		"nil":          nil,
		"zero rate":    {SampleRate: 0, Channels: [][]float64{{0.1}}},
		"no channels":  {SampleRate: 48000},
		"empty":        {SampleRate: 48000, Channels: [][]float64{{}}},
		"mismatched":   {SampleRate: 48000, Channels: [][]float64{{0.1, 0.2}, {0.1}}},
		"layout count": {SampleRate: 48000, Channels: [][]float64{{0.1}}, Layout: types.Layout5_1},
		"3 Hz":         {SampleRate: 3, Channels: [][]float64{{0.5, -0.5, 0.5}}},
		"above shelf":  {SampleRate: 3000, Channels: [][]float64{make([]float64, 3000)}},
	}

	for name, buf := range cases {
		if _, err := Measure(buf); !errors.Is(err, types.ErrInvalidInput) {
			t.Errorf("%s: err = %v, want ErrInvalidInput", name, err)
		}
	}
}

func TestRoundLUFS(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want float64
	}{
		{-0.05, 0},
		{-0.04, 0},
		{-23.04, -23.0},
		{-23.06, -23.1},
		{-14.25, -14.2},
		{1.0, 1.0},
	}

	for _, c := range cases {
		got := RoundLUFS(c.in)
		if got != c.want || math.Signbit(got) != math.Signbit(c.want) {
			t.Errorf("RoundLUFS(%v) = %v, want %v", c.in, got, c.want)
		}
	}

	if !math.IsInf(RoundLUFS(math.Inf(-1)), -1) {
		t.Error("RoundLUFS(-Inf) should stay -Inf")
	}
}

func TestPowerConversions(t *testing.T) {
	t.Parallel()

	for _, p := range []float64{0, -1, math.NaN()} {
		if types.IsMeasured(PowerToLUFS(p)) {
			t.Errorf("PowerToLUFS(%v) should be unmeasurable", p)
		}
	}

	for _, rms := range []float64{0, -0.5} {
		if types.IsMeasured(RMSToLUFS(rms)) {
			t.Errorf("RMSToLUFS(%v) should be unmeasurable", rms)
		}
	}

	if got := PowerToLUFS(1); got != lufsOffset {
		t.Errorf("PowerToLUFS(1) = %v", got)
	}

	if got := RMSToLUFS(0.5); math.Abs(got-(lufsOffset+20*math.Log10(0.5))) > 1e-12 {
		t.Errorf("RMSToLUFS(0.5) = %v", got)
	}
}

func TestWindowMeans(t *testing.T) {
	t.Parallel()

	ramp := make([]float64, 10)
	for i := range ramp {
		ramp[i] = float64(i)
	}

	cases := []struct {
		name        string
		window, hop int
		want        []float64
	}{
		{"aligned", 4, 2, []float64{1.5, 3.5, 5.5, 7.5}},
		{"remainder", 5, 2, []float64{2, 4, 6}},
		{"too short", 11, 2, nil},
	}

	for _, c := range cases {
		got := windowMeans(ramp, c.window, c.hop)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestIntegratedRelativeGate(t *testing.T) {
	t.Parallel()

	powers := make([]float64, 0, 25)
	for range 10 {
		powers = append(powers, lufsToPower(-20))
	}

	for range 10 {
		powers = append(powers, lufsToPower(-40)) // below the relative gate
	}

	for range 5 {
		powers = append(powers, lufsToPower(-80)) // below the absolute gate
	}

	got, gated := IntegratedLoudness(powers)
	if math.Abs(got-(-20)) > 1e-9 || gated != 10 {
		t.Errorf("integrated = %v over %d blocks, want -20 over 10", got, gated)
	}
}

func TestLoudnessRangePercentiles(t *testing.T) {
	t.Parallel()

	powers := []float64{lufsToPower(-90)}
	for l := -20.0; l <= -11; l++ {
		powers = append(powers, lufsToPower(l))
	}

	lra, low, high := LoudnessRange(powers)

	// 10 survivors: low = v[1], high = v[9].
	if math.Abs(low-(-19)) > 1e-9 || math.Abs(high-(-11)) > 1e-9 || math.Abs(lra-8) > 1e-9 {
		t.Errorf("LRA = %v (%v..%v), want 8 (-19..-11)", lra, low, high)
	}
}
