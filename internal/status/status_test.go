package status

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingSource struct {
	bytes int64
	err   error
	calls int
}

func (c *countingSource) Usage(context.Context) (int64, error) {
	c.calls++

	return c.bytes, c.err
}

type fixedSampler Sample

func (f fixedSampler) Sample(context.Context) (Sample, error) {
	return Sample(f), nil
}

func TestUsageCaches(t *testing.T) {
	t.Parallel()

	source := &countingSource{bytes: 45 << 30}
	usage := NewUsage(source, 0, 0)

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	usage.now = func() time.Time { return now }

	got, err := usage.Fraction(context.Background())
	if err != nil || got != 0.5 {
		t.Fatalf("Fraction = %v, %v; want 0.5", got, err)
	}

	source.bytes = 90 << 30
	now = now.Add(9 * time.Minute)

	if got, _ = usage.Fraction(context.Background()); got != 0.5 || source.calls != 1 {
		t.Errorf("within ttl: %v after %d calls", got, source.calls)
	}

	now = now.Add(time.Minute)

	if got, _ = usage.Fraction(context.Background()); got != 1 || source.calls != 2 {
		t.Errorf("after ttl: %v after %d calls", got, source.calls)
	}
}

func TestUsageError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk gone")
	usage := NewUsage(&countingSource{err: boom}, 100, time.Minute)

	if _, err := usage.Fraction(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestOverload(t *testing.T) {
	t.Parallel()

	cases := []struct {
		sample Sample
		want   float64
	}{
		{Sample{CPU: 0, Memory: 0}, 0},
		{Sample{CPU: 1, Memory: 1}, 1},
		{Sample{CPU: 0.25, Memory: 0.5}, 0.38},
		{Sample{CPU: 0.333, Memory: 0.1}, 0.22},
	}

	for _, c := range cases {
		got, err := Overload(context.Background(), fixedSampler(c.sample))
		if err != nil || got != c.want {
			t.Errorf("Overload(%+v) = %v, %v; want %v", c.sample, got, err, c.want)
		}
	}
}

func TestHostSampler(t *testing.T) {
	t.Parallel()

	sample, err := HostSampler{}.Sample(context.Background())
	if err != nil {
		t.Skipf("host metrics unavailable: %v", err)
	}

	if sample.CPU < 0 || sample.CPU > 1 || sample.Memory <= 0 || sample.Memory > 1 {
		t.Errorf("sample out of range: %+v", sample)
	}
}
