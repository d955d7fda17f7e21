// Package status reports how full the share store is and how busy the host is.
package status

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

const (
	DefaultCapacity = 90 << 30 // 90 GiB
	DefaultCacheTTL = 10 * time.Minute

	cpuSampleWindow = 500 * time.Millisecond
)

// UsageSource returns the bytes currently stored.
type UsageSource interface {
	Usage(ctx context.Context) (int64, error)
}

// Usage reports stored bytes over capacity, recomputed at most once per TTL.
type Usage struct {
	source   UsageSource
	capacity int64
	ttl      time.Duration
	now      func() time.Time

	mu       sync.Mutex
	cached   float64
	cachedAt time.Time
}

func NewUsage(source UsageSource, capacity int64, ttl time.Duration) *Usage {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &Usage{source: source, capacity: capacity, ttl: ttl, now: time.Now}
}

// Fraction returns usage in [0, 1]; it may exceed 1 when the store outgrows capacity.
func (u *Usage) Fraction(ctx context.Context) (float64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.now()
	if !u.cachedAt.IsZero() && now.Sub(u.cachedAt) < u.ttl {
		return u.cached, nil
	}

	used, err := u.source.Usage(ctx)
	if err != nil {
		return 0, fmt.Errorf("measuring store usage: %w", err)
	}

	u.cached = float64(used) / float64(u.capacity)
	u.cachedAt = now

	return u.cached, nil
}

// Sample is one reading of host load, both as fractions in [0, 1].
type Sample struct {
	CPU    float64
	Memory float64
}

// LoadSampler reads host load.
type LoadSampler interface {
	Sample(ctx context.Context) (Sample, error)
}

// HostSampler reads the host through gopsutil.
type HostSampler struct{}

func (HostSampler) Sample(ctx context.Context) (Sample, error) {
	percents, err := cpu.PercentWithContext(ctx, cpuSampleWindow, false)
	if err != nil {
		return Sample{}, fmt.Errorf("reading cpu usage: %w", err)
	}

	if len(percents) == 0 {
		return Sample{}, errors.New("reading cpu usage: no sample")
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("reading memory usage: %w", err)
	}

	return Sample{CPU: percents[0] / 100, Memory: vm.UsedPercent / 100}, nil
}

// Overload is the mean of the cpu and memory fractions, rounded to two decimals.
func Overload(ctx context.Context, sampler LoadSampler) (float64, error) {
	sample, err := sampler.Sample(ctx)
	if err != nil {
		return 0, err
	}

	return math.Round((sample.CPU+sample.Memory)/2*100) / 100, nil
}
