// Package watch analyzes audio files as they appear in a directory and emits one report line
// per file.
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/farcloser/primordium/fault"
	"github.com/fsnotify/fsnotify"

	"github.com/farcloser/auricle"
	"github.com/farcloser/auricle/internal/report"
	"github.com/farcloser/auricle/internal/types"
)

const (
	DefaultQueueSize = 64
	DefaultSettle    = time.Second
)

var ErrNoDecoder = errors.New("watch needs a decoder")

// Decoder turns an encoded audio file into samples.
type Decoder interface {
	Decode(ctx context.Context, path string) (*types.AudioBuffer, error)
}

// Config describes a directory watch.
type Config struct {
	Dir     string
	Decoder Decoder
	Options auricle.Options
	Output  io.Writer

	Workers   int
	QueueSize int
	// Settle is the pause between a file appearing and its analysis, so writers can finish.
	Settle time.Duration
}

// Watcher owns the filesystem subscription and the worker pool.
type Watcher struct {
	cfg    Config
	notify *fsnotify.Watcher
	jobs   chan string

	mu  sync.Mutex
	enc *json.Encoder
}

// New subscribes to cfg.Dir. Files created after New returns are picked up by Run.
func New(cfg Config) (*Watcher, error) {
	if cfg.Decoder == nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrMissingRequirements, ErrNoDecoder)
	}

	cfg.Workers = max(cfg.Workers, 1)
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	if cfg.Output == nil {
		cfg.Output = io.Discard
	}

	notify, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	if err = notify.Add(cfg.Dir); err != nil {
		_ = notify.Close()

		return nil, fmt.Errorf("%w: watching %s: %w", fault.ErrReadFailure, cfg.Dir, err)
	}

	return &Watcher{
		cfg:    cfg,
		notify: notify,
		jobs:   make(chan string, cfg.QueueSize),
		enc:    json.NewEncoder(cfg.Output),
	}, nil
}

// Run dispatches created audio files to the workers until ctx is done, then waits for the
// workers to drain.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.notify.Close()

	var group sync.WaitGroup

	for range w.cfg.Workers {
		group.Go(func() {
			for path := range w.jobs {
				w.process(ctx, path)
			}
		})
	}

	slog.Info("watching", "dir", w.cfg.Dir, "workers", w.cfg.Workers)

	err := w.loop(ctx)

	close(w.jobs)
	group.Wait()

	return err
}

func (w *Watcher) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.notify.Events:
			if !ok {
				return nil
			}

			if !event.Has(fsnotify.Create) || !report.IsAudioFile(event.Name) {
				continue
			}

			select {
			case w.jobs <- event.Name:
				slog.Debug("queued", "file", event.Name)
			case <-ctx.Done():
				return nil
			}
		case err, ok := <-w.notify.Errors:
			if !ok {
				return nil
			}

			slog.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	if w.cfg.Settle > 0 {
		select {
		case <-time.After(w.cfg.Settle):
		case <-ctx.Done():
			return
		}
	}

	record := w.analyze(ctx, path)
	if record.Failed() {
		slog.Warn("analysis failed", "file", path, "error", record.Error)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.enc.Encode(&record); err != nil {
		slog.Error("writing record", "file", path, "error", err)
	}
}

func (w *Watcher) analyze(ctx context.Context, path string) report.Record {
	start := time.Now()
	timing := &report.Timing{}

	buf, err := w.cfg.Decoder.Decode(ctx, path)
	timing.DecodeMs = report.DurationMs(time.Since(start))

	if err != nil {
		return report.Record{File: path, Error: fmt.Sprintf("decode failed: %v", err), Timing: timing}
	}

	analyzeStart := time.Now()
	result, err := auricle.Analyze(buf, w.cfg.Options)
	timing.AnalyzeMs = report.DurationMs(time.Since(analyzeStart))
	timing.TotalMs = report.DurationMs(time.Since(start))

	if err != nil {
		return report.Record{File: path, Error: fmt.Sprintf("analysis failed: %v", err), Timing: timing}
	}

	return report.NewRecord(path, result, timing)
}
