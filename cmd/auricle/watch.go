//nolint:wrapcheck
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/farcloser/auricle/internal/config"
	"github.com/farcloser/auricle/internal/integration/ffmpeg"
	"github.com/farcloser/auricle/internal/watch"
)

var errWatchArgs = errors.New("expected exactly one argument: directory")

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Measure audio files as they land in a directory, one JSON line each on stdout",
		ArgsUsage: "<directory>",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "Number of concurrent workers",
				Value:   runtime.NumCPU(),
			},
			&cli.IntFlag{
				Name:  "queue",
				Usage: "Files waiting for a worker before new arrivals block",
				Value: watch.DefaultQueueSize,
			},
			&cli.DurationFlag{
				Name:  "settle",
				Usage: "Delay between a file appearing and its analysis",
				Value: watch.DefaultSettle,
			},
			&cli.IntFlag{
				Name:  "stream",
				Usage: "Audio stream index (0-based)",
			},
		}, append(logFlags(), analysisFlags()...)...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("%w: got %d", errWatchArgs, cmd.NArg())
			}

			level, err := config.ParseLogLevel(cmd.String("log-level"))
			if err != nil {
				return err
			}

			slog.SetDefault(slog.New(config.Handler(os.Stderr, level, cmd.String("log-format"))))

			opts, err := analysisOptions(cmd)
			if err != nil {
				return err
			}

			watcher, err := watch.New(watch.Config{
				Dir:       cmd.Args().First(),
				Decoder:   ffmpeg.Decoder{Stream: cmd.Int("stream")},
				Options:   opts,
				Output:    os.Stdout,
				Workers:   cmd.Int("workers"),
				QueueSize: cmd.Int("queue"),
				Settle:    cmd.Duration("settle"),
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return watcher.Run(ctx)
		},
	}
}
