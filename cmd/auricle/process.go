//nolint:wrapcheck
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/farcloser/auricle"
	"github.com/farcloser/auricle/internal/integration/ffmpeg"
)

var errProcessArgs = errors.New("expected exactly one argument: file path")

func processCommand() *cli.Command {
	return &cli.Command{
		Name:      "process",
		Usage:     "Decode an audio file with ffmpeg and measure it",
		ArgsUsage: "<file>",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:  "stream",
				Usage: "Audio stream index (0-based)",
				Value: 0,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: console, json, markdown",
				Value:   "console",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"D"},
				Usage:   "Include all raw measurements in output",
			},
			&cli.IntFlag{
				Name:  "waveform",
				Usage: "Add a min/max overview with this many columns",
			},
		}, analysisFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("%w: got %d", errProcessArgs, cmd.NArg())
			}

			filePath := cmd.Args().First()

			opts, err := analysisOptions(cmd)
			if err != nil {
				return err
			}

			opts.WaveformWidth = cmd.Int("waveform")

			decoded, err := ffmpeg.DecodeFile(ctx, filePath, cmd.Int("stream"))
			if err != nil {
				return fmt.Errorf("decoding %s: %w", filePath, err)
			}

			slog.Debug("decoded",
				"file", filePath,
				"codec", decoded.Stream.CodecName,
				"sample_rate", decoded.Format.SampleRate,
				"channels", decoded.Format.Channels,
				"layout", decoded.Format.Layout,
			)

			result, err := auricle.Analyze(decoded.Buffer, opts)
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}

			return outputResult(filePath, result, cmd.String("format"), cmd.Bool("debug") || opts.WaveformWidth > 0)
		},
	}
}
