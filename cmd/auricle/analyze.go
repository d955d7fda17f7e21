//nolint:wrapcheck
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/farcloser/auricle"
	"github.com/farcloser/auricle/internal/pcm"
	"github.com/farcloser/auricle/internal/types"
)

const checksUsage = "Comma-separated checks or presets: all, compliance, measure, loudness, target-loudness, " +
	"peak-headroom, dynamics, non-finite, spectral"

var (
	errInvalidArgCount = errors.New("expected exactly one argument: file path or \"-\" for stdin")
	errInvalidBitDepth = errors.New("must be 16, 24, or 32")
)

// analysisFlags are shared by every command that runs an analysis.
func analysisFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "checks",
			Aliases: []string{"C"},
			Usage:   checksUsage,
			Value:   "all",
		},
		&cli.StringFlag{
			Name:    "platform",
			Aliases: []string{"p"},
			Usage:   "Delivery target setting the reference loudness: spotify, apple, youtube, ebu, atsc",
			Value:   "spotify",
		},
		&cli.FloatFlag{
			Name:  "target",
			Usage: "Override the platform reference loudness (LUFS)",
		},
	}
}

func analysisOptions(cmd *cli.Command) (auricle.Options, error) {
	checks, err := auricle.ParseChecks(cmd.String("checks"))
	if err != nil {
		return auricle.Options{}, err
	}

	platform, err := auricle.ParsePlatform(cmd.String("platform"))
	if err != nil {
		return auricle.Options{}, err
	}

	opts := auricle.OptionsForPlatform(platform)
	opts.Checks = checks

	if target := cmd.Float("target"); target != 0 {
		opts.TargetLUFS = target
	}

	return opts, nil
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Measure raw interleaved PCM",
		ArgsUsage: "<file | ->",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:     "sample-rate",
				Aliases:  []string{"s"},
				Usage:    "Sample rate in Hz (e.g., 44100, 48000, 96000)",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "bit-depth",
				Aliases: []string{"b"},
				Usage:   "Bit depth (16, 24, or 32)",
				Value:   16,
			},
			&cli.BoolFlag{
				Name:  "float",
				Usage: "Samples are 32-bit IEEE float",
			},
			&cli.IntFlag{
				Name:    "channels",
				Aliases: []string{"c"},
				Usage:   "Number of interleaved channels",
				Value:   2,
			},
			&cli.StringFlag{
				Name:  "layout",
				Usage: "Channel layout: mono, stereo, 3.0, quad, 5.0, 5.1, 7.1 (default: from the channel count)",
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
		}, analysisFlags()...),
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("%w: got %d", errInvalidArgCount, cmd.NArg())
			}

			format, err := parsePCMFormat(cmd)
			if err != nil {
				return err
			}

			opts, err := analysisOptions(cmd)
			if err != nil {
				return err
			}

			inputPath := cmd.Args().First()

			input, closer, err := openInput(inputPath)
			if err != nil {
				return err
			}
			defer closer()

			buf, err := pcm.Decode(input, format)
			if err != nil {
				return fmt.Errorf("decoding PCM: %w", err)
			}

			result, err := auricle.Analyze(buf, opts)
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}

			return outputResult(inputPath, result, cmd.String("format"), cmd.Bool("debug"))
		},
	}
}

func parsePCMFormat(cmd *cli.Command) (types.PCMFormat, error) {
	bitDepth, err := toBitDepth(cmd.Int("bit-depth"))
	if err != nil {
		return types.PCMFormat{}, fmt.Errorf("--bit-depth: %w", err)
	}

	layout, err := types.ParseLayout(cmd.String("layout"))
	if err != nil {
		return types.PCMFormat{}, fmt.Errorf("--layout: %w", err)
	}

	channels := cmd.Int("channels")
	if channels <= 0 {
		return types.PCMFormat{}, fmt.Errorf("--channels: %w: %d", types.ErrInvalidInput, channels)
	}

	isFloat := cmd.Bool("float")
	if isFloat && !cmd.IsSet("bit-depth") {
		bitDepth = types.Depth32
	}

	format := types.PCMFormat{
		SampleRate: cmd.Int("sample-rate"),
		BitDepth:   bitDepth,
		Channels:   uint(channels), //nolint:gosec // validated positive value
		Float:      isFloat,
		Layout:     layout,
	}

	return format, pcm.Validate(format)
}

func toBitDepth(v int) (types.BitDepth, error) {
	switch v {
	case 16:
		return types.Depth16, nil
	case 24:
		return types.Depth24, nil
	case 32:
		return types.Depth32, nil
	default:
		return 0, errInvalidBitDepth
	}
}

func openInput(source string) (io.Reader, func(), error) {
	if source == "-" {
		return os.Stdin, func() {}, nil
	}

	file, err := os.Open(source) //nolint:gosec // CLI tool opens user-specified audio files
	if err != nil {
		return nil, func() {}, fmt.Errorf("cannot access %s: %w", source, err)
	}

	return file, func() { _ = file.Close() }, nil
}
