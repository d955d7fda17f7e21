//nolint:wrapcheck
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/farcloser/auricle/internal/config"
	"github.com/farcloser/auricle/internal/integration/ffmpeg"
	"github.com/farcloser/auricle/internal/server"
	"github.com/farcloser/auricle/internal/share"
	"github.com/farcloser/auricle/internal/share/fsstore"
	"github.com/farcloser/auricle/internal/share/s3store"
	"github.com/farcloser/auricle/internal/status"
)

func serveCommand() *cli.Command {
	defaults := config.Default()

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP service: loudness analysis, bundle sharing and server status",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Usage:   "Address to listen on",
				Value:   defaults.Listen,
				Sources: cli.EnvVars("AURICLE_LISTEN"),
			},
			&cli.StringFlag{
				Name:    "storage",
				Usage:   "Share storage backend: fs, s3",
				Value:   defaults.Backend,
				Sources: cli.EnvVars("AURICLE_STORAGE"),
			},
			&cli.StringFlag{
				Name:    "upload-dir",
				Usage:   "Directory holding shared bundles (fs backend)",
				Value:   defaults.UploadDir,
				Sources: cli.EnvVars("AURICLE_UPLOAD_DIR"),
			},
			&cli.StringFlag{
				Name:    "s3-bucket",
				Usage:   "Bucket holding shared bundles (s3 backend)",
				Sources: cli.EnvVars("AURICLE_S3_BUCKET"),
			},
			&cli.StringFlag{
				Name:    "s3-prefix",
				Usage:   "Key prefix inside the bucket",
				Sources: cli.EnvVars("AURICLE_S3_PREFIX"),
			},
			&cli.StringFlag{
				Name:    "s3-region",
				Usage:   "Bucket region",
				Sources: cli.EnvVars("AURICLE_S3_REGION", "AWS_REGION"),
			},
			&cli.StringFlag{
				Name:    "s3-endpoint",
				Usage:   "Custom S3 endpoint (MinIO, R2, ...)",
				Sources: cli.EnvVars("AURICLE_S3_ENDPOINT"),
			},
			&cli.BoolFlag{
				Name:    "s3-path-style",
				Usage:   "Address the bucket in the path rather than the host name",
				Sources: cli.EnvVars("AURICLE_S3_PATH_STYLE"),
			},
			&cli.StringFlag{
				Name:    "s3-access-key",
				Usage:   "Static access key (default: the AWS credential chain)",
				Sources: cli.EnvVars("AURICLE_S3_ACCESS_KEY"),
			},
			&cli.StringFlag{
				Name:    "s3-secret-key",
				Usage:   "Static secret key",
				Sources: cli.EnvVars("AURICLE_S3_SECRET_KEY"),
			},
			&cli.Int64Flag{
				Name:    "capacity",
				Usage:   "Storage capacity in bytes used for the usage ratio",
				Value:   status.DefaultCapacity,
				Sources: cli.EnvVars("AURICLE_CAPACITY"),
			},
			&cli.DurationFlag{
				Name:    "sweep-interval",
				Usage:   "How often expired bundles are deleted",
				Value:   defaults.SweepInterval,
				Sources: cli.EnvVars("AURICLE_SWEEP_INTERVAL"),
			},
			&cli.StringSliceFlag{
				Name:    "allowed-origins",
				Usage:   "Origins allowed by CORS, comma separated (default: any)",
				Sources: cli.EnvVars("AURICLE_ALLOWED_ORIGINS"),
			},
			&cli.Int64Flag{
				Name:    "max-upload",
				Usage:   "Largest accepted bundle in bytes",
				Value:   defaults.MaxUploadBytes,
				Sources: cli.EnvVars("AURICLE_MAX_UPLOAD"),
			},
			&cli.Int64Flag{
				Name:    "max-audio",
				Usage:   "Largest accepted audio file in bytes",
				Value:   defaults.MaxAudioBytes,
				Sources: cli.EnvVars("AURICLE_MAX_AUDIO"),
			},
			&cli.IntFlag{
				Name:    "stream",
				Usage:   "Audio stream index analyzed in uploaded files",
				Sources: cli.EnvVars("AURICLE_STREAM"),
			},
		}, append(logFlags(), analysisFlags()...)...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := serviceConfig(cmd)
			if err != nil {
				return err
			}

			slog.SetDefault(slog.New(config.Handler(os.Stderr, cfg.LogLevel, cfg.LogFormat)))

			opts, err := analysisOptions(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}

			shares := share.NewService(store, share.WithMaxSize(cfg.MaxUploadBytes))
			go shares.Run(ctx, cfg.SweepInterval)

			srv := server.New(server.Config{
				Shares:         shares,
				Usage:          status.NewUsage(shares, cfg.CapacityBytes, status.DefaultCacheTTL),
				Decoder:        ffmpeg.Decoder{Stream: cfg.AudioStream},
				Analysis:       opts,
				AllowedOrigins: cfg.AllowedOrigins,
				MaxUploadBytes: cfg.MaxUploadBytes,
				MaxAudioBytes:  cfg.MaxAudioBytes,
			})

			slog.Info("serving",
				"listen", cfg.Listen,
				"storage", cfg.Backend,
				"platform", opts.Platform,
				"origins", len(cfg.AllowedOrigins),
			)

			return srv.ListenAndServe(ctx, cfg.Listen)
		},
	}
}

func logFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level: debug, info, warn, error",
			Value:   "info",
			Sources: cli.EnvVars("AURICLE_LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format: text, json",
			Value:   "text",
			Sources: cli.EnvVars("AURICLE_LOG_FORMAT"),
		},
	}
}

func serviceConfig(cmd *cli.Command) (config.Service, error) {
	cfg := config.Default()

	level, err := config.ParseLogLevel(cmd.String("log-level"))
	if err != nil {
		return cfg, err
	}

	cfg.Listen = cmd.String("listen")
	cfg.Backend = cmd.String("storage")
	cfg.UploadDir = cmd.String("upload-dir")
	cfg.S3 = config.S3{
		Bucket:    cmd.String("s3-bucket"),
		Prefix:    cmd.String("s3-prefix"),
		Region:    cmd.String("s3-region"),
		Endpoint:  cmd.String("s3-endpoint"),
		PathStyle: cmd.Bool("s3-path-style"),
		AccessKey: cmd.String("s3-access-key"),
		SecretKey: cmd.String("s3-secret-key"),
	}
	cfg.CapacityBytes = cmd.Int64("capacity")
	cfg.SweepInterval = cmd.Duration("sweep-interval")
	cfg.AllowedOrigins = config.SplitOrigins(cmd.StringSlice("allowed-origins"))
	cfg.MaxUploadBytes = cmd.Int64("max-upload")
	cfg.MaxAudioBytes = cmd.Int64("max-audio")
	cfg.AudioStream = cmd.Int("stream")
	cfg.LogLevel = level
	cfg.LogFormat = cmd.String("log-format")

	if err = cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func openStore(ctx context.Context, cfg config.Service) (share.Store, error) {
	switch cfg.Backend {
	case config.BackendS3:
		return s3store.New(ctx, s3store.Config{
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
	case config.BackendFS:
		return fsstore.New(cfg.UploadDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
