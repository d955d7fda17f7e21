// Package config holds the resolved settings of the auricle HTTP service.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/farcloser/primordium/fault"
)

const (
	BackendFS = "fs"
	BackendS3 = "s3"

	DefaultListen        = ":3000"
	DefaultUploadDir     = "uploads"
	DefaultSweepInterval = 10 * time.Minute
	DefaultMaxUpload     = 2 << 30   // 2 GiB
	DefaultMaxAudio      = 512 << 20 // 512 MiB
)

var errInvalid = errors.New("invalid configuration")

// S3 addresses the bucket used by the s3 backend.
type S3 struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	PathStyle bool
	AccessKey string
	SecretKey string
}

// Service is the resolved configuration of `auricle serve`.
type Service struct {
	Listen         string
	Backend        string
	UploadDir      string
	S3             S3
	CapacityBytes  int64
	SweepInterval  time.Duration
	AllowedOrigins []string
	MaxUploadBytes int64
	MaxAudioBytes  int64
	AudioStream    int
	LogLevel       slog.Level
	LogFormat      string
}

// Default returns a configuration serving the filesystem backend on DefaultListen.
func Default() Service {
	return Service{
		Listen:         DefaultListen,
		Backend:        BackendFS,
		UploadDir:      DefaultUploadDir,
		SweepInterval:  DefaultSweepInterval,
		MaxUploadBytes: DefaultMaxUpload,
		MaxAudioBytes:  DefaultMaxAudio,
		LogLevel:       slog.LevelInfo,
		LogFormat:      "text",
	}
}

// Validate reports every problem at once.
func (s *Service) Validate() error {
	var errs []error

	if _, _, err := net.SplitHostPort(s.Listen); err != nil {
		errs = append(errs, fmt.Errorf("listen address %q: %w", s.Listen, err))
	}

	switch s.Backend {
	case BackendFS:
		if s.UploadDir == "" {
			errs = append(errs, errors.New("upload directory is required for the fs backend"))
		}
	case BackendS3:
		if s.S3.Bucket == "" {
			errs = append(errs, fmt.Errorf("%w: bucket is required for the s3 backend", fault.ErrMissingRequirements))
		}

		if (s.S3.AccessKey == "") != (s.S3.SecretKey == "") {
			errs = append(errs, errors.New("s3 access key and secret key go together"))
		}

		if s.S3.Endpoint != "" {
			if u, err := url.Parse(s.S3.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
				errs = append(errs, fmt.Errorf("s3 endpoint %q is not an absolute url", s.S3.Endpoint))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q (valid: fs, s3)", s.Backend))
	}

	if s.CapacityBytes < 0 {
		errs = append(errs, errors.New("capacity cannot be negative"))
	}

	if s.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep interval must be positive"))
	}

	if s.MaxUploadBytes <= 0 || s.MaxAudioBytes <= 0 {
		errs = append(errs, errors.New("upload limits must be positive"))
	}

	if s.AudioStream < 0 {
		errs = append(errs, errors.New("audio stream index cannot be negative"))
	}

	for _, origin := range s.AllowedOrigins {
		if origin == "*" {
			continue
		}

		if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" || u.Path != "" {
			errs = append(errs, fmt.Errorf("allowed origin %q must be scheme://host[:port]", origin))
		}
	}

	switch s.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q (valid: text, json)", s.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", errInvalid, errors.Join(errs...))
	}

	return nil
}

// SplitOrigins accepts a comma separated list, trimming blanks and trailing slashes.
func SplitOrigins(raw []string) []string {
	var out []string

	for _, item := range raw {
		for _, origin := range strings.Split(item, ",") {
			origin = strings.TrimRight(strings.TrimSpace(origin), "/")
			if origin != "" {
				out = append(out, origin)
			}
		}
	}

	return out
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
func ParseLogLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", errInvalid, raw)
	}

	return level, nil
}

// Handler builds the slog handler selected by format, text unless format is "json".
func Handler(w io.Writer, level slog.Level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}

	return slog.NewTextHandler(w, opts)
}
