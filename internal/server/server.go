// Package server exposes bundle sharing, store status and loudness analysis over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/farcloser/auricle"
	"github.com/farcloser/auricle/internal/integration/ffmpeg"
	"github.com/farcloser/auricle/internal/share"
	"github.com/farcloser/auricle/internal/status"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second

	defaultMaxAudio = 512 << 20

	// multipartSlack covers boundaries and form fields around the file part.
	multipartSlack = 1 << 20
)

// Config wires a Server. Shares and Usage are required.
type Config struct {
	Shares  *share.Service
	Usage   *status.Usage
	Sampler status.LoadSampler
	Decoder AudioDecoder

	Analysis       auricle.Options
	AllowedOrigins []string
	MaxUploadBytes int64
	MaxAudioBytes  int64
	TempDir        string
}

type Server struct {
	cfg     Config
	handler http.Handler
}

func New(cfg Config) *Server {
	if cfg.Sampler == nil {
		cfg.Sampler = status.HostSampler{}
	}

	if cfg.Decoder == nil {
		cfg.Decoder = ffmpeg.Decoder{}
	}

	if cfg.Analysis.Checks == 0 {
		cfg.Analysis = auricle.DefaultOptions()
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = share.DefaultMaxSize
	}

	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = defaultMaxAudio
	}

	srv := &Server{cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", srv.upload)
	mux.HandleFunc("GET /api/download", srv.download)
	mux.HandleFunc("GET /api/files", srv.listFiles)
	mux.HandleFunc("DELETE /api/files/{id}", srv.deleteFile)
	mux.HandleFunc("GET /api/server-status/usage", srv.usage)
	mux.HandleFunc("GET /api/server-status/overload", srv.overload)
	mux.HandleFunc("POST /api/loudness", srv.loudness)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	srv.handler = accessLog(withCORS(cfg.AllowedOrigins, mux))

	return srv
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	return s.Serve(ctx, listener)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	served := make(chan error, 1)

	go func() {
		slog.Info("listening", "address", listener.Addr().String())
		served <- httpServer.Serve(listener)
	}()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	if err := <-served; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
