package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/farcloser/auricle"
	"github.com/farcloser/auricle/internal/output"
	"github.com/farcloser/auricle/internal/share"
	"github.com/farcloser/auricle/internal/types"
)

// AudioDecoder turns an encoded audio file into samples.
type AudioDecoder interface {
	Decode(ctx context.Context, path string) (*types.AudioBuffer, error)
}

func (s *Server) loudness(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxAudioBytes+multipartSlack)

	path, _, err := s.receive(r, s.cfg.MaxAudioBytes)
	if err != nil {
		fail(w, r, err)

		return
	}
	defer os.Remove(path)

	buf, err := s.cfg.Decoder.Decode(r.Context(), path)
	if err != nil {
		fail(w, r, err)

		return
	}

	result, err := auricle.Analyze(buf, s.cfg.Analysis)
	if err != nil {
		fail(w, r, err)

		return
	}

	slog.Debug("loudness analyzed",
		"integrated", types.FormatLevel(result.Loudness.IntegratedLUFS, "LUFS"),
		"duration", buf.Elapsed(),
	)

	meta := output.ResultToMap(result)
	meta["analysis"] = output.SummaryToMap(result.Summary())

	writeJSON(w, http.StatusOK, meta)
}

// spool copies body to a temp file, failing with share.ErrTooLarge past limit bytes.
func (s *Server) spool(body io.Reader, limit int64) (string, error) {
	file, err := os.CreateTemp(s.cfg.TempDir, "auricle-spool-*")
	if err != nil {
		return "", fmt.Errorf("creating spool file: %w", err)
	}

	size, err := io.Copy(file, io.LimitReader(body, limit+1))
	closeErr := file.Close()

	switch {
	case err != nil:
		err = fmt.Errorf("receiving body: %w", err)
	case closeErr != nil:
		err = fmt.Errorf("closing spool file: %w", closeErr)
	case size == 0:
		err = fmt.Errorf("%w: empty body", types.ErrInvalidInput)
	case size > limit:
		err = fmt.Errorf("%w: more than %d bytes", share.ErrTooLarge, limit)
	}

	if err != nil {
		_ = os.Remove(file.Name())

		return "", err
	}

	return file.Name(), nil
}
