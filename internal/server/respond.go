package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/auricle/internal/integration/ffprobe"
	"github.com/farcloser/auricle/internal/share"
	"github.com/farcloser/auricle/internal/types"
)

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// fail maps err onto a status code. Server side failures are logged and not echoed.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, code, http.StatusText(code))

		return
	}

	writeError(w, code, err.Error())
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError

	switch {
	case errors.Is(err, share.ErrNotFound), errors.Is(err, share.ErrExpired):
		return http.StatusNotFound
	case errors.Is(err, share.ErrTooLarge), errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, share.ErrInvalidID),
		errors.Is(err, share.ErrInvalidTTL),
		errors.Is(err, share.ErrInvalidArchive),
		errors.Is(err, types.ErrInvalidInput),
		errors.Is(err, ffprobe.ErrNoAudio),
		errors.Is(err, fault.ErrCommandFailure),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
