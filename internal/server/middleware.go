package server

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/rs/cors"
)

const corsMaxAge = 86400

// withCORS answers preflights for the configured origins and rejects requests from any other
// origin with 403. No configured origins means any origin.
func withCORS(origins []string, next http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	policy := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Expiry"},
		MaxAge:           corsMaxAge,
	})

	allowAll := slices.Contains(origins, "*")
	wrapped := policy.Handler(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && !allowAll && !slices.Contains(origins, origin) {
			slog.Warn("cors policy violation", "origin", origin, "path", r.URL.Path)
			http.Error(w, "CORS policy violation", http.StatusForbidden)

			return
		}

		wrapped.ServeHTTP(w, r)
	})
}

type recorder struct {
	http.ResponseWriter

	status int
	bytes  int64
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}

	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)

	return n, err //nolint:wrapcheck
}

func (r *recorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &recorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
		)
	})
}
