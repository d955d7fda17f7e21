package server

import (
	"net/http"

	"github.com/farcloser/auricle/internal/status"
)

func (s *Server) usage(w http.ResponseWriter, r *http.Request) {
	fraction, err := s.cfg.Usage.Fraction(r.Context())
	if err != nil {
		fail(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]float64{"usage": fraction})
}

func (s *Server) overload(w http.ResponseWriter, r *http.Request) {
	load, err := status.Overload(r.Context(), s.cfg.Sampler)
	if err != nil {
		fail(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]float64{"load": load})
}
