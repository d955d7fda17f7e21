package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/farcloser/auricle/internal/share"
)

var errBadRequest = errors.New("bad request")

type uploadResponse struct {
	Message      string    `json:"message"`
	ID           string    `json:"id"`
	DownloadLink string    `json:"downloadLink"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))

	return err == nil && mediaType == "multipart/form-data"
}

// receive spools the uploaded payload to a temp file: the multipart "file" part when the request is a form,
// the raw body otherwise. Form fields are collected wherever they sit relative to the file part.
// The caller removes the returned file.
func (s *Server) receive(r *http.Request, limit int64) (string, url.Values, error) {
	if !isMultipart(r) {
		path, err := s.spool(r.Body, limit)

		return path, url.Values{}, err
	}

	reader, err := r.MultipartReader()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}

	var path string

	abort := func(err error) (string, url.Values, error) {
		if path != "" {
			_ = os.Remove(path)
		}

		return "", nil, err
	}

	fields := url.Values{}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return abort(fmt.Errorf("%w: %w", errBadRequest, err))
		}

		if part.FormName() == "file" {
			if path != "" {
				return abort(fmt.Errorf("%w: duplicate form field \"file\"", errBadRequest))
			}

			if path, err = s.spool(part, limit); err != nil {
				return abort(err)
			}

			continue
		}

		value, err := io.ReadAll(io.LimitReader(part, multipartSlack))
		if err != nil {
			return abort(fmt.Errorf("%w: %w", errBadRequest, err))
		}

		fields.Add(part.FormName(), string(value))
	}

	if path == "" {
		return "", nil, fmt.Errorf("%w: missing form field \"file\"", errBadRequest)
	}

	return path, fields, nil
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartSlack)

	path, fields, err := s.receive(r, s.cfg.MaxUploadBytes)
	if err != nil {
		fail(w, r, err)

		return
	}
	defer os.Remove(path)

	expiry := r.Header.Get("Expiry")
	if expiry == "" {
		expiry = fields.Get("expiry")
	}

	if expiry == "" {
		writeError(w, http.StatusBadRequest, "expiry is required")

		return
	}

	body, err := os.Open(path)
	if err != nil {
		fail(w, r, fmt.Errorf("reopening upload: %w", err))

		return
	}
	defer body.Close()

	meta, err := s.cfg.Shares.Upload(r.Context(), body, expiry)
	if err != nil {
		fail(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Message:      "upload succeeded",
		ID:           meta.ID,
		DownloadLink: downloadLink(r, meta.ID),
		ExpiresAt:    meta.ExpiresAt,
	})
}

func downloadLink(r *http.Request, id string) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
	}

	link := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     "/api/download",
		RawQuery: url.Values{"id": {id}}.Encode(),
	}

	return link.String()
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	id := query.Get("id")
	if id == "" {
		id = query.Get("timestamp")
	}

	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")

		return
	}

	body, meta, err := s.cfg.Shares.Open(r.Context(), id)
	if err != nil {
		fail(w, r, err)

		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", meta.ID+".zip"))
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))

	if _, err = io.Copy(w, body); err != nil {
		slog.Warn("download interrupted", "id", id, "error", err)
	}
}

func queryInt(query url.Values, name string, fallback int) (int, error) {
	raw := query.Get(name)
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}

	return value, nil
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, err := queryInt(query, "page", 1)
	if err != nil {
		fail(w, r, err)

		return
	}

	limit, err := queryInt(query, "limit", share.DefaultLimit)
	if err != nil {
		fail(w, r, err)

		return
	}

	if page < 1 || limit < 1 || limit > share.MaxLimit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("page must be >= 1 and limit within 1..%d", share.MaxLimit))

		return
	}

	result, err := s.cfg.Shares.List(r.Context(), page, limit)
	if err != nil {
		fail(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.cfg.Shares.Delete(r.Context(), id); err != nil {
		fail(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted", "id": id})
}
