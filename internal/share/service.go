package share

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMaxSize = 2 << 30 // 2 GiB
	DefaultLimit   = 10
	MaxLimit       = 100
)

// Service applies ids, expiry and archive validation on top of a Store.
type Service struct {
	store   Store
	maxSize int64
	tempDir string
	now     func() time.Time
	newID   func() (string, error)
}

type Option func(*Service)

// WithMaxSize bounds accepted uploads.
func WithMaxSize(size int64) Option {
	return func(s *Service) { s.maxSize = size }
}

// WithTempDir sets where uploads are spooled before being stored.
func WithTempDir(dir string) Option {
	return func(s *Service) { s.tempDir = dir }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the UUIDv7 generator.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(store Store, opts ...Option) *Service {
	svc := &Service{
		store:   store,
		maxSize: DefaultMaxSize,
		now:     time.Now,
		newID: func() (string, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return "", err
			}

			return id.String(), nil
		},
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc
}

// Upload validates body as a zip archive and stores it for the TTL named by expiry.
func (s *Service) Upload(ctx context.Context, body io.Reader, expiry string) (*Metadata, error) {
	ttl, err := ParseTTL(expiry)
	if err != nil {
		return nil, err
	}

	// Spool to disk: the size limit must hold before anything is stored, zip needs random access,
	// and object stores want a known length.
	spool, err := os.CreateTemp(s.tempDir, "auricle-upload-*.zip")
	if err != nil {
		return nil, fmt.Errorf("creating spool file: %w", err)
	}

	defer func() {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
	}()

	size, err := io.Copy(spool, io.LimitReader(body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("receiving upload: %w", err)
	}

	if size > s.maxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, s.maxSize)
	}

	contents, err := zipEntries(spool, size)
	if err != nil {
		return nil, err
	}

	if _, err = spool.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding spool file: %w", err)
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generating id: %w", err)
	}

	now := s.now().UTC()
	meta := &Metadata{
		ID:         id,
		Expiry:     expiry,
		UploadedAt: now,
		ExpiresAt:  now.Add(ttl),
		Size:       size,
		Contents:   contents,
	}

	if err = s.store.Put(ctx, meta, spool); err != nil {
		return nil, err
	}

	slog.Info("bundle stored", "id", id, "size", size, "entries", len(contents), "expires", meta.ExpiresAt)

	return meta, nil
}

func zipEntries(r io.ReaderAt, size int64) ([]string, error) {
	archive, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}

	names := make([]string, 0, len(archive.File))
	for _, f := range archive.File {
		names = append(names, f.Name)
	}

	return names, nil
}

// Open returns the bundle body. Expired bundles are deleted and reported as ErrExpired.
func (s *Service) Open(ctx context.Context, id string) (io.ReadCloser, *Metadata, error) {
	if !ValidID(id) {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	body, meta, err := s.store.Open(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if meta.Expired(s.now()) {
		_ = body.Close()
		s.expire(ctx, meta)

		return nil, nil, fmt.Errorf("%w: %s", ErrExpired, id)
	}

	return body, meta, nil
}

// Stat returns the metadata of a live bundle.
func (s *Service) Stat(ctx context.Context, id string) (*Metadata, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	meta, err := s.store.Stat(ctx, id)
	if err != nil {
		return nil, err
	}

	if meta.Expired(s.now()) {
		s.expire(ctx, meta)

		return nil, fmt.Errorf("%w: %s", ErrExpired, id)
	}

	return meta, nil
}

// Delete removes a bundle, expired or not.
func (s *Service) Delete(ctx context.Context, id string) error {
	if !ValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	return s.store.Delete(ctx, id)
}

// Page is one page of the operator listing.
type Page struct {
	Files []*Metadata `json:"files"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// List returns bundles newest first, expired ones included until the next sweep.
// page is 1-based; out of range pages are empty.
func (s *Service) List(ctx context.Context, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}

	if limit < 1 {
		limit = DefaultLimit
	}

	limit = min(limit, MaxLimit)

	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(all, func(a, b *Metadata) int {
		return b.UploadedAt.Compare(a.UploadedAt)
	})

	start := min((page-1)*limit, len(all))
	end := min(start+limit, len(all))

	return &Page{Files: all[start:end], Total: len(all), Page: page, Limit: limit}, nil
}

// Usage returns the bytes held by the store.
func (s *Service) Usage(ctx context.Context) (int64, error) {
	return s.store.Usage(ctx)
}

// Sweep deletes every expired bundle and returns how many were removed.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	removed := 0

	var errs []error

	for _, meta := range all {
		if !meta.Expired(now) {
			continue
		}

		if err := s.store.Delete(ctx, meta.ID); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)

			continue
		}

		removed++
	}

	if removed > 0 {
		slog.Info("expired bundles removed", "count", removed)
	}

	return removed, errors.Join(errs...)
}

// Run sweeps every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				slog.Error("sweep failed", "error", err)
			}
		}
	}
}

func (s *Service) expire(ctx context.Context, meta *Metadata) {
	if err := s.store.Delete(ctx, meta.ID); err != nil && !errors.Is(err, ErrNotFound) {
		slog.Warn("failed to delete expired bundle", "id", meta.ID, "error", err)
	}
}
