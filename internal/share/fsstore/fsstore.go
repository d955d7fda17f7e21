// Package fsstore keeps bundles in a flat directory: <id>.zip next to an <id>.json sidecar.
package fsstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/auricle/internal/share"
)

const (
	bundleExt   = ".zip"
	metadataExt = ".json"
	dirPerms    = 0o750
)

type Store struct {
	dir string
}

// New creates dir if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, dirPerms); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	return &Store{dir: dir}, nil
}

func (s *Store) path(id, ext string) string {
	return filepath.Join(s.dir, id+ext)
}

// Put writes the bundle then its sidecar, each through a temp file and a rename,
// so a listed sidecar always points at a complete bundle.
func (s *Store) Put(_ context.Context, meta *share.Metadata, body io.Reader) error {
	if !share.ValidID(meta.ID) {
		return fmt.Errorf("%w: %q", share.ErrInvalidID, meta.ID)
	}

	if err := s.writeAtomic(s.path(meta.ID, bundleExt), body); err != nil {
		return err
	}

	encoded, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	if err = s.writeAtomic(s.path(meta.ID, metadataExt), bytes.NewReader(encoded)); err != nil {
		_ = os.Remove(s.path(meta.ID, bundleExt))

		return err
	}

	return nil
}

func (s *Store) writeAtomic(target string, body io.Reader) error {
	tmp, err := os.CreateTemp(s.dir, ".incoming-*")
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}

	if _, err = io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("writing %s: %w", target, err)
	}

	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("closing %s: %w", target, err)
	}

	if err = os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("renaming %s: %w", target, err)
	}

	return nil
}

func (s *Store) Open(ctx context.Context, id string) (io.ReadCloser, *share.Metadata, error) {
	meta, err := s.Stat(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(s.path(id, bundleExt))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", share.ErrNotFound, id)
		}

		return nil, nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	return file, meta, nil
}

func (s *Store) Stat(_ context.Context, id string) (*share.Metadata, error) {
	if !share.ValidID(id) {
		return nil, fmt.Errorf("%w: %q", share.ErrInvalidID, id)
	}

	return s.readMetadata(s.path(id, metadataExt))
}

func (s *Store) readMetadata(path string) (*share.Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", share.ErrNotFound, filepath.Base(path))
		}

		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	var meta share.Metadata
	if err = json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", fault.ErrInvalidJSON, filepath.Base(path), err)
	}

	meta.Backfill(strings.TrimSuffix(filepath.Base(path), metadataExt))

	if meta.Size == 0 {
		if info, err := os.Stat(s.path(meta.ID, bundleExt)); err == nil {
			meta.Size = info.Size()
		}
	}

	return &meta, nil
}

// List reads every sidecar in the directory. Unreadable sidecars are skipped.
func (s *Store) List(ctx context.Context) ([]*share.Metadata, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	var out []*share.Metadata

	for _, entry := range entries {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, metadataExt) {
			continue
		}

		meta, err := s.readMetadata(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}

		out = append(out, meta)
	}

	return out, nil
}

// Delete removes the sidecar first so the bundle disappears from listings even if
// removing the archive fails.
func (s *Store) Delete(_ context.Context, id string) error {
	if !share.ValidID(id) {
		return fmt.Errorf("%w: %q", share.ErrInvalidID, id)
	}

	err := os.Remove(s.path(id, metadataExt))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", share.ErrNotFound, id)
	}

	if err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}

	if err = os.Remove(s.path(id, bundleExt)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting %s: %w", id, err)
	}

	return nil
}

// Usage sums the size of the archives in the directory. Subdirectories are not walked.
func (s *Store) Usage(_ context.Context) (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	var total int64

	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), bundleExt) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		total += info.Size()
	}

	return total, nil
}
