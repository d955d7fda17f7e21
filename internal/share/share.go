// Package share stores uploaded zip bundles under generated identifiers until they expire.
package share

import (
	"context"
	"errors"
	"io"
	"regexp"
	"time"
)

var (
	ErrNotFound       = errors.New("bundle not found")
	ErrExpired        = errors.New("bundle expired")
	ErrInvalidID      = errors.New("invalid bundle id")
	ErrInvalidTTL     = errors.New("invalid expiry")
	ErrInvalidArchive = errors.New("invalid zip archive")
	ErrTooLarge       = errors.New("upload too large")
)

// Metadata is the sidecar stored next to each bundle.
type Metadata struct {
	ID         string    `json:"id"`
	Expiry     string    `json:"expiry"` // label as submitted, e.g. "1d" or "1週間"
	UploadedAt time.Time `json:"uploadedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Size       int64     `json:"size"`
	Contents   []string  `json:"contents"` // zip entry names
}

// Backfill completes a sidecar that predates the id and expiresAt fields. The id comes from the
// sidecar's name and the expiry instant from the upload time plus the expiry label. A label that no
// longer parses expires the bundle at its upload time.
func (m *Metadata) Backfill(id string) {
	if m.ID == "" {
		m.ID = id
	}

	if m.ExpiresAt.IsZero() {
		ttl, err := ParseTTL(m.Expiry)
		if err != nil {
			ttl = 0
		}

		m.ExpiresAt = m.UploadedAt.Add(ttl)
	}
}

// Expired reports whether the bundle is past its expiry at now.
func (m *Metadata) Expired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}

// Store is a key to blob store. Implementations return ErrNotFound for unknown ids
// and do not interpret expiry.
type Store interface {
	Put(ctx context.Context, meta *Metadata, body io.Reader) error
	Open(ctx context.Context, id string) (io.ReadCloser, *Metadata, error)
	Stat(ctx context.Context, id string) (*Metadata, error)
	List(ctx context.Context) ([]*Metadata, error)
	Delete(ctx context.Context, id string) error
	// Usage returns the bytes currently stored.
	Usage(ctx context.Context) (int64, error)
}

//nolint:gochecknoglobals
var idPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// ValidID reports whether id is safe to use as a file name or object key.
// Ids are UUIDs, or millisecond timestamps for bundles migrated from older deployments.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}
