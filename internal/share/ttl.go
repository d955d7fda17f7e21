package share

import (
	"fmt"
	"strings"
	"time"
)

const (
	day = 24 * time.Hour

	// MaxTTL bounds every expiry, whatever its spelling.
	MaxTTL = 31 * day
)

//nolint:gochecknoglobals // lookup data, effectively const
var ttlLabels = map[string]time.Duration{
	"30m": 30 * time.Minute,
	"12h": 12 * time.Hour,
	"1d":  day,
	"3d":  3 * day,
	"1w":  7 * day,
	"2w":  14 * day,
	"1mo": 30 * day,

	// Labels sent by the legacy Japanese upload form.
	"30分": 30 * time.Minute,
	"半日":  12 * time.Hour,
	"1日":  day,
	"3日":  3 * day,
	"1週間": 7 * day,
	"2週間": 14 * day,
	"1か月": 30 * day,
	"1ヶ月": 30 * day,
}

// ParseTTL accepts a known label or any Go duration up to MaxTTL.
func ParseTTL(label string) (time.Duration, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, fmt.Errorf("%w: missing", ErrInvalidTTL)
	}

	ttl, ok := ttlLabels[label]
	if !ok {
		var err error

		ttl, err = time.ParseDuration(label)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTTL, label)
		}
	}

	if ttl <= 0 || ttl > MaxTTL {
		return 0, fmt.Errorf("%w: %q is outside (0, %v]", ErrInvalidTTL, label, MaxTTL)
	}

	return ttl, nil
}
