// Package isotime parses and formats the ISO 8601 timestamps found in track
// files.
package isotime

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrMalformed = errors.New("malformed timestamp")

// Layouts are tried in order. Zone-less layouts are interpreted as UTC.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Parse returns the instant described by s. Both "." and "," are accepted
// as the fractional second separator.
func Parse(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrMalformed)
	}
	v = strings.Replace(v, ",", ".", 1)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformed, s)
}

// Format renders t in UTC with millisecond precision, the resolution track
// points are stored with.
func Format(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Millis is t as milliseconds since the Unix epoch.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis is the inverse of Millis.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
