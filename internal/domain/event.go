package domain

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	// Separator splits a raw line into its timestamp and message fields.
	Separator = " - "

	// TimestampLayout is the accepted timestamp shape. A comma-separated
	// fractional part is accepted on input as well.
	TimestampLayout = time.DateTime

	MaxLineLength = 8192
)

// Event is a parsed, timestamped log record. Two events with the same
// canonical timestamp text and message are the same event.
//
// Timestamp is a wall-clock reading with no zone attached; it is held in UTC
// so that its fields are exactly the ones written in the log.
type Event struct {
	Timestamp time.Time
	Message   string
}

// EventKey identifies an event in the store.
type EventKey struct {
	Timestamp string
	Message   string
}

// NewEvent keeps the wall-clock reading of ts in its own location.
func NewEvent(ts time.Time, message string) Event {
	return Event{Timestamp: WallClock(ts), Message: message}
}

// WallClock drops the zone of t, keeping its calendar and clock fields.
func WallClock(t time.Time) time.Time {
	if t.Location() == time.UTC {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// Instant interprets the wall-clock timestamp in loc. Readings that fall in
// a daylight-saving gap are normalized by the time package.
func (e Event) Instant(loc *time.Location) time.Time {
	t := e.Timestamp
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// TimestampText renders the timestamp in its canonical stored form.
func (e Event) TimestampText() string {
	return FormatTimestamp(e.Timestamp)
}

func (e Event) Key() EventKey {
	return EventKey{Timestamp: e.TimestampText(), Message: e.Message}
}

func (e Event) String() string {
	return e.TimestampText() + Separator + e.Message
}

// FormatTimestamp writes microsecond precision as ",ffffff" and omits the
// fraction entirely when it is zero at that precision.
func FormatTimestamp(ts time.Time) string {
	base := ts.Format(TimestampLayout)
	if us := ts.Nanosecond() / 1000; us != 0 {
		return fmt.Sprintf("%s,%06d", base, us)
	}
	return base
}

// ParseTimestamp accepts "YYYY-MM-DD HH:MM:SS" and "YYYY-MM-DD HH:MM:SS,fff...".
// The result is a wall-clock reading, so formatting it gives back s up to
// microsecond precision.
func ParseTimestamp(s string) (time.Time, error) {
	if len(s) < len(TimestampLayout) {
		return time.Time{}, fmt.Errorf("timestamp %q too short", s)
	}
	if len(s) > len(TimestampLayout) {
		frac := s[len(TimestampLayout):]
		if frac[0] != ',' || len(frac) == 1 || strings.TrimLeft(frac[1:], "0123456789") != "" {
			return time.Time{}, fmt.Errorf("timestamp %q has malformed fractional seconds", s)
		}
	}
	return time.ParseInLocation(TimestampLayout, s, time.UTC)
}

// SortEvents orders events by timestamp, then message.
func SortEvents(events []Event) {
	slices.SortFunc(events, func(a, b Event) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.Message, b.Message)
	})
}

// MergeEvents returns the deduplicated union of both slices, sorted.
func MergeEvents(existing, incoming []Event) []Event {
	seen := make(map[EventKey]struct{}, len(existing)+len(incoming))
	merged := make([]Event, 0, len(existing)+len(incoming))
	for _, batch := range [][]Event{existing, incoming} {
		for _, e := range batch {
			k := e.Key()
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, e)
		}
	}
	SortEvents(merged)
	return merged
}
