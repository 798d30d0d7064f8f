package core

import (
	"strings"
	"time"
)

// Timestamp represents a point in time with timezone awareness
type Timestamp time.Time

// NewTimestamp creates a new timestamp from time.Time
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t)
}

// Now returns the current timestamp
func Now() Timestamp {
	return Timestamp(time.Now())
}

// IsZero checks if the timestamp is zero
func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

// UTCISO formats the timestamp as second-precision ISO 8601 with a Z suffix,
// e.g. 2024-05-01T12:30:00Z.
func (t Timestamp) UTCISO() string {
	return time.Time(t).UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}

// Compact strips '-' and ':' from the ISO form so it can be embedded in file names.
func (t Timestamp) Compact() string {
	return strings.NewReplacer("-", "", ":", "").Replace(t.UTCISO())
}

// JSON marshaling for Timestamp
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return time.Time(t).MarshalJSON()
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var tm time.Time
	if err := tm.UnmarshalJSON(data); err != nil {
		return err
	}
	*t = Timestamp(tm)
	return nil
}
