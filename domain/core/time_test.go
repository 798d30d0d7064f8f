package core

import (
	"testing"
	"time"
)

func TestTimestampFormats(t *testing.T) {
	ts := NewTimestamp(time.Date(2024, 5, 1, 12, 30, 15, 999, time.FixedZone("X", 3600)))

	if got := ts.UTCISO(); got != "2024-05-01T11:30:15Z" {
		t.Errorf("UTCISO = %s", got)
	}
	if got := ts.Compact(); got != "20240501T113015Z" {
		t.Errorf("Compact = %s", got)
	}
}
