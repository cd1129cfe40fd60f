package types

import (
	"time"
)

const (
	// DefaultInterval is the reload period used when none is given
	DefaultInterval = 30 * time.Second

	// MinInterval is the one-second floor for reload periods
	MinInterval = time.Second
)

// Store keys shared by every storage backend
const (
	RecordKeyPrefix = "tab_"
	ActiveTimersKey = "activeTimers"
)

// TabID identifies a browser tab. The value is assigned by the browser and
// treated as opaque.
type TabID string

// String returns the raw identifier
func (id TabID) String() string {
	return string(id)
}

// RecordKey returns the store key holding the tab's TimerRecord
func (id TabID) RecordKey() string {
	return RecordKeyPrefix + string(id)
}

// TimerRecord is the persisted state of one tab's reload timer
type TimerRecord struct {
	TabID      TabID `json:"tabId"`
	Active     bool  `json:"active"`
	Interval   int64 `json:"interval"`             // milliseconds
	StartTime  int64 `json:"startTime"`            // ms since epoch of the last reload or arm
	LastReload int64 `json:"lastReload,omitempty"` // ms since epoch, diagnostic
}

// NewTimerRecord builds an active record armed at startedAt
func NewTimerRecord(id TabID, interval time.Duration, startedAt time.Time) *TimerRecord {
	return &TimerRecord{
		TabID:     id,
		Active:    true,
		Interval:  interval.Milliseconds(),
		StartTime: startedAt.UnixMilli(),
	}
}

// Period returns the reload period as a duration
func (r *TimerRecord) Period() time.Duration {
	return time.Duration(r.Interval) * time.Millisecond
}

// Started returns the start time as wall-clock time
func (r *TimerRecord) Started() time.Time {
	return time.UnixMilli(r.StartTime)
}

// Valid reports whether the record can drive a timer
func (r *TimerRecord) Valid() bool {
	return r != nil && r.Active && r.Interval > 0 && r.StartTime > 0
}

// NormalizeInterval applies the default for zero and the one-second floor
func NormalizeInterval(d time.Duration) time.Duration {
	if d == 0 {
		return DefaultInterval
	}
	if d < MinInterval {
		return MinInterval
	}
	return d
}
