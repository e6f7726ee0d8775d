package domain

import "time"

// UTCNow returns the current time in UTC.
func UTCNow() time.Time {
	return time.Now().UTC()
}

// EnsureUTC normalizes a timestamp to UTC.
func EnsureUTC(t time.Time) time.Time {
	return t.UTC()
}

// EnsureUTCPtr normalizes an optional timestamp to UTC, preserving nil.
func EnsureUTCPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
