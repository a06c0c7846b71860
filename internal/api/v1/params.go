package v1

import (
	"fmt"
	"time"
)

// DateOnly is the calendar-day parameter and metrics bucket format.
const DateOnly = "2006-01-02"

// TimeParam is a parsed date/time query parameter. Date-only values cover
// a whole calendar day, so range endpoints need to know which form the
// client sent.
type TimeParam struct {
	Time     time.Time
	DateOnly bool
}

// ParseTimeParam accepts RFC3339 timestamps or YYYY-MM-DD dates, the two
// forms the public API documents. Values are normalized to UTC.
func ParseTimeParam(value string) (TimeParam, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return TimeParam{Time: t.UTC()}, nil
	}
	if t, err := time.Parse(DateOnly, value); err == nil {
		return TimeParam{Time: t.UTC(), DateOnly: true}, nil
	}
	return TimeParam{}, fmt.Errorf("must be RFC3339 or YYYY-MM-DD, got %q", value)
}

// RangeStart returns the inclusive lower bound of the parameter.
func (p TimeParam) RangeStart() time.Time {
	return p.Time
}

// RangeEnd returns the exclusive upper bound: the next day for date-only
// values (the whole day is in range), the next instant for timestamps
// (the named instant itself is in range).
func (p TimeParam) RangeEnd() time.Time {
	if p.DateOnly {
		return p.Time.Add(24 * time.Hour)
	}
	return p.Time.Add(time.Nanosecond)
}
