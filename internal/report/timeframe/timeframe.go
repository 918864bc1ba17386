// Package timeframe maps calendar dates onto the WEEK and MONTH aggregation
// buckets used by the staff-growth report keys.
package timeframe

import (
	"fmt"
	"time"
)

// Kind selects the bucket granularity.
type Kind string

const (
	Week  Kind = "WEEK"
	Month Kind = "MONTH"
)

// Kinds lists every bucket granularity a growth event is recorded under.
var Kinds = []Kind{Week, Month}

// Range is an inclusive [Start, End] calendar span plus its bucket key.
type Range struct {
	Kind  Kind
	Key   string
	Start time.Time
	End   time.Time
}

// Of computes the bucket containing date.
//
// WEEK follows ISO 8601: Monday through Sunday, keyed by ISO week number and
// ISO week-numbering year (which differs from the calendar year around
// January 1st). MONTH spans the first through last calendar day of the
// date's month.
func Of(date time.Time, kind Kind) Range {
	day := truncate(date)
	switch kind {
	case Week:
		offset := int(day.Weekday()+6) % 7 // Monday = 0
		start := day.AddDate(0, 0, -offset)
		year, week := day.ISOWeek()
		return Range{
			Kind:  Week,
			Key:   fmt.Sprintf("W%02d-%d", week, year),
			Start: start,
			End:   start.AddDate(0, 0, 6),
		}
	case Month:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Range{
			Kind:  Month,
			Key:   fmt.Sprintf("%02d/%d", day.Month(), day.Year()),
			Start: start,
			End:   start.AddDate(0, 1, -1),
		}
	}
	panic(fmt.Sprintf("unknown timeframe kind %q", kind))
}

// Covering returns every distinct week and month bucket touching the
// inclusive [from, to] date range, in chronological order per kind.
func Covering(from, to time.Time) []Range {
	var out []Range
	for _, kind := range Kinds {
		seen := map[string]bool{}
		for d := truncate(from); !d.After(truncate(to)); d = d.AddDate(0, 0, 1) {
			r := Of(d, kind)
			if !seen[r.Key] {
				seen[r.Key] = true
				out = append(out, r)
			}
		}
	}
	return out
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
