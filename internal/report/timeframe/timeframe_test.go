package timeframe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestOfWeek(t *testing.T) {
	// 2026-01-07 is a Wednesday inside ISO week 2 of 2026.
	r := Of(date(2026, time.January, 7), Week)

	assert.Equal(t, Week, r.Kind)
	assert.Equal(t, "W02-2026", r.Key)
	assert.Equal(t, date(2026, time.January, 5), r.Start, "week should start on Monday")
	assert.Equal(t, date(2026, time.January, 11), r.End, "week should end on Sunday")
}

func TestOfWeekYearBoundary(t *testing.T) {
	// 2025-12-29 is a Monday belonging to ISO week 1 of 2026: the key must
	// use the ISO week-numbering year, not the calendar year.
	r := Of(date(2025, time.December, 29), Week)

	assert.Equal(t, "W01-2026", r.Key)
	assert.Equal(t, date(2025, time.December, 29), r.Start)
	assert.Equal(t, date(2026, time.January, 4), r.End)
}

func TestOfWeekSunday(t *testing.T) {
	// Sunday closes the ISO week, it must not start a new one.
	r := Of(date(2026, time.January, 11), Week)

	assert.Equal(t, "W02-2026", r.Key)
	assert.Equal(t, date(2026, time.January, 5), r.Start)
}

func TestOfMonth(t *testing.T) {
	r := Of(date(2026, time.February, 15), Month)

	assert.Equal(t, Month, r.Kind)
	assert.Equal(t, "02/2026", r.Key)
	assert.Equal(t, date(2026, time.February, 1), r.Start)
	assert.Equal(t, date(2026, time.February, 28), r.End)
}

func TestOfMonthIgnoresTimeOfDay(t *testing.T) {
	noon := time.Date(2026, time.March, 10, 12, 30, 0, 0, time.UTC)
	r := Of(noon, Month)

	assert.Equal(t, "03/2026", r.Key)
	assert.Equal(t, date(2026, time.March, 1), r.Start)
	assert.Equal(t, date(2026, time.March, 31), r.End)
}

func TestCoveringSingleDay(t *testing.T) {
	d := date(2026, time.January, 7)
	ranges := Covering(d, d)

	assert.Len(t, ranges, 2, "one week and one month bucket")
	keys := []string{ranges[0].Key, ranges[1].Key}
	assert.Contains(t, keys, "W02-2026")
	assert.Contains(t, keys, "01/2026")
}

func TestCoveringSpan(t *testing.T) {
	ranges := Covering(date(2026, time.January, 5), date(2026, time.February, 3))

	var weeks, months []string
	for _, r := range ranges {
		switch r.Kind {
		case Week:
			weeks = append(weeks, r.Key)
		case Month:
			months = append(months, r.Key)
		}
	}
	assert.Equal(t, []string{"W02-2026", "W03-2026", "W04-2026", "W05-2026", "W06-2026"}, weeks)
	assert.Equal(t, []string{"01/2026", "02/2026"}, months)
}
