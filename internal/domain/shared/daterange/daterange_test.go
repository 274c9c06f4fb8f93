package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, value string) Day {
	t.Helper()
	d, err := ParseDay(value)
	require.NoError(t, err)
	return d
}

func TestDayOfTruncates(t *testing.T) {
	ts := time.Date(2026, time.September, 4, 23, 59, 59, 0, time.FixedZone("CET", 3600))
	d := DayOf(ts)
	assert.Equal(t, "2026-09-04", d.String())
	assert.Equal(t, time.UTC, d.Time().Location())
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2026-09-04")
	require.NoError(t, err)
	assert.Equal(t, "2026-09-04", d.String())

	_, err = ParseDay("04/09/2026")
	assert.Error(t, err)

	_, err = ParseDay("")
	assert.Error(t, err)
}

func TestIsWeekend(t *testing.T) {
	assert.False(t, day(t, "2026-09-04").IsWeekend()) // Friday
	assert.True(t, day(t, "2026-09-05").IsWeekend())  // Saturday
	assert.True(t, day(t, "2026-09-06").IsWeekend())  // Sunday
	assert.False(t, day(t, "2026-09-07").IsWeekend()) // Monday
}

func TestNewRejectsEmptyAndReversed(t *testing.T) {
	_, err := New(time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC), time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = New(time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC), time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestNightsAndDays(t *testing.T) {
	dr, err := New(time.Date(2026, 9, 4, 10, 0, 0, 0, time.UTC), time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 3, dr.Nights())

	days := dr.Days()
	require.Len(t, days, 3)
	assert.Equal(t, "2026-09-04", days[0].String())
	assert.Equal(t, "2026-09-05", days[1].String())
	assert.Equal(t, "2026-09-06", days[2].String())
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	base := DateRange{Start: day(t, "2026-09-04"), End: day(t, "2026-09-07")}

	cases := []struct {
		name     string
		other    DateRange
		expected bool
	}{
		{"Identical", DateRange{Start: day(t, "2026-09-04"), End: day(t, "2026-09-07")}, true},
		{"Inside", DateRange{Start: day(t, "2026-09-05"), End: day(t, "2026-09-06")}, true},
		{"OverlapsStart", DateRange{Start: day(t, "2026-09-02"), End: day(t, "2026-09-05")}, true},
		{"OverlapsEnd", DateRange{Start: day(t, "2026-09-06"), End: day(t, "2026-09-09")}, true},
		{"AdjacentBefore", DateRange{Start: day(t, "2026-09-01"), End: day(t, "2026-09-04")}, false},
		{"AdjacentAfter", DateRange{Start: day(t, "2026-09-07"), End: day(t, "2026-09-10")}, false},
		{"Disjoint", DateRange{Start: day(t, "2026-09-20"), End: day(t, "2026-09-22")}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, base.Overlaps(tc.other))
			assert.Equal(t, tc.expected, tc.other.Overlaps(base))
		})
	}
}

func TestContainsDay(t *testing.T) {
	dr := DateRange{Start: day(t, "2026-09-04"), End: day(t, "2026-09-07")}
	assert.True(t, dr.ContainsDay(day(t, "2026-09-04")))
	assert.True(t, dr.ContainsDay(day(t, "2026-09-06")))
	assert.False(t, dr.ContainsDay(day(t, "2026-09-07")))
	assert.False(t, dr.ContainsDay(day(t, "2026-09-03")))
}
