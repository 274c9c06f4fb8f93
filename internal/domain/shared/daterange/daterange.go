package daterange

import (
	"errors"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: end must be after start")
)

// Day is a calendar date with no time component, always UTC midnight.
type Day struct {
	t time.Time
}

// DayOf truncates a timestamp to its UTC calendar date.
func DayOf(t time.Time) Day {
	t = t.UTC()
	return Day{t: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(value string) (Day, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return Day{}, err
	}
	return DayOf(t), nil
}

func (d Day) Time() time.Time   { return d.t }
func (d Day) String() string    { return d.t.Format(time.DateOnly) }
func (d Day) Next() Day         { return Day{t: d.t.AddDate(0, 0, 1)} }
func (d Day) Before(o Day) bool { return d.t.Before(o.t) }
func (d Day) After(o Day) bool  { return d.t.After(o.t) }
func (d Day) Equal(o Day) bool  { return d.t.Equal(o.t) }

// IsWeekend reports whether the date falls on Saturday or Sunday.
func (d Day) IsWeekend() bool {
	wd := d.t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// DateRange represents a half-open interval of calendar dates [Start, End).
// A rental of N nights spans N dates starting at Start.
type DateRange struct {
	Start Day
	End   Day
}

func New(start, end time.Time) (DateRange, error) {
	dr := DateRange{Start: DayOf(start), End: DayOf(end)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

func (dr DateRange) Validate() error {
	if dr.Start.t.IsZero() || dr.End.t.IsZero() {
		return ErrInvalidRange
	}
	if !dr.End.After(dr.Start) {
		return ErrInvalidRange
	}
	return nil
}

// Nights is the number of dates covered by the range.
func (dr DateRange) Nights() int {
	return int(dr.End.t.Sub(dr.Start.t).Hours() / 24)
}

// Days enumerates every date in [Start, End) in order.
func (dr DateRange) Days() []Day {
	days := make([]Day, 0, dr.Nights())
	for d := dr.Start; d.Before(dr.End); d = d.Next() {
		days = append(days, d)
	}
	return days
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.Start.Before(other.End) && other.Start.Before(dr.End)
}

func (dr DateRange) ContainsDay(d Day) bool {
	return !d.Before(dr.Start) && d.Before(dr.End)
}
