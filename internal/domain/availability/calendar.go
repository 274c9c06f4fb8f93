package availability

import (
	"context"
	"errors"
	"time"

	"driveshare/internal/domain/cars"
	"driveshare/internal/domain/shared/daterange"
	"driveshare/internal/domain/shared/events"
)

var (
	ErrDatesUnavailable = errors.New("availability: one or more dates are not free")
	ErrDateBooked       = errors.New("availability: date covered by a committed booking")
	ErrHoldNotFound     = errors.New("availability: hold not found")
	ErrVersionConflict  = errors.New("availability: concurrent calendar update")
)

// DayState marks a non-available calendar date. Available dates carry no entry.
type DayState string

const (
	StateBlocked DayState = "BLOCKED"
	StateBooked  DayState = "BOOKED"
	StateHeld    DayState = "PENDING_HOLD"
)

// Entry is the recorded state of one (car, date) cell.
type Entry struct {
	State     DayState
	Reference string
	CreatedAt time.Time
}

// HoldToken identifies a transient exclusive claim placed by an in-flight
// reservation. Its reference doubles as the booking id the claim serves.
type HoldToken struct {
	Reference string
	CarID     cars.CarID
	Range     daterange.DateRange
}

// Calendar is the per-car availability ledger. All range mutations are
// all-or-nothing against the in-memory state; persistence must use a
// version compare-and-set so concurrent writers linearize.
type Calendar struct {
	CarID   cars.CarID
	Days    map[string]Entry // keyed by Day.String()
	Version int64
	events.EventRecorder
}

type Repository interface {
	Calendar(ctx context.Context, id cars.CarID) (*Calendar, error)
	// Save persists the calendar iff the stored version still matches;
	// returns ErrVersionConflict otherwise.
	Save(ctx context.Context, calendar *Calendar) error
	// WithStaleHolds lists calendars holding at least one PENDING_HOLD
	// entry created before the cutoff.
	WithStaleHolds(ctx context.Context, cutoff time.Time) ([]*Calendar, error)
}

func NewCalendar(id cars.CarID) *Calendar {
	return &Calendar{CarID: id, Days: make(map[string]Entry)}
}

// IsRangeFree reports whether no date in [Start, End) is blocked, booked
// or held.
func (c *Calendar) IsRangeFree(dr daterange.DateRange) bool {
	for _, day := range dr.Days() {
		if _, taken := c.Days[day.String()]; taken {
			return false
		}
	}
	return true
}

// Hold transitions every date in the range to PENDING_HOLD iff all of them
// are currently free. On conflict nothing is mutated.
func (c *Calendar) Hold(dr daterange.DateRange, reference string, now time.Time) (HoldToken, error) {
	if !c.IsRangeFree(dr) {
		c.Record(OverbookingPrevented{CarID: string(c.CarID), Range: dr, At: now.UTC()})
		return HoldToken{}, ErrDatesUnavailable
	}
	for _, day := range dr.Days() {
		c.Days[day.String()] = Entry{State: StateHeld, Reference: reference, CreatedAt: now.UTC()}
	}
	c.Record(RangeHeld{CarID: string(c.CarID), Reference: reference, Range: dr, At: now.UTC()})
	return HoldToken{Reference: reference, CarID: c.CarID, Range: dr}, nil
}

// CommitHold flips the held dates to BOOKED once the booking is confirmed.
func (c *Calendar) CommitHold(token HoldToken, now time.Time) error {
	if err := c.ensureHeld(token.Reference); err != nil {
		return err
	}
	for key, entry := range c.Days {
		if entry.State == StateHeld && entry.Reference == token.Reference {
			entry.State = StateBooked
			c.Days[key] = entry
		}
	}
	c.Record(HoldCommitted{CarID: string(c.CarID), Reference: token.Reference, Range: token.Range, At: now.UTC()})
	return nil
}

// ReleaseHold returns held dates to available. Safe to call once per token.
func (c *Calendar) ReleaseHold(token HoldToken, now time.Time) error {
	if err := c.ensureHeld(token.Reference); err != nil {
		return err
	}
	c.releaseByReference(token.Reference, StateHeld)
	c.Record(HoldReleased{CarID: string(c.CarID), Reference: token.Reference, Range: token.Range, At: now.UTC()})
	return nil
}

// ReleaseBooking frees BOOKED dates when a confirmed booking is cancelled.
func (c *Calendar) ReleaseBooking(reference string, now time.Time) error {
	found := false
	for _, entry := range c.Days {
		if entry.State == StateBooked && entry.Reference == reference {
			found = true
			break
		}
	}
	if !found {
		return ErrHoldNotFound
	}
	c.releaseByReference(reference, StateBooked)
	c.Record(BookingReleased{CarID: string(c.CarID), Reference: reference, At: now.UTC()})
	return nil
}

// BlockDays records host blocks. Blocking an already blocked date is a
// no-op; blocking a booked or held date fails without partial effect.
func (c *Calendar) BlockDays(days []daterange.Day, now time.Time) error {
	for _, day := range days {
		if entry, taken := c.Days[day.String()]; taken && entry.State != StateBlocked {
			return ErrDateBooked
		}
	}
	blocked := make([]string, 0, len(days))
	for _, day := range days {
		if _, taken := c.Days[day.String()]; taken {
			continue
		}
		c.Days[day.String()] = Entry{State: StateBlocked, CreatedAt: now.UTC()}
		blocked = append(blocked, day.String())
	}
	if len(blocked) > 0 {
		c.Record(DatesBlocked{CarID: string(c.CarID), Dates: blocked, At: now.UTC()})
	}
	return nil
}

// UnblockDays clears host blocks. Dates in any other state are untouched.
func (c *Calendar) UnblockDays(days []daterange.Day, now time.Time) error {
	cleared := make([]string, 0, len(days))
	for _, day := range days {
		entry, taken := c.Days[day.String()]
		if !taken || entry.State != StateBlocked {
			continue
		}
		delete(c.Days, day.String())
		cleared = append(cleared, day.String())
	}
	if len(cleared) > 0 {
		c.Record(DatesUnblocked{CarID: string(c.CarID), Dates: cleared, At: now.UTC()})
	}
	return nil
}

// StaleHolds returns the references of holds created before the cutoff.
// Used by the reconciliation sweep to garbage-collect orphaned claims.
func (c *Calendar) StaleHolds(cutoff time.Time) []string {
	seen := make(map[string]struct{})
	var refs []string
	for _, entry := range c.Days {
		if entry.State != StateHeld || !entry.CreatedAt.Before(cutoff) {
			continue
		}
		if _, dup := seen[entry.Reference]; dup {
			continue
		}
		seen[entry.Reference] = struct{}{}
		refs = append(refs, entry.Reference)
	}
	return refs
}

// HoldByReference rebuilds the token for a live hold, if present.
func (c *Calendar) HoldByReference(reference string) (HoldToken, bool) {
	var first, last daterange.Day
	found := false
	for key, entry := range c.Days {
		if entry.State != StateHeld || entry.Reference != reference {
			continue
		}
		day, err := daterange.ParseDay(key)
		if err != nil {
			continue
		}
		if !found {
			first, last = day, day
			found = true
			continue
		}
		if day.Before(first) {
			first = day
		}
		if day.After(last) {
			last = day
		}
	}
	if !found {
		return HoldToken{}, false
	}
	return HoldToken{
		Reference: reference,
		CarID:     c.CarID,
		Range:     daterange.DateRange{Start: first, End: last.Next()},
	}, true
}

func (c *Calendar) ensureHeld(reference string) error {
	for _, entry := range c.Days {
		if entry.State == StateHeld && entry.Reference == reference {
			return nil
		}
	}
	return ErrHoldNotFound
}

func (c *Calendar) releaseByReference(reference string, state DayState) {
	for key, entry := range c.Days {
		if entry.State == state && entry.Reference == reference {
			delete(c.Days, key)
		}
	}
}
