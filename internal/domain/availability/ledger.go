package availability

import (
	"context"
	"errors"
	"time"

	"driveshare/internal/domain/cars"
	"driveshare/internal/domain/shared/daterange"
	"driveshare/internal/domain/shared/events"
)

// EventSink receives calendar events once a mutation is durably saved.
type EventSink interface {
	Publish(ctx context.Context, evs []events.DomainEvent) error
}

// Ledger serializes multi-date check-and-set operations against the
// calendar store. Atomicity comes from the repository's version CAS:
// when two writers race on the same car, the loser reloads and re-checks,
// so at most one overlapping hold ever succeeds.
type Ledger struct {
	Repo Repository
	Sink EventSink
}

const casAttempts = 3

var ErrLedgerContention = errors.New("availability: calendar contention, retry")

func (l Ledger) HoldRange(ctx context.Context, carID cars.CarID, dr daterange.DateRange, reference string, now time.Time) (HoldToken, error) {
	var token HoldToken
	err := l.mutate(ctx, carID, func(cal *Calendar) error {
		t, err := cal.Hold(dr, reference, now)
		if err != nil {
			return err
		}
		token = t
		return nil
	})
	return token, err
}

func (l Ledger) CommitHold(ctx context.Context, token HoldToken, now time.Time) error {
	return l.mutate(ctx, token.CarID, func(cal *Calendar) error {
		return cal.CommitHold(token, now)
	})
}

func (l Ledger) ReleaseHold(ctx context.Context, token HoldToken, now time.Time) error {
	return l.mutate(ctx, token.CarID, func(cal *Calendar) error {
		return cal.ReleaseHold(token, now)
	})
}

func (l Ledger) ReleaseBooking(ctx context.Context, carID cars.CarID, reference string, now time.Time) error {
	return l.mutate(ctx, carID, func(cal *Calendar) error {
		return cal.ReleaseBooking(reference, now)
	})
}

func (l Ledger) BlockDays(ctx context.Context, carID cars.CarID, days []daterange.Day, now time.Time) error {
	return l.mutate(ctx, carID, func(cal *Calendar) error {
		return cal.BlockDays(days, now)
	})
}

func (l Ledger) UnblockDays(ctx context.Context, carID cars.CarID, days []daterange.Day, now time.Time) error {
	return l.mutate(ctx, carID, func(cal *Calendar) error {
		return cal.UnblockDays(days, now)
	})
}

func (l Ledger) IsRangeFree(ctx context.Context, carID cars.CarID, dr daterange.DateRange) (bool, error) {
	cal, err := l.Repo.Calendar(ctx, carID)
	if err != nil {
		return false, err
	}
	return cal.IsRangeFree(dr), nil
}

// mutate loads, applies and saves a calendar, retrying CAS losses. The
// mutation is re-run against fresh state on every attempt, so a retry that
// now conflicts surfaces the domain error (e.g. ErrDatesUnavailable)
// instead of clobbering the winner.
func (l Ledger) mutate(ctx context.Context, carID cars.CarID, fn func(*Calendar) error) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		cal, err := l.Repo.Calendar(ctx, carID)
		if err != nil {
			return err
		}
		if err := fn(cal); err != nil {
			return err
		}
		err = l.Repo.Save(ctx, cal)
		if err == nil {
			pending := cal.PendingEvents()
			cal.ClearEvents()
			if l.Sink != nil && len(pending) > 0 {
				return l.Sink.Publish(ctx, pending)
			}
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
	}
	return ErrLedgerContention
}
