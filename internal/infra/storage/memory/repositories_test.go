package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driveshare/internal/domain/availability"
	"driveshare/internal/domain/booking"
	"driveshare/internal/domain/pricing"
	"driveshare/internal/domain/shared/daterange"
	"driveshare/internal/domain/shared/money"
)

func rangeOf(t *testing.T, start, end string) daterange.DateRange {
	t.Helper()
	s, err := daterange.ParseDay(start)
	require.NoError(t, err)
	e, err := daterange.ParseDay(end)
	require.NoError(t, err)
	return daterange.DateRange{Start: s, End: e}
}

func TestCalendarSaveDetectsConflicts(t *testing.T) {
	ctx := context.Background()
	repo := NewCalendarRepository()
	now := time.Now().UTC()

	first, err := repo.Calendar(ctx, "car-1")
	require.NoError(t, err)
	second, err := repo.Calendar(ctx, "car-1")
	require.NoError(t, err)

	_, err = first.Hold(rangeOf(t, "2026-09-10", "2026-09-12"), "booking-a", now)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, first))

	_, err = second.Hold(rangeOf(t, "2026-09-10", "2026-09-12"), "booking-b", now)
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Save(ctx, second), availability.ErrVersionConflict)
}

func TestConcurrentHoldsExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	repo := NewCalendarRepository()
	ledger := availability.Ledger{Repo: repo}
	dr := rangeOf(t, "2026-09-10", "2026-09-13")
	now := time.Now().UTC()

	results := make([]error, 2)
	var wg sync.WaitGroup
	for i, ref := range []string{"booking-a", "booking-b"} {
		wg.Add(1)
		go func(slot int, reference string) {
			defer wg.Done()
			_, err := ledger.HoldRange(ctx, "car-1", dr, reference, now)
			results[slot] = err
		}(i, ref)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, availability.ErrDatesUnavailable)
		}
	}
	assert.Equal(t, 1, winners)

	cal, err := repo.Calendar(ctx, "car-1")
	require.NoError(t, err)
	refs := make(map[string]struct{})
	for _, entry := range cal.Days {
		refs[entry.Reference] = struct{}{}
	}
	assert.Len(t, refs, 1)
}

func TestCalendarCloneIsolation(t *testing.T) {
	ctx := context.Background()
	repo := NewCalendarRepository()
	now := time.Now().UTC()

	cal, err := repo.Calendar(ctx, "car-1")
	require.NoError(t, err)
	_, err = cal.Hold(rangeOf(t, "2026-09-10", "2026-09-11"), "booking-a", now)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, cal))

	loaded, err := repo.Calendar(ctx, "car-1")
	require.NoError(t, err)
	delete(loaded.Days, "2026-09-10")

	fresh, err := repo.Calendar(ctx, "car-1")
	require.NoError(t, err)
	_, taken := fresh.Days["2026-09-10"]
	assert.True(t, taken, "mutating a loaded copy must not touch the store")
}

func TestCalendarWithStaleHolds(t *testing.T) {
	ctx := context.Background()
	repo := NewCalendarRepository()
	now := time.Now().UTC()

	stale, err := repo.Calendar(ctx, "car-stale")
	require.NoError(t, err)
	_, err = stale.Hold(rangeOf(t, "2026-09-10", "2026-09-11"), "booking-old", now.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, stale))

	fresh, err := repo.Calendar(ctx, "car-fresh")
	require.NoError(t, err)
	_, err = fresh.Hold(rangeOf(t, "2026-09-10", "2026-09-11"), "booking-new", now)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, fresh))

	matches, err := repo.WithStaleHolds(ctx, now.Add(-15*time.Minute))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "car-stale", string(matches[0].CarID))
}

func newBooking(t *testing.T, id, renter, ref string, dr daterange.DateRange) *booking.Booking {
	t.Helper()
	total := money.Must(21000, "USD")
	b, err := booking.NewBooking(booking.CreateParams{
		ID:         booking.BookingID(id),
		CarID:      "car-1",
		OwnerID:    "owner-1",
		Renter:     booking.RenterSnapshot{RenterID: renter, Name: "Renter"},
		Range:      dr,
		Price:      pricing.Quote{Subtotal: money.Must(20000, "USD"), ServiceFee: money.Must(1000, "USD"), Total: total},
		PaymentRef: ref,
		CreatedAt:  time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return b
}

func TestBookingSaveVersioning(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepository()
	b := newBooking(t, "booking-1", "renter-1", "pay_1", rangeOf(t, "2026-09-10", "2026-09-12"))

	require.NoError(t, repo.Save(ctx, b))
	assert.Equal(t, int64(1), b.Version)

	stale := newBooking(t, "booking-1", "renter-1", "pay_1", rangeOf(t, "2026-09-10", "2026-09-12"))
	assert.ErrorIs(t, repo.Save(ctx, stale), booking.ErrVersionConflict)

	require.NoError(t, b.Confirm(time.Now()))
	require.NoError(t, repo.Save(ctx, b))
	assert.Equal(t, int64(2), b.Version)

	loaded, err := repo.ByID(ctx, "booking-1")
	require.NoError(t, err)
	assert.Equal(t, booking.StateConfirmed, loaded.State)
	assert.Empty(t, loaded.PendingEvents())
}

func TestBookingByPaymentRef(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepository()
	b := newBooking(t, "booking-1", "renter-1", "pay_xyz", rangeOf(t, "2026-09-10", "2026-09-12"))
	require.NoError(t, repo.Save(ctx, b))

	loaded, err := repo.ByPaymentRef(ctx, "pay_xyz")
	require.NoError(t, err)
	assert.Equal(t, booking.BookingID("booking-1"), loaded.ID)

	_, err = repo.ByPaymentRef(ctx, "pay_missing")
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)
}

func TestBookingListQueries(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepository()
	now := time.Date(2026, 9, 20, 12, 0, 0, 0, time.UTC)

	ended := newBooking(t, "booking-ended", "renter-1", "pay_1", rangeOf(t, "2026-09-10", "2026-09-12"))
	require.NoError(t, ended.Confirm(time.Date(2026, 9, 1, 13, 0, 0, 0, time.UTC)))
	require.NoError(t, repo.Save(ctx, ended))

	running := newBooking(t, "booking-running", "renter-2", "pay_2", rangeOf(t, "2026-09-19", "2026-09-22"))
	require.NoError(t, running.Confirm(time.Date(2026, 9, 1, 13, 0, 0, 0, time.UTC)))
	require.NoError(t, repo.Save(ctx, running))

	endedList, err := repo.ListEndedConfirmed(ctx, now)
	require.NoError(t, err)
	require.Len(t, endedList, 1)
	assert.Equal(t, booking.BookingID("booking-ended"), endedList[0].ID)

	mine, err := repo.ListByRenter(ctx, "renter-2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, booking.BookingID("booking-running"), mine[0].ID)
}

func TestOverrideRepositoryVersioning(t *testing.T) {
	ctx := context.Background()
	repo := NewOverrideRepository()

	set, err := repo.ForCar(ctx, "car-1")
	require.NoError(t, err)
	day, err := daterange.ParseDay("2026-09-10")
	require.NoError(t, err)
	set.Set(day, money.Must(12000, "USD"))
	require.NoError(t, repo.Save(ctx, set))

	stale, err := repo.ForCar(ctx, "car-1")
	require.NoError(t, err)
	stale.Version = 0
	assert.ErrorIs(t, repo.Save(ctx, stale), pricing.ErrVersionConflict)
}
