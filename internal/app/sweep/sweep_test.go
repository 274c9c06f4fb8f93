package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driveshare/internal/app/policies"
	"driveshare/internal/domain/booking"
	domaincars "driveshare/internal/domain/cars"
	"driveshare/internal/domain/pricing"
	"driveshare/internal/domain/shared/daterange"
	"driveshare/internal/domain/shared/money"
	"driveshare/internal/infra/payments"
	"driveshare/internal/infra/storage/memory"
)

var sweepNow = time.Date(2026, time.September, 5, 12, 0, 0, 0, time.UTC)

type sweepEnv struct {
	factory   memory.Factory
	gateway   *payments.FakeGateway
	bookings  *memory.BookingRepository
	calendars *memory.CalendarRepository
}

func newSweepEnv(t *testing.T) *sweepEnv {
	t.Helper()
	env := &sweepEnv{
		gateway:   payments.NewFakeGateway(),
		bookings:  memory.NewBookingRepository(),
		calendars: memory.NewCalendarRepository(),
	}
	env.factory = memory.Factory{
		CarRepo:      memory.NewCarRepository(),
		BookingRepo:  env.bookings,
		CalendarRepo: env.calendars,
		OverrideRepo: memory.NewOverrideRepository(),
	}
	return env
}

func sweepRange(t *testing.T, start, end string) daterange.DateRange {
	t.Helper()
	s, err := daterange.ParseDay(start)
	require.NoError(t, err)
	e, err := daterange.ParseDay(end)
	require.NoError(t, err)
	return daterange.DateRange{Start: s, End: e}
}

func (e *sweepEnv) hold(t *testing.T, carID domaincars.CarID, ref string, dr daterange.DateRange, at time.Time) {
	t.Helper()
	ctx := context.Background()
	cal, err := e.calendars.Calendar(ctx, carID)
	require.NoError(t, err)
	_, err = cal.Hold(dr, ref, at)
	require.NoError(t, err)
	require.NoError(t, e.calendars.Save(ctx, cal))
}

func (e *sweepEnv) holdExists(t *testing.T, carID domaincars.CarID, ref string) bool {
	t.Helper()
	cal, err := e.calendars.Calendar(context.Background(), carID)
	require.NoError(t, err)
	_, ok := cal.HoldByReference(ref)
	return ok
}

func (e *sweepEnv) seedAwaitingBooking(t *testing.T, id string, deadline time.Time) string {
	t.Helper()
	ctx := context.Background()
	ref, err := e.gateway.Authorize(ctx, id, money.Must(21000, "USD"), "renter-1")
	require.NoError(t, err)

	bk, err := booking.NewBooking(booking.CreateParams{
		ID:      booking.BookingID(id),
		CarID:   "car-1",
		OwnerID: "owner-1",
		Renter:  booking.RenterSnapshot{RenterID: "renter-1", Name: "Ada"},
		Range:   sweepRange(t, "2026-09-10", "2026-09-12"),
		Price: pricing.Quote{
			Subtotal:   money.Must(20000, "USD"),
			ServiceFee: money.Must(1000, "USD"),
			Total:      money.Must(21000, "USD"),
		},
		PaymentRef:       ref,
		RequiresApproval: true,
		ApprovalDeadline: deadline,
		CreatedAt:        sweepNow.Add(-25 * time.Hour),
	})
	require.NoError(t, err)
	bk.ClearEvents()
	require.NoError(t, e.bookings.Save(ctx, bk))
	return ref
}

func TestApprovalTimerExpiresUnansweredRequests(t *testing.T) {
	env := newSweepEnv(t)
	ctx := context.Background()

	env.seedAwaitingBooking(t, "bk-expired", sweepNow.Add(-time.Hour))
	env.hold(t, "car-1", "bk-expired", sweepRange(t, "2026-09-10", "2026-09-12"), sweepNow.Add(-25*time.Hour))

	timer := &ApprovalTimer{
		UoWFactory: env.factory,
		Payments:   env.gateway,
		Now:        func() time.Time { return sweepNow },
	}
	require.NoError(t, timer.Run(ctx))

	bk, err := env.bookings.ByID(ctx, "bk-expired")
	require.NoError(t, err)
	assert.Equal(t, booking.StateRejected, bk.State)
	assert.Equal(t, booking.PaymentCanceled, bk.PaymentStatus)

	status, ok := env.gateway.StatusOf("bk-expired")
	require.True(t, ok)
	assert.Equal(t, policies.AuthorizationCanceled, status)

	assert.False(t, env.holdExists(t, "car-1", "bk-expired"))
}

func TestApprovalTimerLeavesOpenWindowsAlone(t *testing.T) {
	env := newSweepEnv(t)
	ctx := context.Background()

	env.seedAwaitingBooking(t, "bk-open", sweepNow.Add(time.Hour))
	env.hold(t, "car-1", "bk-open", sweepRange(t, "2026-09-10", "2026-09-12"), sweepNow.Add(-time.Minute))

	timer := &ApprovalTimer{
		UoWFactory: env.factory,
		Payments:   env.gateway,
		Now:        func() time.Time { return sweepNow },
	}
	require.NoError(t, timer.Run(ctx))

	bk, err := env.bookings.ByID(ctx, "bk-open")
	require.NoError(t, err)
	assert.Equal(t, booking.StateAwaitingApproval, bk.State)
	assert.True(t, env.holdExists(t, "car-1", "bk-open"))
}

func TestApprovalTimerRetriesOnGatewayOutage(t *testing.T) {
	env := newSweepEnv(t)
	ctx := context.Background()

	env.seedAwaitingBooking(t, "bk-expired", sweepNow.Add(-time.Hour))
	env.hold(t, "car-1", "bk-expired", sweepRange(t, "2026-09-10", "2026-09-12"), sweepNow.Add(-25*time.Hour))
	env.gateway.Unavailable = true

	timer := &ApprovalTimer{
		UoWFactory: env.factory,
		Payments:   env.gateway,
		Now:        func() time.Time { return sweepNow },
	}
	require.NoError(t, timer.Run(ctx))

	// Nothing mutates while the cancel outcome is unknown.
	bk, err := env.bookings.ByID(ctx, "bk-expired")
	require.NoError(t, err)
	assert.Equal(t, booking.StateAwaitingApproval, bk.State)
	assert.True(t, env.holdExists(t, "car-1", "bk-expired"))
}

func TestApprovalTimerYieldsToCapturedPayment(t *testing.T) {
	env := newSweepEnv(t)
	ctx := context.Background()

	ref := env.seedAwaitingBooking(t, "bk-contended", sweepNow.Add(-time.Hour))
	env.hold(t, "car-1", "bk-contended", sweepRange(t, "2026-09-10", "2026-09-12"), sweepNow.Add(-25*time.Hour))
	// A concurrent approve already captured the funds but has not
	// committed its booking yet.
	require.NoError(t, env.gateway.Capture(ctx, ref))

	timer := &ApprovalTimer{
		UoWFactory: env.factory,
		Payments:   env.gateway,
		Now:        func() time.Time { return sweepNow },
	}
	require.NoError(t, timer.Run(ctx))

	bk, err := env.bookings.ByID(ctx, "bk-contended")
	require.NoError(t, err)
	assert.Equal(t, booking.StateAwaitingApproval, bk.State)
	assert.True(t, env.holdExists(t, "car-1", "bk-contended"))

	status, ok := env.gateway.StatusOf("bk-contended")
	require.True(t, ok)
	assert.Equal(t, policies.AuthorizationSucceeded, status)
}

func TestReconciliationReleasesOrphanedHolds(t *testing.T) {
	env := newSweepEnv(t)
	ctx := context.Background()

	// A crashed saga: hold and authorization exist, no booking record.
	_, err := env.gateway.Authorize(ctx, "ghost", money.Must(21000, "USD"), "renter-1")
	require.NoError(t, err)
	env.hold(t, "car-1", "ghost", sweepRange(t, "2026-09-10", "2026-09-12"), sweepNow.Add(-30*time.Minute))

	// A completed saga with an old hold: the booking exists, leave it.
	env.seedAwaitingBooking(t, "bk-live", sweepNow.Add(time.Hour))
	env.hold(t, "car-2", "bk-live", sweepRange(t, "2026-09-10", "2026-09-12"), sweepNow.Add(-30*time.Minute))

	rec := &Reconciliation{
		UoWFactory: env.factory,
		Payments:   env.gateway,
		Now:        func() time.Time { return sweepNow },
	}
	require.NoError(t, rec.Run(ctx))

	assert.False(t, env.holdExists(t, "car-1", "ghost"))
	status, ok := env.gateway.StatusOf("ghost")
	require.True(t, ok)
	assert.Equal(t, policies.AuthorizationCanceled, status)

	assert.True(t, env.holdExists(t, "car-2", "bk-live"))
	status, ok = env.gateway.StatusOf("bk-live")
	require.True(t, ok)
	assert.Equal(t, policies.AuthorizationRequiresCapture, status)
}

func TestReconciliationIgnoresFreshHolds(t *testing.T) {
	env := newSweepEnv(t)
	ctx := context.Background()

	env.hold(t, "car-1", "in-flight", sweepRange(t, "2026-09-10", "2026-09-12"), sweepNow.Add(-time.Minute))

	rec := &Reconciliation{
		UoWFactory: env.factory,
		Payments:   env.gateway,
		Now:        func() time.Time { return sweepNow },
	}
	require.NoError(t, rec.Run(ctx))

	assert.True(t, env.holdExists(t, "car-1", "in-flight"))
}

func TestCompletionClosesEndedBookings(t *testing.T) {
	env := newSweepEnv(t)
	ctx := context.Background()
	now := time.Date(2026, time.September, 20, 12, 0, 0, 0, time.UTC)

	seedConfirmed := func(id string, dr daterange.DateRange) {
		bk, err := booking.NewBooking(booking.CreateParams{
			ID:      booking.BookingID(id),
			CarID:   "car-1",
			OwnerID: "owner-1",
			Renter:  booking.RenterSnapshot{RenterID: "renter-1", Name: "Ada"},
			Range:   dr,
			Price: pricing.Quote{
				Subtotal:   money.Must(20000, "USD"),
				ServiceFee: money.Must(1000, "USD"),
				Total:      money.Must(21000, "USD"),
			},
			PaymentRef: "pay_" + id,
			CreatedAt:  sweepNow,
		})
		require.NoError(t, err)
		require.NoError(t, bk.Confirm(sweepNow))
		bk.ClearEvents()
		require.NoError(t, env.bookings.Save(ctx, bk))

		cal, err := env.calendars.Calendar(ctx, "car-1")
		require.NoError(t, err)
		token, err := cal.Hold(dr, id, sweepNow)
		require.NoError(t, err)
		require.NoError(t, cal.CommitHold(token, sweepNow))
		require.NoError(t, env.calendars.Save(ctx, cal))
	}

	seedConfirmed("bk-ended", sweepRange(t, "2026-09-10", "2026-09-12"))
	seedConfirmed("bk-running", sweepRange(t, "2026-09-19", "2026-09-22"))

	comp := &Completion{
		UoWFactory: env.factory,
		Now:        func() time.Time { return now },
	}
	require.NoError(t, comp.Run(ctx))

	ended, err := env.bookings.ByID(ctx, "bk-ended")
	require.NoError(t, err)
	assert.Equal(t, booking.StateCompleted, ended.State)

	running, err := env.bookings.ByID(ctx, "bk-running")
	require.NoError(t, err)
	assert.Equal(t, booking.StateConfirmed, running.State)

	cal, err := env.calendars.Calendar(ctx, "car-1")
	require.NoError(t, err)
	for _, day := range sweepRange(t, "2026-09-10", "2026-09-12").Days() {
		_, taken := cal.Days[day.String()]
		assert.False(t, taken, day.String())
	}
	for _, day := range sweepRange(t, "2026-09-19", "2026-09-22").Days() {
		assert.NotEmpty(t, cal.Days[day.String()].Reference, day.String())
	}
}
