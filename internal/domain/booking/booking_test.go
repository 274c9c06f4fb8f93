package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driveshare/internal/domain/pricing"
	"driveshare/internal/domain/shared/daterange"
	"driveshare/internal/domain/shared/money"
)

var createdAt = time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)

func quoteOf(t *testing.T, subtotal, fee int64) pricing.Quote {
	t.Helper()
	total, err := money.Must(subtotal, "USD").Add(money.Must(fee, "USD"))
	require.NoError(t, err)
	return pricing.Quote{
		Subtotal:   money.Must(subtotal, "USD"),
		ServiceFee: money.Must(fee, "USD"),
		Total:      total,
	}
}

func rangeOf(t *testing.T, start, end string) daterange.DateRange {
	t.Helper()
	s, err := daterange.ParseDay(start)
	require.NoError(t, err)
	e, err := daterange.ParseDay(end)
	require.NoError(t, err)
	return daterange.DateRange{Start: s, End: e}
}

func params(t *testing.T) CreateParams {
	return CreateParams{
		ID:         "booking-1",
		CarID:      "car-1",
		OwnerID:    "owner-1",
		Renter:     RenterSnapshot{RenterID: "renter-1", Name: "Ada", Email: "ada@example.com"},
		Range:      rangeOf(t, "2026-09-10", "2026-09-13"),
		Price:      quoteOf(t, 30000, 1500),
		PaymentRef: "pay_abc",
		CreatedAt:  createdAt,
	}
}

func TestNewBookingInstant(t *testing.T) {
	b, err := NewBooking(params(t))
	require.NoError(t, err)

	assert.Equal(t, StatePending, b.State)
	assert.Equal(t, PaymentRequiresCapture, b.PaymentStatus)
	assert.Nil(t, b.ApprovalDeadline)

	pending := b.PendingEvents()
	require.Len(t, pending, 1)
	assert.Equal(t, "reservation.requested", pending[0].EventName())
}

func TestNewBookingRequiresApproval(t *testing.T) {
	p := params(t)
	p.RequiresApproval = true
	p.ApprovalDeadline = createdAt.Add(24 * time.Hour)

	b, err := NewBooking(p)
	require.NoError(t, err)

	assert.Equal(t, StateAwaitingApproval, b.State)
	require.NotNil(t, b.ApprovalDeadline)
	assert.Equal(t, createdAt.Add(24*time.Hour), *b.ApprovalDeadline)
	assert.True(t, b.CanDecide())
}

func TestNewBookingValidation(t *testing.T) {
	t.Run("MissingRenter", func(t *testing.T) {
		p := params(t)
		p.Renter.RenterID = ""
		_, err := NewBooking(p)
		assert.ErrorIs(t, err, ErrRenterRequired)
	})

	t.Run("StartInPast", func(t *testing.T) {
		p := params(t)
		p.Range = rangeOf(t, "2026-08-20", "2026-08-23")
		_, err := NewBooking(p)
		assert.ErrorIs(t, err, ErrRangeInPast)
	})

	t.Run("TotalMismatch", func(t *testing.T) {
		p := params(t)
		p.Price.Total = money.Must(99999, "USD")
		_, err := NewBooking(p)
		assert.ErrorIs(t, err, ErrTotalMismatch)
	})

	t.Run("ApprovalWithoutDeadline", func(t *testing.T) {
		p := params(t)
		p.RequiresApproval = true
		_, err := NewBooking(p)
		assert.ErrorIs(t, err, ErrDeadlineRequired)
	})
}

func TestConfirm(t *testing.T) {
	b, err := NewBooking(params(t))
	require.NoError(t, err)
	b.ClearEvents()

	require.NoError(t, b.Confirm(createdAt.Add(time.Minute)))
	assert.Equal(t, StateConfirmed, b.State)
	assert.Equal(t, PaymentSucceeded, b.PaymentStatus)
	assert.Nil(t, b.ApprovalDeadline)

	pending := b.PendingEvents()
	require.Len(t, pending, 1)
	assert.Equal(t, "reservation.confirmed", pending[0].EventName())

	assert.ErrorIs(t, b.Confirm(createdAt), ErrInvalidState)
}

func TestRejectCancelsPendingCapture(t *testing.T) {
	p := params(t)
	p.RequiresApproval = true
	p.ApprovalDeadline = createdAt.Add(24 * time.Hour)
	b, err := NewBooking(p)
	require.NoError(t, err)

	require.NoError(t, b.Reject("owner declined", createdAt.Add(time.Hour)))
	assert.Equal(t, StateRejected, b.State)
	assert.Equal(t, PaymentCanceled, b.PaymentStatus)
	assert.Nil(t, b.ApprovalDeadline)
	assert.True(t, b.State.Terminal())

	assert.ErrorIs(t, b.Reject("again", createdAt), ErrInvalidState)
}

func TestRejectRequiresAwaitingApproval(t *testing.T) {
	b, err := NewBooking(params(t))
	require.NoError(t, err)
	assert.ErrorIs(t, b.Reject("nope", createdAt), ErrInvalidState)
}

func TestMarkCaptureFailed(t *testing.T) {
	b, err := NewBooking(params(t))
	require.NoError(t, err)

	require.NoError(t, b.MarkCaptureFailed(createdAt.Add(time.Minute)))
	assert.Equal(t, StateRejected, b.State)
	assert.Equal(t, PaymentFailed, b.PaymentStatus)
}

func TestCancelRefundTiers(t *testing.T) {
	policy := DefaultRefundPolicy()

	t.Run("FullRefundOutsideWindow", func(t *testing.T) {
		b, err := NewBooking(params(t))
		require.NoError(t, err)
		require.NoError(t, b.Confirm(createdAt))

		// Start is 2026-09-10; more than 7 days out.
		refund, err := b.Cancel(policy, "plans changed", createdAt)
		require.NoError(t, err)
		assert.Equal(t, int64(31500), refund.Amount)
		assert.Equal(t, StateCancelled, b.State)
		assert.Equal(t, PaymentRefunded, b.PaymentStatus)
	})

	t.Run("PartialRefundInsideWindow", func(t *testing.T) {
		b, err := NewBooking(params(t))
		require.NoError(t, err)
		require.NoError(t, b.Confirm(createdAt))

		cancelAt := time.Date(2026, time.September, 8, 9, 0, 0, 0, time.UTC)
		refund, err := b.Cancel(policy, "plans changed", cancelAt)
		require.NoError(t, err)
		assert.Equal(t, int64(15750), refund.Amount)
		assert.Equal(t, PaymentRefunded, b.PaymentStatus)
	})

	t.Run("TooLateOnStartDate", func(t *testing.T) {
		b, err := NewBooking(params(t))
		require.NoError(t, err)
		require.NoError(t, b.Confirm(createdAt))

		cancelAt := time.Date(2026, time.September, 10, 0, 0, 0, 0, time.UTC)
		_, err = b.Cancel(policy, "too late", cancelAt)
		assert.ErrorIs(t, err, ErrTooLateToCancel)
		assert.Equal(t, StateConfirmed, b.State)
	})

	t.Run("PolicyRefundsNothingOnOrAfterStart", func(t *testing.T) {
		start, err := daterange.ParseDay("2026-09-10")
		require.NoError(t, err)

		refund := policy.RefundFor(money.Must(31500, "USD"), start.Time(), start)
		assert.True(t, refund.IsZero())

		refund = policy.RefundFor(money.Must(31500, "USD"), start.Time().Add(48*time.Hour), start)
		assert.True(t, refund.IsZero())
	})

	t.Run("OnlyConfirmedCancels", func(t *testing.T) {
		b, err := NewBooking(params(t))
		require.NoError(t, err)
		_, err = b.Cancel(policy, "nope", createdAt)
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestComplete(t *testing.T) {
	b, err := NewBooking(params(t))
	require.NoError(t, err)
	require.NoError(t, b.Confirm(createdAt))

	// Still running on the last night.
	assert.ErrorIs(t, b.Complete(time.Date(2026, 9, 12, 23, 0, 0, 0, time.UTC)), ErrInvalidState)

	require.NoError(t, b.Complete(time.Date(2026, 9, 13, 1, 0, 0, 0, time.UTC)))
	assert.Equal(t, StateCompleted, b.State)
	assert.True(t, b.State.Terminal())
}

func TestIsActive(t *testing.T) {
	b, err := NewBooking(params(t))
	require.NoError(t, err)
	require.NoError(t, b.Confirm(createdAt))

	assert.False(t, b.IsActive(time.Date(2026, 9, 9, 12, 0, 0, 0, time.UTC)))
	assert.True(t, b.IsActive(time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)))
	assert.True(t, b.IsActive(time.Date(2026, 9, 12, 23, 0, 0, 0, time.UTC)))
	assert.False(t, b.IsActive(time.Date(2026, 9, 13, 0, 30, 0, 0, time.UTC)))
}

func TestDeadlineElapsed(t *testing.T) {
	p := params(t)
	p.RequiresApproval = true
	p.ApprovalDeadline = createdAt.Add(24 * time.Hour)
	b, err := NewBooking(p)
	require.NoError(t, err)

	assert.False(t, b.DeadlineElapsed(createdAt.Add(23*time.Hour)))
	assert.True(t, b.DeadlineElapsed(createdAt.Add(25*time.Hour)))

	require.NoError(t, b.Confirm(createdAt.Add(time.Hour)))
	assert.False(t, b.DeadlineElapsed(createdAt.Add(25*time.Hour)))
}

func TestReconcilePaymentIdempotent(t *testing.T) {
	b, err := NewBooking(params(t))
	require.NoError(t, err)
	require.NoError(t, b.Confirm(createdAt))
	b.ClearEvents()

	changed := b.ReconcilePayment(PaymentRefunded, createdAt.Add(time.Hour))
	assert.True(t, changed)
	assert.Equal(t, PaymentRefunded, b.PaymentStatus)
	require.Len(t, b.PendingEvents(), 1)

	b.ClearEvents()
	changed = b.ReconcilePayment(PaymentRefunded, createdAt.Add(2*time.Hour))
	assert.False(t, changed)
	assert.Empty(t, b.PendingEvents())
}
