package booking

import (
	"context"
	"errors"
	"time"

	"driveshare/internal/domain/cars"
	"driveshare/internal/domain/pricing"
	"driveshare/internal/domain/shared/daterange"
	"driveshare/internal/domain/shared/events"
	"driveshare/internal/domain/shared/money"
)

var (
	ErrInvalidState     = errors.New("booking: invalid state transition")
	ErrBookingNotFound  = errors.New("booking: not found")
	ErrVersionConflict  = errors.New("booking: concurrent update detected")
	ErrTotalMismatch    = errors.New("booking: total must equal subtotal plus service fee")
	ErrRangeInPast      = errors.New("booking: start date cannot be in the past")
	ErrRenterRequired   = errors.New("booking: renter id required")
	ErrDeadlineRequired = errors.New("booking: approval deadline required")
	ErrTooLateToCancel  = errors.New("booking: cannot cancel on or after the start date")
)

type BookingID string

type State string

const (
	StatePending          State = "PENDING"
	StateAwaitingApproval State = "AWAITING_APPROVAL"
	StateConfirmed        State = "CONFIRMED"
	StateCompleted        State = "COMPLETED"
	StateCancelled        State = "CANCELLED"
	StateRejected         State = "REJECTED"
)

// Terminal reports whether no transition may leave the state.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateRejected:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentRequiresCapture PaymentStatus = "REQUIRES_CAPTURE"
	PaymentSucceeded       PaymentStatus = "SUCCEEDED"
	PaymentCanceled        PaymentStatus = "CANCELED"
	PaymentFailed          PaymentStatus = "FAILED"
	PaymentRefunded        PaymentStatus = "REFUNDED"
)

// RenterSnapshot captures the renter's identity facts at booking time.
// Profile edits after creation never rewrite a booking.
type RenterSnapshot struct {
	RenterID string
	Name     string
	Email    string
	Phone    string
	License  string
}

// Booking is the central aggregate. The price quote is locked at creation
// and never recomputed; only State, PaymentStatus and timestamps mutate,
// and only through the transition methods below.
type Booking struct {
	ID               BookingID
	CarID            cars.CarID
	OwnerID          string
	Renter           RenterSnapshot
	Range            daterange.DateRange
	Price            pricing.Quote
	State            State
	PaymentStatus    PaymentStatus
	PaymentRef       string
	ApprovalDeadline *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Version          int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	ByPaymentRef(ctx context.Context, ref string) (*Booking, error)
	// Save persists the booking iff the stored version still matches;
	// returns ErrVersionConflict otherwise.
	Save(ctx context.Context, b *Booking) error
	ListByRenter(ctx context.Context, renterID string) ([]*Booking, error)
	// ListExpiredApprovals returns bookings still awaiting approval whose
	// deadline passed before now.
	ListExpiredApprovals(ctx context.Context, now time.Time) ([]*Booking, error)
	// ListEndedConfirmed returns confirmed bookings whose rental period
	// ended before now.
	ListEndedConfirmed(ctx context.Context, now time.Time) ([]*Booking, error)
}

type CreateParams struct {
	ID               BookingID
	CarID            cars.CarID
	OwnerID          string
	Renter           RenterSnapshot
	Range            daterange.DateRange
	Price            pricing.Quote
	PaymentRef       string
	RequiresApproval bool
	ApprovalDeadline time.Time
	CreatedAt        time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	if params.Renter.RenterID == "" {
		return nil, ErrRenterRequired
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	if params.Range.Start.Before(daterange.DayOf(now)) {
		return nil, ErrRangeInPast
	}
	sum, err := params.Price.Subtotal.Add(params.Price.ServiceFee)
	if err != nil {
		return nil, err
	}
	if sum != params.Price.Total {
		return nil, ErrTotalMismatch
	}
	b := &Booking{
		ID:            params.ID,
		CarID:         params.CarID,
		OwnerID:       params.OwnerID,
		Renter:        params.Renter,
		Range:         params.Range,
		Price:         params.Price,
		State:         StatePending,
		PaymentStatus: PaymentRequiresCapture,
		PaymentRef:    params.PaymentRef,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if params.RequiresApproval {
		if params.ApprovalDeadline.IsZero() {
			return nil, ErrDeadlineRequired
		}
		deadline := params.ApprovalDeadline.UTC()
		b.State = StateAwaitingApproval
		b.ApprovalDeadline = &deadline
	}
	b.Record(ReservationRequested{
		BookingID: b.ID, CarID: b.CarID, RenterID: b.Renter.RenterID,
		Range: b.Range, Total: b.Price.Total, AwaitingApproval: params.RequiresApproval, At: now,
	})
	return b, nil
}

// CanDecide reports whether an approve/reject decision is still legal.
func (b *Booking) CanDecide() bool {
	return b.State == StateAwaitingApproval
}

// Confirm moves an authorized booking to CONFIRMED. Callers must have
// captured the payment first; the state machine never advances past a
// failed gateway call.
func (b *Booking) Confirm(now time.Time) error {
	if b.State != StateAwaitingApproval && b.State != StatePending {
		return ErrInvalidState
	}
	b.State = StateConfirmed
	b.PaymentStatus = PaymentSucceeded
	b.ApprovalDeadline = nil
	b.UpdatedAt = now.UTC()
	b.Record(ReservationConfirmed{BookingID: b.ID, CarID: b.CarID, Range: b.Range, Total: b.Price.Total, At: b.UpdatedAt})
	return nil
}

// Reject finalizes a declined or expired approval. The payment
// authorization must already be cancelled (or the capture have failed).
func (b *Booking) Reject(reason string, now time.Time) error {
	if b.State != StateAwaitingApproval {
		return ErrInvalidState
	}
	b.State = StateRejected
	if b.PaymentStatus == PaymentRequiresCapture {
		b.PaymentStatus = PaymentCanceled
	}
	b.ApprovalDeadline = nil
	b.UpdatedAt = now.UTC()
	b.Record(ReservationRejected{BookingID: b.ID, CarID: b.CarID, Reason: reason, At: b.UpdatedAt})
	return nil
}

// MarkCaptureFailed records a failed capture during confirmation; the
// booking is rejected and the hold released by the caller.
func (b *Booking) MarkCaptureFailed(now time.Time) error {
	if b.State != StateAwaitingApproval && b.State != StatePending {
		return ErrInvalidState
	}
	b.State = StateRejected
	b.PaymentStatus = PaymentFailed
	b.ApprovalDeadline = nil
	b.UpdatedAt = now.UTC()
	b.Record(ReservationRejected{BookingID: b.ID, CarID: b.CarID, Reason: "capture-failed", At: b.UpdatedAt})
	return nil
}

// Cancel ends a confirmed booking before its start date and returns the
// refund owed under the policy. The refund itself is executed by the caller.
func (b *Booking) Cancel(policy RefundPolicy, reason string, now time.Time) (money.Money, error) {
	if b.State != StateConfirmed {
		return money.Money{}, ErrInvalidState
	}
	if !daterange.DayOf(now).Before(b.Range.Start) {
		return money.Money{}, ErrTooLateToCancel
	}
	refund := policy.RefundFor(b.Price.Total, now, b.Range.Start)
	b.State = StateCancelled
	if refund.IsPositive() {
		b.PaymentStatus = PaymentRefunded
	}
	b.UpdatedAt = now.UTC()
	b.Record(ReservationCancelled{BookingID: b.ID, CarID: b.CarID, Refund: refund, Reason: reason, At: b.UpdatedAt})
	return refund, nil
}

// Complete marks a confirmed booking whose end date has passed. No payment
// side effect: capture already happened at confirmation.
func (b *Booking) Complete(now time.Time) error {
	if b.State != StateConfirmed {
		return ErrInvalidState
	}
	if daterange.DayOf(now).Before(b.Range.End) {
		return ErrInvalidState
	}
	b.State = StateCompleted
	b.UpdatedAt = now.UTC()
	b.Record(ReservationCompleted{BookingID: b.ID, CarID: b.CarID, At: b.UpdatedAt})
	return nil
}

// IsActive is derived by date, not stored: a confirmed booking whose range
// covers the current date.
func (b *Booking) IsActive(now time.Time) bool {
	return b.State == StateConfirmed && b.Range.ContainsDay(daterange.DayOf(now))
}

// DeadlineElapsed reports whether the approval window has closed.
func (b *Booking) DeadlineElapsed(now time.Time) bool {
	return b.State == StateAwaitingApproval && b.ApprovalDeadline != nil && now.After(*b.ApprovalDeadline)
}

// ReconcilePayment applies an asynchronous gateway notification to the
// local payment status. Idempotent: replaying an event that matches the
// current status is a no-op.
func (b *Booking) ReconcilePayment(status PaymentStatus, now time.Time) bool {
	if b.PaymentStatus == status {
		return false
	}
	b.PaymentStatus = status
	b.UpdatedAt = now.UTC()
	b.Record(PaymentReconciled{BookingID: b.ID, PaymentRef: b.PaymentRef, Status: string(status), At: b.UpdatedAt})
	return true
}
