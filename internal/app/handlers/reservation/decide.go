package reservation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"driveshare/internal/app/commands"
	"driveshare/internal/app/outbox"
	"driveshare/internal/app/policies"
	"driveshare/internal/app/uow"
	domainavailability "driveshare/internal/domain/availability"
	domainbooking "driveshare/internal/domain/booking"
	domainrange "driveshare/internal/domain/shared/daterange"
)

const (
	approveReservationKey = "reservation.approve"
	rejectReservationKey  = "reservation.reject"
	cancelReservationKey  = "reservation.cancel"
)

var (
	ErrNotAuthorized = errors.New("reservation: actor not authorized for this action")
	ErrDeadlinePast  = errors.New("reservation: approval deadline has passed")
)

type ApproveReservationCommand struct {
	BookingID string
	ActorID   string
}

func (c ApproveReservationCommand) Key() string { return approveReservationKey }

type RejectReservationCommand struct {
	BookingID string
	ActorID   string
	Reason    string
}

func (c RejectReservationCommand) Key() string { return rejectReservationKey }

type CancelReservationCommand struct {
	BookingID string
	ActorID   string
	Reason    string
}

func (c CancelReservationCommand) Key() string { return cancelReservationKey }

type DecisionResult struct {
	BookingID     string `json:"booking_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	RefundCents   int64  `json:"refund_cents,omitempty"`
}

// ApproveReservationHandler captures the payment and confirms the booking.
// The capture runs first: the state machine never advances past a failed
// gateway call. A definitive capture failure rejects the booking and frees
// the dates; a retryable one leaves everything untouched for the caller to
// retry.
type ApproveReservationHandler struct {
	Payments policies.PaymentsPort
	Outbox   outbox.Outbox
	Encoder  outbox.EventEncoder
	Notifier policies.Notifier
	Logger   *slog.Logger
	Now      func() time.Time
}

func (h *ApproveReservationHandler) Handle(ctx context.Context, cmd ApproveReservationCommand) (*DecisionResult, error) {
	unit, bk, err := loadBooking(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if bk.OwnerID != strings.TrimSpace(cmd.ActorID) {
		return nil, ErrNotAuthorized
	}
	if !bk.CanDecide() {
		return nil, domainbooking.ErrInvalidState
	}
	now := nowOrDefault(h.Now)
	if bk.DeadlineElapsed(now) {
		return nil, ErrDeadlinePast
	}

	ledger := domainavailability.Ledger{Repo: unit.Calendars(), Sink: sinkFor(h.Outbox, h.Encoder)}
	token, err := holdTokenFor(ctx, unit, bk)
	if err != nil {
		return nil, err
	}

	if err := h.Payments.Capture(ctx, bk.PaymentRef); err != nil {
		if policies.IsRetryableGatewayError(err) {
			return nil, err
		}
		// Definitive capture failure: the request dies and the dates open up.
		if ferr := bk.MarkCaptureFailed(now); ferr != nil {
			return nil, ferr
		}
		if rerr := ledger.ReleaseHold(ctx, token, now); rerr != nil {
			return nil, rerr
		}
		if serr := saveWithEvents(ctx, unit, bk, h.Outbox, h.Encoder); serr != nil {
			return nil, serr
		}
		return &DecisionResult{BookingID: string(bk.ID), Status: string(bk.State), PaymentStatus: string(bk.PaymentStatus)}, nil
	}

	if err := bk.Confirm(now); err != nil {
		return nil, err
	}
	if err := ledger.CommitHold(ctx, token, now); err != nil {
		return nil, err
	}
	if err := saveWithEvents(ctx, unit, bk, h.Outbox, h.Encoder); err != nil {
		return nil, err
	}

	notify(ctx, h.Notifier, h.Logger, bk.Renter.Email, "reservation_confirmed", bk)

	return &DecisionResult{BookingID: string(bk.ID), Status: string(bk.State), PaymentStatus: string(bk.PaymentStatus)}, nil
}

// RejectReservationHandler cancels the authorization and releases the hold.
type RejectReservationHandler struct {
	Payments policies.PaymentsPort
	Outbox   outbox.Outbox
	Encoder  outbox.EventEncoder
	Notifier policies.Notifier
	Logger   *slog.Logger
	Now      func() time.Time
}

func (h *RejectReservationHandler) Handle(ctx context.Context, cmd RejectReservationCommand) (*DecisionResult, error) {
	unit, bk, err := loadBooking(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if bk.OwnerID != strings.TrimSpace(cmd.ActorID) {
		return nil, ErrNotAuthorized
	}
	if !bk.CanDecide() {
		return nil, domainbooking.ErrInvalidState
	}
	now := nowOrDefault(h.Now)

	if err := h.Payments.Cancel(ctx, bk.PaymentRef); err != nil {
		return nil, err
	}

	ledger := domainavailability.Ledger{Repo: unit.Calendars(), Sink: sinkFor(h.Outbox, h.Encoder)}
	token, err := holdTokenFor(ctx, unit, bk)
	if err == nil {
		if rerr := ledger.ReleaseHold(ctx, token, now); rerr != nil {
			return nil, rerr
		}
	} else if !errors.Is(err, domainavailability.ErrHoldNotFound) {
		return nil, err
	}

	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = "host-rejected"
	}
	if err := bk.Reject(reason, now); err != nil {
		return nil, err
	}
	if err := saveWithEvents(ctx, unit, bk, h.Outbox, h.Encoder); err != nil {
		return nil, err
	}

	notify(ctx, h.Notifier, h.Logger, bk.Renter.Email, "reservation_rejected", bk)

	return &DecisionResult{BookingID: string(bk.ID), Status: string(bk.State), PaymentStatus: string(bk.PaymentStatus)}, nil
}

// CancelReservationHandler refunds per policy and reopens the booked dates.
// Renter or owner may cancel, only before the start date.
type CancelReservationHandler struct {
	Payments policies.PaymentsPort
	Policy   domainbooking.RefundPolicy
	Outbox   outbox.Outbox
	Encoder  outbox.EventEncoder
	Notifier policies.Notifier
	Logger   *slog.Logger
	Now      func() time.Time
}

func (h *CancelReservationHandler) Handle(ctx context.Context, cmd CancelReservationCommand) (*DecisionResult, error) {
	unit, bk, err := loadBooking(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	actor := strings.TrimSpace(cmd.ActorID)
	if actor != bk.OwnerID && actor != bk.Renter.RenterID {
		return nil, ErrNotAuthorized
	}
	if bk.State != domainbooking.StateConfirmed {
		return nil, domainbooking.ErrInvalidState
	}
	now := nowOrDefault(h.Now)
	// The date guard must run before any money moves: a refund issued for
	// a cancel the state machine then rejects cannot be taken back.
	if !domainrange.DayOf(now).Before(bk.Range.Start) {
		return nil, domainbooking.ErrTooLateToCancel
	}

	policy := h.policy()
	refund := policy.RefundFor(bk.Price.Total, now, bk.Range.Start)
	if refund.IsPositive() {
		if err := h.Payments.Refund(ctx, bk.PaymentRef, refund); err != nil {
			return nil, err
		}
	}

	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = "cancelled-by-" + actor
	}
	if _, err := bk.Cancel(policy, reason, now); err != nil {
		return nil, err
	}

	ledger := domainavailability.Ledger{Repo: unit.Calendars(), Sink: sinkFor(h.Outbox, h.Encoder)}
	if err := ledger.ReleaseBooking(ctx, bk.CarID, string(bk.ID), now); err != nil && !errors.Is(err, domainavailability.ErrHoldNotFound) {
		return nil, err
	}
	if err := saveWithEvents(ctx, unit, bk, h.Outbox, h.Encoder); err != nil {
		return nil, err
	}

	notify(ctx, h.Notifier, h.Logger, bk.Renter.Email, "reservation_cancelled", bk)

	return &DecisionResult{
		BookingID:     string(bk.ID),
		Status:        string(bk.State),
		PaymentStatus: string(bk.PaymentStatus),
		RefundCents:   refund.Amount,
	}, nil
}

func (h *CancelReservationHandler) policy() domainbooking.RefundPolicy {
	if h.Policy != nil {
		return h.Policy
	}
	return domainbooking.DefaultRefundPolicy()
}

func loadBooking(ctx context.Context, id string) (uow.UnitOfWork, *domainbooking.Booking, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, nil, uow.ErrUnitOfWorkMissing
	}
	bookingID := strings.TrimSpace(id)
	if bookingID == "" {
		return nil, nil, errors.New("reservation: booking id required")
	}
	bk, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(bookingID))
	if err != nil {
		return nil, nil, err
	}
	return unit, bk, nil
}

// holdTokenFor rebuilds the availability claim from the booking id; the
// orchestrator uses the booking id as the hold reference.
func holdTokenFor(ctx context.Context, unit uow.UnitOfWork, bk *domainbooking.Booking) (domainavailability.HoldToken, error) {
	cal, err := unit.Calendars().Calendar(ctx, bk.CarID)
	if err != nil {
		return domainavailability.HoldToken{}, err
	}
	token, ok := cal.HoldByReference(string(bk.ID))
	if !ok {
		return domainavailability.HoldToken{}, domainavailability.ErrHoldNotFound
	}
	return token, nil
}

func saveWithEvents(ctx context.Context, unit uow.UnitOfWork, bk *domainbooking.Booking, box outbox.Outbox, enc outbox.EventEncoder) error {
	if err := unit.Bookings().Save(ctx, bk); err != nil {
		return err
	}
	pending := bk.PendingEvents()
	bk.ClearEvents()
	return outbox.RecordDomainEvents(ctx, box, enc, pending)
}

func sinkFor(box outbox.Outbox, enc outbox.EventEncoder) domainavailability.EventSink {
	if box == nil {
		return nil
	}
	if enc == nil {
		enc = outbox.JSONEventEncoder{}
	}
	return outbox.DomainEventSink{Box: box, Encoder: enc}
}

func notify(ctx context.Context, n policies.Notifier, logger *slog.Logger, recipient, template string, bk *domainbooking.Booking) {
	if n == nil {
		return
	}
	if err := n.Send(ctx, recipient, template, map[string]string{
		"booking_id": string(bk.ID),
		"status":     string(bk.State),
	}); err != nil && logger != nil {
		logger.Warn("notification failed", "template", template, "booking_id", bk.ID, "error", err)
	}
}

func nowOrDefault(fn func() time.Time) time.Time {
	if fn != nil {
		return fn().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[ApproveReservationCommand, *DecisionResult] = (*ApproveReservationHandler)(nil)
var _ commands.Handler[RejectReservationCommand, *DecisionResult] = (*RejectReservationHandler)(nil)
var _ commands.Handler[CancelReservationCommand, *DecisionResult] = (*CancelReservationHandler)(nil)
