package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"driveshare/internal/app/commands"
	"driveshare/internal/app/middleware"
	"driveshare/internal/app/outbox"
	"driveshare/internal/app/policies"
	"driveshare/internal/app/saga"
	"driveshare/internal/app/uow"
	domainavailability "driveshare/internal/domain/availability"
	domainbooking "driveshare/internal/domain/booking"
	domaincars "driveshare/internal/domain/cars"
	domainpricing "driveshare/internal/domain/pricing"
	domainrange "driveshare/internal/domain/shared/daterange"
)

const createReservationKey = "reservation.create"

// DefaultApprovalWindow is how long a host has to decide on a request.
const DefaultApprovalWindow = 24 * time.Hour

var (
	ErrDatesConflict = errors.New("reservation: dates no longer available")
	ErrPaymentDenied = errors.New("reservation: payment could not be authorized")
)

type CreateReservationCommand struct {
	CommandID       string
	CarID           string
	RenterID        string
	RenterName      string
	RenterEmail     string
	RenterPhone     string
	RenterLicense   string
	StartDate       time.Time
	EndDate         time.Time
	IdempotencyKeyV string
}

func (c CreateReservationCommand) Key() string { return createReservationKey }

// Validate checks the identifying fields; the date range and pricing are
// validated by the handler against loaded state.
func (c CreateReservationCommand) Validate() error {
	if strings.TrimSpace(c.CommandID) == "" {
		return errors.New("reservation: command id required")
	}
	if strings.TrimSpace(c.CarID) == "" {
		return errors.New("reservation: car id required")
	}
	if strings.TrimSpace(c.RenterID) == "" {
		return errors.New("reservation: renter id required")
	}
	return nil
}

func (c CreateReservationCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateReservationCommand) ResultPrototype() any { return &ReservationResult{} }

type ReservationResult struct {
	BookingID        string     `json:"booking_id"`
	Status           string     `json:"status"`
	PaymentRef       string     `json:"payment_ref"`
	SubtotalCents    int64      `json:"subtotal_cents"`
	ServiceFeeCents  int64      `json:"service_fee_cents"`
	TotalCents       int64      `json:"total_cents"`
	Currency         string     `json:"currency"`
	ApprovalDeadline *time.Time `json:"approval_deadline,omitempty"`
}

// CreateReservationHandler drives the reservation saga: resolve the quote,
// hold the dates, authorize payment, persist the booking. Cars without an
// approval requirement additionally capture and confirm in the same saga.
// Each step after the hold registers a compensation so a failure never
// strands money or calendar claims.
type CreateReservationHandler struct {
	UoWFactory     uow.UoWFactory
	Payments       policies.PaymentsPort
	Outbox         outbox.Outbox
	Encoder        outbox.EventEncoder
	Notifier       policies.Notifier
	ApprovalWindow time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

func (h *CreateReservationHandler) Handle(ctx context.Context, cmd CreateReservationCommand) (*ReservationResult, error) {
	unit, ok := uow.FromContext(ctx)
	managed := false
	committed := false
	if !ok {
		if h.UoWFactory == nil {
			return nil, uow.ErrUnitOfWorkMissing
		}
		var err error
		unit, err = h.UoWFactory.Begin(ctx, uow.TxOptions{})
		if err != nil {
			return nil, err
		}
		ctx = uow.ContextWithUnitOfWork(ctx, unit)
		managed = true
	}
	if managed {
		defer func() {
			if !committed {
				_ = unit.Rollback(ctx)
			}
		}()
	}

	dr, err := domainrange.New(cmd.StartDate, cmd.EndDate)
	if err != nil {
		return nil, err
	}
	now := h.now()
	if dr.Start.Before(domainrange.DayOf(now)) {
		return nil, domainbooking.ErrRangeInPast
	}

	car, err := unit.Cars().ByID(ctx, domaincars.CarID(cmd.CarID))
	if err != nil {
		return nil, err
	}

	// Price is re-resolved here, not taken from the client: overrides may
	// have changed since the renter saw the quote.
	overrides, err := unit.Overrides().ForCar(ctx, car.ID)
	if err != nil {
		return nil, err
	}
	quote, err := domainpricing.ResolveQuote(car, overrides, dr)
	if err != nil {
		return nil, err
	}

	comp := saga.Compensations{Logger: h.Logger}
	ledger := domainavailability.Ledger{Repo: unit.Calendars(), Sink: h.sink()}

	token, err := ledger.HoldRange(ctx, car.ID, dr, cmd.CommandID, now)
	if err != nil {
		if errors.Is(err, domainavailability.ErrDatesUnavailable) || errors.Is(err, domainavailability.ErrLedgerContention) {
			return nil, ErrDatesConflict
		}
		return nil, err
	}
	comp.Add("release-hold", func(cctx context.Context) error {
		return ledger.ReleaseHold(cctx, token, h.now())
	})

	// No payment call happens unless the hold succeeded; conflicts fail
	// fast before any money moves.
	paymentRef, err := h.Payments.Authorize(ctx, cmd.CommandID, quote.Total, cmd.RenterID)
	if err != nil {
		comp.Run(ctx)
		if policies.IsRetryableGatewayError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPaymentDenied, err)
	}
	comp.Add("cancel-authorization", func(cctx context.Context) error {
		return h.Payments.Cancel(cctx, paymentRef)
	})

	bk, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:      domainbooking.BookingID(cmd.CommandID),
		CarID:   car.ID,
		OwnerID: car.OwnerID,
		Renter: domainbooking.RenterSnapshot{
			RenterID: cmd.RenterID,
			Name:     cmd.RenterName,
			Email:    cmd.RenterEmail,
			Phone:    cmd.RenterPhone,
			License:  cmd.RenterLicense,
		},
		Range:            dr,
		Price:            quote,
		PaymentRef:       paymentRef,
		RequiresApproval: car.RequiresApproval,
		ApprovalDeadline: now.Add(h.approvalWindow()),
		CreatedAt:        now,
	})
	if err != nil {
		comp.Run(ctx)
		return nil, err
	}

	// Instant-book cars confirm in the same saga: capture immediately and
	// flip the hold to booked, so no request ever sits in PENDING waiting
	// for a host that will never be asked.
	if !car.RequiresApproval {
		if err := h.Payments.Capture(ctx, paymentRef); err != nil {
			comp.Run(ctx)
			if policies.IsRetryableGatewayError(err) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrPaymentDenied, err)
		}
		comp.Add("refund-capture", func(cctx context.Context) error {
			return h.Payments.Refund(cctx, paymentRef, quote.Total)
		})
		if err := bk.Confirm(now); err != nil {
			comp.Run(ctx)
			return nil, err
		}
		if err := ledger.CommitHold(ctx, token, now); err != nil {
			comp.Run(ctx)
			return nil, err
		}
		comp.Add("release-booking", func(cctx context.Context) error {
			return ledger.ReleaseBooking(cctx, car.ID, cmd.CommandID, h.now())
		})
	}

	// The authorization must never outlive a booking record referencing
	// it: a failed persist cancels the payment and releases the hold.
	if err := unit.Bookings().Save(ctx, bk); err != nil {
		comp.Run(ctx)
		return nil, err
	}

	pending := bk.PendingEvents()
	bk.ClearEvents()
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.encoder(), pending); err != nil {
		comp.Run(ctx)
		return nil, err
	}

	if managed {
		if err := unit.Commit(ctx); err != nil {
			comp.Run(ctx)
			return nil, err
		}
		committed = true
	}

	h.notify(ctx, bk)

	return mapResult(bk), nil
}

func (h *CreateReservationHandler) notify(ctx context.Context, bk *domainbooking.Booking) {
	if h.Notifier == nil {
		return
	}
	if err := h.Notifier.Send(ctx, bk.OwnerID, "reservation_requested", mapResult(bk)); err != nil && h.Logger != nil {
		h.Logger.Warn("reservation notification failed", "booking_id", bk.ID, "error", err)
	}
}

func mapResult(bk *domainbooking.Booking) *ReservationResult {
	return &ReservationResult{
		BookingID:        string(bk.ID),
		Status:           string(bk.State),
		PaymentRef:       bk.PaymentRef,
		SubtotalCents:    bk.Price.Subtotal.Amount,
		ServiceFeeCents:  bk.Price.ServiceFee.Amount,
		TotalCents:       bk.Price.Total.Amount,
		Currency:         bk.Price.Total.Currency,
		ApprovalDeadline: bk.ApprovalDeadline,
	}
}

func (h *CreateReservationHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *CreateReservationHandler) sink() domainavailability.EventSink {
	if h.Outbox == nil {
		return nil
	}
	return outbox.DomainEventSink{Box: h.Outbox, Encoder: h.encoder()}
}

func (h *CreateReservationHandler) approvalWindow() time.Duration {
	if h.ApprovalWindow > 0 {
		return h.ApprovalWindow
	}
	return DefaultApprovalWindow
}

func (h *CreateReservationHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[CreateReservationCommand, *ReservationResult] = (*CreateReservationHandler)(nil)
var _ middleware.IdempotentCommand = (*CreateReservationCommand)(nil)
