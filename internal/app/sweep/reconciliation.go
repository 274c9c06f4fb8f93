package sweep

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"driveshare/internal/app/outbox"
	"driveshare/internal/app/policies"
	"driveshare/internal/app/uow"
	domainavailability "driveshare/internal/domain/availability"
	domainbooking "driveshare/internal/domain/booking"
	domaincars "driveshare/internal/domain/cars"
)

// DefaultOrphanGrace is how old a hold must be before the reconciler
// treats a missing booking as a crashed saga rather than one in flight.
const DefaultOrphanGrace = 15 * time.Minute

// Reconciliation cleans up after process crashes between the hold, the
// authorization and the booking insert. A hold whose reference matches
// no booking is released, and any authorization parked under the same
// reference at the gateway is cancelled. Holds that do belong to a
// booking are left alone regardless of age: the approval timer owns
// their lifecycle.
type Reconciliation struct {
	UoWFactory uow.UoWFactory
	Payments   policies.PaymentsPort
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Grace      time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

func (r *Reconciliation) Run(ctx context.Context) error {
	now := nowOrDefault(r.Now)
	cutoff := now.Add(-r.grace())

	unit, err := r.UoWFactory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	stale, err := unit.Calendars().WithStaleHolds(ctx, cutoff)
	rollbackQuiet(ctx, unit)
	if err != nil {
		return err
	}
	for _, cal := range stale {
		for _, ref := range cal.StaleHolds(cutoff) {
			if err := r.reconcile(ctx, cal.CarID, ref, now); err != nil {
				r.logger().Error("reconcile hold failed", "car_id", cal.CarID, "reference", ref, "error", err)
			}
		}
	}
	return nil
}

func (r *Reconciliation) reconcile(ctx context.Context, carID domaincars.CarID, ref string, now time.Time) error {
	unit, err := r.UoWFactory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return err
	}
	defer rollbackQuiet(ctx, unit)

	// The hold reference doubles as the booking id. If the booking
	// exists, the saga completed and the hold is legitimate.
	_, err = unit.Bookings().ByID(ctx, domainbooking.BookingID(ref))
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, domainbooking.ErrBookingNotFound):
		return err
	}

	ledger := domainavailability.Ledger{Repo: unit.Calendars(), Sink: sinkFor(r.Outbox, r.Encoder)}
	cal, err := unit.Calendars().Calendar(ctx, carID)
	if err != nil {
		return err
	}
	token, ok := cal.HoldByReference(ref)
	if ok {
		if err := ledger.ReleaseHold(ctx, token, now); err != nil {
			return err
		}
	}
	if err := unit.Commit(ctx); err != nil {
		return err
	}

	// The same reference was handed to the gateway as the idempotency
	// key, so a dangling authorization is discoverable by lookup.
	auth, found, err := r.Payments.FindAuthorization(ctx, ref)
	if err != nil {
		if policies.IsRetryableGatewayError(err) {
			return err
		}
		r.logger().Warn("authorization lookup rejected", "reference", ref, "error", err)
		return nil
	}
	if found && auth.Status == policies.AuthorizationRequiresCapture {
		if err := r.Payments.Cancel(ctx, auth.PaymentRef); err != nil {
			return err
		}
		r.logger().Info("orphaned authorization cancelled", "reference", ref, "payment_ref", auth.PaymentRef)
	}
	r.logger().Info("orphaned hold released", "car_id", carID, "reference", ref)
	return nil
}

func (r *Reconciliation) grace() time.Duration {
	if r.Grace > 0 {
		return r.Grace
	}
	return DefaultOrphanGrace
}

func (r *Reconciliation) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
