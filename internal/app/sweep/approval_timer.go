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
)

const expiredApprovalReason = "approval-deadline-elapsed"

// ApprovalTimer auto-rejects requests the host never answered. Each
// booking is processed in its own transaction; a CAS loss means a
// concurrent approve or reject got there first, so the booking is
// simply skipped.
type ApprovalTimer struct {
	UoWFactory uow.UoWFactory
	Payments   policies.PaymentsPort
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

func (t *ApprovalTimer) Run(ctx context.Context) error {
	now := nowOrDefault(t.Now)
	unit, err := t.UoWFactory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	expired, err := unit.Bookings().ListExpiredApprovals(ctx, now)
	rollbackQuiet(ctx, unit)
	if err != nil {
		return err
	}
	for _, bk := range expired {
		if err := t.expire(ctx, bk.ID, now); err != nil {
			t.logger().Error("expire approval failed", "booking_id", bk.ID, "error", err)
		}
	}
	return nil
}

func (t *ApprovalTimer) expire(ctx context.Context, id domainbooking.BookingID, now time.Time) error {
	unit, err := t.UoWFactory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return err
	}
	defer rollbackQuiet(ctx, unit)

	bk, err := unit.Bookings().ByID(ctx, id)
	if err != nil {
		return err
	}
	// Re-check under the fresh read: an approval may have landed since
	// the listing.
	if bk.State != domainbooking.StateAwaitingApproval || !bk.DeadlineElapsed(now) {
		return nil
	}
	if err := t.Payments.Cancel(ctx, bk.PaymentRef); err != nil {
		if policies.IsRetryableGatewayError(err) {
			return err // next sweep pass retries
		}
		// A definitive rejection can mean the funds were just captured by
		// a concurrent approve; that saga owns the booking, leave it alone.
		if auth, found, ferr := t.Payments.FindAuthorization(ctx, string(bk.ID)); ferr == nil && found && auth.Status == policies.AuthorizationSucceeded {
			return nil
		}
		t.logger().Warn("cancel authorization rejected by gateway", "booking_id", bk.ID, "error", err)
	}
	if err := bk.Reject(expiredApprovalReason, now); err != nil {
		return err
	}
	// The booking CAS settles who decided; the hold is touched only after
	// winning it, so a concurrent approve never loses its claim mid-commit.
	if err := unit.Bookings().Save(ctx, bk); err != nil {
		if errors.Is(err, domainbooking.ErrVersionConflict) {
			return nil
		}
		return err
	}
	ledger := domainavailability.Ledger{Repo: unit.Calendars(), Sink: sinkFor(t.Outbox, t.Encoder)}
	cal, err := unit.Calendars().Calendar(ctx, bk.CarID)
	if err != nil {
		return err
	}
	if token, ok := cal.HoldByReference(string(bk.ID)); ok {
		if err := ledger.ReleaseHold(ctx, token, now); err != nil {
			return err
		}
	}
	pending := bk.PendingEvents()
	bk.ClearEvents()
	if err := outbox.RecordDomainEvents(ctx, t.Outbox, t.Encoder, pending); err != nil {
		return err
	}
	if err := unit.Commit(ctx); err != nil {
		return err
	}
	t.logger().Info("approval window expired, request rejected", "booking_id", bk.ID, "car_id", bk.CarID)
	return nil
}

func (t *ApprovalTimer) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}
