package sweep

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"driveshare/internal/app/outbox"
	"driveshare/internal/app/uow"
	domainavailability "driveshare/internal/domain/availability"
	domainbooking "driveshare/internal/domain/booking"
)

// Completion rolls confirmed bookings whose rental ended into COMPLETED
// and frees their booked calendar days.
type Completion struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

func (c *Completion) Run(ctx context.Context) error {
	now := nowOrDefault(c.Now)
	unit, err := c.UoWFactory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	ended, err := unit.Bookings().ListEndedConfirmed(ctx, now)
	rollbackQuiet(ctx, unit)
	if err != nil {
		return err
	}
	for _, bk := range ended {
		if err := c.complete(ctx, bk.ID, now); err != nil {
			c.logger().Error("complete booking failed", "booking_id", bk.ID, "error", err)
		}
	}
	return nil
}

func (c *Completion) complete(ctx context.Context, id domainbooking.BookingID, now time.Time) error {
	unit, err := c.UoWFactory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return err
	}
	defer rollbackQuiet(ctx, unit)

	bk, err := unit.Bookings().ByID(ctx, id)
	if err != nil {
		return err
	}
	if err := bk.Complete(now); err != nil {
		if errors.Is(err, domainbooking.ErrInvalidState) {
			return nil
		}
		return err
	}
	if err := unit.Bookings().Save(ctx, bk); err != nil {
		if errors.Is(err, domainbooking.ErrVersionConflict) {
			return nil
		}
		return err
	}
	ledger := domainavailability.Ledger{Repo: unit.Calendars(), Sink: sinkFor(c.Outbox, c.Encoder)}
	if err := ledger.ReleaseBooking(ctx, bk.CarID, string(bk.ID), now); err != nil {
		if !errors.Is(err, domainavailability.ErrHoldNotFound) {
			return err
		}
	}
	pending := bk.PendingEvents()
	bk.ClearEvents()
	if err := outbox.RecordDomainEvents(ctx, c.Outbox, c.Encoder, pending); err != nil {
		return err
	}
	if err := unit.Commit(ctx); err != nil {
		return err
	}
	c.logger().Info("booking completed", "booking_id", bk.ID, "car_id", bk.CarID)
	return nil
}

func (c *Completion) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
