// Package sweep holds the periodic maintenance passes: expiring
// unanswered approval requests, reconciling holds orphaned by a crash
// mid-saga and completing bookings whose rental ended. Each pass is a
// single Run invocation; scheduling is the caller's concern.
package sweep

import (
	"context"
	"time"

	"driveshare/internal/app/outbox"
	"driveshare/internal/app/uow"
	domainavailability "driveshare/internal/domain/availability"
)

func sinkFor(box outbox.Outbox, enc outbox.EventEncoder) domainavailability.EventSink {
	if box == nil {
		return nil
	}
	if enc == nil {
		enc = outbox.JSONEventEncoder{}
	}
	return outbox.DomainEventSink{Box: box, Encoder: enc}
}

func rollbackQuiet(ctx context.Context, unit uow.UnitOfWork) {
	_ = unit.Rollback(ctx)
}

func nowOrDefault(fn func() time.Time) time.Time {
	if fn != nil {
		return fn().UTC()
	}
	return time.Now().UTC()
}
