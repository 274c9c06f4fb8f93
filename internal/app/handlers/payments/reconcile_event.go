package payments

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"driveshare/internal/app/commands"
	"driveshare/internal/app/outbox"
	"driveshare/internal/app/uow"
	domainbooking "driveshare/internal/domain/booking"
)

const reconcileEventKey = "payments.reconcile_event"

var ErrUnknownEventType = errors.New("payments: unknown gateway event type")

// Gateway webhook event types.
const (
	EventCaptureSucceeded      = "capture.succeeded"
	EventCaptureFailed         = "capture.failed"
	EventAuthorizationCanceled = "authorization.canceled"
	EventRefundSucceeded       = "refund.succeeded"
)

type ReconcileEventCommand struct {
	PaymentRef string
	EventType  string
}

func (c ReconcileEventCommand) Key() string { return reconcileEventKey }

type ReconcileResult struct {
	BookingID     string `json:"booking_id"`
	PaymentStatus string `json:"payment_status"`
	Changed       bool   `json:"changed"`
}

// ReconcileEventHandler applies asynchronous gateway notifications to the
// booking's local payment status. It never re-runs the saga: state
// transitions stay with the decision handlers and the sweeps. Replays of
// an already-applied event are no-ops.
type ReconcileEventHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
}

func (h *ReconcileEventHandler) Handle(ctx context.Context, cmd ReconcileEventCommand) (*ReconcileResult, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	ref := strings.TrimSpace(cmd.PaymentRef)
	if ref == "" {
		return nil, errors.New("payments: payment reference required")
	}
	status, err := statusFor(strings.TrimSpace(cmd.EventType))
	if err != nil {
		return nil, err
	}
	bk, err := unit.Bookings().ByPaymentRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	changed := bk.ReconcilePayment(status, time.Now().UTC())
	if changed {
		if err := unit.Bookings().Save(ctx, bk); err != nil {
			return nil, err
		}
		pending := bk.PendingEvents()
		bk.ClearEvents()
		if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.encoder(), pending); err != nil {
			return nil, err
		}
		if h.Logger != nil {
			h.Logger.Info("payment status reconciled", "booking_id", bk.ID, "payment_ref", ref, "status", status)
		}
	}
	return &ReconcileResult{BookingID: string(bk.ID), PaymentStatus: string(bk.PaymentStatus), Changed: changed}, nil
}

func (h *ReconcileEventHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func statusFor(eventType string) (domainbooking.PaymentStatus, error) {
	switch eventType {
	case EventCaptureSucceeded:
		return domainbooking.PaymentSucceeded, nil
	case EventCaptureFailed:
		return domainbooking.PaymentFailed, nil
	case EventAuthorizationCanceled:
		return domainbooking.PaymentCanceled, nil
	case EventRefundSucceeded:
		return domainbooking.PaymentRefunded, nil
	default:
		return "", ErrUnknownEventType
	}
}

var _ commands.Handler[ReconcileEventCommand, *ReconcileResult] = (*ReconcileEventHandler)(nil)
