package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/IBM/sarama"

	"driveshare/internal/app/commands"
	"driveshare/internal/app/handlers/payments"
	"driveshare/internal/domain/booking"
)

// InboxStore dedupes consumed events across restarts and rebalances.
type InboxStore interface {
	Seen(ctx context.Context, eventID string) (bool, error)
}

// PaymentEventHandler feeds processor notifications arriving on Kafka into
// the same reconcile command the webhook endpoint uses. Payloads are
// CloudEvents with the gateway event nested under data.
type PaymentEventHandler struct {
	Bus    commands.Bus
	Inbox  InboxStore
	Logger *slog.Logger
}

type paymentEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		PaymentRef string `json:"payment_ref"`
		EventType  string `json:"event_type"`
	} `json:"data"`
}

func (h PaymentEventHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var envelope paymentEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		h.log().Warn("discarding malformed payment event", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}
	if h.Inbox != nil && envelope.ID != "" {
		seen, err := h.Inbox.Seen(ctx, envelope.ID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}
	cmd := payments.ReconcileEventCommand{
		PaymentRef: envelope.Data.PaymentRef,
		EventType:  envelope.Data.EventType,
	}
	if _, err := h.Bus.Dispatch(ctx, cmd); err != nil {
		switch {
		case errors.Is(err, payments.ErrUnknownEventType):
			h.log().Warn("discarding unknown payment event type", "event_id", envelope.ID, "type", envelope.Data.EventType)
			return nil
		case errors.Is(err, booking.ErrBookingNotFound):
			// No booking carries this payment ref; retrying cannot fix it.
			h.log().Warn("discarding payment event for unknown booking", "event_id", envelope.ID, "payment_ref", envelope.Data.PaymentRef)
			return nil
		}
		return err
	}
	return nil
}

func (h PaymentEventHandler) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var _ MessageHandler = PaymentEventHandler{}
