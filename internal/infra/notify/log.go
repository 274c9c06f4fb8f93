// Package notify holds notification delivery adapters. The log notifier
// stands in for an email/SMS provider in dev and test wiring.
package notify

import (
	"context"
	"log/slog"

	"driveshare/internal/app/policies"
)

type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Send(ctx context.Context, recipient string, template string, data any) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification", "recipient", recipient, "template", template, "data", data)
	return nil
}

var _ policies.Notifier = LogNotifier{}
