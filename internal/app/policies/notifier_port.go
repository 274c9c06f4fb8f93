package policies

import "context"

// Notifier delivers fire-and-forget booking notifications. Failures must
// never roll back the booking; callers log and move on.
type Notifier interface {
	Send(ctx context.Context, recipient string, template string, data any) error
}
