package policies

import (
	"context"
	"errors"
	"fmt"

	"driveshare/internal/domain/shared/money"
)

// AuthorizationStatus mirrors the processor's view of a payment intent.
type AuthorizationStatus string

const (
	AuthorizationRequiresCapture AuthorizationStatus = "requires_capture"
	AuthorizationSucceeded       AuthorizationStatus = "succeeded"
	AuthorizationCanceled        AuthorizationStatus = "canceled"
	AuthorizationFailed          AuthorizationStatus = "failed"
)

// Authorization is the gateway's record of held funds.
type Authorization struct {
	PaymentRef string
	Amount     money.Money
	Status     AuthorizationStatus
}

// GatewayError wraps a failed processor call. Retryable errors indicate an
// unknown outcome: callers must retry with the same idempotency reference
// rather than treat the call as definitively failed.
type GatewayError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payments: %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Temporary follows the net.Error convention so generic plumbing, the
// idempotency middleware in particular, can tell unknown-outcome failures
// from definitive ones without importing this package.
func (e *GatewayError) Temporary() bool { return e.Retryable }

// IsRetryableGatewayError reports whether err is a gateway failure with an
// unknown outcome (timeouts, 5xx).
func IsRetryableGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Retryable
}

// PaymentsPort wraps the external authorize/capture payment processor.
// Authorize places funds on hold without capturing them, which is what
// allows a host decision between authorization and charge. Every call is
// idempotent on the caller-supplied reference.
type PaymentsPort interface {
	Authorize(ctx context.Context, reference string, amount money.Money, customerRef string) (string, error)
	Capture(ctx context.Context, paymentRef string) error
	Cancel(ctx context.Context, paymentRef string) error
	Refund(ctx context.Context, paymentRef string, amount money.Money) error
	// FindAuthorization looks an authorization up by the caller reference
	// used at Authorize time. The reconciliation sweep uses it to discover
	// authorizations that outlived their saga.
	FindAuthorization(ctx context.Context, reference string) (Authorization, bool, error)
}
