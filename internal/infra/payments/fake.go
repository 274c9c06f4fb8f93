package payments

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"driveshare/internal/app/policies"
	"driveshare/internal/domain/shared/money"
)

// FakeGateway keeps authorizations in memory. It backs the dev storage
// mode and the orchestration tests; behavior toggles let tests script
// declines and outages.
type FakeGateway struct {
	mu     sync.Mutex
	byRef  map[string]*policies.Authorization // keyed by caller reference
	refsTo map[string]string                  // payment ref -> caller reference

	// DeclineAuthorize / DeclineCapture make the next matching call fail
	// definitively. Unavailable makes every call fail retryably.
	DeclineAuthorize bool
	DeclineCapture   bool
	Unavailable      bool

	Calls []string
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		byRef:  make(map[string]*policies.Authorization),
		refsTo: make(map[string]string),
	}
}

func (g *FakeGateway) Authorize(ctx context.Context, reference string, amount money.Money, customerRef string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, "authorize:"+reference)
	if g.Unavailable {
		return "", &policies.GatewayError{Op: "authorize", Retryable: true, Err: errUnavailable}
	}
	if existing, ok := g.byRef[reference]; ok {
		return existing.PaymentRef, nil
	}
	if g.DeclineAuthorize {
		return "", &policies.GatewayError{Op: "authorize", Retryable: false, Err: errDeclined}
	}
	auth := &policies.Authorization{
		PaymentRef: "pay_" + uuid.NewString(),
		Amount:     amount,
		Status:     policies.AuthorizationRequiresCapture,
	}
	g.byRef[reference] = auth
	g.refsTo[auth.PaymentRef] = reference
	return auth.PaymentRef, nil
}

func (g *FakeGateway) Capture(ctx context.Context, paymentRef string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, "capture:"+paymentRef)
	if g.Unavailable {
		return &policies.GatewayError{Op: "capture", Retryable: true, Err: errUnavailable}
	}
	auth, err := g.lookup(paymentRef, "capture")
	if err != nil {
		return err
	}
	if auth.Status == policies.AuthorizationSucceeded {
		return nil
	}
	if g.DeclineCapture {
		auth.Status = policies.AuthorizationFailed
		return &policies.GatewayError{Op: "capture", Retryable: false, Err: errDeclined}
	}
	if auth.Status != policies.AuthorizationRequiresCapture {
		return &policies.GatewayError{Op: "capture", Retryable: false, Err: fmt.Errorf("authorization in state %s", auth.Status)}
	}
	auth.Status = policies.AuthorizationSucceeded
	return nil
}

func (g *FakeGateway) Cancel(ctx context.Context, paymentRef string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, "cancel:"+paymentRef)
	if g.Unavailable {
		return &policies.GatewayError{Op: "cancel", Retryable: true, Err: errUnavailable}
	}
	auth, err := g.lookup(paymentRef, "cancel")
	if err != nil {
		return err
	}
	if auth.Status == policies.AuthorizationCanceled {
		return nil
	}
	if auth.Status != policies.AuthorizationRequiresCapture {
		return &policies.GatewayError{Op: "cancel", Retryable: false, Err: fmt.Errorf("authorization in state %s", auth.Status)}
	}
	auth.Status = policies.AuthorizationCanceled
	return nil
}

func (g *FakeGateway) Refund(ctx context.Context, paymentRef string, amount money.Money) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, "refund:"+paymentRef)
	if g.Unavailable {
		return &policies.GatewayError{Op: "refund", Retryable: true, Err: errUnavailable}
	}
	auth, err := g.lookup(paymentRef, "refund")
	if err != nil {
		return err
	}
	if auth.Status != policies.AuthorizationSucceeded {
		return &policies.GatewayError{Op: "refund", Retryable: false, Err: fmt.Errorf("authorization in state %s", auth.Status)}
	}
	if amount.Amount > auth.Amount.Amount {
		return &policies.GatewayError{Op: "refund", Retryable: false, Err: errRefundExceeds}
	}
	return nil
}

func (g *FakeGateway) FindAuthorization(ctx context.Context, reference string) (policies.Authorization, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Unavailable {
		return policies.Authorization{}, false, &policies.GatewayError{Op: "find_authorization", Retryable: true, Err: errUnavailable}
	}
	auth, ok := g.byRef[reference]
	if !ok {
		return policies.Authorization{}, false, nil
	}
	return *auth, true, nil
}

// StatusOf exposes the stored authorization state for assertions.
func (g *FakeGateway) StatusOf(reference string) (policies.AuthorizationStatus, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	auth, ok := g.byRef[reference]
	if !ok {
		return "", false
	}
	return auth.Status, true
}

func (g *FakeGateway) lookup(paymentRef, op string) (*policies.Authorization, error) {
	reference, ok := g.refsTo[paymentRef]
	if !ok {
		return nil, &policies.GatewayError{Op: op, Retryable: false, Err: errUnknownRef}
	}
	return g.byRef[reference], nil
}

var (
	errDeclined      = fmt.Errorf("card declined")
	errUnavailable   = fmt.Errorf("processor unavailable")
	errUnknownRef    = fmt.Errorf("unknown payment reference")
	errRefundExceeds = fmt.Errorf("refund exceeds captured amount")
)

var _ policies.PaymentsPort = (*FakeGateway)(nil)
