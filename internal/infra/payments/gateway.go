// Package payments adapts external card processors to the application's
// PaymentsPort. The HTTP gateway distinguishes unknown outcomes (network
// failures, 5xx) from definitive declines so the saga can retry the
// former with the same idempotency reference and compensate the latter.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"driveshare/internal/app/policies"
	"driveshare/internal/domain/shared/money"
)

// HTTPGateway talks to a processor exposing an authorize/capture API.
type HTTPGateway struct {
	Client  *http.Client
	BaseURL string
	APIKey  string
	Logger  *slog.Logger
}

type authorizeRequest struct {
	Reference   string `json:"reference"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	CustomerRef string `json:"customer_ref"`
}

type refundRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type intentResponse struct {
	PaymentRef  string `json:"payment_ref"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Declined    bool   `json:"declined"`
	Reason      string `json:"reason"`
}

func (g *HTTPGateway) Authorize(ctx context.Context, reference string, amount money.Money, customerRef string) (string, error) {
	payload := authorizeRequest{
		Reference:   reference,
		AmountCents: amount.Amount,
		Currency:    amount.Currency,
		CustomerRef: customerRef,
	}
	var resp intentResponse
	if err := g.call(ctx, http.MethodPost, "/v1/authorizations", reference, payload, &resp); err != nil {
		return "", err
	}
	if resp.Declined {
		return "", &policies.GatewayError{Op: "authorize", Retryable: false, Err: fmt.Errorf("declined: %s", resp.Reason)}
	}
	return resp.PaymentRef, nil
}

func (g *HTTPGateway) Capture(ctx context.Context, paymentRef string) error {
	var resp intentResponse
	err := g.call(ctx, http.MethodPost, "/v1/authorizations/"+paymentRef+"/capture", paymentRef, nil, &resp)
	if err != nil {
		return err
	}
	if resp.Declined {
		return &policies.GatewayError{Op: "capture", Retryable: false, Err: fmt.Errorf("declined: %s", resp.Reason)}
	}
	return nil
}

func (g *HTTPGateway) Cancel(ctx context.Context, paymentRef string) error {
	var resp intentResponse
	return g.call(ctx, http.MethodPost, "/v1/authorizations/"+paymentRef+"/cancel", paymentRef, nil, &resp)
}

func (g *HTTPGateway) Refund(ctx context.Context, paymentRef string, amount money.Money) error {
	payload := refundRequest{AmountCents: amount.Amount, Currency: amount.Currency}
	var resp intentResponse
	return g.call(ctx, http.MethodPost, "/v1/authorizations/"+paymentRef+"/refund", paymentRef, payload, &resp)
}

func (g *HTTPGateway) FindAuthorization(ctx context.Context, reference string) (policies.Authorization, bool, error) {
	var resp intentResponse
	err := g.call(ctx, http.MethodGet, "/v1/authorizations/by-reference/"+reference, reference, nil, &resp)
	if err != nil {
		var ge *policies.GatewayError
		if errors.As(err, &ge) && errors.Is(ge.Err, errNotFound) {
			return policies.Authorization{}, false, nil
		}
		return policies.Authorization{}, false, err
	}
	amt, err := money.New(resp.AmountCents, resp.Currency)
	if err != nil {
		return policies.Authorization{}, false, &policies.GatewayError{Op: "find_authorization", Retryable: false, Err: err}
	}
	return policies.Authorization{
		PaymentRef: resp.PaymentRef,
		Amount:     amt,
		Status:     policies.AuthorizationStatus(resp.Status),
	}, true, nil
}

var errNotFound = errors.New("not found")

// call performs one processor request. The idempotency key rides in a
// header so retries of an unknown outcome replay the same operation.
func (g *HTTPGateway) call(ctx context.Context, method, path, idemKey string, payload, out any) error {
	if g == nil || g.Client == nil || g.BaseURL == "" {
		return &policies.GatewayError{Op: "config", Retryable: false, Err: errors.New("gateway not configured")}
	}
	op := method + " " + path
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return &policies.GatewayError{Op: op, Retryable: false, Err: err}
		}
		body = bytes.NewReader(raw)
	}
	request, err := http.NewRequestWithContext(ctx, method, g.BaseURL+path, body)
	if err != nil {
		return &policies.GatewayError{Op: op, Retryable: false, Err: err}
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Idempotency-Key", idemKey)
	if g.APIKey != "" {
		request.Header.Set("Authorization", "Bearer "+g.APIKey)
	}

	resp, err := g.Client.Do(request)
	if err != nil {
		g.logError(op, err)
		return &policies.GatewayError{Op: op, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &policies.GatewayError{Op: op, Retryable: false, Err: errNotFound}
	case resp.StatusCode >= http.StatusInternalServerError:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("processor returned status %d: %s", resp.StatusCode, string(snippet))
		g.logError(op, err)
		return &policies.GatewayError{Op: op, Retryable: true, Err: err}
	case resp.StatusCode >= http.StatusBadRequest:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("processor returned status %d: %s", resp.StatusCode, string(snippet))
		g.logError(op, err)
		return &policies.GatewayError{Op: op, Retryable: false, Err: err}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &policies.GatewayError{Op: op, Retryable: true, Err: err}
		}
	}
	return nil
}

func (g *HTTPGateway) logError(op string, err error) {
	if g.Logger == nil {
		return
	}
	g.Logger.Error("payment gateway call failed", "op", op, "error", err)
}

var _ policies.PaymentsPort = (*HTTPGateway)(nil)
