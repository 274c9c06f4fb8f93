package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driveshare/internal/app/policies"
	"driveshare/internal/domain/shared/money"
)

func gatewayFor(server *httptest.Server) *HTTPGateway {
	return &HTTPGateway{Client: server.Client(), BaseURL: server.URL, APIKey: "test-key"}
}

func TestHTTPGatewayAuthorize(t *testing.T) {
	var captured authorizeRequest
	var idemKey, bearer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/authorizations", r.URL.Path)
		idemKey = r.Header.Get("Idempotency-Key")
		bearer = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(intentResponse{PaymentRef: "pay_123", Status: "requires_capture"})
	}))
	defer server.Close()

	ref, err := gatewayFor(server).Authorize(context.Background(), "bk-1", money.Must(21000, "USD"), "renter-1")
	require.NoError(t, err)

	assert.Equal(t, "pay_123", ref)
	assert.Equal(t, "bk-1", idemKey)
	assert.Equal(t, "Bearer test-key", bearer)
	assert.Equal(t, int64(21000), captured.AmountCents)
	assert.Equal(t, "USD", captured.Currency)
	assert.Equal(t, "renter-1", captured.CustomerRef)
}

func TestHTTPGatewayAuthorizeDeclined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(intentResponse{Declined: true, Reason: "insufficient_funds"})
	}))
	defer server.Close()

	_, err := gatewayFor(server).Authorize(context.Background(), "bk-1", money.Must(21000, "USD"), "renter-1")
	require.Error(t, err)
	assert.False(t, policies.IsRetryableGatewayError(err), "a decline is a definitive outcome")
}

func TestHTTPGatewayServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	err := gatewayFor(server).Capture(context.Background(), "pay_123")
	require.Error(t, err)
	assert.True(t, policies.IsRetryableGatewayError(err))
}

func TestHTTPGatewayClientErrorIsDefinitive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	err := gatewayFor(server).Cancel(context.Background(), "pay_123")
	require.Error(t, err)
	assert.False(t, policies.IsRetryableGatewayError(err))
}

func TestHTTPGatewayNetworkFailureIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse further connections

	gw := &HTTPGateway{Client: http.DefaultClient, BaseURL: server.URL}
	err := gw.Capture(context.Background(), "pay_123")
	require.Error(t, err)
	assert.True(t, policies.IsRetryableGatewayError(err))
}

func TestHTTPGatewayFindAuthorization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/authorizations/by-reference/bk-1":
			_ = json.NewEncoder(w).Encode(intentResponse{
				PaymentRef:  "pay_123",
				Status:      "requires_capture",
				AmountCents: 21000,
				Currency:    "USD",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	gw := gatewayFor(server)

	auth, found, err := gw.FindAuthorization(context.Background(), "bk-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "pay_123", auth.PaymentRef)
	assert.Equal(t, policies.AuthorizationRequiresCapture, auth.Status)
	assert.Equal(t, int64(21000), auth.Amount.Amount)

	_, found, err = gw.FindAuthorization(context.Background(), "bk-missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHTTPGatewayRefundPayload(t *testing.T) {
	var captured refundRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/authorizations/pay_123/refund", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(intentResponse{PaymentRef: "pay_123", Status: "succeeded"})
	}))
	defer server.Close()

	require.NoError(t, gatewayFor(server).Refund(context.Background(), "pay_123", money.Must(10500, "USD")))
	assert.Equal(t, int64(10500), captured.AmountCents)
}
