package ginserver

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"driveshare/internal/app/commands"
	paymentsapp "driveshare/internal/app/handlers/payments"
)

// WebhookHandler receives asynchronous processor notifications. When a
// signing secret is configured, the X-Gateway-Signature header must carry
// a hex HMAC-SHA256 of the raw body.
type WebhookHandler struct {
	Commands      commands.Bus
	SigningSecret string
}

type paymentWebhookRequest struct {
	PaymentRef string `json:"payment_ref"`
	EventType  string `json:"event_type"`
}

func (h WebhookHandler) PaymentEvent(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	if h.SigningSecret != "" && !h.verify(body, c.GetHeader("X-Gateway-Signature")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	var req paymentWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := paymentsapp.ReconcileEventCommand{PaymentRef: req.PaymentRef, EventType: req.EventType}
	result, err := commands.Dispatch[paymentsapp.ReconcileEventCommand, *paymentsapp.ReconcileResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h WebhookHandler) verify(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.SigningSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

var _ WebhookHTTP = WebhookHandler{}
