package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	handlersavailability "driveshare/internal/app/handlers/availability"
	handlerspayments "driveshare/internal/app/handlers/payments"
	handlerspricing "driveshare/internal/app/handlers/pricing"
	handlersreservation "driveshare/internal/app/handlers/reservation"
	"driveshare/internal/app/policies"
	domainavailability "driveshare/internal/domain/availability"
	domainbooking "driveshare/internal/domain/booking"
	domaincars "driveshare/internal/domain/cars"
	domainrange "driveshare/internal/domain/shared/daterange"
)

// respondError maps application errors onto HTTP statuses. Retryable
// gateway failures surface as 503 so clients know to repeat the call
// with the same idempotency key.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domaincars.ErrCarNotFound),
		errors.Is(err, domainbooking.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, handlersreservation.ErrNotAuthorized),
		errors.Is(err, handlersavailability.ErrNotOwner),
		errors.Is(err, handlerspricing.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, handlersreservation.ErrDatesConflict),
		errors.Is(err, domainavailability.ErrDatesUnavailable),
		errors.Is(err, domainavailability.ErrDateBooked),
		errors.Is(err, domainavailability.ErrLedgerContention):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domainbooking.ErrInvalidState),
		errors.Is(err, handlersreservation.ErrDeadlinePast),
		errors.Is(err, domainbooking.ErrTooLateToCancel),
		errors.Is(err, domainbooking.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, handlersreservation.ErrPaymentDenied):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case policies.IsRetryableGatewayError(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment processor unavailable, retry with the same Idempotency-Key"})
	case errors.Is(err, domainrange.ErrInvalidRange),
		errors.Is(err, domainbooking.ErrRangeInPast),
		errors.Is(err, handlerspayments.ErrUnknownEventType):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
