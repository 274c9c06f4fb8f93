package ginserver

import (
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"driveshare/internal/app/commands"
	"driveshare/internal/app/dto"
	reservationapp "driveshare/internal/app/handlers/reservation"
	"driveshare/internal/app/queries"
)

type ReservationHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type createReservationRequest struct {
	CarID     string    `json:"car_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

func (h ReservationHandler) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := reservationapp.CreateReservationCommand{
		CommandID:       generateCommandID(),
		CarID:           req.CarID,
		RenterID:        user.ID,
		RenterName:      user.Name,
		RenterEmail:     user.Email,
		RenterPhone:     user.Phone,
		RenterLicense:   user.License,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[reservationapp.CreateReservationCommand, *reservationapp.ReservationResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h ReservationHandler) Get(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	query := reservationapp.GetReservationQuery{BookingID: c.Param("id"), ActorID: user.ID}
	result, err := queries.Ask[reservationapp.GetReservationQuery, dto.Reservation](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ReservationHandler) ListMine(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	query := reservationapp.ListRenterReservationsQuery{RenterID: user.ID}
	result, err := queries.Ask[reservationapp.ListRenterReservationsQuery, dto.ReservationCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ReservationHandler) Approve(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	cmd := reservationapp.ApproveReservationCommand{BookingID: c.Param("id"), ActorID: user.ID}
	result, err := commands.Dispatch[reservationapp.ApproveReservationCommand, *reservationapp.DecisionResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type decisionRequest struct {
	Reason string `json:"reason"`
}

func (h ReservationHandler) Reject(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req decisionRequest
	_ = c.ShouldBindJSON(&req)
	cmd := reservationapp.RejectReservationCommand{BookingID: c.Param("id"), ActorID: user.ID, Reason: req.Reason}
	result, err := commands.Dispatch[reservationapp.RejectReservationCommand, *reservationapp.DecisionResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ReservationHandler) Cancel(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req decisionRequest
	_ = c.ShouldBindJSON(&req)
	cmd := reservationapp.CancelReservationCommand{BookingID: c.Param("id"), ActorID: user.ID, Reason: req.Reason}
	result, err := commands.Dispatch[reservationapp.CancelReservationCommand, *reservationapp.DecisionResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func generateCommandID() string {
	return uuid.NewString()
}

var _ ReservationHTTP = ReservationHandler{}
