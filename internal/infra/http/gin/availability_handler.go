package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"driveshare/internal/app/commands"
	"driveshare/internal/app/dto"
	availabilityapp "driveshare/internal/app/handlers/availability"
	"driveshare/internal/app/queries"
)

type AvailabilityHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

func (h AvailabilityHandler) Calendar(c *gin.Context) {
	query := availabilityapp.GetCalendarQuery{CarID: c.Param("id")}
	result, err := queries.Ask[availabilityapp.GetCalendarQuery, dto.Calendar](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type blockDatesRequest struct {
	Dates []string `json:"dates"` // YYYY-MM-DD
}

func (h AvailabilityHandler) Block(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req blockDatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := availabilityapp.BlockDatesCommand{CarID: c.Param("id"), ActorID: user.ID, Dates: req.Dates}
	result, err := commands.Dispatch[availabilityapp.BlockDatesCommand, *availabilityapp.BlockResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Unblock(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req blockDatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := availabilityapp.UnblockDatesCommand{CarID: c.Param("id"), ActorID: user.ID, Dates: req.Dates}
	result, err := commands.Dispatch[availabilityapp.UnblockDatesCommand, *availabilityapp.BlockResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AvailabilityHTTP = AvailabilityHandler{}
