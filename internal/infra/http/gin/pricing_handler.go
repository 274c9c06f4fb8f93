package ginserver

import (
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"driveshare/internal/app/commands"
	"driveshare/internal/app/dto"
	pricingapp "driveshare/internal/app/handlers/pricing"
	"driveshare/internal/app/queries"
)

type PricingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

// Quote returns a non-binding price preview for a date range.
func (h PricingHandler) Quote(c *gin.Context) {
	start, err := time.Parse(time.DateOnly, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be YYYY-MM-DD"})
		return
	}
	end, err := time.Parse(time.DateOnly, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be YYYY-MM-DD"})
		return
	}
	query := pricingapp.QuoteQuery{CarID: c.Param("id"), StartDate: start, EndDate: end}
	result, err := queries.Ask[pricingapp.QuoteQuery, dto.Quote](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type setOverridesRequest struct {
	Entries []pricingapp.OverrideEntry `json:"entries"`
}

func (h PricingHandler) SetOverrides(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req setOverridesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := pricingapp.SetOverridesCommand{CarID: c.Param("id"), ActorID: user.ID, Entries: req.Entries}
	result, err := commands.Dispatch[pricingapp.SetOverridesCommand, *pricingapp.SetOverridesResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ PricingHTTP = PricingHandler{}
