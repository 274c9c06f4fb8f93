package pricing

import (
	"context"
	"strings"
	"time"

	"driveshare/internal/app/dto"
	handlersupport "driveshare/internal/app/handlers/support"
	"driveshare/internal/app/queries"
	"driveshare/internal/app/uow"
	domaincars "driveshare/internal/domain/cars"
	domainpricing "driveshare/internal/domain/pricing"
	domainrange "driveshare/internal/domain/shared/daterange"
)

const quoteKey = "pricing.quote"

type QuoteQuery struct {
	CarID     string
	StartDate time.Time
	EndDate   time.Time
}

func (q QuoteQuery) Key() string { return quoteKey }

// QuoteHandler resolves a non-binding price preview. The orchestrator
// re-resolves at booking time, so a stale preview can never lock a price.
type QuoteHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *QuoteHandler) Handle(ctx context.Context, q QuoteQuery) (dto.Quote, error) {
	dr, err := domainrange.New(q.StartDate, q.EndDate)
	if err != nil {
		return dto.Quote{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Quote{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	car, err := unit.Cars().ByID(execCtx, domaincars.CarID(strings.TrimSpace(q.CarID)))
	if err != nil {
		return dto.Quote{}, err
	}
	overrides, err := unit.Overrides().ForCar(execCtx, car.ID)
	if err != nil {
		return dto.Quote{}, err
	}
	quote, err := domainpricing.ResolveQuote(car, overrides, dr)
	if err != nil {
		return dto.Quote{}, err
	}
	return dto.MapQuote(string(car.ID), quote), nil
}

var _ queries.Handler[QuoteQuery, dto.Quote] = (*QuoteHandler)(nil)
