package availability

import (
	"context"
	"strings"

	"driveshare/internal/app/dto"
	handlersupport "driveshare/internal/app/handlers/support"
	"driveshare/internal/app/queries"
	"driveshare/internal/app/uow"
	domaincars "driveshare/internal/domain/cars"
)

const getCalendarKey = "availability.calendar"

type GetCalendarQuery struct {
	CarID string
}

func (q GetCalendarQuery) Key() string { return getCalendarKey }

type GetCalendarHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetCalendarHandler) Handle(ctx context.Context, q GetCalendarQuery) (dto.Calendar, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Calendar{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	cal, err := unit.Calendars().Calendar(execCtx, domaincars.CarID(strings.TrimSpace(q.CarID)))
	if err != nil {
		return dto.Calendar{}, err
	}
	return dto.MapCalendar(cal), nil
}

var _ queries.Handler[GetCalendarQuery, dto.Calendar] = (*GetCalendarHandler)(nil)
