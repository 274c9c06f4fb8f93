package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driveshare/internal/app/uow"
	domainavailability "driveshare/internal/domain/availability"
	domaincars "driveshare/internal/domain/cars"
	domainrange "driveshare/internal/domain/shared/daterange"
	"driveshare/internal/domain/shared/money"
	"driveshare/internal/infra/storage/memory"
)

func rangeFor(t *testing.T, start, end string) domainrange.DateRange {
	t.Helper()
	s, err := domainrange.ParseDay(start)
	require.NoError(t, err)
	e, err := domainrange.ParseDay(end)
	require.NoError(t, err)
	return domainrange.DateRange{Start: s, End: e}
}

func nowFor() time.Time {
	return time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)
}

type harness struct {
	calendars *memory.CalendarRepository
	ctx       context.Context
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	carRepo := memory.NewCarRepository()
	calendarRepo := memory.NewCalendarRepository()
	factory := memory.Factory{
		CarRepo:      carRepo,
		BookingRepo:  memory.NewBookingRepository(),
		CalendarRepo: calendarRepo,
		OverrideRepo: memory.NewOverrideRepository(),
	}
	require.NoError(t, carRepo.Save(context.Background(), &domaincars.Car{
		ID:          "car-1",
		OwnerID:     "owner-1",
		Title:       "Wagon",
		BaseNightly: money.Must(10000, "USD"),
	}))
	unit, err := factory.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	return &harness{
		calendars: calendarRepo,
		ctx:       uow.ContextWithUnitOfWork(context.Background(), unit),
	}
}

func TestBlockDates(t *testing.T) {
	h := newHarness(t)
	handler := &BlockDatesHandler{}

	res, err := handler.Handle(h.ctx, BlockDatesCommand{
		CarID:   "car-1",
		ActorID: "owner-1",
		Dates:   []string{"2026-09-10", "2026-09-11"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Dates)

	cal, err := h.calendars.Calendar(context.Background(), "car-1")
	require.NoError(t, err)
	assert.Equal(t, domainavailability.StateBlocked, cal.Days["2026-09-10"].State)
	assert.Equal(t, domainavailability.StateBlocked, cal.Days["2026-09-11"].State)
}

func TestBlockDatesRequiresOwner(t *testing.T) {
	h := newHarness(t)
	handler := &BlockDatesHandler{}

	_, err := handler.Handle(h.ctx, BlockDatesCommand{
		CarID:   "car-1",
		ActorID: "someone-else",
		Dates:   []string{"2026-09-10"},
	})
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestBlockDatesRequiresDates(t *testing.T) {
	h := newHarness(t)
	handler := &BlockDatesHandler{}

	_, err := handler.Handle(h.ctx, BlockDatesCommand{CarID: "car-1", ActorID: "owner-1"})
	assert.ErrorIs(t, err, ErrDatesRequired)
}

func TestBlockDatesRejectsBookedDate(t *testing.T) {
	h := newHarness(t)
	handler := &BlockDatesHandler{}

	unit, ok := uow.FromContext(h.ctx)
	require.True(t, ok)
	cal, err := unit.Calendars().Calendar(h.ctx, "car-1")
	require.NoError(t, err)
	start, err := cal.Hold(rangeFor(t, "2026-09-10", "2026-09-12"), "bk-1", nowFor())
	require.NoError(t, err)
	require.NoError(t, cal.CommitHold(start, nowFor()))
	require.NoError(t, unit.Calendars().Save(h.ctx, cal))

	_, err = handler.Handle(h.ctx, BlockDatesCommand{
		CarID:   "car-1",
		ActorID: "owner-1",
		Dates:   []string{"2026-09-11"},
	})
	assert.ErrorIs(t, err, domainavailability.ErrDateBooked)
}

func TestUnblockDates(t *testing.T) {
	h := newHarness(t)
	block := &BlockDatesHandler{}
	unblock := &UnblockDatesHandler{}

	_, err := block.Handle(h.ctx, BlockDatesCommand{
		CarID:   "car-1",
		ActorID: "owner-1",
		Dates:   []string{"2026-09-10"},
	})
	require.NoError(t, err)

	_, err = unblock.Handle(h.ctx, UnblockDatesCommand{
		CarID:   "car-1",
		ActorID: "owner-1",
		Dates:   []string{"2026-09-10"},
	})
	require.NoError(t, err)

	cal, err := h.calendars.Calendar(context.Background(), "car-1")
	require.NoError(t, err)
	_, taken := cal.Days["2026-09-10"]
	assert.False(t, taken)
}
