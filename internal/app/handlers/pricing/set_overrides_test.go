package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driveshare/internal/app/uow"
	domaincars "driveshare/internal/domain/cars"
	domainrange "driveshare/internal/domain/shared/daterange"
	"driveshare/internal/domain/shared/money"
	"driveshare/internal/infra/storage/memory"
)

type harness struct {
	factory   memory.Factory
	overrides *memory.OverrideRepository
	ctx       context.Context
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	carRepo := memory.NewCarRepository()
	overrideRepo := memory.NewOverrideRepository()
	factory := memory.Factory{
		CarRepo:      carRepo,
		BookingRepo:  memory.NewBookingRepository(),
		CalendarRepo: memory.NewCalendarRepository(),
		OverrideRepo: overrideRepo,
	}
	require.NoError(t, carRepo.Save(context.Background(), &domaincars.Car{
		ID:               "car-1",
		OwnerID:          "owner-1",
		Title:            "Roadster",
		BaseNightly:      money.Must(10000, "USD"),
		WeekendMarkupPct: 15,
		ServiceFeePct:    5,
	}))
	unit, err := factory.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	return &harness{
		factory:   factory,
		overrides: overrideRepo,
		ctx:       uow.ContextWithUnitOfWork(context.Background(), unit),
	}
}

func TestSetOverridesAppliesAndClears(t *testing.T) {
	h := newHarness(t)
	handler := &SetOverridesHandler{}

	res, err := handler.Handle(h.ctx, SetOverridesCommand{
		CarID:   "car-1",
		ActorID: "owner-1",
		Entries: []OverrideEntry{
			{Date: "2026-09-10", PriceCents: 12000},
			{Date: "2026-09-11", PriceCents: 13000},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)

	set, err := h.overrides.ForCar(context.Background(), "car-1")
	require.NoError(t, err)
	day, err := domainrange.ParseDay("2026-09-10")
	require.NoError(t, err)
	price, ok := set.For(day)
	require.True(t, ok)
	assert.Equal(t, int64(12000), price.Amount)
	assert.Equal(t, "USD", price.Currency)

	// Zero cents clears the pin.
	_, err = handler.Handle(h.ctx, SetOverridesCommand{
		CarID:   "car-1",
		ActorID: "owner-1",
		Entries: []OverrideEntry{{Date: "2026-09-10", PriceCents: 0}},
	})
	require.NoError(t, err)

	set, err = h.overrides.ForCar(context.Background(), "car-1")
	require.NoError(t, err)
	_, ok = set.For(day)
	assert.False(t, ok)
}

func TestSetOverridesRequiresOwner(t *testing.T) {
	h := newHarness(t)
	handler := &SetOverridesHandler{}

	_, err := handler.Handle(h.ctx, SetOverridesCommand{
		CarID:   "car-1",
		ActorID: "intruder",
		Entries: []OverrideEntry{{Date: "2026-09-10", PriceCents: 12000}},
	})
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestSetOverridesRejectsBadDate(t *testing.T) {
	h := newHarness(t)
	handler := &SetOverridesHandler{}

	_, err := handler.Handle(h.ctx, SetOverridesCommand{
		CarID:   "car-1",
		ActorID: "owner-1",
		Entries: []OverrideEntry{{Date: "10/09/2026", PriceCents: 12000}},
	})
	assert.Error(t, err)
}

func TestQuoteReflectsOverrides(t *testing.T) {
	h := newHarness(t)
	setter := &SetOverridesHandler{}
	quoter := &QuoteHandler{UoWFactory: h.factory}

	// Mon 2026-09-07, one weekday night at base, one overridden.
	_, err := setter.Handle(h.ctx, SetOverridesCommand{
		CarID:   "car-1",
		ActorID: "owner-1",
		Entries: []OverrideEntry{{Date: "2026-09-08", PriceCents: 14000}},
	})
	require.NoError(t, err)

	quote, err := quoter.Handle(context.Background(), QuoteQuery{
		CarID:     "car-1",
		StartDate: time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 9, 9, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(24000), quote.SubtotalCents)
	assert.Equal(t, int64(1200), quote.ServiceFeeCents)
	assert.Equal(t, int64(25200), quote.TotalCents)
}
