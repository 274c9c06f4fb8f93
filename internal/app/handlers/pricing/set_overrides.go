package pricing

import (
	"context"
	"errors"
	"strings"

	"driveshare/internal/app/commands"
	"driveshare/internal/app/uow"
	domaincars "driveshare/internal/domain/cars"
	domainrange "driveshare/internal/domain/shared/daterange"
	"driveshare/internal/domain/shared/money"
)

const setOverridesKey = "pricing.set_overrides"

var ErrNotOwner = errors.New("pricing: actor does not own this car")

type OverrideEntry struct {
	Date       string `json:"date"`
	PriceCents int64  `json:"price_cents"` // zero clears the override
}

type SetOverridesCommand struct {
	CarID   string
	ActorID string
	Entries []OverrideEntry
}

func (c SetOverridesCommand) Key() string { return setOverridesKey }

type SetOverridesResult struct {
	CarID   string `json:"car_id"`
	Applied int    `json:"applied"`
}

// SetOverridesHandler upserts per-date price pins. Existing bookings are
// untouched: their quote was locked at creation time.
type SetOverridesHandler struct{}

func (h *SetOverridesHandler) Handle(ctx context.Context, cmd SetOverridesCommand) (*SetOverridesResult, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	car, err := unit.Cars().ByID(ctx, domaincars.CarID(strings.TrimSpace(cmd.CarID)))
	if err != nil {
		return nil, err
	}
	if car.OwnerID != strings.TrimSpace(cmd.ActorID) {
		return nil, ErrNotOwner
	}
	if len(cmd.Entries) == 0 {
		return nil, errors.New("pricing: at least one override entry required")
	}
	set, err := unit.Overrides().ForCar(ctx, car.ID)
	if err != nil {
		return nil, err
	}
	for _, entry := range cmd.Entries {
		day, err := domainrange.ParseDay(strings.TrimSpace(entry.Date))
		if err != nil {
			return nil, err
		}
		if entry.PriceCents <= 0 {
			set.Clear(day)
			continue
		}
		price, err := money.New(entry.PriceCents, car.BaseNightly.Currency)
		if err != nil {
			return nil, err
		}
		set.Set(day, price)
	}
	if err := unit.Overrides().Save(ctx, set); err != nil {
		return nil, err
	}
	return &SetOverridesResult{CarID: string(car.ID), Applied: len(cmd.Entries)}, nil
}

var _ commands.Handler[SetOverridesCommand, *SetOverridesResult] = (*SetOverridesHandler)(nil)
