package pricing

import (
	"context"
	"errors"

	"driveshare/internal/domain/cars"
	"driveshare/internal/domain/shared/daterange"
	"driveshare/internal/domain/shared/money"
)

var (
	ErrCurrencyUnset   = errors.New("pricing: currency must be defined")
	ErrEmptyRange      = errors.New("pricing: range must cover at least one night")
	ErrVersionConflict = errors.New("pricing: concurrent override update detected")
)

// NightlyPrice is the resolved rate for a single calendar date.
type NightlyPrice struct {
	Date  daterange.Day
	Price money.Money
}

// Quote is the price breakdown locked into a booking at creation time.
// Overrides edited after a booking is created never affect it.
type Quote struct {
	Nightly    []NightlyPrice
	Subtotal   money.Money
	ServiceFee money.Money
	Total      money.Money
}

// OverrideSet holds per-date nightly prices a host has pinned for a car.
// An override supersedes both the base price and the weekend markup.
type OverrideSet struct {
	CarID   cars.CarID
	Prices  map[string]money.Money // keyed by Day.String()
	Version int64
}

func NewOverrideSet(id cars.CarID) *OverrideSet {
	return &OverrideSet{CarID: id, Prices: make(map[string]money.Money)}
}

func (o *OverrideSet) Set(day daterange.Day, price money.Money) {
	if o.Prices == nil {
		o.Prices = make(map[string]money.Money)
	}
	o.Prices[day.String()] = price
}

func (o *OverrideSet) Clear(day daterange.Day) {
	delete(o.Prices, day.String())
}

func (o *OverrideSet) For(day daterange.Day) (money.Money, bool) {
	price, ok := o.Prices[day.String()]
	return price, ok
}

// OverrideRepository persists override sets with optimistic concurrency.
type OverrideRepository interface {
	ForCar(ctx context.Context, id cars.CarID) (*OverrideSet, error)
	Save(ctx context.Context, set *OverrideSet) error
}

// ResolveNightly computes the rate for every date in [Start, End):
// an explicit override wins, otherwise weekend dates carry the markup
// (rounded to the nearest whole currency unit), otherwise the base price.
func ResolveNightly(car *cars.Car, overrides *OverrideSet, dr daterange.DateRange) ([]NightlyPrice, error) {
	if car.BaseNightly.Currency == "" {
		return nil, ErrCurrencyUnset
	}
	days := dr.Days()
	if len(days) == 0 {
		return nil, ErrEmptyRange
	}
	prices := make([]NightlyPrice, 0, len(days))
	for _, day := range days {
		price := car.BaseNightly
		if overrides != nil {
			if override, ok := overrides.For(day); ok {
				prices = append(prices, NightlyPrice{Date: day, Price: override})
				continue
			}
		}
		if day.IsWeekend() {
			price = price.Markup(car.WeekendMarkupPct)
		}
		prices = append(prices, NightlyPrice{Date: day, Price: price})
	}
	return prices, nil
}

// ResolveQuote sums the nightly prices and adds the service fee, a
// percentage of the subtotal rounded half-up to the nearest minor unit.
// Pure function of the inputs; callers must re-resolve at booking time
// because overrides can change between search and booking.
func ResolveQuote(car *cars.Car, overrides *OverrideSet, dr daterange.DateRange) (Quote, error) {
	nightly, err := ResolveNightly(car, overrides, dr)
	if err != nil {
		return Quote{}, err
	}
	subtotal := money.Money{Amount: 0, Currency: car.BaseNightly.Currency}
	for _, np := range nightly {
		subtotal, err = subtotal.Add(np.Price)
		if err != nil {
			return Quote{}, err
		}
	}
	fee := subtotal.PercentOf(car.ServiceFeePct)
	total, err := subtotal.Add(fee)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Nightly: nightly, Subtotal: subtotal, ServiceFee: fee, Total: total}, nil
}
