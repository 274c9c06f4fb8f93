package money

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
)

// MinorUnitsPerUnit is the number of minor currency units in one whole unit.
const MinorUnitsPerUnit = 100

// Money keeps amounts in integer minor units to avoid floating point issues.
type Money struct {
	Amount   int64
	Currency string
}

// New constructs a Money value validating minimal invariants.
func New(amount int64, currency string) (Money, error) {
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	currency = strings.ToUpper(currency)
	return Money{Amount: amount, Currency: currency}, nil
}

// Must creates Money and panics if validation fails; useful in tests and fixtures.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Add adds two money values ensuring currencies match.
func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Sub subtracts other from the receiver.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Multiply multiplies the amount by the provided factor.
func (m Money) Multiply(times int64) Money {
	return Money{Amount: m.Amount * times, Currency: m.Currency}
}

// PercentOf returns percent% of the amount rounded half-up to the nearest
// minor unit. Negative percentages are clamped to zero.
func (m Money) PercentOf(percent int64) Money {
	if percent <= 0 {
		return Money{Amount: 0, Currency: m.Currency}
	}
	amount := (m.Amount*percent + 50) / 100
	return Money{Amount: amount, Currency: m.Currency}
}

// Markup applies a percentage increase rounding the result half-up to the
// nearest whole currency unit.
func (m Money) Markup(percent int64) Money {
	if percent <= 0 {
		return m
	}
	numerator := m.Amount * (100 + percent)
	perUnit := int64(MinorUnitsPerUnit) * 100
	units := (numerator + perUnit/2) / perUnit
	return Money{Amount: units * MinorUnitsPerUnit, Currency: m.Currency}
}

// IsZero returns true if the amount equals zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// IsPositive returns true for amounts strictly above zero.
func (m Money) IsPositive() bool {
	return m.Amount > 0
}

func (m Money) String() string {
	return fmt.Sprintf("%d.%02d %s", m.Amount/MinorUnitsPerUnit, m.Amount%MinorUnitsPerUnit, m.Currency)
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.Currency == "" || other.Currency == "" {
		return ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}
