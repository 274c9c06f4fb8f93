package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m, err := New(1500, "usd")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), m.Amount)
	assert.Equal(t, "USD", m.Currency)

	_, err = New(100, "us")
	assert.ErrorIs(t, err, ErrInvalidCurrency)

	_, err = New(100, "dollars")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestAddAndSub(t *testing.T) {
	a := Must(1000, "USD")
	b := Must(250, "USD")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), sum.Amount)

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, int64(750), diff.Amount)

	_, err = a.Add(Must(100, "EUR"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = a.Add(Money{Amount: 100})
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestPercentOf(t *testing.T) {
	cases := []struct {
		name     string
		amount   int64
		percent  int64
		expected int64
	}{
		{"Exact", 20000, 5, 1000},
		{"RoundsHalfUp", 10050, 5, 503},
		{"RoundsDown", 10040, 5, 502},
		{"Zero", 20000, 0, 0},
		{"NegativeClamped", 20000, -10, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Must(tc.amount, "USD").PercentOf(tc.percent)
			assert.Equal(t, tc.expected, got.Amount)
			assert.Equal(t, "USD", got.Currency)
		})
	}
}

func TestMarkup(t *testing.T) {
	cases := []struct {
		name     string
		amount   int64
		percent  int64
		expected int64
	}{
		{"WholeUnits", 8000, 15, 9200},
		{"RoundsToWholeUnit", 9900, 15, 11400},
		{"RoundsUpAtHalf", 5000, 15, 5800},
		{"ZeroPercentUnchanged", 8050, 0, 8050},
		{"NegativeUnchanged", 8050, -5, 8050},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Must(tc.amount, "USD").Markup(tc.percent)
			assert.Equal(t, tc.expected, got.Amount)
		})
	}
}

func TestPredicatesAndString(t *testing.T) {
	assert.True(t, Must(0, "USD").IsZero())
	assert.False(t, Must(1, "USD").IsZero())
	assert.True(t, Must(1, "USD").IsPositive())
	assert.False(t, Must(-1, "USD").IsPositive())
	assert.Equal(t, "123.45 USD", Must(12345, "USD").String())
	assert.Equal(t, "10.05 EUR", Must(1005, "EUR").String())
}
