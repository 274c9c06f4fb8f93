package booking

import (
	"time"

	"driveshare/internal/domain/shared/daterange"
	"driveshare/internal/domain/shared/money"
)

// RefundPolicy decides how much of a captured total is returned when a
// confirmed booking is cancelled before its start date.
type RefundPolicy interface {
	RefundFor(total money.Money, cancelAt time.Time, start daterange.Day) money.Money
}

// TieredRefundPolicy refunds the full total when cancellation happens at
// least FullRefundWindow before the start date, PartialPercent of it inside
// the window, and nothing on or after the start date.
type TieredRefundPolicy struct {
	FullRefundWindow time.Duration
	PartialPercent   int64
}

// DefaultRefundPolicy: full refund up to 7 days before start, 50% after.
func DefaultRefundPolicy() TieredRefundPolicy {
	return TieredRefundPolicy{FullRefundWindow: 7 * 24 * time.Hour, PartialPercent: 50}
}

func (p TieredRefundPolicy) RefundFor(total money.Money, cancelAt time.Time, start daterange.Day) money.Money {
	if !daterange.DayOf(cancelAt).Before(start) {
		return money.Must(0, total.Currency)
	}
	cutoff := start.Time().Add(-p.FullRefundWindow)
	if cancelAt.UTC().Before(cutoff) {
		return total
	}
	return total.PercentOf(p.PartialPercent)
}
