package dto

import (
	domainpricing "driveshare/internal/domain/pricing"
)

type QuoteNight struct {
	Date       string `json:"date"`
	PriceCents int64  `json:"price_cents"`
}

type Quote struct {
	CarID           string       `json:"car_id"`
	Nights          []QuoteNight `json:"nights"`
	SubtotalCents   int64        `json:"subtotal_cents"`
	ServiceFeeCents int64        `json:"service_fee_cents"`
	TotalCents      int64        `json:"total_cents"`
	Currency        string       `json:"currency"`
}

func MapQuote(carID string, q domainpricing.Quote) Quote {
	nights := make([]QuoteNight, 0, len(q.Nightly))
	for _, np := range q.Nightly {
		nights = append(nights, QuoteNight{Date: np.Date.String(), PriceCents: np.Price.Amount})
	}
	return Quote{
		CarID:           carID,
		Nights:          nights,
		SubtotalCents:   q.Subtotal.Amount,
		ServiceFeeCents: q.ServiceFee.Amount,
		TotalCents:      q.Total.Amount,
		Currency:        q.Total.Currency,
	}
}
