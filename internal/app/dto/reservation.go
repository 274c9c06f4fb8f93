package dto

import (
	"time"

	domainbooking "driveshare/internal/domain/booking"
)

type Reservation struct {
	ID               string     `json:"id"`
	CarID            string     `json:"car_id"`
	RenterID         string     `json:"renter_id"`
	RenterName       string     `json:"renter_name"`
	StartDate        string     `json:"start_date"`
	EndDate          string     `json:"end_date"`
	Nights           int        `json:"nights"`
	Status           string     `json:"status"`
	Active           bool       `json:"active"`
	PaymentStatus    string     `json:"payment_status"`
	PaymentRef       string     `json:"payment_ref"`
	SubtotalCents    int64      `json:"subtotal_cents"`
	ServiceFeeCents  int64      `json:"service_fee_cents"`
	TotalCents       int64      `json:"total_cents"`
	Currency         string     `json:"currency"`
	ApprovalDeadline *time.Time `json:"approval_deadline,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

type ReservationCollection struct {
	Items []Reservation `json:"items"`
}

func MapReservation(bk *domainbooking.Booking, now time.Time) Reservation {
	return Reservation{
		ID:               string(bk.ID),
		CarID:            string(bk.CarID),
		RenterID:         bk.Renter.RenterID,
		RenterName:       bk.Renter.Name,
		StartDate:        bk.Range.Start.String(),
		EndDate:          bk.Range.End.String(),
		Nights:           bk.Range.Nights(),
		Status:           string(bk.State),
		Active:           bk.IsActive(now),
		PaymentStatus:    string(bk.PaymentStatus),
		PaymentRef:       bk.PaymentRef,
		SubtotalCents:    bk.Price.Subtotal.Amount,
		ServiceFeeCents:  bk.Price.ServiceFee.Amount,
		TotalCents:       bk.Price.Total.Amount,
		Currency:         bk.Price.Total.Currency,
		ApprovalDeadline: bk.ApprovalDeadline,
		CreatedAt:        bk.CreatedAt,
	}
}
