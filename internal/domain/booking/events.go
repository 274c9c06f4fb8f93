package booking

import (
	"time"

	"driveshare/internal/domain/cars"
	"driveshare/internal/domain/shared/daterange"
	"driveshare/internal/domain/shared/money"
)

type ReservationRequested struct {
	BookingID        BookingID
	CarID            cars.CarID
	RenterID         string
	Range            daterange.DateRange
	Total            money.Money
	AwaitingApproval bool
	At               time.Time
}

func (e ReservationRequested) EventName() string     { return "reservation.requested" }
func (e ReservationRequested) AggregateID() string   { return string(e.BookingID) }
func (e ReservationRequested) OccurredAt() time.Time { return e.At }

type ReservationConfirmed struct {
	BookingID BookingID
	CarID     cars.CarID
	Range     daterange.DateRange
	Total     money.Money
	At        time.Time
}

func (e ReservationConfirmed) EventName() string     { return "reservation.confirmed" }
func (e ReservationConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e ReservationConfirmed) OccurredAt() time.Time { return e.At }

type ReservationRejected struct {
	BookingID BookingID
	CarID     cars.CarID
	Reason    string
	At        time.Time
}

func (e ReservationRejected) EventName() string     { return "reservation.rejected" }
func (e ReservationRejected) AggregateID() string   { return string(e.BookingID) }
func (e ReservationRejected) OccurredAt() time.Time { return e.At }

type ReservationCancelled struct {
	BookingID BookingID
	CarID     cars.CarID
	Refund    money.Money
	Reason    string
	At        time.Time
}

func (e ReservationCancelled) EventName() string     { return "reservation.cancelled" }
func (e ReservationCancelled) AggregateID() string   { return string(e.BookingID) }
func (e ReservationCancelled) OccurredAt() time.Time { return e.At }

type ReservationCompleted struct {
	BookingID BookingID
	CarID     cars.CarID
	At        time.Time
}

func (e ReservationCompleted) EventName() string     { return "reservation.completed" }
func (e ReservationCompleted) AggregateID() string   { return string(e.BookingID) }
func (e ReservationCompleted) OccurredAt() time.Time { return e.At }

type PaymentReconciled struct {
	BookingID  BookingID
	PaymentRef string
	Status     string
	At         time.Time
}

func (e PaymentReconciled) EventName() string     { return "reservation.payment_reconciled" }
func (e PaymentReconciled) AggregateID() string   { return string(e.BookingID) }
func (e PaymentReconciled) OccurredAt() time.Time { return e.At }
