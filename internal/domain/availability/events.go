package availability

import (
	"time"

	"driveshare/internal/domain/shared/daterange"
)

type RangeHeld struct {
	CarID     string
	Reference string
	Range     daterange.DateRange
	At        time.Time
}

func (e RangeHeld) EventName() string     { return "calendar.range_held" }
func (e RangeHeld) AggregateID() string   { return e.CarID }
func (e RangeHeld) OccurredAt() time.Time { return e.At }

type HoldCommitted struct {
	CarID     string
	Reference string
	Range     daterange.DateRange
	At        time.Time
}

func (e HoldCommitted) EventName() string     { return "calendar.hold_committed" }
func (e HoldCommitted) AggregateID() string   { return e.CarID }
func (e HoldCommitted) OccurredAt() time.Time { return e.At }

type HoldReleased struct {
	CarID     string
	Reference string
	Range     daterange.DateRange
	At        time.Time
}

func (e HoldReleased) EventName() string     { return "calendar.hold_released" }
func (e HoldReleased) AggregateID() string   { return e.CarID }
func (e HoldReleased) OccurredAt() time.Time { return e.At }

type BookingReleased struct {
	CarID     string
	Reference string
	At        time.Time
}

func (e BookingReleased) EventName() string     { return "calendar.booking_released" }
func (e BookingReleased) AggregateID() string   { return e.CarID }
func (e BookingReleased) OccurredAt() time.Time { return e.At }

type DatesBlocked struct {
	CarID string
	Dates []string
	At    time.Time
}

func (e DatesBlocked) EventName() string     { return "calendar.dates_blocked" }
func (e DatesBlocked) AggregateID() string   { return e.CarID }
func (e DatesBlocked) OccurredAt() time.Time { return e.At }

type DatesUnblocked struct {
	CarID string
	Dates []string
	At    time.Time
}

func (e DatesUnblocked) EventName() string     { return "calendar.dates_unblocked" }
func (e DatesUnblocked) AggregateID() string   { return e.CarID }
func (e DatesUnblocked) OccurredAt() time.Time { return e.At }

type OverbookingPrevented struct {
	CarID string
	Range daterange.DateRange
	At    time.Time
}

func (e OverbookingPrevented) EventName() string     { return "calendar.overbooking_prevented" }
func (e OverbookingPrevented) AggregateID() string   { return e.CarID }
func (e OverbookingPrevented) OccurredAt() time.Time { return e.At }
