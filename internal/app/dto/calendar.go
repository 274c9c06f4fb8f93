package dto

import (
	"sort"

	domainavailability "driveshare/internal/domain/availability"
)

type CalendarDay struct {
	Date      string `json:"date"`
	State     string `json:"state"`
	Reference string `json:"reference,omitempty"`
}

type Calendar struct {
	CarID string        `json:"car_id"`
	Days  []CalendarDay `json:"days"`
}

func MapCalendar(cal *domainavailability.Calendar) Calendar {
	days := make([]CalendarDay, 0, len(cal.Days))
	for date, entry := range cal.Days {
		day := CalendarDay{Date: date, State: string(entry.State)}
		if entry.State != domainavailability.StateBlocked {
			day.Reference = entry.Reference
		}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return Calendar{CarID: string(cal.CarID), Days: days}
}
