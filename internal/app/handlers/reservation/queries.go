package reservation

import (
	"context"
	"errors"
	"strings"
	"time"

	"driveshare/internal/app/dto"
	handlersupport "driveshare/internal/app/handlers/support"
	"driveshare/internal/app/queries"
	"driveshare/internal/app/uow"
	domainbooking "driveshare/internal/domain/booking"
)

const (
	getReservationKey         = "reservation.get"
	listRenterReservationsKey = "reservation.list_by_renter"
)

type GetReservationQuery struct {
	BookingID string
	ActorID   string
}

func (q GetReservationQuery) Key() string { return getReservationKey }

type GetReservationHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetReservationHandler) Handle(ctx context.Context, q GetReservationQuery) (dto.Reservation, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Reservation{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	bk, err := unit.Bookings().ByID(execCtx, domainbooking.BookingID(strings.TrimSpace(q.BookingID)))
	if err != nil {
		return dto.Reservation{}, err
	}
	actor := strings.TrimSpace(q.ActorID)
	if actor != bk.Renter.RenterID && actor != bk.OwnerID {
		return dto.Reservation{}, ErrNotAuthorized
	}
	return dto.MapReservation(bk, time.Now().UTC()), nil
}

type ListRenterReservationsQuery struct {
	RenterID string
}

func (q ListRenterReservationsQuery) Key() string { return listRenterReservationsKey }

type ListRenterReservationsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListRenterReservationsHandler) Handle(ctx context.Context, q ListRenterReservationsQuery) (dto.ReservationCollection, error) {
	renterID := strings.TrimSpace(q.RenterID)
	if renterID == "" {
		return dto.ReservationCollection{}, errors.New("reservation: renter id required")
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ReservationCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	bookings, err := unit.Bookings().ListByRenter(execCtx, renterID)
	if err != nil {
		return dto.ReservationCollection{}, err
	}
	now := time.Now().UTC()
	items := make([]dto.Reservation, 0, len(bookings))
	for _, bk := range bookings {
		items = append(items, dto.MapReservation(bk, now))
	}
	return dto.ReservationCollection{Items: items}, nil
}

var _ queries.Handler[GetReservationQuery, dto.Reservation] = (*GetReservationHandler)(nil)
var _ queries.Handler[ListRenterReservationsQuery, dto.ReservationCollection] = (*ListRenterReservationsHandler)(nil)
