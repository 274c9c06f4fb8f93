package memory

import (
	"context"
	"errors"

	"driveshare/internal/app/uow"
	domainavailability "driveshare/internal/domain/availability"
	domainbooking "driveshare/internal/domain/booking"
	domaincars "driveshare/internal/domain/cars"
	domainpricing "driveshare/internal/domain/pricing"
)

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	CarRepo      domaincars.Repository
	BookingRepo  domainbooking.Repository
	CalendarRepo domainavailability.Repository
	OverrideRepo domainpricing.OverrideRepository
}

// ErrFactoryMisconfigured indicates missing repositories.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Begin starts a lightweight transaction boundary. There is no isolation,
// but every repository enforces its own version CAS, so concurrent units
// cannot silently overwrite each other.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.CarRepo == nil || f.BookingRepo == nil || f.CalendarRepo == nil || f.OverrideRepo == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{
		cars:      f.CarRepo,
		bookings:  f.BookingRepo,
		calendars: f.CalendarRepo,
		overrides: f.OverrideRepo,
	}, nil
}

// Unit is a lightweight uow.UnitOfWork backed by in-memory stores.
type Unit struct {
	cars      domaincars.Repository
	bookings  domainbooking.Repository
	calendars domainavailability.Repository
	overrides domainpricing.OverrideRepository
}

func (u *Unit) Cars() domaincars.Repository {
	return u.cars
}

func (u *Unit) Bookings() domainbooking.Repository {
	return u.bookings
}

func (u *Unit) Calendars() domainavailability.Repository {
	return u.calendars
}

func (u *Unit) Overrides() domainpricing.OverrideRepository {
	return u.overrides
}

func (u *Unit) Commit(ctx context.Context) error {
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	return nil
}
