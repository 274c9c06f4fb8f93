package uow

import (
	"context"

	domainavailability "driveshare/internal/domain/availability"
	domainbooking "driveshare/internal/domain/booking"
	domaincars "driveshare/internal/domain/cars"
	domainpricing "driveshare/internal/domain/pricing"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Cars() domaincars.Repository
	Bookings() domainbooking.Repository
	Calendars() domainavailability.Repository
	Overrides() domainpricing.OverrideRepository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
