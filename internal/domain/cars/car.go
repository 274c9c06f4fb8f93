package cars

import (
	"context"
	"errors"

	"driveshare/internal/domain/shared/money"
)

var ErrCarNotFound = errors.New("cars: not found")

type CarID string

// Car is the booking engine's snapshot of a listed vehicle. The listing
// catalog itself (photos, descriptions, search) lives outside this service;
// only the pricing and approval facts the orchestrator needs are modeled.
type Car struct {
	ID               CarID
	OwnerID          string
	Title            string
	BaseNightly      money.Money
	WeekendMarkupPct int64
	ServiceFeePct    int64
	RequiresApproval bool
}

func (c Car) Validate() error {
	if c.ID == "" {
		return errors.New("cars: id required")
	}
	if c.OwnerID == "" {
		return errors.New("cars: owner id required")
	}
	if !c.BaseNightly.IsPositive() {
		return errors.New("cars: base nightly rate must be positive")
	}
	if c.WeekendMarkupPct < 0 || c.ServiceFeePct < 0 {
		return errors.New("cars: percentages cannot be negative")
	}
	return nil
}

type Repository interface {
	ByID(ctx context.Context, id CarID) (*Car, error)
	Save(ctx context.Context, car *Car) error
}
