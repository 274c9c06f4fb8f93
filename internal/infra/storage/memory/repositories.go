package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	domainavailability "driveshare/internal/domain/availability"
	domainbooking "driveshare/internal/domain/booking"
	domaincars "driveshare/internal/domain/cars"
	domainpricing "driveshare/internal/domain/pricing"
)

// CarRepository is an in-memory implementation for demo and test wiring.
type CarRepository struct {
	mu    sync.RWMutex
	items map[domaincars.CarID]*domaincars.Car
}

// NewCarRepository builds an empty repository.
func NewCarRepository() *CarRepository {
	return &CarRepository{items: make(map[domaincars.CarID]*domaincars.Car)}
}

// ByID returns a car or cars.ErrCarNotFound.
func (r *CarRepository) ByID(ctx context.Context, id domaincars.CarID) (*domaincars.Car, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	car, ok := r.items[id]
	if !ok {
		return nil, domaincars.ErrCarNotFound
	}
	clone := *car
	return &clone, nil
}

// Save stores/updates a car entry.
func (r *CarRepository) Save(ctx context.Context, car *domaincars.Car) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *car
	r.items[car.ID] = &clone
	return nil
}

// BookingRepository stores bookings in memory with optimistic versioning.
// Loads hand out snapshots, so a stale writer fails the version check on
// Save instead of mutating shared state.
type BookingRepository struct {
	mu    sync.RWMutex
	items map[domainbooking.BookingID]*domainbooking.Booking
	byRef map[string]domainbooking.BookingID
}

// NewBookingRepository builds an empty booking repo.
func NewBookingRepository() *BookingRepository {
	return &BookingRepository{
		items: make(map[domainbooking.BookingID]*domainbooking.Booking),
		byRef: make(map[string]domainbooking.BookingID),
	}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return cloneBooking(stored), nil
}

func (r *BookingRepository) ByPaymentRef(ctx context.Context, ref string) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byRef[ref]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	stored, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return cloneBooking(stored), nil
}

func (r *BookingRepository) Save(ctx context.Context, booking *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, exists := r.items[booking.ID]
	switch {
	case !exists && booking.Version != 0:
		return domainbooking.ErrVersionConflict
	case exists && stored.Version != booking.Version:
		return domainbooking.ErrVersionConflict
	}
	booking.Version++
	r.items[booking.ID] = cloneBooking(booking)
	if booking.PaymentRef != "" {
		r.byRef[booking.PaymentRef] = booking.ID
	}
	return nil
}

func (r *BookingRepository) ListByRenter(ctx context.Context, renterID string) ([]*domainbooking.Booking, error) {
	id := strings.TrimSpace(renterID)
	if id == "" {
		return nil, errors.New("memory: renter id required")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]*domainbooking.Booking, 0)
	for _, booking := range r.items {
		if booking.Renter.RenterID == id {
			matches = append(matches, cloneBooking(booking))
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches, nil
}

func (r *BookingRepository) ListExpiredApprovals(ctx context.Context, now time.Time) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]*domainbooking.Booking, 0)
	for _, booking := range r.items {
		if booking.State == domainbooking.StateAwaitingApproval && booking.DeadlineElapsed(now) {
			matches = append(matches, cloneBooking(booking))
		}
	}
	return matches, nil
}

func (r *BookingRepository) ListEndedConfirmed(ctx context.Context, now time.Time) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]*domainbooking.Booking, 0)
	for _, booking := range r.items {
		if booking.State != domainbooking.StateConfirmed {
			continue
		}
		if booking.Range.End.Time().After(now) {
			continue
		}
		matches = append(matches, cloneBooking(booking))
	}
	return matches, nil
}

func cloneBooking(b *domainbooking.Booking) *domainbooking.Booking {
	clone := *b
	clone.ClearEvents()
	if b.ApprovalDeadline != nil {
		deadline := *b.ApprovalDeadline
		clone.ApprovalDeadline = &deadline
	}
	return &clone
}

// CalendarRepository keeps availability calendars in memory. Save applies
// a compare-and-swap on the calendar version, which is what lets the
// ledger linearize overlapping holds.
type CalendarRepository struct {
	mu        sync.RWMutex
	calendars map[domaincars.CarID]*domainavailability.Calendar
}

// NewCalendarRepository returns a repository initialized with empty calendars.
func NewCalendarRepository() *CalendarRepository {
	return &CalendarRepository{calendars: make(map[domaincars.CarID]*domainavailability.Calendar)}
}

// Calendar retrieves a calendar snapshot, lazily creating it.
func (r *CalendarRepository) Calendar(ctx context.Context, id domaincars.CarID) (*domainavailability.Calendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cal, ok := r.calendars[id]; ok {
		return cloneCalendar(cal), nil
	}
	cal := domainavailability.NewCalendar(id)
	r.calendars[id] = cal
	return cloneCalendar(cal), nil
}

// Save persists a calendar snapshot iff the stored version still matches.
func (r *CalendarRepository) Save(ctx context.Context, calendar *domainavailability.Calendar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, exists := r.calendars[calendar.CarID]
	switch {
	case !exists && calendar.Version != 0:
		return domainavailability.ErrVersionConflict
	case exists && stored.Version != calendar.Version:
		return domainavailability.ErrVersionConflict
	}
	calendar.Version++
	r.calendars[calendar.CarID] = cloneCalendar(calendar)
	return nil
}

// WithStaleHolds lists calendars with at least one hold older than cutoff.
func (r *CalendarRepository) WithStaleHolds(ctx context.Context, cutoff time.Time) ([]*domainavailability.Calendar, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]*domainavailability.Calendar, 0)
	for _, cal := range r.calendars {
		if len(cal.StaleHolds(cutoff)) > 0 {
			matches = append(matches, cloneCalendar(cal))
		}
	}
	return matches, nil
}

func cloneCalendar(c *domainavailability.Calendar) *domainavailability.Calendar {
	clone := domainavailability.NewCalendar(c.CarID)
	clone.Version = c.Version
	for key, entry := range c.Days {
		clone.Days[key] = entry
	}
	return clone
}

// OverrideRepository keeps per-car price overrides in memory.
type OverrideRepository struct {
	mu    sync.RWMutex
	items map[domaincars.CarID]*domainpricing.OverrideSet
}

func NewOverrideRepository() *OverrideRepository {
	return &OverrideRepository{items: make(map[domaincars.CarID]*domainpricing.OverrideSet)}
}

// ForCar returns the override set for a car, empty when none was saved.
func (r *OverrideRepository) ForCar(ctx context.Context, id domaincars.CarID) (*domainpricing.OverrideSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if set, ok := r.items[id]; ok {
		return cloneOverrides(set), nil
	}
	return domainpricing.NewOverrideSet(id), nil
}

func (r *OverrideRepository) Save(ctx context.Context, set *domainpricing.OverrideSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, exists := r.items[set.CarID]
	if exists && stored.Version != set.Version {
		return domainpricing.ErrVersionConflict
	}
	set.Version++
	r.items[set.CarID] = cloneOverrides(set)
	return nil
}

func cloneOverrides(s *domainpricing.OverrideSet) *domainpricing.OverrideSet {
	clone := domainpricing.NewOverrideSet(s.CarID)
	clone.Version = s.Version
	for key, price := range s.Prices {
		clone.Prices[key] = price
	}
	return clone
}
