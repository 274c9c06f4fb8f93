package availability

import (
	"context"
	"errors"
	"strings"
	"time"

	"driveshare/internal/app/commands"
	"driveshare/internal/app/outbox"
	"driveshare/internal/app/uow"
	domainavailability "driveshare/internal/domain/availability"
	domaincars "driveshare/internal/domain/cars"
	domainrange "driveshare/internal/domain/shared/daterange"
)

const (
	blockDatesKey   = "availability.block"
	unblockDatesKey = "availability.unblock"
)

var (
	ErrNotOwner      = errors.New("availability: actor does not own this car")
	ErrDatesRequired = errors.New("availability: at least one date required")
)

type BlockDatesCommand struct {
	CarID   string
	ActorID string
	Dates   []string // YYYY-MM-DD
}

func (c BlockDatesCommand) Key() string { return blockDatesKey }

type UnblockDatesCommand struct {
	CarID   string
	ActorID string
	Dates   []string
}

func (c UnblockDatesCommand) Key() string { return unblockDatesKey }

type BlockResult struct {
	CarID string `json:"car_id"`
	Dates int    `json:"dates"`
}

// BlockDatesHandler applies host calendar blocks. Blocking is idempotent
// for already blocked dates; a date covered by a committed booking fails
// the whole command with no partial effect.
type BlockDatesHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
}

func (h *BlockDatesHandler) Handle(ctx context.Context, cmd BlockDatesCommand) (*BlockResult, error) {
	unit, car, days, err := prepare(ctx, cmd.CarID, cmd.ActorID, cmd.Dates)
	if err != nil {
		return nil, err
	}
	ledger := domainavailability.Ledger{Repo: unit.Calendars(), Sink: sinkFor(h.Outbox, h.Encoder)}
	if err := ledger.BlockDays(ctx, car.ID, days, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &BlockResult{CarID: string(car.ID), Dates: len(days)}, nil
}

type UnblockDatesHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
}

func (h *UnblockDatesHandler) Handle(ctx context.Context, cmd UnblockDatesCommand) (*BlockResult, error) {
	unit, car, days, err := prepare(ctx, cmd.CarID, cmd.ActorID, cmd.Dates)
	if err != nil {
		return nil, err
	}
	ledger := domainavailability.Ledger{Repo: unit.Calendars(), Sink: sinkFor(h.Outbox, h.Encoder)}
	if err := ledger.UnblockDays(ctx, car.ID, days, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &BlockResult{CarID: string(car.ID), Dates: len(days)}, nil
}

func prepare(ctx context.Context, carID, actorID string, dates []string) (uow.UnitOfWork, *domaincars.Car, []domainrange.Day, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, nil, nil, uow.ErrUnitOfWorkMissing
	}
	car, err := unit.Cars().ByID(ctx, domaincars.CarID(strings.TrimSpace(carID)))
	if err != nil {
		return nil, nil, nil, err
	}
	if car.OwnerID != strings.TrimSpace(actorID) {
		return nil, nil, nil, ErrNotOwner
	}
	if len(dates) == 0 {
		return nil, nil, nil, ErrDatesRequired
	}
	days := make([]domainrange.Day, 0, len(dates))
	for _, raw := range dates {
		day, err := domainrange.ParseDay(strings.TrimSpace(raw))
		if err != nil {
			return nil, nil, nil, err
		}
		days = append(days, day)
	}
	return unit, car, days, nil
}

func sinkFor(box outbox.Outbox, enc outbox.EventEncoder) domainavailability.EventSink {
	if box == nil {
		return nil
	}
	if enc == nil {
		enc = outbox.JSONEventEncoder{}
	}
	return outbox.DomainEventSink{Box: box, Encoder: enc}
}

var _ commands.Handler[BlockDatesCommand, *BlockResult] = (*BlockDatesHandler)(nil)
var _ commands.Handler[UnblockDatesCommand, *BlockResult] = (*UnblockDatesHandler)(nil)
