package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domaincars "driveshare/internal/domain/cars"
	"driveshare/internal/domain/shared/money"
)

type CarRepository struct {
	col *mongo.Collection
}

func NewCarRepository(db *mongo.Database) *CarRepository {
	return &CarRepository{col: db.Collection("agg_car")}
}

func (r *CarRepository) ByID(ctx context.Context, id domaincars.CarID) (*domaincars.Car, error) {
	var doc carDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domaincars.ErrCarNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *CarRepository) Save(ctx context.Context, car *domaincars.Car) error {
	doc := newCarDocument(car)
	opts := options.Update().SetUpsert(true)
	_, err := r.col.UpdateByID(ctx, doc.ID, bson.M{"$set": doc}, opts)
	return err
}

type carDocument struct {
	ID                string `bson:"_id"`
	OwnerID           string `bson:"owner_id"`
	Title             string `bson:"title"`
	BaseNightlyCents  int64  `bson:"base_nightly_cents"`
	Currency          string `bson:"currency"`
	WeekendMarkupPct  int64  `bson:"weekend_markup_pct"`
	ServiceFeePct     int64  `bson:"service_fee_pct"`
	RequiresApproval  bool   `bson:"requires_approval"`
}

func newCarDocument(car *domaincars.Car) carDocument {
	return carDocument{
		ID:               string(car.ID),
		OwnerID:          car.OwnerID,
		Title:            car.Title,
		BaseNightlyCents: car.BaseNightly.Amount,
		Currency:         car.BaseNightly.Currency,
		WeekendMarkupPct: car.WeekendMarkupPct,
		ServiceFeePct:    car.ServiceFeePct,
		RequiresApproval: car.RequiresApproval,
	}
}

func (d carDocument) toAggregate() *domaincars.Car {
	return &domaincars.Car{
		ID:               domaincars.CarID(d.ID),
		OwnerID:          d.OwnerID,
		Title:            d.Title,
		BaseNightly:      money.Must(d.BaseNightlyCents, d.Currency),
		WeekendMarkupPct: d.WeekendMarkupPct,
		ServiceFeePct:    d.ServiceFeePct,
		RequiresApproval: d.RequiresApproval,
	}
}
