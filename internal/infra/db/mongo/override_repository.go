package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domaincars "driveshare/internal/domain/cars"
	domainpricing "driveshare/internal/domain/pricing"
	"driveshare/internal/domain/shared/money"
)

type OverrideRepository struct {
	col *mongo.Collection
}

func NewOverrideRepository(db *mongo.Database) *OverrideRepository {
	return &OverrideRepository{col: db.Collection("agg_price_overrides")}
}

func (r *OverrideRepository) ForCar(ctx context.Context, id domaincars.CarID) (*domainpricing.OverrideSet, error) {
	var doc overrideDocument
	err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domainpricing.NewOverrideSet(id), nil
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *OverrideRepository) Save(ctx context.Context, set *domainpricing.OverrideSet) error {
	doc := newOverrideDocument(set)
	filter := bson.M{"_id": doc.ID, "version": set.Version}
	doc.Version = set.Version + 1
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc}, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainpricing.ErrVersionConflict
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domainpricing.ErrVersionConflict
	}
	set.Version = doc.Version
	return nil
}

type overrideDocument struct {
	ID      string          `bson:"_id"`
	Prices  []priceDocument `bson:"prices"`
	Version int64           `bson:"version"`
}

type priceDocument struct {
	Date        string `bson:"date"`
	AmountCents int64  `bson:"amount_cents"`
	Currency    string `bson:"currency"`
}

func newOverrideDocument(set *domainpricing.OverrideSet) overrideDocument {
	prices := make([]priceDocument, 0, len(set.Prices))
	for date, price := range set.Prices {
		prices = append(prices, priceDocument{Date: date, AmountCents: price.Amount, Currency: price.Currency})
	}
	return overrideDocument{ID: string(set.CarID), Prices: prices, Version: set.Version}
}

func (d overrideDocument) toAggregate() *domainpricing.OverrideSet {
	set := domainpricing.NewOverrideSet(domaincars.CarID(d.ID))
	set.Version = d.Version
	for _, price := range d.Prices {
		set.Prices[price.Date] = money.Must(price.AmountCents, price.Currency)
	}
	return set
}
