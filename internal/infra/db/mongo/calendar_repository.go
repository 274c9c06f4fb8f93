package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainavailability "driveshare/internal/domain/availability"
	domaincars "driveshare/internal/domain/cars"
)

// CalendarRepository persists one document per car. The version filter on
// Save gives the ledger its compare-and-swap.
type CalendarRepository struct {
	col *mongo.Collection
}

func NewCalendarRepository(db *mongo.Database) *CalendarRepository {
	col := db.Collection("agg_calendar")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "days.state", Value: 1}, {Key: "days.created_at", Value: 1}},
	})
	return &CalendarRepository{col: col}
}

func (r *CalendarRepository) Calendar(ctx context.Context, id domaincars.CarID) (*domainavailability.Calendar, error) {
	var doc calendarDocument
	err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domainavailability.NewCalendar(id), nil
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *CalendarRepository) Save(ctx context.Context, calendar *domainavailability.Calendar) error {
	doc := newCalendarDocument(calendar)
	filter := bson.M{"_id": doc.ID, "version": calendar.Version}
	doc.Version = calendar.Version + 1
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc}, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainavailability.ErrVersionConflict
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domainavailability.ErrVersionConflict
	}
	calendar.Version = doc.Version
	return nil
}

func (r *CalendarRepository) WithStaleHolds(ctx context.Context, cutoff time.Time) ([]*domainavailability.Calendar, error) {
	filter := bson.M{"days": bson.M{"$elemMatch": bson.M{
		"state":      string(domainavailability.StateHeld),
		"created_at": bson.M{"$lt": cutoff.UTC()},
	}}}
	cursor, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var matches []*domainavailability.Calendar
	for cursor.Next(ctx) {
		var doc calendarDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		matches = append(matches, doc.toAggregate())
	}
	return matches, cursor.Err()
}

type calendarDocument struct {
	ID      string        `bson:"_id"`
	Days    []dayDocument `bson:"days"`
	Version int64         `bson:"version"`
}

type dayDocument struct {
	Date      string    `bson:"date"`
	State     string    `bson:"state"`
	Reference string    `bson:"reference,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func newCalendarDocument(c *domainavailability.Calendar) calendarDocument {
	days := make([]dayDocument, 0, len(c.Days))
	for date, entry := range c.Days {
		days = append(days, dayDocument{
			Date:      date,
			State:     string(entry.State),
			Reference: entry.Reference,
			CreatedAt: entry.CreatedAt,
		})
	}
	return calendarDocument{ID: string(c.CarID), Days: days, Version: c.Version}
}

func (d calendarDocument) toAggregate() *domainavailability.Calendar {
	cal := domainavailability.NewCalendar(domaincars.CarID(d.ID))
	cal.Version = d.Version
	for _, day := range d.Days {
		cal.Days[day.Date] = domainavailability.Entry{
			State:     domainavailability.DayState(day.State),
			Reference: day.Reference,
			CreatedAt: day.CreatedAt.UTC(),
		}
	}
	return cal
}
