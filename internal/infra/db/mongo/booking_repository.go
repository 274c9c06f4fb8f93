package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "driveshare/internal/domain/booking"
	domaincars "driveshare/internal/domain/cars"
	domainpricing "driveshare/internal/domain/pricing"
	domainrange "driveshare/internal/domain/shared/daterange"
	"driveshare/internal/domain/shared/money"
)

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	col := db.Collection("agg_booking")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "payment_ref", Value: 1}},
		Options: options.Index().SetSparse(true),
	})
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "state", Value: 1}, {Key: "approval_deadline", Value: 1}},
	})
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "renter_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return &BookingRepository{col: col}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *BookingRepository) ByPaymentRef(ctx context.Context, ref string) (*domainbooking.Booking, error) {
	return r.findOne(ctx, bson.M{"payment_ref": ref})
}

func (r *BookingRepository) findOne(ctx context.Context, filter bson.M) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate()
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainbooking.ErrVersionConflict
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domainbooking.ErrVersionConflict
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) ListByRenter(ctx context.Context, renterID string) ([]*domainbooking.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.find(ctx, bson.M{"renter_id": renterID}, opts)
}

func (r *BookingRepository) ListExpiredApprovals(ctx context.Context, now time.Time) ([]*domainbooking.Booking, error) {
	filter := bson.M{
		"state":             string(domainbooking.StateAwaitingApproval),
		"approval_deadline": bson.M{"$lt": now.UTC()},
	}
	return r.find(ctx, filter, nil)
}

func (r *BookingRepository) ListEndedConfirmed(ctx context.Context, now time.Time) ([]*domainbooking.Booking, error) {
	filter := bson.M{
		"state":     string(domainbooking.StateConfirmed),
		"range.end": bson.M{"$lte": domainrange.DayOf(now).String()},
	}
	return r.find(ctx, filter, nil)
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainbooking.Booking, error) {
	var cursor *mongo.Cursor
	var err error
	if opts != nil {
		cursor, err = r.col.Find(ctx, filter, opts)
	} else {
		cursor, err = r.col.Find(ctx, filter)
	}
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var matches []*domainbooking.Booking
	for cursor.Next(ctx) {
		var doc bookingDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		agg, err := doc.toAggregate()
		if err != nil {
			return nil, err
		}
		matches = append(matches, agg)
	}
	return matches, cursor.Err()
}

type bookingDocument struct {
	ID               string          `bson:"_id"`
	CarID            string          `bson:"car_id"`
	OwnerID          string          `bson:"owner_id"`
	RenterID         string          `bson:"renter_id"`
	RenterName       string          `bson:"renter_name"`
	RenterEmail      string          `bson:"renter_email"`
	RenterPhone      string          `bson:"renter_phone"`
	RenterLicense    string          `bson:"renter_license"`
	Range            rangeDocument   `bson:"range"`
	Nightly          []nightDocument `bson:"nightly"`
	Currency         string          `bson:"currency"`
	SubtotalCents    int64           `bson:"subtotal_cents"`
	ServiceFeeCents  int64           `bson:"service_fee_cents"`
	TotalCents       int64           `bson:"total_cents"`
	State            string          `bson:"state"`
	PaymentStatus    string          `bson:"payment_status"`
	PaymentRef       string          `bson:"payment_ref,omitempty"`
	ApprovalDeadline *time.Time      `bson:"approval_deadline,omitempty"`
	CreatedAt        time.Time       `bson:"created_at"`
	UpdatedAt        time.Time       `bson:"updated_at"`
	Version          int64           `bson:"version"`
}

type rangeDocument struct {
	Start string `bson:"start"`
	End   string `bson:"end"`
}

type nightDocument struct {
	Date       string `bson:"date"`
	PriceCents int64  `bson:"price_cents"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	nightly := make([]nightDocument, 0, len(b.Price.Nightly))
	for _, night := range b.Price.Nightly {
		nightly = append(nightly, nightDocument{Date: night.Date.String(), PriceCents: night.Price.Amount})
	}
	return bookingDocument{
		ID:               string(b.ID),
		CarID:            string(b.CarID),
		OwnerID:          b.OwnerID,
		RenterID:         b.Renter.RenterID,
		RenterName:       b.Renter.Name,
		RenterEmail:      b.Renter.Email,
		RenterPhone:      b.Renter.Phone,
		RenterLicense:    b.Renter.License,
		Range:            rangeDocument{Start: b.Range.Start.String(), End: b.Range.End.String()},
		Nightly:          nightly,
		Currency:         b.Price.Total.Currency,
		SubtotalCents:    b.Price.Subtotal.Amount,
		ServiceFeeCents:  b.Price.ServiceFee.Amount,
		TotalCents:       b.Price.Total.Amount,
		State:            string(b.State),
		PaymentStatus:    string(b.PaymentStatus),
		PaymentRef:       b.PaymentRef,
		ApprovalDeadline: b.ApprovalDeadline,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
		Version:          b.Version,
	}
}

func (d bookingDocument) toAggregate() (*domainbooking.Booking, error) {
	start, err := domainrange.ParseDay(d.Range.Start)
	if err != nil {
		return nil, err
	}
	end, err := domainrange.ParseDay(d.Range.End)
	if err != nil {
		return nil, err
	}
	nightly := make([]domainpricing.NightlyPrice, 0, len(d.Nightly))
	for _, night := range d.Nightly {
		day, err := domainrange.ParseDay(night.Date)
		if err != nil {
			return nil, err
		}
		nightly = append(nightly, domainpricing.NightlyPrice{
			Date:  day,
			Price: money.Must(night.PriceCents, d.Currency),
		})
	}
	agg := &domainbooking.Booking{
		ID:      domainbooking.BookingID(d.ID),
		CarID:   domaincars.CarID(d.CarID),
		OwnerID: d.OwnerID,
		Renter: domainbooking.RenterSnapshot{
			RenterID: d.RenterID,
			Name:     d.RenterName,
			Email:    d.RenterEmail,
			Phone:    d.RenterPhone,
			License:  d.RenterLicense,
		},
		Range: domainrange.DateRange{Start: start, End: end},
		Price: domainpricing.Quote{
			Nightly:    nightly,
			Subtotal:   money.Must(d.SubtotalCents, d.Currency),
			ServiceFee: money.Must(d.ServiceFeeCents, d.Currency),
			Total:      money.Must(d.TotalCents, d.Currency),
		},
		State:            domainbooking.State(d.State),
		PaymentStatus:    domainbooking.PaymentStatus(d.PaymentStatus),
		PaymentRef:       d.PaymentRef,
		ApprovalDeadline: d.ApprovalDeadline,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
		Version:          d.Version,
	}
	return agg, nil
}
