package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	rentalserrors "vrent/internal/rentals/errors"
	"vrent/pkg/config"
	mongotx "vrent/pkg/db/mongo"
	"vrent/pkg/model"
)

const (
	CollectionName = "Rentals"
)

type RentalRepository interface {
	Create(ctx context.Context, rental *model.Rental) error
	FindByID(ctx context.Context, id string) (*model.Rental, error)
	FindOverlapping(ctx context.Context, vehicleID string, period model.DateRange, excludeID string) ([]*model.Rental, error)
	Find(ctx context.Context, filter *model.RentalFilter) ([]*model.Rental, error)
	Count(ctx context.Context, filter *model.RentalFilter) (int64, error)
	Reschedule(ctx context.Context, id string, period model.DateRange, priceCents, totalCents int64) error
	Cancel(ctx context.Context, id string, at time.Time) error
	CountActiveByAccount(ctx context.Context, accountID string) (int64, error)
	CountActiveByVehicle(ctx context.Context, vehicleID string) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoRentalRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoRentalRepository(cfg *config.Config) RentalRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRentalRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout unless already inside a
// transaction. SessionContext cannot be wrapped without breaking
// transaction semantics, so it is returned unchanged with a no-op cancel.
func (r *mongoRentalRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithTimeout(ctx, time.Until(deadline))
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoRentalRepository) Create(ctx context.Context, rental *model.Rental) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	rental.CreatedAt = now
	rental.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, rental)
	if err != nil {
		// Duplicate key errors stay detectable through the wrap; the
		// partial unique index on (vehicle_id, start_date, end_date)
		// is the storage backstop against identical active rentals.
		return fmt.Errorf("failed to create rental: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		rental.ID = oid.Hex()
	}
	return nil
}

func (r *mongoRentalRepository) FindByID(ctx context.Context, id string) (*model.Rental, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", rentalserrors.ErrInvalidID, id)
	}

	var rental model.Rental
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&rental)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, rentalserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find rental: %w", err)
	}

	return &rental, nil
}

// FindOverlapping returns active rentals for the vehicle whose inclusive
// date range shares at least one day with period. Run on a session context
// inside a booking transaction, this read is the authoritative conflict
// check. excludeID skips the rental being rescheduled.
func (r *mongoRentalRepository) FindOverlapping(ctx context.Context, vehicleID string, period model.DateRange, excludeID string) ([]*model.Rental, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"vehicle_id": vehicleID,
		"status":     model.RentalStatusActive,
		"start_date": bson.M{"$lte": period.End},
		"end_date":   bson.M{"$gte": period.Start},
	}

	if excludeID != "" {
		objectID, err := primitive.ObjectIDFromHex(excludeID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", rentalserrors.ErrInvalidID, excludeID)
		}
		filter["_id"] = bson.M{"$ne": objectID}
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping rentals: %w", err)
	}
	defer cursor.Close(ctx)

	var rentals []*model.Rental
	if err = cursor.All(ctx, &rentals); err != nil {
		return nil, fmt.Errorf("failed to decode overlapping rentals: %w", err)
	}

	return rentals, nil
}

func (r *mongoRentalRepository) Find(ctx context.Context, filter *model.RentalFilter) ([]*model.Rental, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_date", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(filter.Limit).
		SetSkip(filter.Offset)

	cursor, err := r.collection.Find(ctx, buildListFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find rentals: %w", err)
	}
	defer cursor.Close(ctx)

	var rentals []*model.Rental
	if err = cursor.All(ctx, &rentals); err != nil {
		return nil, fmt.Errorf("failed to decode rentals: %w", err)
	}

	return rentals, nil
}

func (r *mongoRentalRepository) Count(ctx context.Context, filter *model.RentalFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildListFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count rentals: %w", err)
	}
	return count, nil
}

// buildListFilter is shared by Find and Count so a page and its total
// always agree on which rentals match.
func buildListFilter(f *model.RentalFilter) bson.M {
	filter := bson.M{}
	if f.AccountID != "" {
		filter["account_id"] = f.AccountID
	}
	if f.VehicleID != "" {
		filter["vehicle_id"] = f.VehicleID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

// Reschedule moves an active rental to a new period and overwrites the
// price snapshot with the vehicle's current rate.
func (r *mongoRentalRepository) Reschedule(ctx context.Context, id string, period model.DateRange, priceCents, totalCents int64) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", rentalserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": model.RentalStatusActive}
	update := bson.M{
		"$set": bson.M{
			"start_date":            period.Start,
			"end_date":              period.End,
			"price_at_rental_cents": priceCents,
			"total_cost_cents":      totalCents,
			"updated_at":            time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to reschedule rental: %w", err)
	}
	if result.MatchedCount == 0 {
		return rentalserrors.ErrNotFound
	}
	return nil
}

// Cancel flips an active rental to cancelled. The status guard in the
// filter makes the operation idempotent at the storage level: a second
// cancel matches nothing and cancelled_at keeps its original value.
func (r *mongoRentalRepository) Cancel(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", rentalserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": model.RentalStatusActive}
	update := bson.M{
		"$set": bson.M{
			"status":       model.RentalStatusCancelled,
			"cancelled_at": at,
			"updated_at":   at,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to cancel rental: %w", err)
	}
	if result.MatchedCount == 0 {
		var rental model.Rental
		err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&rental)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return rentalserrors.ErrNotFound
			}
			return fmt.Errorf("failed to check rental state: %w", err)
		}
		if rental.Status == model.RentalStatusCancelled {
			return rentalserrors.ErrAlreadyCancelled
		}
		return rentalserrors.ErrNotFound
	}
	return nil
}

func (r *mongoRentalRepository) CountActiveByAccount(ctx context.Context, accountID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{
		"account_id": accountID,
		"status":     model.RentalStatusActive,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count active rentals by account: %w", err)
	}
	return count, nil
}

func (r *mongoRentalRepository) CountActiveByVehicle(ctx context.Context, vehicleID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{
		"vehicle_id": vehicleID,
		"status":     model.RentalStatusActive,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count active rentals by vehicle: %w", err)
	}
	return count, nil
}

func (r *mongoRentalRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
