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

	vehicleserrors "vrent/internal/vehicles/errors"
	"vrent/pkg/config"
	"vrent/pkg/model"
	"vrent/pkg/sanitizer"
)

const (
	CollectionName = "Vehicles"
)

// sortColumns is the allow-list mapping API sort keys to stored fields.
// Anything else is rejected before it reaches a query.
var sortColumns = map[string]string{
	"price":      "price_per_day_cents",
	"year":       "year",
	"created_at": "created_at",
}

type VehicleRepository interface {
	Create(ctx context.Context, vehicle *model.Vehicle) error
	FindByID(ctx context.Context, id string) (*model.Vehicle, error)
	Search(ctx context.Context, filter *model.VehicleFilter) ([]*model.Vehicle, error)
	Count(ctx context.Context, filter *model.VehicleFilter) (int64, error)
	Update(ctx context.Context, id string, update *model.VehicleUpdate) error
	SoftDelete(ctx context.Context, id string) error
}

type mongoVehicleRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoVehicleRepository(cfg *config.Config) VehicleRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoVehicleRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoVehicleRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithTimeout(ctx, time.Until(deadline))
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoVehicleRepository) Create(ctx context.Context, vehicle *model.Vehicle) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	vehicle.CreatedAt = now
	vehicle.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, vehicle)
	if err != nil {
		return fmt.Errorf("failed to create vehicle: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		vehicle.ID = oid.Hex()
	}
	return nil
}

func (r *mongoVehicleRepository) FindByID(ctx context.Context, id string) (*model.Vehicle, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", vehicleserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "deleted_at": bson.M{"$exists": false}}

	var vehicle model.Vehicle
	err = r.collection.FindOne(ctx, filter).Decode(&vehicle)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, vehicleserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find vehicle: %w", err)
	}

	return &vehicle, nil
}

// Search and Count build their predicate from the same constructor, so a
// page and its total can never disagree about which vehicles match.
func (r *mongoVehicleRepository) Search(ctx context.Context, filter *model.VehicleFilter) ([]*model.Vehicle, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	query := buildSearchFilter(filter)

	sort, err := buildSort(filter)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(sort).
		SetLimit(filter.Limit).
		SetSkip(filter.Offset)

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find vehicles: %w", err)
	}
	defer cursor.Close(ctx)

	var vehicles []*model.Vehicle
	if err = cursor.All(ctx, &vehicles); err != nil {
		return nil, fmt.Errorf("failed to decode vehicles: %w", err)
	}

	return vehicles, nil
}

func (r *mongoVehicleRepository) Count(ctx context.Context, filter *model.VehicleFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildSearchFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count vehicles: %w", err)
	}
	return count, nil
}

func buildSearchFilter(f *model.VehicleFilter) bson.M {
	filter := bson.M{
		"deleted_at": bson.M{"$exists": false},
	}

	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Make != "" {
		filter["make"] = sanitizer.SanitizeMakeOrModel(f.Make)
	}
	if f.Model != "" {
		filter["model"] = sanitizer.SanitizeMakeOrModel(f.Model)
	}

	if f.Query != "" {
		escaped := sanitizer.EscapeSearchTerm(f.Query)
		filter["$or"] = []bson.M{
			{"make": bson.M{"$regex": escaped, "$options": "i"}},
			{"model": bson.M{"$regex": escaped, "$options": "i"}},
		}
	}

	year := bson.M{}
	if f.YearFrom != 0 {
		year["$gte"] = f.YearFrom
	}
	if f.YearTo != 0 {
		year["$lte"] = f.YearTo
	}
	if len(year) > 0 {
		filter["year"] = year
	}

	price := bson.M{}
	if f.MinPriceCents > 0 {
		price["$gte"] = f.MinPriceCents
	}
	if f.MaxPriceCents > 0 {
		price["$lte"] = f.MaxPriceCents
	}
	if len(price) > 0 {
		filter["price_per_day_cents"] = price
	}

	return filter
}

func buildSort(f *model.VehicleFilter) (bson.D, error) {
	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}

	column, ok := sortColumns[sortBy]
	if !ok {
		return nil, fmt.Errorf("%w: %s", vehicleserrors.ErrInvalidSortKey, sortBy)
	}

	direction := -1
	if f.SortDir == "asc" {
		direction = 1
	}

	// Secondary _id sort keeps pagination stable across equal keys.
	return bson.D{{Key: column, Value: direction}, {Key: "_id", Value: 1}}, nil
}

func (r *mongoVehicleRepository) Update(ctx context.Context, id string, update *model.VehicleUpdate) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", vehicleserrors.ErrInvalidID, id)
	}

	set := bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)}
	if update.Make != nil {
		set["make"] = *update.Make
	}
	if update.Model != nil {
		set["model"] = *update.Model
	}
	if update.Year != nil {
		set["year"] = *update.Year
	}
	if update.Status != nil {
		set["status"] = *update.Status
	}
	if update.PricePerDayCents != nil {
		set["price_per_day_cents"] = *update.PricePerDayCents
	}

	filter := bson.M{"_id": objectID, "deleted_at": bson.M{"$exists": false}}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update vehicle: %w", err)
	}
	if result.MatchedCount == 0 {
		return vehicleserrors.ErrNotFound
	}
	return nil
}

func (r *mongoVehicleRepository) SoftDelete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", vehicleserrors.ErrInvalidID, id)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	filter := bson.M{"_id": objectID, "deleted_at": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{"deleted_at": now, "updated_at": now}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to delete vehicle: %w", err)
	}
	if result.MatchedCount == 0 {
		return vehicleserrors.ErrNotFound
	}
	return nil
}
