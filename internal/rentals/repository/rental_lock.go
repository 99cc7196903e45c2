package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"vrent/pkg/config"
	"vrent/pkg/model"
)

const LockCollectionName = "Rental_locks"

// RentalLockRepository provides operations for per-vehicle advisory locks.
type RentalLockRepository interface {
	Create(ctx context.Context, lock *model.RentalLock) error
	Delete(ctx context.Context, lockID string) error
}

type mongoRentalLockRepository struct {
	collection *mongo.Collection
}

func NewRentalLockRepository(cfg *config.Config) RentalLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRentalLockRepository{
		collection: db.Collection(LockCollectionName),
	}
}

// Create inserts the lock document. A duplicate key error means another
// booking for the same vehicle holds the lock; callers detect it with
// mongo.IsDuplicateKeyError.
func (r *mongoRentalLockRepository) Create(ctx context.Context, lock *model.RentalLock) error {
	_, err := r.collection.InsertOne(ctx, lock)
	return err
}

func (r *mongoRentalLockRepository) Delete(ctx context.Context, lockID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}
