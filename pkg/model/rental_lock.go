package model

import (
	"fmt"
	"time"
)

const rentalLockPrefix = "rental_lock_"

// RentalLock is a short-lived advisory lock document. Its _id is derived
// from the vehicle id, so a unique-key violation on insert means another
// booking for the same vehicle is in flight. ExpiresAt backs a TTL index
// that reaps locks left behind by crashed processes.
type RentalLock struct {
	ID        string    `bson:"_id"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// NewRentalLock builds the lock document for a vehicle with the given
// lifetime.
func NewRentalLock(vehicleID string, ttl time.Duration) RentalLock {
	now := time.Now().UTC()
	return RentalLock{
		ID:        RentalLockID(vehicleID),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// RentalLockID returns the lock document id for a vehicle.
func RentalLockID(vehicleID string) string {
	return fmt.Sprintf("%s%s", rentalLockPrefix, vehicleID)
}
