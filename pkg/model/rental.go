package model

import (
	"time"
)

// RentalStatus is the explicit lifecycle state of a rental. Cancelled
// rentals stay in the collection for audit history but never participate
// in overlap checks or current-bookings listings.
type RentalStatus string

const (
	RentalStatusActive    RentalStatus = "active"
	RentalStatusCancelled RentalStatus = "cancelled"
)

// Rental is a confirmed, date-bounded claim on a vehicle by an account.
// PriceAtRentalCents is snapshotted from the vehicle's rate when the rental
// is created (or rescheduled) and is never recomputed afterwards, even if
// the vehicle's current rate changes. All monetary values are fixed-point
// cents.
type Rental struct {
	ID                 string       `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	AccountID          string       `json:"account_id" bson:"account_id" validate:"required,mongodb"`
	VehicleID          string       `json:"vehicle_id" bson:"vehicle_id" validate:"required,mongodb"`
	StartDate          time.Time    `json:"start_date" bson:"start_date" validate:"required"`
	EndDate            time.Time    `json:"end_date" bson:"end_date" validate:"required"`
	PriceAtRentalCents int64        `json:"price_at_rental_cents" bson:"price_at_rental_cents"`
	TotalCostCents     int64        `json:"total_cost_cents" bson:"total_cost_cents"`
	Status             RentalStatus `json:"status" bson:"status" validate:"omitempty,oneof=active cancelled"`
	CreatedAt          time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at" bson:"updated_at"`
	CancelledAt        *time.Time   `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
}

// Period returns the rental's inclusive booking interval.
func (r *Rental) Period() DateRange {
	return DateRange{Start: r.StartDate, End: r.EndDate}
}

// TotalDays is the inclusive billable day count.
func (r *Rental) TotalDays() int64 {
	return r.Period().Days()
}

// RentalDetail is the read model returned to callers: the persisted rental
// joined with the vehicle's make and model and the derived day count.
type RentalDetail struct {
	Rental
	VehicleMake  string `json:"vehicle_make"`
	VehicleModel string `json:"vehicle_model"`
	TotalDays    int64  `json:"total_days"`
}

// CreateRentalRequest carries the booking input. Dates travel as
// YYYY-MM-DD strings and are parsed to UTC midnight after validation.
type CreateRentalRequest struct {
	AccountID string `json:"account_id" validate:"required,mongodb"`
	VehicleID string `json:"vehicle_id" validate:"required,mongodb"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// RescheduleRentalRequest replaces a rental's booking interval. The cost
// is recomputed from the vehicle's current rate, not the old snapshot.
type RescheduleRentalRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// RentalFilter narrows rental listings.
type RentalFilter struct {
	AccountID string `json:"account_id" validate:"omitempty,mongodb"`
	VehicleID string `json:"vehicle_id" validate:"omitempty,mongodb"`
	Status    string `json:"status" validate:"omitempty,oneof=active cancelled"`
	Limit     int64  `json:"limit" validate:"omitempty,min=1,max=100"`
	Offset    int64  `json:"offset"`
}
