package model

import (
	"time"
)

// VehicleStatus is the fleet-management state of a vehicle. It is advisory
// metadata for operators and does not gate booking: a vehicle in
// maintenance can still be reserved for future dates.
type VehicleStatus string

const (
	VehicleStatusAvailable   VehicleStatus = "available"
	VehicleStatusRented      VehicleStatus = "rented"
	VehicleStatusMaintenance VehicleStatus = "maintenance"

	VehicleMinYear = 1900
	VehicleMaxYear = 2100
)

// Vehicle is a rentable fleet unit. PricePerDayCents is the current daily
// rate in fixed-point cents; rentals snapshot it at booking time.
type Vehicle struct {
	ID               string        `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Make             string        `json:"make" bson:"make" validate:"required,min=1,max=100"`
	Model            string        `json:"model" bson:"model" validate:"required,min=1,max=100"`
	Year             int           `json:"year" bson:"year" validate:"required,min=1900,max=2100"`
	Status           VehicleStatus `json:"status" bson:"status" validate:"omitempty,oneof=available rented maintenance"`
	PricePerDayCents int64         `json:"price_per_day_cents" bson:"price_per_day_cents" validate:"required,gt=0"`
	CreatedAt        time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" bson:"updated_at"`
	DeletedAt        *time.Time    `json:"-" bson:"deleted_at,omitempty"`
}

// VehicleFilter carries the catalog search criteria. Equality filters are
// exact matches, price bounds are inclusive and expressed in cents, and the
// year bounds are inclusive. Zero values mean "not filtered".
type VehicleFilter struct {
	Query         string `json:"q" validate:"omitempty,max=100"`
	Status        string `json:"status" validate:"omitempty,oneof=available rented maintenance"`
	Make          string `json:"make" validate:"omitempty,max=100"`
	Model         string `json:"model" validate:"omitempty,max=100"`
	YearFrom      int    `json:"year_from" validate:"omitempty,min=1900,max=2100"`
	YearTo        int    `json:"year_to" validate:"omitempty,min=1900,max=2100"`
	MinPriceCents int64  `json:"min_price_cents" validate:"omitempty,gte=0"`
	MaxPriceCents int64  `json:"max_price_cents" validate:"omitempty,gte=0"`
	SortBy        string `json:"sort_by" validate:"omitempty,oneof=price year created_at"`
	SortDir       string `json:"sort_dir" validate:"omitempty,oneof=asc desc"`
	Limit         int64  `json:"limit" validate:"omitempty,min=1,max=100"`
	Offset        int64  `json:"offset"`
}

// VehicleUpdate carries a partial vehicle update. Nil fields are left
// untouched.
type VehicleUpdate struct {
	Make             *string        `json:"make,omitempty" validate:"omitempty,min=1,max=100"`
	Model            *string        `json:"model,omitempty" validate:"omitempty,min=1,max=100"`
	Year             *int           `json:"year,omitempty" validate:"omitempty,min=1900,max=2100"`
	Status           *VehicleStatus `json:"status,omitempty" validate:"omitempty,oneof=available rented maintenance"`
	PricePerDayCents *int64         `json:"price_per_day_cents,omitempty" validate:"omitempty,gt=0"`
}

// IsEmpty reports whether the update would change nothing.
func (u *VehicleUpdate) IsEmpty() bool {
	return u.Make == nil && u.Model == nil && u.Year == nil &&
		u.Status == nil && u.PricePerDayCents == nil
}
