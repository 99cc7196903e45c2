package model

import (
	"time"
)

// Account is a registered renter. Phone numbers are stored in E.164 form
// and both email and phone carry unique indexes. PasswordHash is a bcrypt
// hash and never leaves the service in API responses.
type Account struct {
	ID           string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name         string     `json:"name" bson:"name" validate:"required,min=1,max=100"`
	Email        string     `json:"email" bson:"email" validate:"required,email,max=254"`
	Phone        string     `json:"phone" bson:"phone" validate:"required,e164"`
	PasswordHash string     `json:"-" bson:"password_hash"`
	CreatedAt    time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" bson:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" bson:"last_login_at,omitempty"`
	DeletedAt    *time.Time `json:"-" bson:"deleted_at,omitempty"`
}

// RegisterRequest is the account registration payload.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the credential-check payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
