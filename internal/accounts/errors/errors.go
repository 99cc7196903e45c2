package errors

import "errors"

var (
	ErrNotFound = errors.New("account not found")

	ErrInvalidID = errors.New("invalid account ID format")

	ErrDuplicate = errors.New("account with this email or phone already exists")
)
