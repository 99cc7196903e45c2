package errors

import "errors"

var (
	ErrNotFound  = errors.New("rental not found")
	ErrInvalidID = errors.New("invalid rental ID format")

	// ErrAlreadyCancelled signals an idempotent no-op: the rental was
	// cancelled by an earlier request and its record is unchanged.
	ErrAlreadyCancelled = errors.New("rental already cancelled")
)
