package domain

import "errors"

var (
	// ErrNotFound is returned when a product or rule does not exist for the owner.
	ErrNotFound = errors.New("not found")

	// ErrDataUnavailable is returned when sales history could not be loaded in time.
	ErrDataUnavailable = errors.New("sales data unavailable")

	// ErrInvalidRule is returned when a reorder rule is missing required fields.
	ErrInvalidRule = errors.New("invalid reorder rule")
)
