package repository

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no entity.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write collides with an existing entity.
	ErrConflict = errors.New("conflict")
)
