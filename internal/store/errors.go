package store

import "errors"

var (
	// ErrNotFound is returned when a guild-scoped row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned for malformed or out-of-range fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicate is returned when a unique name is already taken.
	ErrDuplicate = errors.New("already exists")
	// ErrProtectedCategory is returned when deactivating the fallback category.
	ErrProtectedCategory = errors.New("the fallback category cannot be deactivated")
	// ErrAlreadyInactive is returned when deactivating an inactive row.
	ErrAlreadyInactive = errors.New("already inactive")
)
