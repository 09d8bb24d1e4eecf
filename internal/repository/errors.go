package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrStateConflict is returned when a conditional update finds the row
	// in a different state than expected.
	ErrStateConflict = errors.New("entity state changed concurrently")

	// ErrDuplicate is returned when a unique column already holds the value.
	ErrDuplicate = errors.New("entity already exists")
)
