package repository

import (
	"context"

	"toda/internal/domain"
)

// BookingRepository defines the persistence operations for bookings.
type BookingRepository interface {
	// Create persists a new booking.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// GetAll retrieves the most recent bookings.
	GetAll(ctx context.Context) ([]*domain.Booking, error)

	// ListByStatus retrieves bookings in the given status, oldest first.
	ListByStatus(ctx context.Context, status domain.BookingStatus, limit int) ([]*domain.Booking, error)

	// UpdateIfStatus updates the booking only while its stored status equals
	// expected. Returns ErrStateConflict otherwise.
	UpdateIfStatus(ctx context.Context, booking *domain.Booking, expected domain.BookingStatus) error
}

// BookingIndexRepository maintains the denormalized booking index.
type BookingIndexRepository interface {
	// Upsert writes the index record for a booking.
	Upsert(ctx context.Context, idx *domain.BookingIndex) error

	// GetActiveByDriverID retrieves the driver's non-terminal booking.
	// Returns nil if none exists.
	GetActiveByDriverID(ctx context.Context, driverID string) (*domain.BookingIndex, error)
}
