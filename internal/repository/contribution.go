package repository

import (
	"context"

	"toda/internal/domain"
)

// ContributionRepository defines the persistence operations for contributions.
type ContributionRepository interface {
	// Create persists a new contribution.
	Create(ctx context.Context, c *domain.Contribution) error

	// GetByBookingID retrieves the contribution recorded for a booking.
	// Returns nil if none exists.
	GetByBookingID(ctx context.Context, bookingID string) (*domain.Contribution, error)

	// ListByDriverID retrieves a driver's contributions, newest first.
	ListByDriverID(ctx context.Context, driverID string) ([]*domain.Contribution, error)
}
