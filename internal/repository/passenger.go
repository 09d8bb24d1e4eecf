package repository

import (
	"context"

	"toda/internal/domain"
)

// PassengerRepository defines the persistence operations for passengers.
type PassengerRepository interface {
	Create(ctx context.Context, passenger *domain.Passenger) error
	GetByID(ctx context.Context, id string) (*domain.Passenger, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Passenger, error)
	GetAll(ctx context.Context) ([]*domain.Passenger, error)
	UpdateDiscount(ctx context.Context, id string, discount domain.DiscountType, verified bool) error
}
