package repository

import (
	"context"

	"toda/internal/domain"
)

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// Create adds a new driver.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetByRFID retrieves a driver through the RFID index.
	GetByRFID(ctx context.Context, rfid string) (*domain.Driver, error)

	// GetByPhone retrieves a driver by phone number.
	GetByPhone(ctx context.Context, phone string) (*domain.Driver, error)

	// GetAll retrieves all drivers.
	GetAll(ctx context.Context) ([]*domain.Driver, error)

	// UpdateRFID replaces the driver's RFID tag.
	UpdateRFID(ctx context.Context, id, rfid string) error

	// UpdatePaymentMode sets how the driver settles contributions.
	UpdatePaymentMode(ctx context.Context, id string, mode domain.PaymentMode) error

	// AdjustBalance adds delta (possibly negative) to the driver's balance.
	AdjustBalance(ctx context.Context, id string, delta float64) error
}

// RFIDHistoryRepository records RFID replacements.
type RFIDHistoryRepository interface {
	Create(ctx context.Context, entry *domain.RFIDHistory) error
	ListByDriverID(ctx context.Context, driverID string) ([]*domain.RFIDHistory, error)
}
