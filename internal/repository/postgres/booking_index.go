package postgres

import (
	"context"
	"database/sql"
	"errors"

	"toda/internal/domain"
	"toda/internal/repository"
)

// BookingIndexRepository is a PostgreSQL implementation of repository.BookingIndexRepository.
type BookingIndexRepository struct {
	q Querier
}

// NewBookingIndexRepository creates a new PostgreSQL booking index repository.
func NewBookingIndexRepository(db *sql.DB) *BookingIndexRepository {
	return &BookingIndexRepository{q: db}
}

// NewBookingIndexRepositoryWithTx creates a booking index repository using a transaction.
func NewBookingIndexRepositoryWithTx(tx *sql.Tx) *BookingIndexRepository {
	return &BookingIndexRepository{q: tx}
}

// Upsert writes the index record for a booking.
func (r *BookingIndexRepository) Upsert(ctx context.Context, idx *domain.BookingIndex) error {
	query := `
		INSERT INTO booking_index (booking_id, driver_id, customer_id, status, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (booking_id) DO UPDATE
		SET driver_id = EXCLUDED.driver_id, customer_id = EXCLUDED.customer_id,
		    status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
	`
	_, err := r.q.ExecContext(ctx, query, idx.BookingID, idx.DriverID, idx.CustomerID, idx.Status, idx.UpdatedAt)
	return err
}

// GetActiveByDriverID retrieves the driver's non-terminal booking.
// Returns nil if none exists.
func (r *BookingIndexRepository) GetActiveByDriverID(ctx context.Context, driverID string) (*domain.BookingIndex, error) {
	query := `
		SELECT booking_id, driver_id, customer_id, status, updated_at
		FROM booking_index
		WHERE driver_id = $1 AND status NOT IN ($2, $3, $4)
		ORDER BY updated_at DESC
		LIMIT 1
	`

	idx, err := scanBookingIndex(r.q.QueryRowContext(ctx, query, driverID,
		domain.BookingStatusCompleted, domain.BookingStatusNoShow, domain.BookingStatusCancelled))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return idx, nil
}

func scanBookingIndex(row rowScanner) (*domain.BookingIndex, error) {
	var idx domain.BookingIndex
	if err := row.Scan(&idx.BookingID, &idx.DriverID, &idx.CustomerID, &idx.Status, &idx.UpdatedAt); err != nil {
		return nil, err
	}
	return &idx, nil
}

// Ensure BookingIndexRepository implements repository.BookingIndexRepository.
var _ repository.BookingIndexRepository = (*BookingIndexRepository)(nil)
