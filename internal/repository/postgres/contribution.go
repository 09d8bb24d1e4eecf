package postgres

import (
	"context"
	"database/sql"
	"errors"

	"toda/internal/domain"
	"toda/internal/repository"
)

// ContributionRepository is a PostgreSQL implementation of repository.ContributionRepository.
type ContributionRepository struct {
	q Querier
}

// NewContributionRepository creates a new PostgreSQL contribution repository.
func NewContributionRepository(db *sql.DB) *ContributionRepository {
	return &ContributionRepository{q: db}
}

// NewContributionRepositoryWithTx creates a contribution repository using a transaction.
func NewContributionRepositoryWithTx(tx *sql.Tx) *ContributionRepository {
	return &ContributionRepository{q: tx}
}

// Create persists a new contribution.
func (r *ContributionRepository) Create(ctx context.Context, c *domain.Contribution) error {
	query := `
		INSERT INTO contributions (id, driver_id, booking_id, amount, payment_mode, paid, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.ExecContext(ctx, query,
		c.ID,
		c.DriverID,
		c.BookingID,
		c.Amount,
		c.PaymentMode,
		c.Paid,
		c.CreatedAt,
	)

	return translateError(err)
}

// GetByBookingID retrieves the contribution recorded for a booking.
// Returns nil if none exists.
func (r *ContributionRepository) GetByBookingID(ctx context.Context, bookingID string) (*domain.Contribution, error) {
	query := `
		SELECT id, driver_id, booking_id, amount, payment_mode, paid, created_at
		FROM contributions WHERE booking_id = $1
	`

	c, err := scanContribution(r.q.QueryRowContext(ctx, query, bookingID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// ListByDriverID retrieves a driver's contributions, newest first.
func (r *ContributionRepository) ListByDriverID(ctx context.Context, driverID string) ([]*domain.Contribution, error) {
	query := `
		SELECT id, driver_id, booking_id, amount, payment_mode, paid, created_at
		FROM contributions WHERE driver_id = $1 ORDER BY created_at DESC
	`

	rows, err := r.q.QueryContext(ctx, query, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanContribution(row rowScanner) (*domain.Contribution, error) {
	var c domain.Contribution
	if err := row.Scan(&c.ID, &c.DriverID, &c.BookingID, &c.Amount, &c.PaymentMode, &c.Paid, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// Ensure ContributionRepository implements repository.ContributionRepository.
var _ repository.ContributionRepository = (*ContributionRepository)(nil)
