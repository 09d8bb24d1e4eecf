package postgres

import (
	"context"
	"database/sql"
	"errors"

	"toda/internal/domain"
	"toda/internal/repository"
)

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	q Querier
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{q: db}
}

// NewBookingRepositoryWithTx creates a booking repository using a transaction.
func NewBookingRepositoryWithTx(tx *sql.Tx) *BookingRepository {
	return &BookingRepository{q: tx}
}

const bookingColumns = `
	id, customer_id, customer_name, pickup_location, destination, fare, convenience_fee, status,
	assigned_driver_id, driver_rfid, driver_name, toda_number, tricycle_number, payment_mode,
	arrived_at_pickup, arrived_at_pickup_time, created_at, completed_at, cancel_reason
`

// Create persists a new booking.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	args := bookingArgs(b)
	_, err := r.q.ExecContext(ctx, query, append([]any{b.ID}, args...)...)
	return translateError(err)
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return booking, nil
}

// GetAll retrieves the 100 most recent bookings.
func (r *BookingRepository) GetAll(ctx context.Context) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY created_at DESC LIMIT 100`
	return r.list(ctx, query)
}

// ListByStatus retrieves bookings in the given status, oldest first.
func (r *BookingRepository) ListByStatus(ctx context.Context, status domain.BookingStatus, limit int) ([]*domain.Booking, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	return r.list(ctx, query, status, limit)
}

func (r *BookingRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Booking, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

const bookingSet = `
	customer_id = $2, customer_name = $3, pickup_location = $4, destination = $5, fare = $6,
	convenience_fee = $7, status = $8, assigned_driver_id = $9, driver_rfid = $10, driver_name = $11,
	toda_number = $12, tricycle_number = $13, payment_mode = $14, arrived_at_pickup = $15,
	arrived_at_pickup_time = $16, created_at = $17, completed_at = $18, cancel_reason = $19
`

// UpdateIfStatus updates the booking only while its status is still expected.
func (r *BookingRepository) UpdateIfStatus(ctx context.Context, b *domain.Booking, expected domain.BookingStatus) error {
	query := `UPDATE bookings SET ` + bookingSet + ` WHERE id = $1 AND status = $20`

	args := append([]any{b.ID}, bookingArgs(b)...)
	args = append(args, expected)

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrStateConflict
	}

	return nil
}

// bookingArgs returns every column after id, in bookingColumns order.
func bookingArgs(b *domain.Booking) []any {
	var arrivedAt sql.NullTime
	if !b.ArrivedAtPickupTime.IsZero() {
		arrivedAt = sql.NullTime{Time: b.ArrivedAtPickupTime, Valid: true}
	}

	var completedAt sql.NullTime
	if !b.CompletedAt.IsZero() {
		completedAt = sql.NullTime{Time: b.CompletedAt, Valid: true}
	}

	return []any{
		b.CustomerID,
		b.CustomerName,
		b.PickupLocation,
		b.Destination,
		b.Fare,
		b.ConvenienceFee,
		b.Status,
		nullString(b.AssignedDriverID),
		nullString(b.DriverRFID),
		nullString(b.DriverName),
		nullString(b.TodaNumber),
		nullString(b.TricycleNumber),
		nullString(string(b.PaymentMode)),
		b.ArrivedAtPickup,
		arrivedAt,
		b.Timestamp,
		completedAt,
		nullString(b.CancelReason),
	}
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var b domain.Booking
	var assignedDriverID, driverRFID, driverName, todaNumber, tricycleNumber, paymentMode, cancelReason sql.NullString
	var arrivedAt, completedAt sql.NullTime

	if err := row.Scan(
		&b.ID,
		&b.CustomerID,
		&b.CustomerName,
		&b.PickupLocation,
		&b.Destination,
		&b.Fare,
		&b.ConvenienceFee,
		&b.Status,
		&assignedDriverID,
		&driverRFID,
		&driverName,
		&todaNumber,
		&tricycleNumber,
		&paymentMode,
		&b.ArrivedAtPickup,
		&arrivedAt,
		&b.Timestamp,
		&completedAt,
		&cancelReason,
	); err != nil {
		return nil, err
	}

	b.AssignedDriverID = assignedDriverID.String
	b.DriverRFID = driverRFID.String
	b.DriverName = driverName.String
	b.TodaNumber = todaNumber.String
	b.TricycleNumber = tricycleNumber.String
	b.PaymentMode = domain.PaymentMode(paymentMode.String)
	b.CancelReason = cancelReason.String
	if arrivedAt.Valid {
		b.ArrivedAtPickupTime = arrivedAt.Time
	}
	if completedAt.Valid {
		b.CompletedAt = completedAt.Time
	}

	return &b, nil
}

// Ensure BookingRepository implements repository.BookingRepository.
var _ repository.BookingRepository = (*BookingRepository)(nil)
