package postgres

import (
	"context"
	"database/sql"
	"errors"

	"toda/internal/domain"
	"toda/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// NewDriverRepositoryWithTx creates a driver repository using a transaction.
func NewDriverRepositoryWithTx(tx *sql.Tx) *DriverRepository {
	return &DriverRepository{q: tx}
}

const driverColumns = `id, name, phone, COALESCE(rfid_uid, ''), toda_number, tricycle_number, COALESCE(payment_mode, ''), balance, can_go_online, created_at`

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	query := `
		INSERT INTO drivers (id, name, phone, rfid_uid, toda_number, tricycle_number, payment_mode, balance, can_go_online, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.q.ExecContext(ctx, query,
		driver.ID,
		driver.Name,
		driver.Phone,
		nullString(driver.RFIDUID),
		driver.TodaNumber,
		driver.TricycleNumber,
		nullString(string(driver.PaymentMode)),
		driver.Balance,
		driver.CanGoOnline,
		driver.CreatedAt,
	)
	return translateError(err)
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	return r.getOne(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id)
}

// GetByRFID retrieves a driver by RFID tag.
func (r *DriverRepository) GetByRFID(ctx context.Context, rfid string) (*domain.Driver, error) {
	return r.getOne(ctx, `SELECT `+driverColumns+` FROM drivers WHERE rfid_uid = $1`, rfid)
}

// GetByPhone retrieves a driver by phone number.
func (r *DriverRepository) GetByPhone(ctx context.Context, phone string) (*domain.Driver, error) {
	return r.getOne(ctx, `SELECT `+driverColumns+` FROM drivers WHERE phone = $1`, phone)
}

func (r *DriverRepository) getOne(ctx context.Context, query string, arg any) (*domain.Driver, error) {
	driver, err := scanDriver(r.q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return driver, nil
}

// GetAll retrieves all drivers.
func (r *DriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+driverColumns+` FROM drivers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		driver, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, driver)
	}
	return drivers, rows.Err()
}

// UpdateRFID replaces the driver's RFID tag.
func (r *DriverRepository) UpdateRFID(ctx context.Context, id, rfid string) error {
	result, err := r.q.ExecContext(ctx, `UPDATE drivers SET rfid_uid = $1 WHERE id = $2`, nullString(rfid), id)
	if err != nil {
		return translateError(err)
	}
	return affectedOne(result)
}

// UpdatePaymentMode sets the driver's payment mode.
func (r *DriverRepository) UpdatePaymentMode(ctx context.Context, id string, mode domain.PaymentMode) error {
	result, err := r.q.ExecContext(ctx, `UPDATE drivers SET payment_mode = $1 WHERE id = $2`, string(mode), id)
	if err != nil {
		return err
	}
	return affectedOne(result)
}

// AdjustBalance adds delta to the driver's balance.
func (r *DriverRepository) AdjustBalance(ctx context.Context, id string, delta float64) error {
	result, err := r.q.ExecContext(ctx, `UPDATE drivers SET balance = balance + $1 WHERE id = $2`, delta, id)
	if err != nil {
		return err
	}
	return affectedOne(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDriver(row rowScanner) (*domain.Driver, error) {
	var driver domain.Driver
	var paymentMode string
	if err := row.Scan(
		&driver.ID,
		&driver.Name,
		&driver.Phone,
		&driver.RFIDUID,
		&driver.TodaNumber,
		&driver.TricycleNumber,
		&paymentMode,
		&driver.Balance,
		&driver.CanGoOnline,
		&driver.CreatedAt,
	); err != nil {
		return nil, err
	}
	driver.PaymentMode = domain.PaymentMode(paymentMode)
	return &driver, nil
}

// Ensure DriverRepository implements repository.DriverRepository.
var _ repository.DriverRepository = (*DriverRepository)(nil)
