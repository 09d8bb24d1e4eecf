package postgres

import (
	"context"
	"database/sql"
	"errors"

	"toda/internal/domain"
	"toda/internal/repository"
)

// PassengerRepository implements repository.PassengerRepository using PostgreSQL.
type PassengerRepository struct {
	db *sql.DB
}

// NewPassengerRepository creates a new PassengerRepository.
func NewPassengerRepository(db *sql.DB) *PassengerRepository {
	return &PassengerRepository{db: db}
}

const passengerColumns = `id, name, phone, COALESCE(discount_type, ''), discount_verified, created_at`

// Create adds a new passenger.
func (r *PassengerRepository) Create(ctx context.Context, p *domain.Passenger) error {
	query := `INSERT INTO passengers (id, name, phone, discount_type, discount_verified, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Phone, nullString(string(p.DiscountType)), p.DiscountVerified, p.CreatedAt)
	return translateError(err)
}

// GetByID retrieves a passenger by ID.
func (r *PassengerRepository) GetByID(ctx context.Context, id string) (*domain.Passenger, error) {
	return r.getOne(ctx, `SELECT `+passengerColumns+` FROM passengers WHERE id = $1`, id)
}

// GetByPhone retrieves a passenger by phone number.
func (r *PassengerRepository) GetByPhone(ctx context.Context, phone string) (*domain.Passenger, error) {
	return r.getOne(ctx, `SELECT `+passengerColumns+` FROM passengers WHERE phone = $1`, phone)
}

func (r *PassengerRepository) getOne(ctx context.Context, query, arg string) (*domain.Passenger, error) {
	p, err := scanPassenger(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetAll retrieves all passengers.
func (r *PassengerRepository) GetAll(ctx context.Context) ([]*domain.Passenger, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+passengerColumns+` FROM passengers ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var passengers []*domain.Passenger
	for rows.Next() {
		p, err := scanPassenger(rows)
		if err != nil {
			return nil, err
		}
		passengers = append(passengers, p)
	}
	return passengers, rows.Err()
}

// UpdateDiscount sets the passenger's discount category and verification flag.
func (r *PassengerRepository) UpdateDiscount(ctx context.Context, id string, discount domain.DiscountType, verified bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE passengers SET discount_type = $1, discount_verified = $2 WHERE id = $3`,
		nullString(string(discount)), verified, id)
	if err != nil {
		return err
	}
	return affectedOne(result)
}

func scanPassenger(row rowScanner) (*domain.Passenger, error) {
	var p domain.Passenger
	var discount string
	if err := row.Scan(&p.ID, &p.Name, &p.Phone, &discount, &p.DiscountVerified, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.DiscountType = domain.DiscountType(discount)
	return &p, nil
}

var _ repository.PassengerRepository = (*PassengerRepository)(nil)
