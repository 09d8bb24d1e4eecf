package postgres

import (
	"context"
	"database/sql"

	"toda/internal/domain"
	"toda/internal/repository"
)

// RFIDHistoryRepository is a PostgreSQL implementation of repository.RFIDHistoryRepository.
type RFIDHistoryRepository struct {
	q Querier
}

// NewRFIDHistoryRepository creates a new RFID history repository.
func NewRFIDHistoryRepository(db *sql.DB) *RFIDHistoryRepository {
	return &RFIDHistoryRepository{q: db}
}

// NewRFIDHistoryRepositoryWithTx creates an RFID history repository using a transaction.
func NewRFIDHistoryRepositoryWithTx(tx *sql.Tx) *RFIDHistoryRepository {
	return &RFIDHistoryRepository{q: tx}
}

// Create records an RFID change.
func (r *RFIDHistoryRepository) Create(ctx context.Context, h *domain.RFIDHistory) error {
	query := `INSERT INTO rfid_history (id, driver_id, old_rfid, new_rfid, changed_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.q.ExecContext(ctx, query, h.ID, h.DriverID, h.OldRFID, h.NewRFID, h.ChangedAt)
	return err
}

// ListByDriverID returns a driver's RFID changes, newest first.
func (r *RFIDHistoryRepository) ListByDriverID(ctx context.Context, driverID string) ([]*domain.RFIDHistory, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, driver_id, old_rfid, new_rfid, changed_at FROM rfid_history WHERE driver_id = $1 ORDER BY changed_at DESC`,
		driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []*domain.RFIDHistory
	for rows.Next() {
		var h domain.RFIDHistory
		if err := rows.Scan(&h.ID, &h.DriverID, &h.OldRFID, &h.NewRFID, &h.ChangedAt); err != nil {
			return nil, err
		}
		history = append(history, &h)
	}
	return history, rows.Err()
}

var _ repository.RFIDHistoryRepository = (*RFIDHistoryRepository)(nil)
