package repository

import "context"

// Stores groups the repositories that share one transaction.
type Stores struct {
	Bookings      BookingRepository
	BookingIndex  BookingIndexRepository
	Drivers       DriverRepository
	Contributions ContributionRepository
	RFIDHistory   RFIDHistoryRepository
}

// Transactor runs fn with transaction-scoped repositories. The transaction
// commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(s Stores) error) error
}
