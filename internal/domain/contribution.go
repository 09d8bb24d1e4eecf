package domain

import "time"

// Contribution is the per-trip amount a driver owes the association.
type Contribution struct {
	ID          string
	DriverID    string
	BookingID   string
	Amount      float64
	PaymentMode PaymentMode
	Paid        bool
	CreatedAt   time.Time
}
