package domain

import "time"

// PaymentMode is how a driver settles the association contribution.
type PaymentMode string

const (
	PaymentModePayEveryTrip PaymentMode = "pay_every_trip"
	PaymentModePayLater     PaymentMode = "pay_later"
)

// DefaultPaymentMode applies when a driver has never chosen one.
const DefaultPaymentMode = PaymentModePayEveryTrip

// Valid reports whether m is a known payment mode.
func (m PaymentMode) Valid() bool {
	return m == PaymentModePayEveryTrip || m == PaymentModePayLater
}

// Driver represents a registered tricycle driver.
//
// A driver has no stored online flag. Online status is derived from queue
// membership; see QueueEntry.
type Driver struct {
	ID             string
	Name           string
	Phone          string
	RFIDUID        string
	TodaNumber     string
	TricycleNumber string
	PaymentMode    PaymentMode
	Balance        float64
	CanGoOnline    bool
	CreatedAt      time.Time
}

// RFIDHistory records an RFID tag replacement.
type RFIDHistory struct {
	ID        string
	DriverID  string
	OldRFID   string
	NewRFID   string
	ChangedAt time.Time
}
