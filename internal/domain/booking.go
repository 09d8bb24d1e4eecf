package domain

import "time"

// BookingStatus represents the current status of a booking.
type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "PENDING"
	BookingStatusAccepted   BookingStatus = "ACCEPTED"
	BookingStatusAtPickup   BookingStatus = "AT_PICKUP"
	BookingStatusInProgress BookingStatus = "IN_PROGRESS"
	BookingStatusCompleted  BookingStatus = "COMPLETED"
	BookingStatusNoShow     BookingStatus = "NO_SHOW"
	BookingStatusCancelled  BookingStatus = "CANCELLED"
)

// Terminal reports whether no further transition is possible.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusNoShow, BookingStatusCancelled:
		return true
	}
	return false
}

// Booking represents a customer ride request.
type Booking struct {
	ID                  string
	CustomerID          string
	CustomerName        string
	PickupLocation      string
	Destination         string
	Fare                float64
	ConvenienceFee      float64
	Status              BookingStatus
	AssignedDriverID    string
	DriverRFID          string
	DriverName          string
	TodaNumber          string
	TricycleNumber      string
	PaymentMode         PaymentMode
	ArrivedAtPickup     bool
	ArrivedAtPickupTime time.Time
	Timestamp           time.Time
	CompletedAt         time.Time
	CancelReason        string
}

// BookingIndex is the denormalized driver/customer lookup record for a booking.
type BookingIndex struct {
	BookingID  string
	DriverID   string
	CustomerID string
	Status     BookingStatus
	UpdatedAt  time.Time
}
