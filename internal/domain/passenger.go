package domain

import "time"

// DiscountType is a fare discount category.
type DiscountType string

const (
	DiscountStudent       DiscountType = "STUDENT"
	DiscountPWD           DiscountType = "PWD"
	DiscountSeniorCitizen DiscountType = "SENIOR_CITIZEN"
)

// Passenger represents a customer in the system.
type Passenger struct {
	ID               string
	Name             string
	Phone            string
	DiscountType     DiscountType // empty means none
	DiscountVerified bool
	CreatedAt        time.Time
}
