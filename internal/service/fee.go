package service

import "toda/internal/domain"

const (
	// StandardConvenienceFee is charged when no verified discount applies.
	StandardConvenienceFee = 2.00
	// StudentConvenienceFee is charged to verified students.
	StudentConvenienceFee = 1.00
)

// ConvenienceFee returns the booking convenience fee for a passenger.
// Discounts count only once verified.
func ConvenienceFee(p *domain.Passenger) float64 {
	if p == nil || p.DiscountType == "" || !p.DiscountVerified {
		return StandardConvenienceFee
	}

	switch p.DiscountType {
	case domain.DiscountStudent:
		return StudentConvenienceFee
	case domain.DiscountPWD, domain.DiscountSeniorCitizen:
		return 0
	default:
		return StandardConvenienceFee
	}
}

// ValidateDiscountType validates a discount type string. Empty means none.
func ValidateDiscountType(s string) (domain.DiscountType, error) {
	switch d := domain.DiscountType(s); d {
	case "", domain.DiscountStudent, domain.DiscountPWD, domain.DiscountSeniorCitizen:
		return d, nil
	default:
		return "", ErrInvalidDiscountType
	}
}
