package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"toda/internal/domain"
	"toda/internal/redis"
	"toda/internal/repository"
)

// BookingService handles booking requests from customers.
type BookingService struct {
	tx                  repository.Transactor
	bookingRepo         repository.BookingRepository
	passengerRepo       repository.PassengerRepository
	matchingService     MatchingServiceInterface
	noShows             redis.NoShowQueueInterface
	notificationService *NotificationService
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	tx repository.Transactor,
	bookingRepo repository.BookingRepository,
	passengerRepo repository.PassengerRepository,
	matchingService MatchingServiceInterface,
	noShows redis.NoShowQueueInterface,
	notificationService *NotificationService,
) *BookingService {
	return &BookingService{
		tx:                  tx,
		bookingRepo:         bookingRepo,
		passengerRepo:       passengerRepo,
		matchingService:     matchingService,
		noShows:             noShows,
		notificationService: notificationService,
	}
}

// CreateBookingRequest contains the parameters for creating a booking.
type CreateBookingRequest struct {
	CustomerID     string
	CustomerName   string
	PickupLocation string
	Destination    string
	Fare           float64
}

// CreateBookingResponse contains the result of creating a booking.
type CreateBookingResponse struct {
	Booking        *domain.Booking
	DriverAssigned bool
	DriverID       string
}

// CreateBooking stores a PENDING booking and tries to match it right away.
// A booking nobody could take stays PENDING and is retried whenever a
// driver joins the queue.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*CreateBookingResponse, error) {
	if err := validateCreateBooking(req); err != nil {
		return nil, err
	}

	fee := StandardConvenienceFee
	name := req.CustomerName
	passenger, err := s.passengerRepo.GetByID(ctx, req.CustomerID)
	switch {
	case err == nil:
		fee = ConvenienceFee(passenger)
		if name == "" {
			name = passenger.Name
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	booking := &domain.Booking{
		ID:             uuid.New().String(),
		CustomerID:     req.CustomerID,
		CustomerName:   name,
		PickupLocation: strings.TrimSpace(req.PickupLocation),
		Destination:    strings.TrimSpace(req.Destination),
		Fare:           req.Fare,
		ConvenienceFee: fee,
		Status:         domain.BookingStatusPending,
		Timestamp:      time.Now(),
	}

	err = s.tx.WithinTx(ctx, func(st repository.Stores) error {
		if err := st.Bookings.Create(ctx, booking); err != nil {
			return err
		}
		return st.BookingIndex.Upsert(ctx, indexFor(booking))
	})
	if err != nil {
		return nil, err
	}

	if s.notificationService != nil {
		_ = s.notificationService.NotifyBookingCreated(ctx, booking)
	}

	matchResult, err := s.matchingService.Match(ctx, booking.ID)
	if err != nil {
		// The booking exists either way; only unexpected failures are logged.
		if !errors.Is(err, ErrNoDriverAvailable) && !errors.Is(err, ErrMatchInProgress) {
			slog.WarnContext(ctx, "initial match failed", "booking_id", booking.ID, "error", err)
		}
		return &CreateBookingResponse{Booking: booking}, nil
	}

	return &CreateBookingResponse{
		Booking:        matchResult.Booking,
		DriverAssigned: true,
		DriverID:       matchResult.DriverID,
	}, nil
}

// GetBooking retrieves a booking by ID.
func (s *BookingService) GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}
	return s.bookingRepo.GetByID(ctx, bookingID)
}

// ListBookings returns bookings in status, or the most recent bookings when
// status is empty.
func (s *BookingService) ListBookings(ctx context.Context, status domain.BookingStatus, limit int) ([]*domain.Booking, error) {
	if status == "" {
		return s.bookingRepo.GetAll(ctx)
	}
	return s.bookingRepo.ListByStatus(ctx, status, limit)
}

// CancelBooking cancels a booking that has not started its trip.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, reason string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	switch booking.Status {
	case domain.BookingStatusPending, domain.BookingStatusAccepted, domain.BookingStatusAtPickup:
	case domain.BookingStatusInProgress:
		return nil, ErrTripInProgress
	default:
		return nil, ErrBookingFinished
	}

	expected := booking.Status
	booking.Status = domain.BookingStatusCancelled
	booking.CancelReason = reason

	err = s.tx.WithinTx(ctx, func(st repository.Stores) error {
		if err := st.Bookings.UpdateIfStatus(ctx, booking, expected); err != nil {
			return err
		}
		return st.BookingIndex.Upsert(ctx, indexFor(booking))
	})
	if err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil, ErrBookingFinished
		}
		return nil, err
	}

	if expected == domain.BookingStatusAtPickup && s.noShows != nil {
		_ = s.noShows.Cancel(ctx, booking.ID)
	}

	if s.notificationService != nil {
		_ = s.notificationService.NotifyBookingCancelled(ctx, booking)
	}

	return booking, nil
}

func validateCreateBooking(req CreateBookingRequest) error {
	if req.CustomerID == "" {
		return ErrInvalidCustomerID
	}
	if strings.TrimSpace(req.PickupLocation) == "" || strings.TrimSpace(req.Destination) == "" {
		return ErrInvalidLocation
	}
	if req.Fare < 0 {
		return ErrInvalidFare
	}
	return nil
}
