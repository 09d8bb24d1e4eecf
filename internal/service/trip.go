package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"toda/internal/domain"
	"toda/internal/observability"
	"toda/internal/redis"
	"toda/internal/repository"
)

const (
	defaultNoShowWindow       = 5 * time.Minute
	defaultContributionAmount = 10.0
)

// TripService drives an accepted booking from pickup to completion.
type TripService struct {
	tx                  repository.Transactor
	bookingRepo         repository.BookingRepository
	contributionRepo    repository.ContributionRepository
	noShows             redis.NoShowQueueInterface
	notificationService *NotificationService
	noShowWindow        time.Duration
	contributionAmount  float64
	now                 func() time.Time
}

// TripConfig holds the trip tuning knobs.
type TripConfig struct {
	NoShowWindow       time.Duration
	ContributionAmount float64
}

// NewTripService creates a new TripService.
func NewTripService(
	tx repository.Transactor,
	bookingRepo repository.BookingRepository,
	contributionRepo repository.ContributionRepository,
	noShows redis.NoShowQueueInterface,
	notificationService *NotificationService,
	cfg TripConfig,
) *TripService {
	if cfg.NoShowWindow <= 0 {
		cfg.NoShowWindow = defaultNoShowWindow
	}
	if cfg.ContributionAmount <= 0 {
		cfg.ContributionAmount = defaultContributionAmount
	}
	return &TripService{
		tx:                  tx,
		bookingRepo:         bookingRepo,
		contributionRepo:    contributionRepo,
		noShows:             noShows,
		notificationService: notificationService,
		noShowWindow:        cfg.NoShowWindow,
		contributionAmount:  cfg.ContributionAmount,
		now:                 time.Now,
	}
}

// MarkArrived records that the driver reached the pickup point and starts
// the no-show timer.
func (s *TripService) MarkArrived(ctx context.Context, bookingID, driverID string) (*domain.Booking, error) {
	booking, err := s.assignedBooking(ctx, bookingID, driverID)
	if err != nil {
		return nil, err
	}

	if booking.Status != domain.BookingStatusAccepted {
		if booking.Status.Terminal() {
			return nil, ErrBookingFinished
		}
		return nil, ErrBookingNotAccepted
	}

	now := s.now()
	booking.Status = domain.BookingStatusAtPickup
	booking.ArrivedAtPickup = true
	booking.ArrivedAtPickupTime = now

	if err := s.transition(ctx, booking, domain.BookingStatusAccepted, nil); err != nil {
		return nil, err
	}

	if err := s.noShows.Schedule(ctx, booking.ID, now.Add(s.noShowWindow)); err != nil {
		// The driver can still report manually once the window passes.
		slog.ErrorContext(ctx, "schedule no-show failed", "booking_id", booking.ID, "error", err)
	}

	if s.notificationService != nil {
		_ = s.notificationService.NotifyDriverArrived(ctx, booking)
	}
	return booking, nil
}

// StartTrip picks up the passenger. Arrival does not have to be marked first.
func (s *TripService) StartTrip(ctx context.Context, bookingID, driverID string) (*domain.Booking, error) {
	booking, err := s.assignedBooking(ctx, bookingID, driverID)
	if err != nil {
		return nil, err
	}

	expected := booking.Status
	switch expected {
	case domain.BookingStatusAccepted, domain.BookingStatusAtPickup:
	default:
		if expected.Terminal() {
			return nil, ErrBookingFinished
		}
		return nil, ErrTripCannotStart
	}

	booking.Status = domain.BookingStatusInProgress
	if err := s.transition(ctx, booking, expected, nil); err != nil {
		return nil, err
	}

	if expected == domain.BookingStatusAtPickup {
		_ = s.noShows.Cancel(ctx, booking.ID)
	}

	if s.notificationService != nil {
		_ = s.notificationService.NotifyTripStarted(ctx, booking)
	}
	return booking, nil
}

// CompleteTripResponse contains the result of completing a trip.
type CompleteTripResponse struct {
	Booking      *domain.Booking
	Contribution *domain.Contribution
}

// CompleteTrip ends the trip and records the driver's contribution in the
// same transaction. pay_later contributions are charged to the balance.
// Completing an already completed trip returns the recorded contribution.
func (s *TripService) CompleteTrip(ctx context.Context, bookingID, driverID string) (*CompleteTripResponse, error) {
	booking, err := s.assignedBooking(ctx, bookingID, driverID)
	if err != nil {
		return nil, err
	}

	if booking.Status == domain.BookingStatusCompleted {
		return s.completed(ctx, booking)
	}
	if booking.Status != domain.BookingStatusInProgress {
		if booking.Status.Terminal() {
			return nil, ErrBookingFinished
		}
		return nil, ErrTripNotInProgress
	}

	now := s.now()
	booking.Status = domain.BookingStatusCompleted
	booking.CompletedAt = now

	mode := paymentModeOrDefault(booking.PaymentMode)
	contribution := &domain.Contribution{
		ID:          uuid.New().String(),
		DriverID:    booking.AssignedDriverID,
		BookingID:   booking.ID,
		Amount:      s.contributionAmount,
		PaymentMode: mode,
		Paid:        mode == domain.PaymentModePayEveryTrip,
		CreatedAt:   now,
	}

	err = s.transition(ctx, booking, domain.BookingStatusInProgress, func(st repository.Stores) error {
		if err := st.Contributions.Create(ctx, contribution); err != nil {
			return err
		}
		if contribution.Paid {
			return nil
		}
		err := st.Drivers.AdjustBalance(ctx, contribution.DriverID, -contribution.Amount)
		if errors.Is(err, repository.ErrNotFound) {
			// Fallback-id drivers have no row to charge.
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.notificationService != nil {
		_ = s.notificationService.NotifyTripCompleted(ctx, booking)
	}
	return &CompleteTripResponse{Booking: booking, Contribution: contribution}, nil
}

func (s *TripService) completed(ctx context.Context, booking *domain.Booking) (*CompleteTripResponse, error) {
	contribution, err := s.contributionRepo.GetByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if contribution == nil {
		return nil, ErrBookingFinished
	}
	return &CompleteTripResponse{Booking: booking, Contribution: contribution}, nil
}

// ReportNoShow closes a booking whose passenger never came, on the driver's
// request. It fails until the no-show window has elapsed since arrival.
func (s *TripService) ReportNoShow(ctx context.Context, bookingID, driverID string) (*domain.Booking, error) {
	booking, err := s.assignedBooking(ctx, bookingID, driverID)
	if err != nil {
		return nil, err
	}

	if err := s.checkNoShow(booking); err != nil {
		return nil, err
	}

	if err := s.closeNoShow(ctx, booking); err != nil {
		return nil, err
	}
	_ = s.noShows.Cancel(ctx, booking.ID)

	observability.NoShowsTotal.WithLabelValues("manual").Inc()
	return booking, nil
}

// AutoNoShow closes the booking as no-show when it is still waiting at
// pickup past the window. It reports false when there was nothing to do.
func (s *TripService) AutoNoShow(ctx context.Context, bookingID string) (bool, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := s.checkNoShow(booking); err != nil {
		if errors.Is(err, ErrNoShowWindowOpen) {
			// Arrival was re-marked; not due yet.
			return false, s.noShows.Schedule(ctx, booking.ID, booking.ArrivedAtPickupTime.Add(s.noShowWindow))
		}
		return false, nil
	}

	if err := s.closeNoShow(ctx, booking); err != nil {
		if errors.Is(err, ErrBookingNotAtPickup) {
			return false, nil
		}
		return false, err
	}

	observability.NoShowsTotal.WithLabelValues("auto").Inc()
	return true, nil
}

// NoShowAvailable loads an AT_PICKUP booking whose window has elapsed, for
// telling the driver the report is unlocked.
func (s *TripService) NoShowAvailable(ctx context.Context, bookingID string) (*domain.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.checkNoShow(booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *TripService) checkNoShow(b *domain.Booking) error {
	if b.Status != domain.BookingStatusAtPickup {
		if b.Status.Terminal() {
			return ErrBookingFinished
		}
		return ErrBookingNotAtPickup
	}
	if !b.ArrivedAtPickup || b.ArrivedAtPickupTime.IsZero() {
		return ErrBookingNotAtPickup
	}
	if s.now().Sub(b.ArrivedAtPickupTime) < s.noShowWindow {
		return ErrNoShowWindowOpen
	}
	return nil
}

func (s *TripService) closeNoShow(ctx context.Context, booking *domain.Booking) error {
	booking.Status = domain.BookingStatusNoShow
	booking.CompletedAt = s.now()
	if err := s.transition(ctx, booking, domain.BookingStatusAtPickup, nil); err != nil {
		return err
	}

	slog.InfoContext(ctx, "booking closed as no-show", "booking_id", booking.ID, "driver_id", booking.AssignedDriverID)
	if s.notificationService != nil {
		_ = s.notificationService.NotifyNoShow(ctx, booking)
	}
	return nil
}

// assignedBooking loads the booking and checks driverID holds it.
func (s *TripService) assignedBooking(ctx context.Context, bookingID, driverID string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.AssignedDriverID != driverID {
		return nil, ErrDriverNotAssigned
	}
	return booking, nil
}

// transition writes booking if its stored status is still expected, updates
// the index, and runs extra in the same transaction.
func (s *TripService) transition(ctx context.Context, booking *domain.Booking, expected domain.BookingStatus, extra func(st repository.Stores) error) error {
	err := s.tx.WithinTx(ctx, func(st repository.Stores) error {
		if err := st.Bookings.UpdateIfStatus(ctx, booking, expected); err != nil {
			return err
		}
		if err := st.BookingIndex.Upsert(ctx, indexFor(booking)); err != nil {
			return err
		}
		if extra != nil {
			return extra(st)
		}
		return nil
	})
	if errors.Is(err, repository.ErrStateConflict) {
		return stateConflictError(expected)
	}
	return err
}

func stateConflictError(expected domain.BookingStatus) error {
	switch expected {
	case domain.BookingStatusAccepted:
		return ErrBookingNotAccepted
	case domain.BookingStatusAtPickup:
		return ErrBookingNotAtPickup
	case domain.BookingStatusInProgress:
		return ErrTripNotInProgress
	}
	return ErrTripCannotStart
}
