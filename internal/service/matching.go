package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"toda/internal/domain"
	"toda/internal/observability"
	"toda/internal/redis"
	"toda/internal/repository"
)

const defaultMatchLockTTL = 30 * time.Second

// MatchingServiceInterface is the matcher as seen by other services.
type MatchingServiceInterface interface {
	Match(ctx context.Context, bookingID string) (*MatchResult, error)
	MatchPending(ctx context.Context, limit int) (int, error)
}

// MatchingService assigns pending bookings to the oldest waiting driver.
type MatchingService struct {
	tx                  repository.Transactor
	bookingRepo         repository.BookingRepository
	driverRepo          repository.DriverRepository
	queue               redis.QueueStoreInterface
	locks               redis.LockStoreInterface
	cache               redis.DriverCacheInterface
	notificationService *NotificationService
	lockTTL             time.Duration
}

// NewMatchingService creates a new MatchingService. cache and
// notificationService may be nil.
func NewMatchingService(
	tx repository.Transactor,
	bookingRepo repository.BookingRepository,
	driverRepo repository.DriverRepository,
	queue redis.QueueStoreInterface,
	locks redis.LockStoreInterface,
	cache redis.DriverCacheInterface,
	notificationService *NotificationService,
	lockTTL time.Duration,
) *MatchingService {
	if lockTTL <= 0 {
		lockTTL = defaultMatchLockTTL
	}
	return &MatchingService{
		tx:                  tx,
		bookingRepo:         bookingRepo,
		driverRepo:          driverRepo,
		queue:               queue,
		locks:               locks,
		cache:               cache,
		notificationService: notificationService,
		lockTTL:             lockTTL,
	}
}

// MatchResult contains the result of a successful match.
type MatchResult struct {
	DriverID string
	Booking  *domain.Booking
}

// assignee is the resolved identity of the driver behind a queue entry.
type assignee struct {
	ID             string
	Name           string
	RFID           string
	TodaNumber     string
	TricycleNumber string
	PaymentMode    domain.PaymentMode
}

// Match assigns the booking to the first eligible queue entry.
//
// The booking is locked for the duration of the attempt. A queue entry is
// removed with an atomic claim before the booking is written, and is put
// back with its original timestamp if the write fails, so the queue and the
// booking never disagree about who holds the driver.
func (s *MatchingService) Match(ctx context.Context, bookingID string) (*MatchResult, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}

	start := time.Now()
	defer func() { observability.MatchLatency.Observe(time.Since(start).Seconds()) }()

	token, locked, err := s.locks.AcquireBookingLock(ctx, bookingID, s.lockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		observability.MatchFailures.WithLabelValues("locked").Inc()
		return nil, ErrMatchInProgress
	}
	defer func() {
		if err := s.locks.ReleaseBookingLock(context.WithoutCancel(ctx), bookingID, token); err != nil {
			slog.WarnContext(ctx, "release booking lock failed", "booking_id", bookingID, "error", err)
		}
	}()

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != domain.BookingStatusPending {
		observability.MatchFailures.WithLabelValues("not_pending").Inc()
		return nil, ErrBookingNotPending
	}

	entries, err := s.queue.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Timestamp < entries[j].Timestamp })

	for i := range entries {
		entry := entries[i]
		if !entry.Eligible() {
			continue
		}

		claimed, err := s.queue.Claim(ctx, &entry)
		if err != nil {
			return nil, err
		}
		if !claimed {
			// Taken or paused since List.
			continue
		}

		driver, err := s.resolveDriver(ctx, entry)
		if err != nil {
			s.restore(ctx, entry)
			return nil, err
		}

		result, err := s.assignDriver(ctx, booking, driver)
		if err != nil {
			s.restore(ctx, entry)
			if errors.Is(err, repository.ErrStateConflict) {
				observability.MatchFailures.WithLabelValues("not_pending").Inc()
				return nil, ErrBookingNotPending
			}
			observability.MatchFailures.WithLabelValues("error").Inc()
			return nil, err
		}

		observability.MatchesTotal.Inc()
		s.updateQueueGauge(ctx)

		if s.notificationService != nil {
			_ = s.notificationService.NotifyDriverAssigned(ctx, result.Booking)
		}

		slog.InfoContext(ctx, "booking matched",
			"booking_id", booking.ID, "driver_id", driver.ID, "queued_at", entry.Timestamp)
		return result, nil
	}

	observability.MatchFailures.WithLabelValues("no_driver").Inc()
	return nil, ErrNoDriverAvailable
}

// MatchPending matches waiting bookings, oldest first, until the queue runs
// dry or limit bookings were tried. It returns the number matched.
func (s *MatchingService) MatchPending(ctx context.Context, limit int) (int, error) {
	pending, err := s.bookingRepo.ListByStatus(ctx, domain.BookingStatusPending, limit)
	if err != nil {
		return 0, err
	}

	matched := 0
	for _, b := range pending {
		_, err := s.Match(ctx, b.ID)
		switch {
		case err == nil:
			matched++
		case errors.Is(err, ErrNoDriverAvailable):
			return matched, nil
		case errors.Is(err, ErrMatchInProgress), errors.Is(err, ErrBookingNotPending):
			continue
		default:
			return matched, err
		}
	}
	return matched, nil
}

// resolveDriver finds the driver's current identity. It tries the cached
// RFID index, then the drivers table by RFID, then by the driver id stored
// on the entry. When the driver is unknown everywhere the RFID itself
// becomes the id.
func (s *MatchingService) resolveDriver(ctx context.Context, entry domain.QueueEntry) (*assignee, error) {
	if s.cache != nil {
		cached, err := s.cache.GetDriverByRFID(ctx, entry.DriverRFID)
		if err == nil && cached != nil {
			return &assignee{
				ID:             cached.ID,
				Name:           cached.Name,
				RFID:           entry.DriverRFID,
				TodaNumber:     cached.TodaNumber,
				TricycleNumber: cached.TricycleNumber,
				PaymentMode:    paymentModeOrDefault(domain.PaymentMode(cached.PaymentMode)),
			}, nil
		}
	}

	driver, err := s.driverRepo.GetByRFID(ctx, entry.DriverRFID)
	if errors.Is(err, repository.ErrNotFound) && entry.DriverID != "" {
		driver, err = s.driverRepo.GetByID(ctx, entry.DriverID)
	}
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return &assignee{
			ID:          entry.DriverRFID,
			Name:        entry.DriverName,
			RFID:        entry.DriverRFID,
			TodaNumber:  entry.TodaNumber,
			PaymentMode: domain.DefaultPaymentMode,
		}, nil
	}

	s.cacheDriver(ctx, driver)

	rfid := driver.RFIDUID
	if rfid == "" {
		rfid = entry.DriverRFID
	}
	return &assignee{
		ID:             driver.ID,
		Name:           driver.Name,
		RFID:           rfid,
		TodaNumber:     driver.TodaNumber,
		TricycleNumber: driver.TricycleNumber,
		PaymentMode:    paymentModeOrDefault(driver.PaymentMode),
	}, nil
}

// assignDriver writes the assignment and the index record in one transaction.
func (s *MatchingService) assignDriver(ctx context.Context, booking *domain.Booking, driver *assignee) (*MatchResult, error) {
	updated := *booking
	updated.Status = domain.BookingStatusAccepted
	updated.AssignedDriverID = driver.ID
	updated.DriverRFID = driver.RFID
	updated.DriverName = driver.Name
	updated.TodaNumber = driver.TodaNumber
	updated.TricycleNumber = driver.TricycleNumber
	updated.PaymentMode = driver.PaymentMode

	err := s.tx.WithinTx(ctx, func(st repository.Stores) error {
		if err := st.Bookings.UpdateIfStatus(ctx, &updated, domain.BookingStatusPending); err != nil {
			return err
		}
		return st.BookingIndex.Upsert(ctx, indexFor(&updated))
	})
	if err != nil {
		return nil, err
	}

	return &MatchResult{DriverID: driver.ID, Booking: &updated}, nil
}

func (s *MatchingService) restore(ctx context.Context, entry domain.QueueEntry) {
	if err := s.queue.Restore(context.WithoutCancel(ctx), entry); err != nil {
		slog.ErrorContext(ctx, "restore queue entry failed",
			"driver_id", entry.DriverID, "queued_at", entry.Timestamp, "error", err)
	}
}

func (s *MatchingService) cacheDriver(ctx context.Context, driver *domain.Driver) {
	if s.cache == nil || driver.RFIDUID == "" {
		return
	}
	_ = s.cache.SetDriver(ctx, &redis.CachedDriver{
		ID:             driver.ID,
		Name:           driver.Name,
		RFIDUID:        driver.RFIDUID,
		TodaNumber:     driver.TodaNumber,
		TricycleNumber: driver.TricycleNumber,
		PaymentMode:    string(driver.PaymentMode),
	})
}

func (s *MatchingService) updateQueueGauge(ctx context.Context) {
	if n, err := s.queue.Len(ctx); err == nil {
		observability.QueueLength.Set(float64(n))
	}
}

func paymentModeOrDefault(m domain.PaymentMode) domain.PaymentMode {
	if m.Valid() {
		return m
	}
	return domain.DefaultPaymentMode
}

func indexFor(b *domain.Booking) *domain.BookingIndex {
	return &domain.BookingIndex{
		BookingID:  b.ID,
		DriverID:   b.AssignedDriverID,
		CustomerID: b.CustomerID,
		Status:     b.Status,
		UpdatedAt:  time.Now(),
	}
}

var _ MatchingServiceInterface = (*MatchingService)(nil)
