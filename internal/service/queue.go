package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"toda/internal/domain"
	"toda/internal/events"
	"toda/internal/observability"
	"toda/internal/redis"
	"toda/internal/repository"
)

// QueueService handles drivers joining and leaving the dispatch queue.
type QueueService struct {
	queue               redis.QueueStoreInterface
	driverRepo          repository.DriverRepository
	indexRepo           repository.BookingIndexRepository
	matcher             MatchingServiceInterface
	notificationService *NotificationService
	rematchLimit        int
	now                 func() time.Time
}

// NewQueueService creates a new QueueService. matcher and
// notificationService may be nil.
func NewQueueService(
	queue redis.QueueStoreInterface,
	driverRepo repository.DriverRepository,
	indexRepo repository.BookingIndexRepository,
	matcher MatchingServiceInterface,
	notificationService *NotificationService,
	rematchLimit int,
) *QueueService {
	return &QueueService{
		queue:               queue,
		driverRepo:          driverRepo,
		indexRepo:           indexRepo,
		matcher:             matcher,
		notificationService: notificationService,
		rematchLimit:        rematchLimit,
		now:                 time.Now,
	}
}

// JoinQueue puts the driver behind rfid at the back of the queue, then
// offers the queue to any bookings still waiting for a driver.
func (s *QueueService) JoinQueue(ctx context.Context, rfid string) (*domain.QueueEntry, error) {
	rfid = strings.TrimSpace(rfid)
	if rfid == "" {
		return nil, ErrInvalidRFID
	}

	driver, err := s.driverRepo.GetByRFID(ctx, rfid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownRFID
		}
		return nil, err
	}

	if !driver.CanGoOnline {
		return nil, ErrDriverCannotGoOnline
	}

	active, err := s.indexRepo.GetActiveByDriverID(ctx, driver.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrDriverHasActiveBooking
	}

	entry, err := s.queue.Join(ctx, domain.QueueEntry{
		DriverID:   driver.ID,
		DriverRFID: rfid,
		DriverName: driver.Name,
		TodaNumber: driver.TodaNumber,
		Timestamp:  s.now().UnixMilli(),
		Status:     domain.QueueStatusWaiting,
	})
	if err != nil {
		if errors.Is(err, redis.ErrAlreadyQueued) {
			return nil, ErrDriverAlreadyQueued
		}
		return nil, err
	}

	s.updateQueueGauge(ctx)
	if s.notificationService != nil {
		_ = s.notificationService.NotifyQueueChange(ctx, events.QueueJoined, driver.ID)
	}

	if s.matcher != nil {
		if n, err := s.matcher.MatchPending(ctx, s.rematchLimit); err != nil {
			slog.WarnContext(ctx, "rematch after join failed", "driver_id", driver.ID, "error", err)
		} else if n > 0 {
			slog.InfoContext(ctx, "pending bookings matched after join", "driver_id", driver.ID, "matched", n)
		}
	}

	return entry, nil
}

// LeaveQueue removes the driver's entry, taking the driver offline.
func (s *QueueService) LeaveQueue(ctx context.Context, driverID string) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}
	if err := s.queue.Leave(ctx, driverID); err != nil {
		if errors.Is(err, redis.ErrNotQueued) {
			return ErrDriverNotQueued
		}
		return err
	}

	s.updateQueueGauge(ctx)
	if s.notificationService != nil {
		_ = s.notificationService.NotifyQueueChange(ctx, events.QueueLeft, driverID)
	}
	return nil
}

// PauseQueue keeps the driver's place but makes the entry ineligible.
func (s *QueueService) PauseQueue(ctx context.Context, driverID string) error {
	return s.setStatus(ctx, driverID, domain.QueueStatusPaused)
}

// ResumeQueue makes a paused entry eligible again at its original place.
func (s *QueueService) ResumeQueue(ctx context.Context, driverID string) error {
	if err := s.setStatus(ctx, driverID, domain.QueueStatusWaiting); err != nil {
		return err
	}
	if s.matcher != nil {
		if _, err := s.matcher.MatchPending(ctx, s.rematchLimit); err != nil {
			slog.WarnContext(ctx, "rematch after resume failed", "driver_id", driverID, "error", err)
		}
	}
	return nil
}

func (s *QueueService) setStatus(ctx context.Context, driverID string, status domain.QueueStatus) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}
	if err := s.queue.SetStatus(ctx, driverID, status); err != nil {
		if errors.Is(err, redis.ErrNotQueued) {
			return ErrDriverNotQueued
		}
		return err
	}
	return nil
}

// ListQueue returns the queue in dispatch order.
func (s *QueueService) ListQueue(ctx context.Context) ([]domain.QueueEntry, error) {
	entries, err := s.queue.List(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.QueueEntry{}
	}
	return entries, nil
}

// DriverStatus derives whether the driver is online from the queue.
func (s *QueueService) DriverStatus(ctx context.Context, driverID string) (*domain.DriverStatus, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}

	entries, err := s.queue.List(ctx)
	if err != nil {
		return nil, err
	}

	status := DeriveDriverStatus(driver, entries)
	return &status, nil
}

// WatchStatus streams the driver's status, starting with the current value
// and then on every change, until ctx is done.
func (s *QueueService) WatchStatus(ctx context.Context, driverID string) (<-chan domain.DriverStatus, error) {
	// Subscribe before the snapshot so no mutation falls between them.
	updates, closeSub, err := s.queue.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	current, err := s.DriverStatus(ctx, driverID)
	if err != nil {
		_ = closeSub()
		return nil, err
	}

	out := make(chan domain.DriverStatus, 1)
	out <- *current

	go func() {
		defer close(out)
		defer closeSub()

		last := *current
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-updates:
				if !ok {
					return
				}
				next, err := s.DriverStatus(ctx, driverID)
				if err != nil {
					if ctx.Err() == nil {
						slog.WarnContext(ctx, "refresh driver status failed", "driver_id", driverID, "error", err)
					}
					continue
				}
				// Positions shift whenever someone ahead leaves.
				if *next == last {
					continue
				}
				last = *next
				select {
				case out <- last:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// DeriveDriverStatus reports the driver online when a waiting entry
// belongs to them. Entries are matched by RFID or driver id, and by name
// when either side has no tag. Position counts waiting entries
// only, in timestamp order.
func DeriveDriverStatus(driver *domain.Driver, entries []domain.QueueEntry) domain.DriverStatus {
	status := domain.DriverStatus{DriverID: driver.ID}

	position := 0
	for _, e := range orderedEntries(entries) {
		if e.Status == domain.QueueStatusWaiting {
			position++
		}
		if !belongsTo(e, driver) {
			continue
		}
		status.Status = string(e.Status)
		if e.Status == domain.QueueStatusWaiting {
			status.Online = true
			status.Position = position
		}
		return status
	}
	return status
}

func belongsTo(e domain.QueueEntry, d *domain.Driver) bool {
	if d.RFIDUID != "" && e.DriverRFID == d.RFIDUID {
		return true
	}
	if e.DriverID != "" && e.DriverID == d.ID {
		return true
	}
	noTag := d.RFIDUID == "" || strings.TrimSpace(e.DriverRFID) == ""
	return noTag && d.Name != "" && e.DriverName == d.Name
}

func orderedEntries(entries []domain.QueueEntry) []domain.QueueEntry {
	sorted := make([]domain.QueueEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })
	return sorted
}

func (s *QueueService) updateQueueGauge(ctx context.Context) {
	if n, err := s.queue.Len(ctx); err == nil {
		observability.QueueLength.Set(float64(n))
	}
}
