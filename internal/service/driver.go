package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"toda/internal/domain"
	"toda/internal/redis"
	"toda/internal/repository"
)

// DriverService handles driver profile operations that affect dispatch.
type DriverService struct {
	tx               repository.Transactor
	driverRepo       repository.DriverRepository
	contributionRepo repository.ContributionRepository
	historyRepo      repository.RFIDHistoryRepository
	cache            redis.DriverCacheInterface
}

// NewDriverService creates a new DriverService. cache may be nil.
func NewDriverService(
	tx repository.Transactor,
	driverRepo repository.DriverRepository,
	contributionRepo repository.ContributionRepository,
	historyRepo repository.RFIDHistoryRepository,
	cache redis.DriverCacheInterface,
) *DriverService {
	return &DriverService{
		tx:               tx,
		driverRepo:       driverRepo,
		contributionRepo: contributionRepo,
		historyRepo:      historyRepo,
		cache:            cache,
	}
}

// UpdateRFID replaces the driver's tag and records the change. The new tag
// takes effect for matching as soon as the cached copy is dropped; a queue
// entry written under the old tag still resolves through the driver id.
func (s *DriverService) UpdateRFID(ctx context.Context, driverID, rfid string) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	rfid = strings.TrimSpace(rfid)
	if rfid == "" {
		return nil, ErrInvalidRFID
	}

	var updated *domain.Driver
	var oldRFID string
	err := s.tx.WithinTx(ctx, func(st repository.Stores) error {
		driver, err := st.Drivers.GetByID(ctx, driverID)
		if err != nil {
			return err
		}

		owner, err := st.Drivers.GetByRFID(ctx, rfid)
		switch {
		case err == nil && owner.ID != driverID:
			return ErrRFIDInUse
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return err
		}

		oldRFID = driver.RFIDUID
		if oldRFID == rfid {
			updated = driver
			return nil
		}

		if err := st.Drivers.UpdateRFID(ctx, driverID, rfid); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrRFIDInUse
			}
			return err
		}

		if err := st.RFIDHistory.Create(ctx, &domain.RFIDHistory{
			ID:        uuid.New().String(),
			DriverID:  driverID,
			OldRFID:   oldRFID,
			NewRFID:   rfid,
			ChangedAt: time.Now(),
		}); err != nil {
			return err
		}

		driver.RFIDUID = rfid
		updated = driver
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, driverID, oldRFID, rfid)
	return updated, nil
}

// RFIDHistory lists the driver's tag changes.
func (s *DriverService) RFIDHistory(ctx context.Context, driverID string) ([]*domain.RFIDHistory, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	return s.historyRepo.ListByDriverID(ctx, driverID)
}

// UpdatePaymentMode changes how the driver settles contributions.
func (s *DriverService) UpdatePaymentMode(ctx context.Context, driverID string, mode domain.PaymentMode) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}
	if !mode.Valid() {
		return ErrInvalidPaymentMode
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return err
	}

	if err := s.driverRepo.UpdatePaymentMode(ctx, driverID, mode); err != nil {
		return err
	}

	s.invalidate(ctx, driverID, driver.RFIDUID)
	return nil
}

// Contributions lists the driver's contributions, newest first.
func (s *DriverService) Contributions(ctx context.Context, driverID string) ([]*domain.Contribution, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	return s.contributionRepo.ListByDriverID(ctx, driverID)
}

func (s *DriverService) invalidate(ctx context.Context, driverID string, rfids ...string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.InvalidateDriver(ctx, driverID, rfids...)
}
