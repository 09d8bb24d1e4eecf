package tests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"toda/internal/domain"
	"toda/internal/repository"
	"toda/internal/service"
)

// matchingFixture bundles a MatchingService with its mocks.
type matchingFixture struct {
	drivers   *MockDriverRepository
	bookings  *MockBookingRepository
	index     *MockBookingIndexRepository
	queue     *MockQueueStore
	locks     *MockLockStore
	cache     *MockDriverCache
	tx        *MockTransactor
	publisher *MockPublisher
	service   *service.MatchingService
}

func newMatchingFixture() *matchingFixture {
	f := &matchingFixture{
		drivers:   NewMockDriverRepository(),
		bookings:  NewMockBookingRepository(),
		index:     NewMockBookingIndexRepository(),
		queue:     NewMockQueueStore(),
		locks:     NewMockLockStore(),
		cache:     NewMockDriverCache(),
		publisher: &MockPublisher{},
	}
	f.tx = NewMockTransactor(repository.Stores{
		Bookings:     f.bookings,
		BookingIndex: f.index,
		Drivers:      f.drivers,
	})
	notifications := service.NewNotificationService(f.publisher, nil)
	f.service = service.NewMatchingService(f.tx, f.bookings, f.drivers, f.queue, f.locks, f.cache, notifications, time.Second)
	return f
}

func pendingBooking(id string, at time.Time) *domain.Booking {
	return &domain.Booking{
		ID:             id,
		CustomerID:     "cust-1",
		CustomerName:   "Ana",
		PickupLocation: "Public Market",
		Destination:    "Barangay Hall",
		Fare:           40,
		ConvenienceFee: service.StandardConvenienceFee,
		Status:         domain.BookingStatusPending,
		Timestamp:      at,
	}
}

func queuedDriver(id, rfid string, ts int64) domain.QueueEntry {
	return domain.QueueEntry{
		DriverID:   id,
		DriverRFID: rfid,
		DriverName: "Driver " + id,
		TodaNumber: "T-01",
		Timestamp:  ts,
		Status:     domain.QueueStatusWaiting,
	}
}

func TestMatch_AssignsOldestWaitingDriver(t *testing.T) {
	ctx := context.Background()
	f := newMatchingFixture()

	f.drivers.AddDriver(&domain.Driver{ID: "d1", Name: "Ben", RFIDUID: "R1", TodaNumber: "T-01", TricycleNumber: "TR-9", PaymentMode: domain.PaymentModePayLater})
	f.drivers.AddDriver(&domain.Driver{ID: "d2", Name: "Cy", RFIDUID: "R2"})
	f.bookings.AddBooking(pendingBooking("b1", time.Now()))

	// Inserted out of order; the older timestamp must win.
	f.queue.Put(queuedDriver("d2", "R2", 2000))
	f.queue.Put(queuedDriver("d1", "R1", 1000))

	result, err := f.service.Match(ctx, "b1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DriverID != "d1" {
		t.Errorf("expected d1, got %s", result.DriverID)
	}

	stored := f.bookings.GetBooking("b1")
	if stored.Status != domain.BookingStatusAccepted {
		t.Errorf("expected ACCEPTED, got %s", stored.Status)
	}
	if stored.DriverRFID != "R1" || stored.DriverName != "Ben" || stored.TricycleNumber != "TR-9" {
		t.Errorf("driver details not copied: %+v", stored)
	}
	if stored.PaymentMode != domain.PaymentModePayLater {
		t.Errorf("expected pay_later, got %s", stored.PaymentMode)
	}

	if f.queue.Has(1000) {
		t.Error("matched entry should be removed from the queue")
	}
	if !f.queue.Has(2000) {
		t.Error("other entries should stay queued")
	}

	idx := f.index.Get("b1")
	if idx == nil || idx.DriverID != "d1" || idx.Status != domain.BookingStatusAccepted {
		t.Errorf("index not written: %+v", idx)
	}

	if f.locks.IsLocked("b1") {
		t.Error("booking lock should be released")
	}
}

func TestMatch_SkipsPausedAndBlankRFIDEntries(t *testing.T) {
	ctx := context.Background()
	f := newMatchingFixture()

	f.drivers.AddDriver(&domain.Driver{ID: "d3", Name: "Dan", RFIDUID: "R3"})
	f.bookings.AddBooking(pendingBooking("b1", time.Now()))

	paused := queuedDriver("d1", "R1", 1000)
	paused.Status = domain.QueueStatusPaused
	blank := queuedDriver("d2", "   ", 2000)

	f.queue.Put(paused)
	f.queue.Put(blank)
	f.queue.Put(queuedDriver("d3", "R3", 3000))

	result, err := f.service.Match(ctx, "b1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DriverID != "d3" {
		t.Errorf("expected d3, got %s", result.DriverID)
	}
	if !f.queue.Has(1000) || !f.queue.Has(2000) {
		t.Error("skipped entries must remain in the queue")
	}
}

func TestMatch_EmptyQueue(t *testing.T) {
	ctx := context.Background()
	f := newMatchingFixture()
	f.bookings.AddBooking(pendingBooking("b1", time.Now()))

	_, err := f.service.Match(ctx, "b1")
	if !errors.Is(err, service.ErrNoDriverAvailable) {
		t.Fatalf("expected ErrNoDriverAvailable, got %v", err)
	}
	if f.bookings.GetBooking("b1").Status != domain.BookingStatusPending {
		t.Error("booking should stay PENDING")
	}
}

func TestMatch_BookingNotPending(t *testing.T) {
	ctx := context.Background()
	f := newMatchingFixture()

	b := pendingBooking("b1", time.Now())
	b.Status = domain.BookingStatusCancelled
	f.bookings.AddBooking(b)
	f.queue.Put(queuedDriver("d1", "R1", 1000))

	_, err := f.service.Match(ctx, "b1")
	if !errors.Is(err, service.ErrBookingNotPending) {
		t.Fatalf("expected ErrBookingNotPending, got %v", err)
	}
	if !f.queue.Has(1000) {
		t.Error("queue must be untouched")
	}
	if n := atomic.LoadInt32(&f.queue.ClaimCallCount); n != 0 {
		t.Errorf("expected no claims, got %d", n)
	}
}

func TestMatch_LockHeldElsewhere(t *testing.T) {
	ctx := context.Background()
	f := newMatchingFixture()
	f.bookings.AddBooking(pendingBooking("b1", time.Now()))
	f.queue.Put(queuedDriver("d1", "R1", 1000))
	f.locks.Hold("b1")

	_, err := f.service.Match(ctx, "b1")
	if !errors.Is(err, service.ErrMatchInProgress) {
		t.Fatalf("expected ErrMatchInProgress, got %v", err)
	}
	if !f.queue.Has(1000) {
		t.Error("queue must be untouched")
	}
}

func TestMatch_EmptyBookingID(t *testing.T) {
	f := newMatchingFixture()
	if _, err := f.service.Match(context.Background(), ""); !errors.Is(err, service.ErrInvalidBookingID) {
		t.Fatalf("expected ErrInvalidBookingID, got %v", err)
	}
}

func TestMatch_RestoresEntryWhenWriteFails(t *testing.T) {
	ctx := context.Background()
	f := newMatchingFixture()
	f.drivers.AddDriver(&domain.Driver{ID: "d1", RFIDUID: "R1"})
	f.bookings.AddBooking(pendingBooking("b1", time.Now()))
	f.queue.Put(queuedDriver("d1", "R1", 1000))
	f.bookings.UpdateIfStatusError = ErrMockDBDown

	_, err := f.service.Match(ctx, "b1")
	if !errors.Is(err, ErrMockDBDown) {
		t.Fatalf("expected db error, got %v", err)
	}
	if !f.queue.Has(1000) {
		t.Error("entry should be restored with its original timestamp")
	}
	if n := atomic.LoadInt32(&f.queue.RestoreCallCount); n != 1 {
		t.Errorf("expected 1 restore, got %d", n)
	}
	if f.locks.IsLocked("b1") {
		t.Error("booking lock should be released")
	}
}

func TestMatch_StateConflictRestoresEntry(t *testing.T) {
	ctx := context.Background()
	f := newMatchingFixture()
	f.drivers.AddDriver(&domain.Driver{ID: "d1", RFIDUID: "R1"})
	f.bookings.AddBooking(pendingBooking("b1", time.Now()))
	f.queue.Put(queuedDriver("d1", "R1", 1000))
	f.bookings.UpdateIfStatusError = repository.ErrStateConflict

	_, err := f.service.Match(ctx, "b1")
	if !errors.Is(err, service.ErrBookingNotPending) {
		t.Fatalf("expected ErrBookingNotPending, got %v", err)
	}
	if !f.queue.Has(1000) {
		t.Error("entry should be restored")
	}
}

func TestMatch_SkipsEntryClaimedConcurrently(t *testing.T) {
	ctx := context.Background()
	f := newMatchingFixture()
	f.drivers.AddDriver(&domain.Driver{ID: "d2", RFIDUID: "R2"})
	f.bookings.AddBooking(pendingBooking("b1", time.Now()))
	f.queue.Put(queuedDriver("d1", "R1", 1000))
	f.queue.Put(queuedDriver("d2", "R2", 2000))
	f.queue.RejectClaims["1000"] = true

	result, err := f.service.Match(ctx, "b1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DriverID != "d2" {
		t.Errorf("expected d2, got %s", result.DriverID)
	}
}

func TestMatch_FallsBackToEntryDriverID(t *testing.T) {
	ctx := context.Background()
	f := newMatchingFixture()

	// The tag was replaced after the driver joined; the entry still carries the old one.
	f.drivers.AddDriver(&domain.Driver{ID: "d1", Name: "Ben", RFIDUID: "NEW"})
	f.bookings.AddBooking(pendingBooking("b1", time.Now()))
	f.queue.Put(queuedDriver("d1", "OLD", 1000))

	result, err := f.service.Match(ctx, "b1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DriverID != "d1" {
		t.Errorf("expected d1, got %s", result.DriverID)
	}
	if result.Booking.DriverRFID != "NEW" {
		t.Errorf("expected current RFID NEW, got %s", result.Booking.DriverRFID)
	}
}

func TestMatch_UnknownDriverUsesRFIDAsID(t *testing.T) {
	ctx := context.Background()
	f := newMatchingFixture()
	f.bookings.AddBooking(pendingBooking("b1", time.Now()))

	entry := queuedDriver("", "R9", 1000)
	entry.DriverName = "Walk-in"
	f.queue.Put(entry)

	result, err := f.service.Match(ctx, "b1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DriverID != "R9" {
		t.Errorf("expected RFID as driver id, got %s", result.DriverID)
	}
	if result.Booking.DriverName != "Walk-in" {
		t.Errorf("expected entry name, got %s", result.Booking.DriverName)
	}
	if result.Booking.PaymentMode != domain.DefaultPaymentMode {
		t.Errorf("expected default payment mode, got %s", result.Booking.PaymentMode)
	}
}

func TestMatch_UsesDriverCache(t *testing.T) {
	ctx := context.Background()
	f := newMatchingFixture()
	f.bookings.AddBooking(pendingBooking("b1", time.Now()))
	f.queue.Put(queuedDriver("d1", "R1", 1000))

	f.drivers.AddDriver(&domain.Driver{ID: "d1", Name: "Ben", RFIDUID: "R1"})
	if _, err := f.service.Match(ctx, "b1"); err != nil {
		t.Fatalf("first match: %v", err)
	}
	if n := atomic.LoadInt32(&f.drivers.GetByRFIDCallCount); n != 1 {
		t.Fatalf("expected 1 repository lookup, got %d", n)
	}

	f.bookings.AddBooking(pendingBooking("b2", time.Now()))
	f.queue.Put(queuedDriver("d1", "R1", 5000))
	result, err := f.service.Match(ctx, "b2")
	if err != nil {
		t.Fatalf("second match: %v", err)
	}
	if n := atomic.LoadInt32(&f.drivers.GetByRFIDCallCount); n != 1 {
		t.Errorf("expected cache hit, repository called %d times", n)
	}
	if result.Booking.DriverName != "Ben" {
		t.Errorf("expected cached name Ben, got %s", result.Booking.DriverName)
	}
}

func TestMatch_PublishesDriverAssigned(t *testing.T) {
	ctx := context.Background()
	f := newMatchingFixture()
	f.drivers.AddDriver(&domain.Driver{ID: "d1", RFIDUID: "R1"})
	f.bookings.AddBooking(pendingBooking("b1", time.Now()))
	f.queue.Put(queuedDriver("d1", "R1", 1000))

	if _, err := f.service.Match(ctx, "b1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	types := f.publisher.Types()
	if len(types) != 1 || types[0] != "booking.driver_assigned" {
		t.Errorf("expected one driver_assigned event, got %v", types)
	}
}

func TestMatchPending_OldestFirstUntilQueueEmpty(t *testing.T) {
	ctx := context.Background()
	f := newMatchingFixture()

	now := time.Now()
	f.bookings.AddBooking(pendingBooking("b-new", now))
	f.bookings.AddBooking(pendingBooking("b-old", now.Add(-time.Minute)))
	f.bookings.AddBooking(pendingBooking("b-mid", now.Add(-30*time.Second)))

	f.drivers.AddDriver(&domain.Driver{ID: "d1", RFIDUID: "R1"})
	f.drivers.AddDriver(&domain.Driver{ID: "d2", RFIDUID: "R2"})
	f.queue.Put(queuedDriver("d1", "R1", 1000))
	f.queue.Put(queuedDriver("d2", "R2", 2000))

	matched, err := f.service.MatchPending(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matched != 2 {
		t.Fatalf("expected 2 matches, got %d", matched)
	}

	if got := f.bookings.GetBooking("b-old").AssignedDriverID; got != "d1" {
		t.Errorf("oldest booking should get d1, got %q", got)
	}
	if got := f.bookings.GetBooking("b-mid").AssignedDriverID; got != "d2" {
		t.Errorf("middle booking should get d2, got %q", got)
	}
	if f.bookings.GetBooking("b-new").Status != domain.BookingStatusPending {
		t.Error("newest booking should stay PENDING")
	}
}

func TestMatch_ConcurrentBookingsNeverShareDriver(t *testing.T) {
	ctx := context.Background()
	f := newMatchingFixture()
	f.drivers.AddDriver(&domain.Driver{ID: "d1", RFIDUID: "R1"})
	f.queue.Put(queuedDriver("d1", "R1", 1000))

	const n = 10
	for i := 0; i < n; i++ {
		f.bookings.AddBooking(pendingBooking("b"+string(rune('a'+i)), time.Now()))
	}

	var wg sync.WaitGroup
	var successCount int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := f.service.Match(ctx, id); err == nil {
				atomic.AddInt32(&successCount, 1)
			}
		}("b" + string(rune('a'+i)))
	}
	wg.Wait()

	if successCount != 1 {
		t.Errorf("expected exactly 1 match, got %d", successCount)
	}
	if f.queue.Size() != 0 {
		t.Errorf("expected empty queue, got %d entries", f.queue.Size())
	}
}

func TestMatch_ConcurrentSameBookingSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newMatchingFixture()
	f.bookings.AddBooking(pendingBooking("b1", time.Now()))
	for i := 0; i < 5; i++ {
		id := "d" + string(rune('0'+i))
		f.drivers.AddDriver(&domain.Driver{ID: id, RFIDUID: "R" + id})
		f.queue.Put(queuedDriver(id, "R"+id, int64(1000+i)))
	}

	var wg sync.WaitGroup
	var successCount int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.service.Match(ctx, "b1"); err == nil {
				atomic.AddInt32(&successCount, 1)
			}
		}()
	}
	wg.Wait()

	if successCount != 1 {
		t.Errorf("expected exactly 1 match, got %d", successCount)
	}
	if f.queue.Size() != 4 {
		t.Errorf("expected 4 drivers left in queue, got %d", f.queue.Size())
	}
}
