package tests

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"toda/internal/domain"
	"toda/internal/events"
	"toda/internal/notify"
	"toda/internal/redis"
	"toda/internal/repository"
	"toda/internal/service"
)

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	// Counters for verification
	GetByRFIDCallCount int32

	// Error injection
	CreateError     error
	GetByRFIDError  error
	UpdateRFIDError error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
}

func (m *MockDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.drivers {
		if driver.RFIDUID != "" && d.RFIDUID == driver.RFIDUID {
			return repository.ErrDuplicate
		}
	}
	m.drivers[driver.ID] = driver
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *driver
	return &copy, nil
}

func (m *MockDriverRepository) GetByRFID(ctx context.Context, rfid string) (*domain.Driver, error) {
	atomic.AddInt32(&m.GetByRFIDCallCount, 1)
	if m.GetByRFIDError != nil {
		return nil, m.GetByRFIDError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.drivers {
		if rfid != "" && d.RFIDUID == rfid {
			copy := *d
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockDriverRepository) GetByPhone(ctx context.Context, phone string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.drivers {
		if d.Phone == phone {
			copy := *d
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockDriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		copy := *d
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockDriverRepository) UpdateRFID(ctx context.Context, id, rfid string) error {
	if m.UpdateRFIDError != nil {
		return m.UpdateRFIDError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	for _, d := range m.drivers {
		if d.ID != id && rfid != "" && d.RFIDUID == rfid {
			return repository.ErrDuplicate
		}
	}
	driver.RFIDUID = rfid
	return nil
}

func (m *MockDriverRepository) UpdatePaymentMode(ctx context.Context, id string, mode domain.PaymentMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.PaymentMode = mode
	return nil
}

func (m *MockDriverRepository) AdjustBalance(ctx context.Context, id string, delta float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.Balance += delta
	return nil
}

// GetDriver returns driver for test assertions.
func (m *MockDriverRepository) GetDriver(id string) *domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drivers[id]
}

// ──────────────────────────────────────────────
// MOCK BOOKING REPOSITORY
// ──────────────────────────────────────────────

// MockBookingRepository is a mock implementation of BookingRepository.
type MockBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*domain.Booking

	// Counters for verification
	UpdateIfStatusCallCount int32

	// Error injection
	CreateError         error
	UpdateIfStatusError error
}

// NewMockBookingRepository creates a new mock booking repository.
func NewMockBookingRepository() *MockBookingRepository {
	return &MockBookingRepository{
		bookings: make(map[string]*domain.Booking),
	}
}

// AddBooking adds a booking to the mock repository.
func (m *MockBookingRepository) AddBooking(booking *domain.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[booking.ID] = booking
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *booking
	m.bookings[booking.ID] = &copy
	return nil
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	booking, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *booking
	return &copy, nil
}

func (m *MockBookingRepository) GetAll(ctx context.Context) ([]*domain.Booking, error) {
	return m.list(func(*domain.Booking) bool { return true }, 0), nil
}

func (m *MockBookingRepository) ListByStatus(ctx context.Context, status domain.BookingStatus, limit int) ([]*domain.Booking, error) {
	return m.list(func(b *domain.Booking) bool { return b.Status == status }, limit), nil
}

func (m *MockBookingRepository) list(keep func(*domain.Booking) bool, limit int) []*domain.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Booking, 0, len(m.bookings))
	for _, b := range m.bookings {
		if keep(b) {
			copy := *b
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.Before(result[j].Timestamp) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func (m *MockBookingRepository) UpdateIfStatus(ctx context.Context, booking *domain.Booking, expected domain.BookingStatus) error {
	atomic.AddInt32(&m.UpdateIfStatusCallCount, 1)
	if m.UpdateIfStatusError != nil {
		return m.UpdateIfStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.bookings[booking.ID]
	if !ok || stored.Status != expected {
		return repository.ErrStateConflict
	}
	copy := *booking
	m.bookings[booking.ID] = &copy
	return nil
}

// GetBooking returns the stored booking for test assertions.
func (m *MockBookingRepository) GetBooking(id string) *domain.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bookings[id]
}

// SetStatus overwrites a stored booking's status, simulating another writer.
func (m *MockBookingRepository) SetStatus(id string, status domain.BookingStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookings[id]; ok {
		b.Status = status
	}
}

// ──────────────────────────────────────────────
// MOCK BOOKING INDEX REPOSITORY
// ──────────────────────────────────────────────

// MockBookingIndexRepository is a mock implementation of BookingIndexRepository.
type MockBookingIndexRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.BookingIndex

	// Error injection
	UpsertError error
}

// NewMockBookingIndexRepository creates a new mock booking index repository.
func NewMockBookingIndexRepository() *MockBookingIndexRepository {
	return &MockBookingIndexRepository{
		records: make(map[string]*domain.BookingIndex),
	}
}

func (m *MockBookingIndexRepository) Upsert(ctx context.Context, idx *domain.BookingIndex) error {
	if m.UpsertError != nil {
		return m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *idx
	m.records[idx.BookingID] = &copy
	return nil
}

func (m *MockBookingIndexRepository) GetActiveByDriverID(ctx context.Context, driverID string) (*domain.BookingIndex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, idx := range m.records {
		if idx.DriverID == driverID && !idx.Status.Terminal() {
			copy := *idx
			return &copy, nil
		}
	}
	return nil, nil
}

// Get returns the stored index record for test assertions.
func (m *MockBookingIndexRepository) Get(bookingID string) *domain.BookingIndex {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records[bookingID]
}

// ──────────────────────────────────────────────
// MOCK PASSENGER REPOSITORY
// ──────────────────────────────────────────────

// MockPassengerRepository is a mock implementation of PassengerRepository.
type MockPassengerRepository struct {
	mu         sync.RWMutex
	passengers map[string]*domain.Passenger

	// Error injection
	GetByIDError error
}

// NewMockPassengerRepository creates a new mock passenger repository.
func NewMockPassengerRepository() *MockPassengerRepository {
	return &MockPassengerRepository{
		passengers: make(map[string]*domain.Passenger),
	}
}

// AddPassenger adds a passenger to the mock repository.
func (m *MockPassengerRepository) AddPassenger(p *domain.Passenger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passengers[p.ID] = p
}

func (m *MockPassengerRepository) Create(ctx context.Context, p *domain.Passenger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passengers[p.ID] = p
	return nil
}

func (m *MockPassengerRepository) GetByID(ctx context.Context, id string) (*domain.Passenger, error) {
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.passengers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

func (m *MockPassengerRepository) GetByPhone(ctx context.Context, phone string) (*domain.Passenger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.passengers {
		if p.Phone == phone {
			copy := *p
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockPassengerRepository) GetAll(ctx context.Context) ([]*domain.Passenger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Passenger, 0, len(m.passengers))
	for _, p := range m.passengers {
		copy := *p
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockPassengerRepository) UpdateDiscount(ctx context.Context, id string, discount domain.DiscountType, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.passengers[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.DiscountType = discount
	p.DiscountVerified = verified
	return nil
}

// ──────────────────────────────────────────────
// MOCK CONTRIBUTION REPOSITORY
// ──────────────────────────────────────────────

// MockContributionRepository is a mock implementation of ContributionRepository.
type MockContributionRepository struct {
	mu            sync.RWMutex
	contributions []*domain.Contribution

	// Error injection
	CreateError error
}

// NewMockContributionRepository creates a new mock contribution repository.
func NewMockContributionRepository() *MockContributionRepository {
	return &MockContributionRepository{}
}

func (m *MockContributionRepository) Create(ctx context.Context, c *domain.Contribution) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.contributions {
		if existing.BookingID == c.BookingID {
			return repository.ErrDuplicate
		}
	}
	copy := *c
	m.contributions = append(m.contributions, &copy)
	return nil
}

func (m *MockContributionRepository) GetByBookingID(ctx context.Context, bookingID string) (*domain.Contribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.contributions {
		if c.BookingID == bookingID {
			copy := *c
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockContributionRepository) ListByDriverID(ctx context.Context, driverID string) ([]*domain.Contribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Contribution
	for i := len(m.contributions) - 1; i >= 0; i-- {
		if c := m.contributions[i]; c.DriverID == driverID {
			copy := *c
			result = append(result, &copy)
		}
	}
	return result, nil
}

// Count returns the number of stored contributions.
func (m *MockContributionRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.contributions)
}

// ──────────────────────────────────────────────
// MOCK RFID HISTORY REPOSITORY
// ──────────────────────────────────────────────

// MockRFIDHistoryRepository is a mock implementation of RFIDHistoryRepository.
type MockRFIDHistoryRepository struct {
	mu      sync.RWMutex
	entries []*domain.RFIDHistory
}

// NewMockRFIDHistoryRepository creates a new mock RFID history repository.
func NewMockRFIDHistoryRepository() *MockRFIDHistoryRepository {
	return &MockRFIDHistoryRepository{}
}

func (m *MockRFIDHistoryRepository) Create(ctx context.Context, entry *domain.RFIDHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *entry
	m.entries = append(m.entries, &copy)
	return nil
}

func (m *MockRFIDHistoryRepository) ListByDriverID(ctx context.Context, driverID string) ([]*domain.RFIDHistory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.RFIDHistory
	for _, e := range m.entries {
		if e.DriverID == driverID {
			copy := *e
			result = append(result, &copy)
		}
	}
	return result, nil
}

// ──────────────────────────────────────────────
// MOCK TRANSACTOR
// ──────────────────────────────────────────────

// MockTransactor runs fn against the mock repositories directly. It does
// not roll back; use BeginError to fail a transaction before any write.
type MockTransactor struct {
	Stores repository.Stores

	// Counters
	CallCount int32

	// Error injection
	BeginError error
}

// NewMockTransactor creates a transactor over the given mock repositories.
func NewMockTransactor(s repository.Stores) *MockTransactor {
	return &MockTransactor{Stores: s}
}

func (m *MockTransactor) WithinTx(ctx context.Context, fn func(s repository.Stores) error) error {
	atomic.AddInt32(&m.CallCount, 1)
	if m.BeginError != nil {
		return m.BeginError
	}
	return fn(m.Stores)
}

// ──────────────────────────────────────────────
// MOCK QUEUE STORE
// ──────────────────────────────────────────────

// MockQueueStore is an in-memory implementation of QueueStoreInterface.
type MockQueueStore struct {
	mu      sync.Mutex
	entries map[string]domain.QueueEntry // key -> entry
	slots   map[string]string            // driverID -> key
	subs    []chan redis.QueueEvent

	// Counters
	ClaimCallCount   int32
	RestoreCallCount int32

	// Error injection
	ListError  error
	ClaimError error

	// RejectClaims makes Claim report false for these keys, simulating a
	// concurrent matcher taking the entry first.
	RejectClaims map[string]bool
}

// NewMockQueueStore creates a new mock queue store.
func NewMockQueueStore() *MockQueueStore {
	return &MockQueueStore{
		entries:      make(map[string]domain.QueueEntry),
		slots:        make(map[string]string),
		RejectClaims: make(map[string]bool),
	}
}

// Put inserts an entry as-is, bypassing the one-slot-per-driver check.
func (m *MockQueueStore) Put(entry domain.QueueEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Key()] = entry
	if entry.DriverID != "" {
		m.slots[entry.DriverID] = entry.Key()
	}
}

func (m *MockQueueStore) Join(ctx context.Context, entry domain.QueueEntry) (*domain.QueueEntry, error) {
	m.mu.Lock()
	if _, ok := m.slots[entry.DriverID]; ok {
		m.mu.Unlock()
		return nil, redis.ErrAlreadyQueued
	}
	if entry.Status == "" {
		entry.Status = domain.QueueStatusWaiting
	}
	for {
		if _, taken := m.entries[entry.Key()]; !taken {
			break
		}
		entry.Timestamp++
	}
	m.entries[entry.Key()] = entry
	m.slots[entry.DriverID] = entry.Key()
	m.mu.Unlock()

	m.publish(redis.QueueEvent{Type: redis.QueueEventJoined, DriverID: entry.DriverID, Key: entry.Key()})
	return &entry, nil
}

func (m *MockQueueStore) Restore(ctx context.Context, entry domain.QueueEntry) error {
	atomic.AddInt32(&m.RestoreCallCount, 1)
	entry.Status = domain.QueueStatusWaiting
	m.mu.Lock()
	if _, ok := m.slots[entry.DriverID]; ok {
		m.mu.Unlock()
		return redis.ErrAlreadyQueued
	}
	for {
		if _, taken := m.entries[entry.Key()]; !taken {
			break
		}
		entry.Timestamp++
	}
	m.mu.Unlock()
	m.Put(entry)
	m.publish(redis.QueueEvent{Type: redis.QueueEventJoined, DriverID: entry.DriverID, Key: entry.Key()})
	return nil
}

func (m *MockQueueStore) Leave(ctx context.Context, driverID string) error {
	m.mu.Lock()
	key, ok := m.slots[driverID]
	if !ok {
		m.mu.Unlock()
		return redis.ErrNotQueued
	}
	delete(m.entries, key)
	delete(m.slots, driverID)
	m.mu.Unlock()

	m.publish(redis.QueueEvent{Type: redis.QueueEventLeft, DriverID: driverID})
	return nil
}

func (m *MockQueueStore) SetStatus(ctx context.Context, driverID string, status domain.QueueStatus) error {
	m.mu.Lock()
	key, ok := m.slots[driverID]
	if !ok {
		m.mu.Unlock()
		return redis.ErrNotQueued
	}
	entry := m.entries[key]
	entry.Status = status
	m.entries[key] = entry
	m.mu.Unlock()

	m.publish(redis.QueueEvent{Type: redis.QueueEventStatus, DriverID: driverID})
	return nil
}

func (m *MockQueueStore) Claim(ctx context.Context, entry *domain.QueueEntry) (bool, error) {
	atomic.AddInt32(&m.ClaimCallCount, 1)
	if m.ClaimError != nil {
		return false, m.ClaimError
	}

	m.mu.Lock()
	key := entry.Key()
	stored, ok := m.entries[key]
	if !ok || stored.Status != domain.QueueStatusWaiting || m.RejectClaims[key] {
		m.mu.Unlock()
		return false, nil
	}
	delete(m.entries, key)
	if m.slots[stored.DriverID] == key {
		delete(m.slots, stored.DriverID)
	}
	m.mu.Unlock()

	m.publish(redis.QueueEvent{Type: redis.QueueEventClaimed, DriverID: stored.DriverID, Key: key})
	return true, nil
}

func (m *MockQueueStore) List(ctx context.Context) ([]domain.QueueEntry, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]domain.QueueEntry, 0, len(m.entries))
	for _, e := range m.entries {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp < result[j].Timestamp })
	return result, nil
}

func (m *MockQueueStore) Len(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.entries)), nil
}

func (m *MockQueueStore) Subscribe(ctx context.Context) (<-chan redis.QueueEvent, func() error, error) {
	ch := make(chan redis.QueueEvent, 16)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()

	var once sync.Once
	closeFn := func() error {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subs {
				if s == ch {
					m.subs = append(m.subs[:i], m.subs[i+1:]...)
					break
				}
			}
			close(ch)
		})
		return nil
	}
	return ch, closeFn, nil
}

func (m *MockQueueStore) publish(ev redis.QueueEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Has reports whether an entry with the given timestamp is queued.
func (m *MockQueueStore) Has(timestamp int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[(&domain.QueueEntry{Timestamp: timestamp}).Key()]
	return ok
}

// Size returns the number of queued entries.
func (m *MockQueueStore) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStore.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]string // bookingID -> token

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]string),
	}
}

func (m *MockLockStore) AcquireBookingLock(ctx context.Context, bookingID string, ttl time.Duration) (string, bool, error) {
	n := atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return "", false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[bookingID]; held {
		return "", false, nil
	}
	token := "token-" + bookingID + "-" + strconv.Itoa(int(n))
	m.locks[bookingID] = token
	return token, true, nil
}

func (m *MockLockStore) ReleaseBookingLock(ctx context.Context, bookingID, token string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[bookingID] == token {
		delete(m.locks, bookingID)
	}
	return nil
}

// Hold takes the lock for bookingID as another process would.
func (m *MockLockStore) Hold(bookingID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[bookingID] = "held-elsewhere"
}

// IsLocked checks if a booking is locked (for test assertions).
func (m *MockLockStore) IsLocked(bookingID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.locks[bookingID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK NO-SHOW QUEUE
// ──────────────────────────────────────────────

// MockNoShowQueue is an in-memory implementation of NoShowQueueInterface.
type MockNoShowQueue struct {
	mu  sync.Mutex
	due map[string]time.Time

	// Error injection
	ScheduleError error
}

// NewMockNoShowQueue creates a new mock no-show queue.
func NewMockNoShowQueue() *MockNoShowQueue {
	return &MockNoShowQueue{due: make(map[string]time.Time)}
}

func (m *MockNoShowQueue) Schedule(ctx context.Context, bookingID string, due time.Time) error {
	if m.ScheduleError != nil {
		return m.ScheduleError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.due[bookingID] = due
	return nil
}

func (m *MockNoShowQueue) Cancel(ctx context.Context, bookingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.due, bookingID)
	return nil
}

func (m *MockNoShowQueue) ClaimDue(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, due := range m.due {
		if !due.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && int64(len(ids)) > limit {
		ids = ids[:limit]
	}
	for _, id := range ids {
		delete(m.due, id)
	}
	return ids, nil
}

// DueAt returns the scheduled time for bookingID.
func (m *MockNoShowQueue) DueAt(bookingID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	due, ok := m.due[bookingID]
	return due, ok
}

// ──────────────────────────────────────────────
// MOCK DRIVER CACHE
// ──────────────────────────────────────────────

// MockDriverCache is an in-memory implementation of DriverCacheInterface.
type MockDriverCache struct {
	mu      sync.Mutex
	drivers map[string]*redis.CachedDriver
	rfids   map[string]string

	// Counters
	InvalidateCallCount int32
}

// NewMockDriverCache creates a new mock driver cache.
func NewMockDriverCache() *MockDriverCache {
	return &MockDriverCache{
		drivers: make(map[string]*redis.CachedDriver),
		rfids:   make(map[string]string),
	}
}

func (m *MockDriverCache) GetDriverByRFID(ctx context.Context, rfid string) (*redis.CachedDriver, error) {
	m.mu.Lock()
	id, ok := m.rfids[rfid]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return m.GetDriver(ctx, id)
}

func (m *MockDriverCache) GetDriver(ctx context.Context, driverID string) (*redis.CachedDriver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return nil, nil
	}
	copy := *d
	return &copy, nil
}

func (m *MockDriverCache) SetDriver(ctx context.Context, driver *redis.CachedDriver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *driver
	m.drivers[driver.ID] = &copy
	if driver.RFIDUID != "" {
		m.rfids[driver.RFIDUID] = driver.ID
	}
	return nil
}

func (m *MockDriverCache) InvalidateDriver(ctx context.Context, driverID string, rfids ...string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drivers, driverID)
	for _, r := range rfids {
		delete(m.rfids, r)
	}
	return nil
}

// ──────────────────────────────────────────────
// MOCK MATCHING SERVICE
// ──────────────────────────────────────────────

// MockMatchingService is a mock implementation of MatchingServiceInterface.
type MockMatchingService struct {
	Result *service.MatchResult
	Err    error

	// Counters
	MatchCallCount        int32
	MatchPendingCallCount int32
}

// NewMockMatchingService creates a matcher that finds no driver.
func NewMockMatchingService() *MockMatchingService {
	return &MockMatchingService{Err: service.ErrNoDriverAvailable}
}

func (m *MockMatchingService) Match(ctx context.Context, bookingID string) (*service.MatchResult, error) {
	atomic.AddInt32(&m.MatchCallCount, 1)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}

func (m *MockMatchingService) MatchPending(ctx context.Context, limit int) (int, error) {
	atomic.AddInt32(&m.MatchPendingCallCount, 1)
	return 0, nil
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER AND PUSHER
// ──────────────────────────────────────────────

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []events.Event

	PublishError error
}

func (m *MockPublisher) Publish(ctx context.Context, ev events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.PublishError
}

func (m *MockPublisher) Close() error { return nil }

// Types returns the published event types in order.
func (m *MockPublisher) Types() []events.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]events.Type, len(m.events))
	for i, ev := range m.events {
		types[i] = ev.Type
	}
	return types
}

// MockPusher records pushed topics.
type MockPusher struct {
	mu     sync.Mutex
	topics []string

	PushError error
}

func (m *MockPusher) PushToTopic(ctx context.Context, topic string, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics = append(m.topics, topic)
	return m.PushError
}

// Topics returns the pushed topics in order.
func (m *MockPusher) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.topics...)
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDBDown    = errors.New("mock: database unavailable")
	ErrMockRedisDown = errors.New("mock: redis unavailable")
)

// Ensure mocks implement interfaces.
var (
	_ repository.DriverRepository       = (*MockDriverRepository)(nil)
	_ repository.BookingRepository      = (*MockBookingRepository)(nil)
	_ repository.BookingIndexRepository = (*MockBookingIndexRepository)(nil)
	_ repository.PassengerRepository    = (*MockPassengerRepository)(nil)
	_ repository.ContributionRepository = (*MockContributionRepository)(nil)
	_ repository.RFIDHistoryRepository  = (*MockRFIDHistoryRepository)(nil)
	_ repository.Transactor             = (*MockTransactor)(nil)
	_ redis.QueueStoreInterface         = (*MockQueueStore)(nil)
	_ redis.LockStoreInterface          = (*MockLockStore)(nil)
	_ redis.NoShowQueueInterface        = (*MockNoShowQueue)(nil)
	_ redis.DriverCacheInterface        = (*MockDriverCache)(nil)
	_ service.MatchingServiceInterface  = (*MockMatchingService)(nil)
	_ events.Publisher                  = (*MockPublisher)(nil)
	_ notify.Pusher                     = (*MockPusher)(nil)
)
