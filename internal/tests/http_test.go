package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"toda/internal/app"
	"toda/internal/domain"
	"toda/internal/handler"
	"toda/internal/repository"
	"toda/internal/service"
)

// apiFixture wires the real services and router over the mocks.
type apiFixture struct {
	drivers    *MockDriverRepository
	bookings   *MockBookingRepository
	passengers *MockPassengerRepository
	queue      *MockQueueStore
	router     *gin.Engine
}

func newAPIFixture() *apiFixture {
	gin.SetMode(gin.TestMode)

	f := &apiFixture{
		drivers:    NewMockDriverRepository(),
		bookings:   NewMockBookingRepository(),
		passengers: NewMockPassengerRepository(),
		queue:      NewMockQueueStore(),
	}
	index := NewMockBookingIndexRepository()
	contributions := NewMockContributionRepository()
	history := NewMockRFIDHistoryRepository()
	noShows := NewMockNoShowQueue()
	cache := NewMockDriverCache()
	tx := NewMockTransactor(repository.Stores{
		Bookings:      f.bookings,
		BookingIndex:  index,
		Drivers:       f.drivers,
		Contributions: contributions,
		RFIDHistory:   history,
	})

	notifications := service.NewNotificationService(nil, nil)
	matching := service.NewMatchingService(tx, f.bookings, f.drivers, f.queue, NewMockLockStore(), cache, notifications, time.Second)
	queueService := service.NewQueueService(f.queue, f.drivers, index, matching, notifications, 10)
	bookingService := service.NewBookingService(tx, f.bookings, f.passengers, matching, noShows, notifications)
	driverService := service.NewDriverService(tx, f.drivers, contributions, history, cache)
	tripService := service.NewTripService(tx, f.bookings, contributions, noShows, notifications, service.TripConfig{})

	f.router = app.NewRouter(app.RouterDeps{
		PassengerHandler: handler.NewPassengerHandler(f.passengers),
		DriverHandler:    handler.NewDriverHandler(driverService, queueService, f.drivers),
		QueueHandler:     handler.NewQueueHandler(queueService),
		BookingHandler:   handler.NewBookingHandler(bookingService, matching, tripService),
	})
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestAPI_TapBookAndCompleteTrip(t *testing.T) {
	f := newAPIFixture()

	// Register a driver and tap in.
	w := f.do(t, http.MethodPost, "/v1/drivers/register", map[string]string{
		"name": "Ben", "phone": "0917", "rfid_uid": "R1", "toda_number": "T-01",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	driver := decode[handler.DriverResponse](t, w)

	w = f.do(t, http.MethodPost, "/v1/queue/tap", map[string]string{"rfid_uid": "R1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("tap: %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/v1/drivers/"+driver.ID+"/status", nil)
	status := decode[domain.DriverStatus](t, w)
	if !status.Online || status.Position != 1 {
		t.Fatalf("expected online at position 1, got %+v", status)
	}

	// Book; the queued driver is assigned immediately.
	w = f.do(t, http.MethodPost, "/v1/bookings", map[string]any{
		"customer_id": "cust-1", "pickup_location": "Market", "destination": "Plaza", "fare": 30,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create booking: %d %s", w.Code, w.Body.String())
	}
	created := decode[handler.CreateBookingResponse](t, w)
	if !created.DriverAssigned || created.AssignedDriverID != driver.ID || created.Status != "ACCEPTED" {
		t.Fatalf("expected ACCEPTED by %s, got %+v", driver.ID, created)
	}

	w = f.do(t, http.MethodGet, "/v1/queue", nil)
	if entries := decode[[]handler.QueueEntryResponse](t, w); len(entries) != 0 {
		t.Errorf("assigned driver should leave the queue, got %v", entries)
	}

	// A driver with an open booking cannot tap back in.
	w = f.do(t, http.MethodPost, "/v1/queue/tap", map[string]string{"rfid_uid": "R1"})
	if w.Code != http.StatusConflict {
		t.Errorf("tap during trip: expected 409, got %d", w.Code)
	}

	base := "/v1/bookings/" + created.ID
	action := map[string]string{"driver_id": driver.ID}
	for _, step := range []string{"/arrive", "/start"} {
		if w = f.do(t, http.MethodPost, base+step, action); w.Code != http.StatusOK {
			t.Fatalf("%s: %d %s", step, w.Code, w.Body.String())
		}
	}

	w = f.do(t, http.MethodPost, base+"/complete", action)
	if w.Code != http.StatusOK {
		t.Fatalf("complete: %d %s", w.Code, w.Body.String())
	}
	done := decode[handler.CompleteTripResponse](t, w)
	if done.Booking.Status != "COMPLETED" || done.Contribution.Amount != 10 || !done.Contribution.Paid {
		t.Errorf("unexpected completion: %+v", done)
	}

	w = f.do(t, http.MethodGet, "/v1/drivers/"+driver.ID+"/contributions", nil)
	if list := decode[[]handler.ContributionResponse](t, w); len(list) != 1 {
		t.Errorf("expected 1 contribution, got %v", list)
	}

	// Free again after completion.
	if w = f.do(t, http.MethodPost, "/v1/queue/tap", map[string]string{"rfid_uid": "R1"}); w.Code != http.StatusCreated {
		t.Errorf("tap after trip: expected 201, got %d", w.Code)
	}
}

func TestAPI_PendingBookingMatchedWhenDriverTaps(t *testing.T) {
	f := newAPIFixture()
	f.drivers.AddDriver(&domain.Driver{ID: "d1", Name: "Ben", RFIDUID: "R1", CanGoOnline: true})

	w := f.do(t, http.MethodPost, "/v1/bookings", map[string]any{
		"customer_id": "cust-1", "pickup_location": "Market", "destination": "Plaza",
	})
	created := decode[handler.CreateBookingResponse](t, w)
	if created.DriverAssigned || created.Status != "PENDING" {
		t.Fatalf("expected PENDING, got %+v", created)
	}

	f.do(t, http.MethodPost, "/v1/queue/tap", map[string]string{"rfid_uid": "R1"})

	w = f.do(t, http.MethodGet, "/v1/bookings/"+created.ID, nil)
	got := decode[handler.BookingResponse](t, w)
	if got.Status != "ACCEPTED" || got.AssignedDriverID != "d1" {
		t.Errorf("expected booking matched on tap, got %+v", got)
	}
}

func TestAPI_ErrorStatusCodes(t *testing.T) {
	f := newAPIFixture()
	f.drivers.AddDriver(&domain.Driver{ID: "d1", RFIDUID: "R1", CanGoOnline: true})
	f.drivers.AddDriver(&domain.Driver{ID: "d9", RFIDUID: "R9", CanGoOnline: false})
	b := pendingBooking("b1", time.Now())
	b.Status = domain.BookingStatusAccepted
	b.AssignedDriverID = "d1"
	f.bookings.AddBooking(b)
	f.bookings.AddBooking(pendingBooking("b2", time.Now()))

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown rfid", http.MethodPost, "/v1/queue/tap", map[string]string{"rfid_uid": "NOPE"}, http.StatusNotFound},
		{"blank rfid", http.MethodPost, "/v1/queue/tap", map[string]string{"rfid_uid": ""}, http.StatusBadRequest},
		{"suspended driver", http.MethodPost, "/v1/queue/tap", map[string]string{"rfid_uid": "R9"}, http.StatusForbidden},
		{"leave when not queued", http.MethodDelete, "/v1/queue/d1", nil, http.StatusNotFound},
		{"booking not found", http.MethodGet, "/v1/bookings/missing", nil, http.StatusNotFound},
		{"missing locations", http.MethodPost, "/v1/bookings", map[string]string{"customer_id": "c"}, http.StatusBadRequest},
		{"wrong driver", http.MethodPost, "/v1/bookings/b1/arrive", map[string]string{"driver_id": "d2"}, http.StatusForbidden},
		{"complete before start", http.MethodPost, "/v1/bookings/b1/complete", map[string]string{"driver_id": "d1"}, http.StatusConflict},
		{"match with empty queue", http.MethodPost, "/v1/bookings/b2/match", nil, http.StatusServiceUnavailable},
		{"match accepted booking", http.MethodPost, "/v1/bookings/b1/match", nil, http.StatusConflict},
		{"bad payment mode", http.MethodPut, "/v1/drivers/d1/payment-mode", map[string]string{"payment_mode": "weekly"}, http.StatusBadRequest},
		{"rfid in use", http.MethodPut, "/v1/drivers/d1/rfid", map[string]string{"rfid_uid": "R9"}, http.StatusConflict},
		{"bad discount", http.MethodPost, "/v1/passengers/register", map[string]string{"name": "A", "phone": "1", "discount_type": "VIP"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestAPI_CancelBooking(t *testing.T) {
	f := newAPIFixture()
	f.bookings.AddBooking(pendingBooking("b1", time.Now()))

	w := f.do(t, http.MethodPost, "/v1/bookings/b1/cancel", map[string]string{"reason": "found a ride"})
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", w.Code, w.Body.String())
	}
	got := decode[handler.BookingResponse](t, w)
	if got.Status != "CANCELLED" || got.CancelReason != "found a ride" {
		t.Errorf("unexpected booking: %+v", got)
	}

	if w = f.do(t, http.MethodPost, "/v1/bookings/b1/cancel", nil); w.Code != http.StatusConflict {
		t.Errorf("second cancel: expected 409, got %d", w.Code)
	}
}

func TestAPI_PassengerFee(t *testing.T) {
	f := newAPIFixture()

	w := f.do(t, http.MethodPost, "/v1/passengers/register", map[string]string{
		"name": "Stu", "phone": "0918", "discount_type": "STUDENT",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	p := decode[handler.PassengerResponse](t, w)

	w = f.do(t, http.MethodGet, "/v1/passengers/"+p.ID+"/fee", nil)
	if fee := decode[handler.FeeResponse](t, w); fee.ConvenienceFee != service.StandardConvenienceFee {
		t.Errorf("unverified discount should pay the standard fee, got %v", fee.ConvenienceFee)
	}

	w = f.do(t, http.MethodPut, "/v1/passengers/"+p.ID+"/discount", map[string]any{"discount_type": "STUDENT", "verified": true})
	if w.Code >= 300 {
		t.Fatalf("verify discount: %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/v1/passengers/"+p.ID+"/fee", nil)
	if fee := decode[handler.FeeResponse](t, w); fee.ConvenienceFee != service.StudentConvenienceFee {
		t.Errorf("expected student fee, got %v", fee.ConvenienceFee)
	}
}

func TestAPI_StatusWebSocket(t *testing.T) {
	f := newAPIFixture()
	f.drivers.AddDriver(&domain.Driver{ID: "d1", RFIDUID: "R1", CanGoOnline: true})

	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/drivers/d1/status/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var status domain.DriverStatus
	if err := conn.ReadJSON(&status); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if status.Online {
		t.Fatal("driver should start offline")
	}

	if _, err := service.NewQueueService(f.queue, f.drivers, NewMockBookingIndexRepository(), nil, nil, 0).JoinQueue(context.Background(), "R1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := conn.ReadJSON(&status); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if !status.Online || status.Position != 1 {
		t.Errorf("expected online at position 1, got %+v", status)
	}
}

func TestAPI_StatusWebSocketUnknownDriver(t *testing.T) {
	f := newAPIFixture()
	w := f.do(t, http.MethodGet, "/v1/drivers/ghost/status/ws", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 before upgrade, got %d", w.Code)
	}
}
