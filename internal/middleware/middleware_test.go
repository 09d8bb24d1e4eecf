package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path, remote string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	if remote != "" {
		req.RemoteAddr = remote
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_PerClientBurst(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		if w := serve(r, http.MethodGet, "/ping", "10.0.0.1:1000", nil); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
	if w := serve(r, http.MethodGet, "/ping", "10.0.0.1:1000", nil); w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 over burst, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/ping", "10.0.0.2:1000", nil); w.Code != http.StatusOK {
		t.Errorf("other clients have their own bucket, got %d", w.Code)
	}
}

func TestRateLimiter_SweepsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.getLimiter("10.0.0.1")
	now = now.Add(visitorIdleTTL + time.Second)
	rl.getLimiter("10.0.0.2")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.visitors["10.0.0.1"]; ok {
		t.Error("idle visitor should be dropped")
	}
	if len(rl.visitors) != 1 {
		t.Errorf("expected 1 visitor, got %d", len(rl.visitors))
	}
}

func TestRateLimiter_SweepsAtMostOncePerInterval(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.getLimiter("10.0.0.1")
	rl.mu.Lock()
	rl.visitors["10.0.0.1"].lastSeen = now.Add(-2 * visitorIdleTTL)
	rl.mu.Unlock()

	now = now.Add(time.Second)
	rl.getLimiter("10.0.0.2")
	rl.mu.Lock()
	_, kept := rl.visitors["10.0.0.1"]
	rl.mu.Unlock()
	if !kept {
		t.Fatal("no sweep expected within the sweep interval")
	}

	now = now.Add(sweepInterval)
	rl.getLimiter("10.0.0.3")
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.visitors["10.0.0.1"]; ok {
		t.Error("idle visitor should be dropped on the next sweep")
	}
	if len(rl.visitors) != 2 {
		t.Errorf("expected 2 visitors, got %d", len(rl.visitors))
	}
}

func newIdempotentRouter(t *testing.T, status int) (*gin.Engine, *miniredis.Miniredis, *int32) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var calls int32
	r := gin.New()
	r.Use(IdempotencyMiddleware(client))
	handler := func(c *gin.Context) {
		n := atomic.AddInt32(&calls, 1)
		c.JSON(status, gin.H{"call": n})
	}
	r.POST("/v1/queue/tap", handler)
	r.GET("/v1/queue", handler)
	return r, mr, &calls
}

func TestIdempotency_ReplaysResponse(t *testing.T) {
	r, _, calls := newIdempotentRouter(t, http.StatusCreated)
	key := map[string]string{"Idempotency-Key": "tap-1"}

	first := serve(r, http.MethodPost, "/v1/queue/tap", "", key)
	second := serve(r, http.MethodPost, "/v1/queue/tap", "", key)

	if atomic.LoadInt32(calls) != 1 {
		t.Fatalf("handler should run once, ran %d times", *calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Errorf("expected replay of %d %s, got %d %s", first.Code, first.Body.String(), second.Code, second.Body.String())
	}

	serve(r, http.MethodPost, "/v1/queue/tap", "", map[string]string{"Idempotency-Key": "tap-2"})
	if atomic.LoadInt32(calls) != 2 {
		t.Errorf("a new key should run the handler, calls=%d", *calls)
	}
}

func TestIdempotency_SkipsWithoutKeyAndForReads(t *testing.T) {
	r, _, calls := newIdempotentRouter(t, http.StatusOK)

	serve(r, http.MethodPost, "/v1/queue/tap", "", nil)
	serve(r, http.MethodPost, "/v1/queue/tap", "", nil)
	serve(r, http.MethodGet, "/v1/queue", "", map[string]string{"Idempotency-Key": "k"})
	serve(r, http.MethodGet, "/v1/queue", "", map[string]string{"Idempotency-Key": "k"})

	if n := atomic.LoadInt32(calls); n != 4 {
		t.Errorf("expected 4 handler calls, got %d", n)
	}
}

func TestIdempotency_ServerErrorFreesKey(t *testing.T) {
	r, mr, calls := newIdempotentRouter(t, http.StatusInternalServerError)
	key := map[string]string{"Idempotency-Key": "tap-1"}

	serve(r, http.MethodPost, "/v1/queue/tap", "", key)
	if len(mr.Keys()) != 0 {
		t.Errorf("5xx responses must not be stored, keys=%v", mr.Keys())
	}
	serve(r, http.MethodPost, "/v1/queue/tap", "", key)
	if n := atomic.LoadInt32(calls); n != 2 {
		t.Errorf("retry after 5xx should run the handler, calls=%d", n)
	}
}

func TestIdempotency_InFlightConflict(t *testing.T) {
	r, mr, calls := newIdempotentRouter(t, http.StatusCreated)
	if err := mr.Set("idempotency:POST:/v1/queue/tap:tap-1", inFlightMarker); err != nil {
		t.Fatal(err)
	}

	w := serve(r, http.MethodPost, "/v1/queue/tap", "", map[string]string{"Idempotency-Key": "tap-1"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 while in flight, got %d", w.Code)
	}
	if n := atomic.LoadInt32(calls); n != 0 {
		t.Errorf("handler must not run, calls=%d", n)
	}
}

func TestIdempotency_NilClient(t *testing.T) {
	var client *redis.Client
	r := gin.New()
	r.Use(IdempotencyMiddleware(client))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	if w := serve(r, http.MethodPost, "/x", "", map[string]string{"Idempotency-Key": "k"}); w.Code != http.StatusNoContent {
		t.Errorf("expected pass-through, got %d", w.Code)
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware())
	r.POST("/v1/bookings", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := serve(r, http.MethodOptions, "/v1/bookings", "", map[string]string{
		"Origin":                         "http://console.local",
		"Access-Control-Request-Method":  "POST",
		"Access-Control-Request-Headers": "Idempotency-Key",
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
}
