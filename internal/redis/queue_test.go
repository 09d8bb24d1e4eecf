package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"toda/internal/domain"
)

func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func entry(driverID, rfid string, ts int64) domain.QueueEntry {
	return domain.QueueEntry{
		DriverID:   driverID,
		DriverRFID: rfid,
		DriverName: "Driver " + driverID,
		TodaNumber: "T-01",
		Timestamp:  ts,
	}
}

func TestQueueStore_JoinListOrder(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	store := NewQueueStore(client)

	for _, e := range []domain.QueueEntry{entry("d2", "R2", 2000), entry("d1", "R1", 1000), entry("d3", "R3", 3000)} {
		if _, err := store.Join(ctx, e); err != nil {
			t.Fatalf("join %s: %v", e.DriverID, err)
		}
	}

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"d1", "d2", "d3"} {
		if entries[i].DriverID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, entries[i].DriverID)
		}
	}
	if entries[0].DriverRFID != "R1" || entries[0].Status != domain.QueueStatusWaiting || entries[0].TodaNumber != "T-01" {
		t.Errorf("fields not round-tripped: %+v", entries[0])
	}

	n, _ := store.Len(ctx)
	if n != 3 {
		t.Errorf("expected len 3, got %d", n)
	}
}

func TestQueueStore_JoinBumpsCollidingTimestamp(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	store := NewQueueStore(client)

	if _, err := store.Join(ctx, entry("d1", "R1", 1000)); err != nil {
		t.Fatal(err)
	}
	got, err := store.Join(ctx, entry("d2", "R2", 1000))
	if err != nil {
		t.Fatal(err)
	}
	if got.Timestamp != 1001 {
		t.Errorf("expected bumped timestamp 1001, got %d", got.Timestamp)
	}
}

func TestQueueStore_OneSlotPerDriver(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	store := NewQueueStore(client)

	if _, err := store.Join(ctx, entry("d1", "R1", 1000)); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Join(ctx, entry("d1", "R1", 2000)); !errors.Is(err, ErrAlreadyQueued) {
		t.Fatalf("expected ErrAlreadyQueued, got %v", err)
	}
}

func TestQueueStore_LeaveAndSetStatus(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	store := NewQueueStore(client)

	if _, err := store.Join(ctx, entry("d1", "R1", 1000)); err != nil {
		t.Fatal(err)
	}

	if err := store.SetStatus(ctx, "d1", domain.QueueStatusPaused); err != nil {
		t.Fatalf("set status: %v", err)
	}
	entries, _ := store.List(ctx)
	if entries[0].Status != domain.QueueStatusPaused || entries[0].Timestamp != 1000 {
		t.Errorf("pause should keep the timestamp: %+v", entries[0])
	}

	if err := store.Leave(ctx, "d1"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := store.Leave(ctx, "d1"); !errors.Is(err, ErrNotQueued) {
		t.Errorf("expected ErrNotQueued, got %v", err)
	}
	if err := store.SetStatus(ctx, "d1", domain.QueueStatusWaiting); !errors.Is(err, ErrNotQueued) {
		t.Errorf("expected ErrNotQueued, got %v", err)
	}

	// The slot is free again.
	if _, err := store.Join(ctx, entry("d1", "R1", 5000)); err != nil {
		t.Errorf("rejoin: %v", err)
	}
}

func TestQueueStore_ClaimOnlyWaiting(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	store := NewQueueStore(client)

	e1, _ := store.Join(ctx, entry("d1", "R1", 1000))
	e2, _ := store.Join(ctx, entry("d2", "R2", 2000))
	_ = store.SetStatus(ctx, "d2", domain.QueueStatusPaused)

	ok, err := store.Claim(ctx, e1)
	if err != nil || !ok {
		t.Fatalf("claim waiting entry: %v %v", ok, err)
	}
	ok, _ = store.Claim(ctx, e1)
	if ok {
		t.Error("an entry can be claimed only once")
	}
	ok, _ = store.Claim(ctx, e2)
	if ok {
		t.Error("paused entry must not be claimed")
	}

	// Claimed driver holds no slot and may rejoin.
	if _, err := store.Join(ctx, entry("d1", "R1", 3000)); err != nil {
		t.Errorf("rejoin after claim: %v", err)
	}
}

func TestQueueStore_RestoreKeepsTimestamp(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	store := NewQueueStore(client)

	e1, _ := store.Join(ctx, entry("d1", "R1", 1000))
	_, _ = store.Join(ctx, entry("d2", "R2", 2000))

	if ok, _ := store.Claim(ctx, e1); !ok {
		t.Fatal("claim failed")
	}
	if err := store.Restore(ctx, *e1); err != nil {
		t.Fatalf("restore: %v", err)
	}

	entries, _ := store.List(ctx)
	if len(entries) != 2 || entries[0].DriverID != "d1" || entries[0].Timestamp != 1000 {
		t.Errorf("restored entry should be back at the front: %+v", entries)
	}
}

func TestQueueStore_Subscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, _ := newTestClient(t)
	store := NewQueueStore(client)

	events, closeSub, err := store.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer closeSub()

	// Subscribe returns after Redis confirmed it, so the join is delivered.
	if _, err := store.Join(ctx, entry("d1", "R1", 1000)); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.Type != QueueEventJoined || ev.DriverID != "d1" || ev.Key != "1000" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestQueueStore_RestoreAfterTimestampTaken(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	store := NewQueueStore(client)

	e1, _ := store.Join(ctx, entry("d1", "R1", 1000))
	if ok, _ := store.Claim(ctx, e1); !ok {
		t.Fatal("claim failed")
	}
	if _, err := store.Join(ctx, entry("d2", "R2", 1000)); err != nil {
		t.Fatal(err)
	}

	if err := store.Restore(ctx, *e1); err != nil {
		t.Fatalf("restore: %v", err)
	}

	entries, _ := store.List(ctx)
	if len(entries) != 2 {
		t.Fatalf("restored driver must stay queued, got %+v", entries)
	}
	if entries[1].DriverID != "d1" || entries[1].Timestamp != 1001 {
		t.Errorf("expected d1 right after d2 at 1001, got %+v", entries[1])
	}
	if entries[1].Status != domain.QueueStatusWaiting {
		t.Errorf("restored entry should be waiting, got %s", entries[1].Status)
	}
}
