package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rewired-gh/salesmap/internal/models"
	"github.com/rewired-gh/salesmap/internal/storage"
)

func newTestFeed(t *testing.T) (*Feed, *storage.Storage) {
	t.Helper()
	s, err := storage.New(100, ":memory:")
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return New(s), s
}

func addTx(t *testing.T, s *storage.Storage, id string) {
	t.Helper()
	now := time.Now()
	_, err := s.AddTransaction(&models.Transaction{
		ID:        id,
		Amount:    1000,
		Timestamp: now,
		Location:  &models.LatLng{Lat: -6.9, Lng: 107.6},
		CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
}

func TestFeed_PublishesOnChange(t *testing.T) {
	f, s := newTestFeed(t)
	ctx := context.Background()

	var got []int
	unsub := f.Subscribe(func(snap Snapshot) {
		got = append(got, len(snap.Transactions))
	})
	defer unsub()

	published, err := f.Refresh(ctx)
	if err != nil || !published {
		t.Fatalf("first refresh: published=%v err=%v", published, err)
	}

	published, err = f.Refresh(ctx)
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if published {
		t.Error("refresh without writes should not publish")
	}

	addTx(t, s, "tx-1")
	addTx(t, s, "tx-2")
	if published, _ := f.Refresh(ctx); !published {
		t.Error("refresh after writes should publish")
	}

	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("handler saw %v, want [0 2]", got)
	}
}

func TestFeed_Unsubscribe(t *testing.T) {
	f, s := newTestFeed(t)
	ctx := context.Background()

	calls := 0
	unsub := f.Subscribe(func(Snapshot) { calls++ })
	if _, err := f.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	unsub()
	unsub() // idempotent

	addTx(t, s, "tx-1")
	if _, err := f.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}

func TestFeed_LateSubscriberGetsCurrent(t *testing.T) {
	f, s := newTestFeed(t)
	addTx(t, s, "tx-1")
	if _, err := f.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	var n int
	unsub := f.Subscribe(func(snap Snapshot) { n = len(snap.Transactions) })
	defer unsub()
	if n != 1 {
		t.Errorf("late subscriber saw %d transactions, want 1", n)
	}

	cur, ok := f.Current()
	if !ok || cur.Revision.Count != 1 {
		t.Errorf("Current() = %+v, %v", cur, ok)
	}
}

type failingStore struct{}

func (failingStore) Revision(context.Context) (storage.Revision, error) {
	return storage.Revision{}, errors.New("db down")
}

func (failingStore) ListTransactions(context.Context) ([]models.Transaction, error) {
	return nil, errors.New("db down")
}

func TestFeed_RefreshError(t *testing.T) {
	f := New(failingStore{})
	if _, err := f.Refresh(context.Background()); err == nil {
		t.Error("expected error from failing store")
	}
	if _, ok := f.Current(); ok {
		t.Error("no snapshot should be current after a failed refresh")
	}
}

func TestFeed_RunStopsOnCancel(t *testing.T) {
	f, _ := newTestFeed(t)
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	seen := 0
	f.Subscribe(func(Snapshot) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		f.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if seen != 1 {
		t.Errorf("handler called %d times, want 1 (initial snapshot only)", seen)
	}
}
