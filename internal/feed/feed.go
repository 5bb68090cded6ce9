// Package feed pushes fresh transaction snapshots to subscribers whenever
// the stored transaction set changes.
package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rewired-gh/salesmap/internal/logger"
	"github.com/rewired-gh/salesmap/internal/models"
	"github.com/rewired-gh/salesmap/internal/storage"
)

var log = logger.Named("feed")

// Store is the subset of storage the feed reads from.
type Store interface {
	Revision(ctx context.Context) (storage.Revision, error)
	ListTransactions(ctx context.Context) ([]models.Transaction, error)
}

// Snapshot is the full transaction set at one revision.
type Snapshot struct {
	Transactions []models.Transaction
	Revision     storage.Revision
	LoadedAt     time.Time
}

// Handler receives snapshots. Handlers run synchronously on the publishing
// goroutine and must not retain or mutate the transaction slice.
type Handler func(Snapshot)

type Feed struct {
	store Store

	mu      sync.Mutex
	subs    map[uint64]Handler
	nextID  uint64
	last    storage.Revision
	hasLast bool
	current *Snapshot

	refreshMu sync.Mutex
}

func New(store Store) *Feed {
	return &Feed{
		store: store,
		subs:  make(map[uint64]Handler),
	}
}

// Subscribe registers h and returns a function that removes it. If a
// snapshot has already been loaded, h receives it immediately.
func (f *Feed) Subscribe(h Handler) (unsubscribe func()) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = h
	current := f.current
	f.mu.Unlock()

	if current != nil {
		h(*current)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Current returns the last published snapshot.
func (f *Feed) Current() (Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return Snapshot{}, false
	}
	return *f.current, true
}

// Refresh reloads the transaction set and publishes it when the store
// revision differs from the last published one. It reports whether a
// snapshot was published.
func (f *Feed) Refresh(ctx context.Context) (bool, error) {
	f.refreshMu.Lock()
	defer f.refreshMu.Unlock()

	rev, err := f.store.Revision(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read store revision: %w", err)
	}

	f.mu.Lock()
	unchanged := f.hasLast && rev == f.last
	f.mu.Unlock()
	if unchanged {
		return false, nil
	}

	txs, err := f.store.ListTransactions(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load transactions: %w", err)
	}

	snap := Snapshot{Transactions: txs, Revision: rev, LoadedAt: time.Now()}

	f.mu.Lock()
	f.last = rev
	f.hasLast = true
	f.current = &snap
	ids := make([]uint64, 0, len(f.subs))
	for id := range f.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, f.subs[id])
	}
	f.mu.Unlock()

	log.Debug("Publishing snapshot of %d transactions to %d subscribers", len(txs), len(handlers))
	for _, h := range handlers {
		h(snap)
	}
	return true, nil
}

// Run polls the store every interval until ctx is cancelled.
func (f *Feed) Run(ctx context.Context, interval time.Duration) {
	if _, err := f.Refresh(ctx); err != nil {
		log.Warn("Initial refresh failed: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("Feed stopped")
			return
		case <-ticker.C:
			if _, err := f.Refresh(ctx); err != nil {
				log.Warn("Refresh failed: %v", err)
			}
		}
	}
}
