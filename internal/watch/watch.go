// Package watch follows the BUSY spot across feed snapshots and reports
// when it appears or moves.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rewired-gh/salesmap/internal/feed"
	"github.com/rewired-gh/salesmap/internal/geo"
	"github.com/rewired-gh/salesmap/internal/logger"
	"github.com/rewired-gh/salesmap/internal/models"
	"github.com/rewired-gh/salesmap/internal/storage"
)

var log = logger.Named("watch")

// ErrNoAnalysis is returned by Summary before the first snapshot arrives.
var ErrNoAnalysis = errors.New("no analysis yet")

type Config struct {
	Mode        string
	ShiftMeters float64
	Cooldown    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Mode:        "today",
		ShiftMeters: 500,
		Cooldown:    30 * time.Minute,
	}
}

// Analyzer runs the pipeline over a loaded transaction set.
type Analyzer interface {
	AnalyzeSnapshot(txs []models.Transaction, mode, date string) (*models.AnalysisResult, error)
}

// RunStore persists analysis summaries.
type RunStore interface {
	SaveRun(run *models.AnalysisRun) error
	LatestRun(mode string, notifiedOnly bool) (*models.AnalysisRun, error)
}

// Notifier delivers shifts.
type Notifier interface {
	SendShift(shift models.Shift) error
}

// Subscriber is the feed side of the watcher.
type Subscriber interface {
	Subscribe(h feed.Handler) (unsubscribe func())
}

type notifiedRecord struct {
	Location models.LatLng
	SentAt   time.Time
}

type Watcher struct {
	analyzer Analyzer
	store    RunStore
	notifier Notifier
	config   Config
	now      func() time.Time

	mu       sync.Mutex
	notified *notifiedRecord
	stats    runningStats
	latest   *models.AnalysisResult
}

// New creates a watcher. The last notified busy spot for the configured
// mode is restored from store so restarts do not re-announce it. notifier
// may be nil, in which case shifts are only logged.
func New(analyzer Analyzer, store RunStore, notifier Notifier, config Config) *Watcher {
	w := &Watcher{
		analyzer: analyzer,
		store:    store,
		notifier: notifier,
		config:   config,
		now:      time.Now,
	}

	run, err := store.LatestRun(config.Mode, true)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		log.Warn("Failed to load last notified run: %v", err)
	default:
		w.notified = &notifiedRecord{
			Location: models.LatLng{Lat: run.BusyLat, Lng: run.BusyLng},
			SentAt:   run.CreatedAt,
		}
		log.Info("Restored last busy spot (%.5f, %.5f) from %s",
			run.BusyLat, run.BusyLng, run.CreatedAt.Format(time.RFC3339))
	}

	return w
}

// Attach subscribes the watcher to feed snapshots.
func (w *Watcher) Attach(sub Subscriber) (unsubscribe func()) {
	return sub.Subscribe(func(snap feed.Snapshot) {
		if _, err := w.Process(snap.Transactions); err != nil {
			log.Error("Failed to process snapshot: %v", err)
		}
	})
}

// Latest returns the most recent analysis.
func (w *Watcher) Latest() (*models.AnalysisResult, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest, w.latest != nil
}

// Summary adapts Latest to a context-aware provider.
func (w *Watcher) Summary(ctx context.Context) (*models.AnalysisResult, error) {
	if result, ok := w.Latest(); ok {
		return result, nil
	}
	return nil, ErrNoAnalysis
}

// Process analyzes one snapshot, records the run and returns the shift it
// emitted, if any.
func (w *Watcher) Process(txs []models.Transaction) (*models.Shift, error) {
	result, err := w.analyzer.AnalyzeSnapshot(txs, w.config.Mode, "")
	if err != nil {
		return nil, fmt.Errorf("failed to analyze snapshot: %w", err)
	}

	now := w.now()
	run := &models.AnalysisRun{
		Mode:       w.config.Mode,
		TotalInput: result.Diagnostics.TotalInput,
		Analyzed:   result.Diagnostics.Analyzed,
		CreatedAt:  now,
	}

	w.mu.Lock()
	w.latest = result
	var shift *models.Shift
	if busy, ok := result.Busy(); ok {
		run.HasBusy = true
		run.BusyLat, run.BusyLng = busy.Lat, busy.Lng
		run.BusyRevenue = busy.TotalRevenue

		shift = w.detectShift(busy, now)
		w.stats.Update(busy.TotalRevenue)
	}
	w.mu.Unlock()

	// w.mu must not be held here: SendShift may sleep between retries.
	if shift != nil {
		log.Info("Busy spot at (%.5f, %.5f) revenue=%.0f moved=%.0fm",
			shift.Busy.Lat, shift.Busy.Lng, shift.Busy.TotalRevenue, shift.DistanceMeters)
		if w.deliver(*shift) {
			run.Notified = true
			w.mu.Lock()
			w.notified = &notifiedRecord{
				Location: models.LatLng{Lat: shift.Busy.Lat, Lng: shift.Busy.Lng},
				SentAt:   now,
			}
			w.mu.Unlock()
		}
	}

	if err := w.store.SaveRun(run); err != nil {
		log.Warn("Failed to save analysis run: %v", err)
	}
	return shift, nil
}

// detectShift compares busy against the last notified spot. A spot that
// moved within the cooldown stays silent.
func (w *Watcher) detectShift(busy models.Tier, now time.Time) *models.Shift {
	shift := &models.Shift{
		Mode:          w.config.Mode,
		Busy:          busy,
		RevenueZScore: w.stats.ZScore(busy.TotalRevenue),
		DetectedAt:    now,
	}

	rec := w.notified
	if rec == nil {
		return shift
	}

	dist := geo.DistanceMeters(rec.Location.Lat, rec.Location.Lng, busy.Lat, busy.Lng)
	if dist <= w.config.ShiftMeters {
		return nil
	}
	if now.Sub(rec.SentAt) < w.config.Cooldown {
		log.Debug("Busy spot moved %.0fm but last notification was %s ago", dist, now.Sub(rec.SentAt).Round(time.Second))
		return nil
	}

	prev := rec.Location
	shift.Previous = &prev
	shift.DistanceMeters = dist
	return shift
}

func (w *Watcher) deliver(shift models.Shift) bool {
	if w.notifier == nil {
		return true
	}
	if err := w.notifier.SendShift(shift); err != nil {
		log.Error("Failed to send shift notification: %v", err)
		return false
	}
	return true
}
