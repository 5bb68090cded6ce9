package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/rewired-gh/salesmap/internal/models"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(100, ":memory:")
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testTransaction(id string, createdAt time.Time) *models.Transaction {
	return &models.Transaction{
		ID:            id,
		VendorID:      "vendor-1",
		Amount:        25000,
		PaymentMethod: models.PaymentCash,
		Timestamp:     createdAt,
		Location:      &models.LatLng{Lat: -6.9, Lng: 107.6},
		CreatedAt:     createdAt,
	}
}

func TestStorage_AddAndGetTransaction(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now()
	tx := testTransaction("tx-1", now)

	inserted, err := s.AddTransaction(tx)
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if !inserted {
		t.Error("expected first insert to be reported")
	}

	got, err := s.GetTransaction("tx-1")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.Amount != tx.Amount || got.VendorID != tx.VendorID || got.PaymentMethod != tx.PaymentMethod {
		t.Errorf("got %+v, want %+v", got, tx)
	}
	if got.Location == nil || *got.Location != *tx.Location {
		t.Errorf("location = %v, want %v", got.Location, tx.Location)
	}
	if !got.Timestamp.Equal(time.Unix(0, now.UnixNano())) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, now)
	}
}

func TestStorage_AddTransaction_Duplicate(t *testing.T) {
	s := newTestStorage(t)
	tx := testTransaction("tx-1", time.Now())
	if _, err := s.AddTransaction(tx); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	tx.Amount = 99
	inserted, err := s.AddTransaction(tx)
	if err != nil {
		t.Fatalf("AddTransaction duplicate: %v", err)
	}
	if inserted {
		t.Error("duplicate insert should be ignored")
	}
	got, _ := s.GetTransaction("tx-1")
	if got.Amount != 25000 {
		t.Errorf("duplicate overwrote amount: %v", got.Amount)
	}
}

func TestStorage_AddTransaction_Invalid(t *testing.T) {
	s := newTestStorage(t)
	tx := testTransaction("", time.Now())
	if _, err := s.AddTransaction(tx); err == nil {
		t.Error("expected validation error for empty ID")
	}
}

func TestStorage_AddTransactions_Batch(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now()
	if _, err := s.AddTransaction(testTransaction("tx-1", now)); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	batch := []models.Transaction{
		*testTransaction("tx-1", now),
		*testTransaction("tx-2", now),
		*testTransaction("tx-2", now),
	}
	inserted, err := s.AddTransactions(batch)
	if err != nil {
		t.Fatalf("AddTransactions: %v", err)
	}
	want := []bool{false, true, false}
	for i := range want {
		if inserted[i] != want[i] {
			t.Errorf("inserted[%d] = %v, want %v", i, inserted[i], want[i])
		}
	}
}

func TestStorage_AddTransactions_InvalidRejectsWholeBatch(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now()
	bad := testTransaction("tx-bad", now)
	bad.Amount = math.NaN()

	_, err := s.AddTransactions([]models.Transaction{*testTransaction("tx-ok", now), *bad})
	if !errors.Is(err, models.ErrInvalidTransaction) {
		t.Fatalf("error = %v, want ErrInvalidTransaction", err)
	}
	rev, err := s.Revision(context.Background())
	if err != nil {
		t.Fatalf("Revision: %v", err)
	}
	if rev.Count != 0 {
		t.Errorf("stored %d transactions, want 0", rev.Count)
	}
}

func TestStorage_NullableFields(t *testing.T) {
	s := newTestStorage(t)
	tx := &models.Transaction{ID: "bare", Amount: 1000, CreatedAt: time.Now()}
	if _, err := s.AddTransaction(tx); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	got, err := s.GetTransaction("bare")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if !got.Timestamp.IsZero() {
		t.Errorf("timestamp = %v, want zero", got.Timestamp)
	}
	if got.Location != nil {
		t.Errorf("location = %v, want nil", got.Location)
	}
}

func TestStorage_GetTransaction_NotFound(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.GetTransaction("nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStorage_ListTransactions(t *testing.T) {
	s := newTestStorage(t)
	base := time.Now()
	for i := 0; i < 3; i++ {
		// Insert newest first to check ordering.
		tx := testTransaction(fmt.Sprintf("tx-%d", i), base.Add(-time.Duration(i)*time.Minute))
		if _, err := s.AddTransaction(tx); err != nil {
			t.Fatalf("AddTransaction: %v", err)
		}
	}
	txs, err := s.ListTransactions(context.Background())
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("got %d transactions, want 3", len(txs))
	}
	if txs[0].ID != "tx-2" || txs[2].ID != "tx-0" {
		t.Errorf("expected oldest first, got %s..%s", txs[0].ID, txs[2].ID)
	}
}

func TestStorage_ListTransactions_Empty(t *testing.T) {
	s := newTestStorage(t)
	txs, err := s.ListTransactions(context.Background())
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if txs == nil || len(txs) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", txs)
	}
}

func TestStorage_CapAndRotate(t *testing.T) {
	s, err := New(5, ":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	now := time.Now()
	for i := 0; i < 10; i++ {
		tx := testTransaction(fmt.Sprintf("tx-%d", i), now.Add(-time.Duration(10-i)*time.Second))
		if _, err := s.AddTransaction(tx); err != nil {
			t.Fatalf("AddTransaction: %v", err)
		}
	}
	if err := s.RotateTransactions(); err != nil {
		t.Fatalf("RotateTransactions: %v", err)
	}
	txs, _ := s.ListTransactions(context.Background())
	if len(txs) != 5 {
		t.Fatalf("got %d transactions after cap, want 5", len(txs))
	}
	if txs[0].ID != "tx-5" {
		t.Errorf("oldest kept = %s, want tx-5", txs[0].ID)
	}
}

func TestStorage_Revision(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	empty, err := s.Revision(ctx)
	if err != nil {
		t.Fatalf("Revision: %v", err)
	}
	if empty.Count != 0 {
		t.Errorf("count = %d, want 0", empty.Count)
	}

	if _, err := s.AddTransaction(testTransaction("tx-1", time.Now())); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	after, _ := s.Revision(ctx)
	if after == empty {
		t.Error("revision did not change after insert")
	}

	again, _ := s.Revision(ctx)
	if again != after {
		t.Error("revision changed without writes")
	}
}

func TestStorage_Runs(t *testing.T) {
	s := newTestStorage(t)

	if _, err := s.LatestRun("today", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	now := time.Now()
	first := &models.AnalysisRun{Mode: "today", TotalInput: 10, Analyzed: 8, HasBusy: true,
		BusyLat: -6.9, BusyLng: 107.6, BusyRevenue: 500000, Notified: true, CreatedAt: now.Add(-time.Hour)}
	second := &models.AnalysisRun{Mode: "today", TotalInput: 12, Analyzed: 9, HasBusy: true,
		BusyLat: -6.91, BusyLng: 107.61, BusyRevenue: 600000, CreatedAt: now}
	other := &models.AnalysisRun{Mode: "week", TotalInput: 50, CreatedAt: now}

	for _, r := range []*models.AnalysisRun{first, second, other} {
		if err := s.SaveRun(r); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
		if r.ID == "" {
			t.Error("SaveRun did not assign an ID")
		}
	}

	latest, err := s.LatestRun("today", false)
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if latest.ID != second.ID || latest.BusyRevenue != 600000 {
		t.Errorf("latest = %+v, want second run", latest)
	}

	notified, err := s.LatestRun("today", true)
	if err != nil {
		t.Fatalf("LatestRun notified: %v", err)
	}
	if notified.ID != first.ID || !notified.Notified || !notified.HasBusy {
		t.Errorf("latest notified = %+v, want first run", notified)
	}
}
