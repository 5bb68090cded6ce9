package models

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestTransactionValidate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		tx      Transaction
		wantErr bool
	}{
		{
			name: "valid transaction",
			tx: Transaction{
				ID:            "tx-1",
				VendorID:      "vendor-1",
				Amount:        25000,
				PaymentMethod: PaymentCash,
				Timestamp:     now,
				Location:      &LatLng{Lat: -6.9, Lng: 107.6},
				CreatedAt:     now,
			},
			wantErr: false,
		},
		{
			name: "missing location and timestamp is still storable",
			tx: Transaction{
				ID:        "tx-2",
				Amount:    1000,
				CreatedAt: now,
			},
			wantErr: false,
		},
		{
			name:    "empty ID",
			tx:      Transaction{Amount: 1000, CreatedAt: now},
			wantErr: true,
		},
		{
			name:    "negative amount",
			tx:      Transaction{ID: "tx-3", Amount: -1, CreatedAt: now},
			wantErr: true,
		},
		{
			name:    "NaN amount",
			tx:      Transaction{ID: "tx-4", Amount: math.NaN(), CreatedAt: now},
			wantErr: true,
		},
		{
			name:    "unknown payment method",
			tx:      Transaction{ID: "tx-5", Amount: 1000, PaymentMethod: "card", CreatedAt: now},
			wantErr: true,
		},
		{
			name:    "missing created at",
			tx:      Transaction{ID: "tx-6", Amount: 1000},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tx.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Transaction.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTransaction) {
				t.Errorf("error %v should wrap ErrInvalidTransaction", err)
			}
		})
	}
}

func TestAnalysisResultBusy(t *testing.T) {
	r := &AnalysisResult{}
	if _, ok := r.Busy(); ok {
		t.Error("expected no BUSY tier on empty result")
	}

	r.Tiers = []Tier{
		{Kind: TierNormal, ClusterResult: ClusterResult{TotalRevenue: 10}},
		{Kind: TierBusy, ClusterResult: ClusterResult{TotalRevenue: 99}},
	}
	busy, ok := r.Busy()
	if !ok {
		t.Fatal("expected BUSY tier")
	}
	if busy.TotalRevenue != 99 {
		t.Errorf("got revenue %v, want 99", busy.TotalRevenue)
	}
}

func TestLocationKindString(t *testing.T) {
	if LocationCoordinateArray.String() != "coordinate_array" {
		t.Errorf("unexpected name %q", LocationCoordinateArray.String())
	}
	if LocationKind(42).String() != "none" {
		t.Errorf("unknown kinds should render as none")
	}
}
