package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/salesmap/internal/models"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"Hello_World", "Hello\\_World"},
		{"Test*bold*", "Test\\*bold\\*"},
		{"Rp 1.250.000", "Rp 1\\.250\\.000"},
		{"[link](url)", "\\[link\\]\\(url\\)"},
		{"-6.91750,107.61910", "\\-6\\.91750,107\\.61910"},
		{"`code`", "\\`code\\`"},
		{">blockquote", "\\>blockquote"},
		{"#header", "\\#header"},
		{"=equal|pipe", "\\=equal\\|pipe"},
		{"{brace}", "\\{brace\\}"},
		{"end!", "end\\!"},
		{"", ""},
		{"_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeMarkdownV2(tt.input)
			if result != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatRupiah(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{0, "Rp 0"},
		{999, "Rp 999"},
		{1000, "Rp 1.000"},
		{25000.4, "Rp 25.000"},
		{1250000, "Rp 1.250.000"},
	}
	for _, tt := range tests {
		if got := formatRupiah(tt.amount); got != tt.want {
			t.Errorf("formatRupiah(%v) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func TestFormatDistance(t *testing.T) {
	if got := formatDistance(250.4); got != "250 m" {
		t.Errorf("formatDistance(250.4) = %q", got)
	}
	if got := formatDistance(1530); got != "1.5 km" {
		t.Errorf("formatDistance(1530) = %q", got)
	}
}

func TestFormatSummary(t *testing.T) {
	result := &models.AnalysisResult{
		Mode: "today",
		Tiers: []models.Tier{
			{Kind: models.TierBusy, Label: "🔥 Busy", ClusterResult: models.ClusterResult{Lat: -6.9, Lng: 107.6, TotalRevenue: 120000, PointCount: 4}},
			{Kind: models.TierQuiet, Label: "🧊 Quiet", ClusterResult: models.ClusterResult{Lat: -6.95, Lng: 107.65, TotalRevenue: 5000, PointCount: 1}},
		},
		Diagnostics: models.Diagnostics{TotalInput: 7, Analyzed: 5, DroppedInvalidLocation: 2},
	}

	msg := formatSummary(result)
	for _, want := range []string{"*Rp 120\\.000*", "*Rp 5\\.000*", "5 of 7 transactions analyzed", "2 dropped", "\\(today\\)"} {
		if !strings.Contains(msg, want) {
			t.Errorf("summary missing %q:\n%s", want, msg)
		}
	}
	if strings.Index(msg, "Busy") > strings.Index(msg, "Quiet") {
		t.Error("tiers should be listed in rank order")
	}
}

func TestFormatSummary_NoTiers(t *testing.T) {
	msg := formatSummary(&models.AnalysisResult{Mode: "week", Diagnostics: models.Diagnostics{Analyzed: 3}})
	if !strings.Contains(msg, "Not enough located transactions") || !strings.Contains(msg, "3 analyzed") {
		t.Errorf("unexpected message: %s", msg)
	}
}

func TestFormatShift(t *testing.T) {
	busy := models.Tier{Kind: models.TierBusy, Label: "🔥 Busy", ClusterResult: models.ClusterResult{
		Lat: -6.9, Lng: 107.6, TotalRevenue: 1000000, PointCount: 12, RadiusMeters: 420,
	}}
	detected := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	first := formatShift(models.Shift{Mode: "today", Busy: busy, DetectedAt: detected})
	if !strings.Contains(first, "New busy spot") {
		t.Errorf("first appearance should be announced as new:\n%s", first)
	}
	if strings.Contains(first, "Moved") {
		t.Errorf("first appearance should not mention a move:\n%s", first)
	}

	moved := formatShift(models.Shift{
		Mode:           "today",
		Busy:           busy,
		Previous:       &models.LatLng{Lat: -6.92, Lng: 107.62},
		DistanceMeters: 3100,
		RevenueZScore:  2.5,
		DetectedAt:     detected,
	})
	for _, want := range []string{"Busy spot moved", "Moved 3\\.1 km", "Rp 1\\.000\\.000", "2\\.5 σ", "2026\\-03\\-01 12:30"} {
		if !strings.Contains(moved, want) {
			t.Errorf("shift message missing %q:\n%s", want, moved)
		}
	}
}

func TestNewClient_InvalidChatID(t *testing.T) {
	_, err := NewClient("", "not-a-number", 3, time.Second)
	if err == nil {
		t.Error("Expected error for invalid chat ID, got nil")
	}
}
