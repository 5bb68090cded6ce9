package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warn", WarnLevel},
		{"error", ErrorLevel},
		{"verbose", InfoLevel},
		{"", InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "info", "text")
	t.Cleanup(func() { Init("info", "text") })

	Debug("hidden %d", 1)
	Info("visible %d", 2)
	Named("feed").Warn("refresh failed")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug message should be filtered at info level")
	}
	if !strings.Contains(out, "[INFO] visible 2") {
		t.Errorf("missing info line in %q", out)
	}
	if !strings.Contains(out, "[WARN] [feed] refresh failed") {
		t.Errorf("missing component line in %q", out)
	}
	if !strings.Contains(out, "logger_test.go") {
		t.Errorf("text format should include the caller file, got %q", out)
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "debug", "json")
	t.Cleanup(func() { Init("info", "text") })

	Named("server").Error("bind %s", ":8080")

	var entry map[string]string
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("output is not one JSON object: %v (%q)", err, buf.String())
	}
	if entry["level"] != "error" || entry["component"] != "server" || entry["msg"] != "bind :8080" {
		t.Errorf("unexpected entry %+v", entry)
	}
	if entry["time"] == "" {
		t.Error("missing time field")
	}
}
