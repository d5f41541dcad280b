package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("warn", "text", &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "file", "a.png")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Info record should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "file=a.png") {
		t.Errorf("Unexpected output %q", out)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("debug", "json", &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("crop computed", "crop", "(0,0,10,10)")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("Expected a JSON record: %v", err)
	}
	if rec["msg"] != "crop computed" || rec["crop"] != "(0,0,10,10)" {
		t.Errorf("Unexpected record %v", rec)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New("info", "xml", &bytes.Buffer{}); err == nil {
		t.Error("Expected error for unknown format")
	}
}
