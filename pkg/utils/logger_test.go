package utils

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

type slotStub struct{}

func (slotStub) String() string { return "20250610-1" }

func TestNewLoggerWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "crlwatch.log")
	l, err := NewLogger(LogConfig{Level: "debug", Format: "json", FileLocation: path}, "crlwatch", "test")
	if err != nil {
		t.Fatal(err)
	}

	l.WithComponent("snapshot").Info("cache refreshed")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}

	if line["message"] != "cache refreshed" {
		t.Errorf("message = %v", line["message"])
	}
	if line["severity"] != "info" {
		t.Errorf("severity = %v", line["severity"])
	}
	if line["component"] != "snapshot" {
		t.Errorf("component = %v", line["component"])
	}
	if line["service"] != "crlwatch" || line["version"] != "test" {
		t.Errorf("run fields = %v / %v", line["service"], line["version"])
	}
	if line["hostname"] == nil || line["hostname"] == "" {
		t.Error("hostname field missing")
	}
}

func TestNewLoggerLevelFallback(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "chatty", EnableConsole: true}, "crlwatch", "test")
	if err != nil {
		t.Fatal(err)
	}
	if l.Level != logrus.InfoLevel {
		t.Errorf("unknown level should fall back to info, got %v", l.Level)
	}
}

func TestLoggerWithSlot(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "info", Format: "json", EnableConsole: true}, "crlwatch", "test")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	l.SetOutput(&buf)

	l.WithSlot(slotStub{}).Warn("slot left unfetched")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if line["slot"] != "20250610-1" {
		t.Errorf("slot = %v", line["slot"])
	}
	if line["severity"] != "warning" {
		t.Errorf("severity = %v", line["severity"])
	}
}

func TestLoggerCloseWithoutFileSink(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "info", EnableConsole: true}, "crlwatch", "test")
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("close without file sink: %v", err)
	}
}
