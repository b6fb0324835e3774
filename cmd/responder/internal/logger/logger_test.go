package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestInit_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Format: "json", Output: &buf})
	t.Cleanup(func() { Init(Options{}) })

	Info("accepted connection", "conn", 7)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "accepted connection" || entry["conn"] != float64(7) {
		t.Errorf("entry = %v", entry)
	}
}

func TestInit_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Output: &buf})
	t.Cleanup(func() { Init(Options{}) })

	Debug("would block during read")
	if buf.Len() != 0 {
		t.Errorf("debug line written at info level: %q", buf.String())
	}

	Init(Options{Debug: true, Output: &buf})
	Debug("would block during read")
	if !strings.Contains(buf.String(), "would block during read") {
		t.Errorf("debug line missing at debug level: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "source=") {
		t.Errorf("debug logging should carry source locations: %q", buf.String())
	}
}
