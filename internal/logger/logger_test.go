package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriter_FieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(Config{Level: "warn", Environment: "production", ServiceName: "branch-supply", Version: "1.2.3"}, &buf)

	log.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}

	log.Warn().Int("order_id", 7).Msg("kept")
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["service"] != "branch-supply" || entry["version"] != "1.2.3" {
		t.Errorf("missing service tags: %v", entry)
	}
	if entry["order_id"] != float64(7) {
		t.Errorf("order_id: got %v", entry["order_id"])
	}
}

func TestNewWithWriter_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(Config{Level: "chatty"}, &buf)
	log.Debug().Msg("dropped")
	log.Info().Msg("kept")
	if bytes.Count(buf.Bytes(), []byte("\n")) != 1 {
		t.Errorf("want exactly one line, got %q", buf.String())
	}
}
