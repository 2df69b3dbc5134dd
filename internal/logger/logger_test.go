package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWithWriterEmitsJSONOutsideDevelopment(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug", "production")

	log.Debug().Int64("session_id", 7).Msg("call prepared")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "call prepared" {
		t.Fatalf("unexpected message: %v", entry["message"])
	}
	if entry["session_id"] != float64(7) {
		t.Fatalf("unexpected session_id: %v", entry["session_id"])
	}
}

func TestNewWithWriterFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "not-a-level", "production")

	if log.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level, got %s", log.GetLevel())
	}
	log.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered, got %q", buf.String())
	}
}
