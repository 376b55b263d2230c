package observability

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewLogger_LevelAndService(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "prod", "warn", "syncer")
	l.Info().Msg("dropped")
	l.Warn().Msg("kept")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("want exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if line["message"] != "kept" || line["service"] != "syncer" {
		t.Fatalf("unexpected line %v", line)
	}
}

func TestNewLogger_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "prod", "loud", "ingestor")
	l.Debug().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("debug written at default level: %q", buf.String())
	}
	l.Info().Msg("kept")
	if buf.Len() == 0 {
		t.Fatal("info not written")
	}
}
