package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestInitJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: FormatJSON, Output: &buf})
	defer Init(DefaultConfig())

	Debug().Str("table", "songs").Msg("Loaded")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["table"] != "songs" || entry["message"] != "Loaded" || entry["level"] != "debug" {
		t.Errorf("Unexpected entry: %v", entry)
	}
}

func TestInitLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: FormatJSON, Output: &buf})
	defer Init(DefaultConfig())

	Info().Msg("hidden")
	Warn().Msg("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("Info message should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("Warn message should be logged")
	}
}

func TestInitInvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "chatty", Format: FormatJSON, Output: &buf})
	defer Init(DefaultConfig())

	Debug().Msg("debug")
	Info().Msg("info")

	if strings.Contains(buf.String(), `"debug"`) {
		t.Error("Invalid level should fall back to info")
	}
	if !strings.Contains(buf.String(), "info") {
		t.Error("Info message should be logged")
	}
}

func TestWithRunID(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Format: FormatJSON, Output: &buf})
	defer Init(DefaultConfig())

	l := With("run-1")
	l.Info().Msg("started")

	if !strings.Contains(buf.String(), `"run_id":"run-1"`) {
		t.Errorf("run_id missing: %s", buf.String())
	}
}
