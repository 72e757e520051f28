package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gompdf/examsheet/internal/config"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(config.LogConfig{Level: "warn"}, &buf)
	log.Info("hidden")
	log.Warn("shown")
	log.Sync()
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("output = %q", out)
	}
}

func TestFileOutputIsJSON(t *testing.T) {
	file := filepath.Join(t.TempDir(), "examsheet.log")
	var console bytes.Buffer
	log := newLogger(config.LogConfig{Level: "bogus", File: file, MaxSize: 1}, &console)
	log.Info("rendered")
	log.Sync()

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log line is not JSON: %q", data)
	}
	if entry["msg"] != "rendered" || entry["level"] != "INFO" {
		t.Fatalf("entry = %v", entry)
	}
}
