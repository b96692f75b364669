package obs

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", "text")
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "product", "Widget")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatal("info line should be filtered at warn level")
	}
	if !strings.Contains(out, "product=Widget") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "DEBUG", "json")
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("observation", "price", "95.00")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatal(err)
	}
	if line["msg"] != "observation" || line["price"] != "95.00" {
		t.Fatalf("unexpected record %v", line)
	}
}

func TestNewLoggerRejectsBadInput(t *testing.T) {
	if _, err := NewLogger(&bytes.Buffer{}, "loud", "text"); err == nil {
		t.Fatal("expected level error")
	}
	if _, err := NewLogger(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Fatal("expected format error")
	}
}

func TestInitLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.log")
	logger, closeFn, err := InitLogger(path, "info", "text")
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("updated products", "count", 2)
	if err := closeFn(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "count=2") {
		t.Fatalf("log file: %q", data)
	}
}
