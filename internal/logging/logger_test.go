package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wthompson1804/scopedesk/internal/config"
)

func TestNewWritesUnderProjectLogsDir(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.NewConfig(dir)
	if err != nil {
		t.Fatalf("new config: %v", err)
	}

	log, err := New(cfg)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	log.Printf("session %s started", "S1")
	if err := log.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.LogsDir(), fileName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "session S1 started") {
		t.Fatalf("log line missing: %q", data)
	}
}

func TestNilLoggerIsANoOp(t *testing.T) {
	var log *Logger
	log.Printf("dropped")
	if err := log.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}
