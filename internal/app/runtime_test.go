package app

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/arcline/sheetlog/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.FromEnv()
	cfg.SpreadsheetID = "sheet-1"
	cfg.UserEmail = "agent@example.com"
	cfg.UserID = "user-1"
	cfg.DBPath = filepath.Join(t.TempDir(), "sessions.sqlite")
	return cfg
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	cfg := testConfig(t)
	cfg.SpreadsheetID = ""
	if _, err := New(cfg, "test", false, testLogger()); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
}

func TestNewRequiresUserEmail(t *testing.T) {
	cfg := testConfig(t)
	cfg.UserEmail = ""
	if _, err := New(cfg, "test", false, testLogger()); err == nil {
		t.Fatal("expected error for missing user email")
	}
}

func TestNewRejectsBadAutosaveCron(t *testing.T) {
	cfg := testConfig(t)
	cfg.AutosaveCron = "every day at noon"
	if _, err := New(cfg, "test", false, testLogger()); err == nil {
		t.Fatal("expected error for bad cron expression")
	}
}

func TestNewBuildsRuntime(t *testing.T) {
	runtime, err := New(testConfig(t), "test", false, testLogger())
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	defer runtime.Close()

	if runtime.sessions == nil || runtime.server == nil || runtime.autosave == nil {
		t.Fatal("runtime components not wired")
	}
	if runtime.transportName() != "stdio" {
		t.Fatalf("unexpected transport %q", runtime.transportName())
	}
}
