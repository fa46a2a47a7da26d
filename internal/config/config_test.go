package config

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("SHEETLOG_DATA_DIR", "")
	t.Setenv("SHEETLOG_DB_PATH", "")
	t.Setenv("SHEETLOG_HTTP_ADDR", "")
	t.Setenv("SHEETLOG_SHEETS_BASE_URL", "")
	t.Setenv("SHEETLOG_SPREADSHEET_ID", "")
	t.Setenv("SHEETLOG_SHEET_NAME", "")
	t.Setenv("SHEETLOG_SHEETS_TOKEN_URL", "")
	t.Setenv("SHEETLOG_SHEETS_TIMEOUT_SECONDS", "")
	t.Setenv("SHEETLOG_USER_PERMISSIONS", "")
	t.Setenv("SHEETLOG_AUTOSAVE_INTERVAL_SECONDS", "")
	t.Setenv("SHEETLOG_AUTOSAVE_CRON", "")
	t.Setenv("SHEETLOG_AUTOSAVE_EVERY_TURNS", "")
	t.Setenv("SHEETLOG_SESSION_IDLE_SECONDS", "")
	t.Setenv("SHEETLOG_HISTORY_MAX_BYTES", "")

	cfg := FromEnv()
	if cfg.DataDir != "/data" {
		t.Fatalf("expected default data dir /data, got %s", cfg.DataDir)
	}
	if cfg.DBPath != filepath.Join("/data", "sheetlog", "sessions.sqlite") {
		t.Fatalf("unexpected default db path: %s", cfg.DBPath)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default http addr :8080, got %s", cfg.HTTPAddr)
	}
	if cfg.SheetsBaseURL != "https://sheets.googleapis.com/v4/spreadsheets" {
		t.Fatalf("unexpected default sheets base url: %s", cfg.SheetsBaseURL)
	}
	if cfg.SheetName != "Sheet1" {
		t.Fatalf("expected default sheet name Sheet1, got %s", cfg.SheetName)
	}
	if cfg.SheetsTokenURL != "https://oauth2.googleapis.com/token" {
		t.Fatalf("unexpected default token url: %s", cfg.SheetsTokenURL)
	}
	if cfg.SheetsTimeoutSec != 10 {
		t.Fatalf("expected default sheets timeout 10, got %d", cfg.SheetsTimeoutSec)
	}
	if cfg.AutosaveIntervalSec != 120 {
		t.Fatalf("expected default autosave interval 120, got %d", cfg.AutosaveIntervalSec)
	}
	if cfg.AutosaveCron != "" {
		t.Fatalf("expected default autosave cron empty, got %s", cfg.AutosaveCron)
	}
	if cfg.AutosaveEveryTurns != 10 {
		t.Fatalf("expected default autosave turn threshold 10, got %d", cfg.AutosaveEveryTurns)
	}
	if cfg.SessionIdleSec != 900 {
		t.Fatalf("expected default session idle seconds 900, got %d", cfg.SessionIdleSec)
	}
	if cfg.HistoryMaxBytes != 0 {
		t.Fatalf("expected default history cap 0, got %d", cfg.HistoryMaxBytes)
	}
	if !reflect.DeepEqual(cfg.Permissions(), []string{"read", "write"}) {
		t.Fatalf("unexpected default permissions: %v", cfg.Permissions())
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SHEETLOG_DATA_DIR", "/var/sheetlog")
	t.Setenv("SHEETLOG_DB_PATH", "/var/sheetlog/slots.sqlite")
	t.Setenv("SHEETLOG_HTTP_ADDR", ":9090")
	t.Setenv("SHEETLOG_SHEETS_BASE_URL", "https://sheets.test/v4/spreadsheets")
	t.Setenv("SHEETLOG_SPREADSHEET_ID", "sheet-123")
	t.Setenv("SHEETLOG_SHEET_NAME", "Leads")
	t.Setenv("SHEETLOG_SHEETS_ACCESS_TOKEN", "at-1")
	t.Setenv("SHEETLOG_SHEETS_REFRESH_TOKEN", "rt-1")
	t.Setenv("SHEETLOG_SHEETS_CLIENT_ID", "client-1")
	t.Setenv("SHEETLOG_SHEETS_CLIENT_SECRET", "secret-1")
	t.Setenv("SHEETLOG_SHEETS_TOKEN_URL", "https://oauth.test/token")
	t.Setenv("SHEETLOG_SHEETS_TIMEOUT_SECONDS", "30")
	t.Setenv("SHEETLOG_USER_EMAIL", "user@example.com")
	t.Setenv("SHEETLOG_USER_ID", "user-9")
	t.Setenv("SHEETLOG_USER_PERMISSIONS", "Read, Write ,admin")
	t.Setenv("SHEETLOG_AUTOSAVE_INTERVAL_SECONDS", "45")
	t.Setenv("SHEETLOG_AUTOSAVE_CRON", "*/5 * * * *")
	t.Setenv("SHEETLOG_AUTOSAVE_EVERY_TURNS", "4")
	t.Setenv("SHEETLOG_SESSION_IDLE_SECONDS", "300")
	t.Setenv("SHEETLOG_HISTORY_MAX_BYTES", "65536")

	cfg := FromEnv()
	if cfg.DataDir != "/var/sheetlog" {
		t.Fatalf("expected overridden data dir, got %s", cfg.DataDir)
	}
	if cfg.DBPath != "/var/sheetlog/slots.sqlite" {
		t.Fatalf("expected overridden db path, got %s", cfg.DBPath)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("expected overridden http addr, got %s", cfg.HTTPAddr)
	}
	if cfg.SheetsBaseURL != "https://sheets.test/v4/spreadsheets" {
		t.Fatalf("expected overridden sheets base url, got %s", cfg.SheetsBaseURL)
	}
	if cfg.SpreadsheetID != "sheet-123" {
		t.Fatalf("expected overridden spreadsheet id, got %s", cfg.SpreadsheetID)
	}
	if cfg.SheetName != "Leads" {
		t.Fatalf("expected overridden sheet name, got %s", cfg.SheetName)
	}
	if cfg.SheetsAccessToken != "at-1" || cfg.SheetsRefreshToken != "rt-1" {
		t.Fatal("expected overridden sheet tokens")
	}
	if cfg.SheetsClientID != "client-1" || cfg.SheetsClientSecret != "secret-1" {
		t.Fatal("expected overridden oauth client credentials")
	}
	if cfg.SheetsTokenURL != "https://oauth.test/token" {
		t.Fatalf("expected overridden token url, got %s", cfg.SheetsTokenURL)
	}
	if cfg.SheetsTimeoutSec != 30 {
		t.Fatalf("expected overridden sheets timeout, got %d", cfg.SheetsTimeoutSec)
	}
	if cfg.UserEmail != "user@example.com" || cfg.UserID != "user-9" {
		t.Fatal("expected overridden identity")
	}
	if !reflect.DeepEqual(cfg.Permissions(), []string{"read", "write", "admin"}) {
		t.Fatalf("unexpected permissions: %v", cfg.Permissions())
	}
	if cfg.AutosaveIntervalSec != 45 {
		t.Fatalf("expected overridden autosave interval, got %d", cfg.AutosaveIntervalSec)
	}
	if cfg.AutosaveCron != "*/5 * * * *" {
		t.Fatalf("expected overridden autosave cron, got %s", cfg.AutosaveCron)
	}
	if cfg.AutosaveEveryTurns != 4 {
		t.Fatalf("expected overridden turn threshold, got %d", cfg.AutosaveEveryTurns)
	}
	if cfg.SessionIdleSec != 300 {
		t.Fatalf("expected overridden idle seconds, got %d", cfg.SessionIdleSec)
	}
	if cfg.HistoryMaxBytes != 65536 {
		t.Fatalf("expected overridden history cap, got %d", cfg.HistoryMaxBytes)
	}
}
