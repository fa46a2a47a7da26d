package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Environment string
	HTTPAddr    string
	DataDir     string
	DBPath      string

	SheetsBaseURL      string
	SpreadsheetID      string
	SheetName          string
	SheetsAccessToken  string
	SheetsRefreshToken string
	SheetsClientID     string
	SheetsClientSecret string
	SheetsTokenURL     string
	SheetsTimeoutSec   int

	UserEmail      string
	UserID         string
	PermissionsCSV string

	AutosaveIntervalSec int
	AutosaveCron        string
	AutosaveEveryTurns  int
	SessionIdleSec      int
	HistoryMaxBytes     int
}

func FromEnv() Config {
	dataDir := stringOrDefault("SHEETLOG_DATA_DIR", "/data")
	dbPath := stringOrDefault("SHEETLOG_DB_PATH", filepath.Join(dataDir, "sheetlog", "sessions.sqlite"))

	return Config{
		Environment: stringOrDefault("SHEETLOG_ENV", "development"),
		HTTPAddr:    stringOrDefault("SHEETLOG_HTTP_ADDR", ":8080"),
		DataDir:     dataDir,
		DBPath:      dbPath,

		SheetsBaseURL:      stringOrDefault("SHEETLOG_SHEETS_BASE_URL", "https://sheets.googleapis.com/v4/spreadsheets"),
		SpreadsheetID:      strings.TrimSpace(os.Getenv("SHEETLOG_SPREADSHEET_ID")),
		SheetName:          stringOrDefault("SHEETLOG_SHEET_NAME", "Sheet1"),
		SheetsAccessToken:  strings.TrimSpace(os.Getenv("SHEETLOG_SHEETS_ACCESS_TOKEN")),
		SheetsRefreshToken: strings.TrimSpace(os.Getenv("SHEETLOG_SHEETS_REFRESH_TOKEN")),
		SheetsClientID:     strings.TrimSpace(os.Getenv("SHEETLOG_SHEETS_CLIENT_ID")),
		SheetsClientSecret: os.Getenv("SHEETLOG_SHEETS_CLIENT_SECRET"),
		SheetsTokenURL:     stringOrDefault("SHEETLOG_SHEETS_TOKEN_URL", "https://oauth2.googleapis.com/token"),
		SheetsTimeoutSec:   intOrDefault("SHEETLOG_SHEETS_TIMEOUT_SECONDS", 10),

		UserEmail:      strings.TrimSpace(os.Getenv("SHEETLOG_USER_EMAIL")),
		UserID:         strings.TrimSpace(os.Getenv("SHEETLOG_USER_ID")),
		PermissionsCSV: stringOrDefault("SHEETLOG_USER_PERMISSIONS", "read,write"),

		AutosaveIntervalSec: intOrDefault("SHEETLOG_AUTOSAVE_INTERVAL_SECONDS", 120),
		AutosaveCron:        strings.TrimSpace(os.Getenv("SHEETLOG_AUTOSAVE_CRON")),
		AutosaveEveryTurns:  intOrDefault("SHEETLOG_AUTOSAVE_EVERY_TURNS", 10),
		SessionIdleSec:      intOrDefault("SHEETLOG_SESSION_IDLE_SECONDS", 900),
		HistoryMaxBytes:     intOrZero("SHEETLOG_HISTORY_MAX_BYTES"),
	}
}

// Permissions splits the configured CSV into a normalized list.
func (c Config) Permissions() []string {
	parts := strings.Split(c.PermissionsCSV, ",")
	permissions := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		permissions = append(permissions, part)
	}
	return permissions
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func intOrZero(name string) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}
