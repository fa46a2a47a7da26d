package main

import (
	"log/slog"
	"os"

	"github.com/arcline/sheetlog/internal/cli"
)

func main() {
	// Logs go to stderr: stdout belongs to the MCP stdio transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if err := cli.NewRoot(logger).Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
