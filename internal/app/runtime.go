// Package app wires the configured components into one runnable process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arcline/sheetlog/internal/config"
	"github.com/arcline/sheetlog/internal/ledger"
	"github.com/arcline/sheetlog/internal/mcp"
	"github.com/arcline/sheetlog/internal/normalize"
	"github.com/arcline/sheetlog/internal/scheduler"
	"github.com/arcline/sheetlog/internal/session"
	"github.com/arcline/sheetlog/internal/sheets"
	"github.com/arcline/sheetlog/internal/store"
)

type Runtime struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *store.Store
	sheets   *sheets.Client
	sessions *session.Manager
	server   *mcp.Server
	autosave *scheduler.Service
	useHTTP  bool
}

func New(cfg config.Config, version string, useHTTP bool, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("SHEETLOG_SPREADSHEET_ID is required")
	}
	if cfg.UserEmail == "" {
		return nil, fmt.Errorf("SHEETLOG_USER_EMAIL is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	sqlStore, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	migrateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlStore.AutoMigrate(migrateCtx); err != nil {
		sqlStore.Close()
		return nil, err
	}

	sheetsClient := sheets.New(sheets.Config{
		BaseURL:       cfg.SheetsBaseURL,
		SpreadsheetID: cfg.SpreadsheetID,
		SheetName:     cfg.SheetName,
		AccessToken:   cfg.SheetsAccessToken,
		RefreshToken:  cfg.SheetsRefreshToken,
		ClientID:      cfg.SheetsClientID,
		ClientSecret:  cfg.SheetsClientSecret,
		TokenURL:      cfg.SheetsTokenURL,
		Timeout:       time.Duration(cfg.SheetsTimeoutSec) * time.Second,
	}, logger.With("component", "sheets"))

	locator := ledger.NewLocator(sheetsClient, logger.With("component", "locator"))
	reconciler := ledger.NewReconciler(locator, sheetsClient, logger.With("component", "reconciler"))

	identity := session.Identity{
		Email:       normalize.Email(cfg.UserEmail),
		UserID:      cfg.UserID,
		Permissions: cfg.Permissions(),
	}
	sessions := session.NewManager(reconciler, sqlStore, identity, session.Options{
		FlushEveryTurns: cfg.AutosaveEveryTurns,
		IdleAfter:       time.Duration(cfg.SessionIdleSec) * time.Second,
		HistoryMaxBytes: cfg.HistoryMaxBytes,
	}, logger.With("component", "sessions"))

	autosave, err := scheduler.New(sessions, time.Duration(cfg.AutosaveIntervalSec)*time.Second, cfg.AutosaveCron, logger.With("component", "autosave"))
	if err != nil {
		sqlStore.Close()
		return nil, err
	}

	return &Runtime{
		cfg:      cfg,
		logger:   logger,
		store:    sqlStore,
		sheets:   sheetsClient,
		sessions: sessions,
		server:   mcp.NewServer(sessions, version, logger.With("component", "mcp")),
		autosave: autosave,
		useHTTP:  useHTTP,
	}, nil
}

func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("sheetlog starting",
		"spreadsheet", r.cfg.SpreadsheetID,
		"sheet", r.cfg.SheetName,
		"transport", r.transportName(),
	)

	// A broken store at startup should not block recording; the header is
	// retried implicitly by the first append landing on row 2 regardless.
	headerCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := r.sheets.EnsureHeader(headerCtx); err != nil {
		r.logger.Warn("header bootstrap failed", "error", err)
	}
	cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return r.autosave.Start(groupCtx)
	})

	if r.useHTTP {
		httpServer := &http.Server{Addr: r.cfg.HTTPAddr, Handler: r.server.HTTPHandler()}
		group.Go(func() error {
			r.logger.Info("mcp server listening on http", "addr", r.cfg.HTTPAddr)
			err := httpServer.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	} else {
		group.Go(func() error {
			return r.server.Run(groupCtx)
		})
	}

	err := group.Wait()

	// Final drain: whatever is still buffered gets one last write.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelDrain()
	r.sessions.FlushAll(drainCtx)

	return err
}

func (r *Runtime) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}

func (r *Runtime) transportName() string {
	if r.useHTTP {
		return "http"
	}
	return "stdio"
}
