// Package scheduler drives the background autosave sweep: a fixed
// interval tick, an optional cron schedule, and the idle-session janitor.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var autosaveCronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Sessions is the slice of the session manager the sweep drives.
type Sessions interface {
	FlushAll(ctx context.Context)
	ExpireIdle(ctx context.Context)
}

type Service struct {
	sessions Sessions
	interval time.Duration
	schedule cron.Schedule
	cronExpr string
	logger   *slog.Logger
}

// New builds the autosave service. cronExpr is optional; when set it is
// validated here so a typo fails at startup, not on the first missed save.
func New(sessions Sessions, interval time.Duration, cronExpr string, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval < time.Second {
		interval = 2 * time.Minute
	}

	service := &Service{
		sessions: sessions,
		interval: interval,
		cronExpr: strings.TrimSpace(cronExpr),
		logger:   logger,
	}
	if service.cronExpr != "" {
		schedule, err := autosaveCronParser.Parse(service.cronExpr)
		if err != nil {
			return nil, fmt.Errorf("parse autosave cron expression: %w", err)
		}
		service.schedule = schedule
	}
	return service, nil
}

func (s *Service) Start(ctx context.Context) error {
	if s.sessions == nil {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var cronTimer *time.Timer
	var cronC <-chan time.Time
	if s.schedule != nil {
		cronTimer = time.NewTimer(time.Until(s.schedule.Next(time.Now())))
		defer cronTimer.Stop()
		cronC = cronTimer.C
	}

	s.logger.Info("autosave scheduler started", "interval", s.interval.String(), "cron", s.cronExpr)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("autosave scheduler stopped")
			return nil
		case <-ticker.C:
			s.sweep(ctx, "interval")
		case <-cronC:
			s.sweep(ctx, "cron")
			cronTimer.Reset(time.Until(s.schedule.Next(time.Now())))
		}
	}
}

// sweep expires idle sessions first so their final flush happens before
// eviction, then flushes the remainder.
func (s *Service) sweep(ctx context.Context, trigger string) {
	s.sessions.ExpireIdle(ctx)
	s.sessions.FlushAll(ctx)
	s.logger.Debug("autosave sweep complete", "trigger", trigger)
}
