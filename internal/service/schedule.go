package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"xeroreports/internal/components/chrono"
	"xeroreports/internal/failure"
)

type ScheduleConfig struct {
	// BatchCron runs a batch over every active client, empty disables it.
	BatchCron string
	// CleanupCron removes downloads and screenshots older than Retention, empty disables it.
	CleanupCron string
	Retention   time.Duration
}

// Schedule registers the recurring jobs. Jobs run with ctx, so they stop when it is done.
func (s *Service) Schedule(ctx context.Context, cron chrono.CronAPI, cfg ScheduleConfig) error {
	if cfg.BatchCron != "" {
		err := cron.Cron(cfg.BatchCron, func() {
			s.scheduledBatch(ctx)
		})
		if err != nil {
			return fmt.Errorf("schedule batch %q: %w", cfg.BatchCron, err)
		}
	}
	if cfg.CleanupCron != "" {
		err := cron.Cron(cfg.CleanupCron, func() {
			removed, err := s.CleanupFiles(cfg.Retention)
			if err == nil {
				s.tel.ReportCount(report_service_cleanup, int64(removed))
			}
		})
		if err != nil {
			return fmt.Errorf("schedule cleanup %q: %w", cfg.CleanupCron, err)
		}
	}
	return nil
}

func (s *Service) scheduledBatch(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	res, err := s.BatchDownload(ctx, BatchRequest{})
	if errors.Is(err, failure.ErrBusy) {
		s.tel.ReportWarning(report_service_schedule, "browser busy, skipped scheduled batch")
		return
	}
	if err != nil {
		s.tel.ReportBroken(report_service_schedule, err)
		return
	}
	s.tel.ReportDebug("scheduled batch finished", res.BatchID, res.Completed, res.Failed)
}
