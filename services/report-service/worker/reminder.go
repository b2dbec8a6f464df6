package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"civic-reporting-system/pkg/clock"
	"civic-reporting-system/pkg/config"
	"civic-reporting-system/services/report-service/models"
	"civic-reporting-system/services/report-service/repository"
)

// ReminderSweeper re-notifies departments about reports still pending past the
// reminder threshold, at most once per repeat window.
type ReminderSweeper struct {
	store      scanner
	lifecycle  transitions
	clock      clock.Clock
	thresholds config.Thresholds
	logger     *zap.Logger
	metrics    sweepMetrics
}

func NewReminderSweeper(store scanner, lifecycle transitions, clk clock.Clock, thresholds config.Thresholds, logger *zap.Logger, metrics sweepMetrics) *ReminderSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderSweeper{
		store:      store,
		lifecycle:  lifecycle,
		clock:      clk,
		thresholds: thresholds,
		logger:     logger,
		metrics:    metricsOrNop(metrics),
	}
}

func (s *ReminderSweeper) Name() string { return "reminder" }

func (s *ReminderSweeper) Run(ctx context.Context) (Result, error) {
	reports, err := s.store.Scan(ctx, repository.Filter{
		Statuses: []models.Status{models.StatusPending},
	})
	if err != nil {
		return Result{}, fmt.Errorf("scan pending reports: %w", err)
	}

	now := s.clock.Now()
	res := Result{Scanned: len(reports)}
	each(s.logger, s.Name(), reports, &res, func(r models.Report) (bool, error) {
		if r.Status != models.StatusPending || r.CreatedAt.IsZero() {
			return false, nil
		}
		if now.Sub(r.CreatedAt) <= s.thresholds.Reminder {
			return false, nil
		}
		if r.LastReminderAt != nil && now.Sub(*r.LastReminderAt) <= s.thresholds.ReminderRepeat {
			return false, nil
		}

		count, err := s.lifecycle.RecordReminder(ctx, r)
		if err != nil {
			return false, err
		}
		s.metrics.SweepAction(s.Name(), "reminded")
		s.logger.Info("reminder sent", zap.String("report_id", r.ID), zap.Int("reminder", count))
		return true, nil
	})
	return res, nil
}
