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

// EscalationSweeper advances level-1 open reports through the cool-off warning
// and the state-level escalation.
type EscalationSweeper struct {
	store      scanner
	lifecycle  transitions
	clock      clock.Clock
	thresholds config.Thresholds
	logger     *zap.Logger
	metrics    sweepMetrics
}

func NewEscalationSweeper(store scanner, lifecycle transitions, clk clock.Clock, thresholds config.Thresholds, logger *zap.Logger, metrics sweepMetrics) *EscalationSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationSweeper{
		store:      store,
		lifecycle:  lifecycle,
		clock:      clk,
		thresholds: thresholds,
		logger:     logger,
		metrics:    metricsOrNop(metrics),
	}
}

func (s *EscalationSweeper) Name() string { return "escalation" }

func (s *EscalationSweeper) Run(ctx context.Context) (Result, error) {
	reports, err := s.store.Scan(ctx, repository.Filter{
		Statuses:        models.OpenStatuses,
		EscalationLevel: models.LevelDistrict,
	})
	if err != nil {
		return Result{}, fmt.Errorf("scan open reports: %w", err)
	}

	now := s.clock.Now()
	res := Result{Scanned: len(reports)}
	each(s.logger, s.Name(), reports, &res, func(r models.Report) (bool, error) {
		if !r.Status.Open() || r.EscalationLevel != models.LevelDistrict || r.LastActionDate.IsZero() {
			return false, nil
		}

		elapsed := now.Sub(r.LastActionDate)
		switch {
		case elapsed > s.thresholds.Escalate:
			if err := s.lifecycle.Escalate(ctx, r); err != nil {
				return false, err
			}
			s.metrics.SweepAction(s.Name(), "escalated")
			s.logger.Info("report escalated to state level",
				zap.String("report_id", r.ID),
				zap.Duration("elapsed", elapsed),
			)
			return true, nil
		case elapsed > s.thresholds.CoolOff && !r.IsCoolOffPeriod:
			if err := s.lifecycle.EnterCoolOff(ctx, r); err != nil {
				return false, err
			}
			s.metrics.SweepAction(s.Name(), "cool_off")
			s.logger.Info("report entered cool-off period",
				zap.String("report_id", r.ID),
				zap.Duration("elapsed", elapsed),
			)
			return true, nil
		}
		return false, nil
	})
	return res, nil
}
