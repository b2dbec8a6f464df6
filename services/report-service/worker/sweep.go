package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"civic-reporting-system/services/report-service/models"
	"civic-reporting-system/services/report-service/repository"
)

// Result counts what one sweep iteration did.
type Result struct {
	Scanned  int
	Actioned int
	Skipped  int
	Failed   int
}

// Sweep is one background pass over the store.
type Sweep interface {
	Name() string
	Run(ctx context.Context) (Result, error)
}

// transitions are the lifecycle operations the sweeps drive.
type transitions interface {
	EnterCoolOff(ctx context.Context, r models.Report) error
	Escalate(ctx context.Context, r models.Report) error
	RecordReminder(ctx context.Context, r models.Report) (int, error)
}

type scanner interface {
	Scan(ctx context.Context, f repository.Filter) ([]models.Report, error)
}

// each runs fn per report, isolating failures and panics to that report.
func each(logger *zap.Logger, sweep string, reports []models.Report, res *Result, fn func(r models.Report) (bool, error)) {
	for _, r := range reports {
		acted, err := guard(r, fn)
		switch {
		case errors.Is(err, repository.ErrConflict):
			res.Skipped++
			logger.Info("report changed during sweep, skipping",
				zap.String("sweep", sweep),
				zap.String("report_id", r.ID),
			)
		case err != nil:
			res.Failed++
			logger.Error("sweep action failed",
				zap.String("sweep", sweep),
				zap.String("report_id", r.ID),
				zap.Error(err),
			)
		case acted:
			res.Actioned++
		}
	}
}

func guard(r models.Report, fn func(r models.Report) (bool, error)) (acted bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(r)
}
