package service

import (
	"context"

	"go.uber.org/zap"

	"civic-reporting-system/services/report-service/models"
)

// Notifier is the notification sink. Implementations may fail; callers in this
// package never propagate those failures.
type Notifier interface {
	NotifyDepartment(ctx context.Context, r models.Report, kind models.NotificationKind) error
	NotifyReporter(ctx context.Context, r models.Report, kind models.NotificationKind) error
}

// dispatch is fire-and-forget delivery over a Notifier.
type dispatch struct {
	sink    Notifier
	logger  *zap.Logger
	metrics *Metrics
}

func (d dispatch) department(ctx context.Context, r models.Report, kind models.NotificationKind) {
	if d.sink == nil {
		return
	}
	err := d.sink.NotifyDepartment(ctx, r, kind)
	d.record(r, kind, err)
}

func (d dispatch) reporter(ctx context.Context, r models.Report, kind models.NotificationKind) {
	if d.sink == nil {
		return
	}
	err := d.sink.NotifyReporter(ctx, r, kind)
	d.record(r, kind, err)
}

func (d dispatch) record(r models.Report, kind models.NotificationKind, err error) {
	d.metrics.Notification(kind, err)
	if err != nil {
		d.logger.Warn("notification failed",
			zap.String("report_id", r.ID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}
