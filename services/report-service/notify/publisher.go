package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"civic-reporting-system/pkg/clock"
	"civic-reporting-system/services/report-service/models"
)

type publisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

// QueueNotifier publishes notification events on the reports exchange for the
// dispatcher and notification services to deliver.
type QueueNotifier struct {
	pub   publisher
	clock clock.Clock
}

func NewQueueNotifier(pub publisher, clk clock.Clock) *QueueNotifier {
	if clk == nil {
		clk = clock.Real()
	}
	return &QueueNotifier{pub: pub, clock: clk}
}

func (n *QueueNotifier) NotifyDepartment(ctx context.Context, r models.Report, kind models.NotificationKind) error {
	return n.publish(ctx, r, kind, models.AudienceDepartment)
}

func (n *QueueNotifier) NotifyReporter(ctx context.Context, r models.Report, kind models.NotificationKind) error {
	return n.publish(ctx, r, kind, models.AudienceReporter)
}

func (n *QueueNotifier) publish(ctx context.Context, r models.Report, kind models.NotificationKind, audience models.Audience) error {
	event := models.NewNotificationEvent(r, kind, audience, n.clock.Now())
	event.ID = uuid.NewString()
	if err := n.pub.Publish(ctx, kind.RoutingKey(), event); err != nil {
		return fmt.Errorf("publish %s for report %s: %w", kind, r.ID, err)
	}
	return nil
}

// LogNotifier only logs. Used when the broker is not reachable at startup.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyDepartment(_ context.Context, r models.Report, kind models.NotificationKind) error {
	n.logger.Info("notification (log only)",
		zap.String("report_id", r.ID),
		zap.String("kind", string(kind)),
		zap.String("department", string(r.Department)),
	)
	return nil
}

func (n *LogNotifier) NotifyReporter(_ context.Context, r models.Report, kind models.NotificationKind) error {
	n.logger.Info("notification (log only)",
		zap.String("report_id", r.ID),
		zap.String("kind", string(kind)),
		zap.String("reporter", r.ReporterEmail),
	)
	return nil
}
