package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"civic-reporting-system/pkg/geo"
	"civic-reporting-system/services/report-service/models"
	"civic-reporting-system/services/report-service/repository"
)

// ClusterRadiusKm is the distance within which a new report is a duplicate.
const ClusterRadiusKm = 0.05

// ClusterMatcher merges a new submission into an open report of the same
// category that sits within ClusterRadiusKm. The first candidate in scan order
// wins, not the nearest.
type ClusterMatcher struct {
	store   repository.Store
	logger  *zap.Logger
	metrics *Metrics
}

func NewClusterMatcher(store repository.Store, logger *zap.Logger, metrics *Metrics) *ClusterMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClusterMatcher{store: store, logger: logger, metrics: metrics}
}

// TryMerge returns the id of the report r was merged into. Any failure returns
// false so the caller creates a standalone report.
func (m *ClusterMatcher) TryMerge(ctx context.Context, r *models.Report, now time.Time) (string, bool) {
	origin, ok := r.Coordinates()
	if !ok {
		return "", false
	}

	candidates, err := m.store.Scan(ctx, repository.Filter{
		Category: r.Category,
		Statuses: models.OpenStatuses,
	})
	if err != nil {
		m.logger.Warn("cluster scan failed, creating standalone report", zap.Error(err))
		return "", false
	}

	for i := range candidates {
		c := &candidates[i]
		if c.Category != r.Category || !c.Status.Open() {
			continue
		}
		at, ok := c.Coordinates()
		if !ok {
			continue
		}
		if geo.Distance(origin, at) > ClusterRadiusKm {
			continue
		}

		u := repository.Update{IncUpvotes: 1, UpdatedAt: now}
		if r.ReporterEmail != "" && !c.HasReporter(r.ReporterEmail) {
			u.AddCoReporter = r.ReporterEmail
		}
		if err := m.store.UpdateByID(ctx, c.ID, u); err != nil {
			m.logger.Warn("cluster merge failed, creating standalone report",
				zap.String("target_id", c.ID),
				zap.Error(err),
			)
			return "", false
		}

		m.metrics.ClusterMerged()
		m.logger.Info("report clustered",
			zap.String("target_id", c.ID),
			zap.String("category", r.Category),
			zap.Int("upvotes", c.Upvotes+1),
		)
		return c.ID, true
	}
	return "", false
}
