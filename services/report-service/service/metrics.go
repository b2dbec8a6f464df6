package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"civic-reporting-system/services/report-service/models"
)

// Metrics holds the lifecycle and sweep collectors. A nil *Metrics records nothing.
type Metrics struct {
	clusterMerges prometheus.Counter
	reports       *prometheus.CounterVec
	notifications *prometheus.CounterVec
	sweepActions  *prometheus.CounterVec
	sweepRuns     *prometheus.CounterVec
	sweepDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		clusterMerges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "report_cluster_merges_total",
			Help: "Submissions merged into an existing nearby report",
		}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_transitions_total",
			Help: "Report lifecycle transitions by kind",
		}, []string{"transition"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_notifications_total",
			Help: "Notifications dispatched by kind and result",
		}, []string{"kind", "result"}),
		sweepActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_sweep_actions_total",
			Help: "Per-report sweep actions by sweep and action",
		}, []string{"sweep", "action"}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_sweep_runs_total",
			Help: "Sweep iterations by sweep and result",
		}, []string{"sweep", "result"}),
		sweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "report_sweep_duration_seconds",
			Help:    "Duration of a sweep iteration",
			Buckets: prometheus.DefBuckets,
		}, []string{"sweep"}),
	}
	if reg != nil {
		reg.MustRegister(m.clusterMerges, m.reports, m.notifications, m.sweepActions, m.sweepRuns, m.sweepDuration)
	}
	return m
}

func (m *Metrics) ClusterMerged() {
	if m == nil {
		return
	}
	m.clusterMerges.Inc()
}

func (m *Metrics) Transition(name string) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(name).Inc()
}

func (m *Metrics) Notification(kind models.NotificationKind, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.notifications.WithLabelValues(string(kind), result).Inc()
}

func (m *Metrics) SweepAction(sweep, action string) {
	if m == nil {
		return
	}
	m.sweepActions.WithLabelValues(sweep, action).Inc()
}

func (m *Metrics) SweepRun(sweep string, seconds float64, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sweepRuns.WithLabelValues(sweep, result).Inc()
	m.sweepDuration.WithLabelValues(sweep).Observe(seconds)
}
