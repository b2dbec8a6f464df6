package service

import (
	"context"

	appErrors "civic-reporting-system/pkg/errors"
	"civic-reporting-system/services/report-service/models"
	"civic-reporting-system/services/report-service/repository"
)

type Analytics struct {
	Total          int            `json:"total"`
	Pending        int            `json:"pending"`
	InProgress     int            `json:"in_progress"`
	Completed      int            `json:"completed"`
	Escalated      int            `json:"escalated"`
	CoolOff        int            `json:"cool_off"`
	TotalUpvotes   int            `json:"total_upvotes"`
	CompletionRate float64        `json:"completion_rate"`
	ByDepartment   map[string]int `json:"by_department"`
}

// Analytics summarises every report for the admin dashboard.
func (s *ReportService) Analytics(ctx context.Context) (*Analytics, error) {
	reports, err := s.store.Scan(ctx, repository.Filter{})
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to load analytics")
	}

	a := &Analytics{ByDepartment: map[string]int{}}
	for _, r := range reports {
		a.Total++
		switch r.Status {
		case models.StatusPending:
			a.Pending++
		case models.StatusInProgress:
			a.InProgress++
		case models.StatusCompleted:
			a.Completed++
		}
		if r.EscalationLevel >= models.LevelState {
			a.Escalated++
		}
		if r.IsCoolOffPeriod && r.Status.Open() {
			a.CoolOff++
		}
		a.TotalUpvotes += r.Upvotes
		a.ByDepartment[string(r.Department)]++
	}
	if a.Total > 0 {
		a.CompletionRate = float64(a.Completed) / float64(a.Total)
	}
	return a, nil
}
