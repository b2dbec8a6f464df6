package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"civic-reporting-system/services/report-service/models"
)

// MemoryStore keeps reports in process. Used by the memory store driver and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*models.Report
	order   []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]*models.Report)}
}

func (s *MemoryStore) Create(_ context.Context, r *models.Report) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	cp := cloneReport(r)
	cp.ID = id
	s.reports[id] = cp
	s.order = append(s.order, id)
	return id, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneReport(r), nil
}

func (s *MemoryStore) UpdateByID(_ context.Context, id string, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return ErrNotFound
	}
	if u.ExpectLastActionDate != nil && !r.LastActionDate.Equal(*u.ExpectLastActionDate) {
		return ErrConflict
	}
	if u.ExpectOpen && !r.Status.Open() {
		return ErrConflict
	}
	u.Apply(r)
	return nil
}

// Scan returns matches in insertion order.
func (s *MemoryStore) Scan(_ context.Context, f Filter) ([]models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Report, 0)
	for _, id := range s.order {
		r := s.reports[id]
		if f.Match(r) {
			out = append(out, *cloneReport(r))
		}
	}
	return out, nil
}

// SortNewestFirst orders reports by CreatedAt descending.
func SortNewestFirst(reports []models.Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
}

func cloneReport(r *models.Report) *models.Report {
	cp := *r
	cp.Images = append([]string(nil), r.Images...)
	cp.CoReporters = append([]string(nil), r.CoReporters...)
	cp.EscalationHistory = append([]models.EscalationEntry(nil), r.EscalationHistory...)
	if r.LastReminderAt != nil {
		t := *r.LastReminderAt
		cp.LastReminderAt = &t
	}
	return &cp
}
