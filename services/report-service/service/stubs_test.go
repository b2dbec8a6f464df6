package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"civic-reporting-system/services/report-service/models"
	"civic-reporting-system/services/report-service/repository"
)

type sentNotification struct {
	reportID string
	kind     models.NotificationKind
	audience models.Audience
	report   models.Report
}

type notifierStub struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *notifierStub) NotifyDepartment(_ context.Context, r models.Report, kind models.NotificationKind) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{reportID: r.ID, kind: kind, audience: models.AudienceDepartment, report: r})
	return n.err
}

func (n *notifierStub) NotifyReporter(_ context.Context, r models.Report, kind models.NotificationKind) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{reportID: r.ID, kind: kind, audience: models.AudienceReporter, report: r})
	return n.err
}

func (n *notifierStub) count(kind models.NotificationKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, s := range n.sent {
		if s.kind == kind {
			total++
		}
	}
	return total
}

// flakyStore wraps a MemoryStore and injects failures.
type flakyStore struct {
	*repository.MemoryStore
	scanErr   error
	createErr error
	updateErr error
	getErr    error
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: repository.NewMemoryStore()}
}

func (s *flakyStore) Scan(ctx context.Context, f repository.Filter) ([]models.Report, error) {
	if s.scanErr != nil {
		return nil, s.scanErr
	}
	return s.MemoryStore.Scan(ctx, f)
}

func (s *flakyStore) Create(ctx context.Context, r *models.Report) (string, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	return s.MemoryStore.Create(ctx, r)
}

func (s *flakyStore) UpdateByID(ctx context.Context, id string, u repository.Update) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.MemoryStore.UpdateByID(ctx, id, u)
}

func (s *flakyStore) GetByID(ctx context.Context, id string) (*models.Report, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemoryStore.GetByID(ctx, id)
}

var errStoreDown = errors.New("connection refused")

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
