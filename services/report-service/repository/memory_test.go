package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civic-reporting-system/services/report-service/models"
)

func seedReport(category string, status models.Status) *models.Report {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &models.Report{
		Title:           "Pothole",
		Category:        category,
		Department:      models.DepartmentPWD,
		Status:          status,
		Upvotes:         1,
		CoReporters:     []string{"a@example.com"},
		EscalationLevel: models.LevelDistrict,
		LastActionDate:  now,
		CreatedAt:       now,
	}
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, err := s.Create(ctx, seedReport("pwd", models.StatusPending))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "Pothole", got.Title)

	got.CoReporters[0] = "mutated"
	again, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", again.CoReporters[0])

	_, err = s.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUpdatePartial(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id, _ := s.Create(ctx, seedReport("pwd", models.StatusPending))

	status := models.StatusInProgress
	err := s.UpdateByID(ctx, id, Update{
		Status:        &status,
		IncUpvotes:    1,
		AddCoReporter: "b@example.com",
		AppendHistory: []models.EscalationEntry{{Note: "first"}},
	})
	require.NoError(t, err)

	err = s.UpdateByID(ctx, id, Update{IncUpvotes: 1, AddCoReporter: "b@example.com"})
	require.NoError(t, err)

	got, _ := s.GetByID(ctx, id)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.Equal(t, "Pothole", got.Title)
	assert.Equal(t, 3, got.Upvotes)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, got.CoReporters)
	assert.Len(t, got.EscalationHistory, 1)

	assert.ErrorIs(t, s.UpdateByID(ctx, "missing", Update{IncUpvotes: 1}), ErrNotFound)
}

func TestMemoryStoreExpectLastActionDate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	r := seedReport("pwd", models.StatusPending)
	id, _ := s.Create(ctx, r)

	stale := r.LastActionDate.Add(-time.Hour)
	level := models.LevelState
	err := s.UpdateByID(ctx, id, Update{EscalationLevel: &level, ExpectLastActionDate: &stale})
	assert.ErrorIs(t, err, ErrConflict)

	current := r.LastActionDate
	err = s.UpdateByID(ctx, id, Update{EscalationLevel: &level, ExpectLastActionDate: &current})
	require.NoError(t, err)

	got, _ := s.GetByID(ctx, id)
	assert.Equal(t, models.LevelState, got.EscalationLevel)
}

func TestMemoryStoreExpectOpen(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	r := seedReport("pwd", models.StatusCompleted)
	id, _ := s.Create(ctx, r)

	current := r.LastActionDate
	level := models.LevelState
	err := s.UpdateByID(ctx, id, Update{EscalationLevel: &level, ExpectLastActionDate: &current, ExpectOpen: true})
	assert.ErrorIs(t, err, ErrConflict)

	got, _ := s.GetByID(ctx, id)
	assert.Equal(t, models.LevelDistrict, got.EscalationLevel)

	open, _ := s.Create(ctx, seedReport("pwd", models.StatusInProgress))
	require.NoError(t, s.UpdateByID(ctx, open, Update{EscalationLevel: &level, ExpectOpen: true}))
}

func TestMemoryStoreScanFilters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	first, _ := s.Create(ctx, seedReport("pwd", models.StatusPending))
	_, _ = s.Create(ctx, seedReport("water", models.StatusPending))
	third, _ := s.Create(ctx, seedReport("pwd", models.StatusInProgress))
	_, _ = s.Create(ctx, seedReport("pwd", models.StatusCompleted))

	got, err := s.Scan(ctx, Filter{Category: "pwd", Statuses: models.OpenStatuses})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first, got[0].ID)
	assert.Equal(t, third, got[1].ID)

	all, err := s.Scan(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := s.Scan(ctx, Filter{UserID: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	reports := []models.Report{
		{ID: "old", CreatedAt: base},
		{ID: "new", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "mid", CreatedAt: base.Add(time.Hour)},
	}
	SortNewestFirst(reports)
	assert.Equal(t, "new", reports[0].ID)
	assert.Equal(t, "mid", reports[1].ID)
	assert.Equal(t, "old", reports[2].ID)
}
