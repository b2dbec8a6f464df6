package repository

import (
	"context"
	"errors"
	"time"

	"civic-reporting-system/services/report-service/models"
)

var (
	ErrNotFound = errors.New("report not found")
	// ErrConflict is returned when a guarded update's expectations no longer hold.
	ErrConflict = errors.New("report changed concurrently")
)

// Filter selects reports by equality. Empty fields match everything.
type Filter struct {
	Category        string
	Statuses        []models.Status
	EscalationLevel int
	Department      models.Department
	UserID          string
}

// Match applies f in-process.
func (f Filter) Match(r *models.Report) bool {
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if r.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.EscalationLevel != 0 && r.EscalationLevel != f.EscalationLevel {
		return false
	}
	if f.Department != "" && r.Department != f.Department {
		return false
	}
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	return true
}

// Update is a partial update. Nil fields are left untouched.
type Update struct {
	Title           *string
	Description     *string
	Priority        *models.Priority
	Status          *models.Status
	Notes           *string
	EscalationLevel *int
	IsCoolOffPeriod *bool
	LastActionDate  *time.Time
	LastReminderAt  *time.Time

	IncUpvotes       int
	IncReminderCount int
	AddCoReporter    string
	AppendHistory    []models.EscalationEntry

	UpdatedAt time.Time

	// ExpectLastActionDate makes the update conditional on the stored
	// lastActionDate still being this value. ExpectLastActionRaw, when set, is
	// the stored form it was decoded from and is matched instead.
	ExpectLastActionDate *time.Time
	ExpectLastActionRaw  any

	// ExpectOpen makes the update conditional on the report not being completed.
	ExpectOpen bool
}

func (u Update) guarded() bool {
	return u.ExpectLastActionDate != nil || u.ExpectOpen
}

// Store is the report document store. Every operation is atomic for a single
// report; nothing spans documents.
type Store interface {
	Create(ctx context.Context, r *models.Report) (string, error)
	GetByID(ctx context.Context, id string) (*models.Report, error)
	UpdateByID(ctx context.Context, id string, u Update) error
	Scan(ctx context.Context, f Filter) ([]models.Report, error)
}

// Apply mutates r with u the way the store would.
func (u Update) Apply(r *models.Report) {
	if u.Title != nil {
		r.Title = *u.Title
	}
	if u.Description != nil {
		r.Description = *u.Description
	}
	if u.Priority != nil {
		r.Priority = *u.Priority
	}
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.Notes != nil {
		r.Notes = *u.Notes
	}
	if u.EscalationLevel != nil {
		r.EscalationLevel = *u.EscalationLevel
	}
	if u.IsCoolOffPeriod != nil {
		r.IsCoolOffPeriod = *u.IsCoolOffPeriod
	}
	if u.LastActionDate != nil {
		r.LastActionDate = *u.LastActionDate
	}
	if u.LastReminderAt != nil {
		t := *u.LastReminderAt
		r.LastReminderAt = &t
	}
	r.Upvotes += u.IncUpvotes
	r.ReminderCount += u.IncReminderCount
	if u.AddCoReporter != "" && !containsString(r.CoReporters, u.AddCoReporter) {
		r.CoReporters = append(r.CoReporters, u.AddCoReporter)
	}
	r.EscalationHistory = append(r.EscalationHistory, u.AppendHistory...)
	if !u.UpdatedAt.IsZero() {
		r.UpdatedAt = u.UpdatedAt
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
