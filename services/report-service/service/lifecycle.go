package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"civic-reporting-system/pkg/clock"
	appErrors "civic-reporting-system/pkg/errors"
	"civic-reporting-system/pkg/geo"
	"civic-reporting-system/services/report-service/models"
	"civic-reporting-system/services/report-service/repository"
)

const escalationNote = "District failed to respond within timeframe. Escalated to State authorities."

// SubmitInput carries a citizen submission.
type SubmitInput struct {
	Title         string
	Description   string
	LocationText  string
	Landmark      string
	Department    string
	Category      string
	Priority      string
	ReporterName  string
	ReporterEmail string
	UserID        string
	Images        []string
}

// SubmitResult reports whether the submission created a report or was clustered.
type SubmitResult struct {
	ID        string
	Clustered bool
	Report    *models.Report
}

// UpdateInput is a partial administrative update. Nil fields are not touched.
type UpdateInput struct {
	Status      *string
	Priority    *string
	Description *string
	Notes       *string
}

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	Department string
	Status     string
	UserID     string
}

// ReportService owns the report state machine and its side effects.
type ReportService struct {
	store   repository.Store
	cluster *ClusterMatcher
	notify  dispatch
	clock   clock.Clock
	logger  *zap.Logger
	metrics *Metrics
}

func NewReportService(store repository.Store, notifier Notifier, clk clock.Clock, logger *zap.Logger, metrics *Metrics) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &ReportService{
		store:   store,
		cluster: NewClusterMatcher(store, logger, metrics),
		notify:  dispatch{sink: notifier, logger: logger, metrics: metrics},
		clock:   clk,
		logger:  logger,
		metrics: metrics,
	}
}

// Submit validates a submission, merges it into a nearby open report when one
// exists, and otherwise creates a pending report and notifies the department.
func (s *ReportService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	r, err := s.newReport(in)
	if err != nil {
		return nil, err
	}

	if id, ok := s.cluster.TryMerge(ctx, r, r.CreatedAt); ok {
		s.metrics.Transition("clustered")
		return &SubmitResult{ID: id, Clustered: true}, nil
	}

	id, err := s.store.Create(ctx, r)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to create report")
	}
	r.ID = id

	s.metrics.Transition("created")
	s.logger.Info("report created",
		zap.String("report_id", id),
		zap.String("department", string(r.Department)),
		zap.String("category", r.Category),
	)
	s.notify.department(ctx, *r, models.NotifyNew)

	return &SubmitResult{ID: id, Report: r}, nil
}

func (s *ReportService) newReport(in SubmitInput) (*models.Report, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	department := strings.TrimSpace(in.Department)
	if title == "" || description == "" || department == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title, description and department are required")
	}

	priority, ok := models.ParsePriority(in.Priority)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid priority %q", in.Priority))
	}

	location := strings.TrimSpace(in.LocationText)
	if _, err := geo.Parse(location); err != nil && !errors.Is(err, geo.ErrNoCoordinates) {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	dept := models.ParseDepartment(department)
	category := strings.ToLower(strings.TrimSpace(in.Category))
	if category == "" {
		category = string(dept)
	}

	email := strings.TrimSpace(in.ReporterEmail)
	coReporters := []string{}
	if email != "" {
		coReporters = append(coReporters, email)
	}

	now := s.clock.Now()
	return &models.Report{
		Title:             title,
		Description:       description,
		Category:          category,
		Department:        dept,
		Priority:          priority,
		Status:            models.StatusPending,
		LocationText:      location,
		Landmark:          strings.TrimSpace(in.Landmark),
		Images:            in.Images,
		UserID:            in.UserID,
		ReporterName:      strings.TrimSpace(in.ReporterName),
		ReporterEmail:     email,
		Upvotes:           1,
		CoReporters:       coReporters,
		EscalationLevel:   models.LevelDistrict,
		IsCoolOffPeriod:   false,
		LastActionDate:    now,
		EscalationHistory: []models.EscalationEntry{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (s *ReportService) Get(ctx context.Context, id string) (*models.Report, error) {
	r, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return r, nil
}

// List returns matching reports, newest first.
func (s *ReportService) List(ctx context.Context, f ListFilter) ([]models.Report, error) {
	filter := repository.Filter{UserID: f.UserID}
	if f.Department != "" {
		filter.Department = models.ParseDepartment(f.Department)
	}
	if f.Status != "" {
		status, ok := models.ParseStatus(f.Status)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid status %q", f.Status))
		}
		filter.Statuses = []models.Status{status}
	}

	reports, err := s.store.Scan(ctx, filter)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list reports")
	}

	out := reports[:0]
	for i := range reports {
		if filter.Match(&reports[i]) {
			out = append(out, reports[i])
		}
	}
	repository.SortNewestFirst(out)
	return out, nil
}

// Update applies a partial update. Moving an open report to completed notifies
// the reporter once; a completed report can not be reopened.
func (s *ReportService) Update(ctx context.Context, id string, in UpdateInput) (*models.Report, error) {
	if in.Status == nil && in.Priority == nil && in.Description == nil && in.Notes == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no fields to update")
	}

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}

	var u repository.Update
	completing := false

	if in.Status != nil {
		status, ok := models.ParseStatus(*in.Status)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid status %q", *in.Status))
		}
		switch {
		case current.Status.Terminal() && !status.Terminal():
			return nil, appErrors.ErrFinalized
		case current.Status.Terminal():
		case status != current.Status:
			u.Status = &status
			completing = status.Terminal()
		}
	}
	if in.Priority != nil {
		priority, ok := models.ParsePriority(*in.Priority)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid priority %q", *in.Priority))
		}
		u.Priority = &priority
	}
	if in.Description != nil {
		description := strings.TrimSpace(*in.Description)
		if description == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "description can not be empty")
		}
		u.Description = &description
	}
	if in.Notes != nil {
		notes := strings.TrimSpace(*in.Notes)
		u.Notes = &notes
	}

	if u.Status == nil && u.Priority == nil && u.Description == nil && u.Notes == nil {
		return current, nil
	}

	u.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateByID(ctx, id, u); err != nil {
		return nil, mapStoreError(err)
	}
	u.Apply(current)

	if completing {
		s.metrics.Transition("completed")
		s.logger.Info("report completed", zap.String("report_id", id))
		s.notify.reporter(ctx, *current, models.NotifyCompletion)
	}
	return current, nil
}

// LogNote records an administrator's reason for delay. It restarts the
// escalation clock and clears the cool-off flag without touching the level.
func (s *ReportService) LogNote(ctx context.Context, id, admin, note string) (*models.Report, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "note text is required")
	}
	admin = strings.TrimSpace(admin)
	if admin == "" {
		admin = "Admin"
	}

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}

	now := s.clock.Now()
	coolOff := false
	u := repository.Update{
		LastActionDate:  &now,
		IsCoolOffPeriod: &coolOff,
		AppendHistory: []models.EscalationEntry{{
			Date: now,
			Note: fmt.Sprintf("[%s] Reason for delay logged: %s", admin, note),
		}},
		UpdatedAt: now,
	}
	if err := s.store.UpdateByID(ctx, id, u); err != nil {
		return nil, mapStoreError(err)
	}
	u.Apply(current)

	s.metrics.Transition("note_logged")
	s.logger.Info("delay reason logged", zap.String("report_id", id), zap.String("admin", admin))
	return current, nil
}

// EnterCoolOff flags r and warns its department. The update only applies if
// r is still open and lastActionDate is unchanged since r was read.
func (s *ReportService) EnterCoolOff(ctx context.Context, r models.Report) error {
	expect := r.LastActionDate
	coolOff := true
	err := s.store.UpdateByID(ctx, r.ID, repository.Update{
		IsCoolOffPeriod:      &coolOff,
		UpdatedAt:            s.clock.Now(),
		ExpectLastActionDate: &expect,
		ExpectLastActionRaw:  r.LastActionRaw,
		ExpectOpen:           true,
	})
	if err != nil {
		return fmt.Errorf("enter cool-off %s: %w", r.ID, err)
	}

	r.IsCoolOffPeriod = true
	s.metrics.Transition("cool_off")
	s.notify.department(ctx, r, models.NotifyCoolOffWarning)
	return nil
}

// Escalate moves r to the state level and notifies the escalation contacts.
// Like EnterCoolOff it is guarded against concurrent changes to r.
func (s *ReportService) Escalate(ctx context.Context, r models.Report) error {
	now := s.clock.Now()
	expect := r.LastActionDate
	level := models.LevelState
	entry := models.EscalationEntry{Date: now, Note: escalationNote}
	err := s.store.UpdateByID(ctx, r.ID, repository.Update{
		EscalationLevel:      &level,
		AppendHistory:        []models.EscalationEntry{entry},
		UpdatedAt:            now,
		ExpectLastActionDate: &expect,
		ExpectLastActionRaw:  r.LastActionRaw,
		ExpectOpen:           true,
	})
	if err != nil {
		return fmt.Errorf("escalate %s: %w", r.ID, err)
	}

	r.EscalationLevel = level
	r.EscalationHistory = append(r.EscalationHistory, entry)
	s.metrics.Transition("escalated")
	s.notify.department(ctx, r, models.NotifyEscalation)
	return nil
}

// RecordReminder stamps lastReminderAt, sends the department reminder and
// returns the report's reminder count after this one.
func (s *ReportService) RecordReminder(ctx context.Context, r models.Report) (int, error) {
	now := s.clock.Now()
	err := s.store.UpdateByID(ctx, r.ID, repository.Update{
		LastReminderAt:   &now,
		IncReminderCount: 1,
		UpdatedAt:        now,
	})
	if err != nil {
		return 0, fmt.Errorf("record reminder %s: %w", r.ID, err)
	}

	r.LastReminderAt = &now
	r.ReminderCount++
	s.metrics.Transition("reminded")
	s.notify.department(ctx, r, models.NotifyReminder)
	return r.ReminderCount, nil
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return appErrors.Clone(appErrors.ErrNotFound, "report not found")
	case errors.Is(err, repository.ErrConflict):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "report changed concurrently")
	default:
		return appErrors.Unavailable(err, "")
	}
}
