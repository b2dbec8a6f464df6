package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"civic-reporting-system/pkg/clock"
	appErrors "civic-reporting-system/pkg/errors"
	"civic-reporting-system/services/report-service/models"
	"civic-reporting-system/services/report-service/repository"
)

type lifecycleFixture struct {
	store    *flakyStore
	notifier *notifierStub
	clock    *clock.Fake
	svc      *ReportService
}

func newLifecycleFixture() *lifecycleFixture {
	f := &lifecycleFixture{
		store:    newFlakyStore(),
		notifier: &notifierStub{},
		clock:    clock.NewFake(testNow),
	}
	f.svc = NewReportService(f.store, f.notifier, f.clock, zap.NewNop(), NewMetrics(nil))
	return f
}

func validSubmission() SubmitInput {
	return SubmitInput{
		Title:         "Pothole on MC Road",
		Description:   "Large pothole near the junction",
		LocationText:  "8.9, 76.8",
		Department:    "pwd",
		Category:      "pwd",
		ReporterName:  "Asha",
		ReporterEmail: "asha@example.com",
		UserID:        "user-1",
	}
}

func strPtr(s string) *string { return &s }

func TestSubmitCreatesPendingReport(t *testing.T) {
	f := newLifecycleFixture()

	res, err := f.svc.Submit(context.Background(), validSubmission())
	require.NoError(t, err)
	require.False(t, res.Clustered)

	r, err := f.svc.Get(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, r.Status)
	assert.Equal(t, 1, r.Upvotes)
	assert.Equal(t, models.LevelDistrict, r.EscalationLevel)
	assert.False(t, r.IsCoolOffPeriod)
	assert.Equal(t, testNow, r.LastActionDate)
	assert.Equal(t, testNow, r.CreatedAt)
	assert.Empty(t, r.EscalationHistory)
	assert.Nil(t, r.LastReminderAt)
	assert.Equal(t, []string{"asha@example.com"}, r.CoReporters)
	assert.Equal(t, models.PriorityNormal, r.Priority)

	assert.Equal(t, 1, f.notifier.count(models.NotifyNew))
}

func TestSubmitScenarioClustersNearbyDuplicate(t *testing.T) {
	f := newLifecycleFixture()

	first, err := f.svc.Submit(context.Background(), validSubmission())
	require.NoError(t, err)

	dup := validSubmission()
	dup.LocationText = "8.9001, 76.8001"
	dup.ReporterEmail = "ravi@example.com"
	second, err := f.svc.Submit(context.Background(), dup)
	require.NoError(t, err)

	assert.True(t, second.Clustered)
	assert.Equal(t, first.ID, second.ID)

	r, _ := f.svc.Get(context.Background(), first.ID)
	assert.Equal(t, 2, r.Upvotes)
	assert.Equal(t, models.LevelDistrict, r.EscalationLevel)
	assert.Equal(t, []string{"asha@example.com", "ravi@example.com"}, r.CoReporters)

	all, _ := f.store.Scan(context.Background(), repository.Filter{})
	assert.Len(t, all, 1)
	assert.Equal(t, 1, f.notifier.count(models.NotifyNew))
}

func TestSubmitFailsOpenWhenClusterScanFails(t *testing.T) {
	f := newLifecycleFixture()
	_, err := f.svc.Submit(context.Background(), validSubmission())
	require.NoError(t, err)

	f.store.scanErr = errStoreDown
	res, err := f.svc.Submit(context.Background(), validSubmission())
	require.NoError(t, err)
	assert.False(t, res.Clustered)

	f.store.scanErr = nil
	all, _ := f.store.Scan(context.Background(), repository.Filter{})
	assert.Len(t, all, 2)
}

func TestSubmitValidation(t *testing.T) {
	f := newLifecycleFixture()

	cases := map[string]func(in *SubmitInput){
		"missing title":       func(in *SubmitInput) { in.Title = " " },
		"missing department":  func(in *SubmitInput) { in.Department = "" },
		"bad priority":        func(in *SubmitInput) { in.Priority = "urgent" },
		"unparseable coords":  func(in *SubmitInput) { in.LocationText = "north, south" },
		"out of range coords": func(in *SubmitInput) { in.LocationText = "95, 76.8" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validSubmission()
			mutate(&in)
			_, err := f.svc.Submit(context.Background(), in)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
	assert.Zero(t, f.notifier.count(models.NotifyNew))
}

func TestSubmitFreeTextLocationAndDefaults(t *testing.T) {
	f := newLifecycleFixture()
	in := validSubmission()
	in.LocationText = "Opposite the bus stand"
	in.Department = "railways"
	in.Category = ""
	in.ReporterEmail = ""

	res, err := f.svc.Submit(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, models.DepartmentOther, res.Report.Department)
	assert.Equal(t, "other", res.Report.Category)
	assert.Empty(t, res.Report.CoReporters)
}

func TestSubmitStoreUnavailable(t *testing.T) {
	f := newLifecycleFixture()
	f.store.createErr = errStoreDown

	_, err := f.svc.Submit(context.Background(), validSubmission())
	assert.ErrorIs(t, err, appErrors.ErrUnavailable)
	assert.Zero(t, f.notifier.count(models.NotifyNew))
}

func TestSubmitNotificationFailureDoesNotRollBack(t *testing.T) {
	f := newLifecycleFixture()
	f.notifier.err = errStoreDown

	res, err := f.svc.Submit(context.Background(), validSubmission())
	require.NoError(t, err)
	_, err = f.svc.Get(context.Background(), res.ID)
	assert.NoError(t, err)
}

func TestGetMissingAndUnavailable(t *testing.T) {
	f := newLifecycleFixture()

	_, err := f.svc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	f.store.getErr = errStoreDown
	_, err = f.svc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, appErrors.ErrUnavailable)
}

func TestUpdatePartialFields(t *testing.T) {
	f := newLifecycleFixture()
	res, _ := f.svc.Submit(context.Background(), validSubmission())

	r, err := f.svc.Update(context.Background(), res.ID, UpdateInput{
		Priority: strPtr("HIGH"),
		Status:   strPtr("in-progress"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.PriorityHigh, r.Priority)
	assert.Equal(t, models.StatusInProgress, r.Status)
	assert.Equal(t, "Large pothole near the junction", r.Description)
	assert.Equal(t, testNow, r.LastActionDate)
	assert.Zero(t, f.notifier.count(models.NotifyCompletion))
}

func TestUpdateScenarioResolvedNotifiesOnce(t *testing.T) {
	f := newLifecycleFixture()
	res, _ := f.svc.Submit(context.Background(), validSubmission())

	r, err := f.svc.Update(context.Background(), res.ID, UpdateInput{
		Status: strPtr("resolved"),
		Notes:  strPtr("Road resurfaced"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, r.Status)

	_, err = f.svc.Update(context.Background(), res.ID, UpdateInput{Status: strPtr("done")})
	require.NoError(t, err)

	require.Equal(t, 1, f.notifier.count(models.NotifyCompletion))
	for _, s := range f.notifier.sent {
		if s.kind == models.NotifyCompletion {
			assert.Equal(t, models.AudienceReporter, s.audience)
			assert.Equal(t, "Road resurfaced", s.report.Notes)
		}
	}
}

func TestUpdateCannotReopenCompletedReport(t *testing.T) {
	f := newLifecycleFixture()
	res, _ := f.svc.Submit(context.Background(), validSubmission())
	_, err := f.svc.Update(context.Background(), res.ID, UpdateInput{Status: strPtr("completed")})
	require.NoError(t, err)

	_, err = f.svc.Update(context.Background(), res.ID, UpdateInput{Status: strPtr("pending")})
	assert.ErrorIs(t, err, appErrors.ErrFinalized)

	r, _ := f.svc.Get(context.Background(), res.ID)
	assert.Equal(t, models.StatusCompleted, r.Status)
}

func TestUpdateValidation(t *testing.T) {
	f := newLifecycleFixture()
	res, _ := f.svc.Submit(context.Background(), validSubmission())

	_, err := f.svc.Update(context.Background(), res.ID, UpdateInput{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Update(context.Background(), res.ID, UpdateInput{Status: strPtr("archived")})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Update(context.Background(), "missing", UpdateInput{Notes: strPtr("x")})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestLogNoteResetsClockAndCoolOff(t *testing.T) {
	f := newLifecycleFixture()
	res, _ := f.svc.Submit(context.Background(), validSubmission())

	f.clock.Advance(16 * 24 * time.Hour)
	r, _ := f.svc.Get(context.Background(), res.ID)
	require.NoError(t, f.svc.EnterCoolOff(context.Background(), *r))

	r, err := f.svc.LogNote(context.Background(), res.ID, "Officer Nair", "Awaiting contractor")
	require.NoError(t, err)
	assert.False(t, r.IsCoolOffPeriod)
	assert.Equal(t, f.clock.Now(), r.LastActionDate)
	assert.Equal(t, models.LevelDistrict, r.EscalationLevel)
	assert.Equal(t, models.StatusPending, r.Status)
	require.Len(t, r.EscalationHistory, 1)
	assert.Equal(t, "[Officer Nair] Reason for delay logged: Awaiting contractor", r.EscalationHistory[0].Note)

	stored, _ := f.svc.Get(context.Background(), res.ID)
	assert.Equal(t, r.LastActionDate, stored.LastActionDate)
	assert.False(t, stored.IsCoolOffPeriod)
}

func TestLogNoteValidation(t *testing.T) {
	f := newLifecycleFixture()
	res, _ := f.svc.Submit(context.Background(), validSubmission())

	_, err := f.svc.LogNote(context.Background(), res.ID, "", "   ")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	r, err := f.svc.LogNote(context.Background(), res.ID, "", "Monsoon")
	require.NoError(t, err)
	assert.Equal(t, "[Admin] Reason for delay logged: Monsoon", r.EscalationHistory[0].Note)
}

func TestEscalateRejectsStaleSnapshot(t *testing.T) {
	f := newLifecycleFixture()
	res, _ := f.svc.Submit(context.Background(), validSubmission())
	snapshot, _ := f.svc.Get(context.Background(), res.ID)

	f.clock.Advance(time.Hour)
	_, err := f.svc.LogNote(context.Background(), res.ID, "Admin", "On it")
	require.NoError(t, err)

	err = f.svc.Escalate(context.Background(), *snapshot)
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Zero(t, f.notifier.count(models.NotifyEscalation))

	r, _ := f.svc.Get(context.Background(), res.ID)
	assert.Equal(t, models.LevelDistrict, r.EscalationLevel)
}

func TestRecordReminder(t *testing.T) {
	f := newLifecycleFixture()
	res, _ := f.svc.Submit(context.Background(), validSubmission())
	r, _ := f.svc.Get(context.Background(), res.ID)

	f.clock.Advance(25 * time.Hour)
	count, err := f.svc.RecordReminder(context.Background(), *r)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	r, _ = f.svc.Get(context.Background(), res.ID)
	require.NotNil(t, r.LastReminderAt)
	assert.Equal(t, f.clock.Now(), *r.LastReminderAt)
	assert.Equal(t, 1, r.ReminderCount)
	require.Equal(t, 1, f.notifier.count(models.NotifyReminder))
	assert.Equal(t, 1, f.notifier.sent[len(f.notifier.sent)-1].report.ReminderCount)

	f.clock.Advance(25 * time.Hour)
	count, err = f.svc.RecordReminder(context.Background(), *r)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestEscalateSkipsReportResolvedAfterScan(t *testing.T) {
	f := newLifecycleFixture()
	res, _ := f.svc.Submit(context.Background(), validSubmission())
	f.clock.Advance(31 * 24 * time.Hour)
	snapshot, _ := f.svc.Get(context.Background(), res.ID)

	completed := models.StatusCompleted
	require.NoError(t, f.store.UpdateByID(context.Background(), res.ID, repository.Update{Status: &completed}))

	err := f.svc.Escalate(context.Background(), *snapshot)
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Zero(t, f.notifier.count(models.NotifyEscalation))

	err = f.svc.EnterCoolOff(context.Background(), *snapshot)
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Zero(t, f.notifier.count(models.NotifyCoolOffWarning))

	r, _ := f.svc.Get(context.Background(), res.ID)
	assert.Equal(t, models.LevelDistrict, r.EscalationLevel)
	assert.False(t, r.IsCoolOffPeriod)
	assert.Empty(t, r.EscalationHistory)
}

func TestListFiltersAndSorts(t *testing.T) {
	f := newLifecycleFixture()

	a, _ := f.svc.Submit(context.Background(), validSubmission())
	f.clock.Advance(time.Hour)
	in := validSubmission()
	in.LocationText = "9.9, 76.2"
	in.UserID = "user-2"
	b, _ := f.svc.Submit(context.Background(), in)
	f.clock.Advance(time.Hour)
	in = validSubmission()
	in.Department = "water"
	in.Category = "water"
	c, _ := f.svc.Submit(context.Background(), in)

	all, err := f.svc.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	pwd, _ := f.svc.List(context.Background(), ListFilter{Department: "PWD"})
	assert.Len(t, pwd, 2)

	mine, _ := f.svc.List(context.Background(), ListFilter{UserID: "user-2"})
	require.Len(t, mine, 1)
	assert.Equal(t, b.ID, mine[0].ID)

	_, err = f.svc.List(context.Background(), ListFilter{Status: "lost"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAnalytics(t *testing.T) {
	f := newLifecycleFixture()
	a, _ := f.svc.Submit(context.Background(), validSubmission())
	in := validSubmission()
	in.LocationText = "9.9, 76.2"
	_, _ = f.svc.Submit(context.Background(), in)
	_, _ = f.svc.Update(context.Background(), a.ID, UpdateInput{Status: strPtr("completed")})

	stats, err := f.svc.Analytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 2, stats.TotalUpvotes)
	assert.InDelta(t, 0.5, stats.CompletionRate, 1e-9)
	assert.Equal(t, 2, stats.ByDepartment["pwd"])
}
