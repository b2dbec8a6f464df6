package models

import "time"

type NotificationKind string

const (
	NotifyNew            NotificationKind = "new"
	NotifyReminder       NotificationKind = "reminder"
	NotifyCoolOffWarning NotificationKind = "cool_off_warning"
	NotifyEscalation     NotificationKind = "escalation"
	NotifyCompletion     NotificationKind = "completion"
)

// Audience is who a notification is addressed to.
type Audience string

const (
	AudienceDepartment Audience = "department"
	AudienceReporter   Audience = "reporter"
)

// RoutingKey is the exchange routing key a notification is published under.
func (k NotificationKind) RoutingKey() string {
	return "report." + string(k)
}

// NotificationEvent is the message the report service publishes for every
// department or reporter notification. Consumers render and deliver it.
type NotificationEvent struct {
	ID              string           `json:"id"`
	Kind            NotificationKind `json:"kind"`
	Audience        Audience         `json:"audience"`
	ReportID        string           `json:"report_id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Category        string           `json:"category"`
	Department      Department       `json:"department"`
	Priority        Priority         `json:"priority"`
	Status          Status           `json:"status"`
	LocationText    string           `json:"location_text,omitempty"`
	Landmark        string           `json:"landmark,omitempty"`
	Images          []string         `json:"images,omitempty"`
	UserID          string           `json:"user_id,omitempty"`
	ReporterName    string           `json:"reporter_name,omitempty"`
	ReporterEmail   string           `json:"reporter_email,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	EscalationLevel int              `json:"escalation_level"`
	ReminderCount   int              `json:"reminder_count,omitempty"`
	ReportCreatedAt time.Time        `json:"report_created_at"`
	CreatedAt       time.Time        `json:"created_at"`
}

// NewNotificationEvent snapshots r for publishing.
func NewNotificationEvent(r Report, kind NotificationKind, audience Audience, at time.Time) NotificationEvent {
	return NotificationEvent{
		Kind:            kind,
		Audience:        audience,
		ReportID:        r.ID,
		Title:           r.Title,
		Description:     r.Description,
		Category:        r.Category,
		Department:      r.Department,
		Priority:        r.Priority,
		Status:          r.Status,
		LocationText:    r.LocationText,
		Landmark:        r.Landmark,
		Images:          r.Images,
		UserID:          r.UserID,
		ReporterName:    r.ReporterName,
		ReporterEmail:   r.ReporterEmail,
		Notes:           r.Notes,
		EscalationLevel: r.EscalationLevel,
		ReminderCount:   r.ReminderCount,
		ReportCreatedAt: r.CreatedAt,
		CreatedAt:       at,
	}
}
