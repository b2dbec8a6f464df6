package models

import (
	"strings"
	"time"

	"civic-reporting-system/pkg/geo"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// OpenStatuses are the statuses that clustering and the sweeps act on.
var OpenStatuses = []Status{StatusPending, StatusInProgress}

// ParseStatus normalises the spellings clients send. completed, complete, done
// and resolved all map to StatusCompleted.
func ParseStatus(raw string) (Status, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	switch s {
	case "pending":
		return StatusPending, true
	case "in_progress", "inprogress":
		return StatusInProgress, true
	case "completed", "complete", "done", "resolved":
		return StatusCompleted, true
	default:
		return "", false
	}
}

func (s Status) Terminal() bool { return s == StatusCompleted }

func (s Status) Open() bool { return s == StatusPending || s == StatusInProgress }

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority accepts the four priority names case-insensitively. An empty
// value means normal.
func ParsePriority(raw string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return PriorityNormal, true
	case "low":
		return PriorityLow, true
	case "normal":
		return PriorityNormal, true
	case "medium":
		return PriorityMedium, true
	case "high":
		return PriorityHigh, true
	default:
		return "", false
	}
}

type Department string

const (
	DepartmentPWD        Department = "pwd"
	DepartmentKSEB       Department = "kseb"
	DepartmentWater      Department = "water"
	DepartmentHealth     Department = "health"
	DepartmentMunicipal  Department = "municipal"
	DepartmentPolice     Department = "police"
	DepartmentEducation  Department = "education"
	DepartmentSanitation Department = "sanitation"
	DepartmentTransport  Department = "transport"
	DepartmentForest     Department = "forest"
	DepartmentOther      Department = "other"
)

var Departments = []Department{
	DepartmentPWD, DepartmentKSEB, DepartmentWater, DepartmentHealth, DepartmentMunicipal,
	DepartmentPolice, DepartmentEducation, DepartmentSanitation, DepartmentTransport,
	DepartmentForest, DepartmentOther,
}

// ParseDepartment maps a department code to the closed set; unknown codes fall
// back to DepartmentOther (general administration).
func ParseDepartment(raw string) Department {
	code := Department(strings.ToLower(strings.TrimSpace(raw)))
	for _, d := range Departments {
		if d == code {
			return d
		}
	}
	return DepartmentOther
}

const (
	LevelDistrict = 1
	LevelState    = 2
)

// EscalationEntry is one line of a report's append-only audit trail.
type EscalationEntry struct {
	Date time.Time `bson:"date" json:"date"`
	Note string    `bson:"note" json:"note"`
}

type Report struct {
	ID           string     `bson:"-" json:"id"`
	Title        string     `bson:"title" json:"title"`
	Description  string     `bson:"description" json:"description"`
	Category     string     `bson:"category" json:"category"`
	Department   Department `bson:"department" json:"department"`
	Priority     Priority   `bson:"priority" json:"priority"`
	Status       Status     `bson:"status" json:"status"`
	Notes        string     `bson:"notes,omitempty" json:"notes,omitempty"`
	LocationText string     `bson:"location_text,omitempty" json:"location_text,omitempty"`
	Landmark     string     `bson:"landmark,omitempty" json:"landmark,omitempty"`
	Images       []string   `bson:"images,omitempty" json:"images,omitempty"`

	UserID        string `bson:"user_id,omitempty" json:"user_id,omitempty"`
	ReporterName  string `bson:"reporter_name,omitempty" json:"reporter_name,omitempty"`
	ReporterEmail string `bson:"reporter_email,omitempty" json:"reporter_email,omitempty"`

	Upvotes     int      `bson:"upvotes" json:"upvotes"`
	CoReporters []string `bson:"co_reporters" json:"co_reporters"`

	EscalationLevel   int               `bson:"escalation_level" json:"escalation_level"`
	IsCoolOffPeriod   bool              `bson:"is_cool_off_period" json:"is_cool_off_period"`
	LastActionDate    time.Time         `bson:"last_action_date" json:"last_action_date"`
	LastActionRaw     any               `bson:"-" json:"-"` // stored form when not a native date
	LastReminderAt    *time.Time        `bson:"last_reminder_at" json:"last_reminder_at,omitempty"`
	ReminderCount     int               `bson:"reminder_count" json:"reminder_count"`
	EscalationHistory []EscalationEntry `bson:"escalation_history" json:"escalation_history"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Coordinates parses LocationText. Reports without parseable coordinates do not
// take part in clustering.
func (r *Report) Coordinates() (geo.Point, bool) {
	p, err := geo.Parse(r.LocationText)
	if err != nil {
		return geo.Point{}, false
	}
	return p, true
}

// HasReporter reports whether email already appears among the co-reporters.
func (r *Report) HasReporter(email string) bool {
	for _, e := range r.CoReporters {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}
