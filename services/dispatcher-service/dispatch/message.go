package dispatch

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"civic-reporting-system/pkg/directory"
	"civic-reporting-system/services/report-service/models"
)

// Email is one rendered message ready for an EmailSender.
type Email struct {
	To      []string
	CC      []string
	Subject string
	Body    string
}

// view is what the templates see.
type view struct {
	models.NotificationEvent
	DepartmentCode string
	DepartmentName string
	PriorityLabel  string
	Emoji          string
	ResponseHours  int
	Reminder       int
	ReminderEmoji  string
	Escalation     bool
}

func newView(e models.NotificationEvent, c directory.Contacts) view {
	reminder := e.ReminderCount
	if reminder < 1 {
		reminder = 1
	}
	return view{
		NotificationEvent: e,
		DepartmentCode:    strings.ToUpper(string(e.Department)),
		DepartmentName:    c.Name,
		PriorityLabel:     strings.ToUpper(string(orNormal(e.Priority))),
		Emoji:             priorityEmoji(e.Priority),
		ResponseHours:     c.ResponseHours,
		Reminder:          reminder,
		ReminderEmoji:     reminderEmoji(reminder),
		Escalation:        e.Kind == models.NotifyEscalation,
	}
}

func orNormal(p models.Priority) models.Priority {
	if p == "" {
		return models.PriorityNormal
	}
	return p
}

func priorityEmoji(p models.Priority) string {
	switch p {
	case models.PriorityHigh:
		return "🚨"
	case models.PriorityMedium:
		return "⚠️"
	case models.PriorityLow:
		return "ℹ️"
	default:
		return "📋"
	}
}

var reminderEmojis = []string{"⏰", "🔄", "🚨", "‼️"}

func reminderEmoji(n int) string {
	i := n - 1
	if i >= len(reminderEmojis) {
		i = len(reminderEmojis) - 1
	}
	if i < 0 {
		i = 0
	}
	return reminderEmojis[i]
}

var funcs = template.FuncMap{
	"fallback": func(v, fallback string) string {
		if strings.TrimSpace(v) == "" {
			return fallback
		}
		return v
	},
}

func mustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).Parse(text))
}

var subjects = map[models.NotificationKind]*template.Template{
	models.NotifyNew:            mustParse("new", `{{.Emoji}} New Public Report: {{fallback .Title "No Title"}}`),
	models.NotifyReminder:       mustParse("reminder", `{{.ReminderEmoji}} REMINDER #{{.Reminder}}: {{.Title}}`),
	models.NotifyCoolOffWarning: mustParse("cool_off_warning", `⚠️ URGENT: Cool-off Warning for Report {{.ReportID}}`),
	models.NotifyEscalation:     mustParse("escalation", `🚨 ESCALATED: District Non-Compliance on Report {{.ReportID}}`),
	models.NotifyCompletion:     mustParse("completion", `Your Report Completed: {{.Title}}`),
}

var emailBodies = map[models.NotificationKind]*template.Template{
	models.NotifyNew: mustParse("new", `New Public Assets Report
Department: {{.DepartmentCode}}

ID: {{.ReportID}}
Priority: {{.PriorityLabel}}
Status: {{.Status}}

Title: {{.Title}}
Description:
{{.Description}}

Coordinates: {{fallback .LocationText "Not provided"}}
Landmark: {{fallback .Landmark "Not specified"}}

Reporter: {{.ReporterName}}
Email: {{.ReporterEmail}}

Please review this report and take appropriate action within {{.ResponseHours}} hours.

This is an automated notification from the Public Assets Reporting System.
Please do not reply to this email directly.
`),
	models.NotifyReminder: mustParse("reminder", `REMINDER #{{.Reminder}} - UNRESOLVED REPORT
Department: {{.DepartmentCode}}

This report is still pending resolution:

ID: {{.ReportID}}
Title: {{.Title}}
Priority: {{.PriorityLabel}}
Reported: {{.ReportCreatedAt.Format "2006-01-02 15:04 MST"}}

Description:
{{.Description}}

Coordinates: {{fallback .LocationText "Not provided"}}
Landmark: {{fallback .Landmark "Not specified"}}

Expected response time: {{.ResponseHours}} hours.
Please update the status or provide resolution details.
`),
	models.NotifyCoolOffWarning: mustParse("cool_off_warning", `Escalation Warning

Attention {{.DepartmentCode}} Department,

This is an automated warning from the Public Assets Reporting System.
Report {{.ReportID}} has had no recorded action within the response window.
Title: {{.Title}}

ACTION REQUIRED: resolve this report or log a "Reason for Delay" in the admin
dashboard, or this issue will be automatically escalated to the State level.
`),
	models.NotifyEscalation: mustParse("escalation", `ESCALATION NOTICE

To the State Ministry / Higher Authority,

This report has been automatically escalated to your office because the local
district department failed to respond within the mandatory timeframe.

ID: {{.ReportID}}
Department: {{.DepartmentCode}}
Title: {{.Title}}
Description: {{.Description}}
Location: {{fallback .LocationText "Not provided"}}
`),
	models.NotifyCompletion: mustParse("completion", `Hi {{.ReporterName}},

Your report titled "{{.Title}}" (ID: {{.ReportID}}) has been marked as completed by the authorities.

Notes: {{.Notes}}

Thank you for helping improve the community.
`),
}

var whatsAppBodies = map[models.NotificationKind]*template.Template{
	models.NotifyNew: mustParse("new", `{{.Emoji}} *NEW PUBLIC REPORT*

*Department:* {{.DepartmentCode}}
*Priority:* {{.PriorityLabel}}
*Title:* {{.Title}}

*Description:*
{{.Description}}

*Location:* {{fallback .LocationText "Not specified"}}
*Landmark:* {{fallback .Landmark "Not specified"}}

*Reporter:* {{.ReporterName}}
*Contact:* {{.ReporterEmail}}

*Report ID:* {{.ReportID}}

Please take immediate action. Reply to this message or contact the reporter directly.

_Sent via Public Assets Reporting System_`),
	models.NotifyReminder: mustParse("reminder", `{{.ReminderEmoji}} *REMINDER #{{.Reminder}}* - UNRESOLVED REPORT

This report is still pending resolution:

*Report ID:* {{.ReportID}}
*Title:* {{.Title}}
*Department:* {{.DepartmentCode}}
*Priority:* {{.PriorityLabel}}

*Original Report:* {{.ReportCreatedAt.Format "2006-01-02 15:04 MST"}}

Please update the status or provide resolution details.

_Urgent attention required!_`),
	models.NotifyCoolOffWarning: mustParse("cool_off_warning", `⚠️ *COOL-OFF WARNING*

*Report ID:* {{.ReportID}}
*Title:* {{.Title}}
*Department:* {{.DepartmentCode}}

Resolve this report or log a reason for delay, or it will be escalated to the State level.`),
	models.NotifyEscalation: mustParse("escalation", `🚨 *ESCALATION ALERT* 🚨

A report has not been resolved and is being escalated:

*Report ID:* {{.ReportID}}
*Title:* {{.Title}}
*Department:* {{.DepartmentCode}}
*Priority:* {{.PriorityLabel}}

*Description:*
{{.Description}}

*Location:* {{.LocationText}}

This requires immediate attention from higher authorities.

_Escalated from Public Assets Reporting System_`),
}

func render(t *template.Template, v view) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// renderEmail builds the subject and body for kind. Recipients are left to
// the caller.
func renderEmail(kind models.NotificationKind, v view) (Email, error) {
	subject, ok := subjects[kind]
	body, ok2 := emailBodies[kind]
	if !ok || !ok2 {
		return Email{}, fmt.Errorf("no email template for %q", kind)
	}
	s, err := render(subject, v)
	if err != nil {
		return Email{}, err
	}
	b, err := render(body, v)
	if err != nil {
		return Email{}, err
	}
	return Email{Subject: s, Body: b}, nil
}

// renderWhatsApp returns ok=false for kinds that are not sent over WhatsApp.
func renderWhatsApp(kind models.NotificationKind, v view) (string, bool, error) {
	t, ok := whatsAppBodies[kind]
	if !ok {
		return "", false, nil
	}
	s, err := render(t, v)
	return s, true, err
}
