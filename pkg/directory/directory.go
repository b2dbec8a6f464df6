// Package directory resolves a department code to the people who must hear
// about its reports and how quickly they are expected to respond.
package directory

import (
	"context"
	"strings"
)

// DefaultCode is the general administration entry unknown codes fall back to.
const DefaultCode = "other"

// Contacts is one department's delivery channels.
type Contacts struct {
	Code               string
	Name               string
	Emails             []string
	WhatsApp           string
	Phone              string
	EscalationEmails   []string
	EscalationWhatsApp string
	ResponseHours      int
	Jurisdiction       string
}

// RecipientEmails returns the escalation list when escalation is set and one
// is configured, the regular list otherwise.
func (c Contacts) RecipientEmails(escalation bool) []string {
	if escalation && len(c.EscalationEmails) > 0 {
		return c.EscalationEmails
	}
	return c.Emails
}

func (c Contacts) RecipientWhatsApp(escalation bool) string {
	if escalation && c.EscalationWhatsApp != "" {
		return c.EscalationWhatsApp
	}
	return c.WhatsApp
}

// Directory looks up department contacts. Implementations never fail for an
// unknown code; they return the general administration entry instead.
type Directory interface {
	Lookup(ctx context.Context, code string) (Contacts, error)
}

const controlRoom = "+918281090547"

func entry(code, name string, hours int, jurisdiction string) Contacts {
	return Contacts{
		Code:               code,
		Name:               name,
		Emails:             []string{code + "@departments.kerala.example"},
		WhatsApp:           controlRoom,
		Phone:              controlRoom,
		EscalationEmails:   []string{code + "-state@departments.kerala.example"},
		EscalationWhatsApp: controlRoom,
		ResponseHours:      hours,
		Jurisdiction:       jurisdiction,
	}
}

var defaults = map[string]Contacts{
	"pwd":        entry("pwd", "Public Works Department (PWD)", 48, "Roads, bridges, buildings, public infrastructure"),
	"kseb":       entry("kseb", "Kerala State Electricity Board (KSEB)", 24, "Electricity supply, power outages, electrical infrastructure"),
	"water":      entry("water", "Kerala Water Authority", 72, "Water supply, sewage, drainage, water infrastructure"),
	"health":     entry("health", "Health Department", 24, "Public health, hospitals, medical facilities"),
	"municipal":  entry("municipal", "Municipal Corporation", 72, "Local municipal services, waste management, local infrastructure"),
	"police":     entry("police", "Kerala Police", 2, "Law enforcement, public safety, emergency response"),
	"education":  entry("education", "Education Department", 168, "Schools, education infrastructure, academic matters"),
	"sanitation": entry("sanitation", "Sanitation Department", 48, "Waste management, sanitation, public cleanliness"),
	"transport":  entry("transport", "Transport Department", 72, "Public transport, roads, traffic management"),
	"forest":     entry("forest", "Forest Department", 96, "Forest protection, wildlife, environmental conservation"),
	"other":      entry("other", "General Administration", 72, "General complaints and issues not covered by other departments"),
}

// Static is the built-in contact table.
type Static struct {
	entries map[string]Contacts
}

func NewStatic() *Static {
	return &Static{entries: defaults}
}

func (s *Static) Lookup(_ context.Context, code string) (Contacts, error) {
	return s.get(code), nil
}

func (s *Static) get(code string) Contacts {
	if c, ok := s.entries[normalize(code)]; ok {
		return c
	}
	return s.entries[DefaultCode]
}

// Codes lists every department code in the static table.
func (s *Static) Codes() []string {
	codes := make([]string, 0, len(s.entries))
	for code := range s.entries {
		codes = append(codes, code)
	}
	return codes
}

func normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
