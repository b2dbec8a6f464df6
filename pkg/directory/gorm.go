package directory

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Department is a row of the departments table. Email lists are stored
// comma separated.
type Department struct {
	Code               string `gorm:"primaryKey;size:32"`
	Name               string
	Emails             string
	WhatsApp           string `gorm:"column:whatsapp"`
	Phone              string
	EscalationEmails   string
	EscalationWhatsApp string `gorm:"column:escalation_whatsapp"`
	ResponseTimeHours  int
	Jurisdiction       string
}

func (Department) TableName() string { return "departments" }

// GormDirectory reads department rows from PostgreSQL. Rows override the
// static table field by field; missing rows and read errors fall back to it.
type GormDirectory struct {
	db       *gorm.DB
	fallback *Static
	logger   *zap.Logger
}

func NewGormDirectory(db *gorm.DB, logger *zap.Logger) *GormDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormDirectory{db: db, fallback: NewStatic(), logger: logger}
}

func (d *GormDirectory) Lookup(ctx context.Context, code string) (Contacts, error) {
	code = normalize(code)
	base := d.fallback.get(code)

	var row Department
	err := d.db.WithContext(ctx).Where("code = ?", code).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return base, nil
	case err != nil:
		d.logger.Warn("department lookup failed, using built-in contacts",
			zap.String("department", code),
			zap.Error(err),
		)
		return base, err
	}

	return merge(base, row), nil
}

// Migrate creates the departments table.
func (d *GormDirectory) Migrate(ctx context.Context) error {
	return d.db.WithContext(ctx).AutoMigrate(&Department{})
}

func merge(base Contacts, row Department) Contacts {
	out := base
	out.Code = row.Code
	if row.Name != "" {
		out.Name = row.Name
	}
	if emails := splitList(row.Emails); len(emails) > 0 {
		out.Emails = emails
	}
	if row.WhatsApp != "" {
		out.WhatsApp = row.WhatsApp
	}
	if row.Phone != "" {
		out.Phone = row.Phone
	}
	if emails := splitList(row.EscalationEmails); len(emails) > 0 {
		out.EscalationEmails = emails
	}
	if row.EscalationWhatsApp != "" {
		out.EscalationWhatsApp = row.EscalationWhatsApp
	}
	if row.ResponseTimeHours > 0 {
		out.ResponseHours = row.ResponseTimeHours
	}
	if row.Jurisdiction != "" {
		out.Jurisdiction = row.Jurisdiction
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
