package delivery

import (
	"context"
	"time"

	"todonotify/internal/model"
)

// Template names a message layout a Channel knows how to render.
type Template string

const (
	TemplateDueReminder  Template = "due_reminder"
	TemplateOverdueAlert Template = "overdue_alert"
	TemplateDailyDigest  Template = "daily_digest"
	TemplateWelcome      Template = "welcome"
)

// TemplateFor maps a base notification kind to its template.
func TemplateFor(kind model.Kind) (Template, bool) {
	switch kind {
	case model.KindDueSoon:
		return TemplateDueReminder, true
	case model.KindOverdue:
		return TemplateOverdueAlert, true
	case model.KindDailyDigest:
		return TemplateDailyDigest, true
	case model.KindWelcome:
		return TemplateWelcome, true
	}
	return "", false
}

// Payload carries whatever the template needs; unused fields stay zero.
type Payload struct {
	Task         *model.Task
	Stats        *model.TaskStats
	OverdueTasks []model.Task
	DueSoonTasks []model.Task
	Date         time.Time
}

// Result is the outcome of one send. A failed send is a value, not an error.
// DryRunMessageIDPrefix starts the Message-ID local part of messages that a
// channel without an SMTP host only logged.
const DryRunMessageIDPrefix = "dry-run."

type Result struct {
	Success   bool
	MessageID string
	Error     string
}

// Channel delivers a rendered notification to one user.
type Channel interface {
	Send(ctx context.Context, tmpl Template, user model.User, payload Payload) Result
}
