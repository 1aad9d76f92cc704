package delivery

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"todonotify/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var subjects = map[Template]string{
	TemplateDueReminder:  "Task Due Soon: %s",
	TemplateOverdueAlert: "Overdue Task Alert: %s",
	TemplateDailyDigest:  "Your Daily Task Digest",
	TemplateWelcome:      "Welcome to Todo List!",
}

type taskView struct {
	Title       string
	Description string
	DueDate     string
	Priority    string
}

type messageView struct {
	Title        string
	User         model.User
	Task         *taskView
	Stats        model.TaskStats
	OverdueTasks []taskView
	DueSoonTasks []taskView
	Date         string
}

// renderer holds one parsed template set per Template.
type renderer struct {
	sets map[Template]*template.Template
	loc  *time.Location
}

func newRenderer(loc *time.Location) (*renderer, error) {
	if loc == nil {
		loc = time.Local
	}
	r := &renderer{sets: make(map[Template]*template.Template), loc: loc}
	for name := range subjects {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+string(name)+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		r.sets[name] = t
	}
	return r, nil
}

// render returns the subject and HTML body for tmpl.
func (r *renderer) render(tmpl Template, user model.User, p Payload) (string, string, error) {
	set, ok := r.sets[tmpl]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", tmpl)
	}

	view := messageView{User: user}
	subject := subjects[tmpl]
	switch tmpl {
	case TemplateDueReminder, TemplateOverdueAlert:
		if p.Task == nil {
			return "", "", fmt.Errorf("template %s needs a task", tmpl)
		}
		tv := r.task(*p.Task)
		view.Task = &tv
		subject = fmt.Sprintf(subject, p.Task.Title)
	case TemplateDailyDigest:
		if p.Stats != nil {
			view.Stats = *p.Stats
		}
		view.OverdueTasks = r.tasks(p.OverdueTasks)
		view.DueSoonTasks = r.tasks(p.DueSoonTasks)
		date := p.Date
		if date.IsZero() {
			date = time.Now()
		}
		view.Date = date.In(r.loc).Format("Monday, January 2, 2006")
	}
	view.Title = subject

	var buf bytes.Buffer
	if err := set.ExecuteTemplate(&buf, string(tmpl)+".html", view); err != nil {
		return "", "", fmt.Errorf("executing template %s: %w", tmpl, err)
	}
	return subject, buf.String(), nil
}

func (r *renderer) task(t model.Task) taskView {
	v := taskView{Title: t.Title, Description: t.Description, Priority: t.PriorityText()}
	if t.DueDate != nil {
		v.DueDate = t.DueDate.In(r.loc).Format("Jan 2, 2006 15:04")
	}
	return v
}

func (r *renderer) tasks(ts []model.Task) []taskView {
	out := make([]taskView, 0, len(ts))
	for _, t := range ts {
		out = append(out, r.task(t))
	}
	return out
}
