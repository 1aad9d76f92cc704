package notifier

import (
	"context"
	"fmt"

	"todonotify/internal/model"
	"todonotify/internal/scheduler"
)

// Cadence configures when the recurring passes fire.
type Cadence struct {
	DueSoonMinute int    // minute past every hour
	DigestAt      string // HH:MM
	OverdueAt     string // HH:MM
}

func DefaultCadence() Cadence {
	return Cadence{DueSoonMinute: 0, DigestAt: "08:00", OverdueAt: "09:00"}
}

// RegisterJobs adds the three passes to s.
func RegisterJobs(s *scheduler.Scheduler, e *Engine, c Cadence) error {
	if c.DueSoonMinute < 0 || c.DueSoonMinute > 59 {
		return fmt.Errorf("due-soon minute %d out of range", c.DueSoonMinute)
	}
	digest, err := scheduler.ParseDailyAt(c.DigestAt)
	if err != nil {
		return fmt.Errorf("digest time: %w", err)
	}
	overdue, err := scheduler.ParseDailyAt(c.OverdueAt)
	if err != nil {
		return fmt.Errorf("overdue time: %w", err)
	}

	s.Register(&scheduler.Job{
		Name:        string(model.KindDueSoon),
		Description: "Remind users about tasks due within their lead time",
		Schedule:    scheduler.Hourly(c.DueSoonMinute),
		Handler:     passHandler(e.RunDueSoonPass),
	})
	s.Register(&scheduler.Job{
		Name:        string(model.KindDailyDigest),
		Description: "Send each user a daily summary",
		Schedule:    digest,
		Handler:     passHandler(e.RunDailyDigestPass),
	})
	s.Register(&scheduler.Job{
		Name:        string(model.KindOverdue),
		Description: "Alert users about overdue tasks",
		Schedule:    overdue,
		Handler:     passHandler(e.RunOverduePass),
	})
	return nil
}

func passHandler(run func(context.Context) PassReport) func(context.Context) error {
	return func(ctx context.Context) error {
		return run(ctx).Err
	}
}
