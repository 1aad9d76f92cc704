package notifier

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	contractmq "todonotify/contracts/mq"
	"todonotify/internal/delivery"
	"todonotify/internal/model"
	"todonotify/pkg/logger"
	"todonotify/pkg/metrics"
	"todonotify/pkg/otel"
	"todonotify/pkg/trace"
	"todonotify/pkg/util"
)

const (
	defaultWorkers         = 4
	defaultDeliveryTimeout = 30 * time.Second
	defaultDigestListLimit = 10
	digestDueSoonWindow    = 24 * time.Hour
)

// Deps are the collaborators an Engine drives. Locks and Events may be nil.
type Deps struct {
	Users       UserDirectory
	Preferences PreferenceStore
	Tasks       TaskSource
	Log         NotificationLog
	Channel     delivery.Channel
	Locks       util.Deduper
	Events      EventSink
}

type Options struct {
	// Location decides what "today" means for the overdue and digest passes.
	Location             *time.Location
	Workers              int
	DeliveryTimeout      time.Duration
	DefaultLeadTimeHours int
	DigestListLimit      int
}

// PassReport summarizes one pass. Err is set only when the pass could not
// enumerate users; per-user failures are counted in UserErrors.
type PassReport struct {
	Pass       model.Kind    `json:"pass"`
	Users      int           `json:"users"`
	Sent       int64         `json:"sent"`
	Failed     int64         `json:"failed"`
	Skipped    int64         `json:"skipped"`
	UserErrors int64         `json:"user_errors"`
	DryRun     bool          `json:"dry_run"`
	Err        error         `json:"-"`
	Duration   time.Duration `json:"duration"`
}

type passCounters struct {
	sent, failed, skipped, userErrors atomic.Int64
}

// Engine decides which notifications are due, delivers them and records the
// outcome in the notification log.
type Engine struct {
	deps   Deps
	opts   Options
	now    func() time.Time
	logger *zap.Logger
}

func NewEngine(deps Deps, opts Options, logger *zap.Logger) *Engine {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = defaultDeliveryTimeout
	}
	if opts.DefaultLeadTimeHours <= 0 {
		opts.DefaultLeadTimeHours = model.DefaultLeadTimeHours
	}
	if opts.DigestListLimit <= 0 {
		opts.DigestListLimit = defaultDigestListLimit
	}
	if deps.Locks == nil {
		deps.Locks = util.NewLocalDeduper()
	}
	return &Engine{deps: deps, opts: opts, now: time.Now, logger: logger}
}

// Location is the time zone calendar days are computed in.
func (e *Engine) Location() *time.Location {
	return e.opts.Location
}

// RunDueSoonPass reminds users about open tasks due within their lead time.
func (e *Engine) RunDueSoonPass(ctx context.Context) PassReport {
	return e.runPass(ctx, model.KindDueSoon, e.dueSoonForUser)
}

// RunOverduePass nags about open tasks past their due date, once per task per day.
func (e *Engine) RunOverduePass(ctx context.Context) PassReport {
	return e.runPass(ctx, model.KindOverdue, e.overdueForUser)
}

// RunDailyDigestPass sends at most one summary per user per day.
func (e *Engine) RunDailyDigestPass(ctx context.Context) PassReport {
	return e.runPass(ctx, model.KindDailyDigest, e.digestForUser)
}

// RunPass dispatches by pass name; ok is false for an unknown name.
func (e *Engine) RunPass(ctx context.Context, pass model.Kind) (PassReport, bool) {
	switch pass {
	case model.KindDueSoon:
		return e.RunDueSoonPass(ctx), true
	case model.KindOverdue:
		return e.RunOverduePass(ctx), true
	case model.KindDailyDigest:
		return e.RunDailyDigestPass(ctx), true
	}
	return PassReport{}, false
}

type userFunc func(ctx context.Context, user model.User, c *passCounters) error

func (e *Engine) runPass(ctx context.Context, pass model.Kind, fn userFunc) PassReport {
	start := time.Now()
	ctx = trace.WithContext(ctx, trace.GenerateTraceID())
	ctx, span := otel.StartSpan(ctx, "notifier.pass", attribute.String("pass", string(pass)))
	log := logger.WithTrace(ctx, e.logger).With(zap.String("pass", string(pass)))

	report := PassReport{Pass: pass}
	if dr, ok := e.deps.Channel.(interface{ DryRun() bool }); ok && dr.DryRun() {
		report.DryRun = true
		log.Warn("SMTP host not configured, deliveries in this pass are logged only")
	}
	defer func() {
		report.Duration = time.Since(start)
		metrics.RecordPassDuration(string(pass), report.Duration)
		otel.EndSpan(span, report.Err)
	}()

	users, err := e.deps.Users.ListAll(ctx)
	if err != nil {
		log.Error("Failed to list users, abandoning pass", zap.Error(err))
		report.Err = fmt.Errorf("listing users: %w", err)
		return report
	}
	report.Users = len(users)

	var c passCounters
	var g errgroup.Group
	g.SetLimit(e.opts.Workers)
	for _, u := range users {
		u := u
		g.Go(func() error {
			if err := e.runUser(ctx, pass, u, &c, fn); err != nil {
				c.userErrors.Add(1)
				metrics.IncrementPassUserError(string(pass))
				log.Error("Failed to process user", zap.Int64("user_id", u.ID), zap.Error(err))
			}
			// never fail the group; siblings keep going
			return nil
		})
	}
	_ = g.Wait()

	report.Sent = c.sent.Load()
	report.Failed = c.failed.Load()
	report.Skipped = c.skipped.Load()
	report.UserErrors = c.userErrors.Load()

	log.Info("Notification pass finished",
		zap.Int("users", report.Users),
		zap.Int64("sent", report.Sent),
		zap.Int64("failed", report.Failed),
		zap.Int64("skipped", report.Skipped),
		zap.Int64("user_errors", report.UserErrors),
		zap.Bool("dry_run", report.DryRun),
		zap.Duration("duration", time.Since(start)),
	)
	return report
}

// runUser converts a panic in fn into an error for that user alone.
func (e *Engine) runUser(ctx context.Context, pass model.Kind, u model.User, c *passCounters, fn userFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			e.logger.Error("Recovered panic in notification pass",
				zap.String("pass", string(pass)),
				zap.Int64("user_id", u.ID),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()

	ctx, span := otel.StartSpan(ctx, "notifier.user",
		attribute.String("pass", string(pass)),
		attribute.Int64("user_id", u.ID),
	)
	err = fn(ctx, u, c)
	otel.EndSpan(span, err)
	return err
}

func (e *Engine) dueSoonForUser(ctx context.Context, u model.User, c *passCounters) error {
	pref, ok, err := e.emailPreference(ctx, u.ID, model.KindDueSoon)
	if err != nil || !ok {
		return err
	}

	hours := pref.LeadTimeHours
	if hours <= 0 {
		hours = e.opts.DefaultLeadTimeHours
	}
	now := e.now()
	tasks, err := e.deps.Tasks.DueBetween(ctx, u.ID, now, now.Add(time.Duration(hours)*time.Hour), 0)
	if err != nil {
		return err
	}

	since := dueSoonWindowStart(now, hours)
	for i := range tasks {
		task := tasks[i]
		err := e.notifyOnce(ctx, c, u, model.KindDueSoon, &task.ID, since, func() (delivery.Payload, error) {
			return delivery.Payload{Task: &task}, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) overdueForUser(ctx context.Context, u model.User, c *passCounters) error {
	_, ok, err := e.emailPreference(ctx, u.ID, model.KindOverdue)
	if err != nil || !ok {
		return err
	}

	now := e.now()
	tasks, err := e.deps.Tasks.Overdue(ctx, u.ID, now, 0)
	if err != nil {
		return err
	}

	since := startOfDay(now, e.opts.Location)
	for i := range tasks {
		task := tasks[i]
		err := e.notifyOnce(ctx, c, u, model.KindOverdue, &task.ID, since, func() (delivery.Payload, error) {
			return delivery.Payload{Task: &task}, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) digestForUser(ctx context.Context, u model.User, c *passCounters) error {
	pref, ok, err := e.emailPreference(ctx, u.ID, model.KindDailyDigest)
	if err != nil || !ok {
		return err
	}
	if pref.DigestFrequency != model.DigestDaily {
		metrics.RecordSkipped(string(model.KindDailyDigest), "digest_not_daily")
		return nil
	}

	now := e.now()
	return e.notifyOnce(ctx, c, u, model.KindDailyDigest, nil, startOfDay(now, e.opts.Location), func() (delivery.Payload, error) {
		return e.digestPayload(ctx, u.ID, now)
	})
}

func (e *Engine) digestPayload(ctx context.Context, userID int64, now time.Time) (delivery.Payload, error) {
	stats, err := e.deps.Tasks.Stats(ctx, userID, now)
	if err != nil {
		return delivery.Payload{}, err
	}
	overdue, err := e.deps.Tasks.Overdue(ctx, userID, now, e.opts.DigestListLimit)
	if err != nil {
		return delivery.Payload{}, err
	}
	dueSoon, err := e.deps.Tasks.DueBetween(ctx, userID, now, now.Add(digestDueSoonWindow), e.opts.DigestListLimit)
	if err != nil {
		return delivery.Payload{}, err
	}
	return delivery.Payload{Stats: &stats, OverdueTasks: overdue, DueSoonTasks: dueSoon, Date: now}, nil
}

// emailPreference loads the user's settings; ok is false when email is off.
func (e *Engine) emailPreference(ctx context.Context, userID int64, kind model.Kind) (*model.Preference, bool, error) {
	pref, err := e.deps.Preferences.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("loading preferences: %w", err)
	}
	if !pref.EmailEnabled {
		metrics.RecordSkipped(string(kind), "email_disabled")
		return pref, false, nil
	}
	return pref, true, nil
}

// notifyOnce runs check-log, send, record for one (kind, user, task) under the
// in-flight lock. Only storage errors are returned.
func (e *Engine) notifyOnce(ctx context.Context, c *passCounters, u model.User, kind model.Kind,
	taskID *int64, since time.Time, payload func() (delivery.Payload, error)) error {
	key := lockKey(kind, u.ID, taskID)
	if !e.deps.Locks.Acquire(ctx, key) {
		c.skipped.Add(1)
		metrics.RecordSkipped(string(kind), "in_flight")
		return nil
	}
	defer e.deps.Locks.Release(context.WithoutCancel(ctx), key)

	exists, err := e.deps.Log.ExistsSince(ctx, u.ID, taskID, kind, since)
	if err != nil {
		return err
	}
	if exists {
		c.skipped.Add(1)
		metrics.RecordSkipped(string(kind), "already_notified")
		return nil
	}

	p, err := payload()
	if err != nil {
		return err
	}

	tmpl, _ := delivery.TemplateFor(kind)
	rec, _ := e.deliver(ctx, u, kind, tmpl, taskID, p)
	if err := e.record(ctx, rec); err != nil {
		return err
	}
	if rec.Status == model.StatusSent {
		c.sent.Add(1)
	} else {
		c.failed.Add(1)
	}
	return nil
}

// deliver calls the channel under the delivery timeout and builds the log
// record for the outcome. The record is not yet persisted.
func (e *Engine) deliver(ctx context.Context, u model.User, kind model.Kind, tmpl delivery.Template,
	taskID *int64, p delivery.Payload) (*model.NotificationRecord, delivery.Result) {
	dctx, cancel := context.WithTimeout(ctx, e.opts.DeliveryTimeout)
	defer cancel()
	res := e.deps.Channel.Send(dctx, tmpl, u, p)
	if !res.Success && res.Error == "" && dctx.Err() != nil {
		res.Error = dctx.Err().Error()
	}

	now := e.now()
	rec := &model.NotificationRecord{
		UserID:    u.ID,
		TaskID:    taskID,
		Kind:      kind,
		Channel:   model.ChannelEmail,
		CreatedAt: now,
	}
	if res.Success {
		rec.Status = model.StatusSent
		rec.SentAt = &now
		if res.MessageID != "" {
			id := res.MessageID
			rec.MessageID = &id
		}
	} else {
		rec.Status = model.StatusFailed
		detail := res.Error
		if detail == "" {
			detail = "delivery failed"
		}
		rec.ErrorDetail = &detail
	}
	return rec, res
}

// record appends rec and announces the outcome. Once a message has gone out
// the record must land even if the caller has gone away.
func (e *Engine) record(ctx context.Context, rec *model.NotificationRecord) error {
	ctx = context.WithoutCancel(ctx)
	if err := e.deps.Log.Append(ctx, rec); err != nil {
		return fmt.Errorf("recording %s notification: %w", rec.Kind, err)
	}
	metrics.RecordNotification(string(rec.Kind), string(rec.Status))
	e.publish(ctx, rec)
	return nil
}

func (e *Engine) publish(ctx context.Context, rec *model.NotificationRecord) {
	if e.deps.Events == nil {
		return
	}

	var routingKey string
	var payload any
	if rec.Status == model.StatusSent {
		routingKey = contractmq.RoutingNotificationSent
		p := contractmq.NotificationSentPayload{
			NotificationID: rec.ID,
			UserID:         rec.UserID,
			TaskID:         rec.TaskID,
			Kind:           string(rec.Kind),
			Channel:        string(rec.Channel),
			SentAt:         *rec.SentAt,
		}
		if rec.MessageID != nil {
			p.MessageID = *rec.MessageID
		}
		payload = p
	} else {
		routingKey = contractmq.RoutingNotificationFailed
		payload = contractmq.NotificationFailedPayload{
			NotificationID: rec.ID,
			UserID:         rec.UserID,
			TaskID:         rec.TaskID,
			Kind:           string(rec.Kind),
			Channel:        string(rec.Channel),
			Error:          *rec.ErrorDetail,
			FailedAt:       rec.CreatedAt,
		}
	}

	if err := e.deps.Events.Publish(ctx, routingKey, payload); err != nil {
		e.logger.Warn("Failed to publish notification event",
			zap.String("routing_key", routingKey),
			zap.Int64("notification_id", rec.ID),
			zap.Error(err),
		)
	}
}
