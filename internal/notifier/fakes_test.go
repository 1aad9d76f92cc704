package notifier

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"todonotify/internal/delivery"
	"todonotify/internal/model"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// memStore is an in-memory stand-in for the users, preferences, tasks and
// notifications tables.
type memStore struct {
	mu      sync.Mutex
	users   map[int64]model.User
	prefs   map[int64]model.Preference
	tasks   map[int64]*model.Task
	records []model.NotificationRecord
	nextID  int64

	listErr   error
	prefErr   map[int64]error
	appendErr error
	// honorCtx makes Append fail on a cancelled ctx the way pgx does.
	honorCtx  bool
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[int64]model.User),
		prefs:   make(map[int64]model.Preference),
		tasks:   make(map[int64]*model.Task),
		prefErr: make(map[int64]error),
	}
}

func (s *memStore) addUser(id int64, mutate ...func(*model.Preference)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = model.User{ID: id, Email: "user@example.com", FirstName: "User"}
	if len(mutate) > 0 {
		p := model.DefaultPreference(id)
		for _, m := range mutate {
			m(&p)
		}
		s.prefs[id] = p
	}
}

func (s *memStore) addTask(id, userID int64, due *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id] = &model.Task{ID: id, UserID: userID, Title: "task", DueDate: due, Priority: model.PriorityMedium}
}

func (s *memStore) updateTask(id int64, fn func(*model.Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.tasks[id])
}

func (s *memStore) recordsFor(userID int64, kind model.Kind) []model.NotificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.NotificationRecord
	for _, r := range s.records {
		if r.UserID == userID && r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func (s *memStore) recordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *memStore) ListAll(_ context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *memStore) GetByID(_ context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &u, nil
}

func (s *memStore) GetOrCreate(_ context.Context, userID int64) (*model.Preference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.prefErr[userID]; err != nil {
		return nil, err
	}
	p, ok := s.prefs[userID]
	if !ok {
		p = model.DefaultPreference(userID)
		s.prefs[userID] = p
	}
	return &p, nil
}

func (s *memStore) DueBetween(_ context.Context, userID int64, from, to time.Time, limit int) ([]model.Task, error) {
	return s.selectTasks(userID, limit, func(due time.Time) bool {
		return !due.Before(from) && !due.After(to)
	}), nil
}

func (s *memStore) Overdue(_ context.Context, userID int64, asOf time.Time, limit int) ([]model.Task, error) {
	return s.selectTasks(userID, limit, func(due time.Time) bool { return due.Before(asOf) }), nil
}

func (s *memStore) selectTasks(userID int64, limit int, match func(time.Time) bool) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Task
	for _, t := range s.tasks {
		if t.UserID == userID && !t.Completed && t.DueDate != nil && match(*t.DueDate) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *memStore) Stats(_ context.Context, userID int64, now time.Time) (model.TaskStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st model.TaskStats
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		st.Total++
		switch {
		case t.Completed:
			st.Completed++
		case t.DueDate == nil:
		case t.DueDate.Before(now):
			st.Overdue++
		case !t.DueDate.After(now.Add(24 * time.Hour)):
			st.DueSoon++
		}
	}
	return st, nil
}

func (s *memStore) Append(ctx context.Context, rec *model.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	if s.honorCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	s.nextID++
	rec.ID = s.nextID
	s.records = append(s.records, *rec)
	return nil
}

func (s *memStore) ExistsSince(_ context.Context, userID int64, taskID *int64, kind model.Kind, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.UserID == userID && r.Kind == kind && sameTask(r.TaskID, taskID) && !r.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func sameTask(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *memStore) ListByUser(_ context.Context, userID int64, limit, offset int) ([]model.NotificationRecord, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var mine []model.NotificationRecord
	for _, r := range s.records {
		if r.UserID == userID {
			mine = append(mine, r)
		}
	}
	sort.Slice(mine, func(i, j int) bool {
		if mine[i].CreatedAt.Equal(mine[j].CreatedAt) {
			return mine[i].ID > mine[j].ID
		}
		return mine[i].CreatedAt.After(mine[j].CreatedAt)
	})
	total := int64(len(mine))
	if offset >= len(mine) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(mine) {
		end = len(mine)
	}
	return mine[offset:end], total, nil
}

func (s *memStore) CountGrouped(_ context.Context, userID int64, since *time.Time) ([]model.StatBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[model.StatBucket]int64)
	for _, r := range s.records {
		if r.UserID != userID || (since != nil && r.CreatedAt.Before(*since)) {
			continue
		}
		counts[model.StatBucket{Kind: r.Kind, Channel: r.Channel, Status: r.Status}]++
	}
	out := []model.StatBucket{}
	for b, n := range counts {
		b.Count = n
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

func (s *memStore) Totals(_ context.Context, userID int64) (model.LogTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var t model.LogTotals
	for _, r := range s.records {
		if r.UserID != userID {
			continue
		}
		t.Total++
		switch r.Status {
		case model.StatusSent:
			t.Successful++
		case model.StatusFailed:
			t.Failed++
		}
	}
	return t, nil
}

func (s *memStore) Delete(_ context.Context, userID int64, before *time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	var n int64
	for _, r := range s.records {
		if r.UserID == userID && (before == nil || r.CreatedAt.Before(*before)) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return n, nil
}

type sendCall struct {
	tmpl    delivery.Template
	userID  int64
	payload delivery.Payload
}

// fakeChannel records every send. failFor and panicFor select users whose
// sends fail or panic; delay holds each send until it elapses or ctx ends.
type fakeChannel struct {
	mu        sync.Mutex
	calls     []sendCall
	failFor   map[int64]bool
	panicFor  map[int64]bool
	delay     time.Duration
	dryRun    bool
	// afterSend runs once a send has succeeded.
	afterSend func()
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{failFor: make(map[int64]bool), panicFor: make(map[int64]bool)}
}

func (c *fakeChannel) Send(ctx context.Context, tmpl delivery.Template, user model.User, payload delivery.Payload) delivery.Result {
	c.mu.Lock()
	c.calls = append(c.calls, sendCall{tmpl: tmpl, userID: user.ID, payload: payload})
	fail, boom, delay, after := c.failFor[user.ID], c.panicFor[user.ID], c.delay, c.afterSend
	c.mu.Unlock()

	if boom {
		panic("template exploded")
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return delivery.Result{Error: ctx.Err().Error()}
		}
	}
	if fail {
		return delivery.Result{Error: "550 mailbox unavailable"}
	}
	if after != nil {
		after()
	}
	return delivery.Result{Success: true, MessageID: "<msg@test>"}
}

func (c *fakeChannel) DryRun() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dryRun
}

func (c *fakeChannel) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *fakeChannel) callsFor(userID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if call.userID == userID {
			n++
		}
	}
	return n
}

type publishedEvent struct {
	routingKey string
	payload    any
}

type fakeSink struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (s *fakeSink) Publish(_ context.Context, routingKey string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, publishedEvent{routingKey: routingKey, payload: payload})
	return s.err
}

var errStorage = errors.New("connection reset by peer")
