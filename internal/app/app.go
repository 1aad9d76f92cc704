package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"todonotify/internal/config"
	"todonotify/internal/delivery"
	"todonotify/internal/notifier"
	"todonotify/internal/repository"
	"todonotify/internal/scheduler"
	"todonotify/pkg/db"
	"todonotify/pkg/mq"
	"todonotify/pkg/redis"
	"todonotify/pkg/util"
)

var (
	ErrAlreadyStarted = errors.New("app already initialized")
	ErrNotStarted     = errors.New("app not initialized")
)

// ShutdownTimeout bounds how long main waits for in-flight passes.
const ShutdownTimeout = 30 * time.Second

// App owns the storage connections, the engine and its scheduler. It is built
// once in main and handed to whatever needs to trigger passes or read history.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	mu      sync.Mutex
	started bool

	pool      *pgxpool.Pool
	rdb       *goredis.Client
	publisher *mq.Publisher

	Engine      *notifier.Engine
	History     *notifier.History
	Preferences *repository.PreferenceRepository
	Scheduler   *scheduler.Scheduler

	// build wires the components; swapped in tests to avoid real connections.
	build func(ctx context.Context) error
}

func New(cfg *config.Config, logger *zap.Logger) *App {
	a := &App{cfg: cfg, logger: logger}
	a.build = a.connect
	return a
}

// Initialize connects to storage, wires the engine and starts the scheduler.
func (a *App) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return ErrAlreadyStarted
	}

	if err := a.build(ctx); err != nil {
		a.release()
		return err
	}

	a.Scheduler.Start()
	a.started = true
	a.logger.Info("Notification engine initialized")
	return nil
}

// Shutdown stops the scheduler, waits for running passes until ctx ends and
// closes all connections.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return ErrNotStarted
	}

	a.Scheduler.Stop()
	err := a.Scheduler.Wait(ctx)
	if err != nil {
		a.logger.Warn("Shutting down with passes still running", zap.Error(err))
	}

	a.release()
	a.started = false
	a.logger.Info("Notification engine stopped")
	return err
}

// Ready checks the database connection.
func (a *App) Ready(ctx context.Context) error {
	a.mu.Lock()
	pool, started := a.pool, a.started
	a.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	if pool == nil {
		return nil
	}
	return pool.Ping(ctx)
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.cfg
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	a.pool, err = db.NewConnection(ctx, cfg.DB, a.logger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	if err := repository.Migrate(ctx, a.pool, a.logger); err != nil {
		return err
	}

	var locks util.Deduper = util.NewLocalDeduper()
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			a.logger.Warn("Redis unavailable, using in-process locks", zap.Error(err))
		} else {
			a.rdb = rdb
			locks = util.NewRedisDeduper(rdb, cfg.Notifier.LockTTL, a.logger)
		}
	}

	// nil interface, not a nil *mq.Publisher, when events are off
	var events notifier.EventSink
	if cfg.MQ.URL != "" {
		pub, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			a.logger.Warn("RabbitMQ unavailable, outcome events disabled", zap.Error(err))
		} else {
			a.publisher = pub
			events = pub
		}
	}

	channel, err := delivery.NewEmailChannel(cfg.SMTP, loc, a.logger)
	if err != nil {
		return err
	}
	if channel.DryRun() {
		a.logger.Warn("SMTP host not configured, emails will only be logged")
	}

	notifications := repository.NewNotificationRepository(a.pool, a.logger)
	a.Preferences = repository.NewPreferenceRepository(a.pool)
	a.Engine = notifier.NewEngine(notifier.Deps{
		Users:       repository.NewUserRepository(a.pool),
		Preferences: a.Preferences,
		Tasks:       repository.NewTaskRepository(a.pool),
		Log:         notifications,
		Channel:     channel,
		Locks:       locks,
		Events:      events,
	}, notifier.Options{
		Location:             loc,
		Workers:              cfg.Notifier.Workers,
		DeliveryTimeout:      cfg.Notifier.DeliveryTimeout,
		DefaultLeadTimeHours: cfg.Notifier.DefaultLeadTimeHours,
		DigestListLimit:      cfg.Notifier.DigestListLimit,
	}, a.logger)
	a.History = notifier.NewHistory(notifications)

	a.Scheduler = scheduler.New(loc, a.logger)
	return notifier.RegisterJobs(a.Scheduler, a.Engine, notifier.Cadence{
		DueSoonMinute: cfg.Notifier.DueSoonMinute,
		DigestAt:      cfg.Notifier.DigestAt,
		OverdueAt:     cfg.Notifier.OverdueAt,
	})
}

func (a *App) release() {
	if a.publisher != nil {
		a.publisher.Close()
		a.publisher = nil
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Warn("Failed to close redis client", zap.Error(err))
		}
		a.rdb = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
