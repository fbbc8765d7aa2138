// Package main - точка входа для воркера доставки уведомлений.
//
// Воркер читает очередь уведомлений из Redis и доставляет их через SendGrid.
// Без SENDGRID_API_KEY уведомления только пишутся в лог (режим разработки).
// При заданном DATABASE_URL воркер также периодически пересчитывает прогресс
// активных записей, чтобы починить строки, оставшиеся устаревшими.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Supriya-Al/LSM-learn-sub000/config"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/application/command"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/application/eventhandler"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/notification"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/infrastructure/delivery"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/infrastructure/messaging"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/infrastructure/persistence/postgres"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/infrastructure/persistence/redis"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/infrastructure/scheduler"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/infrastructure/scheduler/jobs"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/circuitbreaker"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/logger"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/retry"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/timeutil"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.FromConfig(cfg.Observability.LogLevel, cfg.Observability.LogFormat, cfg.Observability.AddCaller).
		With(logger.String("app", cfg.App.Name), logger.Component("worker"))

	if cfg.Redis.Disabled {
		return errors.New("the notification worker needs Redis (REDIS_DISABLED=true)")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ОЧЕРЕДЬ
	// ─────────────────────────────────────────────────────────────────────────
	cache, err := redis.NewCache(redisConfig(cfg.Redis))
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer cache.Close()
	queue := redis.NewNotificationQueue(cache, cfg.Notification.QueueKey)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. КАНАЛ ДОСТАВКИ
	// ─────────────────────────────────────────────────────────────────────────
	var channel notification.Channel
	if cfg.Notification.SendGridAPIKey != "" {
		channel = delivery.NewSendGridChannel(cfg.Notification.SendGridAPIKey, cfg.Notification.FromName, cfg.Notification.FromEmail)
	} else {
		log.Warn("SENDGRID_API_KEY not set, notifications are only logged")
		channel = delivery.NewLogChannel(log)
	}

	retrier := retry.New(
		retry.WithMaxAttempts(cfg.Notification.MaxRetries),
		retry.WithInitialDelay(500*time.Millisecond),
		retry.WithMaxDelay(10*time.Second),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Debug("retrying delivery",
				logger.Int("attempt", attempt),
				logger.Err(err),
				logger.Duration("delay", delay),
			)
		}),
	)
	breaker := circuitbreaker.New(channel.Name(),
		circuitbreaker.WithTimeout(cfg.Worker.BreakerTimeout),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			log.Warn("delivery circuit changed state",
				logger.String("channel", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
	)

	wcfg := delivery.DefaultWorkerConfig()
	wcfg.Concurrency = cfg.Worker.Concurrency
	wcfg.PollTimeout = cfg.Worker.PollTimeout
	wcfg.SendTimeout = cfg.Worker.SendTimeout
	worker := delivery.NewWorker(queue, channel, retrier, breaker, wcfg, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ПЕРИОДИЧЕСКИЕ ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched, cleanup, err := setupScheduler(runCtx, cfg, queue, log)
	if err != nil {
		return err
	}
	defer cleanup()
	if sched != nil {
		if err := sched.Start(runCtx); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		defer sched.Stop()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────

	log.Info("notification worker is running",
		logger.String("channel", channel.Name()),
		logger.Int("concurrency", wcfg.Concurrency),
	)
	if err := worker.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker: %w", err)
	}

	stats := worker.Stats()
	log.Info("shutdown completed successfully",
		logger.Int64("delivered", stats.Delivered),
		logger.Int64("failed", stats.Failed),
	)
	return nil
}

// setupScheduler builds the progress reconciliation sweep. It returns a nil
// scheduler when the sweep is disabled or there is no shared database.
func setupScheduler(ctx context.Context, cfg *config.Config, queue notification.Queue, log *logger.Logger) (*scheduler.Scheduler, func(), error) {
	noop := func() {}
	if cfg.Worker.ReconcileSchedule == "" {
		return nil, noop, nil
	}
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, progress reconciliation disabled")
		return nil, noop, nil
	}

	pool := postgres.DefaultPoolOptions()
	pool.MaxConns = 4
	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL, pool)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to connect to database: %w", err)
	}
	store := postgres.NewStore(conn)

	// Completions found by the sweep notify the learner like live ones do.
	localBus := messaging.DefaultLocalOptions()
	localBus.Logger = log
	bus := messaging.NewLocalBus(localBus)
	notifier := eventhandler.NewNotifyLearnerHandler(store, queue, eventhandler.Gates{
		DayUnlocked:     cfg.Features.Gate(config.FeatureNotifyDayUnlocked),
		CourseCompleted: cfg.Features.Gate(config.FeatureNotifyCourseCompleted),
	}, log)
	if err := notifier.Register(bus); err != nil {
		conn.Close()
		return nil, noop, fmt.Errorf("failed to register notifier: %w", err)
	}

	promoter := command.NewCompletionPromoter(store, bus, timeutil.SystemClock{}, log)
	jcfg := jobs.DefaultReconcileProgressConfig()
	if cfg.Worker.ReconcileBatchSize > 0 {
		jcfg.BatchSize = cfg.Worker.ReconcileBatchSize
	}
	jcfg.MaxFailures = cfg.Worker.ReconcileMaxFailures

	sched := scheduler.New(cfg.App.Location, log)
	job := jobs.NewReconcileProgressJob(store.Enrollments(), promoter, jcfg, log)
	if err := sched.Register(job, cfg.Worker.ReconcileSchedule); err != nil {
		conn.Close()
		return nil, noop, err
	}

	cleanup := func() {
		_ = bus.Close()
		conn.Close()
	}
	return sched, cleanup, nil
}

// redisConfig maps application settings onto the cache client.
func redisConfig(c config.RedisConfig) redis.Config {
	return redis.Config{
		URL:          c.URL,
		Host:         c.Host,
		Port:         c.Port,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}
