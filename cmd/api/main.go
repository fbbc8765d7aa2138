// Package main - точка входа для REST API движка прохождения курсов.
//
// API принимает попытки квизов, отметки посещаемости и отдаёт прогресс,
// план курса и решение о сертификате. Побочные эффекты (уведомления)
// уходят через шину событий в очередь Redis и доставляются воркером.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Application layer
	"github.com/Supriya-Al/LSM-learn-sub000/internal/application/command"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/application/eventhandler"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/application/query"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/progress"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"

	// Infrastructure layer
	"github.com/Supriya-Al/LSM-learn-sub000/internal/infrastructure/messaging"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/infrastructure/persistence/memory"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/infrastructure/persistence/postgres"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/infrastructure/persistence/redis"

	// Interface layer
	httpserver "github.com/Supriya-Al/LSM-learn-sub000/internal/interface/http"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/interface/http/handlers"

	// Packages
	"github.com/Supriya-Al/LSM-learn-sub000/config"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/logger"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/timeutil"
)

// eventBus is what the API needs from either bus implementation.
type eventBus interface {
	shared.EventPublisher
	shared.EventSubscriber
	Close() error
}

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
		With(logger.String("app", cfg.App.Name), logger.String("env", string(cfg.App.Environment)))
	log.Info("starting API",
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
	)
	log.Debug("feature flags", logger.Any("flags", cfg.Features.Summary()))

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ХРАНИЛИЩЕ (PostgreSQL или память для разработки)
	// ─────────────────────────────────────────────────────────────────────────
	var store progress.Store
	if cfg.Database.URL != "" {
		pool := postgres.DefaultPoolOptions()
		if cfg.Database.MaxOpenConns > 0 {
			pool.MaxConns = int32(cfg.Database.MaxOpenConns)
		}
		if cfg.Database.ConnMaxLifetime > 0 {
			pool.MaxConnLifetime = cfg.Database.ConnMaxLifetime
		}
		if cfg.Database.ConnMaxIdleTime > 0 {
			pool.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
		}

		log.Info("connecting to database...")
		conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL, pool)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer conn.Close()

		if cfg.Database.AutoMigrate {
			if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("database schema is up to date")
		}
		store = postgres.NewStore(conn)
		health.AddCheck("database", handlers.PingCheck(conn))
	} else {
		log.Warn("DATABASE_URL not set, using in-memory store")
		mem := memory.NewStore()
		store = mem
		health.AddCheck("database", handlers.PingCheck(mem))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS: кеш каталога, очередь уведомлений, шина событий
	// ─────────────────────────────────────────────────────────────────────────
	var (
		cache *redis.Cache
		bus   eventBus
	)
	if !cfg.Redis.Disabled {
		cache, err = redis.NewCache(redisConfig(cfg.Redis))
		if err != nil {
			log.Warn("failed to connect to Redis, running without it", logger.Err(err))
			cache = nil
		} else {
			defer cache.Close()
			health.AddOptionalCheck("redis", handlers.PingCheck(cache))
			log.Info("Redis connection established")
		}
	}

	if cache != nil && cfg.Features.IsEnabled(config.FeatureCatalogCache, nil) {
		store = redis.NewCachingStore(store, cache, cfg.Redis.CatalogTTL, log)
	}

	localBus := messaging.DefaultLocalOptions()
	localBus.Logger = log
	if cache != nil {
		fb, err := messaging.NewFanoutBus(messaging.FanoutOptions{
			Transport: messaging.NewRedisTransport(cache.Client()),
			Local:     localBus,
			Logger:    log,
		})
		if err != nil {
			return fmt.Errorf("failed to start event bus: %w", err)
		}
		bus = fb
	} else {
		bus = messaging.NewLocalBus(localBus)
	}
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	if cache != nil {
		queue := redis.NewNotificationQueue(cache, cfg.Notification.QueueKey)
		notifier := eventhandler.NewNotifyLearnerHandler(store, queue, eventhandler.Gates{
			DayUnlocked:      cfg.Features.Gate(config.FeatureNotifyDayUnlocked),
			CourseCompleted:  cfg.Features.Gate(config.FeatureNotifyCourseCompleted),
			AttendanceMarked: cfg.Features.Gate(config.FeatureNotifyAttendance),
			Enrolled:         cfg.Features.Gate(config.FeatureNotifyEnrolled),
		}, log)
		// каждое событие видят все экземпляры, а письмо ставит в очередь только автор
		if err := notifier.Register(messaging.OwnEvents(bus)); err != nil {
			return fmt.Errorf("failed to register notifier: %w", err)
		}
	} else {
		log.Warn("notifications disabled: no Redis queue")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. COMMANDS & QUERIES
	// ─────────────────────────────────────────────────────────────────────────
	clock := timeutil.SystemClock{}
	loc := cfg.App.Location
	promoter := command.NewCompletionPromoter(store, bus, clock, log)

	deps := httpserver.Dependencies{
		Enroll: command.NewEnrollHandler(store, bus, clock, log),
		Drop:   command.NewDropEnrollmentHandler(store, bus, clock, log),
		SubmitQuiz: command.NewSubmitQuizHandler(command.SubmitQuizDeps{
			Store:          store,
			Promoter:       promoter,
			Events:         bus,
			Clock:          clock,
			Location:       loc,
			AutoAttendance: cfg.Features.Gate(config.FeatureAutoAttendanceOnPass),
			Logger:         log,
		}),
		RecordView:     command.NewRecordLessonViewHandler(store, clock, log),
		MarkAttendance: command.NewMarkAttendanceHandler(store, promoter, bus, clock, loc, log),
		ImportCourse: command.NewImportCourseHandler(store, bus, clock, log).
			WithDefaultPassingScore(cfg.Progress.DefaultPassingScore),
		Recompute:     command.NewRecomputeProgressHandler(promoter, log),
		Progress:      query.NewGetEnrollmentProgressHandler(store),
		Certificate:   query.NewGetCertificateEligibilityHandler(store),
		Outline:       query.NewGetCourseOutlineHandler(store),
		HealthChecker: health,
		Logger:        log,
	}

	deps.Auth, err = handlers.NewJWTAuthenticator(handlers.AuthConfig{
		HMACSecret:      cfg.Auth.JWTSecret,
		RSAPublicKeyPEM: cfg.Auth.JWTPublicKeyPEM,
		Issuer:          cfg.Auth.Issuer,
		Audience:        cfg.Auth.Audience,
		Leeway:          cfg.Auth.Leeway,
	})
	if err != nil {
		return fmt.Errorf("failed to configure auth: %w", err)
	}

	if cfg.HTTP.QuizRatePerMinute > 0 {
		rl := handlers.DefaultRateLimitConfig()
		rl.RequestsPerMinute = cfg.HTTP.QuizRatePerMinute
		rl.BurstSize = cfg.HTTP.QuizBurst
		deps.QuizLimiter = handlers.NewRateLimiter(rl)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	srvCfg := httpserver.DefaultConfig()
	srvCfg.Host = cfg.HTTP.Host
	srvCfg.Port = cfg.HTTP.Port
	srvCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	srvCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	srvCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	srvCfg.RequestTimeout = cfg.HTTP.RequestTimeout
	srvCfg.MaxBodyBytes = cfg.HTTP.MaxBodyBytes
	srvCfg.EnableCORS = cfg.HTTP.EnableCORS
	srvCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	srvCfg.StrictCatalogIntegrity = cfg.Progress.StrictCatalogIntegrity
	srvCfg.Location = loc
	srvCfg.Version = cfg.App.Version
	srvCfg.ShutdownTimeout = shutdownTimeout(cfg)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ЗАПУСК ДО СИГНАЛА
	// ─────────────────────────────────────────────────────────────────────────
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := httpserver.NewServer(srvCfg, deps).Run(runCtx); err != nil {
		return err
	}
	log.Info("shutdown completed successfully")
	return nil
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

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.HTTP.ShutdownTimeout > 0 {
		return cfg.HTTP.ShutdownTimeout
	}
	return cfg.App.ShutdownTimeout
}
