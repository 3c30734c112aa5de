// Package bootstrap loads configuration and assembles the adapters, engine,
// and HTTP surface into a runnable process.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	netHTTP "net/http"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/nearmiss1193-afk/outreach/internal/adapters/cache"
	"github.com/nearmiss1193-afk/outreach/internal/adapters/events"
	outreachhttp "github.com/nearmiss1193-afk/outreach/internal/adapters/http"
	"github.com/nearmiss1193-afk/outreach/internal/adapters/postgres"
	"github.com/nearmiss1193-afk/outreach/internal/cadence"
	"github.com/nearmiss1193-afk/outreach/internal/dispatch"
	"github.com/nearmiss1193-afk/outreach/internal/engine"
	"github.com/nearmiss1193-afk/outreach/internal/metrics"
	"github.com/nearmiss1193-afk/outreach/internal/ports"
)

// Runtime holds every wired component for the lifetime of a process. All
// binaries (tick, recycler, heartbeat, callback server) build one Runtime and
// use the slice of it they need.
type Runtime struct {
	cfg          Config
	logger       *slog.Logger
	db           *gorm.DB
	repositories postgres.Repositories
	publisher    ports.Publisher
	quota        ports.QuotaStore
	registry     *metrics.Registry
	orchestrator *engine.Orchestrator
	recycler     *engine.Recycler
	heartbeat    *engine.Heartbeat
	httpServer   *netHTTP.Server
}

func NewRuntime(ctx context.Context, configPath, jobName string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).
		With("service", cfg.ServiceID, "job", jobName)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := postgres.RunMigrations(ctx, db); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	repos := postgres.NewRepositories(db)

	var quota ports.QuotaStore
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			closeDB(db)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		quota = cache.NewRedisQuotaStore(client, cfg.DailyQuotas)
	}

	var publisher ports.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err = events.NewKafkaPublisher(cfg.KafkaBrokers, map[string]string{
			ports.EventTouchRecorded: cfg.TopicTouchRecorded,
			ports.EventTickCompleted: cfg.TopicTickCompleted,
		})
		if err != nil {
			closeDB(db)
			return nil, fmt.Errorf("connect kafka: %w", err)
		}
	} else {
		publisher = events.NewLoggingPublisher(logger)
	}

	location, err := time.LoadLocation(cfg.BusinessTimezone)
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("load business timezone %q: %w", cfg.BusinessTimezone, err)
	}

	senders := []ports.Sender{
		dispatch.NewEmailSender(cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.EmailFrom, cfg.ConnectTimeout, logger),
		dispatch.NewSMSSender(cfg.CRMAPIURL, cfg.CRMAPIKey, cfg.ConnectTimeout, logger),
		dispatch.NewVoiceSender(cfg.VoiceAPIURL, cfg.VoiceAPIKey, cfg.VoiceAssist, cfg.ConnectTimeout, logger),
	}
	dispatcher := dispatch.NewDispatcher(senders, repos.Touches, dispatch.RetryConfig{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		SendTimeout: cfg.SendTimeout,
	}, logger)

	registry := metrics.New(jobName, metrics.DefaultBuckets)

	orchestrator := engine.NewOrchestrator(engine.Deps{
		Leads:      repos.Leads,
		Ledger:     repos.Touches,
		Locks:      repos.Locks,
		State:      repos.State,
		Quota:      quota,
		Publisher:  publisher,
		Dispatcher: dispatcher,
		Router: cadence.NewRouter(cadence.RouterConfig{
			HourStart:    cfg.BusinessHourStart,
			HourEnd:      cfg.BusinessHourEnd,
			Location:     location,
			PhoneChannel: cfg.PhoneChannel,
			EmailSpacing: cfg.EmailSpacing,
			PhoneSpacing: cfg.PhoneSpacing,
		}),
		Schedule: cadence.Schedule{MaxSteps: cfg.MaxSteps, Cooldowns: cfg.Cooldowns()},
		Variants: cfg.Variants,
		Metrics:  registry,
		Logger:   logger,
	}, engine.Config{
		BatchSize:   cfg.BatchSize,
		LockTTL:     cfg.LockTTL,
		TickTimeout: cfg.TickTimeout,
	})

	recyclerCfg := engine.DefaultRecyclerConfig()
	recyclerCfg.Cooldown = cfg.RecycleCooldown
	recycler := engine.NewRecycler(repos.Leads, repos.Locks, repos.State, recyclerCfg, logger)

	handler := outreachhttp.NewHandler(repos.Touches, repos.Leads, registry, logger)
	server := &netHTTP.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           outreachhttp.NewRouter(handler, registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Runtime{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		repositories: repos,
		publisher:    publisher,
		quota:        quota,
		registry:     registry,
		orchestrator: orchestrator,
		recycler:     recycler,
		heartbeat:    engine.NewHeartbeat(repos.State, jobName, logger),
		httpServer:   server,
	}, nil
}

func (r *Runtime) Config() Config                      { return r.cfg }
func (r *Runtime) Logger() *slog.Logger                { return r.logger }
func (r *Runtime) Orchestrator() *engine.Orchestrator  { return r.orchestrator }
func (r *Runtime) Recycler() *engine.Recycler          { return r.recycler }
func (r *Runtime) Heartbeat() *engine.Heartbeat        { return r.heartbeat }
func (r *Runtime) HTTPServer() *netHTTP.Server         { return r.httpServer }
func (r *Runtime) Repositories() postgres.Repositories { return r.repositories }

// Close releases the runtime's external connections. The HTTP server is shut
// down by its owning binary before Close is called.
func (r *Runtime) Close() {
	if err := r.publisher.Close(); err != nil {
		r.logger.Warn("close publisher", "error", err)
	}
	closeDB(r.db)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
