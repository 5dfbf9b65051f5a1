package cmd

import (
	"context"
	"fmt"
	"time"

	"matchmaker/core/cache"
	"matchmaker/core/config"
	"matchmaker/core/database"
	"matchmaker/core/metrics"
	"matchmaker/core/storage"
	"matchmaker/feature/accounts"
	"matchmaker/feature/matching/engine"
	"matchmaker/feature/matching/events"
	"matchmaker/feature/matching/queue"
	mreconcile "matchmaker/feature/matching/reconcile"
	"matchmaker/feature/matching/waiting"
	"matchmaker/feature/realtime/registry"
	"matchmaker/feature/rooms"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *gorm.DB
	redis     redis.UniversalClient
	bus       events.Bus
	cache     queue.Cache
	store     *waiting.Store
	directory *accounts.Directory
	ledger    *accounts.Ledger
	rooms     *rooms.Store
	engine    *engine.Engine
	reconcile *mreconcile.Runner
	registry  *prometheus.Registry
	recorder  metrics.Recorder
}

// newApp connects every backend and wires the engine. Without a redis address the queue
// cache, event bus and connection registry stay in process.
func newApp(ctx context.Context, cfg *config.Config, logg *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logg}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	a.db = db

	a.store = waiting.NewStore(db)
	a.directory = accounts.NewDirectory(db)
	a.ledger = accounts.NewLedger(db)
	a.rooms = rooms.NewStore(db)
	for name, migrate := range map[string]func() error{
		"waiting":  a.store.AutoMigrate,
		"accounts": a.directory.AutoMigrate,
		"rooms":    a.rooms.AutoMigrate,
	} {
		if err := migrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate %s tables: %w", name, err)
		}
	}

	if cfg.Redis.Addr != "" {
		client, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.redis = client
		a.cache = queue.NewRedisCache(client, cfg.Matching.QueuePrefix)
	} else {
		logg.Warn("No redis configured, queue cache and connection registry are process local")
		a.cache = queue.NewMemoryCache()
		if cfg.Events.Driver == events.DriverRedis || cfg.Events.Driver == "" {
			cfg.Events.Driver = events.DriverMemory
		}
	}

	a.bus, err = events.Open(cfg.Events, a.redis, logg)
	if err != nil {
		a.close()
		return nil, err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.recorder = metrics.NewMetrics(a.registry)

	a.engine = engine.New(engine.Deps{
		Store:    a.store,
		Cache:    a.cache,
		Bus:      a.bus,
		Profiles: a.directory,
		Credits:  a.ledger,
		Rooms:    a.rooms,
		Policy:   engine.PolicyFromConfig(cfg.Matching),
		Metrics:  a.recorder,
		Logger:   logg.Named("engine"),
	})

	archive, err := a.reportArchive(ctx)
	if err != nil {
		logg.Warn("Reconcile reports will not be archived", zap.Error(err))
	}
	grace := time.Duration(cfg.Matching.ReconcileGraceSeconds) * time.Second
	adapter := mreconcile.NewAdapter(a.store, a.cache, a.directory, grace)
	a.reconcile = mreconcile.NewRunner(adapter, archive, a.recorder, logg.Named("reconcile"))

	return a, nil
}

func (a *app) reportArchive(ctx context.Context) (mreconcile.Archive, error) {
	if !a.cfg.Storage.Enabled {
		return mreconcile.Archive{}, nil
	}
	client, err := storage.NewClient(a.cfg.Storage)
	if err != nil {
		return mreconcile.Archive{}, err
	}
	if err := storage.EnsureBucket(ctx, client, a.cfg.Storage.Bucket, a.cfg.Storage.Region); err != nil {
		return mreconcile.Archive{}, err
	}
	return mreconcile.Archive{Client: client, Bucket: a.cfg.Storage.Bucket}, nil
}

// connectionRegistry returns the registry shared by gateway instances.
func (a *app) connectionRegistry() registry.Registry {
	ttl := time.Duration(a.cfg.Realtime.ConnectionTTLSeconds) * time.Second
	if a.redis != nil {
		return registry.NewRedisRegistry(a.redis, a.cfg.Matching.QueuePrefix, ttl)
	}
	return registry.NewMemoryRegistry(ttl)
}

func (a *app) close() {
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.logger.Warn("Failed to close event bus", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// loadApp loads configuration and the logger, then wires the app.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logg, err := loggerFor(cfg)
	if err != nil {
		return nil, err
	}

	return newApp(ctx, cfg, logg)
}
