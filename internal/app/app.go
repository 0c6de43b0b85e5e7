// Package app wires configuration, storage and services into the object
// graph shared by the daemon and the operator CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Ignas/schooltool.lyceum/internal/repository"
	"github.com/Ignas/schooltool.lyceum/internal/service"
	"github.com/Ignas/schooltool.lyceum/pkg/cache"
	"github.com/Ignas/schooltool.lyceum/pkg/config"
	"github.com/Ignas/schooltool.lyceum/pkg/database"
	"github.com/Ignas/schooltool.lyceum/pkg/storage"
)

// App holds the connected infrastructure and the services built on it.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *sqlx.DB
	Redis  *redis.Client

	Metrics    *service.MetricsService
	Cache      *service.CacheService
	Calendars  *service.CalendarService
	Timetables *service.TimetableService
	Views      *service.CalendarViewService
	Exports    *service.ExportService
	Holidays   *service.HolidayService
	Warmer     *service.WarmService
	Seeds      *service.SeedService
}

// New connects to Postgres and, when enabled, Redis, then builds every
// service. A Redis outage is logged and views are served uncached.
func New(cfg *config.Config, logr *zap.Logger) (*App, error) {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, calendar views will not be cached", zap.Error(err))
			redisClient = nil
		}
	}

	a, err := Build(cfg, logr, db, redisClient)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// Build assembles the services on already opened connections. redisClient
// may be nil.
func Build(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client) (*App, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()

	events := repository.NewCalendarEventRepository(db)
	terms := repository.NewTermRepository(db)
	owners := repository.NewOwnerRepository(db)
	timetables := repository.NewTimetableRepository(db)
	overlays := repository.NewOverlayRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr, repository.DefaultCacheNamespace)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Calendar.CacheTTL, logr, redisClient != nil)

	calendars := service.NewCalendarService(events, validate, metrics, logr)
	calendars.SetInvalidator(cacheSvc)

	timetableSvc := service.NewTimetableService(owners, timetables, terms,
		service.TimetableServiceConfig{DefaultSchemaID: cfg.Calendar.DefaultSchemaID}, metrics, logr)
	timetableSvc.SetCache(cacheSvc)

	views := service.NewCalendarViewService(calendars, timetableSvc, overlays, owners, cacheSvc, validate,
		service.CalendarViewConfig{
			DefaultTimezone: cfg.Calendar.DefaultTimezone,
			DayStartHour:    cfg.Calendar.DayStartHour,
			DayEndHour:      cfg.Calendar.DayEndHour,
			MaxQueryDays:    cfg.Calendar.MaxQueryDays,
			CacheTTL:        cfg.Calendar.CacheTTL,
		}, metrics, logr)

	var feeds service.FeedStorage
	if cfg.Export.FeedDir != "" {
		store, err := storage.NewFeedStore(cfg.Export.FeedDir)
		if err != nil {
			return nil, err
		}
		feeds = store
	}
	exports := service.NewExportService(calendars, timetableSvc, timetableSvc, feeds, validate,
		service.ExportConfig{ProductID: cfg.Export.ProductID, FeedTTL: cfg.Export.FeedTTL}, metrics, logr)

	holidays := service.NewHolidayService(terms, logr)
	holidays.SetCache(cacheSvc)

	warmer := service.NewWarmService(owners, views, exports, service.WarmConfig{
		Schedule:     cfg.Warmer.Schedule,
		HorizonDays:  cfg.Warmer.HorizonDays,
		PublishFeeds: feeds != nil,
	}, metrics, logr)

	seeds := service.NewSeedService(owners, terms, timetableSvc, timetables, overlays, validate, logr)
	seeds.SetCache(cacheSvc)

	return &App{
		Config:     cfg,
		Logger:     logr,
		DB:         db,
		Redis:      redisClient,
		Metrics:    metrics,
		Cache:      cacheSvc,
		Calendars:  calendars,
		Timetables: timetableSvc,
		Views:      views,
		Exports:    exports,
		Holidays:   holidays,
		Warmer:     warmer,
		Seeds:      seeds,
	}, nil
}

// PingDB checks the database connection.
func (a *App) PingDB(ctx context.Context) error {
	return a.DB.PingContext(ctx)
}

// PingRedis checks the cache connection. Without Redis there is nothing to
// check.
func (a *App) PingRedis(ctx context.Context) error {
	if a.Redis == nil {
		return nil
	}
	return a.Redis.Ping(ctx).Err()
}

// Close releases the connections.
func (a *App) Close() error {
	var firstErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			firstErr = err
		}
	}
	if err := a.DB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Deadline bounds one-shot CLI operations.
const Deadline = 2 * time.Minute
