package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/ev-charging-backend/internal/apperror"
	"github.com/iliyamo/ev-charging-backend/internal/config"
	"github.com/iliyamo/ev-charging-backend/internal/database"
	"github.com/iliyamo/ev-charging-backend/internal/logger"
	"github.com/iliyamo/ev-charging-backend/internal/metrics"
	"github.com/iliyamo/ev-charging-backend/internal/middleware"
	"github.com/iliyamo/ev-charging-backend/internal/queue"
	"github.com/iliyamo/ev-charging-backend/internal/repository"
	"github.com/iliyamo/ev-charging-backend/internal/router"
	"github.com/iliyamo/ev-charging-backend/internal/storage"
	"github.com/iliyamo/ev-charging-backend/internal/validator"
	"github.com/iliyamo/ev-charging-backend/internal/worker"
)

const serviceName = "ev-charging-backend"

func main() {
	cfg := config.Load()

	zl, err := logger.Init(logger.LogConfig{Level: cfg.LogLevel, Environment: cfg.Env, ServiceName: serviceName})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		zl.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := migrateUp(cfg); err != nil {
			zl.Fatal("apply migrations", zap.Error(err))
		}
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		zl.Warn("redis unavailable; rate limiting and response cache disabled")
	} else {
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var events queue.Publisher = queue.Noop{}
	var consumerDone <-chan struct{}
	if cfg.EventsEnabled {
		events = queue.NewAMQPPublisher(cfg.RabbitURL, cfg.EventsQueue)
		consumer := &queue.Consumer{
			URL:     cfg.RabbitURL,
			Queue:   cfg.EventsQueue,
			LogPath: cfg.EventsLogPath,
			Log:     zl.Named("events"),
		}
		consumerDone = consumer.Start(ctx)
	}

	media, err := storage.NewLocal(cfg.MediaDir, cfg.MediaBaseURL, cfg.MediaMaxBytes)
	if err != nil {
		zl.Fatal("init media storage", zap.Error(err))
	}

	users := repository.NewUserRepo(db)
	vehicles := repository.NewVehicleRepo(db)
	chargers := repository.NewChargerRepo(db)
	ports := repository.NewPortRepo(db)
	plans := repository.NewPlanRepo(db)
	subs := repository.NewSubscriptionRepo(db)

	e := echo.New()
	e.HideBanner = true
	e.Validator = validator.New()
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(zl)
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(logger.Middleware())
	e.Use(metrics.NewHTTPMetrics(serviceName).Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowCredentials: true,
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete},
	}))

	router.Register(e, router.Deps{
		Cfg:       cfg,
		Users:     users,
		Vehicles:  vehicles,
		Chargers:  chargers,
		Ports:     ports,
		Plans:     plans,
		Subs:      subs,
		Media:     media,
		Events:    events,
		DB:        db,
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb).Middleware(),
		Cache:     middleware.NewResponseCache(config.LoadCacheConfig(), rdb).Middleware(),
	})

	sweeper := worker.NewExpiryWorker(subs, zl.Named("expiry"), cfg.ExpirySweepSpec)
	if err := sweeper.Start(); err != nil {
		zl.Fatal("start expiry worker", zap.Error(err))
	}

	go func() {
		addr := ":" + cfg.Port
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sweeper.Stop(shutdownCtx)
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("http shutdown", zap.Error(err))
	}
	if consumerDone != nil {
		select {
		case <-consumerDone:
		case <-shutdownCtx.Done():
			zl.Warn("event consumer did not stop in time")
		}
	}
}

func migrateUp(cfg config.Config) error {
	m, err := database.NewMigrator(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}
