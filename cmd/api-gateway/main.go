package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/timetable-api/api/swagger"
	"github.com/noah-isme/timetable-api/internal/handler"
	"github.com/noah-isme/timetable-api/internal/repository"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/cache"
	"github.com/noah-isme/timetable-api/pkg/config"
	"github.com/noah-isme/timetable-api/pkg/database"
	"github.com/noah-isme/timetable-api/pkg/logger"
	"github.com/noah-isme/timetable-api/pkg/storage"
)

// @title Timetable API
// @version 1.0.0
// @description Generates weekly class timetables for course sections and serves them as grids and documents.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(context.Background(), cfg.Database, logr.Named("db"))
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Scheduler.CacheTTL, logr, cfg.Cache.Enabled && redisClient != nil)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	if cfg.Bootstrap.AdminEmail != "" && cfg.Bootstrap.AdminPassword != "" {
		created, err := authSvc.EnsureAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword)
		if err != nil {
			logr.Fatal("failed to bootstrap admin", zap.Error(err))
		}
		if created {
			logr.Info("bootstrap admin created", zap.String("email", cfg.Bootstrap.AdminEmail))
		}
	}

	userSvc := service.NewUserService(userRepo, validate, logr.Named("users"))
	courseSvc := service.NewCourseService(courseRepo, cacheSvc, validate, logr)
	timetableSvc := service.NewTimetableService(timetableRepo, courseRepo, cacheSvc, metricsSvc, logr, service.TimetableConfig{
		Engine: scheduler.Config{
			SlotsPerDay:    cfg.Scheduler.SlotsPerDay,
			MaxConsecutive: cfg.Scheduler.MaxConsecutive,
			AttemptFactor:  cfg.Scheduler.AttemptFactor,
		},
		CacheTTL: cfg.Scheduler.CacheTTL,
	})

	batchSvc := service.NewBatchService(timetableSvc, metricsSvc, validate, logr.Named("batch"), service.BatchConfig{
		Workers:    cfg.Scheduler.BatchWorkers,
		BufferSize: cfg.Scheduler.BatchBuffer,
		MaxRetries: cfg.Scheduler.BatchRetries,
		RetryDelay: cfg.Scheduler.BatchBackoff,
		TTL:        cfg.Scheduler.BatchTTL,
	})
	batchSvc.Start(ctx)
	defer batchSvc.Stop()

	store, err := storage.NewDiskStore(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	signer := storage.NewLinkSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(timetableSvc, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr.Named("export"))
	go exportSvc.RunCleanup(ctx, cfg.Exports.CleanupInterval)

	deps := map[string]handler.Pinger{"database": db}
	if redisClient != nil {
		deps["cache"] = handler.PingFunc(cacheRepo.Ping)
	}

	r := newRouter(cfg, logr, routerDeps{
		auth:       authSvc,
		audit:      userRepo,
		metrics:    metricsSvc,
		auths:      handler.NewAuthHandler(authSvc),
		users:      handler.NewUserHandler(userSvc),
		courses:    handler.NewCourseHandler(courseSvc),
		timetables: handler.NewTimetableHandler(timetableSvc, exportSvc),
		exports:    handler.NewExportHandler(exportSvc),
		batches:    handler.NewBatchHandler(batchSvc),
		scheduler:  handler.NewSchedulerHandler(),
		probes:     handler.NewMetricsHandler(metricsSvc, deps),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
