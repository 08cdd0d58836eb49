package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/internship-api/api/swagger"
	"github.com/noah-isme/internship-api/internal/handler"
	"github.com/noah-isme/internship-api/internal/repository"
	"github.com/noah-isme/internship-api/internal/router"
	"github.com/noah-isme/internship-api/internal/service"
	"github.com/noah-isme/internship-api/pkg/cache"
	"github.com/noah-isme/internship-api/pkg/config"
	"github.com/noah-isme/internship-api/pkg/database"
	"github.com/noah-isme/internship-api/pkg/export"
	"github.com/noah-isme/internship-api/pkg/jobs"
	"github.com/noah-isme/internship-api/pkg/logger"
	"github.com/noah-isme/internship-api/pkg/storage"
)

// @title Internship API
// @version 1.0.0
// @description Internship registration, lecturer assignment and weekly report rules.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Fatal("database migration failed", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, period cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	files, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Fatal("upload storage unavailable", zap.Error(err))
	}
	blobs := storage.NewBlobStore(files, storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL), cfg.Uploads.PublicBaseURL)

	loc := service.LoadLocation(cfg.Internship.Timezone)
	clock := service.SystemClock(loc)
	validate := validator.New()
	metrics := service.NewMetricsService()

	periodRepo := repository.NewPeriodRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	lecturerRepo := repository.NewLecturerRepository(db)
	allocationRepo := repository.NewAllocationRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	reportRepo := repository.NewWeeklyReportRepository(db)
	retakeRepo := repository.NewRetakeRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.PeriodTTL, logr, cfg.Cache.Enabled && redisClient != nil)
	periodSvc := service.NewPeriodService(periodRepo, studentRepo, retakeRepo, cacheSvc, auditRepo, validate, logr, cfg.Cache.PeriodTTL)
	reportSvc := service.NewWeeklyReportService(reportRepo, registrationRepo, blobs, validate, logr,
		service.WeeklyReportServiceConfig{MaxFileSize: cfg.Uploads.MaxFileSizeBytes, AllowedMIMEs: cfg.Uploads.AllowedMIMEs},
		service.WithWeeklyReportClock(clock),
		service.WithWeeklyReportMetrics(metrics),
		service.WithWeeklyReportCalendar(export.NewCalendarExporter("-//internship-api//weekly reports//EN", nil)),
	)
	registrationSvc := service.NewRegistrationService(registrationRepo, periodRepo, studentRepo, lecturerRepo, retakeRepo, auditRepo, validate, logr,
		service.WithRegistrationClock(clock),
		service.WithRegistrationMetrics(metrics),
		service.WithRegistrationProgress(reportSvc),
	)
	allocationSvc := service.NewAllocationService(allocationRepo, registrationRepo, periodRepo, lecturerRepo, auditRepo, validate, logr,
		service.AllocationServiceConfig{DefaultCapacity: cfg.Internship.DefaultLecturerCapacity},
		service.WithAllocationClock(clock),
		service.WithAllocationMetrics(metrics),
	)
	retakeSvc := service.NewRetakeService(retakeRepo, registrationRepo, auditRepo, validate, logr, service.WithRetakeClock(clock))
	exportSvc := service.NewExportService(registrationRepo, periodRepo, logr, export.NewCSVExporter(), export.NewPDFExporter(), export.NewXLSXExporter())

	verifier := service.NewTokenVerifier(service.TokenVerifierConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		Leeway:   30 * time.Second,
	})

	checks := map[string]handler.Pinger{
		"postgres": handler.PingFunc(db.PingContext),
	}
	if redisClient != nil {
		checks["redis"] = cacheRepo
	}

	engine := router.Setup(cfg, router.Handlers{
		Period:       handler.NewPeriodHandler(periodSvc),
		Registration: handler.NewRegistrationHandler(registrationSvc),
		Allocation:   handler.NewAllocationHandler(allocationSvc),
		WeeklyReport: handler.NewWeeklyReportHandler(reportSvc),
		Retake:       handler.NewRetakeHandler(retakeSvc),
		Export:       handler.NewExportHandler(exportSvc),
		File:         handler.NewFileHandler(blobs),
		Metrics:      handler.NewMetricsHandler(metrics, checks),
	}, router.Dependencies{
		Verifier: verifier,
		Metrics:  metrics,
		Audit:    auditRepo,
		Logger:   logr,
	})

	var scheduler *jobs.Scheduler
	var queue *jobs.Queue
	if cfg.Sweeper.Enabled {
		sweeper := service.NewSweeperService(periodRepo, registrationSvc, allocationSvc, logr, clock,
			service.SweeperConfig{AutoAssign: cfg.Sweeper.AutoAssign})
		queue = jobs.NewQueue("progress-sweeper", sweeper.Handle, jobs.QueueConfig{
			Workers:    1,
			MaxRetries: 3,
			RetryDelay: 30 * time.Second,
			Logger:     logr,
		})
		queue.Start(context.Background())
		scheduler = jobs.NewScheduler(loc, logr)
		err := scheduler.Every(cfg.Sweeper.Schedule, "progress-sweep", func(ctx context.Context) error {
			_, err := sweeper.Enqueue(ctx, queue)
			return err
		})
		if err != nil {
			logr.Fatal("invalid sweeper schedule", zap.String("schedule", cfg.Sweeper.Schedule), zap.Error(err))
		}
		scheduler.Start()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("timezone", loc.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logr.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if scheduler != nil {
		<-scheduler.Stop().Done()
		queue.Stop()
	}
	if err := cacheRepo.Close(); err != nil {
		logr.Warn("redis close failed", zap.Error(err))
	}
}
