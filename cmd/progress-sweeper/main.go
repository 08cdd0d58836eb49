package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/internship-api/internal/repository"
	"github.com/noah-isme/internship-api/internal/service"
	"github.com/noah-isme/internship-api/pkg/config"
	"github.com/noah-isme/internship-api/pkg/database"
	"github.com/noah-isme/internship-api/pkg/jobs"
	"github.com/noah-isme/internship-api/pkg/logger"
)

// progress-sweeper starts and completes internships as their calendar dates pass and,
// when enabled, auto-assigns lecturers once the selection window has closed.
func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	logr = logr.With(zap.String("component", "progress-sweeper"))

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	loc := service.LoadLocation(cfg.Internship.Timezone)
	clock := service.SystemClock(loc)
	validate := validator.New()

	periodRepo := repository.NewPeriodRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	lecturerRepo := repository.NewLecturerRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	reportSvc := service.NewWeeklyReportService(repository.NewWeeklyReportRepository(db), registrationRepo, nil, validate, logr,
		service.WeeklyReportServiceConfig{}, service.WithWeeklyReportClock(clock))
	registrationSvc := service.NewRegistrationService(registrationRepo, periodRepo, repository.NewStudentRepository(db), lecturerRepo,
		repository.NewRetakeRepository(db), auditRepo, validate, logr,
		service.WithRegistrationClock(clock), service.WithRegistrationProgress(reportSvc))
	allocationSvc := service.NewAllocationService(repository.NewAllocationRepository(db), registrationRepo, periodRepo, lecturerRepo, auditRepo, validate, logr,
		service.AllocationServiceConfig{DefaultCapacity: cfg.Internship.DefaultLecturerCapacity}, service.WithAllocationClock(clock))

	sweeper := service.NewSweeperService(periodRepo, registrationSvc, allocationSvc, logr, clock,
		service.SweeperConfig{AutoAssign: cfg.Sweeper.AutoAssign})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue := jobs.NewQueue("progress-sweeper", sweeper.Handle, jobs.QueueConfig{
		Workers:    2,
		MaxRetries: 3,
		RetryDelay: 30 * time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	sweep := func(ctx context.Context) error {
		accepted, err := sweeper.Enqueue(ctx, queue)
		if err != nil {
			return err
		}
		logr.Info("sweep enqueued", zap.Int("jobs", accepted))
		return queue.Wait(ctx)
	}

	if *once {
		if err := sweep(ctx); err != nil {
			logr.Fatal("sweep failed", zap.Error(err))
		}
		return
	}

	if !cfg.Sweeper.Enabled {
		logr.Warn("sweeper disabled by configuration; exiting")
		return
	}

	scheduler := jobs.NewScheduler(loc, logr)
	if err := scheduler.Every(cfg.Sweeper.Schedule, "progress-sweep", sweep); err != nil {
		logr.Fatal("invalid sweeper schedule", zap.String("schedule", cfg.Sweeper.Schedule), zap.Error(err))
	}
	scheduler.Start()
	logr.Info("sweeper scheduled", zap.String("schedule", cfg.Sweeper.Schedule), zap.String("timezone", loc.String()))

	<-ctx.Done()
	<-scheduler.Stop().Done()
	logr.Info("sweeper stopped")
}
