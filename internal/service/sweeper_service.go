package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/internship-api/internal/dto"
	"github.com/noah-isme/internship-api/internal/models"
	"github.com/noah-isme/internship-api/pkg/jobs"
)

// Sweep job types.
const (
	SweepJobProgress   = "progress_sync"
	SweepJobAutoAssign = "auto_assign"
)

// SystemActor is the identity recorded for scheduled operations.
var SystemActor = &models.Actor{UserID: "system-sweeper", Role: models.RoleAdmin}

type sweepPeriodSource interface {
	FindAwaitingProgress(ctx context.Context, day time.Time) ([]models.Period, error)
	FindActive(ctx context.Context) (*models.Period, error)
}

type progressSyncer interface {
	SyncProgress(ctx context.Context, periodID string, actor *models.Actor) (*dto.ProgressSyncResult, error)
}

type autoAssigner interface {
	AutoAssign(ctx context.Context, periodID string, actor *models.Actor) (*models.AutoAssignResult, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) (bool, error)
}

// SweeperConfig toggles the optional auto-assignment pass.
type SweeperConfig struct {
	AutoAssign bool
}

// SweeperService fans scheduled progression work out to a job queue, one job per period.
type SweeperService struct {
	periods  sweepPeriodSource
	progress progressSyncer
	assigner autoAssigner
	logger   *zap.Logger
	clock    Clock
	cfg      SweeperConfig
}

// NewSweeperService constructs the service. assigner may be nil when AutoAssign is off.
func NewSweeperService(periods sweepPeriodSource, progress progressSyncer, assigner autoAssigner, logger *zap.Logger, clock Clock, cfg SweeperConfig) *SweeperService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweeperService{periods: periods, progress: progress, assigner: assigner, logger: logger, clock: clock, cfg: cfg}
}

// Plan lists the jobs due today.
func (s *SweeperService) Plan(ctx context.Context) ([]jobs.Job, error) {
	periods, err := s.periods.FindAwaitingProgress(ctx, s.clock.Today())
	if err != nil {
		return nil, fmt.Errorf("list periods awaiting progress: %w", err)
	}
	planned := make([]jobs.Job, 0, len(periods)+1)
	for _, period := range periods {
		planned = append(planned, jobs.Job{Key: SweepJobProgress + ":" + period.ID, Type: SweepJobProgress})
	}

	if s.cfg.AutoAssign && s.assigner != nil {
		active, err := s.periods.FindActive(ctx)
		if err != nil {
			s.logger.Debug("no active period for auto-assignment", zap.Error(err))
		} else if active.LecturerSelectionWindow().After(s.clock.Now()) {
			// Students left without a lecturer once selection closes are matched automatically.
			planned = append(planned, jobs.Job{Key: SweepJobAutoAssign + ":" + active.ID, Type: SweepJobAutoAssign})
		}
	}
	return planned, nil
}

// Enqueue plans today's jobs and hands them to queue, returning how many were accepted.
func (s *SweeperService) Enqueue(ctx context.Context, queue jobEnqueuer) (int, error) {
	planned, err := s.Plan(ctx)
	if err != nil {
		return 0, err
	}
	accepted := 0
	for _, job := range planned {
		ok, err := queue.Enqueue(job)
		if err != nil {
			return accepted, err
		}
		if ok {
			accepted++
		}
	}
	return accepted, nil
}

// Handle executes one sweep job.
func (s *SweeperService) Handle(ctx context.Context, job jobs.Job) error {
	periodID, err := periodFromJobKey(job)
	if err != nil {
		return err
	}
	switch job.Type {
	case SweepJobProgress:
		result, err := s.progress.SyncProgress(ctx, periodID, SystemActor)
		if err != nil {
			return err
		}
		if len(result.Failures) > 0 {
			s.logger.Warn("progress sync left registrations behind", zap.String("period_id", periodID), zap.Strings("failures", result.Failures))
		}
		return nil
	case SweepJobAutoAssign:
		if s.assigner == nil {
			return nil
		}
		result, err := s.assigner.AutoAssign(ctx, periodID, SystemActor)
		if err != nil {
			return err
		}
		s.logger.Info("scheduled auto-assignment", zap.String("period_id", periodID), zap.Int("assigned", result.AssignedCount), zap.Int("failed", len(result.Failures)))
		return nil
	default:
		return fmt.Errorf("unknown sweep job type %q", job.Type)
	}
}

func periodFromJobKey(job jobs.Job) (string, error) {
	prefix := job.Type + ":"
	if len(job.Key) <= len(prefix) || job.Key[:len(prefix)] != prefix {
		return "", fmt.Errorf("malformed sweep job key %q", job.Key)
	}
	return job.Key[len(prefix):], nil
}
