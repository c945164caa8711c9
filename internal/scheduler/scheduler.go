package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/internal/clock"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	obsmetrics "github.com/smallbiznis/feeledger/internal/observability/metrics"
	"github.com/smallbiznis/feeledger/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

const (
	jobClassFeeSync  = "class_fee_sync"
	resourceClasses  = "classes"
	resourceStudents = "students"

	// auditActor is the actor role recorded for writes made by the loop.
	auditActor = "system"
)

// ClassLocker guards a class against concurrent syncs across replicas.
type ClassLocker interface {
	Acquire(ctx context.Context, classID snowflake.ID, ttl time.Duration) (*ratelimit.Lease, error)
	Release(ctx context.Context, lease *ratelimit.Lease) error
}

type Params struct {
	fx.In

	Log     *zap.Logger
	Repo    feedomain.Repository
	FeeSvc  feedomain.Service
	GenID   *snowflake.Node
	Clock   clock.Clock
	Config  Config                       `optional:"true"`
	Locker  *ratelimit.ClassLock         `optional:"true"`
	Metrics *obsmetrics.SchedulerMetrics `optional:"true"`
}

type Scheduler struct {
	log     *zap.Logger
	cfg     Config
	repo    feedomain.Repository
	feeSvc  feedomain.Service
	genID   *snowflake.Node
	clock   clock.Clock
	locker  ClassLocker
	metrics *obsmetrics.SchedulerMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Repo == nil || p.FeeSvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     p.Config.withDefaults(),
		repo:    p.Repo,
		feeSvc:  p.FeeSvc,
		genID:   p.GenID,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
	// A nil *ClassLock must not become a non-nil interface.
	if p.Locker != nil {
		s.locker = p.Locker
	}
	return s, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run := s.beginRun(ctx)
	s.metrics.IncJobRun(name)

	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if err != nil {
		run.failures++
	}
	s.endRun(ctx, run)
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name, err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.IncJobTimeout(name)
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce walks every class once and recomputes its students' fees.
func (s *Scheduler) RunOnce(parent context.Context) error {
	return s.runJob(parent, jobClassFeeSync, s.cfg.RunInterval, s.ClassFeeSyncJob)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	if s.cfg.RunImmediately {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
	}

	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if lag := s.clock.Now().Sub(nextRun); lag > 0 {
			s.metrics.ObserveRunLoopLag(lag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)
	}
}

// ClassFeeSyncJob pages through classes by id and syncs each one. A class
// whose lock is held by another replica is deferred to the next run.
func (s *Scheduler) ClassFeeSyncJob(ctx context.Context) error {
	run := runFromContext(ctx)

	var afterID snowflake.ID
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		classes, err := s.repo.ListClasses(ctx, afterID, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(classes) == 0 {
			return nil
		}

		for _, class := range classes {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.syncClass(ctx, run, class)
		}
		s.metrics.AddBatchProcessed(jobClassFeeSync, resourceClasses, len(classes))
		afterID = classes[len(classes)-1].ID

		if len(classes) < s.cfg.BatchSize {
			return nil
		}
	}
}

func (s *Scheduler) syncClass(ctx context.Context, run *syncRun, class feedomain.ClassRef) {
	ctx = classContext(ctx, class)

	if s.locker != nil {
		lease, err := s.locker.Acquire(ctx, class.ID, s.cfg.LockTTL)
		if err != nil {
			s.classFailed(ctx, run, class, "lock", err)
			return
		}
		if lease == nil {
			run.deferred++
			s.metrics.IncBatchDeferred(jobClassFeeSync, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
			s.logger(ctx).Debug("class sync deferred, lock held elsewhere", zap.String("class_id", classID(class.ID)))
			return
		}
		defer func() {
			// Release on a fresh context so an expired job deadline still frees the lock.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.locker.Release(releaseCtx, lease); err != nil {
				s.logger(ctx).Warn("class lock release failed", zap.String("class_id", classID(class.ID)), zap.Error(err))
			}
		}()
	}

	classCtx, cancel := context.WithTimeout(ctx, s.cfg.ClassTimeout)
	defer cancel()

	result := s.feeSvc.SyncClassFees(classCtx, class.TenantID, class.ID)
	if !result.Success {
		err := result.Err
		if err == nil {
			err = errors.New(result.Message())
		}
		s.classFailed(ctx, run, class, "sync", err)
		return
	}

	report := result.Data
	s.metrics.AddBatchProcessed(jobClassFeeSync, resourceStudents, report.Synced)
	s.classSynced(ctx, run, class, report)
}
