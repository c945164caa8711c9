package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	obscontext "github.com/smallbiznis/feeledger/internal/observability/context"
	obslogger "github.com/smallbiznis/feeledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/feeledger/internal/observability/metrics"
	"github.com/smallbiznis/feeledger/pkg/tenantctx"
	"go.uber.org/zap"
)

// syncRun tallies one pass over all classes. It is owned by a single
// goroutine.
type syncRun struct {
	id        string
	startedAt time.Time
	classes   int
	students  int
	deferred  int
	failures  int
	issues    int
}

type syncRunKey struct{}

func (s *Scheduler) beginRun(ctx context.Context) (context.Context, *syncRun) {
	run := &syncRun{
		id:        s.genID.Generate().String(),
		startedAt: s.clock.Now(),
	}
	ctx = context.WithValue(ctx, syncRunKey{}, run)
	ctx = obscontext.WithActor(ctx, auditActor, "scheduler")
	s.logger(ctx).Info("class fee sync started",
		zap.String("run_id", run.id),
		zap.Int("batch_size", s.cfg.BatchSize),
	)
	return ctx, run
}

func (s *Scheduler) endRun(ctx context.Context, run *syncRun) {
	fields := []zap.Field{
		zap.String("run_id", run.id),
		zap.Duration("duration", s.clock.Now().Sub(run.startedAt)),
		zap.Int("classes", run.classes),
		zap.Int("students", run.students),
		zap.Int("deferred", run.deferred),
		zap.Int("failures", run.failures),
		zap.Int("consistency_issues", run.issues),
	}
	if run.failures > 0 {
		s.logger(ctx).Warn("class fee sync finished", fields...)
		return
	}
	s.logger(ctx).Info("class fee sync finished", fields...)
}

func runFromContext(ctx context.Context) *syncRun {
	if run, ok := ctx.Value(syncRunKey{}).(*syncRun); ok {
		return run
	}
	// Calls outside RunOnce still need somewhere to count.
	return &syncRun{}
}

// classContext scopes logs and audit entries of one class sync to its tenant.
func classContext(ctx context.Context, class feedomain.ClassRef) context.Context {
	if class.TenantID == 0 {
		return ctx
	}
	return tenantctx.WithTenantID(ctx, class.TenantID)
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) classFailed(ctx context.Context, run *syncRun, class feedomain.ClassRef, stage string, err error) {
	run.failures++
	s.logger(ctx).Error("class fee sync failed",
		zap.String("class_id", classID(class.ID)),
		zap.String("stage", stage),
		zap.String("reason", obsmetrics.ClassifySchedulerJobReason(err)),
		zap.Error(err),
	)
}

func (s *Scheduler) classSynced(ctx context.Context, run *syncRun, class feedomain.ClassRef, report *feedomain.ClassSyncReport) {
	issues := 0
	for _, outcome := range report.Outcomes {
		issues += outcome.Issues
	}
	run.classes++
	run.students += report.Synced
	run.issues += issues

	fields := []zap.Field{
		zap.String("class_id", classID(class.ID)),
		zap.Int("students", report.Students),
		zap.Int("synced", report.Synced),
		zap.Int("failed", report.Failed),
		zap.Int("consistency_issues", issues),
	}
	if report.Failed > 0 || issues > 0 {
		s.logger(ctx).Warn("class fees synced with problems", fields...)
		return
	}
	s.logger(ctx).Debug("class fees synced", fields...)
}

func classID(id snowflake.ID) string {
	if id == 0 {
		return ""
	}
	return id.String()
}
