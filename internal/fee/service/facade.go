package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/internal/observability/metrics"
	"github.com/smallbiznis/feeledger/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// GetStudentFeeDetails reconciles a student's fee definitions, discounts
// and payments and returns the display shape. Failures are reported in the
// Result; no partial result is built when any fetch fails.
func (s *Service) GetStudentFeeDetails(ctx context.Context, tenantID, studentID snowflake.ID, opts feedomain.DetailOptions) feedomain.Result[feedomain.StudentFeeDetails] {
	started := s.clock.Now()
	ctx, span := tracing.Start(ctx, tracerName, "fee.GetStudentFeeDetails",
		attribute.String("tenant_id", tenantID.String()),
		attribute.String("student_id", studentID.String()),
	)

	gen := s.cache.Generation(ctx, tenantID, studentID)
	l, err := s.loadLedger(ctx, tenantID, studentID)
	tracing.End(span, err)
	if err != nil {
		return fail[feedomain.StudentFeeDetails](ctx, s, opDetails, feedomain.MessageLoadFailed, err, started)
	}

	s.cache.Set(ctx, tenantID, studentID, gen, buildSummary(l))
	return succeed(s, opDetails, buildDetails(l, opts, s.clock.Now()), started)
}

// GetStudentFeeSummary returns the totals of a student, served from the
// summary cache when warm.
func (s *Service) GetStudentFeeSummary(ctx context.Context, tenantID, studentID snowflake.ID) feedomain.Result[feedomain.FeeSummary] {
	started := s.clock.Now()
	if tenantID != 0 && studentID != 0 {
		if cached, ok := s.cache.Get(ctx, tenantID, studentID); ok {
			s.feeMetrics.IncSummaryCache(metrics.CacheHit)
			return succeed(s, opSummary, *cached, started)
		}
		s.feeMetrics.IncSummaryCache(metrics.CacheMiss)
	}

	ctx, span := tracing.Start(ctx, tracerName, "fee.GetStudentFeeSummary",
		attribute.String("tenant_id", tenantID.String()),
		attribute.String("student_id", studentID.String()),
	)
	gen := s.cache.Generation(ctx, tenantID, studentID)
	l, err := s.loadLedger(ctx, tenantID, studentID)
	tracing.End(span, err)
	if err != nil {
		return fail[feedomain.FeeSummary](ctx, s, opSummary, feedomain.MessageLoadFailed, err, started)
	}

	// Set drops the summary when a write invalidated the student mid-load.
	summary := buildSummary(l)
	s.cache.Set(ctx, tenantID, studentID, gen, summary)
	return succeed(s, opSummary, summary, started)
}

// refreshSummary recomputes and caches a student's summary after a write.
func (s *Service) refreshSummary(ctx context.Context, tenantID snowflake.ID, student feedomain.Student) (*feedomain.FeeSummary, error) {
	s.cache.Invalidate(ctx, tenantID, student.ID)
	gen := s.cache.Generation(ctx, tenantID, student.ID)
	l, err := s.loadLedgerFor(ctx, tenantID, student)
	if err != nil {
		return nil, err
	}
	summary := buildSummary(l)
	s.cache.Set(ctx, tenantID, student.ID, gen, summary)
	return &summary, nil
}
