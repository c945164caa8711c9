package service

import (
	"context"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/feeledger/internal/config"
	"github.com/smallbiznis/feeledger/internal/fee/academicyear"
	"github.com/smallbiznis/feeledger/internal/fee/aggregator"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/internal/observability/logger"
	"github.com/smallbiznis/feeledger/internal/observability/metrics"
	"github.com/smallbiznis/feeledger/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const classSyncConcurrency = 8

func (s *Service) findClass(ctx context.Context, tenantID, classID snowflake.ID) (*feedomain.Class, error) {
	if tenantID == 0 {
		return nil, feedomain.ErrInvalidTenant
	}
	if classID == 0 {
		return nil, feedomain.ErrInvalidID
	}
	class, err := s.repo.FindClass(ctx, tenantID, classID)
	if err != nil {
		return nil, feedomain.NewFetchError("class", err)
	}
	if class == nil {
		return nil, feedomain.ErrClassNotFound
	}
	return class, nil
}

// GetClassFeeStructure lists the class level fee components of one academic
// year. An empty year falls back to the configured default, and without one
// every year of the class is listed.
func (s *Service) GetClassFeeStructure(ctx context.Context, tenantID, classID snowflake.ID, academicYear string) feedomain.Result[feedomain.ClassFeeStructure] {
	started := s.clock.Now()
	ctx, span := tracing.Start(ctx, tracerName, "fee.GetClassFeeStructure",
		attribute.String("tenant_id", tenantID.String()),
		attribute.String("class_id", classID.String()),
	)

	structure, err := s.classFeeStructure(ctx, tenantID, classID, academicYear)
	tracing.End(span, err)
	if err != nil {
		return fail[feedomain.ClassFeeStructure](ctx, s, opStructure, feedomain.MessageLoadFailed, err, started)
	}
	return succeed(s, opStructure, *structure, started)
}

func (s *Service) classFeeStructure(ctx context.Context, tenantID, classID snowflake.ID, academicYear string) (*feedomain.ClassFeeStructure, error) {
	class, err := s.findClass(ctx, tenantID, classID)
	if err != nil {
		return nil, err
	}

	year := academicyear.Normalize(academicYear)
	if year == "" {
		year = s.defaultYear
	}

	var defs []feedomain.FeeComponentDefinition
	if year == "" {
		defs, err = s.repo.ListClassFeeComponents(ctx, tenantID, classID)
	} else {
		defs, err = s.repo.ListClassFeeComponentsForYear(ctx, tenantID, classID, year)
	}
	if err != nil {
		return nil, feedomain.NewFetchError("fee_structure", err)
	}

	structure := &feedomain.ClassFeeStructure{
		ClassID:        class.ID.String(),
		ClassName:      class.ClassName,
		Section:        class.Section,
		AcademicYear:   year,
		Components:     make([]feedomain.ClassFeeComponent, 0, len(defs)),
		TotalFee:       decimal.Zero,
		ComponentCount: len(defs),
	}
	for _, def := range defs {
		structure.Components = append(structure.Components, feedomain.ClassFeeComponent{
			ID:           def.ID.String(),
			FeeComponent: def.FeeComponent,
			Amount:       def.Amount,
			DueDate:      def.DueDate,
			AcademicYear: academicyear.Normalize(def.AcademicYear),
		})
		structure.TotalFee = structure.TotalFee.Add(def.Amount)
	}
	if structure.AcademicYear == "" && len(defs) > 0 {
		structure.AcademicYear = academicyear.Normalize(defs[0].AcademicYear)
	}
	return structure, nil
}

// SyncClassFees recomputes every student of a class and refreshes their
// cached summaries. A failing student is reported in its outcome and does
// not stop the others.
func (s *Service) SyncClassFees(ctx context.Context, tenantID, classID snowflake.ID) feedomain.Result[feedomain.ClassSyncReport] {
	started := s.clock.Now()
	ctx, span := tracing.Start(ctx, tracerName, "fee.SyncClassFees",
		attribute.String("tenant_id", tenantID.String()),
		attribute.String("class_id", classID.String()),
	)

	report, err := s.syncClass(ctx, tenantID, classID)
	tracing.End(span, err)
	if err != nil {
		return fail[feedomain.ClassSyncReport](ctx, s, opSync, feedomain.MessageSyncFailed, err, started)
	}

	logger.WithContext(ctx, s.log).Info("class fees synced",
		zap.String("class_id", classID.String()),
		zap.Int("students", report.Students),
		zap.Int("synced", report.Synced),
		zap.Int("failed", report.Failed),
	)
	return succeed(s, opSync, *report, started)
}

func (s *Service) syncClass(ctx context.Context, tenantID, classID snowflake.ID) (*feedomain.ClassSyncReport, error) {
	if _, err := s.findClass(ctx, tenantID, classID); err != nil {
		return nil, err
	}

	students, err := s.repo.ListStudentsByClass(ctx, tenantID, classID)
	if err != nil {
		return nil, feedomain.NewFetchError("students", err)
	}
	// Generations are read before the fee structure so a component update
	// racing the sync keeps its summaries out of the cache.
	gens := make([]uint64, len(students))
	for i, student := range students {
		gens[i] = s.cache.Generation(ctx, tenantID, student.ID)
	}
	defs, err := s.repo.ListClassFeeComponents(ctx, tenantID, classID)
	if err != nil {
		return nil, feedomain.NewFetchError("fee_structure", err)
	}

	rules := s.rules.Get()
	opts := s.aggregatorOptions(rules)
	outcomes := make([]feedomain.StudentSyncOutcome, len(students))

	var mu sync.Mutex
	report := &feedomain.ClassSyncReport{ClassID: classID.String(), Students: len(students)}

	workers, wctx := errgroup.WithContext(ctx)
	workers.SetLimit(classSyncConcurrency)
	for i, student := range students {
		workers.Go(func() error {
			outcome := s.syncStudent(wctx, tenantID, student, gens[i], defs, rules, opts)
			outcomes[i] = outcome

			mu.Lock()
			if outcome.Success {
				report.Synced++
			} else {
				report.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = workers.Wait()

	report.Outcomes = outcomes
	return report, nil
}

func (s *Service) syncStudent(ctx context.Context, tenantID snowflake.ID, student feedomain.Student, gen uint64, defs []feedomain.FeeComponentDefinition, rules config.FeeRules, opts aggregator.Options) feedomain.StudentSyncOutcome {
	outcome := feedomain.StudentSyncOutcome{StudentID: student.ID.String(), TotalOutstanding: decimal.Zero}

	var (
		discounts []feedomain.StudentDiscount
		payments  []feedomain.PaymentRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.repo.ListActiveDiscounts(gctx, tenantID, student.ID)
		if err != nil {
			return feedomain.NewFetchError("student_discounts", err)
		}
		discounts = items
		return nil
	})
	g.Go(func() error {
		items, err := s.repo.ListPayments(gctx, tenantID, student.ID)
		if err != nil {
			return feedomain.NewFetchError("student_fees", err)
		}
		payments = items
		return nil
	})
	if err := g.Wait(); err != nil {
		outcome.Error = err.Error()
		s.feeMetrics.IncClassSyncStudent(metrics.OutcomeFailure)
		logger.WithContext(ctx, s.log).Warn("student fee sync failed",
			zap.String("student_id", student.ID.String()),
			zap.Error(err),
		)
		return outcome
	}

	result := aggregator.Aggregate(aggregator.Input{
		Definitions: defs,
		Discounts:   discounts,
		Payments:    payments,
		Options:     opts,
	})

	l := &ledger{student: student, discounts: discounts, payments: payments, rules: rules, result: result}
	summary := buildSummary(l)
	s.cache.Set(ctx, tenantID, student.ID, gen, summary)
	s.feeMetrics.AddOrphanedPayments(result.Counts.Orphaned)
	s.feeMetrics.IncClassSyncStudent(metrics.OutcomeSuccess)

	outcome.Success = true
	outcome.Status = summary.Status
	outcome.TotalOutstanding = summary.TotalOutstanding
	outcome.OrphanedPayments = result.Counts.Orphaned
	if len(defs) == 0 {
		outcome.Issues++
	}
	outcome.Issues += result.Counts.Orphaned
	return outcome
}
