package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/internal/config"
	"github.com/smallbiznis/feeledger/internal/fee/aggregator"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// ledger is one student's records and their reconciliation.
type ledger struct {
	student     feedomain.Student
	class       *feedomain.Class
	definitions []feedomain.FeeComponentDefinition
	discounts   []feedomain.StudentDiscount
	payments    []feedomain.PaymentRecord
	rules       config.FeeRules
	result      aggregator.Result
}

func (s *Service) findStudent(ctx context.Context, tenantID, studentID snowflake.ID) (*feedomain.Student, error) {
	if tenantID == 0 {
		return nil, feedomain.ErrInvalidTenant
	}
	if studentID == 0 {
		return nil, feedomain.ErrInvalidID
	}
	student, err := s.repo.FindStudent(ctx, tenantID, studentID)
	if err != nil {
		return nil, feedomain.NewFetchError("student", err)
	}
	if student == nil {
		return nil, feedomain.ErrStudentNotFound
	}
	return student, nil
}

func (s *Service) loadLedger(ctx context.Context, tenantID, studentID snowflake.ID) (*ledger, error) {
	student, err := s.findStudent(ctx, tenantID, studentID)
	if err != nil {
		return nil, err
	}
	return s.loadLedgerFor(ctx, tenantID, *student)
}

// loadLedgerFor fetches the class, its fee definitions, the active discounts
// and the payments of student concurrently. The first failure cancels the
// other fetches and nothing is aggregated. A student whose class row is gone
// fails with ErrClassNotFound.
func (s *Service) loadLedgerFor(ctx context.Context, tenantID snowflake.ID, student feedomain.Student) (*ledger, error) {
	ctx, span := tracing.Start(ctx, tracerName, "fee.load_records",
		attribute.String("tenant_id", tenantID.String()),
		attribute.String("student_id", student.ID.String()),
		attribute.String("class_id", student.ClassID.String()),
	)

	l := &ledger{student: student, rules: s.rules.Get()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		class, err := s.repo.FindClass(gctx, tenantID, student.ClassID)
		if err != nil {
			return feedomain.NewFetchError("class", err)
		}
		if class == nil {
			return feedomain.ErrClassNotFound
		}
		l.class = class
		return nil
	})
	g.Go(func() error {
		defs, err := s.repo.ListClassFeeComponents(gctx, tenantID, student.ClassID)
		if err != nil {
			return feedomain.NewFetchError("fee_structure", err)
		}
		l.definitions = defs
		return nil
	})
	g.Go(func() error {
		discounts, err := s.repo.ListActiveDiscounts(gctx, tenantID, student.ID)
		if err != nil {
			return feedomain.NewFetchError("student_discounts", err)
		}
		l.discounts = discounts
		return nil
	})
	g.Go(func() error {
		payments, err := s.repo.ListPayments(gctx, tenantID, student.ID)
		if err != nil {
			return feedomain.NewFetchError("student_fees", err)
		}
		l.payments = payments
		return nil
	})

	if err := g.Wait(); err != nil {
		tracing.End(span, err)
		return nil, err
	}

	l.result = aggregator.Aggregate(aggregator.Input{
		Definitions: l.definitions,
		Discounts:   l.discounts,
		Payments:    l.payments,
		Options:     s.aggregatorOptions(l.rules),
	})
	span.SetAttributes(
		attribute.Int("fee.groups", l.result.Counts.Groups),
		attribute.Int("fee.orphaned_payments", l.result.Counts.Orphaned),
	)
	tracing.End(span, nil)

	s.feeMetrics.AddOrphanedPayments(l.result.Counts.Orphaned)
	return l, nil
}
