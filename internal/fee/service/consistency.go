package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// ValidateFeeConsistency audits a student's records. Issues make the
// student inconsistent; warnings do not.
func (s *Service) ValidateFeeConsistency(ctx context.Context, tenantID, studentID snowflake.ID) feedomain.Result[feedomain.ConsistencyReport] {
	started := s.clock.Now()
	ctx, span := tracing.Start(ctx, tracerName, "fee.ValidateFeeConsistency",
		attribute.String("tenant_id", tenantID.String()),
		attribute.String("student_id", studentID.String()),
	)

	report, err := s.consistencyReport(ctx, tenantID, studentID)
	tracing.End(span, err)
	if err != nil {
		return fail[feedomain.ConsistencyReport](ctx, s, opConsistency, feedomain.MessageLoadFailed, err, started)
	}
	return succeed(s, opConsistency, *report, started)
}

func (s *Service) consistencyReport(ctx context.Context, tenantID, studentID snowflake.ID) (*feedomain.ConsistencyReport, error) {
	l, err := s.loadLedger(ctx, tenantID, studentID)
	if err != nil {
		return nil, err
	}
	legacy, err := s.repo.ListLegacyStudentFeeRows(ctx, tenantID, studentID)
	if err != nil {
		return nil, feedomain.NewFetchError("fee_structure", err)
	}
	return auditLedger(l, legacy), nil
}

func auditLedger(l *ledger, legacy []feedomain.FeeComponentDefinition) *feedomain.ConsistencyReport {
	currency := l.rules.CurrencySymbol
	report := &feedomain.ConsistencyReport{
		StudentID: l.student.ID.String(),
		Issues:    []feedomain.ConsistencyFinding{},
		Warnings:  []feedomain.ConsistencyFinding{},
	}

	if len(l.result.Details) == 0 {
		report.Issues = append(report.Issues, feedomain.ConsistencyFinding{
			Code:    feedomain.FindingNoFeeStructure,
			Message: "no fee structure found for the student's class",
		})
	}

	for _, p := range l.result.OrphanedPayments {
		report.Issues = append(report.Issues, feedomain.ConsistencyFinding{
			Code: feedomain.FindingOrphanedPayment,
			Message: fmt.Sprintf("payment of %s for %q (receipt %d) matches no fee component",
				FormatAmount(currency, p.AmountPaid), p.FeeComponent, p.ReceiptNumber),
			Component: p.FeeComponent,
			PaymentID: p.ID.String(),
		})
	}

	if len(legacy) > 0 {
		names := make([]string, 0, len(legacy))
		for _, row := range legacy {
			names = append(names, row.FeeComponent)
		}
		report.Issues = append(report.Issues, feedomain.ConsistencyFinding{
			Code: feedomain.FindingLegacyStudentFees,
			Message: fmt.Sprintf("%d per-student fee rows are ignored by calculation: %s",
				len(legacy), strings.Join(names, ", ")),
		})
	}

	for _, b := range l.result.Details {
		if b.ActualPaidAmount.GreaterThan(b.FinalAmount) {
			report.Warnings = append(report.Warnings, feedomain.ConsistencyFinding{
				Code: feedomain.FindingOverpayment,
				Message: fmt.Sprintf("%s overpaid by %s",
					b.Component, FormatAmount(currency, b.ActualPaidAmount.Sub(b.FinalAmount))),
				Component: b.Component,
			})
		}
	}

	for _, p := range l.payments {
		if strings.TrimSpace(p.AcademicYear) == "" {
			report.Warnings = append(report.Warnings, feedomain.ConsistencyFinding{
				Code:      feedomain.FindingYearlessPayment,
				Message:   fmt.Sprintf("payment receipt %d has no academic year", p.ReceiptNumber),
				Component: p.FeeComponent,
				PaymentID: p.ID.String(),
			})
		}
	}

	report.Consistent = len(report.Issues) == 0
	return report
}
