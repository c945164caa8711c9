package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/feeledger/internal/audit/domain"
	"github.com/smallbiznis/feeledger/internal/fee/academicyear"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/internal/observability/logger"
	"github.com/smallbiznis/feeledger/internal/observability/tracing"
	"github.com/smallbiznis/feeledger/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const receiptNumberAttempts = 3

// RecordPayment stores a payment and returns it with any warnings and the
// student's recomputed summary. Receipt numbers are assigned per tenant when
// the request does not carry one.
func (s *Service) RecordPayment(ctx context.Context, tenantID snowflake.ID, req feedomain.RecordPaymentRequest) (resp *feedomain.PaymentReceipt, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "fee.RecordPayment",
		attribute.String("tenant_id", tenantID.String()),
	)
	defer func() { tracing.End(span, err) }()

	if tenantID == 0 {
		return nil, feedomain.ErrInvalidTenant
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	if !req.AmountPaid.IsPositive() {
		return nil, feedomain.ErrInvalidAmount
	}

	now := s.clock.Now()
	if req.PaymentDate.After(now) {
		return nil, feedomain.ErrInvalidPaymentDate
	}

	studentID, err := parseID(req.StudentID)
	if err != nil {
		return nil, err
	}
	student, err := s.findStudent(ctx, tenantID, studentID)
	if err != nil {
		return nil, err
	}

	rules := s.rules.Get()
	currency := rules.CurrencySymbol
	warnings := []string{}

	if req.AmountPaid.GreaterThan(rules.LargePayment()) {
		warnings = append(warnings, fmt.Sprintf("Large payment amount detected (above %s)", FormatAmount(currency, rules.LargePayment())))
	}
	if req.PaymentDate.Before(now.AddDate(-1, 0, 0)) {
		warnings = append(warnings, "Payment date is more than 1 year old")
	}

	year := academicyear.Normalize(req.AcademicYear)
	if year == "" {
		year = academicyear.Normalize(student.AcademicYear)
	}
	if year == "" {
		year = s.defaultYear
	}
	component := strings.TrimSpace(req.FeeComponent)

	if year == "" {
		warnings = append(warnings, "Payment has no academic year and will not be matched to a fee component")
	} else {
		matched, err := s.matchesClassComponent(ctx, tenantID, student.ClassID, year, component)
		if err != nil {
			return nil, err
		}
		if !matched {
			warnings = append(warnings, fmt.Sprintf("Fee component %q does not match the %s fee structure of the class", component, year))
		}
	}

	payment := feedomain.PaymentRecord{
		ID:           s.genID.Generate(),
		TenantID:     tenantID,
		StudentID:    student.ID,
		FeeComponent: component,
		AmountPaid:   req.AmountPaid.Round(2),
		PaymentDate:  req.PaymentDate.UTC(),
		PaymentMode:  req.PaymentMode,
		AcademicYear: year,
		Remarks:      strings.TrimSpace(req.Remarks),
		CreatedAt:    now,
	}
	if err := s.insertPayment(ctx, &payment, req.ReceiptNumber); err != nil {
		return nil, err
	}

	s.metrics.RecordPayment(ctx, tenantID.String(), payment.PaymentMode, payment.AmountPaid.InexactFloat64())
	s.recordAudit(ctx, tenantID, auditdomain.Entry{
		Action:     auditdomain.ActionPaymentRecorded,
		TargetType: auditdomain.TargetPayment,
		TargetID:   payment.ID,
		StudentID:  student.ID,
		Metadata: map[string]any{
			"fee_component":  payment.FeeComponent,
			"amount_paid":    payment.AmountPaid.String(),
			"payment_mode":   payment.PaymentMode,
			"receipt_number": payment.ReceiptNumber,
		},
	})
	log := logger.WithContext(ctx, s.log)
	log.Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("student_id", student.ID.String()),
		zap.Int64("receipt_number", payment.ReceiptNumber),
		zap.Int("warnings", len(warnings)),
	)

	receipt := &feedomain.PaymentReceipt{Payment: paymentView(payment), Warnings: warnings}
	summary, err := s.refreshSummary(ctx, tenantID, *student)
	if err != nil {
		log.Warn("summary refresh after payment failed", zap.Error(err))
	} else {
		receipt.Summary = summary
	}
	return receipt, nil
}

// insertPayment writes p inside a transaction. An assigned receipt number
// that collides with a concurrent writer is retried with a fresh number.
func (s *Service) insertPayment(ctx context.Context, p *feedomain.PaymentRecord, requested *int64) error {
	for attempt := 1; ; attempt++ {
		err := s.repo.Transaction(ctx, func(repo feedomain.Repository) error {
			if requested != nil {
				p.ReceiptNumber = *requested
			} else {
				next, err := repo.NextReceiptNumber(ctx, p.TenantID)
				if err != nil {
					return err
				}
				p.ReceiptNumber = next
			}
			return repo.InsertPayment(ctx, p)
		})
		if err == nil {
			return nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return err
		}
		if requested != nil {
			return feedomain.ErrDuplicateReceiptNumber
		}
		if attempt >= receiptNumberAttempts {
			return errors.Join(feedomain.ErrDuplicateReceiptNumber, err)
		}
	}
}

func (s *Service) matchesClassComponent(ctx context.Context, tenantID, classID snowflake.ID, year, component string) (bool, error) {
	defs, err := s.repo.ListClassFeeComponentsForYear(ctx, tenantID, classID, year)
	if err != nil {
		return false, feedomain.NewFetchError("fee_structure", err)
	}
	known := make([]string, 0, len(defs))
	for _, def := range defs {
		known = append(known, def.FeeComponent)
	}
	_, ok := matcherFor(s.rules.Get()).Match(component, known)
	return ok, nil
}
