package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/feeledger/internal/audit/domain"
	"github.com/smallbiznis/feeledger/internal/fee/academicyear"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/internal/observability/logger"
	"go.uber.org/zap"
)

// Discount change actions reported to metrics.
const (
	discountCreated     = "create"
	discountUpdated     = "update"
	discountDeactivated = "deactivate"
)

var discountAuditActions = map[string]string{
	discountCreated:     auditdomain.ActionDiscountCreated,
	discountUpdated:     auditdomain.ActionDiscountUpdated,
	discountDeactivated: auditdomain.ActionDiscountDeactivated,
}

var hundred = decimal.NewFromInt(100)

func (s *Service) CreateDiscount(ctx context.Context, tenantID snowflake.ID, req feedomain.CreateDiscountRequest) (*feedomain.DiscountResponse, error) {
	if tenantID == 0 {
		return nil, feedomain.ErrInvalidTenant
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	if err := validateDiscountValue(req.DiscountType, req.DiscountValue); err != nil {
		return nil, err
	}

	studentID, err := parseID(req.StudentID)
	if err != nil {
		return nil, err
	}
	student, err := s.findStudent(ctx, tenantID, studentID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	d := feedomain.StudentDiscount{
		ID:            s.genID.Generate(),
		TenantID:      tenantID,
		StudentID:     student.ID,
		ClassID:       student.ClassID,
		FeeComponent:  discountComponent(req.FeeComponent),
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		AcademicYear:  academicyear.Normalize(req.AcademicYear),
		IsActive:      true,
		Reason:        strings.TrimSpace(req.Reason),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.InsertDiscount(ctx, &d); err != nil {
		return nil, err
	}

	s.afterDiscountChange(ctx, d, discountCreated)
	return discountResponse(d), nil
}

func (s *Service) UpdateDiscount(ctx context.Context, tenantID snowflake.ID, req feedomain.UpdateDiscountRequest) (*feedomain.DiscountResponse, error) {
	d, err := s.findDiscount(ctx, tenantID, req.ID)
	if err != nil {
		return nil, err
	}

	if req.FeeComponent != nil {
		d.FeeComponent = discountComponent(*req.FeeComponent)
	}
	if req.DiscountType != nil {
		if !req.DiscountType.Valid() {
			return nil, feedomain.ErrInvalidDiscountType
		}
		d.DiscountType = *req.DiscountType
	}
	if req.DiscountValue != nil {
		d.DiscountValue = *req.DiscountValue
	}
	if req.AcademicYear != nil {
		d.AcademicYear = academicyear.Normalize(*req.AcademicYear)
	}
	if req.Reason != nil {
		d.Reason = strings.TrimSpace(*req.Reason)
	}
	if err := validateDiscountValue(d.DiscountType, d.DiscountValue); err != nil {
		return nil, err
	}

	d.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateDiscount(ctx, d); err != nil {
		return nil, err
	}

	s.afterDiscountChange(ctx, *d, discountUpdated)
	return discountResponse(*d), nil
}

// DeactivateDiscount soft deletes a discount. Deactivating an inactive
// discount is a no-op.
func (s *Service) DeactivateDiscount(ctx context.Context, tenantID snowflake.ID, id string) (*feedomain.DiscountResponse, error) {
	d, err := s.findDiscount(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !d.IsActive {
		return discountResponse(*d), nil
	}

	d.IsActive = false
	d.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateDiscount(ctx, d); err != nil {
		return nil, err
	}

	s.afterDiscountChange(ctx, *d, discountDeactivated)
	return discountResponse(*d), nil
}

func (s *Service) findDiscount(ctx context.Context, tenantID snowflake.ID, rawID string) (*feedomain.StudentDiscount, error) {
	if tenantID == 0 {
		return nil, feedomain.ErrInvalidTenant
	}
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	d, err := s.repo.FindDiscount(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, feedomain.ErrDiscountNotFound
	}
	return d, nil
}

func (s *Service) afterDiscountChange(ctx context.Context, d feedomain.StudentDiscount, action string) {
	s.cache.Invalidate(ctx, d.TenantID, d.StudentID)
	s.metrics.RecordDiscountChange(ctx, d.TenantID.String(), action)
	s.recordAudit(ctx, d.TenantID, auditdomain.Entry{
		Action:     discountAuditActions[action],
		TargetType: auditdomain.TargetDiscount,
		TargetID:   d.ID,
		StudentID:  d.StudentID,
		Metadata: map[string]any{
			"fee_component":  d.FeeComponent,
			"discount_type":  string(d.DiscountType),
			"discount_value": d.DiscountValue.String(),
			"is_active":      d.IsActive,
		},
	})
	logger.WithContext(ctx, s.log).Info("discount changed",
		zap.String("action", action),
		zap.String("discount_id", d.ID.String()),
		zap.String("student_id", d.StudentID.String()),
	)
}

func validateDiscountValue(t feedomain.DiscountType, value decimal.Decimal) error {
	if !t.Valid() {
		return feedomain.ErrInvalidDiscountType
	}
	if value.IsNegative() {
		return feedomain.ErrInvalidDiscountValue
	}
	if t == feedomain.DiscountTypePercentage && value.GreaterThan(hundred) {
		return feedomain.ErrInvalidDiscountValue
	}
	return nil
}

func discountComponent(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, feedomain.DiscountComponentAll) {
		return feedomain.DiscountComponentAll
	}
	return value
}

func discountResponse(d feedomain.StudentDiscount) *feedomain.DiscountResponse {
	return &feedomain.DiscountResponse{
		ID:            d.ID.String(),
		StudentID:     d.StudentID.String(),
		ClassID:       d.ClassID.String(),
		FeeComponent:  d.FeeComponent,
		DiscountType:  d.DiscountType,
		DiscountValue: d.DiscountValue,
		AcademicYear:  d.AcademicYear,
		IsActive:      d.IsActive,
		Reason:        d.Reason,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}
