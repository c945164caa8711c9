package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/feeledger/internal/audit/domain"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/internal/observability/logger"
	"go.uber.org/zap"
)

// UpdateFeeComponentAmount changes the amount of a class level fee row and
// drops the cached summaries of every student in the class. Discounts are
// applied to the new amount on the next calculation.
func (s *Service) UpdateFeeComponentAmount(ctx context.Context, tenantID snowflake.ID, req feedomain.UpdateFeeComponentRequest) (*feedomain.FeeComponentResponse, error) {
	if tenantID == 0 {
		return nil, feedomain.ErrInvalidTenant
	}
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	if req.Amount.IsNegative() {
		return nil, feedomain.ErrInvalidAmount
	}

	def, err := s.repo.FindFeeComponent(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, feedomain.ErrFeeComponentNotFound
	}
	if def.StudentID != nil {
		return nil, feedomain.ErrLegacyFeeRow
	}

	// The class roster is read before the write so nothing can fail between
	// saving the amount and invalidating the summaries.
	students, err := s.repo.ListStudentsByClass(ctx, tenantID, def.ClassID)
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}

	amount := req.Amount.Round(2)
	def.Amount = amount
	def.BaseAmount = amount
	def.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateFeeComponent(ctx, def); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, tenantID, ids...)
	s.metrics.RecordStructureUpdate(ctx, tenantID.String())
	s.recordAudit(ctx, tenantID, auditdomain.Entry{
		Action:     auditdomain.ActionFeeComponentUpdated,
		TargetType: auditdomain.TargetFeeComponent,
		TargetID:   def.ID,
		Metadata: map[string]any{
			"class_id":          def.ClassID.String(),
			"fee_component":     def.FeeComponent,
			"amount":            amount.String(),
			"affected_students": len(ids),
		},
	})

	logger.WithContext(ctx, s.log).Info("fee component amount updated",
		zap.String("fee_component_id", def.ID.String()),
		zap.String("class_id", def.ClassID.String()),
		zap.String("amount", amount.String()),
		zap.Int("affected_students", len(ids)),
	)

	return &feedomain.FeeComponentResponse{
		ID:               def.ID.String(),
		ClassID:          def.ClassID.String(),
		FeeComponent:     def.FeeComponent,
		Amount:           def.Amount,
		BaseAmount:       def.BaseAmount,
		DueDate:          def.DueDate,
		AcademicYear:     def.AcademicYear,
		UpdatedAt:        def.UpdatedAt,
		AffectedStudents: len(ids),
	}, nil
}
