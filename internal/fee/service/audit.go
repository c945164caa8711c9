package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/feeledger/internal/audit/domain"
	"github.com/smallbiznis/feeledger/internal/observability/logger"
	"go.uber.org/zap"
)

// recordAudit writes an audit entry for a completed write. A failed entry is
// logged and does not undo the write.
func (s *Service) recordAudit(ctx context.Context, tenantID snowflake.ID, entry auditdomain.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, tenantID, entry); err != nil {
		logger.WithContext(ctx, s.log).Warn("audit log write failed",
			zap.String("action", entry.Action),
			zap.String("target_id", entry.TargetID.String()),
			zap.Error(err),
		)
	}
}
