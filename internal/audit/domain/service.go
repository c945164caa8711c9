package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/pkg/db/pagination"
)

type ListAuditLogRequest struct {
	pagination.Pagination
	StudentID  string     `form:"student_id"`
	Action     string     `form:"action"`
	TargetType string     `form:"target_type"`
	TargetID   string     `form:"target_id"`
	ActorType  string     `form:"actor_type"`
	StartAt    *time.Time `form:"-"`
	EndAt      *time.Time `form:"-"`
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

// Service records who changed fee data and when.
type Service interface {
	Record(ctx context.Context, tenantID snowflake.ID, entry Entry) error
	List(ctx context.Context, tenantID snowflake.ID, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidTenant    = errors.New("invalid_tenant")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidTarget    = errors.New("invalid_target")
	ErrInvalidStudentID = errors.New("invalid_student_id")
	ErrInvalidTargetID  = errors.New("invalid_target_id")
)
