package domain

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/pkg/db/pagination"
	"gorm.io/datatypes"
)

// ActorSystem is recorded when a change has no authenticated caller, such as
// the scheduled class sync.
const ActorSystem = "system"

// Audited actions.
const (
	ActionPaymentRecorded     = "payment.recorded"
	ActionDiscountCreated     = "discount.created"
	ActionDiscountUpdated     = "discount.updated"
	ActionDiscountDeactivated = "discount.deactivated"
	ActionFeeComponentUpdated = "fee_structure.updated"
)

// Audited target types.
const (
	TargetPayment      = "payment"
	TargetDiscount     = "discount"
	TargetFeeComponent = "fee_component"
)

// AuditLog is one recorded change to fee data.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID   snowflake.ID      `gorm:"column:tenant_id;not null;index:idx_fee_audit_logs_tenant_created,priority:1" json:"tenant_id"`
	StudentID  *snowflake.ID     `gorm:"column:student_id;index:idx_fee_audit_logs_student" json:"student_id,omitempty"`
	ActorType  string            `gorm:"column:actor_type;type:text;not null" json:"actor_type"`
	ActorID    *string           `gorm:"column:actor_id;type:text" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:text;not null" json:"action"`
	TargetType string            `gorm:"column:target_type;type:text;not null" json:"target_type"`
	TargetID   snowflake.ID      `gorm:"column:target_id;not null" json:"target_id"`
	Metadata   datatypes.JSONMap `json:"metadata"`
	CreatedAt  time.Time         `gorm:"not null;index:idx_fee_audit_logs_tenant_created,priority:2" json:"created_at"`
}

func (AuditLog) TableName() string { return "fee_audit_logs" }

// Entry describes a completed write. StudentID is zero for changes that are
// not tied to one student, such as a class fee component update.
type Entry struct {
	Action     string
	TargetType string
	TargetID   snowflake.ID
	StudentID  snowflake.ID
	Metadata   map[string]any
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.Action) == "" {
		return ErrInvalidAction
	}
	if strings.TrimSpace(e.TargetType) == "" || e.TargetID == 0 {
		return ErrInvalidTarget
	}
	return nil
}

type ListFilter struct {
	TenantID   snowflake.ID
	StudentID  snowflake.ID
	Action     string
	TargetType string
	TargetID   snowflake.ID
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *pagination.Cursor
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, entry *AuditLog) error
	// List returns up to Limit+1 rows, newest first, so callers can tell
	// whether another page exists.
	List(ctx context.Context, filter ListFilter) ([]*AuditLog, error)
}
