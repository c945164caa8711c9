package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/feeledger/internal/audit/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, entry *domain.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	var logs []*domain.AuditLog
	err := r.db.WithContext(ctx).
		Model(&domain.AuditLog{}).
		Scopes(byTenant(filter), bySubject(filter), byWindow(filter), afterCursor(filter)).
		Order("created_at DESC").
		Order("id DESC").
		Limit(filter.Limit + 1).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func byTenant(f domain.ListFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("tenant_id = ?", f.TenantID)
		if f.StudentID != 0 {
			db = db.Where("student_id = ?", f.StudentID)
		}
		return db
	}
}

func bySubject(f domain.ListFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if v := strings.TrimSpace(f.Action); v != "" {
			db = db.Where("action = ?", v)
		}
		if v := strings.TrimSpace(f.TargetType); v != "" {
			db = db.Where("target_type = ?", v)
		}
		if f.TargetID != 0 {
			db = db.Where("target_id = ?", f.TargetID)
		}
		if v := strings.TrimSpace(f.ActorType); v != "" {
			db = db.Where("actor_type = ?", v)
		}
		return db
	}
}

func byWindow(f domain.ListFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.StartAt != nil {
			db = db.Where("created_at >= ?", f.StartAt.UTC())
		}
		if f.EndAt != nil {
			db = db.Where("created_at <= ?", f.EndAt.UTC())
		}
		return db
	}
}

// afterCursor continues a newest-first listing after the last row of the
// previous page. Rows sharing a timestamp are ordered by id.
func afterCursor(f domain.ListFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.Cursor == nil {
			return db
		}
		at := f.Cursor.CreatedAt
		return db.Where("(created_at < ? OR (created_at = ? AND id < ?))", at, at, f.Cursor.ID)
	}
}
