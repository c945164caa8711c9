package repository

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/internal/fee/academicyear"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) feedomain.Repository {
	return &repository{db: db}
}

func (r *repository) FindStudent(ctx context.Context, tenantID, studentID snowflake.ID) (*feedomain.Student, error) {
	var student feedomain.Student
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, class_id, parent_id, name, admission_no, roll_no, academic_year, created_at, updated_at
		 FROM students
		 WHERE tenant_id = ? AND id = ?`,
		tenantID,
		studentID,
	).Scan(&student).Error
	if err != nil {
		return nil, err
	}
	if student.ID == 0 {
		return nil, nil
	}
	return &student, nil
}

func (r *repository) FindClass(ctx context.Context, tenantID, classID snowflake.ID) (*feedomain.Class, error) {
	var class feedomain.Class
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, class_name, section, created_at, updated_at
		 FROM classes
		 WHERE tenant_id = ? AND id = ?`,
		tenantID,
		classID,
	).Scan(&class).Error
	if err != nil {
		return nil, err
	}
	if class.ID == 0 {
		return nil, nil
	}
	return &class, nil
}

func (r *repository) ListStudentsByClass(ctx context.Context, tenantID, classID snowflake.ID) ([]feedomain.Student, error) {
	var items []feedomain.Student
	err := r.db.WithContext(ctx).
		Model(&feedomain.Student{}).
		Where("tenant_id = ? AND class_id = ?", tenantID, classID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListChildren(ctx context.Context, tenantID, parentID snowflake.ID) ([]feedomain.Student, error) {
	var items []feedomain.Student
	err := r.db.WithContext(ctx).
		Model(&feedomain.Student{}).
		Where("tenant_id = ? AND parent_id = ?", tenantID, parentID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListClasses(ctx context.Context, afterID snowflake.ID, limit int) ([]feedomain.ClassRef, error) {
	var rows []feedomain.ClassRef
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, tenant_id
		 FROM classes
		 WHERE id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		afterID,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListClassFeeComponents(ctx context.Context, tenantID, classID snowflake.ID) ([]feedomain.FeeComponentDefinition, error) {
	var items []feedomain.FeeComponentDefinition
	err := r.db.WithContext(ctx).
		Model(&feedomain.FeeComponentDefinition{}).
		Where("tenant_id = ? AND class_id = ? AND student_id IS NULL", tenantID, classID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return nil, malformed("fee_structure", items[i].ID, err)
		}
	}
	return items, nil
}

func (r *repository) ListClassFeeComponentsForYear(ctx context.Context, tenantID, classID snowflake.ID, academicYear string) ([]feedomain.FeeComponentDefinition, error) {
	items, err := r.ListClassFeeComponents(ctx, tenantID, classID)
	if err != nil {
		return nil, err
	}

	// Stored years mix "2024-2025" and "2024-25", so the filter runs on
	// normalized values instead of in SQL.
	filtered := make([]feedomain.FeeComponentDefinition, 0, len(items))
	for _, item := range items {
		if academicyear.Equal(item.AcademicYear, academicYear) {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

func (r *repository) ListLegacyStudentFeeRows(ctx context.Context, tenantID, studentID snowflake.ID) ([]feedomain.FeeComponentDefinition, error) {
	var items []feedomain.FeeComponentDefinition
	err := r.db.WithContext(ctx).
		Model(&feedomain.FeeComponentDefinition{}).
		Where("tenant_id = ? AND student_id = ?", tenantID, studentID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindFeeComponent(ctx context.Context, tenantID, id snowflake.ID) (*feedomain.FeeComponentDefinition, error) {
	var def feedomain.FeeComponentDefinition
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, class_id, student_id, fee_component, amount, base_amount, due_date, academic_year, created_at, updated_at
		 FROM fee_structure
		 WHERE tenant_id = ? AND id = ?`,
		tenantID,
		id,
	).Scan(&def).Error
	if err != nil {
		return nil, err
	}
	if def.ID == 0 {
		return nil, nil
	}
	return &def, nil
}

func (r *repository) UpdateFeeComponent(ctx context.Context, def *feedomain.FeeComponentDefinition) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE fee_structure
		 SET amount = ?, base_amount = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		def.Amount,
		def.BaseAmount,
		def.UpdatedAt,
		def.TenantID,
		def.ID,
	).Error
}

func (r *repository) ListActiveDiscounts(ctx context.Context, tenantID, studentID snowflake.ID) ([]feedomain.StudentDiscount, error) {
	var items []feedomain.StudentDiscount
	err := r.db.WithContext(ctx).
		Model(&feedomain.StudentDiscount{}).
		Where("tenant_id = ? AND student_id = ? AND is_active = ?", tenantID, studentID, true).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return nil, malformed("student_discounts", items[i].ID, err)
		}
	}
	return items, nil
}

func (r *repository) FindDiscount(ctx context.Context, tenantID, id snowflake.ID) (*feedomain.StudentDiscount, error) {
	var d feedomain.StudentDiscount
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, student_id, class_id, fee_component, discount_type, discount_value, academic_year, is_active, reason, created_at, updated_at
		 FROM student_discounts
		 WHERE tenant_id = ? AND id = ?`,
		tenantID,
		id,
	).Scan(&d).Error
	if err != nil {
		return nil, err
	}
	if d.ID == 0 {
		return nil, nil
	}
	return &d, nil
}

func (r *repository) InsertDiscount(ctx context.Context, d *feedomain.StudentDiscount) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO student_discounts (
			id, tenant_id, student_id, class_id, fee_component, discount_type, discount_value, academic_year, is_active, reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID,
		d.TenantID,
		d.StudentID,
		d.ClassID,
		d.FeeComponent,
		d.DiscountType,
		d.DiscountValue,
		d.AcademicYear,
		d.IsActive,
		d.Reason,
		d.CreatedAt,
		d.UpdatedAt,
	).Error
}

func (r *repository) UpdateDiscount(ctx context.Context, d *feedomain.StudentDiscount) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE student_discounts
		 SET fee_component = ?, discount_type = ?, discount_value = ?, academic_year = ?, is_active = ?, reason = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		d.FeeComponent,
		d.DiscountType,
		d.DiscountValue,
		d.AcademicYear,
		d.IsActive,
		d.Reason,
		d.UpdatedAt,
		d.TenantID,
		d.ID,
	).Error
}

func (r *repository) ListPayments(ctx context.Context, tenantID, studentID snowflake.ID) ([]feedomain.PaymentRecord, error) {
	var items []feedomain.PaymentRecord
	err := r.db.WithContext(ctx).
		Model(&feedomain.PaymentRecord{}).
		Where("tenant_id = ? AND student_id = ?", tenantID, studentID).
		Order("payment_date ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return nil, malformed("student_fees", items[i].ID, err)
		}
	}
	return items, nil
}

func (r *repository) FindPayment(ctx context.Context, tenantID, id snowflake.ID) (*feedomain.PaymentRecord, error) {
	var p feedomain.PaymentRecord
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, student_id, fee_component, amount_paid, payment_date, payment_mode, academic_year, receipt_number, remarks, created_at
		 FROM student_fees
		 WHERE tenant_id = ? AND id = ?`,
		tenantID,
		id,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

// NextReceiptNumber returns the next receipt number of the tenant. Numbering
// starts at 1001.
func (r *repository) NextReceiptNumber(ctx context.Context, tenantID snowflake.ID) (int64, error) {
	var current int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(receipt_number), 1000)
		 FROM student_fees
		 WHERE tenant_id = ?`,
		tenantID,
	).Scan(&current).Error
	if err != nil {
		return 0, err
	}
	return current + 1, nil
}

func (r *repository) InsertPayment(ctx context.Context, p *feedomain.PaymentRecord) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO student_fees (
			id, tenant_id, student_id, fee_component, amount_paid, payment_date, payment_mode, academic_year, receipt_number, remarks, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.TenantID,
		p.StudentID,
		p.FeeComponent,
		p.AmountPaid,
		p.PaymentDate,
		p.PaymentMode,
		p.AcademicYear,
		p.ReceiptNumber,
		p.Remarks,
		p.CreatedAt,
	).Error
}

func (r *repository) Transaction(ctx context.Context, fn func(repo feedomain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx})
	})
}

func malformed(table string, id snowflake.ID, err error) error {
	return fmt.Errorf("%w: %s %d: %w", feedomain.ErrMalformedRecord, table, id, err)
}
