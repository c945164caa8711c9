package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// DiscountType selects how a discount value is applied to a base amount.
type DiscountType string

const (
	DiscountTypePercentage  DiscountType = "percentage"
	DiscountTypeFixed       DiscountType = "fixed"
	DiscountTypeFixedAmount DiscountType = "fixed_amount"
)

// DiscountComponentAll marks a discount that applies to every component.
const DiscountComponentAll = "ALL"

// FeeStatus is the payment state of a fee component or a whole student.
type FeeStatus string

const (
	FeeStatusPaid    FeeStatus = "paid"
	FeeStatusPartial FeeStatus = "partial"
	FeeStatusUnpaid  FeeStatus = "unpaid"
)

// Student is the subject of every fee calculation.
type Student struct {
	ID           snowflake.ID  `gorm:"primaryKey"`
	TenantID     snowflake.ID  `gorm:"column:tenant_id;not null;index"`
	ClassID      snowflake.ID  `gorm:"column:class_id;not null;index"`
	ParentID     *snowflake.ID `gorm:"column:parent_id;index"`
	Name         string        `gorm:"type:text;not null"`
	AdmissionNo  string        `gorm:"column:admission_no;type:text"`
	RollNo       string        `gorm:"column:roll_no;type:text"`
	AcademicYear string        `gorm:"column:academic_year;type:text"`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Student) TableName() string { return "students" }

// Class groups students that share a fee structure.
type Class struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	TenantID  snowflake.ID `gorm:"column:tenant_id;not null;index"`
	ClassName string       `gorm:"column:class_name;type:text;not null"`
	Section   string       `gorm:"type:text"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Class) TableName() string { return "classes" }

// FeeComponentDefinition is one row of a class fee structure.
// Rows with a StudentID are legacy per-student overrides and never take
// part in calculation.
type FeeComponentDefinition struct {
	ID           snowflake.ID    `gorm:"primaryKey"`
	TenantID     snowflake.ID    `gorm:"column:tenant_id;not null;index"`
	ClassID      snowflake.ID    `gorm:"column:class_id;not null;index"`
	StudentID    *snowflake.ID   `gorm:"column:student_id;index"`
	FeeComponent string          `gorm:"column:fee_component;type:text;not null"`
	Amount       decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	BaseAmount   decimal.Decimal `gorm:"column:base_amount;type:numeric(12,2);not null"`
	DueDate      *time.Time      `gorm:"column:due_date"`
	AcademicYear string          `gorm:"column:academic_year;type:text;not null"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (FeeComponentDefinition) TableName() string { return "fee_structure" }

func (f *FeeComponentDefinition) Validate() error {
	if f.ID == 0 || f.ClassID == 0 {
		return ErrMalformedRecord
	}
	if strings.TrimSpace(f.FeeComponent) == "" {
		return ErrInvalidComponent
	}
	if f.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// StudentDiscount reduces what a student owes for one or all components.
type StudentDiscount struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	TenantID      snowflake.ID    `gorm:"column:tenant_id;not null;index"`
	StudentID     snowflake.ID    `gorm:"column:student_id;not null;index"`
	ClassID       snowflake.ID    `gorm:"column:class_id;not null"`
	FeeComponent  string          `gorm:"column:fee_component;type:text"`
	DiscountType  DiscountType    `gorm:"column:discount_type;type:text;not null"`
	DiscountValue decimal.Decimal `gorm:"column:discount_value;type:numeric(12,2);not null"`
	AcademicYear  string          `gorm:"column:academic_year;type:text"`
	IsActive      bool            `gorm:"column:is_active;not null;default:true"`
	Reason        string          `gorm:"type:text"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (StudentDiscount) TableName() string { return "student_discounts" }

func (d *StudentDiscount) Validate() error {
	if d.ID == 0 || d.StudentID == 0 {
		return ErrMalformedRecord
	}
	if !d.DiscountType.Valid() {
		return ErrInvalidDiscountType
	}
	if d.DiscountValue.IsNegative() {
		return ErrInvalidDiscountValue
	}
	if d.DiscountType == DiscountTypePercentage && d.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return ErrInvalidDiscountValue
	}
	return nil
}

// AppliesToAllComponents reports whether the discount has no component filter.
func (d StudentDiscount) AppliesToAllComponents() bool {
	component := strings.TrimSpace(d.FeeComponent)
	return component == "" || component == DiscountComponentAll
}

func (t DiscountType) Valid() bool {
	switch t {
	case DiscountTypePercentage, DiscountTypeFixed, DiscountTypeFixedAmount:
		return true
	default:
		return false
	}
}

// PaymentRecord is an immutable record of money received for a student.
type PaymentRecord struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	TenantID      snowflake.ID    `gorm:"column:tenant_id;not null;index;uniqueIndex:ux_student_fees_receipt,priority:1"`
	StudentID     snowflake.ID    `gorm:"column:student_id;not null;index"`
	FeeComponent  string          `gorm:"column:fee_component;type:text;not null"`
	AmountPaid    decimal.Decimal `gorm:"column:amount_paid;type:numeric(12,2);not null"`
	PaymentDate   time.Time       `gorm:"column:payment_date;not null"`
	PaymentMode   string          `gorm:"column:payment_mode;type:text;not null"`
	AcademicYear  string          `gorm:"column:academic_year;type:text"`
	ReceiptNumber int64           `gorm:"column:receipt_number;not null;uniqueIndex:ux_student_fees_receipt,priority:2"`
	Remarks       string          `gorm:"type:text"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PaymentRecord) TableName() string { return "student_fees" }

func (p *PaymentRecord) Validate() error {
	if p.ID == 0 || p.StudentID == 0 {
		return ErrMalformedRecord
	}
	if p.AmountPaid.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// ClassRef identifies a class across tenants for background work.
type ClassRef struct {
	ID       snowflake.ID
	TenantID snowflake.ID
}
