package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Service is the read facade of the fee engine. Every operation reports
// failure through its Result and never returns a bare error.
type Service interface {
	GetStudentFeeDetails(ctx context.Context, tenantID, studentID snowflake.ID, opts DetailOptions) Result[StudentFeeDetails]
	GetStudentFeeSummary(ctx context.Context, tenantID, studentID snowflake.ID) Result[FeeSummary]
	GetClassFeeStructure(ctx context.Context, tenantID, classID snowflake.ID, academicYear string) Result[ClassFeeStructure]
	GetChildrenFeeDetails(ctx context.Context, tenantID, parentID snowflake.ID) Result[ParentFeeOverview]
	ValidateFeeConsistency(ctx context.Context, tenantID, studentID snowflake.ID) Result[ConsistencyReport]
	SyncClassFees(ctx context.Context, tenantID, classID snowflake.ID) Result[ClassSyncReport]
}

type PaymentService interface {
	RecordPayment(ctx context.Context, tenantID snowflake.ID, req RecordPaymentRequest) (*PaymentReceipt, error)
}

// DocumentService renders printable fee documents.
type DocumentService interface {
	RenderReceipt(ctx context.Context, tenantID snowflake.ID, paymentID string) (*Document, error)
	RenderStatement(ctx context.Context, tenantID snowflake.ID, studentID string) (*Document, error)
}

type DiscountService interface {
	CreateDiscount(ctx context.Context, tenantID snowflake.ID, req CreateDiscountRequest) (*DiscountResponse, error)
	UpdateDiscount(ctx context.Context, tenantID snowflake.ID, req UpdateDiscountRequest) (*DiscountResponse, error)
	DeactivateDiscount(ctx context.Context, tenantID snowflake.ID, id string) (*DiscountResponse, error)
}

type StructureService interface {
	UpdateFeeComponentAmount(ctx context.Context, tenantID snowflake.ID, req UpdateFeeComponentRequest) (*FeeComponentResponse, error)
}

// SummaryCache stores computed fee summaries per student. Each student has a
// generation that Invalidate advances; callers read it before loading records
// and pass it to Set, which drops the summary if the student was invalidated
// in between.
type SummaryCache interface {
	Get(ctx context.Context, tenantID, studentID snowflake.ID) (*FeeSummary, bool)
	Generation(ctx context.Context, tenantID, studentID snowflake.ID) uint64
	Set(ctx context.Context, tenantID, studentID snowflake.ID, gen uint64, summary FeeSummary)
	Invalidate(ctx context.Context, tenantID snowflake.ID, studentIDs ...snowflake.ID)
}

// Result is the envelope returned by the read facade.
type Result[T any] struct {
	Success bool    `json:"success"`
	Data    *T      `json:"data"`
	Error   *string `json:"error"`

	// Err carries the typed cause for logging and status mapping.
	Err error `json:"-"`
}

func Succeed[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: &data}
}

func Fail[T any](message string, err error) Result[T] {
	return Result[T]{Success: false, Error: &message, Err: err}
}

// Message returns the short error text, or "" on success.
func (r Result[T]) Message() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// User facing failure messages.
const (
	MessageStudentNotFound = "Student not found"
	MessageClassNotFound   = "Class not found"
	MessageParentNotFound  = "Parent not found"
	MessageInvalidRequest  = "Invalid request"
	MessageLoadFailed      = "failed to load fees"
	MessageSyncFailed      = "failed to sync class fees"
)

type DetailOptions struct {
	IncludePaymentHistory bool
	IncludeFeeBreakdown   bool
}

func DefaultDetailOptions() DetailOptions {
	return DetailOptions{IncludePaymentHistory: true, IncludeFeeBreakdown: true}
}

type StudentFeeDetails struct {
	Student          StudentInfo      `json:"student"`
	Fees             FeeOverview      `json:"fees"`
	Discounts        DiscountOverview `json:"discounts"`
	OrphanedPayments []PaymentView    `json:"orphaned_payments"`
	Metadata         Metadata         `json:"metadata"`
}

type StudentInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	AdmissionNo  string `json:"admission_no,omitempty"`
	RollNo       string `json:"roll_no,omitempty"`
	ClassID      string `json:"class_id"`
	ClassName    string `json:"class_name,omitempty"`
	Section      string `json:"section,omitempty"`
	AcademicYear string `json:"academic_year,omitempty"`
}

type FeeOverview struct {
	TotalBaseFee     decimal.Decimal `json:"total_base_fee"`
	TotalDiscounts   decimal.Decimal `json:"total_discounts"`
	TotalDue         decimal.Decimal `json:"total_due"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	AcademicYear     string          `json:"academic_year"`
	Status           FeeStatus       `json:"status"`
	Components       []ComponentView `json:"components,omitempty"`
	Payments         *PaymentHistory `json:"payments,omitempty"`
}

type ComponentView struct {
	ID                string            `json:"id"`
	Component         string            `json:"component"`
	AcademicYear      string            `json:"academic_year"`
	DueDate           *time.Time        `json:"due_date,omitempty"`
	BaseFeeAmount     decimal.Decimal   `json:"base_fee_amount"`
	DiscountAmount    decimal.Decimal   `json:"discount_amount"`
	FinalAmount       decimal.Decimal   `json:"final_amount"`
	PaidAmount        decimal.Decimal   `json:"paid_amount"`
	ActualPaidAmount  decimal.Decimal   `json:"actual_paid_amount"`
	OutstandingAmount decimal.Decimal   `json:"outstanding_amount"`
	Status            FeeStatus         `json:"status"`
	AppliedDiscounts  []AppliedDiscount `json:"applied_discounts"`
	PaymentCount      int               `json:"payment_count"`
}

type AppliedDiscount struct {
	ID          string          `json:"id"`
	Type        DiscountType    `json:"type"`
	Value       decimal.Decimal `json:"value"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Reason      string          `json:"reason,omitempty"`
}

type PaymentHistory struct {
	TotalPaid       decimal.Decimal `json:"total_paid"`
	Count           int             `json:"count"`
	LastPaymentDate *time.Time      `json:"last_payment_date,omitempty"`
	Recent          []PaymentView   `json:"recent"`
}

type PaymentView struct {
	ID            string          `json:"id"`
	FeeComponent  string          `json:"fee_component"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	PaymentDate   time.Time       `json:"payment_date"`
	PaymentMode   string          `json:"payment_mode"`
	AcademicYear  string          `json:"academic_year,omitempty"`
	ReceiptNumber int64           `json:"receipt_number"`
	Remarks       string          `json:"remarks,omitempty"`
}

type DiscountOverview struct {
	HasDiscounts    bool            `json:"has_discounts"`
	TotalDiscount   decimal.Decimal `json:"total_discount"`
	ActiveDiscounts []DiscountView  `json:"active_discounts"`
}

type DiscountView struct {
	ID           string          `json:"id"`
	FeeComponent string          `json:"fee_component"`
	Type         DiscountType    `json:"type"`
	Value        decimal.Decimal `json:"value"`
	AcademicYear string          `json:"academic_year,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	Description  string          `json:"description"`
}

type Metadata struct {
	CalculatedAt    time.Time `json:"calculated_at"`
	DefinitionCount int       `json:"definition_count"`
	DiscountCount   int       `json:"discount_count"`
	PaymentCount    int       `json:"payment_count"`
	ComponentCount  int       `json:"component_count"`
	OrphanedCount   int       `json:"orphaned_count"`
}

type FeeSummary struct {
	StudentID        string          `json:"student_id"`
	TotalDue         decimal.Decimal `json:"total_due"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	TotalDiscounts   decimal.Decimal `json:"total_discounts"`
	AcademicYear     string          `json:"academic_year"`
	Status           FeeStatus       `json:"status"`
	HasDiscounts     bool            `json:"has_discounts"`
	PendingCount     int             `json:"pending_count"`
	StatusText       string          `json:"status_text"`
	StatusColor      string          `json:"status_color"`
}

type ClassFeeStructure struct {
	ClassID        string              `json:"class_id"`
	ClassName      string              `json:"class_name"`
	Section        string              `json:"section,omitempty"`
	AcademicYear   string              `json:"academic_year"`
	Components     []ClassFeeComponent `json:"components"`
	TotalFee       decimal.Decimal     `json:"total_fee"`
	ComponentCount int                 `json:"component_count"`
}

type ClassFeeComponent struct {
	ID           string          `json:"id"`
	FeeComponent string          `json:"fee_component"`
	Amount       decimal.Decimal `json:"amount"`
	DueDate      *time.Time      `json:"due_date,omitempty"`
	AcademicYear string          `json:"academic_year"`
}

type ParentFeeOverview struct {
	ParentID         string            `json:"parent_id"`
	Children         []ChildFeeDetails `json:"children"`
	TotalDue         decimal.Decimal   `json:"total_due"`
	TotalPaid        decimal.Decimal   `json:"total_paid"`
	TotalOutstanding decimal.Decimal   `json:"total_outstanding"`
	Status           FeeStatus         `json:"status"`
}

type ChildFeeDetails struct {
	StudentID string             `json:"student_id"`
	Name      string             `json:"name"`
	Details   *StudentFeeDetails `json:"details"`
	Error     *string            `json:"error"`
}

// Consistency finding codes.
const (
	FindingOrphanedPayment   = "orphaned_payment"
	FindingNoFeeStructure    = "no_fee_structure"
	FindingLegacyStudentFees = "legacy_student_fee_rows"
	FindingOverpayment       = "overpayment"
	FindingYearlessPayment   = "payment_without_academic_year"
)

type ConsistencyReport struct {
	StudentID  string               `json:"student_id"`
	Consistent bool                 `json:"consistent"`
	Issues     []ConsistencyFinding `json:"issues"`
	Warnings   []ConsistencyFinding `json:"warnings"`
}

type ConsistencyFinding struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Component string `json:"component,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
}

type ClassSyncReport struct {
	ClassID  string               `json:"class_id"`
	Students int                  `json:"students"`
	Synced   int                  `json:"synced"`
	Failed   int                  `json:"failed"`
	Outcomes []StudentSyncOutcome `json:"outcomes"`
}

type StudentSyncOutcome struct {
	StudentID        string          `json:"student_id"`
	Success          bool            `json:"success"`
	Error            string          `json:"error,omitempty"`
	Status           FeeStatus       `json:"status,omitempty"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	OrphanedPayments int             `json:"orphaned_payments"`
	Issues           int             `json:"issues"`
}

type RecordPaymentRequest struct {
	StudentID     string          `json:"student_id" validate:"required"`
	FeeComponent  string          `json:"fee_component" validate:"required,max=100"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	PaymentDate   time.Time       `json:"payment_date" validate:"required"`
	PaymentMode   string          `json:"payment_mode" validate:"required,oneof=cash cheque card upi bank_transfer online"`
	AcademicYear  string          `json:"academic_year" validate:"omitempty,max=20"`
	ReceiptNumber *int64          `json:"receipt_number,omitempty" validate:"omitempty,gt=0"`
	Remarks       string          `json:"remarks" validate:"max=500"`
}

type PaymentReceipt struct {
	Payment  PaymentView `json:"payment"`
	Warnings []string    `json:"warnings"`
	Summary  *FeeSummary `json:"summary,omitempty"`
}

type Document struct {
	Filename    string
	ContentType string
	Content     []byte
}

type CreateDiscountRequest struct {
	StudentID     string          `json:"student_id" validate:"required"`
	FeeComponent  string          `json:"fee_component" validate:"max=100"`
	DiscountType  DiscountType    `json:"discount_type" validate:"required,oneof=percentage fixed fixed_amount"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	AcademicYear  string          `json:"academic_year" validate:"omitempty,max=20"`
	Reason        string          `json:"reason" validate:"max=500"`
}

type UpdateDiscountRequest struct {
	ID            string           `json:"id"`
	FeeComponent  *string          `json:"fee_component,omitempty"`
	DiscountType  *DiscountType    `json:"discount_type,omitempty"`
	DiscountValue *decimal.Decimal `json:"discount_value,omitempty"`
	AcademicYear  *string          `json:"academic_year,omitempty"`
	Reason        *string          `json:"reason,omitempty"`
}

type DiscountResponse struct {
	ID            string          `json:"id"`
	StudentID     string          `json:"student_id"`
	ClassID       string          `json:"class_id"`
	FeeComponent  string          `json:"fee_component"`
	DiscountType  DiscountType    `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	AcademicYear  string          `json:"academic_year,omitempty"`
	IsActive      bool            `json:"is_active"`
	Reason        string          `json:"reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type UpdateFeeComponentRequest struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
}

type FeeComponentResponse struct {
	ID               string          `json:"id"`
	ClassID          string          `json:"class_id"`
	FeeComponent     string          `json:"fee_component"`
	Amount           decimal.Decimal `json:"amount"`
	BaseAmount       decimal.Decimal `json:"base_amount"`
	DueDate          *time.Time      `json:"due_date,omitempty"`
	AcademicYear     string          `json:"academic_year"`
	UpdatedAt        time.Time       `json:"updated_at"`
	AffectedStudents int             `json:"affected_students"`
}
