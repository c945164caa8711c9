package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Repository is the record store boundary of the fee engine. Every call is
// scoped to an explicit tenant. Lookups of a single row return nil, nil when
// the row does not exist.
type Repository interface {
	FindStudent(ctx context.Context, tenantID, studentID snowflake.ID) (*Student, error)
	FindClass(ctx context.Context, tenantID, classID snowflake.ID) (*Class, error)
	ListStudentsByClass(ctx context.Context, tenantID, classID snowflake.ID) ([]Student, error)
	ListChildren(ctx context.Context, tenantID, parentID snowflake.ID) ([]Student, error)
	ListClasses(ctx context.Context, afterID snowflake.ID, limit int) ([]ClassRef, error)

	ListClassFeeComponents(ctx context.Context, tenantID, classID snowflake.ID) ([]FeeComponentDefinition, error)
	ListClassFeeComponentsForYear(ctx context.Context, tenantID, classID snowflake.ID, academicYear string) ([]FeeComponentDefinition, error)
	ListLegacyStudentFeeRows(ctx context.Context, tenantID, studentID snowflake.ID) ([]FeeComponentDefinition, error)
	FindFeeComponent(ctx context.Context, tenantID, id snowflake.ID) (*FeeComponentDefinition, error)
	UpdateFeeComponent(ctx context.Context, def *FeeComponentDefinition) error

	ListActiveDiscounts(ctx context.Context, tenantID, studentID snowflake.ID) ([]StudentDiscount, error)
	FindDiscount(ctx context.Context, tenantID, id snowflake.ID) (*StudentDiscount, error)
	InsertDiscount(ctx context.Context, d *StudentDiscount) error
	UpdateDiscount(ctx context.Context, d *StudentDiscount) error

	// ListPayments returns payments oldest first so earlier money is matched first.
	ListPayments(ctx context.Context, tenantID, studentID snowflake.ID) ([]PaymentRecord, error)
	FindPayment(ctx context.Context, tenantID, id snowflake.ID) (*PaymentRecord, error)
	NextReceiptNumber(ctx context.Context, tenantID snowflake.ID) (int64, error)
	InsertPayment(ctx context.Context, p *PaymentRecord) error

	// Transaction runs fn against a repository bound to a single transaction.
	Transaction(ctx context.Context, fn func(repo Repository) error) error
}
