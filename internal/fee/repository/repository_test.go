package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&feedomain.Student{},
		&feedomain.Class{},
		&feedomain.FeeComponentDefinition{},
		&feedomain.StudentDiscount{},
		&feedomain.PaymentRecord{},
	))
	return db
}

type fixture struct {
	node      *snowflake.Node
	tenantID  snowflake.ID
	otherID   snowflake.ID
	classID   snowflake.ID
	studentID snowflake.ID
	parentID  snowflake.ID
}

func seed(t *testing.T, db *gorm.DB) fixture {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	f := fixture{
		node:      node,
		tenantID:  node.Generate(),
		otherID:   node.Generate(),
		classID:   node.Generate(),
		studentID: node.Generate(),
		parentID:  node.Generate(),
	}

	require.NoError(t, db.Create(&feedomain.Class{ID: f.classID, TenantID: f.tenantID, ClassName: "Grade 5", Section: "A"}).Error)
	parent := f.parentID
	require.NoError(t, db.Create(&feedomain.Student{
		ID:           f.studentID,
		TenantID:     f.tenantID,
		ClassID:      f.classID,
		ParentID:     &parent,
		Name:         "Asha",
		AdmissionNo:  "ADM-001",
		AcademicYear: "2024-25",
	}).Error)
	require.NoError(t, db.Create(&feedomain.Student{
		ID:       node.Generate(),
		TenantID: f.tenantID,
		ClassID:  f.classID,
		Name:     "Ravi",
	}).Error)
	return f
}

func (f fixture) definition(component, amount, year string) *feedomain.FeeComponentDefinition {
	return &feedomain.FeeComponentDefinition{
		ID:           f.node.Generate(),
		TenantID:     f.tenantID,
		ClassID:      f.classID,
		FeeComponent: component,
		Amount:       decimal.RequireFromString(amount),
		BaseAmount:   decimal.RequireFromString(amount),
		AcademicYear: year,
	}
}

func TestFindStudentAndClass(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	repo := NewRepository(db)
	ctx := context.Background()

	student, err := repo.FindStudent(ctx, f.tenantID, f.studentID)
	require.NoError(t, err)
	require.NotNil(t, student)
	assert.Equal(t, "Asha", student.Name)
	require.NotNil(t, student.ParentID)
	assert.Equal(t, f.parentID, *student.ParentID)

	missing, err := repo.FindStudent(ctx, f.otherID, f.studentID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	class, err := repo.FindClass(ctx, f.tenantID, f.classID)
	require.NoError(t, err)
	require.NotNil(t, class)
	assert.Equal(t, "Grade 5", class.ClassName)

	class, err = repo.FindClass(ctx, f.tenantID, f.node.Generate())
	require.NoError(t, err)
	assert.Nil(t, class)
}

func TestListStudentsByClassAndChildren(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	repo := NewRepository(db)
	ctx := context.Background()

	students, err := repo.ListStudentsByClass(ctx, f.tenantID, f.classID)
	require.NoError(t, err)
	assert.Len(t, students, 2)

	children, err := repo.ListChildren(ctx, f.tenantID, f.parentID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, f.studentID, children[0].ID)
}

func TestListClassFeeComponents(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	repo := NewRepository(db)
	ctx := context.Background()

	tuition := f.definition("Tuition Fee", "15000", "2024-2025")
	library := f.definition("Library Fee", "3000", "2024-25")
	old := f.definition("Tuition Fee", "12000", "2023-24")
	legacy := f.definition("Tuition Fee", "9000", "2024-25")
	student := f.studentID
	legacy.StudentID = &student
	foreign := f.definition("Tuition Fee", "1", "2024-25")
	foreign.TenantID = f.otherID

	for _, def := range []*feedomain.FeeComponentDefinition{tuition, library, old, legacy, foreign} {
		require.NoError(t, db.Create(def).Error)
	}

	t.Run("class level only", func(t *testing.T) {
		items, err := repo.ListClassFeeComponents(ctx, f.tenantID, f.classID)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, tuition.ID, items[0].ID)
		assert.True(t, decimal.NewFromInt(15000).Equal(items[0].Amount))
	})

	t.Run("filtered by normalized year", func(t *testing.T) {
		items, err := repo.ListClassFeeComponentsForYear(ctx, f.tenantID, f.classID, "2024-25")
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, tuition.ID, items[0].ID)
		assert.Equal(t, library.ID, items[1].ID)
	})

	t.Run("legacy per-student rows", func(t *testing.T) {
		items, err := repo.ListLegacyStudentFeeRows(ctx, f.tenantID, f.studentID)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, legacy.ID, items[0].ID)
	})
}

func TestListClassFeeComponentsRejectsMalformedRow(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	repo := NewRepository(db)

	require.NoError(t, db.Create(f.definition("", "100", "2024-25")).Error)

	items, err := repo.ListClassFeeComponents(context.Background(), f.tenantID, f.classID)
	assert.ErrorIs(t, err, feedomain.ErrMalformedRecord)
	assert.ErrorIs(t, err, feedomain.ErrInvalidComponent)
	assert.Nil(t, items)
}

func TestUpdateFeeComponent(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	repo := NewRepository(db)
	ctx := context.Background()

	def := f.definition("Library Fee", "3000", "2024-25")
	require.NoError(t, db.Create(def).Error)

	def.Amount = decimal.NewFromInt(4000)
	def.BaseAmount = decimal.NewFromInt(4000)
	def.UpdatedAt = time.Now().UTC()
	require.NoError(t, repo.UpdateFeeComponent(ctx, def))

	stored, err := repo.FindFeeComponent(ctx, f.tenantID, def.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, decimal.NewFromInt(4000).Equal(stored.Amount))
	assert.True(t, decimal.NewFromInt(4000).Equal(stored.BaseAmount))
}

func TestDiscountLifecycle(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	d := &feedomain.StudentDiscount{
		ID:            f.node.Generate(),
		TenantID:      f.tenantID,
		StudentID:     f.studentID,
		ClassID:       f.classID,
		FeeComponent:  "Library Fee",
		DiscountType:  feedomain.DiscountTypeFixed,
		DiscountValue: decimal.NewFromInt(1000),
		AcademicYear:  "2024-25",
		IsActive:      true,
		Reason:        "sibling",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, repo.InsertDiscount(ctx, d))

	active, err := repo.ListActiveDiscounts(ctx, f.tenantID, f.studentID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, feedomain.DiscountTypeFixed, active[0].DiscountType)

	d.IsActive = false
	d.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, repo.UpdateDiscount(ctx, d))

	active, err = repo.ListActiveDiscounts(ctx, f.tenantID, f.studentID)
	require.NoError(t, err)
	assert.Empty(t, active)

	stored, err := repo.FindDiscount(ctx, f.tenantID, d.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsActive)
}

func TestPayments(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	repo := NewRepository(db)
	ctx := context.Background()

	next, err := repo.NextReceiptNumber(ctx, f.tenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), next)

	later := &feedomain.PaymentRecord{
		ID:            f.node.Generate(),
		TenantID:      f.tenantID,
		StudentID:     f.studentID,
		FeeComponent:  "Tuition Fee",
		AmountPaid:    decimal.NewFromInt(5000),
		PaymentDate:   time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
		PaymentMode:   "cash",
		AcademicYear:  "2024-25",
		ReceiptNumber: next,
		CreatedAt:     time.Now().UTC(),
	}
	earlier := &feedomain.PaymentRecord{
		ID:            f.node.Generate(),
		TenantID:      f.tenantID,
		StudentID:     f.studentID,
		FeeComponent:  "Tuition Fee",
		AmountPaid:    decimal.NewFromInt(2500),
		PaymentDate:   time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		PaymentMode:   "upi",
		AcademicYear:  "2024-25",
		ReceiptNumber: next + 1,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, repo.InsertPayment(ctx, later))
	require.NoError(t, repo.InsertPayment(ctx, earlier))

	payments, err := repo.ListPayments(ctx, f.tenantID, f.studentID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, earlier.ID, payments[0].ID)
	assert.Equal(t, later.ID, payments[1].ID)

	next, err = repo.NextReceiptNumber(ctx, f.tenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(1003), next)

	other, err := repo.NextReceiptNumber(ctx, f.otherID)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), other)

	found, err := repo.FindPayment(ctx, f.tenantID, earlier.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "upi", found.PaymentMode)

	found, err = repo.FindPayment(ctx, f.otherID, earlier.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestListClassesPagesAcrossTenants(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&feedomain.Class{ID: f.node.Generate(), TenantID: f.otherID, ClassName: "Grade 6"}).Error)
	require.NoError(t, db.Create(&feedomain.Class{ID: f.node.Generate(), TenantID: f.otherID, ClassName: "Grade 7"}).Error)

	first, err := repo.ListClasses(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, f.classID, first[0].ID)
	assert.Equal(t, f.tenantID, first[0].TenantID)

	rest, err := repo.ListClasses(ctx, first[1].ID, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, f.otherID, rest[0].TenantID)
}

func TestTransactionRollsBack(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	repo := NewRepository(db)
	ctx := context.Background()

	payment := &feedomain.PaymentRecord{
		ID:            f.node.Generate(),
		TenantID:      f.tenantID,
		StudentID:     f.studentID,
		FeeComponent:  "Library Fee",
		AmountPaid:    decimal.NewFromInt(100),
		PaymentDate:   time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		PaymentMode:   "cash",
		ReceiptNumber: 1001,
		CreatedAt:     time.Now().UTC(),
	}
	rollback := fmt.Errorf("abort")
	err := repo.Transaction(ctx, func(tx feedomain.Repository) error {
		require.NoError(t, tx.InsertPayment(ctx, payment))
		return rollback
	})
	require.ErrorIs(t, err, rollback)

	found, err := repo.FindPayment(ctx, f.tenantID, payment.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}
