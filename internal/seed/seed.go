package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// DemoTenantID owns every seeded row.
	DemoTenantID = snowflake.ID(1)

	demoClassName    = "Grade 5"
	demoClassSection = "A"
	demoAcademicYear = "2024-2025"
)

// EnsureDemoSchool seeds one class with a fee structure, two siblings, a
// discount and a payment. It does nothing when the demo class exists.
func EnsureDemoSchool(db *gorm.DB, log *zap.Logger) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing feedomain.Class
		err := tx.Where("tenant_id = ? AND class_name = ? AND section = ?", DemoTenantID, demoClassName, demoClassSection).
			First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()
		class := feedomain.Class{
			ID:        node.Generate(),
			TenantID:  DemoTenantID,
			ClassName: demoClassName,
			Section:   demoClassSection,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&class).Error; err != nil {
			return err
		}

		parentID := node.Generate()
		students := []feedomain.Student{
			demoStudent(node, class.ID, parentID, "Asha Rao", "ADM-1001", "1", now),
			demoStudent(node, class.ID, parentID, "Kiran Rao", "ADM-1002", "2", now),
		}
		if err := tx.Create(&students).Error; err != nil {
			return err
		}

		due := time.Date(2024, time.July, 15, 0, 0, 0, 0, time.UTC)
		components := []feedomain.FeeComponentDefinition{
			demoComponent(node, class.ID, "Tuition Fee", 12000, &due, now),
			demoComponent(node, class.ID, "Transport Fee", 3000, &due, now),
			demoComponent(node, class.ID, "Library Fee", 500, nil, now),
		}
		if err := tx.Create(&components).Error; err != nil {
			return err
		}

		discount := feedomain.StudentDiscount{
			ID:            node.Generate(),
			TenantID:      DemoTenantID,
			StudentID:     students[1].ID,
			ClassID:       class.ID,
			FeeComponent:  "Tuition Fee",
			DiscountType:  feedomain.DiscountTypePercentage,
			DiscountValue: decimal.NewFromInt(10),
			AcademicYear:  demoAcademicYear,
			IsActive:      true,
			Reason:        "sibling",
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.Create(&discount).Error; err != nil {
			return err
		}

		payment := feedomain.PaymentRecord{
			ID:            node.Generate(),
			TenantID:      DemoTenantID,
			StudentID:     students[0].ID,
			FeeComponent:  "tuition",
			AmountPaid:    decimal.NewFromInt(6000),
			PaymentDate:   now,
			PaymentMode:   "cash",
			AcademicYear:  "2024-25",
			ReceiptNumber: 1001,
			CreatedAt:     now,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		log.Info("demo school seeded",
			zap.String("tenant_id", DemoTenantID.String()),
			zap.String("class_id", class.ID.String()),
		)
		return nil
	})
}

func demoStudent(node *snowflake.Node, classID, parentID snowflake.ID, name, admissionNo, rollNo string, now time.Time) feedomain.Student {
	return feedomain.Student{
		ID:           node.Generate(),
		TenantID:     DemoTenantID,
		ClassID:      classID,
		ParentID:     &parentID,
		Name:         name,
		AdmissionNo:  admissionNo,
		RollNo:       rollNo,
		AcademicYear: demoAcademicYear,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func demoComponent(node *snowflake.Node, classID snowflake.ID, name string, amount int64, due *time.Time, now time.Time) feedomain.FeeComponentDefinition {
	return feedomain.FeeComponentDefinition{
		ID:           node.Generate(),
		TenantID:     DemoTenantID,
		ClassID:      classID,
		FeeComponent: name,
		Amount:       decimal.NewFromInt(amount),
		BaseAmount:   decimal.NewFromInt(amount),
		DueDate:      due,
		AcademicYear: demoAcademicYear,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
