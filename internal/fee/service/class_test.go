package service

import (
	"context"
	"errors"
	"testing"

	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetClassFeeStructure(t *testing.T) {
	env := newTestEnv(t)
	env.addDefinition("Tuition Fee", "15000", "2024-2025")
	env.addDefinition("Library Fee", "3000", "2024-25")
	env.addDefinition("Tuition Fee", "14000", "2023-24")
	ctx := context.Background()

	res := env.svc.GetClassFeeStructure(ctx, env.tenantID, env.classID, "2024-2025")
	require.True(t, res.Success, res.Message())
	assert.Equal(t, "2024-25", res.Data.AcademicYear)
	assert.Equal(t, 2, res.Data.ComponentCount)
	assertAmount(t, "18000", res.Data.TotalFee)
	assert.Equal(t, "Grade 5", res.Data.ClassName)
	for _, c := range res.Data.Components {
		assert.Equal(t, "2024-25", c.AcademicYear)
	}

	all := env.svc.GetClassFeeStructure(ctx, env.tenantID, env.classID, "")
	require.True(t, all.Success)
	assert.Equal(t, 3, all.Data.ComponentCount)

	missing := env.svc.GetClassFeeStructure(ctx, env.tenantID, env.node.Generate(), "")
	assert.False(t, missing.Success)
	assert.Equal(t, feedomain.MessageClassNotFound, missing.Message())
}

func TestSyncClassFees(t *testing.T) {
	env := newTestEnv(t)
	env.addDefinition("Tuition Fee", "15000", "2024-25")
	env.addPayment(env.studentID, "Tuition Fee", "15000", "2024-25")
	env.addPayment(env.siblingID, "Sports Fee", "200", "2024-25")
	ctx := context.Background()

	res := env.svc.SyncClassFees(ctx, env.tenantID, env.classID)
	require.True(t, res.Success, res.Message())
	assert.Equal(t, 2, res.Data.Students)
	assert.Equal(t, 2, res.Data.Synced)
	assert.Equal(t, 0, res.Data.Failed)

	outcomes := map[string]feedomain.StudentSyncOutcome{}
	for _, o := range res.Data.Outcomes {
		outcomes[o.StudentID] = o
	}
	assert.Equal(t, feedomain.FeeStatusPaid, outcomes[env.studentID.String()].Status)
	assert.Equal(t, 0, outcomes[env.studentID.String()].Issues)
	assert.Equal(t, 1, outcomes[env.siblingID.String()].OrphanedPayments)
	assert.Equal(t, 1, outcomes[env.siblingID.String()].Issues)

	cached, ok := env.svc.cache.Get(ctx, env.tenantID, env.siblingID)
	require.True(t, ok)
	assertAmount(t, "15000", cached.TotalOutstanding)
}

func TestSyncClassFeesContinuesPastFailures(t *testing.T) {
	env := newTestEnv(t)
	env.addDefinition("Tuition Fee", "15000", "2024-25")
	svc := env.newService(&failingRepo{Repository: env.repo, paymentsErr: errors.New("timeout"), failFor: env.siblingID})

	res := svc.SyncClassFees(context.Background(), env.tenantID, env.classID)
	require.True(t, res.Success)
	assert.Equal(t, 1, res.Data.Synced)
	assert.Equal(t, 1, res.Data.Failed)
	for _, o := range res.Data.Outcomes {
		if o.StudentID == env.siblingID.String() {
			assert.False(t, o.Success)
			assert.Contains(t, o.Error, "timeout")
		} else {
			assert.True(t, o.Success)
		}
	}

	missing := svc.SyncClassFees(context.Background(), env.tenantID, env.node.Generate())
	assert.False(t, missing.Success)
	assert.ErrorIs(t, missing.Err, feedomain.ErrClassNotFound)
}

func TestGetChildrenFeeDetails(t *testing.T) {
	env := newTestEnv(t)
	env.addDefinition("Tuition Fee", "15000", "2024-25")
	env.addPayment(env.studentID, "Tuition Fee", "5000", "2024-25")
	ctx := context.Background()

	res := env.svc.GetChildrenFeeDetails(ctx, env.tenantID, env.parentID)
	require.True(t, res.Success, res.Message())
	require.Len(t, res.Data.Children, 2)
	for _, child := range res.Data.Children {
		assert.Nil(t, child.Error)
		require.NotNil(t, child.Details)
	}
	assertAmount(t, "30000", res.Data.TotalDue)
	assertAmount(t, "5000", res.Data.TotalPaid)
	assertAmount(t, "25000", res.Data.TotalOutstanding)
	assert.Equal(t, feedomain.FeeStatusPartial, res.Data.Status)

	missing := env.svc.GetChildrenFeeDetails(ctx, env.tenantID, env.node.Generate())
	assert.False(t, missing.Success)
	assert.Equal(t, feedomain.MessageParentNotFound, missing.Message())
}

func TestGetChildrenFeeDetailsKeepsHealthyChildren(t *testing.T) {
	env := newTestEnv(t)
	env.addDefinition("Tuition Fee", "15000", "2024-25")
	svc := env.newService(&failingRepo{Repository: env.repo, paymentsErr: errors.New("timeout"), failFor: env.siblingID})

	res := svc.GetChildrenFeeDetails(context.Background(), env.tenantID, env.parentID)
	require.True(t, res.Success)

	for _, child := range res.Data.Children {
		if child.StudentID == env.siblingID.String() {
			require.NotNil(t, child.Error)
			assert.Equal(t, feedomain.MessageLoadFailed, *child.Error)
			assert.Nil(t, child.Details)
			continue
		}
		assert.NotNil(t, child.Details)
	}
	assertAmount(t, "15000", res.Data.TotalDue)
}

func TestValidateFeeConsistency(t *testing.T) {
	env := newTestEnv(t)
	env.addDefinition("Tuition Fee", "1000", "2024-25")
	env.addPayment(env.studentID, "Tuition Fee", "1200", "2024-25")
	orphan := env.addPayment(env.studentID, "Sports Fee", "500", "2024-25")
	yearless := env.addPayment(env.studentID, "Library Fee", "50", "")

	legacy := env.addDefinition("Transport Fee", "800", "2024-25")
	require.NoError(t, env.db.Model(&feedomain.FeeComponentDefinition{}).
		Where("id = ?", legacy.ID).
		Update("student_id", env.studentID).Error)

	res := env.svc.ValidateFeeConsistency(context.Background(), env.tenantID, env.studentID)
	require.True(t, res.Success, res.Message())
	report := res.Data
	assert.False(t, report.Consistent)

	issues := map[string]feedomain.ConsistencyFinding{}
	orphaned := []string{}
	for _, f := range report.Issues {
		issues[f.Code] = f
		if f.Code == feedomain.FindingOrphanedPayment {
			orphaned = append(orphaned, f.PaymentID)
		}
	}
	// The yearless payment cannot be matched either.
	assert.ElementsMatch(t, []string{orphan.ID.String(), yearless.ID.String()}, orphaned)
	require.Contains(t, issues, feedomain.FindingLegacyStudentFees)
	assert.Contains(t, issues[feedomain.FindingLegacyStudentFees].Message, "Transport Fee")
	assert.NotContains(t, issues, feedomain.FindingNoFeeStructure)

	warnings := map[string]feedomain.ConsistencyFinding{}
	for _, f := range report.Warnings {
		warnings[f.Code] = f
	}
	require.Contains(t, warnings, feedomain.FindingOverpayment)
	assert.Equal(t, "Tuition Fee overpaid by ₹200", warnings[feedomain.FindingOverpayment].Message)
	require.Contains(t, warnings, feedomain.FindingYearlessPayment)
	assert.Equal(t, yearless.ID.String(), warnings[feedomain.FindingYearlessPayment].PaymentID)
}

func TestValidateFeeConsistencyWithoutStructure(t *testing.T) {
	env := newTestEnv(t)

	res := env.svc.ValidateFeeConsistency(context.Background(), env.tenantID, env.siblingID)
	require.True(t, res.Success)
	assert.False(t, res.Data.Consistent)
	require.Len(t, res.Data.Issues, 1)
	assert.Equal(t, feedomain.FindingNoFeeStructure, res.Data.Issues[0].Code)
}
