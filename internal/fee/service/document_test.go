package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/shopspring/decimal"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderReceipt(t *testing.T) {
	env := newTestEnv(t)
	env.addDefinition("Tuition Fee", "15000", "2024-25")
	ctx := context.Background()

	receipt, err := env.svc.RecordPayment(ctx, env.tenantID, feedomain.RecordPaymentRequest{
		StudentID:    env.studentID.String(),
		FeeComponent: "Tuition Fee",
		AmountPaid:   decimal.NewFromInt(5000),
		PaymentDate:  testNow,
		PaymentMode:  "cash",
	})
	require.NoError(t, err)

	doc, err := env.svc.RenderReceipt(ctx, env.tenantID, receipt.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "receipt-1001-asha-rao.pdf", doc.Filename)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.True(t, bytes.HasPrefix(doc.Content, []byte("%PDF")))

	_, err = env.svc.RenderReceipt(ctx, env.tenantID, env.node.Generate().String())
	assert.ErrorIs(t, err, feedomain.ErrPaymentNotFound)

	_, err = env.svc.RenderReceipt(ctx, env.node.Generate(), receipt.Payment.ID)
	assert.ErrorIs(t, err, feedomain.ErrPaymentNotFound)
}

func TestRenderStatement(t *testing.T) {
	env := newTestEnv(t)
	env.addDefinition("Tuition Fee", "15000", "2024-25")
	env.addDefinition("Library Fee", "3000", "2024-25")
	env.addPayment(env.studentID, "Library Fee", "3000", "2024-25")
	ctx := context.Background()

	doc, err := env.svc.RenderStatement(ctx, env.tenantID, env.studentID.String())
	require.NoError(t, err)
	assert.Equal(t, "fee-statement-asha-rao-2024-25.pdf", doc.Filename)
	assert.True(t, bytes.HasPrefix(doc.Content, []byte("%PDF")))

	_, err = env.svc.RenderStatement(ctx, env.tenantID, env.node.Generate().String())
	assert.ErrorIs(t, err, feedomain.ErrStudentNotFound)
}

func TestStudentParty(t *testing.T) {
	party := studentParty(feedomain.Student{Name: "Asha Rao", AdmissionNo: "ADM-001"}, &feedomain.Class{ClassName: "Grade 5", Section: "A"})

	assert.Equal(t, "Asha Rao", party.Name)
	assert.Equal(t, []string{"Class Grade 5 A", "Admission no. ADM-001"}, party.Lines)
}
