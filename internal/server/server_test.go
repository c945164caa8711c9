package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/feeledger/internal/audit/domain"
	"github.com/smallbiznis/feeledger/internal/authorization"
	"github.com/smallbiznis/feeledger/internal/config"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/internal/observability"
	"github.com/smallbiznis/feeledger/internal/ratelimit"
	"github.com/smallbiznis/feeledger/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFeeService struct {
	feedomain.Service

	detailsTenant snowflake.ID
	detailsOpts   feedomain.DetailOptions
	details       feedomain.Result[feedomain.StudentFeeDetails]
	structureYear string
}

func (f *fakeFeeService) GetStudentFeeDetails(ctx context.Context, tenantID, studentID snowflake.ID, opts feedomain.DetailOptions) feedomain.Result[feedomain.StudentFeeDetails] {
	f.detailsTenant = tenantID
	f.detailsOpts = opts
	return f.details
}

func (f *fakeFeeService) GetClassFeeStructure(ctx context.Context, tenantID, classID snowflake.ID, academicYear string) feedomain.Result[feedomain.ClassFeeStructure] {
	f.structureYear = academicYear
	return feedomain.Succeed(feedomain.ClassFeeStructure{ClassID: classID.String(), AcademicYear: academicYear})
}

type fakePaymentService struct {
	req feedomain.RecordPaymentRequest
	err error
}

func (f *fakePaymentService) RecordPayment(ctx context.Context, tenantID snowflake.ID, req feedomain.RecordPaymentRequest) (*feedomain.PaymentReceipt, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &feedomain.PaymentReceipt{
		Payment:  feedomain.PaymentView{ReceiptNumber: 1001, AmountPaid: req.AmountPaid},
		Warnings: []string{},
	}, nil
}

type fakeDocumentService struct {
	feedomain.DocumentService
}

func (f *fakeDocumentService) RenderReceipt(ctx context.Context, tenantID snowflake.ID, paymentID string) (*feedomain.Document, error) {
	if paymentID == "404" {
		return nil, feedomain.ErrPaymentNotFound
	}
	return &feedomain.Document{Filename: "receipt-1001.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4")}, nil
}

type fakeStructureService struct {
	err error
}

func (f *fakeStructureService) UpdateFeeComponentAmount(ctx context.Context, tenantID snowflake.ID, req feedomain.UpdateFeeComponentRequest) (*feedomain.FeeComponentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &feedomain.FeeComponentResponse{ID: req.ID, Amount: req.Amount, AffectedStudents: 3}, nil
}

// fakeAuthz allows a role only the actions listed for it.
type fakeAuthz struct {
	allowed map[string][]string
}

func (f *fakeAuthz) Authorize(ctx context.Context, actor authorization.Actor, tenantID string, object string, action string) error {
	for _, a := range f.allowed[actor.Role] {
		if a == action {
			return nil
		}
	}
	return authorization.ErrForbidden
}

type fakeAuditService struct {
	auditdomain.Service
	req auditdomain.ListAuditLogRequest
}

func (f *fakeAuditService) List(ctx context.Context, tenantID snowflake.ID, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	f.req = req
	if req.PageToken == "bad" {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
	}
	return auditdomain.ListAuditLogResponse{
		PageInfo:  pagination.PageInfo{NextPageToken: "next", HasMore: true},
		AuditLogs: []auditdomain.AuditLog{{
			ID:         1,
			TenantID:   tenantID,
			ActorType:  "admin",
			Action:     auditdomain.ActionPaymentRecorded,
			TargetType: auditdomain.TargetPayment,
			TargetID:   900,
		}},
	}, nil
}

type fakeLimiter struct {
	allowed bool
}

func (f *fakeLimiter) Enabled() bool { return true }

func (f *fakeLimiter) AllowTenant(ctx context.Context, tenantID snowflake.ID) (*ratelimit.RateLimitResult, error) {
	return &ratelimit.RateLimitResult{Allowed: f.allowed, Limit: 20, RetryAfter: 200 * time.Millisecond}, nil
}

type testDeps struct {
	fees      *fakeFeeService
	payments  *fakePaymentService
	structure *fakeStructureService
	audit     *fakeAuditService
}

func newTestServer(t *testing.T) (*Server, *testDeps) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	deps := &testDeps{
		fees:      &fakeFeeService{},
		payments:  &fakePaymentService{},
		structure: &fakeStructureService{},
		audit:     &fakeAuditService{},
	}
	srv := NewServer(ServerParams{
		Gin:          NewEngine(observability.Config{}, nil),
		Cfg:          config.Config{},
		Log:          zap.NewNop(),
		FeeSvc:       deps.fees,
		PaymentSvc:   deps.payments,
		StructureSvc: deps.structure,
		DocumentSvc:  &fakeDocumentService{},
		AuditSvc:     deps.audit,
		AuthzSvc: &fakeAuthz{allowed: map[string][]string{
			"admin":  {authorization.ActionFeeView, authorization.ActionFeeAudit, authorization.ActionPaymentRecord, authorization.ActionFeeStructureManage},
			"parent": {authorization.ActionFeeView},
		}},
	})
	return srv, deps
}

func doRequest(srv *Server, method, path, role string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderTenant, "1")
	if role != "" {
		req.Header.Set(HeaderActorRole, role)
	}
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTenantHeaderRequired(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/students/10/fees", nil)
	req.Header.Set(HeaderActorRole, "admin")
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "tenant_required")
}

func TestActorRoleRequired(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/api/students/10/fees", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestParentCannotRecordPayment(t *testing.T) {
	srv, deps := newTestServer(t)

	w := doRequest(srv, http.MethodPost, "/api/students/10/payments", "parent", gin.H{"amount_paid": "100"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, deps.payments.req.StudentID)
}

func TestGetStudentFeesEnvelope(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.fees.details = feedomain.Succeed(feedomain.StudentFeeDetails{
		Student: feedomain.StudentInfo{ID: "10", Name: "Asha"},
	})

	w := doRequest(srv, http.MethodGet, "/api/students/10/fees?include_payment_history=false", "parent", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool                        `json:"success"`
		Data    feedomain.StudentFeeDetails `json:"data"`
		Error   *string                     `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Nil(t, body.Error)
	assert.Equal(t, "Asha", body.Data.Student.Name)
	assert.Equal(t, snowflake.ID(1), deps.fees.detailsTenant)
	assert.False(t, deps.fees.detailsOpts.IncludePaymentHistory)
	assert.True(t, deps.fees.detailsOpts.IncludeFeeBreakdown)
}

func TestGetStudentFeesNotFound(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.fees.details = feedomain.Fail[feedomain.StudentFeeDetails](feedomain.MessageStudentNotFound, feedomain.ErrStudentNotFound)

	w := doRequest(srv, http.MethodGet, "/api/students/10/fees", "admin", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"data":null,"error":"Student not found"}`, w.Body.String())
}

func TestGetStudentFeesStoreFailure(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.fees.details = feedomain.Fail[feedomain.StudentFeeDetails](feedomain.MessageLoadFailed, feedomain.NewFetchError("student_fees", assert.AnError))

	w := doRequest(srv, http.MethodGet, "/api/students/10/fees", "admin", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), feedomain.MessageLoadFailed)
}

func TestGetClassFeeStructurePassesYear(t *testing.T) {
	srv, deps := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/api/classes/5/fee-structure?academic_year=2024-25", "parent", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-25", deps.fees.structureYear)
}

func TestRecordPayment(t *testing.T) {
	srv, deps := newTestServer(t)

	w := doRequest(srv, http.MethodPost, "/api/students/10/payments", "admin", gin.H{
		"fee_component": " Tuition Fee ",
		"amount_paid":   "6000",
		"payment_date":  "2024-07-15",
		"payment_mode":  "UPI",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, "10", deps.payments.req.StudentID)
	assert.Equal(t, "Tuition Fee", deps.payments.req.FeeComponent)
	assert.Equal(t, "upi", deps.payments.req.PaymentMode)
	assert.True(t, deps.payments.req.AmountPaid.Equal(decimal.NewFromInt(6000)))
	assert.Equal(t, time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC), deps.payments.req.PaymentDate)
	assert.Contains(t, w.Body.String(), `"receipt_number":1001`)
}

func TestRecordPaymentRejectsBadDate(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, http.MethodPost, "/api/students/10/payments", "admin", gin.H{"payment_date": "15/07/2024"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_payment_date")
}

func TestRecordPaymentValidationErrors(t *testing.T) {
	srv, deps := newTestServer(t)
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		return name
	})
	deps.payments.err = v.Struct(feedomain.RecordPaymentRequest{StudentID: "10"})

	w := doRequest(srv, http.MethodPost, "/api/students/10/payments", "admin", gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "validation_error", body.Error.Type)
	fields := []string{}
	for _, e := range body.Error.Errors {
		fields = append(fields, e.Field)
	}
	assert.Contains(t, fields, "fee_component")
	assert.Contains(t, fields, "payment_mode")
}

func TestRecordPaymentDuplicateReceipt(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.payments.err = feedomain.ErrDuplicateReceiptNumber

	w := doRequest(srv, http.MethodPost, "/api/students/10/payments", "admin", gin.H{"amount_paid": "1"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestWriteRateLimit(t *testing.T) {
	srv, deps := newTestServer(t)
	srv.writeLimiter = &fakeLimiter{allowed: false}

	w := doRequest(srv, http.MethodPost, "/api/students/10/payments", "admin", gin.H{"amount_paid": "1"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "20", w.Header().Get("X-RateLimit-Limit"))
	assert.Empty(t, deps.payments.req.StudentID)
}

func TestGetPaymentReceipt(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/api/payments/77/receipt", "parent", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "receipt-1001.pdf")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	w = doRequest(srv, http.MethodGet, "/api/payments/404/receipt", "parent", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateFeeComponent(t *testing.T) {
	srv, deps := newTestServer(t)

	w := doRequest(srv, http.MethodPatch, "/api/fee-structure/300", "admin", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(srv, http.MethodPatch, "/api/fee-structure/300", "admin", gin.H{"amount": "15000"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"affected_students":3`)

	deps.structure.err = feedomain.ErrLegacyFeeRow
	w = doRequest(srv, http.MethodPatch, "/api/fee-structure/300", "admin", gin.H{"amount": "15000"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(srv, http.MethodPatch, "/api/fee-structure/300", "parent", gin.H{"amount": "15000"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/nope", "admin", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAuditLogs(t *testing.T) {
	srv, deps := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/api/audit-logs?action=payment.recorded&page_size=10&start_at=2024-09-01T00:00:00Z", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "payment.recorded", deps.audit.req.Action)
	assert.Equal(t, 10, deps.audit.req.PageSize)
	require.NotNil(t, deps.audit.req.StartAt)
	assert.True(t, deps.audit.req.StartAt.Equal(time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)))
	assert.Nil(t, deps.audit.req.EndAt)

	var body struct {
		NextPageToken string `json:"next_page_token"`
		HasMore       bool   `json:"has_more"`
		AuditLogs     []struct {
			Action   string `json:"action"`
			TargetID string `json:"target_id"`
		} `json:"audit_logs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "next", body.NextPageToken)
	assert.True(t, body.HasMore)
	require.Len(t, body.AuditLogs, 1)
	assert.Equal(t, "900", body.AuditLogs[0].TargetID)
}

func TestListAuditLogsRejectsBadInput(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/api/audit-logs?end_at=yesterday", "admin", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "end_at")

	w = doRequest(srv, http.MethodGet, "/api/audit-logs?page_token=bad", "admin", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_page_token")

	w = doRequest(srv, http.MethodGet, "/api/audit-logs", "parent", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
