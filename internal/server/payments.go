package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
)

type recordPaymentRequest struct {
	FeeComponent  string          `json:"fee_component"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	PaymentDate   string          `json:"payment_date"`
	PaymentMode   string          `json:"payment_mode"`
	AcademicYear  string          `json:"academic_year"`
	ReceiptNumber *int64          `json:"receipt_number"`
	Remarks       string          `json:"remarks"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	paymentDate, err := parsePaymentDate(req.PaymentDate)
	if err != nil {
		AbortWithError(c, newValidationError("payment_date", "invalid_payment_date", "payment_date must be YYYY-MM-DD or RFC3339"))
		return
	}

	resp, err := s.paymentSvc.RecordPayment(c.Request.Context(), tenantFromContext(c), feedomain.RecordPaymentRequest{
		StudentID:     c.Param("id"),
		FeeComponent:  strings.TrimSpace(req.FeeComponent),
		AmountPaid:    req.AmountPaid,
		PaymentDate:   paymentDate,
		PaymentMode:   strings.ToLower(strings.TrimSpace(req.PaymentMode)),
		AcademicYear:  strings.TrimSpace(req.AcademicYear),
		ReceiptNumber: req.ReceiptNumber,
		Remarks:       req.Remarks,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetPaymentReceipt(c *gin.Context) {
	doc, err := s.documentSvc.RenderReceipt(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	writeDocument(c, doc)
}

// parsePaymentDate accepts a calendar date or a full timestamp. An empty
// value stays zero and fails validation in the service.
func parsePaymentDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
