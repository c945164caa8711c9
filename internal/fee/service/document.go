package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/internal/observability/logger"
	"github.com/smallbiznis/feeledger/internal/providers/pdf"
	"go.uber.org/zap"
)

const (
	pdfContentType = "application/pdf"
	dateLayout     = "02 Jan 2006"
)

// RenderReceipt renders the PDF receipt of a recorded payment.
func (s *Service) RenderReceipt(ctx context.Context, tenantID snowflake.ID, paymentID string) (*feedomain.Document, error) {
	if tenantID == 0 {
		return nil, feedomain.ErrInvalidTenant
	}
	id, err := parseID(paymentID)
	if err != nil {
		return nil, err
	}
	payment, err := s.repo.FindPayment(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, feedomain.ErrPaymentNotFound
	}
	student, err := s.findStudent(ctx, tenantID, payment.StudentID)
	if err != nil {
		return nil, err
	}
	class, err := s.repo.FindClass(ctx, tenantID, student.ClassID)
	if err != nil {
		return nil, err
	}

	currency := s.rules.Get().CurrencySymbol
	data := pdf.ReceiptData{
		School:        s.schoolParty(),
		Student:       studentParty(*student, class),
		ReceiptNumber: fmt.Sprintf("%d", payment.ReceiptNumber),
		PaymentDate:   payment.PaymentDate.Format(dateLayout),
		PaymentMode:   payment.PaymentMode,
		AcademicYear:  payment.AcademicYear,
		FeeComponent:  payment.FeeComponent,
		AmountPaid:    FormatMoney(currency, payment.AmountPaid),
		Remarks:       payment.Remarks,
	}
	if summary, err := s.refreshSummary(ctx, tenantID, *student); err == nil {
		data.Outstanding = FormatMoney(currency, summary.TotalOutstanding)
	} else {
		logger.WithContext(ctx, s.log).Warn("receipt rendered without balance", zap.Error(err))
	}

	reader, err := s.pdf.GenerateFeeReceipt(ctx, data)
	if err != nil {
		return nil, err
	}
	name := slug.Make(fmt.Sprintf("receipt %d %s", payment.ReceiptNumber, student.Name))
	return readDocument(reader, name)
}

// RenderStatement renders a student's reconciled fee position as a PDF.
func (s *Service) RenderStatement(ctx context.Context, tenantID snowflake.ID, studentID string) (*feedomain.Document, error) {
	id, err := parseID(studentID)
	if err != nil {
		return nil, err
	}
	l, err := s.loadLedger(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	currency := l.rules.CurrencySymbol
	r := l.result
	data := pdf.StatementData{
		School:           s.schoolParty(),
		Student:          studentParty(l.student, l.class),
		AcademicYear:     r.AcademicYear,
		IssueDate:        s.clock.Now().Format(dateLayout),
		Status:           string(OverallStatus(r.TotalPaid, r.TotalOutstanding)),
		Items:            make([]pdf.LineItem, 0, len(r.Details)),
		TotalBaseFee:     FormatMoney(currency, r.TotalBaseFee),
		TotalDiscounts:   FormatMoney(currency, r.TotalDiscounts),
		TotalDue:         FormatMoney(currency, r.TotalAmount),
		TotalPaid:        FormatMoney(currency, r.TotalPaid),
		TotalOutstanding: FormatMoney(currency, r.TotalOutstanding),
	}
	for _, b := range r.Details {
		data.Items = append(data.Items, pdf.LineItem{
			Description: b.Component,
			Due:         FormatMoney(currency, b.FinalAmount),
			Paid:        FormatMoney(currency, b.PaidAmount),
			Outstanding: FormatMoney(currency, b.OutstandingAmount),
			Status:      string(b.Status),
		})
	}

	reader, err := s.pdf.GenerateFeeStatement(ctx, data)
	if err != nil {
		return nil, err
	}
	name := slug.Make(fmt.Sprintf("fee statement %s %s", l.student.Name, r.AcademicYear))
	return readDocument(reader, name)
}

func (s *Service) schoolParty() pdf.Party {
	party := pdf.Party{Name: s.school.Name}
	if addr := strings.TrimSpace(s.school.Address); addr != "" {
		party.Lines = append(party.Lines, addr)
	}
	return party
}

func studentParty(student feedomain.Student, class *feedomain.Class) pdf.Party {
	party := pdf.Party{Name: student.Name}
	if class != nil {
		party.Lines = append(party.Lines, strings.TrimSpace("Class "+class.ClassName+" "+class.Section))
	}
	if student.AdmissionNo != "" {
		party.Lines = append(party.Lines, "Admission no. "+student.AdmissionNo)
	}
	if student.RollNo != "" {
		party.Lines = append(party.Lines, "Roll no. "+student.RollNo)
	}
	return party
}

func readDocument(reader io.Reader, name string) (*feedomain.Document, error) {
	if reader == nil {
		return nil, fmt.Errorf("document %s: empty output", name)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	return &feedomain.Document{
		Filename:    name + ".pdf",
		ContentType: pdfContentType,
		Content:     content,
	}, nil
}
