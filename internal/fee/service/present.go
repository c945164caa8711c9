package service

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/feeledger/internal/fee/aggregator"
	"github.com/smallbiznis/feeledger/internal/fee/discount"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
)

// Summary colors.
const (
	ColorNoFees  = "#666"
	ColorPaid    = "#4CAF50"
	ColorPending = "#FF9800"
)

// OverallStatus derives a student's status from reconciled totals.
func OverallStatus(totalPaid, totalOutstanding decimal.Decimal) feedomain.FeeStatus {
	switch {
	case !totalOutstanding.IsPositive():
		return feedomain.FeeStatusPaid
	case totalPaid.IsPositive():
		return feedomain.FeeStatusPartial
	default:
		return feedomain.FeeStatusUnpaid
	}
}

// StatusText is the short dashboard label of a summary.
func StatusText(summary feedomain.FeeSummary, currency string) string {
	if !summary.TotalDue.IsPositive() {
		return "No fees"
	}
	if !summary.TotalOutstanding.IsPositive() {
		return "All paid"
	}
	return FormatAmount(currency, summary.TotalOutstanding)
}

func StatusColor(summary feedomain.FeeSummary) string {
	switch {
	case !summary.TotalDue.IsPositive():
		return ColorNoFees
	case !summary.TotalOutstanding.IsPositive():
		return ColorPaid
	default:
		return ColorPending
	}
}

// FormatAmount renders amount with thousands separators and at most two
// decimals, e.g. "₹1,500" or "₹1,500.5".
func FormatAmount(currency string, amount decimal.Decimal) string {
	return formatMoney(currency, amount.Round(2).String())
}

// FormatMoney always prints two decimals, e.g. "₹1,500.00".
func FormatMoney(currency string, amount decimal.Decimal) string {
	return formatMoney(currency, amount.StringFixed(2))
}

func formatMoney(currency, raw string) string {
	sign := ""
	if strings.HasPrefix(raw, "-") {
		sign = "-"
		raw = raw[1:]
	}
	whole, frac, hasFrac := strings.Cut(raw, ".")

	var b strings.Builder
	b.WriteString(sign)
	b.WriteString(currency)
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

func describeDiscount(d feedomain.StudentDiscount, currency string) string {
	target := "all components"
	if !d.AppliesToAllComponents() {
		target = strings.TrimSpace(d.FeeComponent)
	}
	if d.DiscountType == feedomain.DiscountTypePercentage {
		return d.DiscountValue.String() + "% off " + target
	}
	return FormatAmount(currency, d.DiscountValue) + " off " + target
}

func studentInfo(student feedomain.Student, class *feedomain.Class) feedomain.StudentInfo {
	info := feedomain.StudentInfo{
		ID:           student.ID.String(),
		Name:         student.Name,
		AdmissionNo:  student.AdmissionNo,
		RollNo:       student.RollNo,
		ClassID:      student.ClassID.String(),
		AcademicYear: student.AcademicYear,
	}
	if class != nil {
		info.ClassName = class.ClassName
		info.Section = class.Section
	}
	return info
}

func componentView(b aggregator.FeeBreakdown, currency string) feedomain.ComponentView {
	applied := make([]feedomain.AppliedDiscount, 0, len(b.Discounts))
	for _, d := range b.Discounts {
		applied = append(applied, feedomain.AppliedDiscount{
			ID:          d.ID.String(),
			Type:        d.DiscountType,
			Value:       d.DiscountValue,
			Amount:      discount.Contribution(d, b.BaseFeeAmount),
			Description: describeDiscount(d, currency),
			Reason:      d.Reason,
		})
	}
	return feedomain.ComponentView{
		ID:                b.ID.String(),
		Component:         b.Component,
		AcademicYear:      b.AcademicYear,
		DueDate:           b.DueDate,
		BaseFeeAmount:     b.BaseFeeAmount,
		DiscountAmount:    b.DiscountAmount,
		FinalAmount:       b.FinalAmount,
		PaidAmount:        b.PaidAmount,
		ActualPaidAmount:  b.ActualPaidAmount,
		OutstandingAmount: b.OutstandingAmount,
		Status:            b.Status,
		AppliedDiscounts:  applied,
		PaymentCount:      len(b.Payments),
	}
}

func paymentView(p feedomain.PaymentRecord) feedomain.PaymentView {
	return feedomain.PaymentView{
		ID:            p.ID.String(),
		FeeComponent:  p.FeeComponent,
		AmountPaid:    p.AmountPaid,
		PaymentDate:   p.PaymentDate,
		PaymentMode:   p.PaymentMode,
		AcademicYear:  p.AcademicYear,
		ReceiptNumber: p.ReceiptNumber,
		Remarks:       p.Remarks,
	}
}

func paymentViews(payments []feedomain.PaymentRecord) []feedomain.PaymentView {
	out := make([]feedomain.PaymentView, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentView(p))
	}
	return out
}

// paymentHistory covers every recorded payment, matched or not. Recent holds
// the newest payments first.
func paymentHistory(payments []feedomain.PaymentRecord, recent int) *feedomain.PaymentHistory {
	history := &feedomain.PaymentHistory{
		TotalPaid: decimal.Zero,
		Count:     len(payments),
		Recent:    []feedomain.PaymentView{},
	}
	if len(payments) == 0 {
		return history
	}

	sorted := make([]feedomain.PaymentRecord, len(payments))
	copy(sorted, payments)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].PaymentDate.Equal(sorted[j].PaymentDate) {
			return sorted[i].PaymentDate.After(sorted[j].PaymentDate)
		}
		return sorted[i].ID > sorted[j].ID
	})

	for _, p := range sorted {
		history.TotalPaid = history.TotalPaid.Add(p.AmountPaid)
	}
	last := sorted[0].PaymentDate
	history.LastPaymentDate = &last

	if recent > len(sorted) {
		recent = len(sorted)
	}
	history.Recent = paymentViews(sorted[:recent])
	return history
}

func discountViews(discounts []feedomain.StudentDiscount, currency string) []feedomain.DiscountView {
	out := make([]feedomain.DiscountView, 0, len(discounts))
	for _, d := range discounts {
		out = append(out, feedomain.DiscountView{
			ID:           d.ID.String(),
			FeeComponent: d.FeeComponent,
			Type:         d.DiscountType,
			Value:        d.DiscountValue,
			AcademicYear: d.AcademicYear,
			Reason:       d.Reason,
			Description:  describeDiscount(d, currency),
		})
	}
	return out
}

func buildDetails(l *ledger, opts feedomain.DetailOptions, now time.Time) feedomain.StudentFeeDetails {
	r := l.result
	currency := l.rules.CurrencySymbol

	fees := feedomain.FeeOverview{
		TotalBaseFee:     r.TotalBaseFee,
		TotalDiscounts:   r.TotalDiscounts,
		TotalDue:         r.TotalAmount,
		TotalPaid:        r.TotalPaid,
		TotalOutstanding: r.TotalOutstanding,
		AcademicYear:     r.AcademicYear,
		Status:           OverallStatus(r.TotalPaid, r.TotalOutstanding),
	}
	if opts.IncludeFeeBreakdown {
		fees.Components = make([]feedomain.ComponentView, 0, len(r.Details))
		for _, b := range r.Details {
			fees.Components = append(fees.Components, componentView(b, currency))
		}
	}
	if opts.IncludePaymentHistory {
		fees.Payments = paymentHistory(l.payments, l.rules.RecentPaymentsCount)
	}

	return feedomain.StudentFeeDetails{
		Student: studentInfo(l.student, l.class),
		Fees:    fees,
		Discounts: feedomain.DiscountOverview{
			HasDiscounts:    len(l.discounts) > 0,
			TotalDiscount:   r.TotalDiscounts,
			ActiveDiscounts: discountViews(l.discounts, currency),
		},
		OrphanedPayments: paymentViews(r.OrphanedPayments),
		Metadata: feedomain.Metadata{
			CalculatedAt:    now,
			DefinitionCount: r.Counts.Definitions,
			DiscountCount:   r.Counts.Discounts,
			PaymentCount:    r.Counts.Payments,
			ComponentCount:  r.Counts.Groups,
			OrphanedCount:   r.Counts.Orphaned,
		},
	}
}

func buildSummary(l *ledger) feedomain.FeeSummary {
	r := l.result
	summary := feedomain.FeeSummary{
		StudentID:        l.student.ID.String(),
		TotalDue:         r.TotalAmount,
		TotalPaid:        r.TotalPaid,
		TotalOutstanding: r.TotalOutstanding,
		TotalDiscounts:   r.TotalDiscounts,
		AcademicYear:     r.AcademicYear,
		Status:           OverallStatus(r.TotalPaid, r.TotalOutstanding),
		HasDiscounts:     len(l.discounts) > 0,
		PendingCount:     len(r.PendingFees()),
	}
	summary.StatusText = StatusText(summary, l.rules.CurrencySymbol)
	summary.StatusColor = StatusColor(summary)
	return summary
}
