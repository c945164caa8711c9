package aggregator

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/feeledger/internal/fee/academicyear"
	"github.com/smallbiznis/feeledger/internal/fee/discount"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/internal/fee/matcher"
)

// Options tunes matching behavior. The zero value is usable.
type Options struct {
	Matcher *matcher.Matcher

	// MatchYearlessPayments lets a payment without an academic year be
	// claimed by a group of any year. Off by default.
	MatchYearlessPayments bool

	// DefaultAcademicYear labels results that carry no fee definitions.
	DefaultAcademicYear string
}

// Input is everything a calculation needs for one student.
type Input struct {
	Definitions []feedomain.FeeComponentDefinition
	Discounts   []feedomain.StudentDiscount
	Payments    []feedomain.PaymentRecord
	Options     Options
}

// FeeBreakdown is the reconciled state of one (component, academic year) group.
type FeeBreakdown struct {
	ID                snowflake.ID                `json:"id"`
	Component         string                      `json:"component"`
	AcademicYear      string                      `json:"academic_year"`
	DueDate           *time.Time                  `json:"due_date,omitempty"`
	BaseFeeAmount     decimal.Decimal             `json:"base_fee_amount"`
	DiscountAmount    decimal.Decimal             `json:"discount_amount"`
	FinalAmount       decimal.Decimal             `json:"final_amount"`
	PaidAmount        decimal.Decimal             `json:"paid_amount"`
	ActualPaidAmount  decimal.Decimal             `json:"actual_paid_amount"`
	OutstandingAmount decimal.Decimal             `json:"outstanding_amount"`
	Status            feedomain.FeeStatus         `json:"status"`
	Payments          []feedomain.PaymentRecord   `json:"payments"`
	Discounts         []feedomain.StudentDiscount `json:"discounts"`
}

// Counts describes the size of a calculation.
type Counts struct {
	Definitions int `json:"definitions"`
	Discounts   int `json:"discounts"`
	Payments    int `json:"payments"`
	Groups      int `json:"groups"`
	Orphaned    int `json:"orphaned_payments"`
}

// Result is the reconciled fee position of one student.
type Result struct {
	TotalBaseFee     decimal.Decimal           `json:"total_base_fee"`
	TotalDiscounts   decimal.Decimal           `json:"total_discounts"`
	TotalAmount      decimal.Decimal           `json:"total_amount"`
	TotalPaid        decimal.Decimal           `json:"total_paid"`
	TotalOutstanding decimal.Decimal           `json:"total_outstanding"`
	AcademicYear     string                    `json:"academic_year"`
	Details          []FeeBreakdown            `json:"details"`
	OrphanedPayments []feedomain.PaymentRecord `json:"orphaned_payments"`
	Counts           Counts                    `json:"counts"`
}

// PendingFees returns the groups that still have money outstanding.
func (r Result) PendingFees() []FeeBreakdown {
	out := make([]FeeBreakdown, 0)
	for _, d := range r.Details {
		if d.OutstandingAmount.IsPositive() {
			out = append(out, d)
		}
	}
	return out
}

// PaidFees returns the groups that are fully paid.
func (r Result) PaidFees() []FeeBreakdown {
	out := make([]FeeBreakdown, 0)
	for _, d := range r.Details {
		if d.Status == feedomain.FeeStatusPaid {
			out = append(out, d)
		}
	}
	return out
}

type groupKey struct {
	component string
	year      string
}

// Aggregate reconciles fee definitions, discounts and payments for a student.
// It performs no I/O and returns the same result for the same input.
func Aggregate(in Input) Result {
	m := in.Options.Matcher
	if m == nil {
		m = matcher.Default()
	}

	result := Result{
		TotalBaseFee:     decimal.Zero,
		TotalDiscounts:   decimal.Zero,
		TotalAmount:      decimal.Zero,
		TotalPaid:        decimal.Zero,
		TotalOutstanding: decimal.Zero,
		Details:          []FeeBreakdown{},
		OrphanedPayments: []feedomain.PaymentRecord{},
		Counts: Counts{
			Definitions: len(in.Definitions),
			Discounts:   len(in.Discounts),
			Payments:    len(in.Payments),
		},
	}

	if len(in.Definitions) == 0 {
		result.AcademicYear = in.Options.DefaultAcademicYear
		result.OrphanedPayments = append(result.OrphanedPayments, in.Payments...)
		result.Counts.Orphaned = len(result.OrphanedPayments)
		return result
	}

	groups := groupDefinitions(in.Definitions)
	claimed := make(map[snowflake.ID]struct{}, len(in.Payments))

	for _, b := range groups {
		resolution := discount.Resolve(b.Component, b.AcademicYear, in.Discounts)
		b.Discounts = resolution.Discounts
		b.DiscountAmount = resolution.Amount(b.BaseFeeAmount)
		b.FinalAmount = decimal.Max(decimal.Zero, b.BaseFeeAmount.Sub(b.DiscountAmount))

		raw := decimal.Zero
		for _, p := range in.Payments {
			if _, used := claimed[p.ID]; used {
				continue
			}
			if !yearMatches(p.AcademicYear, b.AcademicYear, in.Options.MatchYearlessPayments) {
				continue
			}
			if p.FeeComponent != b.Component && !m.Matches(p.FeeComponent, b.Component) {
				continue
			}
			claimed[p.ID] = struct{}{}
			b.Payments = append(b.Payments, p)
			raw = raw.Add(p.AmountPaid)
		}

		b.ActualPaidAmount = raw
		b.PaidAmount = decimal.Min(raw, b.FinalAmount)
		b.OutstandingAmount = decimal.Max(decimal.Zero, b.FinalAmount.Sub(raw))
		b.Status = componentStatus(raw, b.FinalAmount)

		result.TotalBaseFee = result.TotalBaseFee.Add(b.BaseFeeAmount)
		result.TotalDiscounts = result.TotalDiscounts.Add(b.DiscountAmount)
		result.TotalAmount = result.TotalAmount.Add(b.FinalAmount)
		result.TotalPaid = result.TotalPaid.Add(b.PaidAmount)
		result.TotalOutstanding = result.TotalOutstanding.Add(b.OutstandingAmount)
		result.Details = append(result.Details, *b)
	}

	for _, p := range in.Payments {
		if _, used := claimed[p.ID]; !used {
			result.OrphanedPayments = append(result.OrphanedPayments, p)
		}
	}

	result.AcademicYear = result.Details[0].AcademicYear
	if result.AcademicYear == "" {
		result.AcademicYear = in.Options.DefaultAcademicYear
	}
	result.Counts.Groups = len(result.Details)
	result.Counts.Orphaned = len(result.OrphanedPayments)
	return result
}

// groupDefinitions buckets definitions by (component, normalized year),
// keeping the order in which each bucket first appears.
func groupDefinitions(defs []feedomain.FeeComponentDefinition) []*FeeBreakdown {
	index := make(map[groupKey]*FeeBreakdown, len(defs))
	ordered := make([]*FeeBreakdown, 0, len(defs))

	for _, def := range defs {
		key := groupKey{component: def.FeeComponent, year: academicyear.Normalize(def.AcademicYear)}
		g, ok := index[key]
		if !ok {
			g = &FeeBreakdown{
				ID:             def.ID,
				Component:      def.FeeComponent,
				AcademicYear:   key.year,
				DueDate:        def.DueDate,
				BaseFeeAmount:  decimal.Zero,
				DiscountAmount: decimal.Zero,
				Payments:       []feedomain.PaymentRecord{},
				Discounts:      []feedomain.StudentDiscount{},
			}
			index[key] = g
			ordered = append(ordered, g)
		}
		g.BaseFeeAmount = g.BaseFeeAmount.Add(def.Amount)
	}
	return ordered
}

func yearMatches(paymentYear, groupYear string, allowYearless bool) bool {
	normalized := academicyear.Normalize(paymentYear)
	if normalized == groupYear {
		return true
	}
	return allowYearless && normalized == ""
}

func componentStatus(raw, final decimal.Decimal) feedomain.FeeStatus {
	switch {
	case final.IsPositive() && raw.GreaterThanOrEqual(final):
		return feedomain.FeeStatusPaid
	case raw.IsPositive():
		return feedomain.FeeStatusPartial
	default:
		return feedomain.FeeStatusUnpaid
	}
}
