package aggregator

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	randomComponents = []string{"Tuition Fee", "Tution Fee", "Bus Fee", "Transport", "Library Fee", "Sports Fee", "Exam Fee", "ALL"}
	randomYears      = []string{"2024-25", "2024-2025", "2023-24", ""}
	randomKinds      = []feedomain.DiscountType{feedomain.DiscountTypePercentage, feedomain.DiscountTypeFixed, feedomain.DiscountTypeFixedAmount}
)

func randomInput(r *rand.Rand) Input {
	var next int64
	nextID := func() snowflake.ID {
		next++
		return snowflake.ID(next)
	}
	pick := func(values []string) string { return values[r.IntN(len(values))] }

	in := Input{}
	for i := 0; i < r.IntN(6); i++ {
		component := pick(randomComponents[:len(randomComponents)-1])
		in.Definitions = append(in.Definitions, feedomain.FeeComponentDefinition{
			ID:           nextID(),
			ClassID:      testClassID,
			FeeComponent: component,
			Amount:       decimal.NewFromInt(int64(r.IntN(20000))),
			AcademicYear: pick(randomYears[:3]),
		})
	}
	for i := 0; i < r.IntN(4); i++ {
		kind := randomKinds[r.IntN(len(randomKinds))]
		value := decimal.NewFromInt(int64(r.IntN(5000)))
		if kind == feedomain.DiscountTypePercentage {
			value = decimal.NewFromInt(int64(r.IntN(101)))
		}
		in.Discounts = append(in.Discounts, feedomain.StudentDiscount{
			ID:            nextID(),
			StudentID:     testStudentID,
			FeeComponent:  pick(randomComponents),
			DiscountType:  kind,
			DiscountValue: value,
			AcademicYear:  pick(randomYears),
			IsActive:      r.IntN(4) != 0,
		})
	}
	for i := 0; i < r.IntN(6); i++ {
		in.Payments = append(in.Payments, feedomain.PaymentRecord{
			ID:           nextID(),
			StudentID:    testStudentID,
			FeeComponent: pick(randomComponents[:len(randomComponents)-1]),
			AmountPaid:   decimal.NewFromInt(int64(r.IntN(15000))),
			AcademicYear: pick(randomYears),
		})
	}
	return in
}

func TestAggregateInvariants(t *testing.T) {
	r := rand.New(rand.NewPCG(42, 7))

	for i := 0; i < 200; i++ {
		in := randomInput(r)
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			res := Aggregate(in)

			totals := map[string]decimal.Decimal{
				"base":        decimal.Zero,
				"discounts":   decimal.Zero,
				"amount":      decimal.Zero,
				"paid":        decimal.Zero,
				"outstanding": decimal.Zero,
			}
			seen := make(map[snowflake.ID]int)

			for _, d := range res.Details {
				totals["base"] = totals["base"].Add(d.BaseFeeAmount)
				totals["discounts"] = totals["discounts"].Add(d.DiscountAmount)
				totals["amount"] = totals["amount"].Add(d.FinalAmount)
				totals["paid"] = totals["paid"].Add(d.PaidAmount)
				totals["outstanding"] = totals["outstanding"].Add(d.OutstandingAmount)

				assert.False(t, d.FinalAmount.IsNegative(), "final below zero")
				assert.True(t, d.FinalAmount.LessThanOrEqual(d.BaseFeeAmount), "final above base")
				assert.False(t, d.OutstandingAmount.IsNegative(), "outstanding below zero")
				assert.True(t, d.PaidAmount.LessThanOrEqual(d.FinalAmount), "paid above final")

				for _, p := range d.Payments {
					seen[p.ID]++
				}
			}
			for _, p := range res.OrphanedPayments {
				seen[p.ID]++
			}

			assert.True(t, totals["base"].Equal(res.TotalBaseFee))
			assert.True(t, totals["discounts"].Equal(res.TotalDiscounts))
			assert.True(t, totals["amount"].Equal(res.TotalAmount))
			assert.True(t, totals["paid"].Equal(res.TotalPaid))
			assert.True(t, totals["outstanding"].Equal(res.TotalOutstanding))

			require.Len(t, seen, len(in.Payments))
			for id, n := range seen {
				assert.Equal(t, 1, n, "payment %d appears %d times", id, n)
			}
		})
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 11))

	for i := 0; i < 50; i++ {
		in := randomInput(r)
		assert.Equal(t, Aggregate(in), Aggregate(in))
	}
}

func TestAggregateZeroConfigurationAllocatesNothing(t *testing.T) {
	res := Aggregate(Input{
		Discounts: []feedomain.StudentDiscount{discountRecord(1, "ALL", feedomain.DiscountTypeFixed, "100", "")},
		Payments: []feedomain.PaymentRecord{
			payment(2, "Tuition Fee", "100", "2024-25"),
			payment(3, "Bus Fee", "50", ""),
		},
	})

	assert.True(t, res.TotalAmount.IsZero())
	assert.True(t, res.TotalPaid.IsZero())
	assert.True(t, res.TotalOutstanding.IsZero())
	assert.Empty(t, res.Details)
	assert.Len(t, res.OrphanedPayments, 2)
}
