package discount

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/stretchr/testify/assert"
)

func newDiscount(id int64, component string, kind feedomain.DiscountType, value int64, year string, active bool) feedomain.StudentDiscount {
	return feedomain.StudentDiscount{
		ID:            snowflake.ID(id),
		StudentID:     snowflake.ID(1),
		FeeComponent:  component,
		DiscountType:  kind,
		DiscountValue: decimal.NewFromInt(value),
		AcademicYear:  year,
		IsActive:      active,
	}
}

func TestResolveFiltersDiscounts(t *testing.T) {
	discounts := []feedomain.StudentDiscount{
		newDiscount(1, "Tuition Fee", feedomain.DiscountTypeFixed, 100, "2024-25", true),
		newDiscount(2, "ALL", feedomain.DiscountTypePercentage, 10, "", true),
		newDiscount(3, "", feedomain.DiscountTypeFixed, 50, "2024-2025", true),
		newDiscount(4, "Tuition Fee", feedomain.DiscountTypeFixed, 75, "2023-24", true),
		newDiscount(5, "Bus Fee", feedomain.DiscountTypeFixed, 20, "2024-25", true),
		newDiscount(6, "Tuition Fee", feedomain.DiscountTypeFixed, 999, "2024-25", false),
	}

	res := Resolve("Tuition Fee", "2024-2025", discounts)

	ids := make([]snowflake.ID, 0, len(res.Discounts))
	for _, d := range res.Discounts {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []snowflake.ID{1, 2, 3}, ids)
}

func TestResolveEmptyYearGroupOnlyTakesYearlessDiscounts(t *testing.T) {
	discounts := []feedomain.StudentDiscount{
		newDiscount(1, "ALL", feedomain.DiscountTypeFixed, 10, "", true),
		newDiscount(2, "ALL", feedomain.DiscountTypeFixed, 10, "2024-25", true),
	}

	res := Resolve("Tuition Fee", "", discounts)
	assert.Len(t, res.Discounts, 1)
	assert.Equal(t, snowflake.ID(1), res.Discounts[0].ID)
}

func TestContribution(t *testing.T) {
	base := decimal.NewFromInt(1000)

	cases := []struct {
		name string
		d    feedomain.StudentDiscount
		base decimal.Decimal
		want string
	}{
		{name: "percentage", d: newDiscount(1, "ALL", feedomain.DiscountTypePercentage, 10, "", true), base: base, want: "100"},
		{name: "fixed", d: newDiscount(1, "ALL", feedomain.DiscountTypeFixed, 150, "", true), base: base, want: "150"},
		{name: "fixed_amount", d: newDiscount(1, "ALL", feedomain.DiscountTypeFixedAmount, 150, "", true), base: base, want: "150"},
		{name: "fixed capped at base", d: newDiscount(1, "ALL", feedomain.DiscountTypeFixed, 5000, "", true), base: base, want: "1000"},
		{name: "zero base", d: newDiscount(1, "ALL", feedomain.DiscountTypeFixed, 100, "", true), base: decimal.Zero, want: "0"},
		{name: "negative value ignored", d: newDiscount(1, "ALL", feedomain.DiscountTypeFixed, -100, "", true), base: base, want: "0"},
		{name: "unknown type ignored", d: newDiscount(1, "ALL", feedomain.DiscountType("bogus"), 100, "", true), base: base, want: "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Contribution(tc.d, tc.base)
			assert.True(t, decimal.RequireFromString(tc.want).Equal(got), "got %s", got)
		})
	}
}

func TestContributionRoundsPercentageToCents(t *testing.T) {
	d := newDiscount(1, "ALL", feedomain.DiscountTypePercentage, 0, "", true)
	d.DiscountValue = decimal.RequireFromString("33.333")

	got := Contribution(d, decimal.NewFromInt(100))
	assert.Equal(t, "33.33", got.StringFixed(2))
}

func TestAmountStacksAdditively(t *testing.T) {
	res := Resolution{Discounts: []feedomain.StudentDiscount{
		newDiscount(1, "ALL", feedomain.DiscountTypePercentage, 60, "", true),
		newDiscount(2, "ALL", feedomain.DiscountTypeFixed, 600, "", true),
	}}

	// Each discount is capped on its own, so the sum may exceed the base.
	got := res.Amount(decimal.NewFromInt(1000))
	assert.True(t, decimal.NewFromInt(1200).Equal(got), "got %s", got)
}
