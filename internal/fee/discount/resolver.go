package discount

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/feeledger/internal/fee/academicyear"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
)

var hundred = decimal.NewFromInt(100)

// Resolution holds the discounts that apply to one fee group.
type Resolution struct {
	Discounts []feedomain.StudentDiscount
}

// Resolve selects the active discounts for component in academicYear.
// A discount applies when it targets the component or all components, and
// when its academic year matches or is unset.
func Resolve(component, academicYear string, discounts []feedomain.StudentDiscount) Resolution {
	year := academicyear.Normalize(academicYear)

	matched := make([]feedomain.StudentDiscount, 0)
	for _, d := range discounts {
		if !d.IsActive {
			continue
		}
		if !d.AppliesToAllComponents() && strings.TrimSpace(d.FeeComponent) != component {
			continue
		}
		discountYear := academicyear.Normalize(d.AcademicYear)
		if discountYear != "" && discountYear != year {
			continue
		}
		matched = append(matched, d)
	}
	return Resolution{Discounts: matched}
}

// Amount sums the contribution of every resolved discount against base.
// Discounts stack additively and each one is capped at base on its own.
func (r Resolution) Amount(base decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, d := range r.Discounts {
		total = total.Add(Contribution(d, base))
	}
	return total
}

// Contribution returns what a single discount takes off base.
func Contribution(d feedomain.StudentDiscount, base decimal.Decimal) decimal.Decimal {
	if !base.IsPositive() || !d.DiscountValue.IsPositive() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch d.DiscountType {
	case feedomain.DiscountTypePercentage:
		amount = base.Mul(d.DiscountValue).Div(hundred).Round(2)
	case feedomain.DiscountTypeFixed, feedomain.DiscountTypeFixedAmount:
		amount = d.DiscountValue
	default:
		return decimal.Zero
	}

	return decimal.Min(amount, base)
}
