// Package penalty derives a bill's status and late fee from the calendar date.
// Evaluate is pure: it performs no I/O and only depends on its arguments.
package penalty

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/societybill/internal/bill/domain"
	ruledomain "github.com/smallbiznis/societybill/internal/maintenancerule/domain"
)

var hundred = decimal.NewFromInt(100)

// Evaluate returns bill as it stands on asOf. Only the calendar day of asOf matters.
// Paid bills are returned untouched.
func Evaluate(bill domain.Bill, asOf time.Time) domain.Bill {
	if bill.IsPaid() {
		return bill
	}

	today := domain.CalendarDate(asOf)
	due := domain.CalendarDate(bill.DueDate)
	amount := bill.Amount.Round(2)

	out := bill
	out.Amount = amount
	if !today.After(due) {
		out.Status = domain.StatusPending
		out.LateFeeApplied = decimal.Zero
		out.TotalAmount = amount
		return out
	}

	out.Status = domain.StatusOverdue
	out.LateFeeApplied = LateFee(bill, max(domain.DaysBetween(due, today), 1))
	out.TotalAmount = amount.Add(out.LateFeeApplied).Round(2)
	return out
}

// LateFee computes the fee for a bill that is daysLate days past due. Penalty terms are
// the values copied onto the bill from its rule at generation; later rule edits do not apply.
func LateFee(bill domain.Bill, daysLate int) decimal.Decimal {
	if !bill.PenaltyEnabled || daysLate < 1 {
		return decimal.Zero
	}

	value := bill.PenaltyValue
	if value.IsNegative() {
		return decimal.Zero
	}

	switch bill.PenaltyType {
	case ruledomain.PenaltyTypePercentage:
		return bill.Amount.Mul(value).Div(hundred).Round(2)
	case ruledomain.PenaltyTypeFixed:
		return value.Round(2)
	case ruledomain.PenaltyTypeDaily:
		return value.Mul(decimal.NewFromInt(int64(daysLate))).Round(2)
	default:
		return decimal.Zero
	}
}

// Changed reports whether evaluation moved any derived field.
func Changed(before, after domain.Bill) bool {
	return before.Status != after.Status ||
		!before.LateFeeApplied.Equal(after.LateFeeApplied) ||
		!before.TotalAmount.Equal(after.TotalAmount)
}
