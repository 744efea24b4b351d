// Package amortization computes fixed-installment (annuity) repayment figures.
// All functions are pure and safe for concurrent use.
package amortization

import (
	"time"

	customError "github.com/segyhp/agriloan-engine/pkg/errors"

	"github.com/shopspring/decimal"
)

// Term units accepted by TermInMonths.
const (
	UnitMonths = "MONTHS"
	UnitYears  = "YEARS"
)

// intermediate rounding for rate and compounding factors
const workingPrecision = 32

var (
	one          = decimal.NewFromInt(1)
	monthsInYear = decimal.NewFromInt(12)
	hundred      = decimal.NewFromInt(100)
)

// Quote summarizes the cost of a loan with fixed monthly installments.
type Quote struct {
	MonthlyPayment decimal.Decimal
	TotalPayment   decimal.Decimal
	TotalInterest  decimal.Decimal
	TermMonths     int
}

// Rounded returns the quote rounded to currency granularity for display.
func (q Quote) Rounded() Quote {
	return Quote{
		MonthlyPayment: q.MonthlyPayment.Round(2),
		TotalPayment:   q.TotalPayment.Round(2),
		TotalInterest:  q.TotalInterest.Round(2),
		TermMonths:     q.TermMonths,
	}
}

// MonthlyPayment calculates the fixed monthly installment.
// Formula: P * r * (1+r)^n / ((1+r)^n - 1), with r = annualRatePercent / 12 / 100.
// A zero rate falls back to the straight-line P / n. The result is not rounded.
func MonthlyPayment(principal, annualRatePercent decimal.Decimal, termMonths int) (decimal.Decimal, error) {
	if termMonths <= 0 {
		return decimal.Zero, customError.WrapInvalidTerm("term must be at least one month")
	}
	if principal.IsNegative() {
		return decimal.Zero, customError.WrapInvalidAmount("principal must not be negative")
	}
	if annualRatePercent.IsNegative() {
		return decimal.Zero, customError.WrapInvalidAmount("interest rate must not be negative")
	}

	n := decimal.NewFromInt(int64(termMonths))
	if annualRatePercent.IsZero() {
		return principal.Div(n), nil
	}

	monthlyRate := annualRatePercent.DivRound(monthsInYear, workingPrecision).DivRound(hundred, workingPrecision)
	factor := compound(one.Add(monthlyRate), termMonths)

	return principal.Mul(monthlyRate).Mul(factor).Div(factor.Sub(one)), nil
}

// TermInMonths normalizes a term expressed in months or years to months.
func TermInMonths(term int, unit string) (int, error) {
	if term <= 0 {
		return 0, customError.WrapInvalidTerm("term must be positive")
	}
	switch unit {
	case UnitMonths, "":
		return term, nil
	case UnitYears:
		return term * 12, nil
	default:
		return 0, customError.WrapInvalidTerm("unknown term unit " + unit)
	}
}

// DueDate returns the due date of the installment at the given 0-based index.
// The first installment falls one month after origination and each later one
// a month after the first. A day past the end of the target month is clamped
// to its last day, so originating on Jan 31 gives Feb 28, Mar 28, Apr 28.
func DueDate(originatedAt time.Time, index int) time.Time {
	first := addMonths(originatedAt, 1)
	return addMonths(first, index)
}

// addMonths moves t by n calendar months without rolling over into the
// following month.
func addMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	target := time.Date(year, month+time.Month(n), 1, hour, minute, sec, t.Nanosecond(), t.Location())
	if last := daysIn(target.Year(), target.Month(), t.Location()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// NewQuote prices a loan: monthly payment, total payable and total interest.
func NewQuote(principal, annualRatePercent decimal.Decimal, termMonths int) (Quote, error) {
	payment, err := MonthlyPayment(principal, annualRatePercent, termMonths)
	if err != nil {
		return Quote{}, err
	}

	total := payment.Mul(decimal.NewFromInt(int64(termMonths)))
	return Quote{
		MonthlyPayment: payment,
		TotalPayment:   total,
		TotalInterest:  total.Sub(principal),
		TermMonths:     termMonths,
	}, nil
}

// compound raises base to a non-negative integer power by repeated squaring.
func compound(base decimal.Decimal, exp int) decimal.Decimal {
	result := one
	for exp > 0 {
		if exp&1 == 1 {
			result = result.Mul(base).Round(workingPrecision)
		}
		base = base.Mul(base).Round(workingPrecision)
		exp >>= 1
	}
	return result
}
