package engine

import (
	"sort"
	"time"

	"github.com/segyhp/agriloan-engine/internal/domain"
	customError "github.com/segyhp/agriloan-engine/pkg/errors"

	"github.com/shopspring/decimal"
)

// ApplyPayment allocates amount across the loan's outstanding installments,
// earliest due first, and mutates the loan in place.
//
// Each installment is either settled in full or, for the last one the money
// reaches, reduced by what is left. A payment never partially covers two
// installments. Anything left once every installment is settled comes back
// as Remainder. All preconditions are checked before the loan is touched.
//
// ApplyPayment is not idempotent; callers must serialize calls per loan.
func ApplyPayment(loan *domain.Loan, amount decimal.Decimal, now time.Time) (*domain.AllocationResult, error) {
	if !amount.IsPositive() {
		return nil, customError.WrapInvalidAmount("payment amount must be positive")
	}

	loanID := loan.ID.String()
	switch loan.Status {
	case domain.LoanStatusApproved:
	case domain.LoanStatusPaid:
		return nil, customError.WrapNoOutstandingInstallments(loanID)
	default:
		return nil, customError.WrapLoanNotApproved(loanID, string(loan.Status))
	}

	outstanding := outstandingIndexes(loan.Installments)
	if len(outstanding) == 0 {
		return nil, customError.WrapNoOutstandingInstallments(loanID)
	}

	remaining := amount
	outcomes := make([]domain.InstallmentOutcome, 0, len(outstanding))

	for _, idx := range outstanding {
		if !remaining.IsPositive() {
			break
		}

		inst := &loan.Installments[idx]
		if remaining.GreaterThanOrEqual(inst.Amount) {
			applied := inst.Amount
			paidAt := now
			inst.Status = domain.InstallmentStatusPaid
			inst.PaidAt = &paidAt
			remaining = remaining.Sub(applied)

			outcomes = append(outcomes, domain.InstallmentOutcome{
				InstallmentID: inst.ID,
				Sequence:      inst.Sequence,
				Applied:       applied,
				RemainingDue:  decimal.Zero,
				Settlement:    domain.SettlementFull,
				Status:        inst.Status,
			})
			continue
		}

		inst.Amount = inst.Amount.Sub(remaining)
		outcomes = append(outcomes, domain.InstallmentOutcome{
			InstallmentID: inst.ID,
			Sequence:      inst.Sequence,
			Applied:       remaining,
			RemainingDue:  inst.Amount,
			Settlement:    domain.SettlementPartial,
			Status:        inst.Status,
		})
		remaining = decimal.Zero
		break
	}

	totalApplied := amount.Sub(remaining)
	loan.PaidAmount = loan.PaidAmount.Add(totalApplied)
	loan.UpdatedAt = now

	fullyPaid := AllInstallmentsPaid(loan.Installments)
	if fullyPaid {
		if err := TransitionLoan(loan, domain.LoanStatusPaid, now); err != nil {
			return nil, err
		}
	}

	return &domain.AllocationResult{
		LoanID:                loan.ID,
		IncomingAmount:        amount,
		TotalApplied:          totalApplied,
		Remainder:             remaining,
		LoanFullyPaid:         fullyPaid,
		LoanStatus:            loan.Status,
		LoanPaidAmount:        loan.PaidAmount,
		ProcessedInstallments: outcomes,
	}, nil
}

// outstandingIndexes returns the positions of unpaid installments ordered by
// due date, ties broken by sequence.
func outstandingIndexes(installments []domain.Installment) []int {
	idx := make([]int, 0, len(installments))
	for i, inst := range installments {
		if DeriveInstallmentStatus(inst) != domain.InstallmentStatusPaid {
			idx = append(idx, i)
		}
	}

	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := installments[idx[a]], installments[idx[b]]
		if !ia.DueDate.Equal(ib.DueDate) {
			return ia.DueDate.Before(ib.DueDate)
		}
		return ia.Sequence < ib.Sequence
	})
	return idx
}
