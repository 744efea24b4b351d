package engine

import (
	"time"

	"github.com/segyhp/agriloan-engine/internal/domain"
	customError "github.com/segyhp/agriloan-engine/pkg/errors"
)

// allowed loan transitions; PAID and REJECTED have none
var transitions = map[domain.LoanStatus][]domain.LoanStatus{
	domain.LoanStatusPending:  {domain.LoanStatusApproved, domain.LoanStatusRejected},
	domain.LoanStatusApproved: {domain.LoanStatusPaid},
}

// DeriveInstallmentStatus is PAID if the installment was settled in full,
// otherwise NOT_PAID with Amount holding what is still due.
func DeriveInstallmentStatus(inst domain.Installment) domain.InstallmentStatus {
	if inst.Status == domain.InstallmentStatusPaid {
		return domain.InstallmentStatusPaid
	}
	return domain.InstallmentStatusNotPaid
}

// AllInstallmentsPaid reports whether every installment is settled.
// A loan without installments is never considered paid.
func AllInstallmentsPaid(installments []domain.Installment) bool {
	if len(installments) == 0 {
		return false
	}
	for _, inst := range installments {
		if DeriveInstallmentStatus(inst) != domain.InstallmentStatusPaid {
			return false
		}
	}
	return true
}

// CanTransition reports whether a loan may move from one status to another.
func CanTransition(from, to domain.LoanStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionLoan moves the loan to status `to`, or returns an
// IllegalStatusTransition error and leaves the loan unchanged.
func TransitionLoan(loan *domain.Loan, to domain.LoanStatus, now time.Time) error {
	if !CanTransition(loan.Status, to) {
		return customError.WrapIllegalStatusTransition(string(loan.Status), string(to))
	}
	if to == domain.LoanStatusPaid && !AllInstallmentsPaid(loan.Installments) {
		return customError.WrapIllegalStatusTransition(string(loan.Status), string(to))
	}

	loan.Status = to
	loan.UpdatedAt = now
	return nil
}

// DisplayStatus labels an installment for payment history as of a moment in time.
func DisplayStatus(inst domain.Installment, asOf time.Time) string {
	switch {
	case inst.IsPaid():
		return domain.DisplayStatusPaid
	case inst.DueDate.Before(asOf):
		return domain.DisplayStatusOverdue
	default:
		return domain.DisplayStatusUpcoming
	}
}
