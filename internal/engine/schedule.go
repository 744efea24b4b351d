// Package engine holds the loan core: schedule generation, payment
// allocation, status rules and analytics. It performs no I/O; callers load
// and persist the Loan aggregate around it.
package engine

import (
	"time"

	"github.com/segyhp/agriloan-engine/internal/domain"
	"github.com/segyhp/agriloan-engine/pkg/amortization"
	customError "github.com/segyhp/agriloan-engine/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GenerateSchedule builds the flat repayment schedule for a loan: one
// NOT_PAID installment per month, all carrying the same fixed payment.
func GenerateSchedule(loanID uuid.UUID, terms domain.LoanTerms) ([]domain.Installment, error) {
	if err := validateTerms(terms); err != nil {
		return nil, err
	}

	termMonths, err := amortization.TermInMonths(terms.Term, string(terms.TermUnit))
	if err != nil {
		return nil, err
	}

	payment, err := amortization.MonthlyPayment(terms.Principal, terms.AnnualRate, termMonths)
	if err != nil {
		return nil, err
	}

	installments := make([]domain.Installment, 0, termMonths)
	for i := 0; i < termMonths; i++ {
		installments = append(installments, domain.Installment{
			ID:             uuid.New(),
			LoanID:         loanID,
			Sequence:       i,
			Amount:         payment,
			OriginalAmount: payment,
			DueDate:        amortization.DueDate(terms.OriginatedAt, i),
			Status:         domain.InstallmentStatusNotPaid,
		})
	}

	return installments, nil
}

// NewLoan originates a PENDING loan together with its schedule. Nothing is
// returned when the terms are invalid. A zero OriginatedAt is set to now.
func NewLoan(borrowerID uuid.UUID, terms domain.LoanTerms, now time.Time) (*domain.Loan, error) {
	if terms.OriginatedAt.IsZero() {
		terms.OriginatedAt = now
	}
	if terms.TermUnit == "" {
		terms.TermUnit = domain.TermUnitMonths
	}

	loanID := uuid.New()
	installments, err := GenerateSchedule(loanID, terms)
	if err != nil {
		return nil, err
	}

	return &domain.Loan{
		ID:           loanID,
		BorrowerID:   borrowerID,
		Terms:        terms,
		Status:       domain.LoanStatusPending,
		PaidAmount:   decimal.Zero,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
		Installments: installments,
	}, nil
}

func validateTerms(terms domain.LoanTerms) error {
	if !terms.Principal.IsPositive() {
		return customError.WrapInvalidAmount("principal must be positive")
	}
	if terms.AnnualRate.IsNegative() {
		return customError.WrapInvalidAmount("interest rate must not be negative")
	}
	if terms.Term <= 0 {
		return customError.WrapInvalidTerm("term must be positive")
	}
	return nil
}
