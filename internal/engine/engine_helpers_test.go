package engine

import (
	"time"

	"github.com/segyhp/agriloan-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var origination = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// loanWith builds a loan whose installments fall due one month apart.
func loanWith(status domain.LoanStatus, amounts ...string) *domain.Loan {
	loan := &domain.Loan{
		ID:         uuid.New(),
		BorrowerID: uuid.New(),
		Terms: domain.LoanTerms{
			Principal:    decimal.Zero,
			AnnualRate:   decimal.Zero,
			Term:         len(amounts),
			TermUnit:     domain.TermUnitMonths,
			OriginatedAt: origination,
		},
		Status:     status,
		PaidAmount: decimal.Zero,
		Version:    1,
		CreatedAt:  origination,
		UpdatedAt:  origination,
	}

	for i, a := range amounts {
		loan.Terms.Principal = loan.Terms.Principal.Add(dec(a))
		loan.Installments = append(loan.Installments, domain.Installment{
			ID:             uuid.New(),
			LoanID:         loan.ID,
			Sequence:       i,
			Amount:         dec(a),
			OriginalAmount: dec(a),
			DueDate:        origination.AddDate(0, i+1, 0),
			Status:         domain.InstallmentStatusNotPaid,
		})
	}
	return loan
}
