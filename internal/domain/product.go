package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanProduct is a template an application can reference instead of
// spelling out rate and term itself.
type LoanProduct struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	Description  string          `json:"description" db:"description"`
	InterestRate decimal.Decimal `json:"interest_rate" db:"interest_rate"`
	MinAmount    decimal.Decimal `json:"min_amount" db:"min_amount"`
	MaxAmount    decimal.Decimal `json:"max_amount" db:"max_amount"`
	TermMonths   int             `json:"term_months" db:"term_months"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// Accepts reports whether amount is inside the product's [min, max] range.
// A zero max means no upper bound.
func (p *LoanProduct) Accepts(amount decimal.Decimal) bool {
	if amount.LessThan(p.MinAmount) {
		return false
	}
	if p.MaxAmount.IsPositive() && amount.GreaterThan(p.MaxAmount) {
		return false
	}
	return true
}

type CreateProductRequest struct {
	Name         string          `json:"name" validate:"required,max=128"`
	Description  string          `json:"description" validate:"max=1024"`
	InterestRate decimal.Decimal `json:"interest_rate" validate:"decimal_gte=0"`
	MinAmount    decimal.Decimal `json:"min_amount" validate:"decimal_gte=0"`
	MaxAmount    decimal.Decimal `json:"max_amount" validate:"decimal_gte=0"`
	TermMonths   int             `json:"term_months" validate:"required,gt=0"`
}
