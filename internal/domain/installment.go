package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InstallmentStatus string

const (
	InstallmentStatusNotPaid InstallmentStatus = "NOT_PAID"
	InstallmentStatusPaid    InstallmentStatus = "PAID"
)

// Installment is one scheduled repayment. Amount shrinks in place on partial
// settlement; OriginalAmount keeps what was scheduled.
type Installment struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	LoanID         uuid.UUID         `json:"loan_id" db:"loan_id"`
	Sequence       int               `json:"sequence" db:"sequence"`
	Amount         decimal.Decimal   `json:"amount" db:"amount"`
	OriginalAmount decimal.Decimal   `json:"original_amount" db:"original_amount"`
	DueDate        time.Time         `json:"due_date" db:"due_date"`
	PaidAt         *time.Time        `json:"paid_at,omitempty" db:"paid_at"`
	Status         InstallmentStatus `json:"status" db:"status"`
}

// IsPaid reports whether the installment was settled in full.
func (i Installment) IsPaid() bool {
	return i.Status == InstallmentStatusPaid
}

type InstallmentsResponse struct {
	BorrowerID   uuid.UUID     `json:"borrower_id"`
	Installments []Installment `json:"installments"`
}
