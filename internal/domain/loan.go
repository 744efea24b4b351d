package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanStatusPending  LoanStatus = "PENDING"
	LoanStatusApproved LoanStatus = "APPROVED"
	LoanStatusRejected LoanStatus = "REJECTED"
	LoanStatusPaid     LoanStatus = "PAID"
)

// ParseLoanStatus accepts any casing of a known status.
func ParseLoanStatus(s string) (LoanStatus, bool) {
	switch status := LoanStatus(strings.ToUpper(strings.TrimSpace(s))); status {
	case LoanStatusPending, LoanStatusApproved, LoanStatusRejected, LoanStatusPaid:
		return status, true
	}
	return "", false
}

type TermUnit string

const (
	TermUnitMonths TermUnit = "MONTHS"
	TermUnitYears  TermUnit = "YEARS"
)

// LoanTerms is fixed at origination and never changes afterwards.
type LoanTerms struct {
	Principal    decimal.Decimal `json:"principal"`
	AnnualRate   decimal.Decimal `json:"annual_rate"` // percent, e.g. 5.0 for 5%
	Term         int             `json:"term"`
	TermUnit     TermUnit        `json:"term_unit"`
	Type         string          `json:"type"`
	Purpose      string          `json:"purpose"`
	OriginatedAt time.Time       `json:"originated_at"`
}

// Loan is the aggregate root: the loan row plus its owned, ordered installments.
type Loan struct {
	ID            uuid.UUID       `json:"id"`
	BorrowerID    uuid.UUID       `json:"borrower_id"`
	BorrowerEmail string          `json:"borrower_email,omitempty"`
	ProductID     *uuid.UUID      `json:"product_id,omitempty"`
	Terms         LoanTerms       `json:"terms"`
	Status        LoanStatus      `json:"status"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Installments  []Installment   `json:"installments"`
}

// ScheduledTotal is the sum of the original installment amounts.
func (l *Loan) ScheduledTotal() decimal.Decimal {
	total := decimal.Zero
	for _, inst := range l.Installments {
		total = total.Add(inst.OriginalAmount)
	}
	return total
}

// OutstandingTotal is the sum of what is still due on unpaid installments.
func (l *Loan) OutstandingTotal() decimal.Decimal {
	total := decimal.Zero
	for _, inst := range l.Installments {
		if inst.Status != InstallmentStatusPaid {
			total = total.Add(inst.Amount)
		}
	}
	return total
}

// Clone returns a deep copy so callers can mutate it without touching the original.
func (l *Loan) Clone() *Loan {
	c := *l
	if l.ProductID != nil {
		id := *l.ProductID
		c.ProductID = &id
	}
	c.Installments = make([]Installment, len(l.Installments))
	for i, inst := range l.Installments {
		c.Installments[i] = inst
		if inst.PaidAt != nil {
			paid := *inst.PaidAt
			c.Installments[i].PaidAt = &paid
		}
	}
	return &c
}

// LoanFilter narrows admin loan listings. Zero values mean "no filter".
type LoanFilter struct {
	Status    LoanStatus
	Type      string
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	Page      int
	Limit     int
}

// DTOs for requests and responses

type ApplyLoanRequest struct {
	BorrowerID    uuid.UUID       `json:"borrower_id" validate:"required"`
	BorrowerEmail string          `json:"borrower_email" validate:"omitempty,email"`
	ProductID     *uuid.UUID      `json:"product_id"`
	Amount        decimal.Decimal `json:"amount" validate:"decimal_gt=0"`
	InterestRate  decimal.Decimal `json:"interest_rate" validate:"decimal_gte=0"`
	Term          int             `json:"term" validate:"gte=0"`
	TermUnit      TermUnit        `json:"term_unit" validate:"omitempty,oneof=MONTHS YEARS"`
	Type          string          `json:"type" validate:"max=64"`
	Purpose       string          `json:"purpose" validate:"max=512"`
}

type UpdateStatusRequest struct {
	Status LoanStatus `json:"status" validate:"required,oneof=APPROVED REJECTED"`
}

type MakePaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"decimal_gt=0"`
	Reference string          `json:"reference" validate:"omitempty,max=128"`
}

type LoanListResponse struct {
	Loans []*Loan `json:"loans"`
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
}
