package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Settlement string

const (
	SettlementFull    Settlement = "FULL"
	SettlementPartial Settlement = "PARTIAL"
)

// InstallmentOutcome records what one payment did to one installment.
type InstallmentOutcome struct {
	InstallmentID uuid.UUID         `json:"installment_id"`
	Sequence      int               `json:"sequence"`
	Applied       decimal.Decimal   `json:"applied"`
	RemainingDue  decimal.Decimal   `json:"remaining_due"`
	Settlement    Settlement        `json:"settlement"`
	Status        InstallmentStatus `json:"status"`
}

// AllocationResult is returned for every accepted payment. Remainder is the
// part of the payment that no outstanding installment could absorb; the
// caller decides whether to refund or credit it.
type AllocationResult struct {
	LoanID                uuid.UUID            `json:"loan_id"`
	Reference             string               `json:"reference,omitempty"`
	IncomingAmount        decimal.Decimal      `json:"incoming_amount"`
	TotalApplied          decimal.Decimal      `json:"total_applied"`
	Remainder             decimal.Decimal      `json:"remainder"`
	LoanFullyPaid         bool                 `json:"loan_fully_paid"`
	LoanStatus            LoanStatus           `json:"loan_status"`
	LoanPaidAmount        decimal.Decimal      `json:"loan_paid_amount"`
	ProcessedInstallments []InstallmentOutcome `json:"processed_installments"`
}
