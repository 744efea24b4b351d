package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Display labels for installments in payment history.
const (
	DisplayStatusPaid     = "Paid"
	DisplayStatusOverdue  = "Overdue"
	DisplayStatusUpcoming = "Upcoming"
)

type NextPayment struct {
	LoanID        uuid.UUID       `json:"loan_id"`
	InstallmentID uuid.UUID       `json:"installment_id"`
	DueDate       time.Time       `json:"due_date"`
	Amount        decimal.Decimal `json:"amount"`
}

type LoanBreakdown struct {
	LoanID          uuid.UUID       `json:"loan_id"`
	Type            string          `json:"type"`
	Principal       decimal.Decimal `json:"principal"`
	Interest        decimal.Decimal `json:"interest"`
	Status          LoanStatus      `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	RepaidAmount    decimal.Decimal `json:"repaid_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
}

type PaymentHistoryEntry struct {
	InstallmentID uuid.UUID       `json:"installment_id"`
	LoanID        uuid.UUID       `json:"loan_id"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	Status        string          `json:"status"`
}

// BorrowerAnalytics is recomputed from the ledger on every request.
type BorrowerAnalytics struct {
	TotalLoans          int                   `json:"total_loans"`
	ActiveLoans         int                   `json:"active_loans"`
	TotalAmountBorrowed decimal.Decimal       `json:"total_amount_borrowed"`
	TotalAmountRepaid   decimal.Decimal       `json:"total_amount_repaid"`
	TotalInterestPaid   decimal.Decimal       `json:"total_interest_paid"`
	OutstandingBalance  decimal.Decimal       `json:"outstanding_balance"`
	RepaymentProgress   decimal.Decimal       `json:"repayment_progress"`
	NextPaymentDue      *NextPayment          `json:"next_payment_due"`
	LoanBreakdown       []LoanBreakdown       `json:"loan_breakdown"`
	PaymentHistory      []PaymentHistoryEntry `json:"payment_history"`
}

type StatusDistribution struct {
	Status LoanStatus      `json:"status"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// PortfolioAnalytics adds admin-only counts on top of the borrower view.
type PortfolioAnalytics struct {
	BorrowerAnalytics
	TotalBorrowers     int                  `json:"total_borrowers"`
	PendingLoans       int                  `json:"pending_loans"`
	ApprovedLoans      int                  `json:"approved_loans"`
	RejectedLoans      int                  `json:"rejected_loans"`
	PaidLoans          int                  `json:"paid_loans"`
	StatusDistribution []StatusDistribution `json:"status_distribution"`
}

type QuoteResponse struct {
	Principal      decimal.Decimal `json:"principal"`
	InterestRate   decimal.Decimal `json:"interest_rate"`
	TermMonths     int             `json:"term_months"`
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
	TotalPayment   decimal.Decimal `json:"total_payment"`
	TotalInterest  decimal.Decimal `json:"total_interest"`
}
