package engine

import (
	"sort"
	"time"

	"github.com/segyhp/agriloan-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultHistoryLimit is how many payment history entries analytics return.
const DefaultHistoryLimit = 10

var hundred = decimal.NewFromInt(100)

// portfolio status order for the distribution table
var statusOrder = []domain.LoanStatus{
	domain.LoanStatusPending,
	domain.LoanStatusApproved,
	domain.LoanStatusRejected,
	domain.LoanStatusPaid,
}

// Aggregator computes read-side summaries over a set of loans. It holds no
// state between calls and is safe for concurrent use.
type Aggregator struct {
	historyLimit int
}

func NewAggregator(historyLimit int) *Aggregator {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Aggregator{historyLimit: historyLimit}
}

// BorrowerAnalytics summarizes one borrower's loans. asOf decides which
// unpaid installments are labelled overdue in the payment history.
func (a *Aggregator) BorrowerAnalytics(loans []*domain.Loan, asOf time.Time) *domain.BorrowerAnalytics {
	t := a.accumulate(loans, asOf)
	return t.borrowerView()
}

// PortfolioAnalytics summarizes every loan in the book for admin views.
func (a *Aggregator) PortfolioAnalytics(loans []*domain.Loan, asOf time.Time) *domain.PortfolioAnalytics {
	t := a.accumulate(loans, asOf)

	distribution := make([]domain.StatusDistribution, 0, len(statusOrder))
	for _, status := range statusOrder {
		distribution = append(distribution, domain.StatusDistribution{
			Status: status,
			Count:  t.statusCount[status],
			Amount: t.statusAmount[status],
		})
	}

	return &domain.PortfolioAnalytics{
		BorrowerAnalytics:  *t.borrowerView(),
		TotalBorrowers:     len(t.borrowers),
		PendingLoans:       t.statusCount[domain.LoanStatusPending],
		ApprovedLoans:      t.statusCount[domain.LoanStatusApproved],
		RejectedLoans:      t.statusCount[domain.LoanStatusRejected],
		PaidLoans:          t.statusCount[domain.LoanStatusPaid],
		StatusDistribution: distribution,
	}
}

type nextDue struct {
	loanIdx int
	inst    domain.Installment
}

type historyItem struct {
	entry    domain.PaymentHistoryEntry
	sortDate time.Time
}

// tally holds the running totals of one pass over the ledger.
type tally struct {
	historyLimit int

	totalLoans   int
	activeLoans  int
	borrowed     decimal.Decimal
	repaid       decimal.Decimal
	interestPaid decimal.Decimal
	next         *nextDue
	breakdown    []domain.LoanBreakdown
	history      []historyItem
	borrowers    map[uuid.UUID]struct{}
	statusCount  map[domain.LoanStatus]int
	statusAmount map[domain.LoanStatus]decimal.Decimal
}

func (a *Aggregator) accumulate(loans []*domain.Loan, asOf time.Time) *tally {
	t := &tally{
		historyLimit: a.historyLimit,
		borrowed:     decimal.Zero,
		repaid:       decimal.Zero,
		interestPaid: decimal.Zero,
		breakdown:    make([]domain.LoanBreakdown, 0, len(loans)),
		borrowers:    make(map[uuid.UUID]struct{}),
		statusCount:  make(map[domain.LoanStatus]int),
		statusAmount: make(map[domain.LoanStatus]decimal.Decimal),
	}
	for _, status := range statusOrder {
		t.statusAmount[status] = decimal.Zero
	}

	for i, loan := range loans {
		t.addLoan(i, loan, asOf)
	}
	return t
}

func (t *tally) addLoan(loanIdx int, loan *domain.Loan, asOf time.Time) {
	principal := loan.Terms.Principal

	t.totalLoans++
	if loan.Status == domain.LoanStatusApproved {
		t.activeLoans++
	}
	t.borrowed = t.borrowed.Add(principal)
	t.borrowers[loan.BorrowerID] = struct{}{}
	t.statusCount[loan.Status]++
	t.statusAmount[loan.Status] = t.statusAmount[loan.Status].Add(principal)

	repaid := decimal.Zero
	remaining := decimal.Zero
	for _, inst := range loan.Installments {
		if inst.IsPaid() {
			repaid = repaid.Add(inst.OriginalAmount)
		} else {
			remaining = remaining.Add(inst.Amount)
			t.offerNextDue(loanIdx, inst)
		}
		t.history = append(t.history, newHistoryItem(loan.ID, inst, asOf))
	}

	t.repaid = t.repaid.Add(repaid)
	t.interestPaid = t.interestPaid.Add(decimal.Max(decimal.Zero, repaid.Sub(principal)))

	interest := decimal.Zero
	if len(loan.Installments) > 0 {
		interest = loan.ScheduledTotal().Sub(principal)
	}

	t.breakdown = append(t.breakdown, domain.LoanBreakdown{
		LoanID:          loan.ID,
		Type:            loan.Terms.Type,
		Principal:       principal,
		Interest:        interest,
		Status:          loan.Status,
		CreatedAt:       loan.CreatedAt,
		RepaidAmount:    repaid,
		RemainingAmount: remaining,
	})
}

// offerNextDue keeps the globally earliest unpaid installment, ties going to
// the earlier loan and then the lower sequence.
func (t *tally) offerNextDue(loanIdx int, inst domain.Installment) {
	if t.next == nil {
		t.next = &nextDue{loanIdx: loanIdx, inst: inst}
		return
	}

	best := t.next
	switch {
	case inst.DueDate.Before(best.inst.DueDate):
	case inst.DueDate.Equal(best.inst.DueDate) &&
		(loanIdx < best.loanIdx || (loanIdx == best.loanIdx && inst.Sequence < best.inst.Sequence)):
	default:
		return
	}
	t.next = &nextDue{loanIdx: loanIdx, inst: inst}
}

func newHistoryItem(loanID uuid.UUID, inst domain.Installment, asOf time.Time) historyItem {
	entry := domain.PaymentHistoryEntry{
		InstallmentID: inst.ID,
		LoanID:        loanID,
		Amount:        inst.Amount,
		Status:        DisplayStatus(inst, asOf),
	}

	var sortDate time.Time
	if !inst.DueDate.IsZero() {
		due := inst.DueDate
		entry.DueDate = &due
		sortDate = due
	}
	if inst.PaidAt != nil {
		paid := *inst.PaidAt
		entry.PaidAt = &paid
		sortDate = paid
	}

	return historyItem{entry: entry, sortDate: sortDate}
}

func (t *tally) borrowerView() *domain.BorrowerAnalytics {
	progress := decimal.Zero
	if t.borrowed.IsPositive() {
		progress = t.repaid.Div(t.borrowed).Mul(hundred)
	}

	var next *domain.NextPayment
	if t.next != nil {
		next = &domain.NextPayment{
			LoanID:        t.next.inst.LoanID,
			InstallmentID: t.next.inst.ID,
			DueDate:       t.next.inst.DueDate,
			Amount:        t.next.inst.Amount,
		}
	}

	return &domain.BorrowerAnalytics{
		TotalLoans:          t.totalLoans,
		ActiveLoans:         t.activeLoans,
		TotalAmountBorrowed: t.borrowed,
		TotalAmountRepaid:   t.repaid,
		TotalInterestPaid:   t.interestPaid,
		OutstandingBalance:  t.borrowed.Sub(t.repaid),
		RepaymentProgress:   progress,
		NextPaymentDue:      next,
		LoanBreakdown:       t.breakdown,
		PaymentHistory:      t.recentHistory(),
	}
}

// recentHistory orders by paid date, falling back to due date, newest first.
// Entries with neither date go last.
func (t *tally) recentHistory() []domain.PaymentHistoryEntry {
	items := make([]historyItem, len(t.history))
	copy(items, t.history)

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].sortDate, items[j].sortDate
		switch {
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		default:
			return a.After(b)
		}
	})

	if len(items) > t.historyLimit {
		items = items[:t.historyLimit]
	}

	out := make([]domain.PaymentHistoryEntry, 0, len(items))
	for _, item := range items {
		out = append(out, item.entry)
	}
	return out
}
