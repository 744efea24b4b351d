package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segyhp/agriloan-engine/internal/domain"
	"github.com/segyhp/agriloan-engine/internal/mocks"
	customError "github.com/segyhp/agriloan-engine/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type lendingFixture struct {
	service     *LendingService
	loanRepo    *mocks.MockLoanRepository
	productRepo *mocks.MockProductRepository
	lock        *mocks.MockPaymentLock
	idempotency *mocks.MockIdempotencyStore
}

func newLendingFixture() *lendingFixture {
	f := &lendingFixture{
		loanRepo:    &mocks.MockLoanRepository{},
		productRepo: &mocks.MockProductRepository{},
		lock:        &mocks.MockPaymentLock{},
		idempotency: &mocks.MockIdempotencyStore{},
	}
	f.service = NewLendingService(f.loanRepo, f.productRepo, f.lock, f.idempotency, testConfig())
	f.service.now = fixedClock
	return f
}

func (f *lendingFixture) assertExpectations(t *testing.T) {
	f.loanRepo.AssertExpectations(t)
	f.productRepo.AssertExpectations(t)
	f.lock.AssertExpectations(t)
	f.idempotency.AssertExpectations(t)
}

func TestApply_Success(t *testing.T) {
	f := newLendingFixture()
	borrowerID := uuid.New()

	f.loanRepo.On("Create", mock.Anything, mock.MatchedBy(func(loan *domain.Loan) bool {
		return loan.BorrowerID == borrowerID && len(loan.Installments) == 12
	})).Return(nil)

	loan, err := f.service.Apply(context.Background(), &domain.ApplyLoanRequest{
		BorrowerID:    borrowerID,
		BorrowerEmail: "farmer@example.com",
		Amount:        decimal.NewFromInt(10000),
		InterestRate:  decimal.NewFromInt(5),
		Term:          1,
		TermUnit:      domain.TermUnitYears,
		Type:          "equipment",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusPending, loan.Status)
	assert.Equal(t, "farmer@example.com", loan.BorrowerEmail)
	assert.Equal(t, testNow, loan.Terms.OriginatedAt)
	assert.True(t, loan.PaidAmount.IsZero())
	assert.Equal(t, "856.07", loan.Installments[0].Amount.StringFixed(2))
	assert.Equal(t, testNow.AddDate(0, 1, 0), loan.Installments[0].DueDate)
	f.assertExpectations(t)
}

func TestApply_DefaultTerm(t *testing.T) {
	f := newLendingFixture()
	f.loanRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	loan, err := f.service.Apply(context.Background(), &domain.ApplyLoanRequest{
		BorrowerID:   uuid.New(),
		Amount:       decimal.NewFromInt(1200),
		InterestRate: decimal.Zero,
	})

	require.NoError(t, err)
	assert.Len(t, loan.Installments, 12)
	assert.Equal(t, domain.TermUnitMonths, loan.Terms.TermUnit)
	assert.True(t, loan.Installments[0].Amount.Equal(decimal.NewFromInt(100)))
}

func TestApply_WithProduct(t *testing.T) {
	productID := uuid.New()
	product := &domain.LoanProduct{
		ID:           productID,
		Name:         "Seed Starter",
		InterestRate: decimal.NewFromInt(12),
		MinAmount:    decimal.NewFromInt(500),
		MaxAmount:    decimal.NewFromInt(5000),
		TermMonths:   24,
	}

	tests := []struct {
		name      string
		amount    int64
		term      int
		wantErr   error
		wantTerms int
	}{
		{name: "product term fills missing term", amount: 1200, wantTerms: 24},
		{name: "explicit term wins", amount: 1200, term: 6, wantTerms: 6},
		{name: "below minimum", amount: 100, wantErr: customError.ErrInvalidAmount},
		{name: "above maximum", amount: 6000, wantErr: customError.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLendingFixture()
			f.productRepo.On("GetByID", mock.Anything, productID).Return(product, nil)
			if tt.wantErr == nil {
				f.loanRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
			}

			loan, err := f.service.Apply(context.Background(), &domain.ApplyLoanRequest{
				BorrowerID:   uuid.New(),
				ProductID:    &productID,
				Amount:       decimal.NewFromInt(tt.amount),
				InterestRate: decimal.NewFromInt(99),
				Term:         tt.term,
			})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, loan)
				f.loanRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
				return
			}

			require.NoError(t, err)
			assert.Len(t, loan.Installments, tt.wantTerms)
			assert.True(t, loan.Terms.AnnualRate.Equal(decimal.NewFromInt(12)))
			assert.Equal(t, "Seed Starter", loan.Terms.Type)
			assert.Equal(t, &productID, loan.ProductID)
			f.assertExpectations(t)
		})
	}
}

func TestApply_ProductNotFound(t *testing.T) {
	f := newLendingFixture()
	productID := uuid.New()
	f.productRepo.On("GetByID", mock.Anything, productID).
		Return(nil, customError.WrapProductNotFound(productID.String()))

	_, err := f.service.Apply(context.Background(), &domain.ApplyLoanRequest{
		BorrowerID: uuid.New(),
		ProductID:  &productID,
		Amount:     decimal.NewFromInt(1000),
	})

	assert.ErrorIs(t, err, customError.ErrProductNotFound)
}

func TestApply_InvalidAmount(t *testing.T) {
	f := newLendingFixture()

	_, err := f.service.Apply(context.Background(), &domain.ApplyLoanRequest{
		BorrowerID: uuid.New(),
		Amount:     decimal.Zero,
		Term:       12,
	})

	assert.ErrorIs(t, err, customError.ErrInvalidAmount)
	f.loanRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestMakePayment_Success(t *testing.T) {
	f := newLendingFixture()
	loan := interestFreeLoan(domain.LoanStatusApproved)
	key := loan.ID.String()

	f.lock.On("Acquire", mock.Anything, key, 30*time.Second).Return("token", nil)
	f.lock.On("Release", mock.Anything, key, "token").Return(nil)
	f.loanRepo.On("GetByID", mock.Anything, loan.ID).Return(loan, nil)
	f.loanRepo.On("Save", mock.Anything, loan, int64(3)).Return(nil)

	result, err := f.service.MakePayment(context.Background(), loan.ID, domain.MakePaymentRequest{
		Amount: decimal.NewFromInt(450),
	})

	require.NoError(t, err)
	assert.True(t, result.TotalApplied.Equal(decimal.NewFromInt(450)))
	assert.True(t, result.Remainder.IsZero())
	require.Len(t, result.ProcessedInstallments, 2)
	assert.Equal(t, domain.SettlementFull, result.ProcessedInstallments[0].Settlement)
	assert.Equal(t, domain.SettlementPartial, result.ProcessedInstallments[1].Settlement)
	assert.True(t, loan.Installments[1].Amount.Equal(decimal.NewFromInt(150)))
	f.idempotency.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestMakePayment_WithReference(t *testing.T) {
	f := newLendingFixture()
	loan := interestFreeLoan(domain.LoanStatusApproved)
	key := loan.ID.String()
	idemKey := key + ":mpesa-001"

	f.lock.On("Acquire", mock.Anything, key, 30*time.Second).Return("token", nil)
	f.lock.On("Release", mock.Anything, key, "token").Return(nil)
	f.idempotency.On("Lookup", mock.Anything, idemKey).Return(nil, nil)
	f.idempotency.On("Reserve", mock.Anything, idemKey, 24*time.Hour).Return(true, nil)
	f.idempotency.On("Complete", mock.Anything, idemKey, mock.MatchedBy(func(r *domain.AllocationResult) bool {
		return r.Reference == "mpesa-001" && r.LoanFullyPaid
	}), 24*time.Hour).Return(nil)
	f.loanRepo.On("GetByID", mock.Anything, loan.ID).Return(loan, nil)
	f.loanRepo.On("Save", mock.Anything, loan, int64(3)).Return(nil)

	result, err := f.service.MakePayment(context.Background(), loan.ID, domain.MakePaymentRequest{
		Amount:    decimal.NewFromInt(1500),
		Reference: "mpesa-001",
	})

	require.NoError(t, err)
	assert.True(t, result.LoanFullyPaid)
	assert.Equal(t, domain.LoanStatusPaid, result.LoanStatus)
	assert.True(t, result.Remainder.Equal(decimal.NewFromInt(300)))
	f.assertExpectations(t)
}

func TestMakePayment_ReplayReturnsStoredResult(t *testing.T) {
	f := newLendingFixture()
	loanID := uuid.New()
	key := loanID.String()
	previous := &domain.AllocationResult{
		LoanID:         loanID,
		Reference:      "mpesa-001",
		IncomingAmount: decimal.RequireFromString("300.00"),
		TotalApplied:   decimal.NewFromInt(300),
	}

	f.lock.On("Acquire", mock.Anything, key, 30*time.Second).Return("token", nil)
	f.lock.On("Release", mock.Anything, key, "token").Return(nil)
	f.idempotency.On("Lookup", mock.Anything, key+":mpesa-001").Return(previous, nil)

	result, err := f.service.MakePayment(context.Background(), loanID, domain.MakePaymentRequest{
		Amount:    decimal.NewFromInt(300),
		Reference: "mpesa-001",
	})

	require.NoError(t, err)
	assert.Same(t, previous, result)
	f.loanRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	f.loanRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestMakePayment_ReusedReferenceWithDifferentAmount(t *testing.T) {
	f := newLendingFixture()
	loanID := uuid.New()
	key := loanID.String()
	previous := &domain.AllocationResult{
		LoanID:         loanID,
		Reference:      "mpesa-001",
		IncomingAmount: decimal.NewFromInt(300),
		TotalApplied:   decimal.NewFromInt(300),
	}

	f.lock.On("Acquire", mock.Anything, key, 30*time.Second).Return("token", nil)
	f.lock.On("Release", mock.Anything, key, "token").Return(nil)
	f.idempotency.On("Lookup", mock.Anything, key+":mpesa-001").Return(previous, nil)

	result, err := f.service.MakePayment(context.Background(), loanID, domain.MakePaymentRequest{
		Amount:    decimal.NewFromInt(9000),
		Reference: "mpesa-001",
	})

	assert.ErrorIs(t, err, customError.ErrIdempotencyKeyReused)
	assert.Equal(t, customError.ErrCodeIdempotencyKeyReused, customError.CodeOf(err))
	assert.Nil(t, result)
	f.idempotency.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything)
	f.loanRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	f.loanRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestMakePayment_LockHeld(t *testing.T) {
	f := newLendingFixture()
	loanID := uuid.New()

	f.lock.On("Acquire", mock.Anything, loanID.String(), 30*time.Second).
		Return("", customError.WrapPaymentInProgress(loanID.String()))

	_, err := f.service.MakePayment(context.Background(), loanID, domain.MakePaymentRequest{
		Amount: decimal.NewFromInt(100),
	})

	assert.ErrorIs(t, err, customError.ErrPaymentInProgress)
	f.lock.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
	f.loanRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestMakePayment_RejectedLeavesLoanUntouched(t *testing.T) {
	f := newLendingFixture()
	loan := interestFreeLoan(domain.LoanStatusPending)
	key := loan.ID.String()
	idemKey := key + ":ref-9"

	f.lock.On("Acquire", mock.Anything, key, 30*time.Second).Return("token", nil)
	f.lock.On("Release", mock.Anything, key, "token").Return(nil)
	f.idempotency.On("Lookup", mock.Anything, idemKey).Return(nil, nil)
	f.idempotency.On("Reserve", mock.Anything, idemKey, 24*time.Hour).Return(true, nil)
	f.idempotency.On("Release", mock.Anything, idemKey).Return(nil)
	f.loanRepo.On("GetByID", mock.Anything, loan.ID).Return(loan, nil)

	_, err := f.service.MakePayment(context.Background(), loan.ID, domain.MakePaymentRequest{
		Amount:    decimal.NewFromInt(300),
		Reference: "ref-9",
	})

	assert.ErrorIs(t, err, customError.ErrLoanNotApproved)
	assert.True(t, loan.PaidAmount.IsZero())
	f.loanRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	f.idempotency.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestMakePayment_ConcurrentModification(t *testing.T) {
	f := newLendingFixture()
	loan := interestFreeLoan(domain.LoanStatusApproved)
	key := loan.ID.String()

	f.lock.On("Acquire", mock.Anything, key, 30*time.Second).Return("token", nil)
	f.lock.On("Release", mock.Anything, key, "token").Return(nil)
	f.loanRepo.On("GetByID", mock.Anything, loan.ID).Return(loan, nil)
	f.loanRepo.On("Save", mock.Anything, loan, int64(3)).Return(customError.WrapConcurrentModification(key))

	_, err := f.service.MakePayment(context.Background(), loan.ID, domain.MakePaymentRequest{
		Amount: decimal.NewFromInt(300),
	})

	assert.ErrorIs(t, err, customError.ErrConcurrentModification)
	f.assertExpectations(t)
}

func TestMakePayment_InvalidAmount(t *testing.T) {
	f := newLendingFixture()

	_, err := f.service.MakePayment(context.Background(), uuid.New(), domain.MakePaymentRequest{
		Amount: decimal.NewFromInt(-5),
	})

	assert.ErrorIs(t, err, customError.ErrInvalidAmount)
	f.lock.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.LoanStatus
		to      domain.LoanStatus
		wantErr error
	}{
		{name: "approve pending", from: domain.LoanStatusPending, to: domain.LoanStatusApproved},
		{name: "reject pending", from: domain.LoanStatusPending, to: domain.LoanStatusRejected},
		{name: "reject approved", from: domain.LoanStatusApproved, to: domain.LoanStatusRejected, wantErr: customError.ErrIllegalStatusTransition},
		{name: "pay with unpaid installments", from: domain.LoanStatusApproved, to: domain.LoanStatusPaid, wantErr: customError.ErrIllegalStatusTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLendingFixture()
			loan := interestFreeLoan(tt.from)
			f.loanRepo.On("GetByID", mock.Anything, loan.ID).Return(loan, nil)
			if tt.wantErr == nil {
				f.loanRepo.On("Save", mock.Anything, loan, int64(3)).Return(nil)
			}

			updated, err := f.service.UpdateStatus(context.Background(), loan.ID, tt.to)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.from, loan.Status)
				f.loanRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.to, updated.Status)
			assert.Equal(t, testNow, updated.UpdatedAt)
			f.assertExpectations(t)
		})
	}
}

func TestCurrentLoan(t *testing.T) {
	f := newLendingFixture()
	borrowerID := uuid.New()

	older := interestFreeLoan(domain.LoanStatusPaid)
	newer := interestFreeLoan(domain.LoanStatusPending)
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)

	f.loanRepo.On("ListByBorrower", mock.Anything, borrowerID).Return([]*domain.Loan{newer, older}, nil)

	current, err := f.service.CurrentLoan(context.Background(), borrowerID)

	require.NoError(t, err)
	assert.Same(t, newer, current)
}

func TestCurrentLoan_NoLoans(t *testing.T) {
	f := newLendingFixture()
	borrowerID := uuid.New()
	f.loanRepo.On("ListByBorrower", mock.Anything, borrowerID).Return([]*domain.Loan{}, nil)

	current, err := f.service.CurrentLoan(context.Background(), borrowerID)

	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestBorrowerInstallments_OrderedByDueDate(t *testing.T) {
	f := newLendingFixture()
	borrowerID := uuid.New()

	first := interestFreeLoan(domain.LoanStatusApproved)
	second := interestFreeLoan(domain.LoanStatusApproved)
	for i := range second.Installments {
		second.Installments[i].DueDate = second.Installments[i].DueDate.Add(24 * time.Hour)
	}

	f.loanRepo.On("ListByBorrower", mock.Anything, borrowerID).Return([]*domain.Loan{second, first}, nil)

	resp, err := f.service.BorrowerInstallments(context.Background(), borrowerID)

	require.NoError(t, err)
	assert.Equal(t, borrowerID, resp.BorrowerID)
	require.Len(t, resp.Installments, 8)
	for i := 1; i < len(resp.Installments); i++ {
		assert.False(t, resp.Installments[i].DueDate.Before(resp.Installments[i-1].DueDate))
	}
	assert.Equal(t, first.ID, resp.Installments[0].LoanID)
}

func TestListLoans_Defaults(t *testing.T) {
	tests := []struct {
		name      string
		filter    domain.LoanFilter
		wantPage  int
		wantLimit int
	}{
		{name: "zero values", filter: domain.LoanFilter{}, wantPage: 1, wantLimit: 20},
		{name: "explicit", filter: domain.LoanFilter{Page: 3, Limit: 5}, wantPage: 3, wantLimit: 5},
		{name: "capped limit", filter: domain.LoanFilter{Page: 1, Limit: 1000}, wantPage: 1, wantLimit: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLendingFixture()
			f.loanRepo.On("List", mock.Anything, mock.MatchedBy(func(filter domain.LoanFilter) bool {
				return filter.Page == tt.wantPage && filter.Limit == tt.wantLimit
			})).Return(nil, 0, nil)

			resp, err := f.service.ListLoans(context.Background(), tt.filter)

			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, resp.Page)
			assert.Equal(t, tt.wantLimit, resp.Limit)
			assert.NotNil(t, resp.Loans)
			f.assertExpectations(t)
		})
	}
}

func TestListLoans_RepositoryError(t *testing.T) {
	f := newLendingFixture()
	f.loanRepo.On("List", mock.Anything, mock.Anything).
		Return(nil, 0, customError.WrapDatabaseError(errors.New("connection refused")))

	_, err := f.service.ListLoans(context.Background(), domain.LoanFilter{})

	assert.Equal(t, customError.ErrCodeDatabaseError, customError.CodeOf(err))
}

func TestQuote(t *testing.T) {
	f := newLendingFixture()

	quote, err := f.service.Quote(decimal.NewFromInt(10000), decimal.NewFromInt(5), 12, domain.TermUnitMonths)
	require.NoError(t, err)
	assert.Equal(t, 12, quote.TermMonths)
	assert.Equal(t, "856.07", quote.MonthlyPayment.StringFixed(2))
	assert.Equal(t, "272.90", quote.TotalInterest.StringFixed(2))

	quote, err = f.service.Quote(decimal.NewFromInt(1200), decimal.Zero, 0, "")
	require.NoError(t, err)
	assert.Equal(t, 12, quote.TermMonths)
	assert.True(t, quote.MonthlyPayment.Equal(decimal.NewFromInt(100)))

	_, err = f.service.Quote(decimal.NewFromInt(1200), decimal.Zero, 2, "WEEKS")
	assert.ErrorIs(t, err, customError.ErrInvalidTerm)
}
