package service

import (
	"context"
	"sort"
	"time"

	"github.com/segyhp/agriloan-engine/internal/config"
	"github.com/segyhp/agriloan-engine/internal/domain"
	"github.com/segyhp/agriloan-engine/internal/engine"
	"github.com/segyhp/agriloan-engine/internal/repository"
	"github.com/segyhp/agriloan-engine/pkg/amortization"
	customError "github.com/segyhp/agriloan-engine/pkg/errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const maxPageSize = 100

type LendingService struct {
	LoanRepo    repository.LoanRepository
	ProductRepo repository.ProductRepository
	lock        repository.PaymentLock
	idempotency repository.IdempotencyStore
	config      *config.Config
	now         func() time.Time
}

func NewLendingService(
	loanRepo repository.LoanRepository,
	productRepo repository.ProductRepository,
	lock repository.PaymentLock,
	idempotency repository.IdempotencyStore,
	config *config.Config,
) *LendingService {
	return &LendingService{
		LoanRepo:    loanRepo,
		ProductRepo: productRepo,
		lock:        lock,
		idempotency: idempotency,
		config:      config,
		now:         time.Now,
	}
}

// Apply originates a PENDING loan with its full repayment schedule. When the
// request references a product, the product's rate applies and its term
// fills in a missing one.
func (s *LendingService) Apply(ctx context.Context, request *domain.ApplyLoanRequest) (*domain.Loan, error) {
	now := s.now().UTC()

	terms := domain.LoanTerms{
		Principal:    request.Amount,
		AnnualRate:   request.InterestRate,
		Term:         request.Term,
		TermUnit:     request.TermUnit,
		Type:         request.Type,
		Purpose:      request.Purpose,
		OriginatedAt: now,
	}

	if request.ProductID != nil {
		product, err := s.ProductRepo.GetByID(ctx, *request.ProductID)
		if err != nil {
			return nil, err
		}
		if !product.Accepts(request.Amount) {
			return nil, customError.WrapInvalidAmount("amount is outside the product's allowed range")
		}

		terms.AnnualRate = product.InterestRate
		if terms.Term <= 0 {
			terms.Term = product.TermMonths
			terms.TermUnit = domain.TermUnitMonths
		}
		if terms.Type == "" {
			terms.Type = product.Name
		}
	}

	if terms.Term <= 0 {
		terms.Term = s.config.Business.DefaultTermMonths
		terms.TermUnit = domain.TermUnitMonths
	}

	loan, err := engine.NewLoan(request.BorrowerID, terms, now)
	if err != nil {
		return nil, err
	}
	loan.ProductID = request.ProductID
	loan.BorrowerEmail = request.BorrowerEmail

	if err := s.LoanRepo.Create(ctx, loan); err != nil {
		return nil, err
	}

	log.Info().
		Str("loan_id", loan.ID.String()).
		Str("borrower_id", loan.BorrowerID.String()).
		Str("principal", loan.Terms.Principal.String()).
		Int("installments", len(loan.Installments)).
		Msg("loan application created")

	return loan, nil
}

func (s *LendingService) GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	return s.LoanRepo.GetByID(ctx, loanID)
}

func (s *LendingService) ListBorrowerLoans(ctx context.Context, borrowerID uuid.UUID) ([]*domain.Loan, error) {
	return s.LoanRepo.ListByBorrower(ctx, borrowerID)
}

// CurrentLoan returns the borrower's most recently created loan, or nil when
// the borrower has none.
func (s *LendingService) CurrentLoan(ctx context.Context, borrowerID uuid.UUID) (*domain.Loan, error) {
	loans, err := s.LoanRepo.ListByBorrower(ctx, borrowerID)
	if err != nil {
		return nil, err
	}

	var current *domain.Loan
	for _, loan := range loans {
		if current == nil || !loan.CreatedAt.Before(current.CreatedAt) {
			current = loan
		}
	}
	return current, nil
}

// BorrowerInstallments lists every installment across the borrower's loans
// ordered by due date.
func (s *LendingService) BorrowerInstallments(ctx context.Context, borrowerID uuid.UUID) (*domain.InstallmentsResponse, error) {
	loans, err := s.LoanRepo.ListByBorrower(ctx, borrowerID)
	if err != nil {
		return nil, err
	}

	installments := make([]domain.Installment, 0)
	for _, loan := range loans {
		installments = append(installments, loan.Installments...)
	}
	sort.SliceStable(installments, func(i, j int) bool {
		return installments[i].DueDate.Before(installments[j].DueDate)
	})

	return &domain.InstallmentsResponse{
		BorrowerID:   borrowerID,
		Installments: installments,
	}, nil
}

// UpdateStatus applies an admin decision to a loan.
func (s *LendingService) UpdateStatus(ctx context.Context, loanID uuid.UUID, status domain.LoanStatus) (*domain.Loan, error) {
	loan, err := s.LoanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	from := loan.Status
	version := loan.Version
	if err := engine.TransitionLoan(loan, status, s.now().UTC()); err != nil {
		return nil, err
	}

	if err := s.LoanRepo.Save(ctx, loan, version); err != nil {
		return nil, err
	}

	log.Info().
		Str("loan_id", loanID.String()).
		Str("from", string(from)).
		Str("to", string(status)).
		Msg("loan status updated")

	return loan, nil
}

// MakePayment runs one payment through the allocation waterfall. Payments on
// the same loan are serialized by the payment lock; a request carrying a
// reference is applied at most once and replays return the stored result.
// Reusing a reference with a different amount is rejected.
func (s *LendingService) MakePayment(ctx context.Context, loanID uuid.UUID, request domain.MakePaymentRequest) (*domain.AllocationResult, error) {
	if !request.Amount.IsPositive() {
		return nil, customError.WrapInvalidAmount("payment amount must be positive")
	}

	lockKey := loanID.String()
	token, err := s.lock.Acquire(ctx, lockKey, s.config.Business.PaymentLockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
			log.Warn().Err(err).Str("loan_id", lockKey).Msg("failed to release payment lock")
		}
	}()

	var idempotencyKey string
	if request.Reference != "" {
		idempotencyKey = lockKey + ":" + request.Reference

		previous, err := s.idempotency.Lookup(ctx, idempotencyKey)
		if err != nil {
			return nil, err
		}
		if previous != nil {
			if !previous.IncomingAmount.Equal(request.Amount) {
				log.Warn().
					Str("loan_id", lockKey).
					Str("reference", request.Reference).
					Str("amount", request.Amount.String()).
					Str("stored_amount", previous.IncomingAmount.String()).
					Msg("payment reference reused with a different amount")
				return nil, customError.WrapIdempotencyKeyReused(request.Reference)
			}
			log.Info().
				Str("loan_id", lockKey).
				Str("reference", request.Reference).
				Msg("payment replayed from idempotency store")
			return previous, nil
		}

		reserved, err := s.idempotency.Reserve(ctx, idempotencyKey, s.config.Business.IdempotencyTTL)
		if err != nil {
			return nil, err
		}
		if !reserved {
			return nil, customError.WrapPaymentInProgress(lockKey)
		}
	}

	result, err := s.applyPayment(ctx, loanID, request.Amount)
	if err != nil {
		if idempotencyKey != "" {
			if releaseErr := s.idempotency.Release(context.WithoutCancel(ctx), idempotencyKey); releaseErr != nil {
				log.Warn().Err(releaseErr).Str("key", idempotencyKey).Msg("failed to release payment reservation")
			}
		}
		return nil, err
	}
	result.Reference = request.Reference

	if idempotencyKey != "" {
		if err := s.idempotency.Complete(ctx, idempotencyKey, result, s.config.Business.IdempotencyTTL); err != nil {
			// The payment is already stored; only replay protection is lost.
			log.Error().Err(err).Str("key", idempotencyKey).Msg("failed to record payment result")
		}
	}

	log.Info().
		Str("loan_id", lockKey).
		Str("amount", request.Amount.String()).
		Str("applied", result.TotalApplied.String()).
		Str("remainder", result.Remainder.String()).
		Bool("fully_paid", result.LoanFullyPaid).
		Msg("payment applied")

	return result, nil
}

func (s *LendingService) applyPayment(ctx context.Context, loanID uuid.UUID, amount decimal.Decimal) (*domain.AllocationResult, error) {
	loan, err := s.LoanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	version := loan.Version
	result, err := engine.ApplyPayment(loan, amount, s.now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.LoanRepo.Save(ctx, loan, version); err != nil {
		return nil, err
	}
	return result, nil
}

// ListLoans returns one page of the loan book for administrators.
func (s *LendingService) ListLoans(ctx context.Context, filter domain.LoanFilter) (*domain.LoanListResponse, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = s.config.Business.DefaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}

	loans, total, err := s.LoanRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if loans == nil {
		loans = []*domain.Loan{}
	}

	return &domain.LoanListResponse{
		Loans: loans,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

// Quote prices a loan without creating it. A zero term falls back to the
// configured default.
func (s *LendingService) Quote(principal, rate decimal.Decimal, term int, unit domain.TermUnit) (*domain.QuoteResponse, error) {
	if term <= 0 {
		term = s.config.Business.DefaultTermMonths
		unit = domain.TermUnitMonths
	}

	months, err := amortization.TermInMonths(term, string(unit))
	if err != nil {
		return nil, err
	}

	quote, err := amortization.NewQuote(principal, rate, months)
	if err != nil {
		return nil, err
	}
	quote = quote.Rounded()

	return &domain.QuoteResponse{
		Principal:      principal,
		InterestRate:   rate,
		TermMonths:     quote.TermMonths,
		MonthlyPayment: quote.MonthlyPayment,
		TotalPayment:   quote.TotalPayment,
		TotalInterest:  quote.TotalInterest,
	}, nil
}
