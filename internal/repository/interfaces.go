package repository

import (
	"context"
	"time"

	"github.com/segyhp/agriloan-engine/internal/domain"

	"github.com/google/uuid"
)

// LoanRepository loads and stores whole Loan aggregates: the loan row and
// all of its installments move together.
type LoanRepository interface {
	// Create persists a new loan and its schedule in one transaction
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan with its installments ordered by sequence
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)

	// Save writes back a mutated aggregate if the stored version still equals
	// expectedVersion, then bumps loan.Version
	Save(ctx context.Context, loan *domain.Loan, expectedVersion int64) error

	// ListByBorrower returns a borrower's loans, oldest first
	ListByBorrower(ctx context.Context, borrowerID uuid.UUID) ([]*domain.Loan, error)

	// List returns one page of loans matching filter plus the total match count
	List(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, int, error)

	// ListAll returns every loan in the book, oldest first
	ListAll(ctx context.Context) ([]*domain.Loan, error)

	// ListWithInstallmentsDueBetween returns approved loans with at least one
	// unpaid installment due in [from, to)
	ListWithInstallmentsDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Loan, error)
}

// ProductRepository defines the interface for loan product templates
type ProductRepository interface {
	Create(ctx context.Context, product *domain.LoanProduct) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LoanProduct, error)
	List(ctx context.Context) ([]*domain.LoanProduct, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PaymentLock serializes payment processing per loan.
type PaymentLock interface {
	// Acquire takes the lock for key and returns the token needed to release
	// it. It fails with ErrPaymentInProgress when someone else holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Release drops the lock only if token still owns it
	Release(ctx context.Context, key, token string) error
}

// IdempotencyStore remembers the outcome of payments submitted with a
// client reference so a retried request is not applied twice.
type IdempotencyStore interface {
	// Reserve marks key as in flight. It reports false when key is already
	// reserved or completed.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Complete stores the result for key
	Complete(ctx context.Context, key string, result *domain.AllocationResult, ttl time.Duration) error

	// Lookup returns the stored result, or nil while key is absent or in flight
	Lookup(ctx context.Context, key string) (*domain.AllocationResult, error)

	// Release forgets a reservation whose payment failed
	Release(ctx context.Context, key string) error
}
