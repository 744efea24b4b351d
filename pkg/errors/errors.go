package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrInvalidAmount             = errors.New("invalid amount")
	ErrInvalidTerm               = errors.New("invalid term")
	ErrLoanNotFound              = errors.New("loan not found")
	ErrLoanNotApproved           = errors.New("loan is not approved")
	ErrNoOutstandingInstallments = errors.New("no outstanding installments")
	ErrIllegalStatusTransition   = errors.New("illegal loan status transition")
	ErrConcurrentModification    = errors.New("loan was modified concurrently")
	ErrPaymentInProgress         = errors.New("another payment is in progress for this loan")
	ErrProductNotFound           = errors.New("loan product not found")
	ErrIdempotencyKeyReused      = errors.New("idempotency key reused with a different payment")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeInvalidAmount             = "INVALID_AMOUNT"
	ErrCodeInvalidTerm               = "INVALID_TERM"
	ErrCodeLoanNotFound              = "LOAN_NOT_FOUND"
	ErrCodeLoanNotApproved           = "LOAN_NOT_APPROVED"
	ErrCodeNoOutstandingInstallments = "NO_OUTSTANDING_INSTALLMENTS"
	ErrCodeIllegalStatusTransition   = "ILLEGAL_STATUS_TRANSITION"
	ErrCodeConcurrentModification    = "CONCURRENT_MODIFICATION"
	ErrCodePaymentInProgress         = "PAYMENT_IN_PROGRESS"
	ErrCodeProductNotFound           = "PRODUCT_NOT_FOUND"
	ErrCodeIdempotencyKeyReused      = "IDEMPOTENCY_KEY_REUSED"
	ErrCodeDatabaseError             = "DATABASE_ERROR"
	ErrCodeCacheError                = "CACHE_ERROR"
)

func WrapInvalidAmount(reason string) *BusinessError {
	return NewBusinessError(ErrCodeInvalidAmount, reason, ErrInvalidAmount)
}

func WrapInvalidTerm(reason string) *BusinessError {
	return NewBusinessError(ErrCodeInvalidTerm, reason, ErrInvalidTerm)
}

func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapLoanNotApproved(loanID, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotApproved,
		fmt.Sprintf("Loan with ID %s is %s, payments require an approved loan", loanID, status),
		ErrLoanNotApproved,
	)
}

func WrapNoOutstandingInstallments(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeNoOutstandingInstallments,
		fmt.Sprintf("Loan with ID %s has no outstanding installments", loanID),
		ErrNoOutstandingInstallments,
	)
}

func WrapIllegalStatusTransition(from, to string) *BusinessError {
	return NewBusinessError(
		ErrCodeIllegalStatusTransition,
		fmt.Sprintf("Cannot move loan from %s to %s", from, to),
		ErrIllegalStatusTransition,
	)
}

func WrapConcurrentModification(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeConcurrentModification,
		fmt.Sprintf("Loan with ID %s changed since it was read", loanID),
		ErrConcurrentModification,
	)
}

func WrapPaymentInProgress(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentInProgress,
		fmt.Sprintf("A payment for loan %s is already being processed", loanID),
		ErrPaymentInProgress,
	)
}

func WrapProductNotFound(productID string) *BusinessError {
	return NewBusinessError(
		ErrCodeProductNotFound,
		fmt.Sprintf("Loan product with ID %s not found", productID),
		ErrProductNotFound,
	)
}

func WrapIdempotencyKeyReused(reference string) *BusinessError {
	return NewBusinessError(
		ErrCodeIdempotencyKeyReused,
		fmt.Sprintf("Reference %s was already used for a payment of a different amount", reference),
		ErrIdempotencyKeyReused,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}

// CodeOf returns the code of the first BusinessError in err's chain, or "" when there is none.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
