// Package handler exposes the lending services over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/segyhp/agriloan-engine/internal/domain"
	"github.com/segyhp/agriloan-engine/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type LoanService interface {
	Apply(ctx context.Context, request *domain.ApplyLoanRequest) (*domain.Loan, error)
	GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error)
	ListBorrowerLoans(ctx context.Context, borrowerID uuid.UUID) ([]*domain.Loan, error)
	CurrentLoan(ctx context.Context, borrowerID uuid.UUID) (*domain.Loan, error)
	BorrowerInstallments(ctx context.Context, borrowerID uuid.UUID) (*domain.InstallmentsResponse, error)
	UpdateStatus(ctx context.Context, loanID uuid.UUID, status domain.LoanStatus) (*domain.Loan, error)
	MakePayment(ctx context.Context, loanID uuid.UUID, request domain.MakePaymentRequest) (*domain.AllocationResult, error)
	ListLoans(ctx context.Context, filter domain.LoanFilter) (*domain.LoanListResponse, error)
	Quote(principal, rate decimal.Decimal, term int, unit domain.TermUnit) (*domain.QuoteResponse, error)
}

type AnalyticsService interface {
	BorrowerAnalytics(ctx context.Context, borrowerID uuid.UUID) (*domain.BorrowerAnalytics, error)
	PortfolioAnalytics(ctx context.Context) (*domain.PortfolioAnalytics, error)
	ExportPortfolio(ctx context.Context, w io.Writer) error
}

type ProductService interface {
	Create(ctx context.Context, request *domain.CreateProductRequest) (*domain.LoanProduct, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.LoanProduct, error)
	List(ctx context.Context) ([]*domain.LoanProduct, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
// It writes the 400 response itself and reports whether the caller may go on.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return false
	}
	if err := v.Struct(dst); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return false
	}
	return true
}

// pathUUID parses the named route variable, answering 400 when it is malformed.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		response.BadRequest(w, fmt.Sprintf("Invalid %s", name), err)
		return uuid.Nil, false
	}
	return id, true
}
