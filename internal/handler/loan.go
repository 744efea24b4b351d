package handler

import (
	"net/http"
	"strconv"

	"github.com/segyhp/agriloan-engine/internal/domain"
	"github.com/segyhp/agriloan-engine/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// IdempotencyHeader carries the client payment reference when the body has none.
const IdempotencyHeader = "Idempotency-Key"

type LoanHandler struct {
	service   LoanService
	validator *validator.Validate
}

func NewLoanHandler(service LoanService) *LoanHandler {
	return &LoanHandler{
		service:   service,
		validator: NewValidator(),
	}
}

// Apply handles POST /loans
func (h *LoanHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var request domain.ApplyLoanRequest
	if !decodeAndValidate(w, r, h.validator, &request) {
		return
	}

	loan, err := h.service.Apply(r.Context(), &request)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, loan)
}

// GetLoan handles GET /loans/{loanId}
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathUUID(w, r, "loanId")
	if !ok {
		return
	}

	loan, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, loan)
}

// MakePayment handles POST /loans/{loanId}/payments
func (h *LoanHandler) MakePayment(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathUUID(w, r, "loanId")
	if !ok {
		return
	}

	var request domain.MakePaymentRequest
	if !decodeAndValidate(w, r, h.validator, &request) {
		return
	}
	if request.Reference == "" {
		request.Reference = r.Header.Get(IdempotencyHeader)
	}

	result, err := h.service.MakePayment(r.Context(), loanID, request)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, result)
}

// BorrowerLoans handles GET /borrowers/{borrowerId}/loans
func (h *LoanHandler) BorrowerLoans(w http.ResponseWriter, r *http.Request) {
	borrowerID, ok := pathUUID(w, r, "borrowerId")
	if !ok {
		return
	}

	loans, err := h.service.ListBorrowerLoans(r.Context(), borrowerID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	if loans == nil {
		loans = []*domain.Loan{}
	}

	response.Success(w, loans)
}

// CurrentLoan handles GET /borrowers/{borrowerId}/loans/current
func (h *LoanHandler) CurrentLoan(w http.ResponseWriter, r *http.Request) {
	borrowerID, ok := pathUUID(w, r, "borrowerId")
	if !ok {
		return
	}

	loan, err := h.service.CurrentLoan(r.Context(), borrowerID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	if loan == nil {
		response.NotFound(w, "Borrower has no loans", nil)
		return
	}

	response.Success(w, loan)
}

// BorrowerInstallments handles GET /borrowers/{borrowerId}/installments
func (h *LoanHandler) BorrowerInstallments(w http.ResponseWriter, r *http.Request) {
	borrowerID, ok := pathUUID(w, r, "borrowerId")
	if !ok {
		return
	}

	installments, err := h.service.BorrowerInstallments(r.Context(), borrowerID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, installments)
}

// Quote handles GET /quotes?amount=&rate=&term=&unit=
func (h *LoanHandler) Quote(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	amount, err := decimal.NewFromString(query.Get("amount"))
	if err != nil || !amount.IsPositive() {
		response.BadRequest(w, "amount must be a positive number", err)
		return
	}

	rate := decimal.Zero
	if raw := query.Get("rate"); raw != "" {
		if rate, err = decimal.NewFromString(raw); err != nil || rate.IsNegative() {
			response.BadRequest(w, "rate must be a non-negative number", err)
			return
		}
	}

	term := 0
	if raw := query.Get("term"); raw != "" {
		if term, err = strconv.Atoi(raw); err != nil || term < 0 {
			response.BadRequest(w, "term must be a non-negative integer", err)
			return
		}
	}

	quote, err := h.service.Quote(amount, rate, term, domain.TermUnit(query.Get("unit")))
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, quote)
}

// UpdateStatus handles PATCH /admin/loans/{loanId}/status
func (h *LoanHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathUUID(w, r, "loanId")
	if !ok {
		return
	}

	var request domain.UpdateStatusRequest
	if !decodeAndValidate(w, r, h.validator, &request) {
		return
	}

	loan, err := h.service.UpdateStatus(r.Context(), loanID, request.Status)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, loan)
}

// ListLoans handles GET /admin/loans?status=&type=&min_amount=&max_amount=&page=&limit=
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var filter domain.LoanFilter

	if raw := query.Get("status"); raw != "" {
		status, ok := domain.ParseLoanStatus(raw)
		if !ok {
			response.BadRequest(w, "Unknown loan status "+raw, nil)
			return
		}
		filter.Status = status
	}
	filter.Type = query.Get("type")

	for param, dst := range map[string]**decimal.Decimal{
		"min_amount": &filter.MinAmount,
		"max_amount": &filter.MaxAmount,
	} {
		raw := query.Get(param)
		if raw == "" {
			continue
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			response.BadRequest(w, "Invalid "+param, err)
			return
		}
		*dst = &value
	}

	for param, dst := range map[string]*int{
		"page":  &filter.Page,
		"limit": &filter.Limit,
	} {
		raw := query.Get(param)
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			response.BadRequest(w, "Invalid "+param, err)
			return
		}
		*dst = value
	}

	loans, err := h.service.ListLoans(r.Context(), filter)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, loans)
}
