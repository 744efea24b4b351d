package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/segyhp/agriloan-engine/internal/domain"
	"github.com/segyhp/agriloan-engine/internal/mocks"
	customError "github.com/segyhp/agriloan-engine/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router    http.Handler
	loans     *mocks.MockLoanService
	analytics *mocks.MockAnalyticsService
	products  *mocks.MockProductService
}

func newTestServer() *testServer {
	s := &testServer{
		loans:     &mocks.MockLoanService{},
		analytics: &mocks.MockAnalyticsService{},
		products:  &mocks.MockProductService{},
	}
	s.router = NewRouter(
		NewLoanHandler(s.loans),
		NewAnalyticsHandler(s.analytics),
		NewProductHandler(s.products),
		nil,
	)
	return s
}

func (s *testServer) do(t *testing.T, method, target, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestApplyHandler(t *testing.T) {
	borrowerID := uuid.New()

	tests := []struct {
		name       string
		body       string
		setup      func(s *testServer)
		wantStatus int
		wantCode   string
	}{
		{
			name: "created",
			body: `{"borrower_id":"` + borrowerID.String() + `","amount":"10000","interest_rate":5,"term":12}`,
			setup: func(s *testServer) {
				s.loans.On("Apply", mock.Anything, mock.MatchedBy(func(r *domain.ApplyLoanRequest) bool {
					return r.BorrowerID == borrowerID && r.Amount.Equal(decimal.NewFromInt(10000))
				})).Return(&domain.Loan{ID: uuid.New(), BorrowerID: borrowerID, Status: domain.LoanStatusPending}, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "malformed json",
			body:       `{"amount":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "zero amount",
			body:       `{"borrower_id":"` + borrowerID.String() + `","amount":"0","term":12}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "negative rate",
			body:       `{"borrower_id":"` + borrowerID.String() + `","amount":"100","interest_rate":"-1"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown term unit",
			body:       `{"borrower_id":"` + borrowerID.String() + `","amount":"100","term":2,"term_unit":"WEEKS"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing borrower",
			body:       `{"amount":"100"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "product range violation",
			body: `{"borrower_id":"` + borrowerID.String() + `","amount":"100"}`,
			setup: func(s *testServer) {
				s.loans.On("Apply", mock.Anything, mock.Anything).
					Return(nil, customError.WrapInvalidAmount("amount is outside the product's allowed range"))
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   customError.ErrCodeInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			if tt.setup != nil {
				tt.setup(s)
			}

			rec, env := s.do(t, http.MethodPost, "/api/v1/loans", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, env.Code)
			if tt.setup == nil {
				s.loans.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything)
			}
			s.loans.AssertExpectations(t)
		})
	}
}

func TestGetLoanHandler(t *testing.T) {
	s := newTestServer()
	loanID := uuid.New()
	missingID := uuid.New()

	s.loans.On("GetLoan", mock.Anything, loanID).Return(&domain.Loan{ID: loanID, Status: domain.LoanStatusApproved}, nil)
	s.loans.On("GetLoan", mock.Anything, missingID).Return(nil, customError.WrapLoanNotFound(missingID.String()))

	rec, env := s.do(t, http.MethodGet, "/api/v1/loans/"+loanID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var loan domain.Loan
	require.NoError(t, json.Unmarshal(env.Data, &loan))
	assert.Equal(t, loanID, loan.ID)

	rec, env = s.do(t, http.MethodGet, "/api/v1/loans/"+missingID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, customError.ErrCodeLoanNotFound, env.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/loans/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMakePaymentHandler(t *testing.T) {
	loanID := uuid.New()

	t.Run("reference from header", func(t *testing.T) {
		s := newTestServer()
		s.loans.On("MakePayment", mock.Anything, loanID, mock.MatchedBy(func(r domain.MakePaymentRequest) bool {
			return r.Reference == "mpesa-77" && r.Amount.Equal(decimal.NewFromInt(300))
		})).Return(&domain.AllocationResult{LoanID: loanID, TotalApplied: decimal.NewFromInt(300)}, nil)

		rec, env := s.do(t, http.MethodPost, "/api/v1/loans/"+loanID.String()+"/payments",
			`{"amount":"300"}`, IdempotencyHeader, "mpesa-77")

		require.Equal(t, http.StatusOK, rec.Code)
		var result domain.AllocationResult
		require.NoError(t, json.Unmarshal(env.Data, &result))
		assert.True(t, result.TotalApplied.Equal(decimal.NewFromInt(300)))
		s.loans.AssertExpectations(t)
	})

	t.Run("body reference wins", func(t *testing.T) {
		s := newTestServer()
		s.loans.On("MakePayment", mock.Anything, loanID, mock.MatchedBy(func(r domain.MakePaymentRequest) bool {
			return r.Reference == "body-ref"
		})).Return(&domain.AllocationResult{LoanID: loanID}, nil)

		rec, _ := s.do(t, http.MethodPost, "/api/v1/loans/"+loanID.String()+"/payments",
			`{"amount":"300","reference":"body-ref"}`, IdempotencyHeader, "header-ref")

		assert.Equal(t, http.StatusOK, rec.Code)
		s.loans.AssertExpectations(t)
	})

	t.Run("conflicts map to 409", func(t *testing.T) {
		for _, err := range []error{
			customError.WrapLoanNotApproved(loanID.String(), "PENDING"),
			customError.WrapNoOutstandingInstallments(loanID.String()),
			customError.WrapPaymentInProgress(loanID.String()),
			customError.WrapConcurrentModification(loanID.String()),
		} {
			s := newTestServer()
			s.loans.On("MakePayment", mock.Anything, loanID, mock.Anything).Return(nil, err)

			rec, env := s.do(t, http.MethodPost, "/api/v1/loans/"+loanID.String()+"/payments", `{"amount":"10"}`)

			assert.Equal(t, http.StatusConflict, rec.Code)
			assert.Equal(t, customError.CodeOf(err), env.Code)
		}
	})

	t.Run("non-positive amount", func(t *testing.T) {
		s := newTestServer()

		rec, _ := s.do(t, http.MethodPost, "/api/v1/loans/"+loanID.String()+"/payments", `{"amount":"-10"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		s.loans.AssertNotCalled(t, "MakePayment", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("internal errors are hidden", func(t *testing.T) {
		s := newTestServer()
		s.loans.On("MakePayment", mock.Anything, loanID, mock.Anything).
			Return(nil, customError.WrapDatabaseError(errors.New("pq: connection reset")))

		rec, _ := s.do(t, http.MethodPost, "/api/v1/loans/"+loanID.String()+"/payments", `{"amount":"10"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection reset")
	})
}

func TestBorrowerHandlers(t *testing.T) {
	s := newTestServer()
	borrowerID := uuid.New()
	loan := &domain.Loan{ID: uuid.New(), BorrowerID: borrowerID}

	s.loans.On("ListBorrowerLoans", mock.Anything, borrowerID).Return(nil, nil)
	s.loans.On("CurrentLoan", mock.Anything, borrowerID).Return(loan, nil).Once()
	s.loans.On("BorrowerInstallments", mock.Anything, borrowerID).
		Return(&domain.InstallmentsResponse{BorrowerID: borrowerID, Installments: []domain.Installment{}}, nil)

	rec, env := s.do(t, http.MethodGet, "/api/v1/borrowers/"+borrowerID.String()+"/loans", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))

	rec, _ = s.do(t, http.MethodGet, "/api/v1/borrowers/"+borrowerID.String()+"/loans/current", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/borrowers/"+borrowerID.String()+"/installments", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	s.loans.On("CurrentLoan", mock.Anything, borrowerID).Return(nil, nil).Once()
	rec, _ = s.do(t, http.MethodGet, "/api/v1/borrowers/"+borrowerID.String()+"/loans/current", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuoteHandler(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{name: "full query", query: "amount=10000&rate=5&term=1&unit=YEARS", wantStatus: http.StatusOK},
		{name: "missing amount", query: "rate=5", wantStatus: http.StatusBadRequest},
		{name: "zero amount", query: "amount=0", wantStatus: http.StatusBadRequest},
		{name: "negative rate", query: "amount=100&rate=-2", wantStatus: http.StatusBadRequest},
		{name: "bad term", query: "amount=100&term=abc", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			s.loans.On("Quote", mock.Anything, mock.Anything, 1, domain.TermUnitYears).
				Return(&domain.QuoteResponse{TermMonths: 12}, nil)

			rec, _ := s.do(t, http.MethodGet, "/api/v1/quotes?"+tt.query, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestUpdateStatusHandler(t *testing.T) {
	loanID := uuid.New()

	t.Run("approve", func(t *testing.T) {
		s := newTestServer()
		s.loans.On("UpdateStatus", mock.Anything, loanID, domain.LoanStatusApproved).
			Return(&domain.Loan{ID: loanID, Status: domain.LoanStatusApproved}, nil)

		rec, _ := s.do(t, http.MethodPatch, "/api/v1/admin/loans/"+loanID.String()+"/status", `{"status":"APPROVED"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		s.loans.AssertExpectations(t)
	})

	t.Run("paid is not an admin decision", func(t *testing.T) {
		s := newTestServer()

		rec, _ := s.do(t, http.MethodPatch, "/api/v1/admin/loans/"+loanID.String()+"/status", `{"status":"PAID"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("illegal transition", func(t *testing.T) {
		s := newTestServer()
		s.loans.On("UpdateStatus", mock.Anything, loanID, domain.LoanStatusRejected).
			Return(nil, customError.WrapIllegalStatusTransition("APPROVED", "REJECTED"))

		rec, env := s.do(t, http.MethodPatch, "/api/v1/admin/loans/"+loanID.String()+"/status", `{"status":"REJECTED"}`)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, customError.ErrCodeIllegalStatusTransition, env.Code)
	})
}

func TestListLoansHandler(t *testing.T) {
	s := newTestServer()
	s.loans.On("ListLoans", mock.Anything, mock.MatchedBy(func(f domain.LoanFilter) bool {
		return f.Status == domain.LoanStatusApproved &&
			f.Type == "seed" &&
			f.MinAmount != nil && f.MinAmount.Equal(decimal.NewFromInt(100)) &&
			f.MaxAmount == nil &&
			f.Page == 2 && f.Limit == 5
	})).Return(&domain.LoanListResponse{Loans: []*domain.Loan{}, Page: 2, Limit: 5}, nil)

	rec, _ := s.do(t, http.MethodGet, "/api/v1/admin/loans?status=approved&type=seed&min_amount=100&page=2&limit=5", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	s.loans.AssertExpectations(t)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/admin/loans?status=closed", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/admin/loans?max_amount=lots", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyticsHandlers(t *testing.T) {
	s := newTestServer()
	borrowerID := uuid.New()

	s.analytics.On("BorrowerAnalytics", mock.Anything, borrowerID).
		Return(&domain.BorrowerAnalytics{TotalLoans: 2}, nil)
	s.analytics.On("PortfolioAnalytics", mock.Anything).
		Return(&domain.PortfolioAnalytics{TotalBorrowers: 7}, nil)

	rec, env := s.do(t, http.MethodGet, "/api/v1/borrowers/"+borrowerID.String()+"/analytics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var borrower domain.BorrowerAnalytics
	require.NoError(t, json.Unmarshal(env.Data, &borrower))
	assert.Equal(t, 2, borrower.TotalLoans)

	rec, env = s.do(t, http.MethodGet, "/api/v1/admin/analytics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var portfolio domain.PortfolioAnalytics
	require.NoError(t, json.Unmarshal(env.Data, &portfolio))
	assert.Equal(t, 7, portfolio.TotalBorrowers)
}

func TestExportHandler(t *testing.T) {
	s := newTestServer()
	s.analytics.On("ExportPortfolio", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			_, _ = args.Get(1).(io.Writer).Write([]byte("PK-fake-xlsx"))
		}).
		Return(nil)

	rec, _ := s.do(t, http.MethodGet, "/api/v1/admin/analytics/export", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename=portfolio-")
	assert.True(t, bytes.Equal([]byte("PK-fake-xlsx"), rec.Body.Bytes()))
}

func TestExportHandler_Failure(t *testing.T) {
	s := newTestServer()
	s.analytics.On("ExportPortfolio", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	rec, env := s.do(t, http.MethodGet, "/api/v1/admin/analytics/export", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, env.Success)
}

func TestProductHandlers(t *testing.T) {
	s := newTestServer()
	productID := uuid.New()
	missingID := uuid.New()

	s.products.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.CreateProductRequest) bool {
		return r.Name == "Seed Starter" && r.TermMonths == 6
	})).Return(&domain.LoanProduct{ID: productID, Name: "Seed Starter"}, nil)
	s.products.On("List", mock.Anything).Return([]*domain.LoanProduct{{ID: productID}}, nil)
	s.products.On("Get", mock.Anything, missingID).Return(nil, customError.WrapProductNotFound(missingID.String()))
	s.products.On("Delete", mock.Anything, productID).Return(nil)

	rec, _ := s.do(t, http.MethodPost, "/api/v1/products",
		`{"name":"Seed Starter","interest_rate":"12","min_amount":"500","max_amount":"5000","term_months":6}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/v1/products", `{"name":"","term_months":6}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/products", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := s.do(t, http.MethodGet, "/api/v1/products/"+missingID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, customError.ErrCodeProductNotFound, env.Code)

	rec, _ = s.do(t, http.MethodDelete, "/api/v1/products/"+productID.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	s.products.AssertExpectations(t)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/loans", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), IdempotencyHeader)
}
