package handler

import (
	"net/http"

	"github.com/segyhp/agriloan-engine/pkg/response"

	"github.com/gorilla/mux"
)

// NewRouter wires every endpoint under /api/v1 plus the health probes.
// The middleware wraps the whole router so CORS preflights and unmatched
// routes are handled too.
func NewRouter(loans *LoanHandler, analytics *AnalyticsHandler, products *ProductHandler, health *HealthHandler) http.Handler {
	router := mux.NewRouter()

	if health != nil {
		router.HandleFunc("/health", health.Health).Methods(http.MethodGet)
		router.HandleFunc("/health/ready", health.Ready).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/loans", loans.Apply).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}", loans.GetLoan).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/payments", loans.MakePayment).Methods(http.MethodPost)
	api.HandleFunc("/quotes", loans.Quote).Methods(http.MethodGet)

	api.HandleFunc("/borrowers/{borrowerId}/loans", loans.BorrowerLoans).Methods(http.MethodGet)
	api.HandleFunc("/borrowers/{borrowerId}/loans/current", loans.CurrentLoan).Methods(http.MethodGet)
	api.HandleFunc("/borrowers/{borrowerId}/installments", loans.BorrowerInstallments).Methods(http.MethodGet)
	api.HandleFunc("/borrowers/{borrowerId}/analytics", analytics.Borrower).Methods(http.MethodGet)

	api.HandleFunc("/admin/loans", loans.ListLoans).Methods(http.MethodGet)
	api.HandleFunc("/admin/loans/{loanId}/status", loans.UpdateStatus).Methods(http.MethodPatch)
	api.HandleFunc("/admin/analytics", analytics.Portfolio).Methods(http.MethodGet)
	api.HandleFunc("/admin/analytics/export", analytics.Export).Methods(http.MethodGet)

	api.HandleFunc("/products", products.List).Methods(http.MethodGet)
	api.HandleFunc("/products", products.Create).Methods(http.MethodPost)
	api.HandleFunc("/products/{productId}", products.Get).Methods(http.MethodGet)
	api.HandleFunc("/products/{productId}", products.Delete).Methods(http.MethodDelete)

	return response.LoggingMiddleware(response.CORSMiddleware(router))
}
