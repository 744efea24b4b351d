package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/segyhp/agriloan-engine/pkg/response"

	"github.com/rs/zerolog/log"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AnalyticsHandler struct {
	service AnalyticsService
}

func NewAnalyticsHandler(service AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// Borrower handles GET /borrowers/{borrowerId}/analytics
func (h *AnalyticsHandler) Borrower(w http.ResponseWriter, r *http.Request) {
	borrowerID, ok := pathUUID(w, r, "borrowerId")
	if !ok {
		return
	}

	stats, err := h.service.BorrowerAnalytics(r.Context(), borrowerID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, stats)
}

// Portfolio handles GET /admin/analytics
func (h *AnalyticsHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.PortfolioAnalytics(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, stats)
}

// Export handles GET /admin/analytics/export and streams an xlsx workbook.
func (h *AnalyticsHandler) Export(w http.ResponseWriter, r *http.Request) {
	// Buffered so a failure can still be answered with a JSON error.
	var buf bytes.Buffer
	if err := h.service.ExportPortfolio(r.Context(), &buf); err != nil {
		response.FromError(w, err)
		return
	}

	filename := fmt.Sprintf("portfolio-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)

	if _, err := buf.WriteTo(w); err != nil {
		log.Error().Err(err).Msg("Failed to write portfolio export")
	}
}
