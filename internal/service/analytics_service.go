package service

import (
	"context"
	"io"
	"time"

	"github.com/segyhp/agriloan-engine/internal/domain"
	"github.com/segyhp/agriloan-engine/internal/engine"
	"github.com/segyhp/agriloan-engine/internal/report"
	"github.com/segyhp/agriloan-engine/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AnalyticsService recomputes borrower and portfolio figures from the loan
// ledger on every call; nothing is cached.
type AnalyticsService struct {
	LoanRepo   repository.LoanRepository
	aggregator *engine.Aggregator
	now        func() time.Time
}

func NewAnalyticsService(loanRepo repository.LoanRepository, historyLimit int) *AnalyticsService {
	return &AnalyticsService{
		LoanRepo:   loanRepo,
		aggregator: engine.NewAggregator(historyLimit),
		now:        time.Now,
	}
}

func (s *AnalyticsService) BorrowerAnalytics(ctx context.Context, borrowerID uuid.UUID) (*domain.BorrowerAnalytics, error) {
	loans, err := s.LoanRepo.ListByBorrower(ctx, borrowerID)
	if err != nil {
		return nil, err
	}
	return s.aggregator.BorrowerAnalytics(loans, s.now().UTC()), nil
}

func (s *AnalyticsService) PortfolioAnalytics(ctx context.Context) (*domain.PortfolioAnalytics, error) {
	loans, err := s.LoanRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.aggregator.PortfolioAnalytics(loans, s.now().UTC()), nil
}

// ExportPortfolio writes the portfolio workbook to w.
func (s *AnalyticsService) ExportPortfolio(ctx context.Context, w io.Writer) error {
	stats, err := s.PortfolioAnalytics(ctx)
	if err != nil {
		return err
	}
	return report.WritePortfolio(w, stats, s.now().UTC())
}

// SavePortfolio stores the portfolio workbook in dir and returns its path.
func (s *AnalyticsService) SavePortfolio(ctx context.Context, dir string) (string, error) {
	stats, err := s.PortfolioAnalytics(ctx)
	if err != nil {
		return "", err
	}

	path, err := report.SavePortfolio(dir, stats, s.now().UTC())
	if err != nil {
		return "", err
	}

	log.Info().Str("path", path).Int("loans", stats.TotalLoans).Msg("portfolio report saved")
	return path, nil
}
