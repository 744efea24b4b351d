// Package report renders portfolio analytics as xlsx workbooks.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/segyhp/agriloan-engine/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet = "Summary"
	LoansSheet   = "Loans"
	StatusSheet  = "Status"
)

var loanHeaders = []string{"Loan ID", "Type", "Status", "Created", "Principal", "Interest", "Repaid", "Remaining"}

// WritePortfolio writes the workbook for stats to w.
func WritePortfolio(w io.Writer, stats *domain.PortfolioAnalytics, generatedAt time.Time) error {
	f, err := buildWorkbook(stats, generatedAt)
	if err != nil {
		return err
	}
	defer f.Close()

	return f.Write(w)
}

// SavePortfolio writes the workbook into dir and returns the file path.
func SavePortfolio(dir string, stats *domain.PortfolioAnalytics, generatedAt time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	f, err := buildWorkbook(stats, generatedAt)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, fmt.Sprintf("portfolio-%s.xlsx", generatedAt.Format("20060102-150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return path, nil
}

type sheet struct {
	name  string
	write func(f *excelize.File) error
}

var closeWorkbook = func(f *excelize.File) error { return f.Close() }

func buildWorkbook(stats *domain.PortfolioAnalytics, generatedAt time.Time) (*excelize.File, error) {
	return assembleWorkbook([]sheet{
		{SummarySheet, func(f *excelize.File) error { return writeSummary(f, stats, generatedAt) }},
		{LoansSheet, func(f *excelize.File) error { return writeLoans(f, stats.LoanBreakdown) }},
		{StatusSheet, func(f *excelize.File) error { return writeStatus(f, stats.StatusDistribution) }},
	})
}

// assembleWorkbook adds sheets in order, the first one replacing the default
// sheet. The file is closed before any error is returned.
func assembleWorkbook(sheets []sheet) (_ *excelize.File, err error) {
	f := excelize.NewFile()
	defer func() {
		if err != nil {
			_ = closeWorkbook(f)
		}
	}()

	for i, s := range sheets {
		if i == 0 {
			err = f.SetSheetName("Sheet1", s.name)
		} else {
			_, err = f.NewSheet(s.name)
		}
		if err != nil {
			return nil, fmt.Errorf("add sheet %s: %w", s.name, err)
		}
		if err = s.write(f); err != nil {
			return nil, fmt.Errorf("write sheet %s: %w", s.name, err)
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func writeSummary(f *excelize.File, stats *domain.PortfolioAnalytics, generatedAt time.Time) error {
	rows := [][]interface{}{
		{"Generated at", generatedAt.Format(time.RFC3339)},
		{"Total loans", stats.TotalLoans},
		{"Total borrowers", stats.TotalBorrowers},
		{"Active loans", stats.ActiveLoans},
		{"Pending loans", stats.PendingLoans},
		{"Approved loans", stats.ApprovedLoans},
		{"Rejected loans", stats.RejectedLoans},
		{"Paid loans", stats.PaidLoans},
		{"Total borrowed", money(stats.TotalAmountBorrowed)},
		{"Total repaid", money(stats.TotalAmountRepaid)},
		{"Interest paid", money(stats.TotalInterestPaid)},
		{"Outstanding balance", money(stats.OutstandingBalance)},
		{"Repayment progress %", money(stats.RepaymentProgress)},
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(SummarySheet, "A", "A", 24)
}

func writeLoans(f *excelize.File, breakdown []domain.LoanBreakdown) error {
	for i, header := range loanHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(LoansSheet, cell, header); err != nil {
			return err
		}
	}

	for i, b := range breakdown {
		row := []interface{}{
			b.LoanID.String(),
			b.Type,
			string(b.Status),
			b.CreatedAt.Format("2006-01-02"),
			money(b.Principal),
			money(b.Interest),
			money(b.RepaidAmount),
			money(b.RemainingAmount),
		}
		if err := f.SetSheetRow(LoansSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(LoansSheet, "A", "A", 38)
}

func writeStatus(f *excelize.File, distribution []domain.StatusDistribution) error {
	header := []interface{}{"Status", "Loans", "Principal"}
	if err := f.SetSheetRow(StatusSheet, "A1", &header); err != nil {
		return err
	}

	for i, d := range distribution {
		row := []interface{}{string(d.Status), d.Count, money(d.Amount)}
		if err := f.SetSheetRow(StatusSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}
	return nil
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
