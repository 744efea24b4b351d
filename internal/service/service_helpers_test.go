package service

import (
	"time"

	"github.com/segyhp/agriloan-engine/internal/config"
	"github.com/segyhp/agriloan-engine/internal/domain"
	"github.com/segyhp/agriloan-engine/internal/engine"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Scheduler: config.SchedulerConfig{Timezone: "UTC"},
		Business: config.BusinessConfig{
			DefaultTermMonths: 12,
			ReminderDaysAhead: 3,
			HistoryLimit:      10,
			PaymentLockTTL:    30 * time.Second,
			IdempotencyTTL:    24 * time.Hour,
			DefaultPageSize:   20,
		},
	}
}

func fixedClock() time.Time {
	return testNow
}

// interestFreeLoan returns a loan of four 300.00 installments in the given status.
func interestFreeLoan(status domain.LoanStatus) *domain.Loan {
	loan, err := engine.NewLoan(uuid.New(), domain.LoanTerms{
		Principal:    decimal.NewFromInt(1200),
		AnnualRate:   decimal.Zero,
		Term:         4,
		TermUnit:     domain.TermUnitMonths,
		Type:         "seed",
		OriginatedAt: testNow.AddDate(0, -1, 0),
	}, testNow.AddDate(0, -1, 0))
	if err != nil {
		panic(err)
	}
	loan.Status = status
	loan.Version = 3
	return loan
}
