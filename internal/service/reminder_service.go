package service

import (
	"context"
	"errors"
	"time"

	"github.com/segyhp/agriloan-engine/internal/config"
	"github.com/segyhp/agriloan-engine/internal/notify"
	"github.com/segyhp/agriloan-engine/internal/repository"

	"github.com/rs/zerolog/log"
)

// ReminderService e-mails borrowers about installments falling due soon.
type ReminderService struct {
	LoanRepo repository.LoanRepository
	mailer   notify.Mailer
	config   *config.Config
}

func NewReminderService(loanRepo repository.LoanRepository, mailer notify.Mailer, config *config.Config) *ReminderService {
	return &ReminderService{
		LoanRepo: loanRepo,
		mailer:   mailer,
		config:   config,
	}
}

// ReminderWindow returns [start of now's day, start of the day after the
// last day in the reminder window) in the scheduler time zone.
func (s *ReminderService) ReminderWindow(now time.Time) (time.Time, time.Time) {
	local := now.In(s.config.Location())
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	to := from.AddDate(0, 0, s.config.Business.ReminderDaysAhead+1)
	return from.UTC(), to.UTC()
}

// SendDueReminders sends one reminder per unpaid installment due inside the
// reminder window. Loans without a borrower e-mail are skipped. A failed
// delivery does not stop the run; all failures are returned together.
func (s *ReminderService) SendDueReminders(ctx context.Context, now time.Time) (int, error) {
	from, to := s.ReminderWindow(now)

	loans, err := s.LoanRepo.ListWithInstallmentsDueBetween(ctx, from, to)
	if err != nil {
		return 0, err
	}

	sent := 0
	var errs []error
	for _, loan := range loans {
		if loan.BorrowerEmail == "" {
			log.Debug().Str("loan_id", loan.ID.String()).Msg("skipping reminder, no borrower e-mail")
			continue
		}

		for _, inst := range loan.Installments {
			if inst.IsPaid() || inst.DueDate.Before(from) || !inst.DueDate.Before(to) {
				continue
			}

			reminder := notify.Reminder{
				To:         loan.BorrowerEmail,
				BorrowerID: loan.BorrowerID,
				LoanID:     loan.ID,
				Sequence:   inst.Sequence,
				DueDate:    inst.DueDate,
				Amount:     inst.Amount,
			}
			if err := s.mailer.SendReminder(ctx, reminder); err != nil {
				log.Error().Err(err).
					Str("loan_id", loan.ID.String()).
					Int("sequence", inst.Sequence).
					Msg("failed to send reminder")
				errs = append(errs, err)
				continue
			}
			sent++
		}
	}

	log.Info().Int("sent", sent).Int("failed", len(errs)).Msg("due-date reminders processed")
	return sent, errors.Join(errs...)
}
