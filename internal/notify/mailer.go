// Package notify delivers borrower e-mails.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/segyhp/agriloan-engine/internal/config"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gopkg.in/gomail.v2"
)

// Reminder describes one upcoming installment.
type Reminder struct {
	To         string
	BorrowerID uuid.UUID
	LoanID     uuid.UUID
	Sequence   int
	DueDate    time.Time
	Amount     decimal.Decimal
}

// Mailer sends due-date reminders.
type Mailer interface {
	SendReminder(ctx context.Context, reminder Reminder) error
}

// SMTPMailer sends through an SMTP relay with gomail.
type SMTPMailer struct {
	from    string
	deliver func(msgs ...*gomail.Message) error
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)

	return &SMTPMailer{
		from:    cfg.From,
		deliver: dialer.DialAndSend,
	}
}

// NewMailerWithSender delivers through an existing gomail.Sender.
func NewMailerWithSender(from string, sender gomail.Sender) *SMTPMailer {
	return &SMTPMailer{
		from: from,
		deliver: func(msgs ...*gomail.Message) error {
			return gomail.Send(sender, msgs...)
		},
	}
}

func (m *SMTPMailer) SendReminder(ctx context.Context, reminder Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := m.deliver(BuildReminder(m.from, reminder)); err != nil {
		return fmt.Errorf("send reminder to %s: %w", reminder.To, err)
	}
	return nil
}

// BuildReminder renders the reminder e-mail.
func BuildReminder(from string, r Reminder) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", r.To)
	msg.SetHeader("Subject", fmt.Sprintf("Installment %d due on %s", r.Sequence+1, r.DueDate.Format("02 Jan 2006")))
	msg.SetBody("text/html", fmt.Sprintf(`
		<h2>Upcoming loan installment</h2>
		<p>Loan: %s</p>
		<p>Installment: %d</p>
		<p>Amount due: %s</p>
		<p>Due date: %s</p>
	`, r.LoanID, r.Sequence+1, r.Amount.StringFixed(2), r.DueDate.Format("02 Jan 2006")))
	return msg
}

// LogMailer only logs reminders. Used when SMTP is disabled.
type LogMailer struct{}

func (LogMailer) SendReminder(_ context.Context, r Reminder) error {
	log.Info().
		Str("to", r.To).
		Str("loan_id", r.LoanID.String()).
		Int("sequence", r.Sequence).
		Time("due_date", r.DueDate).
		Str("amount", r.Amount.StringFixed(2)).
		Msg("Reminder not sent, SMTP disabled")
	return nil
}
