package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segyhp/agriloan-engine/internal/config"
	"github.com/segyhp/agriloan-engine/internal/notify"
	"github.com/segyhp/agriloan-engine/internal/repository"
	"github.com/segyhp/agriloan-engine/internal/service"
	"github.com/segyhp/agriloan-engine/pkg/logger"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const jobTimeout = 10 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, "agriloan-scheduler")
	log.Info().Msg("Starting lending scheduler...")

	db, err := repository.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	loanRepo := repository.NewLoanRepository(db)

	var mailer notify.Mailer = notify.LogMailer{}
	if cfg.SMTP.Enabled {
		mailer = notify.NewSMTPMailer(cfg.SMTP)
	}

	reminders := service.NewReminderService(loanRepo, mailer, cfg)
	analytics := service.NewAnalyticsService(loanRepo, cfg.Business.HistoryLimit)

	cronLog := cronLogger{}
	c := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	if err := setupCronJobs(c, cfg, reminders, analytics); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule jobs")
	}

	c.Start()
	log.Info().Msg("Scheduler started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down scheduler...")
	<-c.Stop().Done()
	log.Info().Msg("Scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, reminders *service.ReminderService, analytics *service.AnalyticsService) error {
	// Daily due-date reminders
	if _, err := c.AddFunc(cfg.Scheduler.ReminderSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		log.Info().Msg("Running due-date reminder job...")
		if _, err := reminders.SendDueReminders(ctx, time.Now()); err != nil {
			log.Error().Err(err).Msg("Reminder job finished with errors")
		}
	}); err != nil {
		return err
	}

	// Weekly portfolio export
	if _, err := c.AddFunc(cfg.Scheduler.ExportSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		log.Info().Msg("Running portfolio export job...")
		if _, err := analytics.SavePortfolio(ctx, cfg.Report.Dir); err != nil {
			log.Error().Err(err).Msg("Portfolio export failed")
		}
	}); err != nil {
		return err
	}

	log.Info().
		Str("reminders", cfg.Scheduler.ReminderSpec).
		Str("export", cfg.Scheduler.ExportSpec).
		Msg("Cron jobs scheduled successfully")
	return nil
}

// cronLogger routes cron's own messages through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
