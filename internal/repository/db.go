package repository

import (
	"fmt"

	"github.com/segyhp/agriloan-engine/internal/config"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Open connects to the configured database, applies pool settings and runs
// the embedded migrations when AutoMigrate is set. The caller must import
// the matching driver.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if cfg.AutoMigrate {
		if err := Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
		log.Info().Str("driver", cfg.Driver).Msg("database migrations applied")
	}

	return db, nil
}
