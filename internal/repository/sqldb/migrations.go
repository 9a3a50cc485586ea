package sqldb

import (
	"context"

	"github.com/jmoiron/sqlx"

	"marketpulse/pkg/errors"
)

var schemas = map[string][]string{
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS signals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			symbol TEXT NOT NULL,
			final_action TEXT NOT NULL,
			final_score REAL NOT NULL,
			price REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ai_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			symbol TEXT NOT NULL,
			predicted_direction TEXT NOT NULL,
			confidence REAL NOT NULL,
			entry_price REAL NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			actual_result REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ai_history_status_ts ON ai_history (status, timestamp)`,
	},
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS signals (
			id BIGSERIAL PRIMARY KEY,
			timestamp TEXT NOT NULL,
			symbol TEXT NOT NULL,
			final_action TEXT NOT NULL,
			final_score DOUBLE PRECISION NOT NULL,
			price DOUBLE PRECISION NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ai_history (
			id BIGSERIAL PRIMARY KEY,
			timestamp TEXT NOT NULL,
			symbol TEXT NOT NULL,
			predicted_direction TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			actual_result DOUBLE PRECISION
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ai_history_status_ts ON ai_history (status, timestamp)`,
	},
}

// Migrate creates the signals and ai_history tables if they do not exist
func Migrate(ctx context.Context, db *sqlx.DB) error {
	stmts, ok := schemas[db.DriverName()]
	if !ok {
		return errors.Wrapf(errors.ErrInvalidInput, "no schema for driver %q", db.DriverName())
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to migrate validation store")
		}
	}
	return nil
}
