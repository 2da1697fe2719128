package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate applies the schema. Every statement is idempotent so the
// server can run it unconditionally at startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			banned BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS refresh_token_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token_hash TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			revoked_at TIMESTAMPTZ,
			user_agent TEXT,
			ip_address TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_sessions_user ON refresh_token_sessions(user_id)`,
		`CREATE TABLE IF NOT EXISTS trucks (
			id TEXT PRIMARY KEY,
			unit_number TEXT NOT NULL UNIQUE,
			make TEXT,
			model TEXT,
			serial_number TEXT,
			last_odometer_reading BIGINT,
			last_maintenance_odometer_reading BIGINT,
			maintenance_interval_km BIGINT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS billing_rates (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			rate_per_hour_cents BIGINT NOT NULL,
			currency TEXT NOT NULL,
			description TEXT,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_by TEXT NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS timesheets (
			id TEXT PRIMARY KEY,
			driver_id TEXT NOT NULL REFERENCES users(id),
			truck_id TEXT NOT NULL REFERENCES trucks(id),
			shift_start TIMESTAMPTZ NOT NULL,
			shift_end TIMESTAMPTZ,
			start_odometer BIGINT,
			end_odometer BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			approver_id TEXT REFERENCES users(id),
			approved_at TIMESTAMPTZ,
			rejection_reason TEXT,
			billing_rate_id TEXT REFERENCES billing_rates(id),
			total_billed_cents BIGINT,
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_timesheets_driver ON timesheets(driver_id)`,
		`CREATE INDEX IF NOT EXISTS idx_timesheets_truck ON timesheets(truck_id)`,
		`CREATE INDEX IF NOT EXISTS idx_timesheets_status ON timesheets(status)`,
		`CREATE TABLE IF NOT EXISTS maintenance_logs (
			id TEXT PRIMARY KEY,
			truck_id TEXT NOT NULL REFERENCES trucks(id),
			performed_by TEXT NOT NULL REFERENCES users(id),
			service_date TIMESTAMPTZ NOT NULL,
			odometer_reading BIGINT NOT NULL,
			description TEXT NOT NULL,
			cost_cents BIGINT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_maintenance_logs_truck ON maintenance_logs(truck_id)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
