package repository

import (
	"context"

	"fleetops/server/internal/model"
)

const billingRateColumns = `id, name, rate_per_hour_cents, currency, description, active, created_by, created_at, updated_at`

func scanBillingRate(row interface{ Scan(dest ...any) error }) (model.BillingRate, error) {
	var rate model.BillingRate
	err := row.Scan(
		&rate.ID,
		&rate.Name,
		&rate.RatePerHourCents,
		&rate.Currency,
		&rate.Description,
		&rate.Active,
		&rate.CreatedBy,
		&rate.CreatedAt,
		&rate.UpdatedAt,
	)
	return rate, err
}

func (s *Store) CreateBillingRate(ctx context.Context, rate model.BillingRate) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO billing_rates (id, name, rate_per_hour_cents, currency, description, active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rate.ID, rate.Name, rate.RatePerHourCents, rate.Currency, rate.Description, rate.Active, rate.CreatedBy, rate.CreatedAt, rate.UpdatedAt)
	return err
}

func (s *Store) GetBillingRateByID(ctx context.Context, rateID string) (model.BillingRate, error) {
	row := s.db.QueryRow(ctx, `SELECT `+billingRateColumns+` FROM billing_rates WHERE id = $1`, rateID)
	return scanBillingRate(row)
}

func (s *Store) ListBillingRates(ctx context.Context, activeOnly bool) ([]model.BillingRate, error) {
	query := `SELECT ` + billingRateColumns + ` FROM billing_rates`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rates []model.BillingRate
	for rows.Next() {
		rate, err := scanBillingRate(rows)
		if err != nil {
			return nil, err
		}
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}

func (s *Store) UpdateBillingRate(ctx context.Context, rate model.BillingRate) error {
	_, err := s.db.Exec(ctx, `
		UPDATE billing_rates
		SET name = $1, rate_per_hour_cents = $2, currency = $3, description = $4, active = $5, updated_at = $6
		WHERE id = $7
	`, rate.Name, rate.RatePerHourCents, rate.Currency, rate.Description, rate.Active, rate.UpdatedAt, rate.ID)
	return err
}

func (s *Store) BillingRateExists(ctx context.Context, rateID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM billing_rates WHERE id = $1)`, rateID).Scan(&exists)
	return exists, err
}

func (s *Store) CountBillingRateReferences(ctx context.Context, rateID string) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM timesheets WHERE billing_rate_id = $1`, rateID).Scan(&count)
	return count, err
}

func (s *Store) DeleteBillingRate(ctx context.Context, rateID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM billing_rates WHERE id = $1`, rateID)
	return err
}
