package repository

import (
	"context"

	"fleetops/server/internal/model"
)

const maintenanceLogColumns = `id, truck_id, performed_by, service_date, odometer_reading, description, cost_cents, created_at, updated_at`

func scanMaintenanceLog(row interface{ Scan(dest ...any) error }) (model.MaintenanceLog, error) {
	var entry model.MaintenanceLog
	err := row.Scan(
		&entry.ID,
		&entry.TruckID,
		&entry.PerformedBy,
		&entry.ServiceDate,
		&entry.OdometerReading,
		&entry.Description,
		&entry.CostCents,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	return entry, err
}

func (s *Store) CreateMaintenanceLog(ctx context.Context, entry model.MaintenanceLog) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO maintenance_logs (id, truck_id, performed_by, service_date, odometer_reading, description, cost_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.TruckID, entry.PerformedBy, entry.ServiceDate, entry.OdometerReading, entry.Description, entry.CostCents, entry.CreatedAt, entry.UpdatedAt)
	return err
}

func (s *Store) GetMaintenanceLogByID(ctx context.Context, logID string) (model.MaintenanceLog, error) {
	row := s.db.QueryRow(ctx, `SELECT `+maintenanceLogColumns+` FROM maintenance_logs WHERE id = $1`, logID)
	return scanMaintenanceLog(row)
}

func (s *Store) ListMaintenanceLogs(ctx context.Context, truckID *string) ([]model.MaintenanceLog, error) {
	query := `SELECT ` + maintenanceLogColumns + ` FROM maintenance_logs`
	args := []any{}
	if truckID != nil {
		query += ` WHERE truck_id = $1`
		args = append(args, *truckID)
	}
	query += ` ORDER BY service_date DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.MaintenanceLog
	for rows.Next() {
		entry, err := scanMaintenanceLog(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) DeleteMaintenanceLog(ctx context.Context, logID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM maintenance_logs WHERE id = $1`, logID)
	return err
}
