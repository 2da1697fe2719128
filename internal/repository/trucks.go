package repository

import (
	"context"
	"time"

	"fleetops/server/internal/model"
)

const truckColumns = `id, unit_number, make, model, serial_number, last_odometer_reading,
	last_maintenance_odometer_reading, maintenance_interval_km, created_at, updated_at`

func scanTruck(row interface{ Scan(dest ...any) error }) (model.Truck, error) {
	var truck model.Truck
	err := row.Scan(
		&truck.ID,
		&truck.UnitNumber,
		&truck.Make,
		&truck.Model,
		&truck.SerialNumber,
		&truck.LastOdometerReading,
		&truck.LastMaintenanceOdometerReading,
		&truck.MaintenanceIntervalKm,
		&truck.CreatedAt,
		&truck.UpdatedAt,
	)
	return truck, err
}

func (s *Store) CreateTruck(ctx context.Context, truck model.Truck) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trucks (id, unit_number, make, model, serial_number, last_odometer_reading,
			last_maintenance_odometer_reading, maintenance_interval_km, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, truck.ID, truck.UnitNumber, truck.Make, truck.Model, truck.SerialNumber, truck.LastOdometerReading,
		truck.LastMaintenanceOdometerReading, truck.MaintenanceIntervalKm, truck.CreatedAt, truck.UpdatedAt)
	return err
}

func (s *Store) GetTruckByID(ctx context.Context, truckID string) (model.Truck, error) {
	row := s.db.QueryRow(ctx, `SELECT `+truckColumns+` FROM trucks WHERE id = $1`, truckID)
	return scanTruck(row)
}

func (s *Store) ListTrucks(ctx context.Context) ([]model.Truck, error) {
	rows, err := s.db.Query(ctx, `SELECT `+truckColumns+` FROM trucks ORDER BY unit_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trucks []model.Truck
	for rows.Next() {
		truck, err := scanTruck(rows)
		if err != nil {
			return nil, err
		}
		trucks = append(trucks, truck)
	}
	return trucks, rows.Err()
}

func (s *Store) UpdateTruck(ctx context.Context, truck model.Truck) error {
	_, err := s.db.Exec(ctx, `
		UPDATE trucks
		SET unit_number = $1, make = $2, model = $3, serial_number = $4, last_odometer_reading = $5,
			last_maintenance_odometer_reading = $6, maintenance_interval_km = $7, updated_at = $8
		WHERE id = $9
	`, truck.UnitNumber, truck.Make, truck.Model, truck.SerialNumber, truck.LastOdometerReading,
		truck.LastMaintenanceOdometerReading, truck.MaintenanceIntervalKm, truck.UpdatedAt, truck.ID)
	return err
}

// UpdateTruckOdometer mirrors the end odometer of the most recent shift
// onto the truck record and refreshes its updated timestamp.
func (s *Store) UpdateTruckOdometer(ctx context.Context, truckID string, reading int64, now time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE trucks
		SET last_odometer_reading = $1, updated_at = $2
		WHERE id = $3
	`, reading, now, truckID)
	return err
}

func (s *Store) UpdateTruckMaintenanceOdometer(ctx context.Context, truckID string, reading int64, now time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE trucks
		SET last_maintenance_odometer_reading = $1, updated_at = $2
		WHERE id = $3
	`, reading, now, truckID)
	return err
}

func (s *Store) TruckExists(ctx context.Context, truckID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM trucks WHERE id = $1)`, truckID).Scan(&exists)
	return exists, err
}

// CountTruckReferences reports how many timesheets or maintenance logs
// still reference the truck; deletion is blocked while any remain.
func (s *Store) CountTruckReferences(ctx context.Context, truckID string) (int64, error) {
	var count int64
	row := s.db.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM timesheets WHERE truck_id = $1)
		     + (SELECT COUNT(*) FROM maintenance_logs WHERE truck_id = $1)
	`, truckID)
	err := row.Scan(&count)
	return count, err
}

func (s *Store) DeleteTruck(ctx context.Context, truckID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM trucks WHERE id = $1`, truckID)
	return err
}

// ListTrucksDueForMaintenance returns trucks whose odometer has advanced
// at least the configured interval past the last recorded service.
func (s *Store) ListTrucksDueForMaintenance(ctx context.Context) ([]model.Truck, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+truckColumns+`
		FROM trucks
		WHERE last_odometer_reading IS NOT NULL
		  AND maintenance_interval_km IS NOT NULL
		  AND last_odometer_reading - COALESCE(last_maintenance_odometer_reading, 0) >= maintenance_interval_km
		ORDER BY unit_number
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trucks []model.Truck
	for rows.Next() {
		truck, err := scanTruck(rows)
		if err != nil {
			return nil, err
		}
		trucks = append(trucks, truck)
	}
	return trucks, rows.Err()
}
