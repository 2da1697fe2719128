package repository

import (
	"context"

	"fleetops/server/internal/model"
)

const timesheetColumns = `t.id, t.driver_id, t.truck_id, t.shift_start, t.shift_end,
	t.start_odometer, t.end_odometer, t.status, t.approver_id, t.approved_at,
	t.rejection_reason, t.billing_rate_id, t.total_billed_cents, t.notes,
	t.created_at, t.updated_at`

func scanTimesheet(row interface{ Scan(dest ...any) error }, ts *model.Timesheet) error {
	return row.Scan(
		&ts.ID,
		&ts.DriverID,
		&ts.TruckID,
		&ts.ShiftStart,
		&ts.ShiftEnd,
		&ts.StartOdometer,
		&ts.EndOdometer,
		&ts.Status,
		&ts.ApproverID,
		&ts.ApprovedAt,
		&ts.RejectionReason,
		&ts.BillingRateID,
		&ts.TotalBilledCents,
		&ts.Notes,
		&ts.CreatedAt,
		&ts.UpdatedAt,
	)
}

func scanTimesheetDetail(row interface{ Scan(dest ...any) error }) (model.TimesheetDetail, error) {
	var detail model.TimesheetDetail
	err := row.Scan(
		&detail.ID,
		&detail.DriverID,
		&detail.TruckID,
		&detail.ShiftStart,
		&detail.ShiftEnd,
		&detail.StartOdometer,
		&detail.EndOdometer,
		&detail.Status,
		&detail.ApproverID,
		&detail.ApprovedAt,
		&detail.RejectionReason,
		&detail.BillingRateID,
		&detail.TotalBilledCents,
		&detail.Notes,
		&detail.CreatedAt,
		&detail.UpdatedAt,
		&detail.DriverName,
		&detail.TruckUnitNumber,
		&detail.ApproverName,
	)
	return detail, err
}

const timesheetDetailQuery = `
	SELECT ` + timesheetColumns + `, d.name, k.unit_number, a.name
	FROM timesheets t
	JOIN users d ON d.id = t.driver_id
	JOIN trucks k ON k.id = t.truck_id
	LEFT JOIN users a ON a.id = t.approver_id`

func (s *Store) CreateTimesheet(ctx context.Context, ts model.Timesheet) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO timesheets (id, driver_id, truck_id, shift_start, shift_end, start_odometer,
			end_odometer, status, approver_id, approved_at, rejection_reason, billing_rate_id,
			total_billed_cents, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, ts.ID, ts.DriverID, ts.TruckID, ts.ShiftStart, ts.ShiftEnd, ts.StartOdometer,
		ts.EndOdometer, ts.Status, ts.ApproverID, ts.ApprovedAt, ts.RejectionReason, ts.BillingRateID,
		ts.TotalBilledCents, ts.Notes, ts.CreatedAt, ts.UpdatedAt)
	return err
}

func (s *Store) GetTimesheetByID(ctx context.Context, timesheetID string) (model.Timesheet, error) {
	var ts model.Timesheet
	row := s.db.QueryRow(ctx, `SELECT `+timesheetColumns+` FROM timesheets t WHERE t.id = $1`, timesheetID)
	err := scanTimesheet(row, &ts)
	return ts, err
}

func (s *Store) GetTimesheetDetail(ctx context.Context, timesheetID string) (model.TimesheetDetail, error) {
	row := s.db.QueryRow(ctx, timesheetDetailQuery+` WHERE t.id = $1`, timesheetID)
	return scanTimesheetDetail(row)
}

func (s *Store) ListTimesheetDetails(ctx context.Context) ([]model.TimesheetDetail, error) {
	rows, err := s.db.Query(ctx, timesheetDetailQuery+` ORDER BY t.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []model.TimesheetDetail
	for rows.Next() {
		detail, err := scanTimesheetDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, detail)
	}
	return details, rows.Err()
}

func (s *Store) ListTimesheetDetailsByDriver(ctx context.Context, driverID string) ([]model.TimesheetDetail, error) {
	rows, err := s.db.Query(ctx, timesheetDetailQuery+` WHERE t.driver_id = $1 ORDER BY t.created_at DESC`, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []model.TimesheetDetail
	for rows.Next() {
		detail, err := scanTimesheetDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, detail)
	}
	return details, rows.Err()
}

func (s *Store) UpdateTimesheet(ctx context.Context, ts model.Timesheet) error {
	_, err := s.db.Exec(ctx, `
		UPDATE timesheets
		SET truck_id = $1, shift_start = $2, shift_end = $3, start_odometer = $4, end_odometer = $5,
			status = $6, approver_id = $7, approved_at = $8, rejection_reason = $9,
			billing_rate_id = $10, total_billed_cents = $11, notes = $12, updated_at = $13
		WHERE id = $14
	`, ts.TruckID, ts.ShiftStart, ts.ShiftEnd, ts.StartOdometer, ts.EndOdometer,
		ts.Status, ts.ApproverID, ts.ApprovedAt, ts.RejectionReason,
		ts.BillingRateID, ts.TotalBilledCents, ts.Notes, ts.UpdatedAt, ts.ID)
	return err
}

func (s *Store) DeleteTimesheet(ctx context.Context, timesheetID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM timesheets WHERE id = $1`, timesheetID)
	return err
}
