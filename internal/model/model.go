package model

import (
	"time"

	"fleetops/server/internal/timesheet"
)

type Role string

const (
	RoleDriver      Role = "driver"
	RoleMaintenance Role = "maintenance"
	RoleAdmin       Role = "admin"
)

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Banned       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type RefreshSession struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	UserAgent *string
	IPAddress *string
}

type Truck struct {
	ID                             string
	UnitNumber                     string
	Make                           *string
	Model                          *string
	SerialNumber                   *string
	LastOdometerReading            *int64
	LastMaintenanceOdometerReading *int64
	MaintenanceIntervalKm          *int64
	CreatedAt                      time.Time
	UpdatedAt                      time.Time
}

type Timesheet struct {
	ID               string
	DriverID         string
	TruckID          string
	ShiftStart       time.Time
	ShiftEnd         *time.Time
	StartOdometer    *int64
	EndOdometer      int64
	Status           timesheet.Status
	ApproverID       *string
	ApprovedAt       *time.Time
	RejectionReason  *string
	BillingRateID    *string
	TotalBilledCents *int64
	Notes            *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TimesheetDetail is a timesheet joined with the summaries the list and
// get endpoints return alongside the record.
type TimesheetDetail struct {
	Timesheet
	DriverName      string
	TruckUnitNumber string
	ApproverName    *string
}

type BillingRate struct {
	ID               string
	Name             string
	RatePerHourCents int64
	Currency         string
	Description      *string
	Active           bool
	CreatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type MaintenanceLog struct {
	ID              string
	TruckID         string
	PerformedBy     string
	ServiceDate     time.Time
	OdometerReading int64
	Description     string
	CostCents       *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
