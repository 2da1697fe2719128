package timesheet

import "fmt"

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// DefaultRejectionReason is stored when an admin rejects a timesheet
// without supplying a reason.
const DefaultRejectionReason = "No reason provided"

func ParseStatus(value string) (Status, error) {
	switch Status(value) {
	case StatusPending, StatusApproved, StatusRejected:
		return Status(value), nil
	default:
		return "", fmt.Errorf("invalid timesheet status: %q", value)
	}
}
