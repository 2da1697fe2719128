package timesheet

import "time"

// ApprovalFields is the set of columns a status transition owns. Every
// transition returns the full set so callers overwrite all four fields
// at once instead of patching them piecemeal.
type ApprovalFields struct {
	Status          Status
	ApproverID      *string
	ApprovedAt      *time.Time
	RejectionReason *string
}

// Transition computes the approval fields resulting from an admin setting
// a timesheet to the requested status. Any status can be reopened by an
// admin, so every pairing is legal; the value of the fields depends only
// on the requested status.
//
// approved: approver and timestamp are recorded, rejection reason cleared.
// rejected: approver and timestamp cleared, reason defaults when absent.
// pending:  all approval metadata cleared.
func Transition(requested Status, actorID string, now time.Time, reason *string) (ApprovalFields, error) {
	switch requested {
	case StatusApproved:
		approvedAt := now.UTC()
		return ApprovalFields{
			Status:     StatusApproved,
			ApproverID: &actorID,
			ApprovedAt: &approvedAt,
		}, nil
	case StatusRejected:
		rejectionReason := DefaultRejectionReason
		if reason != nil && *reason != "" {
			rejectionReason = *reason
		}
		return ApprovalFields{
			Status:          StatusRejected,
			RejectionReason: &rejectionReason,
		}, nil
	case StatusPending:
		return ApprovalFields{Status: StatusPending}, nil
	default:
		_, err := ParseStatus(string(requested))
		return ApprovalFields{}, err
	}
}

// DriverEditReset returns the approval fields after a driver edits their
// own rejected timesheet: the record reopens as pending and all approval
// metadata is cleared, regardless of which fields the edit touched.
func DriverEditReset() ApprovalFields {
	return ApprovalFields{Status: StatusPending}
}

// DriverCanEdit reports whether a driver may still modify a timesheet in
// the given status. Approved records are admin-only.
func DriverCanEdit(current Status) bool {
	return current == StatusPending || current == StatusRejected
}
