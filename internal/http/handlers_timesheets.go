package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"fleetops/server/internal/model"
	"fleetops/server/internal/repository"
	"fleetops/server/internal/timesheet"
)

type userRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type truckRef struct {
	ID         string `json:"id"`
	UnitNumber string `json:"unitNumber"`
}

type timesheetResponse struct {
	ID               string   `json:"id"`
	Driver           *userRef `json:"driver,omitempty"`
	Truck            truckRef `json:"truck"`
	ShiftStart       int64    `json:"shiftStart"`
	ShiftEnd         *int64   `json:"shiftEnd"`
	StartOdometer    *int64   `json:"startOdometer"`
	EndOdometer      int64    `json:"endOdometer"`
	Status           string   `json:"status"`
	Approver         *userRef `json:"approver,omitempty"`
	ApprovedAt       *int64   `json:"approvedAt"`
	RejectionReason  *string  `json:"rejectionReason"`
	BillingRateID    *string  `json:"billingRateId"`
	TotalBilledCents *int64   `json:"totalBilledCents"`
	Notes            *string  `json:"notes"`
	CreatedAt        int64    `json:"createdAt"`
	UpdatedAt        int64    `json:"updatedAt"`
}

type createTimesheetRequest struct {
	TruckID       string  `json:"truckId"`
	ShiftStart    int64   `json:"shiftStart"`
	ShiftEnd      *int64  `json:"shiftEnd"`
	StartOdometer *int64  `json:"startOdometer"`
	EndOdometer   *int64  `json:"endOdometer"`
	Notes         *string `json:"notes"`
}

type updateTimesheetRequest struct {
	TruckID          *string `json:"truckId"`
	ShiftStart       *int64  `json:"shiftStart"`
	ShiftEnd         *int64  `json:"shiftEnd"`
	StartOdometer    *int64  `json:"startOdometer"`
	EndOdometer      *int64  `json:"endOdometer"`
	Status           *string `json:"status"`
	RejectionReason  *string `json:"rejectionReason"`
	BillingRateID    *string `json:"billingRateId"`
	TotalBilledCents *int64  `json:"totalBilledCents"`
	Notes            *string `json:"notes"`
}

var (
	errUnknownTruck       = errors.New("unknown truck")
	errUnknownBillingRate = errors.New("unknown billing rate")
)

func mapTimesheet(detail model.TimesheetDetail, includeDriver bool) timesheetResponse {
	resp := timesheetResponse{
		ID: detail.ID,
		Truck: truckRef{
			ID:         detail.TruckID,
			UnitNumber: detail.TruckUnitNumber,
		},
		ShiftStart:       epoch(detail.ShiftStart),
		ShiftEnd:         epochPtr(detail.ShiftEnd),
		StartOdometer:    detail.StartOdometer,
		EndOdometer:      detail.EndOdometer,
		Status:           string(detail.Status),
		ApprovedAt:       epochPtr(detail.ApprovedAt),
		RejectionReason:  detail.RejectionReason,
		BillingRateID:    detail.BillingRateID,
		TotalBilledCents: detail.TotalBilledCents,
		Notes:            detail.Notes,
		CreatedAt:        epoch(detail.CreatedAt),
		UpdatedAt:        epoch(detail.UpdatedAt),
	}
	if includeDriver {
		resp.Driver = &userRef{ID: detail.DriverID, Name: detail.DriverName}
	}
	if detail.ApproverID != nil {
		approver := userRef{ID: *detail.ApproverID}
		if detail.ApproverName != nil {
			approver.Name = *detail.ApproverName
		}
		resp.Approver = &approver
	}
	return resp
}

// validateShift checks the odometer and shift-time orderings the record
// must satisfy; it returns an error code or "".
func validateShift(shiftStart time.Time, shiftEnd *time.Time, startOdometer *int64, endOdometer int64) string {
	if startOdometer != nil && endOdometer <= *startOdometer {
		return "invalid_odometer_range"
	}
	if shiftEnd != nil && !shiftEnd.After(shiftStart) {
		return "invalid_shift_range"
	}
	return ""
}

func (s *Server) handleCreateTimesheet(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	if claims.Role != string(model.RoleDriver) && claims.Role != string(model.RoleAdmin) {
		writeError(w, http.StatusForbidden, "driver_or_admin_role_required")
		return
	}

	var req createTimesheetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.TruckID == "" || req.ShiftStart == 0 || req.EndOdometer == nil {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	shiftStart := timeFromEpoch(req.ShiftStart)
	shiftEnd := timePtrFromEpoch(req.ShiftEnd)
	if code := validateShift(shiftStart, shiftEnd, req.StartOdometer, *req.EndOdometer); code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}

	now := time.Now().UTC()
	ts := model.Timesheet{
		ID:            uuid.NewString(),
		DriverID:      claims.UserID,
		TruckID:       req.TruckID,
		ShiftStart:    shiftStart,
		ShiftEnd:      shiftEnd,
		StartOdometer: req.StartOdometer,
		EndOdometer:   *req.EndOdometer,
		Status:        timesheet.StatusPending,
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// Insert the timesheet and mirror its end odometer onto the truck in
	// one transaction: either both land or neither does.
	err := s.store.WithTx(r.Context(), func(tx *repository.Store) error {
		exists, err := tx.TruckExists(r.Context(), ts.TruckID)
		if err != nil {
			return err
		}
		if !exists {
			return errUnknownTruck
		}
		if err := tx.CreateTimesheet(r.Context(), ts); err != nil {
			return err
		}
		return tx.UpdateTruckOdometer(r.Context(), ts.TruckID, ts.EndOdometer, now)
	})
	if err != nil {
		if errors.Is(err, errUnknownTruck) {
			writeError(w, http.StatusBadRequest, "unknown_truck")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}

	detail, err := s.store.GetTimesheetDetail(r.Context(), ts.ID)
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	writeJSON(w, http.StatusCreated, mapTimesheet(detail, true))
}

func (s *Server) handleListTimesheets(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	switch claims.Role {
	case string(model.RoleAdmin):
		details, err := s.store.ListTimesheetDetails(r.Context())
		if err != nil {
			writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
			return
		}
		resp := make([]timesheetResponse, 0, len(details))
		for _, detail := range details {
			resp = append(resp, mapTimesheet(detail, true))
		}
		writeJSON(w, http.StatusOK, resp)
	case string(model.RoleDriver):
		details, err := s.store.ListTimesheetDetailsByDriver(r.Context(), claims.UserID)
		if err != nil {
			writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
			return
		}
		resp := make([]timesheetResponse, 0, len(details))
		for _, detail := range details {
			resp = append(resp, mapTimesheet(detail, false))
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		writeError(w, http.StatusForbidden, "driver_or_admin_role_required")
	}
}

func (s *Server) handleGetTimesheet(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	if claims.Role != string(model.RoleDriver) && claims.Role != string(model.RoleAdmin) {
		writeError(w, http.StatusForbidden, "driver_or_admin_role_required")
		return
	}

	detail, err := s.store.GetTimesheetDetail(r.Context(), chi.URLParam(r, "timesheetId"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "timesheet_not_found")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	if claims.Role == string(model.RoleDriver) && detail.DriverID != claims.UserID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	writeJSON(w, http.StatusOK, mapTimesheet(detail, true))
}

func (s *Server) handleUpdateTimesheet(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	ts, err := s.store.GetTimesheetByID(r.Context(), chi.URLParam(r, "timesheetId"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "timesheet_not_found")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}

	var req updateTimesheetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	switch claims.Role {
	case string(model.RoleAdmin):
		s.applyAdminTimesheetUpdate(w, r, claims.UserID, ts, req)
	case string(model.RoleDriver):
		s.applyDriverTimesheetUpdate(w, r, claims.UserID, ts, req)
	default:
		writeError(w, http.StatusForbidden, "driver_or_admin_role_required")
	}
}

func (s *Server) applyAdminTimesheetUpdate(w http.ResponseWriter, r *http.Request, actorID string, ts model.Timesheet, req updateTimesheetRequest) {
	hasChanges := req.TruckID != nil || req.ShiftStart != nil || req.ShiftEnd != nil ||
		req.StartOdometer != nil || req.EndOdometer != nil || req.Status != nil ||
		req.RejectionReason != nil || req.BillingRateID != nil || req.TotalBilledCents != nil ||
		req.Notes != nil
	if !hasChanges {
		s.respondTimesheet(w, r, http.StatusOK, ts.ID, true)
		return
	}

	if req.TruckID != nil {
		ts.TruckID = *req.TruckID
	}
	if req.ShiftStart != nil {
		ts.ShiftStart = timeFromEpoch(*req.ShiftStart)
	}
	if req.ShiftEnd != nil {
		ts.ShiftEnd = timePtrFromEpoch(req.ShiftEnd)
	}
	if req.StartOdometer != nil {
		ts.StartOdometer = req.StartOdometer
	}
	if req.EndOdometer != nil {
		ts.EndOdometer = *req.EndOdometer
	}
	if req.Notes != nil {
		ts.Notes = req.Notes
	}
	if req.TotalBilledCents != nil {
		ts.TotalBilledCents = req.TotalBilledCents
	}
	if req.BillingRateID != nil {
		ts.BillingRateID = req.BillingRateID
	}

	if req.Status != nil {
		requested, err := timesheet.ParseStatus(*req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_status")
			return
		}
		fields, err := timesheet.Transition(requested, actorID, time.Now().UTC(), req.RejectionReason)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_status")
			return
		}
		ts.Status = fields.Status
		ts.ApproverID = fields.ApproverID
		ts.ApprovedAt = fields.ApprovedAt
		ts.RejectionReason = fields.RejectionReason
	} else if req.RejectionReason != nil {
		// A standalone reason only makes sense on an already-rejected
		// record; approved and pending entries carry none.
		if ts.Status != timesheet.StatusRejected {
			writeError(w, http.StatusBadRequest, "rejection_reason_not_applicable")
			return
		}
		ts.RejectionReason = req.RejectionReason
	}

	if code := validateShift(ts.ShiftStart, ts.ShiftEnd, ts.StartOdometer, ts.EndOdometer); code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}

	now := time.Now().UTC()
	ts.UpdatedAt = now
	err := s.store.WithTx(r.Context(), func(tx *repository.Store) error {
		if req.TruckID != nil {
			exists, err := tx.TruckExists(r.Context(), ts.TruckID)
			if err != nil {
				return err
			}
			if !exists {
				return errUnknownTruck
			}
		}
		if req.BillingRateID != nil {
			exists, err := tx.BillingRateExists(r.Context(), *req.BillingRateID)
			if err != nil {
				return err
			}
			if !exists {
				return errUnknownBillingRate
			}
		}
		if err := tx.UpdateTimesheet(r.Context(), ts); err != nil {
			return err
		}
		if req.EndOdometer != nil {
			return tx.UpdateTruckOdometer(r.Context(), ts.TruckID, ts.EndOdometer, now)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errUnknownTruck) {
			writeError(w, http.StatusBadRequest, "unknown_truck")
			return
		}
		if errors.Is(err, errUnknownBillingRate) {
			writeError(w, http.StatusBadRequest, "unknown_billing_rate")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	s.respondTimesheet(w, r, http.StatusOK, ts.ID, true)
}

func (s *Server) applyDriverTimesheetUpdate(w http.ResponseWriter, r *http.Request, actorID string, ts model.Timesheet, req updateTimesheetRequest) {
	if ts.DriverID != actorID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if !timesheet.DriverCanEdit(ts.Status) {
		writeError(w, http.StatusForbidden, "timesheet_locked")
		return
	}
	// Approval and billing fields belong to admins.
	if req.Status != nil || req.RejectionReason != nil || req.BillingRateID != nil || req.TotalBilledCents != nil {
		writeError(w, http.StatusForbidden, "admin_role_required")
		return
	}

	hasChanges := req.TruckID != nil || req.ShiftStart != nil || req.ShiftEnd != nil ||
		req.StartOdometer != nil || req.EndOdometer != nil || req.Notes != nil
	if !hasChanges {
		s.respondTimesheet(w, r, http.StatusOK, ts.ID, true)
		return
	}

	if req.TruckID != nil {
		ts.TruckID = *req.TruckID
	}
	if req.ShiftStart != nil {
		ts.ShiftStart = timeFromEpoch(*req.ShiftStart)
	}
	if req.ShiftEnd != nil {
		ts.ShiftEnd = timePtrFromEpoch(req.ShiftEnd)
	}
	if req.StartOdometer != nil {
		ts.StartOdometer = req.StartOdometer
	}
	if req.EndOdometer != nil {
		ts.EndOdometer = *req.EndOdometer
	}
	if req.Notes != nil {
		ts.Notes = req.Notes
	}

	// Editing a rejected entry resubmits it: back to pending with the
	// approval metadata cleared.
	if ts.Status == timesheet.StatusRejected {
		fields := timesheet.DriverEditReset()
		ts.Status = fields.Status
		ts.ApproverID = fields.ApproverID
		ts.ApprovedAt = fields.ApprovedAt
		ts.RejectionReason = fields.RejectionReason
	}

	if code := validateShift(ts.ShiftStart, ts.ShiftEnd, ts.StartOdometer, ts.EndOdometer); code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}

	ts.UpdatedAt = time.Now().UTC()
	err := s.store.WithTx(r.Context(), func(tx *repository.Store) error {
		if req.TruckID != nil {
			exists, err := tx.TruckExists(r.Context(), ts.TruckID)
			if err != nil {
				return err
			}
			if !exists {
				return errUnknownTruck
			}
		}
		return tx.UpdateTimesheet(r.Context(), ts)
	})
	if err != nil {
		if errors.Is(err, errUnknownTruck) {
			writeError(w, http.StatusBadRequest, "unknown_truck")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	s.respondTimesheet(w, r, http.StatusOK, ts.ID, true)
}

func (s *Server) respondTimesheet(w http.ResponseWriter, r *http.Request, status int, timesheetID string, includeDriver bool) {
	detail, err := s.store.GetTimesheetDetail(r.Context(), timesheetID)
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	writeJSON(w, status, mapTimesheet(detail, includeDriver))
}

type deleteTimesheetResponse struct {
	Message string            `json:"message"`
	Record  timesheetResponse `json:"record"`
}

func (s *Server) handleDeleteTimesheet(w http.ResponseWriter, r *http.Request) {
	timesheetID := chi.URLParam(r, "timesheetId")

	detail, err := s.store.GetTimesheetDetail(r.Context(), timesheetID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "timesheet_not_found")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}

	// The truck's odometer is deliberately left as-is: timesheets are an
	// append-style audit trail and the reading is not recomputed from the
	// remaining records.
	if err := s.store.DeleteTimesheet(r.Context(), timesheetID); err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	writeJSON(w, http.StatusOK, deleteTimesheetResponse{
		Message: "timesheet deleted",
		Record:  mapTimesheet(detail, true),
	})
}
