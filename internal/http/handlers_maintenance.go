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
)

type maintenanceLogResponse struct {
	ID              string `json:"id"`
	TruckID         string `json:"truckId"`
	PerformedBy     string `json:"performedBy"`
	ServiceDate     int64  `json:"serviceDate"`
	OdometerReading int64  `json:"odometerReading"`
	Description     string `json:"description"`
	CostCents       *int64 `json:"costCents"`
	CreatedAt       int64  `json:"createdAt"`
	UpdatedAt       int64  `json:"updatedAt"`
}

type createMaintenanceLogRequest struct {
	TruckID         string `json:"truckId"`
	ServiceDate     int64  `json:"serviceDate"`
	OdometerReading *int64 `json:"odometerReading"`
	Description     string `json:"description"`
	CostCents       *int64 `json:"costCents"`
}

func mapMaintenanceLog(entry model.MaintenanceLog) maintenanceLogResponse {
	return maintenanceLogResponse{
		ID:              entry.ID,
		TruckID:         entry.TruckID,
		PerformedBy:     entry.PerformedBy,
		ServiceDate:     epoch(entry.ServiceDate),
		OdometerReading: entry.OdometerReading,
		Description:     entry.Description,
		CostCents:       entry.CostCents,
		CreatedAt:       epoch(entry.CreatedAt),
		UpdatedAt:       epoch(entry.UpdatedAt),
	}
}

func (s *Server) handleListMaintenanceLogs(w http.ResponseWriter, r *http.Request) {
	var truckID *string
	if v := r.URL.Query().Get("truckId"); v != "" {
		truckID = &v
	}

	entries, err := s.store.ListMaintenanceLogs(r.Context(), truckID)
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	resp := make([]maintenanceLogResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, mapMaintenanceLog(entry))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateMaintenanceLog(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	if claims.Role != string(model.RoleMaintenance) && claims.Role != string(model.RoleAdmin) {
		writeError(w, http.StatusForbidden, "maintenance_or_admin_role_required")
		return
	}

	var req createMaintenanceLogRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.TruckID == "" || req.ServiceDate == 0 || req.OdometerReading == nil || req.Description == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	now := time.Now().UTC()
	entry := model.MaintenanceLog{
		ID:              uuid.NewString(),
		TruckID:         req.TruckID,
		PerformedBy:     claims.UserID,
		ServiceDate:     timeFromEpoch(req.ServiceDate),
		OdometerReading: *req.OdometerReading,
		Description:     req.Description,
		CostCents:       req.CostCents,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// Recording a service advances the truck's last-maintenance reading
	// when the log is newer than what the truck already carries.
	err := s.store.WithTx(r.Context(), func(tx *repository.Store) error {
		truck, err := tx.GetTruckByID(r.Context(), entry.TruckID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errUnknownTruck
			}
			return err
		}
		if err := tx.CreateMaintenanceLog(r.Context(), entry); err != nil {
			return err
		}
		if truck.LastMaintenanceOdometerReading == nil || entry.OdometerReading > *truck.LastMaintenanceOdometerReading {
			return tx.UpdateTruckMaintenanceOdometer(r.Context(), entry.TruckID, entry.OdometerReading, now)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errUnknownTruck) {
			writeError(w, http.StatusBadRequest, "unknown_truck")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	writeJSON(w, http.StatusCreated, mapMaintenanceLog(entry))
}

func (s *Server) handleGetMaintenanceLog(w http.ResponseWriter, r *http.Request) {
	entry, err := s.store.GetMaintenanceLogByID(r.Context(), chi.URLParam(r, "logId"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "maintenance_log_not_found")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	writeJSON(w, http.StatusOK, mapMaintenanceLog(entry))
}

func (s *Server) handleDeleteMaintenanceLog(w http.ResponseWriter, r *http.Request) {
	logID := chi.URLParam(r, "logId")

	entry, err := s.store.GetMaintenanceLogByID(r.Context(), logID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "maintenance_log_not_found")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}

	if err := s.store.DeleteMaintenanceLog(r.Context(), logID); err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	writeJSON(w, http.StatusOK, deleteMaintenanceLogResponse{
		Message: "maintenance log deleted",
		Record:  mapMaintenanceLog(entry),
	})
}

type deleteMaintenanceLogResponse struct {
	Message string                 `json:"message"`
	Record  maintenanceLogResponse `json:"record"`
}
