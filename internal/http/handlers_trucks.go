package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"fleetops/server/internal/model"
)

type truckResponse struct {
	ID                             string  `json:"id"`
	UnitNumber                     string  `json:"unitNumber"`
	Make                           *string `json:"make"`
	Model                          *string `json:"model"`
	SerialNumber                   *string `json:"serialNumber"`
	LastOdometerReading            *int64  `json:"lastOdometerReading"`
	LastMaintenanceOdometerReading *int64  `json:"lastMaintenanceOdometerReading"`
	MaintenanceIntervalKm          *int64  `json:"maintenanceIntervalKm"`
	CreatedAt                      int64   `json:"createdAt"`
	UpdatedAt                      int64   `json:"updatedAt"`
}

type createTruckRequest struct {
	UnitNumber            string  `json:"unitNumber"`
	Make                  *string `json:"make"`
	Model                 *string `json:"model"`
	SerialNumber          *string `json:"serialNumber"`
	LastOdometerReading   *int64  `json:"lastOdometerReading"`
	MaintenanceIntervalKm *int64  `json:"maintenanceIntervalKm"`
}

type updateTruckRequest struct {
	UnitNumber                     *string `json:"unitNumber"`
	Make                           *string `json:"make"`
	Model                          *string `json:"model"`
	SerialNumber                   *string `json:"serialNumber"`
	LastOdometerReading            *int64  `json:"lastOdometerReading"`
	LastMaintenanceOdometerReading *int64  `json:"lastMaintenanceOdometerReading"`
	MaintenanceIntervalKm          *int64  `json:"maintenanceIntervalKm"`
}

func mapTruck(truck model.Truck) truckResponse {
	return truckResponse{
		ID:                             truck.ID,
		UnitNumber:                     truck.UnitNumber,
		Make:                           truck.Make,
		Model:                          truck.Model,
		SerialNumber:                   truck.SerialNumber,
		LastOdometerReading:            truck.LastOdometerReading,
		LastMaintenanceOdometerReading: truck.LastMaintenanceOdometerReading,
		MaintenanceIntervalKm:          truck.MaintenanceIntervalKm,
		CreatedAt:                      epoch(truck.CreatedAt),
		UpdatedAt:                      epoch(truck.UpdatedAt),
	}
}

func (s *Server) handleListTrucks(w http.ResponseWriter, r *http.Request) {
	trucks, err := s.store.ListTrucks(r.Context())
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	resp := make([]truckResponse, 0, len(trucks))
	for _, truck := range trucks {
		resp = append(resp, mapTruck(truck))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateTruck(w http.ResponseWriter, r *http.Request) {
	var req createTruckRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.UnitNumber = strings.TrimSpace(req.UnitNumber)
	if req.UnitNumber == "" {
		writeError(w, http.StatusBadRequest, "missing_unit_number")
		return
	}

	now := time.Now().UTC()
	truck := model.Truck{
		ID:                    uuid.NewString(),
		UnitNumber:            req.UnitNumber,
		Make:                  req.Make,
		Model:                 req.Model,
		SerialNumber:          req.SerialNumber,
		LastOdometerReading:   req.LastOdometerReading,
		MaintenanceIntervalKm: req.MaintenanceIntervalKm,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.store.CreateTruck(r.Context(), truck); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeError(w, http.StatusConflict, "unit_number_already_exists")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	writeJSON(w, http.StatusCreated, mapTruck(truck))
}

func (s *Server) handleGetTruck(w http.ResponseWriter, r *http.Request) {
	truck, err := s.store.GetTruckByID(r.Context(), chi.URLParam(r, "truckId"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "truck_not_found")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	writeJSON(w, http.StatusOK, mapTruck(truck))
}

func (s *Server) handleUpdateTruck(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	var req updateTruckRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	switch claims.Role {
	case string(model.RoleAdmin):
	case string(model.RoleMaintenance):
		// Maintenance staff may only record service readings.
		if req.UnitNumber != nil || req.Make != nil || req.Model != nil ||
			req.SerialNumber != nil || req.LastOdometerReading != nil {
			writeError(w, http.StatusForbidden, "admin_role_required")
			return
		}
	default:
		writeError(w, http.StatusForbidden, "maintenance_or_admin_role_required")
		return
	}

	truck, err := s.store.GetTruckByID(r.Context(), chi.URLParam(r, "truckId"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "truck_not_found")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}

	if req.UnitNumber != nil {
		unit := strings.TrimSpace(*req.UnitNumber)
		if unit == "" {
			writeError(w, http.StatusBadRequest, "missing_unit_number")
			return
		}
		truck.UnitNumber = unit
	}
	if req.Make != nil {
		truck.Make = req.Make
	}
	if req.Model != nil {
		truck.Model = req.Model
	}
	if req.SerialNumber != nil {
		truck.SerialNumber = req.SerialNumber
	}
	if req.LastOdometerReading != nil {
		truck.LastOdometerReading = req.LastOdometerReading
	}
	if req.LastMaintenanceOdometerReading != nil {
		truck.LastMaintenanceOdometerReading = req.LastMaintenanceOdometerReading
	}
	if req.MaintenanceIntervalKm != nil {
		truck.MaintenanceIntervalKm = req.MaintenanceIntervalKm
	}
	truck.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateTruck(r.Context(), truck); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeError(w, http.StatusConflict, "unit_number_already_exists")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	writeJSON(w, http.StatusOK, mapTruck(truck))
}

func (s *Server) handleDeleteTruck(w http.ResponseWriter, r *http.Request) {
	truckID := chi.URLParam(r, "truckId")

	if _, err := s.store.GetTruckByID(r.Context(), truckID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "truck_not_found")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}

	refs, err := s.store.CountTruckReferences(r.Context(), truckID)
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	if refs > 0 {
		writeError(w, http.StatusConflict, "truck_in_use")
		return
	}

	if err := s.store.DeleteTruck(r.Context(), truckID); err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
