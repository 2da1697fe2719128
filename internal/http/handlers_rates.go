package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"fleetops/server/internal/model"
)

type billingRateResponse struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	RatePerHourCents int64   `json:"ratePerHourCents"`
	Currency         string  `json:"currency"`
	Description      *string `json:"description"`
	Active           bool    `json:"active"`
	CreatedBy        string  `json:"createdBy"`
	CreatedAt        int64   `json:"createdAt"`
	UpdatedAt        int64   `json:"updatedAt"`
}

type createBillingRateRequest struct {
	Name             string  `json:"name"`
	RatePerHourCents *int64  `json:"ratePerHourCents"`
	Currency         string  `json:"currency"`
	Description      *string `json:"description"`
	Active           *bool   `json:"active"`
}

type updateBillingRateRequest struct {
	Name             *string `json:"name"`
	RatePerHourCents *int64  `json:"ratePerHourCents"`
	Currency         *string `json:"currency"`
	Description      *string `json:"description"`
	Active           *bool   `json:"active"`
}

func mapBillingRate(rate model.BillingRate) billingRateResponse {
	return billingRateResponse{
		ID:               rate.ID,
		Name:             rate.Name,
		RatePerHourCents: rate.RatePerHourCents,
		Currency:         rate.Currency,
		Description:      rate.Description,
		Active:           rate.Active,
		CreatedBy:        rate.CreatedBy,
		CreatedAt:        epoch(rate.CreatedAt),
		UpdatedAt:        epoch(rate.UpdatedAt),
	}
}

func (s *Server) handleListBillingRates(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	// Non-admin callers only see the rates they can be billed against.
	activeOnly := claims.Role != string(model.RoleAdmin)
	rates, err := s.store.ListBillingRates(r.Context(), activeOnly)
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	resp := make([]billingRateResponse, 0, len(rates))
	for _, rate := range rates {
		resp = append(resp, mapBillingRate(rate))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateBillingRate(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	var req createBillingRateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Name == "" || req.RatePerHourCents == nil || req.Currency == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if *req.RatePerHourCents < 0 {
		writeError(w, http.StatusBadRequest, "invalid_rate")
		return
	}

	now := time.Now().UTC()
	rate := model.BillingRate{
		ID:               uuid.NewString(),
		Name:             req.Name,
		RatePerHourCents: *req.RatePerHourCents,
		Currency:         req.Currency,
		Description:      req.Description,
		Active:           true,
		CreatedBy:        claims.UserID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req.Active != nil {
		rate.Active = *req.Active
	}

	if err := s.store.CreateBillingRate(r.Context(), rate); err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	writeJSON(w, http.StatusCreated, mapBillingRate(rate))
}

func (s *Server) handleGetBillingRate(w http.ResponseWriter, r *http.Request) {
	rate, err := s.store.GetBillingRateByID(r.Context(), chi.URLParam(r, "rateId"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "billing_rate_not_found")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	writeJSON(w, http.StatusOK, mapBillingRate(rate))
}

func (s *Server) handleUpdateBillingRate(w http.ResponseWriter, r *http.Request) {
	rate, err := s.store.GetBillingRateByID(r.Context(), chi.URLParam(r, "rateId"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "billing_rate_not_found")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}

	var req updateBillingRateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Name != nil {
		rate.Name = *req.Name
	}
	if req.RatePerHourCents != nil {
		if *req.RatePerHourCents < 0 {
			writeError(w, http.StatusBadRequest, "invalid_rate")
			return
		}
		rate.RatePerHourCents = *req.RatePerHourCents
	}
	if req.Currency != nil {
		rate.Currency = *req.Currency
	}
	if req.Description != nil {
		rate.Description = req.Description
	}
	if req.Active != nil {
		rate.Active = *req.Active
	}
	rate.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateBillingRate(r.Context(), rate); err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	writeJSON(w, http.StatusOK, mapBillingRate(rate))
}

func (s *Server) handleDeleteBillingRate(w http.ResponseWriter, r *http.Request) {
	rateID := chi.URLParam(r, "rateId")

	if _, err := s.store.GetBillingRateByID(r.Context(), rateID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "billing_rate_not_found")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}

	refs, err := s.store.CountBillingRateReferences(r.Context(), rateID)
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	if refs > 0 {
		writeError(w, http.StatusConflict, "billing_rate_in_use")
		return
	}

	if err := s.store.DeleteBillingRate(r.Context(), rateID); err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "billing rate deleted"})
}
