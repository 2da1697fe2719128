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

	"fleetops/server/internal/crypto"
	"fleetops/server/internal/model"
)

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type updateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
	Banned   *bool   `json:"banned"`
}

func normalizeRole(value string) (model.Role, error) {
	switch model.Role(value) {
	case model.RoleDriver, model.RoleMaintenance, model.RoleAdmin:
		return model.Role(value), nil
	default:
		return "", errors.New("invalid role")
	}
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	resp := make([]userResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, mapUser(user))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	role, err := normalizeRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}

	passwordHash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}

	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeError(w, http.StatusConflict, "email_already_exists")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	writeJSON(w, http.StatusCreated, mapUser(user))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	userID := chi.URLParam(r, "userId")
	if claims.Role != string(model.RoleAdmin) && claims.UserID != userID {
		writeError(w, http.StatusForbidden, "admin_role_required")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	writeJSON(w, http.StatusOK, mapUser(user))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	userID := chi.URLParam(r, "userId")
	isAdmin := claims.Role == string(model.RoleAdmin)
	if !isAdmin && claims.UserID != userID {
		writeError(w, http.StatusForbidden, "admin_role_required")
		return
	}

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	// Role and ban state are admin-only fields.
	if !isAdmin && (req.Role != nil || req.Banned != nil || req.Email != nil) {
		writeError(w, http.StatusForbidden, "admin_role_required")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}

	banStamp := false
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*req.Email))
		if email == "" {
			writeError(w, http.StatusBadRequest, "invalid_email")
			return
		}
		user.Email = email
	}
	if req.Password != nil {
		if *req.Password == "" {
			writeError(w, http.StatusBadRequest, "invalid_password")
			return
		}
		hash, err := crypto.HashPassword(*req.Password)
		if err != nil {
			writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
			return
		}
		user.PasswordHash = hash
	}
	if req.Role != nil {
		role, err := normalizeRole(*req.Role)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_role")
			return
		}
		user.Role = role
	}
	if req.Banned != nil {
		banStamp = *req.Banned && !user.Banned
		user.Banned = *req.Banned
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeError(w, http.StatusConflict, "email_already_exists")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}

	// A fresh ban kills the user's outstanding access tokens right away.
	if banStamp {
		_ = s.store.RevokeRefreshSessionsByUser(r.Context(), user.ID, time.Now().UTC())
		if err := s.revokeUserTokens(r.Context(), user.ID); err != nil {
			s.log.Warn().Err(err).Str("user", user.ID).Msg("ban revocation stamp failed")
		}
	}

	writeJSON(w, http.StatusOK, mapUser(user))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	if _, err := s.store.GetUserByID(r.Context(), userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}

	refs, err := s.store.CountUserReferences(r.Context(), userID)
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	if refs > 0 {
		writeError(w, http.StatusConflict, "user_has_records")
		return
	}

	if err := s.store.DeleteUser(r.Context(), userID); err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
