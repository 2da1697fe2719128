package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"fleetops/server/internal/auth"
	"fleetops/server/internal/crypto"
	"fleetops/server/internal/model"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Banned    bool   `json:"banned"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

func mapUser(user model.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      string(user.Role),
		Banned:    user.Banned,
		CreatedAt: epoch(user.CreatedAt),
		UpdatedAt: epoch(user.UpdatedAt),
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if user.Banned {
		writeError(w, http.StatusForbidden, "account_banned")
		return
	}

	accessToken, refreshToken, err := s.issueTokens(r.Context(), user, r.UserAgent(), clientIP(r))
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "token_error", err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         mapUser(user),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "missing_refresh_token")
		return
	}

	tokenHash := crypto.HashToken(req.RefreshToken)
	session, err := s.store.GetRefreshSession(r.Context(), tokenHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid_refresh_token")
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}
	if session.RevokedAt != nil || session.ExpiresAt.Before(time.Now().UTC()) {
		writeError(w, http.StatusUnauthorized, "refresh_token_expired")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), session.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "user_not_found")
		return
	}
	if user.Banned {
		writeError(w, http.StatusForbidden, "account_banned")
		return
	}

	if err := s.store.RevokeRefreshSession(r.Context(), session.ID, time.Now().UTC()); err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "server_error", err)
		return
	}

	accessToken, refreshToken, err := s.issueTokens(r.Context(), user, r.UserAgent(), clientIP(r))
	if err != nil {
		writeErrorDetails(w, http.StatusInternalServerError, "token_error", err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         mapUser(user),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	_ = s.store.RevokeRefreshSessionsByUser(r.Context(), claims.UserID, time.Now().UTC())
	if err := s.revokeUserTokens(r.Context(), claims.UserID); err != nil {
		s.log.Warn().Err(err).Str("user", claims.UserID).Msg("token revocation stamp failed")
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
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

func (s *Server) issueTokens(ctx context.Context, user model.User, userAgent, ipAddress string) (string, string, error) {
	accessToken, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID: user.ID,
		Role:   string(user.Role),
	})
	if err != nil {
		return "", "", err
	}

	refreshToken, err := crypto.NewRefreshToken()
	if err != nil {
		return "", "", err
	}

	now := time.Now().UTC()
	session := model.RefreshSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: crypto.HashToken(refreshToken),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	}
	if userAgent != "" {
		session.UserAgent = &userAgent
	}
	if ipAddress != "" {
		session.IPAddress = &ipAddress
	}
	if err := s.store.CreateRefreshSession(ctx, session); err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}
