package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"fleetops/server/internal/auth"
	"fleetops/server/internal/config"
	"fleetops/server/internal/model"
	"fleetops/server/internal/repository"
)

var httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fleetops_http_requests_total",
	Help: "HTTP requests by method, route and status code.",
}, []string{"method", "route", "status"})

type Server struct {
	cfg   config.Config
	store *repository.Store
	redis *redis.Client
	log   zerolog.Logger
}

func NewServer(cfg config.Config, store *repository.Store, redisClient *redis.Client, log zerolog.Logger) *Server {
	return &Server{
		cfg:   cfg,
		store: store,
		redis: redisClient,
		log:   log,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.observeRequests)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/refresh", s.handleRefresh)
	r.With(s.authMiddleware).Post("/api/auth/logout", s.handleLogout)
	r.With(s.authMiddleware).Get("/api/auth/me", s.handleGetMe)

	r.Route("/api/users", func(r chi.Router) {
		r.With(s.authMiddleware, s.requireAdmin).Get("/", s.handleListUsers)
		r.With(s.authMiddleware, s.requireAdmin).Post("/", s.handleCreateUser)
		r.With(s.authMiddleware).Get("/{userId}", s.handleGetUser)
		r.With(s.authMiddleware).Patch("/{userId}", s.handleUpdateUser)
		r.With(s.authMiddleware, s.requireAdmin).Delete("/{userId}", s.handleDeleteUser)
	})

	r.Route("/api/trucks", func(r chi.Router) {
		r.With(s.authMiddleware).Get("/", s.handleListTrucks)
		r.With(s.authMiddleware, s.requireAdmin).Post("/", s.handleCreateTruck)
		r.With(s.authMiddleware).Get("/{truckId}", s.handleGetTruck)
		r.With(s.authMiddleware).Patch("/{truckId}", s.handleUpdateTruck)
		r.With(s.authMiddleware, s.requireAdmin).Delete("/{truckId}", s.handleDeleteTruck)
	})

	r.Route("/api/timesheets", func(r chi.Router) {
		r.With(s.authMiddleware).Get("/", s.handleListTimesheets)
		r.With(s.authMiddleware).Post("/", s.handleCreateTimesheet)
		r.With(s.authMiddleware).Get("/{timesheetId}", s.handleGetTimesheet)
		r.With(s.authMiddleware).Patch("/{timesheetId}", s.handleUpdateTimesheet)
		r.With(s.authMiddleware, s.requireAdmin).Delete("/{timesheetId}", s.handleDeleteTimesheet)
	})

	r.Route("/api/rates", func(r chi.Router) {
		r.With(s.authMiddleware).Get("/", s.handleListBillingRates)
		r.With(s.authMiddleware, s.requireAdmin).Post("/", s.handleCreateBillingRate)
		r.With(s.authMiddleware).Get("/{rateId}", s.handleGetBillingRate)
		r.With(s.authMiddleware, s.requireAdmin).Patch("/{rateId}", s.handleUpdateBillingRate)
		r.With(s.authMiddleware, s.requireAdmin).Delete("/{rateId}", s.handleDeleteBillingRate)
	})

	r.Route("/api/maintenance", func(r chi.Router) {
		r.With(s.authMiddleware).Get("/", s.handleListMaintenanceLogs)
		r.With(s.authMiddleware).Post("/", s.handleCreateMaintenanceLog)
		r.With(s.authMiddleware).Get("/{logId}", s.handleGetMaintenanceLog)
		r.With(s.authMiddleware, s.requireAdmin).Delete("/{logId}", s.handleDeleteMaintenanceLog)
	})

	return r
}

// Middleware

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		revoked, err := s.tokenRevoked(r.Context(), claims)
		if err != nil {
			s.log.Warn().Err(err).Msg("revocation check failed")
		}
		if revoked {
			writeError(w, http.StatusUnauthorized, "token_revoked")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		if claims.Role != string(model.RoleAdmin) {
			writeError(w, http.StatusForbidden, "admin_role_required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) observeRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := wrapped.Status()
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		s.log.Info().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// Token revocation

func tokenRevocationKey(userID string) string {
	return fmt.Sprintf("token_revocation:%s", userID)
}

// revokeUserTokens stamps the user so access tokens issued before now are
// rejected. The stamp expires with the access-token TTL, after which all
// earlier tokens have expired on their own.
func (s *Server) revokeUserTokens(ctx context.Context, userID string) error {
	if s.redis == nil {
		return nil
	}
	now := time.Now().UTC().Unix()
	return s.redis.Set(ctx, tokenRevocationKey(userID), strconv.FormatInt(now, 10), s.cfg.AccessTokenTTL).Err()
}

func (s *Server) tokenRevoked(ctx context.Context, claims *auth.Claims) (bool, error) {
	if s.redis == nil || claims.IssuedAt == nil {
		return false, nil
	}
	value, err := s.redis.Get(ctx, tokenRevocationKey(claims.UserID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	stamp, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return false, err
	}
	return claims.IssuedAt.Unix() <= stamp, nil
}

// JSON helpers

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeErrorDetails(w http.ResponseWriter, status int, message string, err error) {
	resp := errorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// Wire conversions. All timestamps cross the wire as epoch seconds.

func epoch(t time.Time) int64 {
	return t.UTC().Unix()
}

func epochPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	value := t.UTC().Unix()
	return &value
}

func timeFromEpoch(seconds int64) time.Time {
	return time.Unix(seconds, 0).UTC()
}

func timePtrFromEpoch(seconds *int64) *time.Time {
	if seconds == nil {
		return nil
	}
	value := time.Unix(*seconds, 0).UTC()
	return &value
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
