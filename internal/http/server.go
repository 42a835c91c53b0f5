// Package http is the REST surface of the visitor management service.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Tanishk31/visiting-management/internal/auth"
	"github.com/Tanishk31/visiting-management/internal/blob"
	"github.com/Tanishk31/visiting-management/internal/config"
	"github.com/Tanishk31/visiting-management/internal/lifecycle"
	"github.com/Tanishk31/visiting-management/internal/model"
)

// UserStore is the slice of the repository the auth handlers need.
type UserStore interface {
	CreateUser(ctx context.Context, user model.User) error
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByID(ctx context.Context, id string) (model.User, error)
	ListActiveHosts(ctx context.Context) ([]model.User, error)
	UpdateProfile(ctx context.Context, userID, department, contactNumber string, updatedAt time.Time) error
	CreateRefreshSession(ctx context.Context, session model.RefreshSession) error
	GetRefreshSession(ctx context.Context, tokenHash string) (model.RefreshSession, error)
	RevokeRefreshSession(ctx context.Context, sessionID string, revokedAt time.Time) error
	RevokeUserSessions(ctx context.Context, userID string, revokedAt time.Time) error
}

// VisitIndex is the read side of the visit store used by list endpoints.
// Transitions never go through it; those belong to the engine.
type VisitIndex interface {
	GetVisit(ctx context.Context, id string) (model.Visit, error)
	ListVisitsByHost(ctx context.Context, hostID, hostName string, status model.VisitStatus) ([]model.Visit, error)
	ListVisitsByVisitor(ctx context.Context, visitorID string) ([]model.Visit, error)
	ListPreApprovedByHost(ctx context.Context, hostID, hostName string) ([]model.Visit, error)
	ListVisitsByDateRange(ctx context.Context, from, to time.Time, hostID string) ([]model.Visit, error)
}

type Server struct {
	cfg    config.Config
	users  UserStore
	visits VisitIndex
	engine *lifecycle.Engine
	blobs  blob.Store
	redis  *redis.Client
}

func NewServer(cfg config.Config, users UserStore, visits VisitIndex, engine *lifecycle.Engine, blobs blob.Store, rdb *redis.Client) *Server {
	return &Server{
		cfg:    cfg,
		users:  users,
		visits: visits,
		engine: engine,
		blobs:  blobs,
		redis:  rdb,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/uploads/*", s.handleGetUpload)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.With(s.authMiddleware).Post("/logout", s.handleLogout)
		r.With(s.authMiddleware).Get("/me", s.handleGetMe)
		r.With(s.authMiddleware).Put("/profile", s.handleUpdateProfile)
		r.Get("/hosts", s.handleListHosts)
	})

	r.Route("/api/visitors", func(r chi.Router) {
		r.With(s.optionalAuth).Post("/visit-request", s.handleVisitRequest)
		r.With(s.authMiddleware, s.requireHost).Post("/preapprove", s.handlePreApprove)
		r.With(s.authMiddleware, s.requireHost).Get("/host-requests", s.handleHostRequests)
		r.With(s.authMiddleware, s.requireHost).Get("/active-visits", s.handleActiveVisits)
		r.With(s.authMiddleware).Get("/my-visits", s.handleMyVisits)
		r.With(s.authMiddleware).Get("/pre-approved-visits", s.handlePreApprovedVisits)
		r.With(s.authMiddleware, s.requireHost).Get("/date-range", s.handleDateRange)
		r.With(s.authMiddleware, s.requireHost).Put("/approve-visit/{visitID}", s.handleApproveVisit)
		r.With(s.authMiddleware, s.requireHost).Put("/checkin/{visitID}", s.handleCheckIn)
		r.With(s.authMiddleware, s.requireHost).Put("/checkout/{visitID}", s.handleCheckOut)
		r.Post("/gate-checkin", s.handleGateCheckIn)
		r.With(s.authMiddleware).Get("/pass/{visitID}", s.handleGetPass)
	})

	return r
}

type claimsKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}

		claims, err := auth.ParseToken(s.cfg.JWTSecret, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// optionalAuth attaches claims when a valid token is present but lets
// anonymous requests through. The walk-in submission route uses it.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r.Header.Get("Authorization")); token != "" {
			if claims, err := auth.ParseToken(s.cfg.JWTSecret, token); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireHost(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil || claims.Role != model.RoleHost {
			writeError(w, http.StatusForbidden, "host_only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeEngineError maps the engine's error taxonomy onto HTTP codes. Both a
// missing visit and a visit owned by someone else surface as visit_not_found
// so existence does not leak to non-owners.
func writeEngineError(w http.ResponseWriter, err error) {
	var verr *lifecycle.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation_failed",
			"fields": verr.Fields,
		})
		return
	}
	var werr *lifecycle.WindowError
	if errors.As(err, &werr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "invalid_time_window",
			"message": werr.Reason,
		})
		return
	}

	switch {
	case errors.Is(err, lifecycle.ErrHostNotFound):
		writeError(w, http.StatusNotFound, "host_not_found")
	case errors.Is(err, lifecycle.ErrNotFound), errors.Is(err, lifecycle.ErrUnauthorized):
		writeError(w, http.StatusNotFound, "visit_not_found")
	case errors.Is(err, lifecycle.ErrNotPending):
		writeError(w, http.StatusConflict, "not_pending")
	case errors.Is(err, lifecycle.ErrInvalidState):
		writeError(w, http.StatusConflict, "invalid_state")
	default:
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

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

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return ""
}
