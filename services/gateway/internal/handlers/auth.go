package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/analytics"
	"github.com/example/media-platform/internal/platform/api"
	"github.com/example/media-platform/internal/platform/auth"
	"github.com/example/media-platform/internal/platform/httpserver"
	"github.com/example/media-platform/services/gateway/internal/session"
)

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	User        session.User `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresIn   int64        `json:"expires_in"`
}

func toAuthResponse(tok session.Token) authResponse {
	return authResponse{
		User:        tok.User,
		AccessToken: tok.AccessToken,
		ExpiresIn:   int64(time.Until(tok.ExpiresAt).Seconds()),
	}
}

// Signup handles POST /v1/auth/signup
func Signup(m *session.Manager, ap *analytics.Publisher, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req signupRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		username, email := strings.TrimSpace(req.Username), strings.TrimSpace(req.Email)
		violations := map[string]any{}
		if username == "" {
			violations["username"] = "required"
		}
		if email == "" || !strings.Contains(email, "@") {
			violations["email"] = "must be a valid email"
		}
		if req.Password == "" {
			violations["password"] = "required"
		}
		if len(violations) > 0 {
			api.BadRequest(w, "VALIDATION_FAILED", "Invalid signup request", rid, violations)
			return
		}

		s := m.New()
		u, err := s.SignUp(r.Context(), username, email, req.Password)
		if err != nil {
			m.Drop(s.ID)
			writeSessionError(w, rid, err, log)
			return
		}
		tok, err := m.Issue(s)
		if err != nil {
			m.Drop(s.ID)
			log.Error("issue token", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}

		ap.Publish(analytics.SubjectAuthRegistered, "user_registered", u.ID, map[string]any{
			"username": u.Username,
		})
		api.WriteJSON(w, http.StatusCreated, toAuthResponse(tok))
	}
}

// Login handles POST /v1/auth/login
func Login(m *session.Manager, ap *analytics.Publisher, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req loginRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		if strings.TrimSpace(req.Username) == "" || req.Password == "" {
			api.BadRequest(w, "VALIDATION_FAILED", "username and password are required", rid, nil)
			return
		}

		s := m.New()
		u, err := s.SignIn(r.Context(), strings.TrimSpace(req.Username), req.Password)
		if err != nil {
			m.Drop(s.ID)
			writeSessionError(w, rid, err, log)
			return
		}
		tok, err := m.Issue(s)
		if err != nil {
			m.Drop(s.ID)
			log.Error("issue token", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}

		ap.Publish(analytics.SubjectAuthLoggedIn, "user_logged_in", u.ID, nil)
		api.WriteJSON(w, http.StatusOK, toAuthResponse(tok))
	}
}

// Refresh handles POST /v1/auth/refresh. The session is re-checked against
// the auth backend before a new token is issued.
func Refresh(m *session.Manager, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		s, ok := sessionFrom(r, m)
		if !ok {
			api.Unauthorized(w, "SESSION_EXPIRED", "Session expired", rid)
			return
		}
		if _, err := s.Refresh(r.Context()); err != nil {
			if errors.Is(err, session.ErrUnauthorized) {
				m.Drop(s.ID)
			}
			writeSessionError(w, rid, err, log)
			return
		}
		tok, err := m.Issue(s)
		if err != nil {
			log.Error("issue token", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, toAuthResponse(tok))
	}
}

// Logout handles POST /v1/auth/logout
func Logout(m *session.Manager, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		s, ok := sessionFrom(r, m)
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err := s.SignOut(r.Context()); err != nil {
			writeSessionError(w, rid, err, log)
			return
		}
		m.Drop(s.ID)
		w.WriteHeader(http.StatusNoContent)
	}
}

// Me handles GET /v1/me and returns the session's current user.
func Me(m *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, _ := auth.UserIDFromContext(r.Context())
		s, ok := sessionFrom(r, m)
		if !ok {
			api.Unauthorized(w, "SESSION_EXPIRED", "Session expired", rid)
			return
		}
		u, ok := s.CurrentUser()
		if !ok || u.ID != uid {
			api.Unauthorized(w, "SESSION_EXPIRED", "Session expired", rid)
			return
		}
		role, _ := auth.RoleFromContext(r.Context())
		api.WriteJSON(w, http.StatusOK, map[string]any{"user": u, "role": role})
	}
}

func sessionFrom(r *http.Request, m *session.Manager) (*session.Session, bool) {
	sid, ok := auth.SessionIDFromContext(r.Context())
	if !ok {
		return nil, false
	}
	return m.Get(sid)
}

func writeSessionError(w http.ResponseWriter, rid string, err error, log *zap.Logger) {
	msg := ""
	var be *session.BackendError
	if errors.As(err, &be) {
		msg = be.Message
	}
	switch {
	case errors.Is(err, session.ErrUnauthorized):
		api.Unauthorized(w, "INVALID_CREDENTIALS", orDefault(msg, "Invalid credentials"), rid)
	case errors.Is(err, session.ErrConflict):
		api.Conflict(w, "USER_EXISTS", orDefault(msg, "User already exists"), rid, nil)
	case errors.Is(err, session.ErrInvalid):
		api.BadRequest(w, "INVALID_REQUEST", orDefault(msg, "Invalid request"), rid, nil)
	default:
		log.Warn("auth backend failed", zap.String("request_id", rid), zap.Error(err))
		api.BadGateway(w, "AUTH_UNAVAILABLE", "Authentication service is unavailable", rid, nil)
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
