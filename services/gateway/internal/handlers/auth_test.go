package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/auth"
	"github.com/example/media-platform/services/gateway/internal/session"
)

type stubBackend struct {
	user       session.User
	loginErr   error
	signupErr  error
	logoutErr  error
	fetchErr   error
	logoutCall int
}

func (s *stubBackend) Signup(context.Context, string, string, string) (session.User, session.Credential, error) {
	if s.signupErr != nil {
		return session.User{}, "", s.signupErr
	}
	return s.user, "sid=1", nil
}

func (s *stubBackend) Login(context.Context, string, string) (session.User, session.Credential, error) {
	if s.loginErr != nil {
		return session.User{}, "", s.loginErr
	}
	return s.user, "sid=1", nil
}

func (s *stubBackend) Logout(context.Context, session.Credential) error {
	s.logoutCall++
	return s.logoutErr
}

func (s *stubBackend) FetchCurrentUser(context.Context, session.Credential) (session.User, error) {
	if s.fetchErr != nil {
		return session.User{}, s.fetchErr
	}
	return s.user, nil
}

var testSecret = []byte("handlers-test-secret")

func authRouter(m *session.Manager) http.Handler {
	log := zap.NewNop()
	r := chi.NewRouter()
	r.Post("/v1/auth/signup", Signup(m, nil, log))
	r.Post("/v1/auth/login", Login(m, nil, log))
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(auth.JWTVerifier{Secret: testSecret}))
		r.Post("/v1/auth/refresh", Refresh(m, log))
		r.Post("/v1/auth/logout", Logout(m, log))
		r.Get("/v1/me", Me(m))
	})
	return r
}

func newAuthManager(b session.Backend) *session.Manager {
	return session.NewManager(b, auth.JWTSigner{Secret: testSecret, TTL: time.Minute}, nil)
}

func doJSON(h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAuth_LoginMeLogout(t *testing.T) {
	backend := &stubBackend{user: session.User{ID: "u1", Username: "mira", Email: "mira@example.com"}}
	m := newAuthManager(backend)
	h := authRouter(m)

	rr := doJSON(h, http.MethodPost, "/v1/auth/login", `{"username":"mira","password":"pw"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	login := decodeBody[authResponse](t, rr)
	if login.AccessToken == "" || login.User.ID != "u1" || login.ExpiresIn <= 0 {
		t.Fatalf("unexpected login response: %+v", login)
	}

	rr = doJSON(h, http.MethodGet, "/v1/me", "", login.AccessToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", rr.Code)
	}
	me := decodeBody[map[string]any](t, rr)
	if me["role"] != "user" || me["user"].(map[string]any)["username"] != "mira" {
		t.Fatalf("unexpected me: %v", me)
	}

	rr = doJSON(h, http.MethodPost, "/v1/auth/refresh", "", login.AccessToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d", rr.Code)
	}

	rr = doJSON(h, http.MethodPost, "/v1/auth/logout", "", login.AccessToken)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", rr.Code)
	}
	if backend.logoutCall != 1 {
		t.Fatalf("expected backend logout, got %d calls", backend.logoutCall)
	}

	rr = doJSON(h, http.MethodGet, "/v1/me", "", login.AccessToken)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout: expected 401, got %d", rr.Code)
	}
}

func TestAuth_LoginRejected(t *testing.T) {
	backend := &stubBackend{loginErr: &session.BackendError{Op: "login", Status: 401, Message: "Invalid credentials", Err: session.ErrUnauthorized}}
	m := newAuthManager(backend)

	rr := doJSON(authRouter(m), http.MethodPost, "/v1/auth/login", `{"username":"mira","password":"bad"}`, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if m.Len() != 0 {
		t.Fatalf("expected failed login to leave no session, got %d", m.Len())
	}
}

func TestAuth_SignupConflict(t *testing.T) {
	backend := &stubBackend{signupErr: &session.BackendError{Op: "signup", Status: 409, Message: "User already exists", Err: session.ErrConflict}}
	rr := doJSON(authRouter(newAuthManager(backend)), http.MethodPost, "/v1/auth/signup",
		`{"username":"mira","email":"mira@example.com","password":"pw"}`, "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if body := decodeBody[errorBody](t, rr); body.Error.Message != "User already exists" {
		t.Fatalf("expected backend message, got %q", body.Error.Message)
	}
}

func TestAuth_SignupValidation(t *testing.T) {
	rr := doJSON(authRouter(newAuthManager(&stubBackend{})), http.MethodPost, "/v1/auth/signup",
		`{"username":"","email":"nope","password":""}`, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	body := decodeBody[errorBody](t, rr)
	if len(body.Error.Details) != 3 {
		t.Fatalf("expected 3 field violations, got %v", body.Error.Details)
	}
}

func TestAuth_SignupCreated(t *testing.T) {
	backend := &stubBackend{user: session.User{ID: "u2", Username: "new"}}
	rr := doJSON(authRouter(newAuthManager(backend)), http.MethodPost, "/v1/auth/signup",
		`{"username":"new","email":"new@example.com","password":"pw"}`, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
}

func TestAuth_BackendDown(t *testing.T) {
	backend := &stubBackend{loginErr: errors.New("dial tcp: connection refused")}
	rr := doJSON(authRouter(newAuthManager(backend)), http.MethodPost, "/v1/auth/login", `{"username":"a","password":"b"}`, "")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
}

func TestAuth_RefreshDropsRevokedSession(t *testing.T) {
	backend := &stubBackend{user: session.User{ID: "u1", Username: "mira"}}
	m := newAuthManager(backend)
	h := authRouter(m)

	login := decodeBody[authResponse](t, doJSON(h, http.MethodPost, "/v1/auth/login", `{"username":"mira","password":"pw"}`, ""))
	backend.fetchErr = &session.BackendError{Op: "fetch-user", Status: 401, Err: session.ErrUnauthorized}

	rr := doJSON(h, http.MethodPost, "/v1/auth/refresh", "", login.AccessToken)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if m.Len() != 0 {
		t.Fatalf("expected session to be dropped, got %d", m.Len())
	}
}

func TestMe_RequiresToken(t *testing.T) {
	rr := doJSON(authRouter(newAuthManager(&stubBackend{})), http.MethodGet, "/v1/me", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}
