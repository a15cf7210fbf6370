package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/media-platform/internal/platform/auth"
)

// fakeAuthBackend mimics the auth backend: a "sid" cookie identifies the
// signed-in user.
func fakeAuthBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	user := map[string]any{"_id": "u1", "username": "mira", "email": "mira@example.com", "createdAt": "2024-05-01T10:00:00.000Z"}

	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid credentials"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", HttpOnly: true})
		writeJSON(w, http.StatusOK, map[string]any{"user": user, "message": "Logged in successfully"})
	})
	mux.HandleFunc("/signup", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["username"] == "taken" {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "User already exists"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc"})
		writeJSON(w, http.StatusCreated, map[string]any{"user": user})
	})
	mux.HandleFunc("/fetch-user", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("sid")
		if err != nil || c.Value != "abc" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
	})
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "", MaxAge: -1})
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newManager(t *testing.T, opts ...ManagerOption) *Manager {
	t.Helper()
	srv := fakeAuthBackend(t)
	signer := auth.JWTSigner{Secret: []byte("test-secret"), Issuer: "gateway", TTL: time.Minute}
	return NewManager(NewHTTPBackend(srv.URL, time.Second, nil), signer, nil, opts...)
}

// ─── Backend ───

func TestHTTPBackend_LoginRelaysCookie(t *testing.T) {
	srv := fakeAuthBackend(t)
	b := NewHTTPBackend(srv.URL, time.Second, nil)

	u, cred, err := b.Login(context.Background(), "mira", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cred != "sid=abc" {
		t.Fatalf("expected sid=abc, got %q", cred)
	}
	if u.ID != "u1" || u.Username != "mira" || u.CreatedAt.IsZero() {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestHTTPBackend_LoginRejected(t *testing.T) {
	srv := fakeAuthBackend(t)
	b := NewHTTPBackend(srv.URL, time.Second, nil)

	_, _, err := b.Login(context.Background(), "mira", "wrong")
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BackendError, got %T", err)
	}
	if be.Message != "Invalid credentials" || !errors.Is(err, ErrInvalid) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHTTPBackend_SignupConflict(t *testing.T) {
	srv := fakeAuthBackend(t)
	b := NewHTTPBackend(srv.URL, time.Second, nil)

	_, _, err := b.Signup(context.Background(), "taken", "t@example.com", "pw")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestHTTPBackend_FetchWithoutCredential(t *testing.T) {
	b := NewHTTPBackend("http://127.0.0.1:1", time.Second, nil)
	if _, err := b.FetchCurrentUser(context.Background(), ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestHTTPBackend_Unreachable(t *testing.T) {
	b := NewHTTPBackend("http://127.0.0.1:1", 200*time.Millisecond, nil)
	if _, _, err := b.Login(context.Background(), "a", "b"); err == nil {
		t.Fatal("expected transport error")
	}
}

// ─── Session ───

func TestSession_SignInRefreshSignOut(t *testing.T) {
	m := newManager(t)
	s := m.New()
	ctx := context.Background()

	if _, ok := s.CurrentUser(); ok {
		t.Fatal("new session should be anonymous")
	}
	if _, err := s.SignIn(ctx, "mira", "secret"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if u, ok := s.CurrentUser(); !ok || u.Username != "mira" {
		t.Fatalf("expected mira, got %+v", u)
	}
	if _, err := s.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := s.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, ok := s.CurrentUser(); ok {
		t.Fatal("expected anonymous after sign out")
	}
	if _, err := s.Refresh(ctx); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after sign out, got %v", err)
	}
}

func TestSession_FailedSignInKeepsAnonymous(t *testing.T) {
	m := newManager(t)
	s := m.New()
	if _, err := s.SignIn(context.Background(), "mira", "nope"); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := s.CurrentUser(); ok {
		t.Fatal("failed sign in should not set a user")
	}
}

func TestSession_SignUpSignsIn(t *testing.T) {
	m := newManager(t)
	s := m.New()
	if _, err := s.SignUp(context.Background(), "mira", "mira@example.com", "pw"); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if _, ok := s.CurrentUser(); !ok {
		t.Fatal("expected signed in after sign up")
	}
}

// ─── Manager ───

func TestManager_IssueCarriesSessionID(t *testing.T) {
	m := newManager(t, WithAdmins("mira"))
	s := m.New()
	if _, err := s.SignIn(context.Background(), "mira", "secret"); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	tok, err := m.Issue(s)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := auth.JWTVerifier{Secret: []byte("test-secret")}.Parse(tok.AccessToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.ID != s.ID {
		t.Fatalf("expected jti %s, got %s", s.ID, claims.ID)
	}
	if claims.Subject != "u1" || claims.Role != "admin" || claims.Username != "mira" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestManager_IssueAnonymous(t *testing.T) {
	m := newManager(t)
	if _, err := m.Issue(m.New()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestManager_IdleExpiry(t *testing.T) {
	m := newManager(t, WithIdleTimeout(time.Minute))
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	s := m.New()
	now = now.Add(30 * time.Second)
	if _, ok := m.Get(s.ID); !ok {
		t.Fatal("expected session to be live")
	}
	stale := m.New()
	now = now.Add(2 * time.Minute)

	if n := m.Sweep(); n != 2 {
		t.Fatalf("expected 2 swept, got %d", n)
	}
	if _, ok := m.Get(stale.ID); ok {
		t.Fatal("expected stale session to be gone")
	}
	if m.Len() != 0 {
		t.Fatalf("expected 0 sessions, got %d", m.Len())
	}
}

func TestManager_Drop(t *testing.T) {
	m := newManager(t)
	s := m.New()
	m.Drop(s.ID)
	if _, ok := m.Get(s.ID); ok {
		t.Fatal("expected dropped session to be gone")
	}
}
