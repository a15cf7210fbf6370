package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/auth"
)

// Session is the signed-in state of one browser. It is handed explicitly
// to whatever needs the current user.
type Session struct {
	ID string

	backend Backend
	mu      sync.RWMutex
	user    *User
	cred    Credential
	seen    time.Time
}

// CurrentUser returns the user, if signed in.
func (s *Session) CurrentUser() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

func (s *Session) SignIn(ctx context.Context, username, password string) (User, error) {
	u, cred, err := s.backend.Login(ctx, username, password)
	if err != nil {
		return User{}, err
	}
	s.set(&u, cred)
	return u, nil
}

func (s *Session) SignUp(ctx context.Context, username, email, password string) (User, error) {
	u, cred, err := s.backend.Signup(ctx, username, email, password)
	if err != nil {
		return User{}, err
	}
	s.set(&u, cred)
	return u, nil
}

// SignOut ends the backend session. The local user is kept when the
// backend refuses.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.RLock()
	cred := s.cred
	s.mu.RUnlock()
	if err := s.backend.Logout(ctx, cred); err != nil {
		return err
	}
	s.set(nil, "")
	return nil
}

// Refresh re-reads the current user from the backend. Any failure signs
// the session out locally.
func (s *Session) Refresh(ctx context.Context) (User, error) {
	s.mu.RLock()
	cred := s.cred
	s.mu.RUnlock()
	u, err := s.backend.FetchCurrentUser(ctx, cred)
	if err != nil {
		s.set(nil, "")
		return User{}, err
	}
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
	return u, nil
}

func (s *Session) set(u *User, cred Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
	if cred != "" || u == nil {
		s.cred = cred
	}
}

// Token is an access token minted for a signed-in session.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

// Manager keeps sessions by id and issues access tokens whose jti is the
// session id.
type Manager struct {
	backend Backend
	signer  auth.JWTSigner
	idle    time.Duration
	admins  map[string]struct{}
	log     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

type ManagerOption func(*Manager)

// WithAdmins grants the admin role to the given usernames.
func WithAdmins(usernames ...string) ManagerOption {
	return func(m *Manager) {
		for _, u := range usernames {
			if u != "" {
				m.admins[u] = struct{}{}
			}
		}
	}
}

// WithIdleTimeout drops sessions unused for d. Zero keeps them forever.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.idle = d }
}

func NewManager(backend Backend, signer auth.JWTSigner, log *zap.Logger, opts ...ManagerOption) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		backend:  backend,
		signer:   signer,
		idle:     7 * 24 * time.Hour,
		admins:   map[string]struct{}{},
		log:      log,
		sessions: map[string]*Session{},
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// New creates an anonymous session.
func (m *Manager) New() *Session {
	s := &Session{ID: uuid.NewString(), backend: m.backend}
	m.mu.Lock()
	s.seen = m.now()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns a live session and marks it used.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	now := m.now()
	if m.idle > 0 && now.Sub(s.seen) > m.idle {
		delete(m.sessions, id)
		return nil, false
	}
	s.seen = now
	return s, true
}

func (m *Manager) Drop(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Sweep removes idle sessions and returns how many were dropped.
func (m *Manager) Sweep() int {
	if m.idle <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for id, s := range m.sessions {
		if now.Sub(s.seen) > m.idle {
			delete(m.sessions, id)
			n++
		}
	}
	if n > 0 {
		m.log.Debug("sessions swept", zap.Int("count", n))
	}
	return n
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Issue mints an access token for a signed-in session.
func (m *Manager) Issue(s *Session) (Token, error) {
	u, ok := s.CurrentUser()
	if !ok {
		return Token{}, ErrUnauthorized
	}
	if u.ID == "" {
		return Token{}, errors.New("backend user has no id")
	}
	role := "user"
	if _, admin := m.admins[u.Username]; admin {
		role = "admin"
	}
	tok, exp, err := m.signer.Sign(u.ID, u.Username, role, s.ID)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: tok, ExpiresAt: exp, User: u}, nil
}
