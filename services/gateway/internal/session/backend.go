// Package session wraps the external auth backend. A Session holds the
// signed-in user of one browser and the backend credential that proves it.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("already exists")
	ErrInvalid      = errors.New("invalid request")
)

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Credential is the backend's session cookie header, relayed as-is.
type Credential string

// Backend is the auth capability the gateway consumes.
type Backend interface {
	Signup(ctx context.Context, username, email, password string) (User, Credential, error)
	Login(ctx context.Context, username, password string) (User, Credential, error)
	Logout(ctx context.Context, cred Credential) error
	FetchCurrentUser(ctx context.Context, cred Credential) (User, error)
}

// BackendError carries the status and message the backend answered with.
type BackendError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("auth %s: %s (status %d)", e.Op, e.Message, e.Status)
	}
	return fmt.Sprintf("auth %s: status %d: %v", e.Op, e.Status, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// HTTPBackend talks to the auth backend's JSON API.
type HTTPBackend struct {
	BaseURL string
	HTTP    *http.Client
	Log     *zap.Logger
}

func NewHTTPBackend(baseURL string, timeout time.Duration, log *zap.Logger) *HTTPBackend {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPBackend{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Log:     log,
	}
}

type wireUser struct {
	ID        string `json:"id"`
	MongoID   string `json:"_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

func (w *wireUser) user() User {
	u := User{ID: w.ID, Username: w.Username, Email: w.Email}
	if u.ID == "" {
		u.ID = w.MongoID
	}
	if t, err := time.Parse(time.RFC3339Nano, w.CreatedAt); err == nil {
		u.CreatedAt = t
	}
	return u
}

type wireResponse struct {
	User    *wireUser `json:"user"`
	Message string    `json:"message"`
}

func (b *HTTPBackend) Signup(ctx context.Context, username, email, password string) (User, Credential, error) {
	body := map[string]string{"username": username, "email": email, "password": password}
	resp, cred, err := b.call(ctx, "signup", http.MethodPost, "/signup", body, "")
	if err != nil {
		return User{}, "", err
	}
	if resp.User == nil {
		return User{}, "", &BackendError{Op: "signup", Status: http.StatusOK, Message: "response has no user", Err: ErrInvalid}
	}
	return resp.User.user(), cred, nil
}

func (b *HTTPBackend) Login(ctx context.Context, username, password string) (User, Credential, error) {
	body := map[string]string{"username": username, "password": password}
	resp, cred, err := b.call(ctx, "login", http.MethodPost, "/login", body, "")
	if err != nil {
		return User{}, "", err
	}
	if resp.User == nil {
		return User{}, "", &BackendError{Op: "login", Status: http.StatusOK, Message: "response has no user", Err: ErrUnauthorized}
	}
	return resp.User.user(), cred, nil
}

func (b *HTTPBackend) Logout(ctx context.Context, cred Credential) error {
	_, _, err := b.call(ctx, "logout", http.MethodPost, "/logout", nil, cred)
	return err
}

func (b *HTTPBackend) FetchCurrentUser(ctx context.Context, cred Credential) (User, error) {
	if cred == "" {
		return User{}, &BackendError{Op: "fetch-user", Status: http.StatusUnauthorized, Message: "no credential", Err: ErrUnauthorized}
	}
	resp, _, err := b.call(ctx, "fetch-user", http.MethodGet, "/fetch-user", nil, cred)
	if err != nil {
		return User{}, err
	}
	if resp.User == nil {
		return User{}, &BackendError{Op: "fetch-user", Status: http.StatusOK, Message: "response has no user", Err: ErrUnauthorized}
	}
	return resp.User.user(), nil
}

func (b *HTTPBackend) call(ctx context.Context, op, method, path string, body any, cred Credential) (*wireResponse, Credential, error) {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, "", err
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.BaseURL+path, rdr)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred != "" {
		req.Header.Set("Cookie", string(cred))
	}

	res, err := b.HTTP.Do(req)
	if err != nil {
		b.Log.Warn("auth backend unreachable", zap.String("op", op), zap.Error(err))
		return nil, "", fmt.Errorf("auth %s: %w", op, err)
	}
	defer res.Body.Close()

	var out wireResponse
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	decodeErr := json.Unmarshal(raw, &out)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, "", &BackendError{Op: op, Status: res.StatusCode, Message: out.Message, Err: statusErr(res.StatusCode)}
	}
	if decodeErr != nil && len(bytes.TrimSpace(raw)) > 0 {
		return nil, "", fmt.Errorf("auth %s: decode response: %w", op, decodeErr)
	}
	return &out, cookieHeader(res.Cookies()), nil
}

func statusErr(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusConflict:
		return ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrInvalid
	default:
		return errors.New(http.StatusText(status))
	}
}

// cookieHeader folds Set-Cookie values into a Cookie request header.
// Cookies the backend is deleting are left out.
func cookieHeader(cookies []*http.Cookie) Credential {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.MaxAge < 0 || c.Value == "" {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return Credential(strings.Join(parts, "; "))
}
