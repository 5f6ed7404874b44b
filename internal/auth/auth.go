// Package auth gates the admin CRUD surface behind a single credential
// check. A successful login issues an opaque session token stored in the
// KV adapter with a 30-minute TTL; admin routes check the bearer token on
// every request.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/rpv/catalog-engine/internal/metrics"
	"github.com/rpv/catalog-engine/internal/store"
)

var (
	// ErrInvalidCredentials is returned for a failed credential check.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrNoSession is returned for a missing or expired session token.
	ErrNoSession = errors.New("auth: no active session")
)

// CredentialChecker performs the external credential check. The core
// treats it as a single call with a yes/no answer plus a role.
type CredentialChecker interface {
	Verify(ctx context.Context, username, password string) (role string, err error)
}

// StaticChecker verifies against configured credentials with
// constant-time comparison.
type StaticChecker struct {
	Username string
	Password string
	Role     string
}

func (c StaticChecker) Verify(_ context.Context, username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(strings.ToLower(username)), []byte(strings.ToLower(c.Username))) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(c.Password)) == 1
	if !userOK || !passOK {
		return "", ErrInvalidCredentials
	}
	role := c.Role
	if role == "" {
		role = "Full Admin"
	}
	return role, nil
}

// Session is the stored admin session.
type Session struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Service issues and validates admin sessions.
type Service struct {
	checker CredentialChecker
	kv      store.KV
}

// NewService creates the auth service.
func NewService(checker CredentialChecker, kv store.KV) *Service {
	return &Service{checker: checker, kv: kv}
}

// Login verifies credentials and stores a fresh session under the
// session key prefix with the shared 30-minute TTL.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	role, err := s.checker.Verify(ctx, username, password)
	if err != nil {
		metrics.AdminLoginsTotal.WithLabelValues("denied").Inc()
		return nil, err
	}

	sess := &Session{
		Token:    uuid.New().String(),
		Username: username,
		Role:     role,
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("auth: marshal session: %w", err)
	}
	if err := s.kv.Save(ctx, store.SessionKeyPrefix+sess.Token, data, store.SnapshotTTL); err != nil {
		return nil, fmt.Errorf("auth: save session: %w", err)
	}

	metrics.AdminLoginsTotal.WithLabelValues("ok").Inc()
	slog.Info("admin login", "user", username, "role", role)
	return sess, nil
}

// Validate resolves a token to its session, or ErrNoSession.
func (s *Service) Validate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	data, err := s.kv.Load(ctx, store.SessionKeyPrefix+token)
	if err != nil {
		return nil, fmt.Errorf("auth: load session: %w", err)
	}
	if data == nil {
		return nil, ErrNoSession
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("auth: corrupt session: %w", err)
	}
	return &sess, nil
}

// Logout clears a session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.kv.Clear(ctx, store.SessionKeyPrefix+token)
}

// --- HTTP surface ---

// LoginRequest is the JSON body for POST /api/v1/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin handles POST /api/v1/login.
func (s *Service) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, "username and password are required", http.StatusBadRequest)
		return
	}

	sess, err := s.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		writeError(w, "login failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleLogout handles POST /api/v1/logout.
func (s *Service) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.Logout(r.Context(), bearerToken(r)); err != nil {
		writeError(w, "logout failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Middleware rejects requests without a valid admin session.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.Validate(r.Context(), bearerToken(r)); err != nil {
			writeError(w, "admin session required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(h, prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
