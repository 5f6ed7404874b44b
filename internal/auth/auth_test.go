package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rpv/catalog-engine/internal/auth"
	"github.com/rpv/catalog-engine/internal/store"
)

func newService(t *testing.T) *auth.Service {
	t.Helper()
	checker := auth.StaticChecker{Username: "admin", Password: "hunter2"}
	return auth.NewService(checker, store.NewMemoryKV())
}

func TestStaticChecker(t *testing.T) {
	checker := auth.StaticChecker{Username: "admin", Password: "hunter2", Role: "Full Admin"}

	tests := []struct {
		name     string
		user     string
		pass     string
		wantErr  bool
		wantRole string
	}{
		{"exact match", "admin", "hunter2", false, "Full Admin"},
		{"username case-insensitive", "ADMIN", "hunter2", false, "Full Admin"},
		{"wrong password", "admin", "wrong", true, ""},
		{"password case-sensitive", "admin", "HUNTER2", true, ""},
		{"wrong username", "root", "hunter2", true, ""},
		{"both empty", "", "", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, err := checker.Verify(context.Background(), tt.user, tt.pass)
			if tt.wantErr {
				if !errors.Is(err, auth.ErrInvalidCredentials) {
					t.Errorf("err = %v, want ErrInvalidCredentials", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if role != tt.wantRole {
				t.Errorf("role = %q, want %q", role, tt.wantRole)
			}
		})
	}
}

func TestStaticChecker_DefaultRole(t *testing.T) {
	checker := auth.StaticChecker{Username: "admin", Password: "x"}
	role, err := checker.Verify(context.Background(), "admin", "x")
	if err != nil {
		t.Fatal(err)
	}
	if role != "Full Admin" {
		t.Errorf("role = %q, want Full Admin default", role)
	}
}

func TestLoginValidateLogout(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	sess, err := svc.Login(ctx, "admin", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Token == "" {
		t.Fatal("login issued no token")
	}

	got, err := svc.Validate(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got.Username != "admin" || got.Role != "Full Admin" {
		t.Errorf("session = %+v", got)
	}

	if err := svc.Logout(ctx, sess.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Validate(ctx, sess.Token); !errors.Is(err, auth.ErrNoSession) {
		t.Errorf("Validate after logout = %v, want ErrNoSession", err)
	}
}

func TestValidate_UnknownToken(t *testing.T) {
	svc := newService(t)
	if _, err := svc.Validate(context.Background(), "not-a-token"); !errors.Is(err, auth.ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
	if _, err := svc.Validate(context.Background(), ""); !errors.Is(err, auth.ErrNoSession) {
		t.Errorf("empty token err = %v, want ErrNoSession", err)
	}
}

func TestHandleLogin(t *testing.T) {
	svc := newService(t)

	body, _ := json.Marshal(auth.LoginRequest{Username: "admin", Password: "hunter2"})
	w := httptest.NewRecorder()
	svc.HandleLogin(w, httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", w.Code, w.Body.String())
	}
	var sess auth.Session
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatal(err)
	}
	if sess.Token == "" {
		t.Error("response carries no token")
	}
}

func TestHandleLogin_Rejections(t *testing.T) {
	svc := newService(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"bad credentials", `{"username":"admin","password":"nope"}`, http.StatusUnauthorized},
		{"missing fields", `{"username":"admin"}`, http.StatusBadRequest},
		{"malformed json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			svc.HandleLogin(w, httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(tt.body)))
			if w.Code != tt.code {
				t.Errorf("status = %d, want %d", w.Code, tt.code)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	sess, err := svc.Login(ctx, "admin", "hunter2")
	if err != nil {
		t.Fatal(err)
	}

	protected := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"valid token", "Bearer " + sess.Token, http.StatusOK},
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + sess.Token, http.StatusUnauthorized},
		{"stale token", "Bearer 00000000-0000-0000-0000-000000000000", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/items", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			protected.ServeHTTP(w, req)
			if w.Code != tt.code {
				t.Errorf("status = %d, want %d", w.Code, tt.code)
			}
		})
	}
}
