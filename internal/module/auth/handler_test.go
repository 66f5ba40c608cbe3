package auth

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/gemfront/internal/domain"
)

// mockService implements Service for handler testing.
type mockService struct {
	result *LoginResult
	err    error
}

func (m *mockService) Login(context.Context, string, string) (*LoginResult, error) {
	return m.result, m.err
}

func okService() *mockService {
	return &mockService{result: &LoginResult{
		Token:     "tok-123",
		ExpiresAt: time.Now().Add(time.Hour),
		User:      User{Email: "alice@example.com", Role: "admin"},
	}}
}

func setupAuthRouter(h *AuthHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.SetHTMLTemplate(template.Must(template.New("").Parse(
		`{{define "auth/login.html"}}login|{{.Next}}|{{.Error}}{{end}}`,
	)))
	NewModule(h).RegisterRoutes(r.Group("/api/v1"), r.Group("/"))
	return r
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Login_Success(t *testing.T) {
	r := setupAuthRouter(NewHandler(okService(), CookieConfig{Name: "session"}))

	body := `{"email":"alice@example.com","password":"secret1234"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	cookie := sessionCookie(w)
	if cookie == nil || cookie.Value != "tok-123" || !cookie.HttpOnly {
		t.Fatalf("cookie = %+v", cookie)
	}
	if cookie.MaxAge <= 0 {
		t.Errorf("MaxAge = %d, want positive", cookie.MaxAge)
	}

	var resp struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, leaked := resp.Data["token"]; leaked {
		t.Error("token must not be in the body")
	}
	user, _ := resp.Data["user"].(map[string]any)
	if user["email"] != "alice@example.com" {
		t.Errorf("user = %v", resp.Data["user"])
	}
}

func TestAuthHandler_Login_Errors(t *testing.T) {
	tests := []struct {
		name       string
		svc        *mockService
		body       string
		wantStatus int
	}{
		{"validation", okService(), `{"email":"nope"}`, http.StatusBadRequest},
		{"bad credentials", &mockService{err: domain.NewAppError(domain.CodeUnauthorized, "Invalid credentials", nil)}, `{"email":"a@example.com","password":"x"}`, http.StatusUnauthorized},
		{"upstream", &mockService{err: domain.NewAppError(domain.CodeUpstream, "request failed", nil)}, `{"email":"a@example.com","password":"x"}`, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupAuthRouter(NewHandler(tt.svc, CookieConfig{}))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if sessionCookie(w) != nil {
				t.Error("no cookie expected on failure")
			}
		})
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	r := setupAuthRouter(NewHandler(okService(), CookieConfig{}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if c := sessionCookie(w); c == nil || c.MaxAge >= 0 {
		t.Errorf("cookie = %+v, want expired", c)
	}
}

func TestAuthHandler_LoginPage(t *testing.T) {
	r := setupAuthRouter(NewHandler(okService(), CookieConfig{}))

	tests := map[string]string{
		"/login?next=%2Fadmin%2Fgems":        "login|/admin/gems|",
		"/login?next=https%3A%2F%2Fevil.com": "login|/|",
		"/login?next=%2F%2Fevil.com":         "login|/|",
		"/login":                             "login|/|",
	}
	for path, want := range tests {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Body.String() != want {
			t.Errorf("GET %s = %q, want %q", path, w.Body.String(), want)
		}
	}
}

func TestAuthHandler_LoginSubmit(t *testing.T) {
	form := url.Values{"email": {"alice@example.com"}, "password": {"pw"}, "next": {"/admin/gems?page=2"}}

	t.Run("redirects to next", func(t *testing.T) {
		r := setupAuthRouter(NewHandler(okService(), CookieConfig{}))
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusSeeOther {
			t.Fatalf("status = %d, want 303", w.Code)
		}
		if got := w.Header().Get("Location"); got != "/admin/gems?page=2" {
			t.Errorf("Location = %q", got)
		}
		if sessionCookie(w) == nil {
			t.Error("session cookie not set")
		}
	})

	t.Run("htmx gets HX-Redirect", func(t *testing.T) {
		r := setupAuthRouter(NewHandler(okService(), CookieConfig{}))
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("HX-Request", "true")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if got := w.Header().Get("HX-Redirect"); got != "/admin/gems?page=2" {
			t.Errorf("HX-Redirect = %q", got)
		}
	})

	t.Run("failure re-renders with message", func(t *testing.T) {
		svc := &mockService{err: domain.NewAppError(domain.CodeUnauthorized, "Invalid credentials", nil)}
		r := setupAuthRouter(NewHandler(svc, CookieConfig{}))
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if w.Body.String() != "login|/admin/gems?page=2|Invalid credentials" {
			t.Errorf("body = %q", w.Body.String())
		}
	})
}

func TestNewModule_PanicsOnNilHandler(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewModule() expected panic for nil handler, got none")
		}
	}()
	_ = NewModule(nil)
}
