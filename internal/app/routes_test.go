package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/simp-lee/gemfront/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testCSRFSecret = "test-secret-32-chars-long-enough"

// routeTestFS returns a minimal template filesystem for route handler tests.
func routeTestFS() fstest.MapFS {
	return fstest.MapFS{
		"templates/layouts/base.html": &fstest.MapFile{
			Data: []byte(`{{ define "base" }}{{ block "content" . }}{{ end }}{{ end }}`),
		},
		"templates/partials/nav.html": &fstest.MapFile{
			Data: []byte(`{{ define "nav" }}{{ end }}`),
		},
		"templates/home.html": &fstest.MapFile{
			Data: []byte(`{{ template "base" . }}{{ define "content" }}home:{{ .AuthEnabled }}:{{ with .User }}{{ .Email }}{{ end }}:{{ .CSRFToken }}{{ end }}`),
		},
		"templates/errors/404.html": &fstest.MapFile{
			Data: []byte(`{{ template "base" . }}{{ define "content" }}404 {{ .Path }}{{ end }}`),
		},
		"templates/errors/500.html": &fstest.MapFile{
			Data: []byte(`{{ template "base" . }}{{ define "content" }}500{{ end }}`),
		},
	}
}

func setupTestRouter() *gin.Engine {
	r := gin.New()
	renderer, err := NewTemplateRenderer(routeTestFS(), true)
	if err != nil {
		panic("setup renderer: " + err.Error())
	}
	r.HTMLRender = renderer
	return r
}

func openTestSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	return db
}

func getHealth(t *testing.T, h gin.HandlerFunc) (int, map[string]any) {
	t.Helper()
	r := gin.New()
	r.GET("/health", h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return w.Code, body
}

func TestHealthHandler(t *testing.T) {
	t.Run("database ok", func(t *testing.T) {
		code, body := getHealth(t, healthHandler(openTestSQLiteDB(t), nil))
		if code != http.StatusOK || body["status"] != "ok" {
			t.Fatalf("got %d %v", code, body)
		}
		comps := body["components"].(map[string]any)
		if comps["database"] != "ok" {
			t.Errorf("database = %v", comps["database"])
		}
		if _, ok := comps["redis"]; ok {
			t.Error("redis reported but not configured")
		}
	})

	t.Run("database down", func(t *testing.T) {
		db := openTestSQLiteDB(t)
		sqlDB, _ := db.DB()
		sqlDB.Close()

		code, body := getHealth(t, healthHandler(db, nil))
		if code != http.StatusServiceUnavailable || body["status"] != "degraded" {
			t.Fatalf("got %d %v", code, body)
		}
		if comps := body["components"].(map[string]any); comps["database"] != "error" {
			t.Errorf("database = %v", comps["database"])
		}
	})

	t.Run("redis unreachable", func(t *testing.T) {
		rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
		t.Cleanup(func() { rdb.Close() })

		code, body := getHealth(t, healthHandler(nil, rdb))
		if code != http.StatusServiceUnavailable {
			t.Fatalf("got %d %v", code, body)
		}
		if comps := body["components"].(map[string]any); comps["redis"] != "error" {
			t.Errorf("redis = %v", comps["redis"])
		}
	})

	t.Run("no backend", func(t *testing.T) {
		code, body := getHealth(t, healthHandler(nil, nil))
		if code != http.StatusServiceUnavailable || body["status"] != "degraded" {
			t.Fatalf("got %d %v", code, body)
		}
	})
}

func TestNoRouteHandler(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		accept   string
		wantJSON bool
	}{
		{"json client", "/nonexistent", "application/json", true},
		{"browser", "/catalog/nope/x/y", "text/html", false},
		{"wildcard accept", "/nonexistent", "*/*", false},
		{"api path prefers json", "/api/v1/nonexistent", "*/*", true},
		{"json with wildcard", "/nonexistent", "application/json, */*", true},
		{"bare /api is a page", "/api", "*/*", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupTestRouter()
			r.NoRoute(noRouteHandler())

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("Accept", tt.accept)
			r.ServeHTTP(w, req)

			if w.Code != http.StatusNotFound {
				t.Fatalf("status = %d, want 404", w.Code)
			}
			ct := w.Header().Get("Content-Type")
			if tt.wantJSON {
				var body map[string]any
				if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if body["message"] != "not found" {
					t.Errorf("message = %v", body["message"])
				}
				return
			}
			if !strings.Contains(ct, "text/html") {
				t.Errorf("Content-Type = %q, want html", ct)
			}
			if want := "404 " + tt.path; !strings.Contains(w.Body.String(), want) {
				t.Errorf("body = %q, want %q", w.Body.String(), want)
			}
		})
	}
}

func TestRegisterStaticRoutes(t *testing.T) {
	for _, mode := range []string{gin.DebugMode, gin.ReleaseMode} {
		t.Run(mode, func(t *testing.T) {
			r := gin.New()
			if err := registerStaticRoutesWithError(r, mode); err != nil {
				t.Fatalf("registerStaticRoutesWithError: %v", err)
			}
			found := false
			for _, route := range r.Routes() {
				if route.Method == http.MethodGet && route.Path == "/static/*filepath" {
					found = true
				}
			}
			if !found {
				t.Error("expected /static/*filepath route")
			}
		})
	}
}

func TestCacheStaticHandler_SetsCacheControl(t *testing.T) {
	memFS := fstest.MapFS{
		"app.css": &fstest.MapFile{Data: []byte("body{}")},
	}
	r := gin.New()
	r.GET("/static/*filepath", cacheStaticHandler(http.FS(memFS)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=86400" {
		t.Errorf("Cache-Control = %q", cc)
	}
}

// mockModule records the groups it was given.
type mockModule struct {
	called bool
}

func (m *mockModule) RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) {
	m.called = true
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	pages.POST("/form", func(c *gin.Context) { c.String(http.StatusOK, "posted") })
}

func TestRegisterRoutes_Validation(t *testing.T) {
	tests := []struct {
		name    string
		router  *gin.Engine
		deps    *RouteDeps
		wantErr string
	}{
		{"nil router", nil, &RouteDeps{}, "router is nil"},
		{"nil deps", gin.New(), nil, "route dependencies are nil"},
		{"no modules", gin.New(), &RouteDeps{CSRFSecret: testCSRFSecret}, "at least one module is required"},
		{"empty csrf", gin.New(), &RouteDeps{Modules: []Module{&mockModule{}}}, "csrf secret is required"},
		{"nil module", gin.New(), &RouteDeps{Modules: []Module{&mockModule{}, nil}, Mode: gin.ReleaseMode, CSRFSecret: testCSRFSecret}, "module at index 1 is nil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RegisterRoutes(tt.router, tt.deps)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestRegisterRoutes_GroupsAndCSRF(t *testing.T) {
	m := &mockModule{}
	r := setupTestRouter()
	err := RegisterRoutes(r, &RouteDeps{
		Modules:    []Module{m},
		DB:         openTestSQLiteDB(t),
		Mode:       gin.ReleaseMode,
		CSRFSecret: testCSRFSecret,
	})
	if err != nil {
		t.Fatalf("RegisterRoutes: %v", err)
	}
	if !m.called {
		t.Fatal("module RegisterRoutes not called")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	if w.Code != http.StatusOK || w.Body.String() != "pong" {
		t.Errorf("api route: %d %q", w.Code, w.Body.String())
	}

	// Page POSTs need a CSRF token.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/form", nil))
	if w.Code != http.StatusForbidden {
		t.Errorf("page POST without token: status = %d, want 403", w.Code)
	}
}

func TestHomePage(t *testing.T) {
	r := setupTestRouter()
	r.Use(func(c *gin.Context) {
		c.Set("auth_claims", &middleware.Claims{Email: "alice@example.com"})
		c.Next()
	})
	if err := RegisterRoutes(r, &RouteDeps{
		Modules:     []Module{&mockModule{}},
		Mode:        gin.ReleaseMode,
		CSRFSecret:  testCSRFSecret,
		AuthEnabled: true,
	}); err != nil {
		t.Fatalf("RegisterRoutes: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.HasPrefix(body, "home:true:alice@example.com:") || strings.HasSuffix(body, ":") {
		t.Errorf("body = %q, want user and csrf token", body)
	}
}
