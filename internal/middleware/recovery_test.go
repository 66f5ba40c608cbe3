package middleware

import (
	"bytes"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func errorPagesRenderer() render.HTMLRender {
	tmpl := template.Must(template.New("errors/500.html").Parse(`page500:{{.Message}}`))
	template.Must(tmpl.New("errors/403.html").Parse(`page403:{{.Message}}`))
	return render.HTMLProduction{Template: tmpl}
}

func setupRecoveryRouter(logger *slog.Logger, html render.HTMLRender) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(logger))
	if html != nil {
		r.HTMLRender = html
	}
	r.GET("/catalog/grid", func(c *gin.Context) {
		panic("nil gem in page")
	})
	r.GET("/api/v1/views/:id", func(c *gin.Context) {
		panic("nil gem in page")
	})
	r.GET("/half", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("after write")
	})
	r.GET("/abort", func(c *gin.Context) {
		panic(http.ErrAbortHandler)
	})
	r.GET("/ok", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func TestRecovery_Responses(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		headers    map[string]string
		html       render.HTMLRender
		wantStatus int
		wantBody   string
		wantReswap bool
	}{
		{name: "no panic", path: "/ok", wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "json by default", path: "/catalog/grid", wantStatus: 500, wantBody: `"message":"internal server error"`},
		{
			name:       "api path stays json for browsers",
			path:       "/api/v1/views/x",
			headers:    map[string]string{"Accept": "text/html"},
			html:       errorPagesRenderer(),
			wantStatus: 500,
			wantBody:   `"code":500`,
		},
		{
			name:       "browser gets error page",
			path:       "/catalog/grid",
			headers:    map[string]string{"Accept": "text/html,application/xhtml+xml"},
			html:       errorPagesRenderer(),
			wantStatus: 500,
			wantBody:   "page500:internal server error",
		},
		{
			name:       "browser without renderer gets text",
			path:       "/catalog/grid",
			headers:    map[string]string{"Accept": "text/html"},
			wantStatus: 500,
			wantBody:   "500 Internal Server Error",
		},
		{
			name:       "htmx keeps the current fragment",
			path:       "/catalog/grid",
			headers:    map[string]string{"Accept": "text/html", "HX-Request": "true"},
			html:       errorPagesRenderer(),
			wantStatus: 500,
			wantReswap: true,
		},
		{name: "panic after write", path: "/half", wantStatus: http.StatusOK, wantBody: "partial"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			r := setupRecoveryRouter(newTestLogger(&logs), tt.html)
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
			if tt.wantReswap {
				if w.Header().Get("HX-Reswap") != "none" || w.Body.Len() != 0 {
					t.Errorf("htmx: HX-Reswap=%q body=%q", w.Header().Get("HX-Reswap"), w.Body.String())
				}
			}
		})
	}
}

func TestRecovery_LogsPanicWithRoute(t *testing.T) {
	var logs bytes.Buffer
	r := setupRecoveryRouter(newTestLogger(&logs), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/views/abc", nil))

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != float64(500) || body["data"] != nil {
		t.Errorf("envelope = %v", body)
	}

	out := logs.String()
	for _, want := range []string{"panic recovered", "nil gem in page", "route=/api/v1/views/:id", "path=/api/v1/views/abc", "stack="} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestRecovery_ErrAbortHandlerIsQuiet(t *testing.T) {
	var logs bytes.Buffer
	r := setupRecoveryRouter(newTestLogger(&logs), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/abort", nil))

	if logs.Len() != 0 {
		t.Errorf("unexpected log: %s", logs.String())
	}
}

func TestAbortWithError_PageFallsBackTo500Template(t *testing.T) {
	r := gin.New()
	r.HTMLRender = errorPagesRenderer()
	r.GET("/admin/gems", func(c *gin.Context) {
		abortWithError(c, http.StatusForbidden, "forbidden")
	})
	r.GET("/teapot", func(c *gin.Context) {
		abortWithError(c, http.StatusTeapot, "short and stout")
	})

	for path, want := range map[string]string{
		"/admin/gems": "page403:forbidden",
		"/teapot":     "page500:short and stout",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept", "text/html")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Body.String() != want {
			t.Errorf("%s: body = %q, want %q", path, w.Body.String(), want)
		}
	}
}
