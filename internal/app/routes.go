package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/simp-lee/gemfront/internal/middleware"
	"github.com/simp-lee/gemfront/web"
)

// RouteDeps holds all dependencies needed to register routes.
type RouteDeps struct {
	Modules []Module
	// DB and Redis are the registration store backends; nil when unused.
	DB          *gorm.DB
	Redis       *redis.Client
	Mode        string // "debug" or "release"
	CSRFSecret  string
	AuthEnabled bool
}

// RegisterRoutes registers all application routes on the given gin.Engine.
func RegisterRoutes(r *gin.Engine, deps *RouteDeps) error {
	if r == nil {
		return errors.New("router is nil")
	}
	if deps == nil {
		return errors.New("route dependencies are nil")
	}
	if len(deps.Modules) == 0 {
		return errors.New("at least one module is required")
	}
	if strings.TrimSpace(deps.CSRFSecret) == "" {
		return errors.New("csrf secret is required")
	}

	if err := registerStaticRoutesWithError(r, deps.Mode); err != nil {
		return fmt.Errorf("register static routes: %w", err)
	}

	r.GET("/health", healthHandler(deps.DB, deps.Redis))

	r.GET("/", middleware.CSRF(deps.CSRFSecret), homeHandler(deps.AuthEnabled))

	// API routes: no CSRF, sessions come from bearer tokens or the cookie.
	api := r.Group("/api/v1")

	pages := r.Group("/")
	pages.Use(middleware.CSRF(deps.CSRFSecret))

	for i, m := range deps.Modules {
		if m == nil {
			return fmt.Errorf("module at index %d is nil", i)
		}
		m.RegisterRoutes(api, pages)
	}

	r.NoRoute(noRouteHandler())

	return nil
}

func homeHandler(authEnabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, _ := middleware.GetClaims(c)
		c.HTML(http.StatusOK, "home.html", gin.H{
			"AuthEnabled": authEnabled,
			"User":        claims,
			"CSRFToken":   middleware.GetCSRFToken(c),
		})
	}
}

type pinger func(ctx context.Context) error

// healthHandler pings the configured store backends. The app is degraded
// when any of them fails or none is configured.
func healthHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	checks := map[string]pinger{}
	if db != nil {
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}

	return func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		components := gin.H{}

		if len(checks) == 0 {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		for name, ping := range checks {
			ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
			err := ping(ctx)
			cancel()
			if err != nil {
				components[name] = "error"
				status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			components[name] = "ok"
		}

		c.JSON(code, gin.H{
			"status":     status,
			"components": components,
		})
	}
}

func registerStaticRoutesWithError(r *gin.Engine, mode string) error {
	if mode == "debug" {
		debugStaticFS, err := resolveDebugStaticFS()
		if err != nil {
			return fmt.Errorf("resolve debug static filesystem: %w", err)
		}
		fileServer := http.StripPrefix("/static", http.FileServer(http.FS(debugStaticFS)))
		r.GET("/static/*filepath", func(c *gin.Context) {
			fileServer.ServeHTTP(c.Writer, c.Request)
		})
		return nil
	}

	// Release mode: serve from embed.FS with cache headers.
	staticFS, err := fs.Sub(web.EmbeddedFS, "static")
	if err != nil {
		return fmt.Errorf("create sub filesystem for static assets: %w", err)
	}
	r.GET("/static/*filepath", cacheStaticHandler(http.FS(staticFS)))
	return nil
}

func resolveDebugStaticFS() (fs.FS, error) {
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		return nil, errors.New("resolve current file path")
	}

	projectRoot := filepath.Clean(filepath.Join(filepath.Dir(currentFile), "..", ".."))
	staticDir := filepath.Join(projectRoot, "web", "static")
	if _, err := os.Stat(staticDir); err != nil {
		return nil, fmt.Errorf("stat static directory %q: %w", staticDir, err)
	}

	return os.DirFS(staticDir), nil
}

// cacheStaticHandler wraps an http.FileSystem handler and sets a Cache-Control header
// for release mode static assets.
func cacheStaticHandler(fsys http.FileSystem) gin.HandlerFunc {
	fileServer := http.StripPrefix("/static", http.FileServer(fsys))
	return func(c *gin.Context) {
		c.Header("Cache-Control", "public, max-age=86400")
		fileServer.ServeHTTP(c.Writer, c.Request)
	}
}
