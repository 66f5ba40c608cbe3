package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/simp-lee/logger"
	"gorm.io/gorm"

	"github.com/simp-lee/gemfront/internal/assets"
	"github.com/simp-lee/gemfront/internal/catalog"
	"github.com/simp-lee/gemfront/internal/config"
	"github.com/simp-lee/gemfront/internal/domain"
	"github.com/simp-lee/gemfront/internal/middleware"
	"github.com/simp-lee/gemfront/internal/module/auth"
	catalogpages "github.com/simp-lee/gemfront/internal/module/catalog"
	"github.com/simp-lee/gemfront/internal/module/inventory"
	"github.com/simp-lee/gemfront/internal/module/registration"
	"github.com/simp-lee/gemfront/internal/module/view"
	"github.com/simp-lee/gemfront/internal/pkg"
	"github.com/simp-lee/gemfront/internal/remote"
	"github.com/simp-lee/gemfront/web"
)

const (
	publicView = "public"
	adminView  = "admin"
)

// App holds the core application dependencies and the HTTP server.
type App struct {
	engine *gin.Engine
	db     *gorm.DB
	rdb    *redis.Client
	views  *view.Service
	logger *logger.Logger
	cfg    *config.Config
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

var newHTTPServer = func(addr string, handler http.Handler, timeout time.Duration) httpServer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      timeout,
		IdleTimeout:       120 * time.Second,
	}
}

var notifyContext = func(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}

// newRemoteClient is replaced in tests.
var newRemoteClient = remote.NewClient

// New creates and wires a fully configured App from the given Config.
//
// Wiring order: logger, registration store (database or redis), remote
// client, catalog fetcher and asset source, view sessions, modules,
// middleware, templates and routes.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if cfg.FilterTable() == nil {
		return nil, errors.New("config is not validated: filter table missing")
	}

	a := &App{cfg: cfg}
	success := false
	defer func() {
		if !success {
			a.close()
		}
	}()

	// 1. Logger.
	log, err := config.SetupLogger(&cfg.Log, nil)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}
	a.logger = log

	if cfg.Server.Mode == gin.DebugMode && cfg.Server.Host == "0.0.0.0" {
		log.Warn("insecure server config: debug mode on 0.0.0.0 may expose debug behavior and permissive CORS")
	}

	// 2. Pending registration store.
	store, err := a.setupRegistrationStore()
	if err != nil {
		return nil, err
	}

	// 3. Remote API client and everything that talks to it.
	client, err := newRemoteClient(remote.Config{
		BaseURL: cfg.Remote.BaseURL,
		Timeout: config.Duration(cfg.Remote.Timeout, remote.DefaultTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("setup remote client: %w", err)
	}
	fetcher, err := catalog.NewHTTPFetcher(client, catalog.Endpoints{
		Listing: cfg.Remote.Endpoints.Listing,
		Search:  cfg.Remote.Endpoints.Search,
	}, remote.BearerHeaders)
	if err != nil {
		return nil, fmt.Errorf("setup catalog fetcher: %w", err)
	}
	source, err := newAssetSource(cfg, client)
	if err != nil {
		return nil, fmt.Errorf("setup asset source: %w", err)
	}

	// 4. View sessions.
	registry := view.NewRegistry(view.RegistryConfig{
		IdleTTL:     config.Duration(cfg.Catalog.Sessions.IdleTTL, view.DefaultIdleTTL),
		MaxSessions: cfg.Catalog.Sessions.Max,
	}, log.Logger)
	views, err := view.NewService(registry, view.Options{
		Table:          cfg.FilterTable(),
		Fetcher:        fetcher,
		Assets:         source,
		Views:          viewSpecs(cfg),
		Debounce:       config.Duration(cfg.Catalog.Debounce, catalog.DefaultDebounce),
		RequestTimeout: config.Duration(cfg.Catalog.RequestTimeout, 0),
		AssetTimeout:   config.Duration(cfg.Assets.Timeout, 0),
		Query: pkg.QueryOptions{
			MaxPageSize: cfg.Catalog.MaxPageSize,
			SortFields:  cfg.Catalog.SortFields,
		},
		Logger: log.Logger,
	})
	if err != nil {
		registry.Close()
		return nil, fmt.Errorf("setup view service: %w", err)
	}
	a.views = views

	// 5. Modules.
	authCfg := middleware.AuthConfig{
		Secret:     []byte(cfg.Auth.JWTSecret),
		CookieName: cfg.Auth.CookieName,
		LoginPath:  "/login",
	}
	var adminGuard []gin.HandlerFunc
	if cfg.Auth.Enabled {
		adminGuard = append(adminGuard, middleware.RequireRole(authCfg, cfg.Auth.AdminRole))
	}

	regSvc := registration.NewService(client, store, registration.Endpoints{
		SendOTP: cfg.Remote.Endpoints.RegisterSendOTP,
		Verify:  cfg.Remote.Endpoints.RegisterVerify,
		Resend:  cfg.Remote.Endpoints.RegisterResend,
	}, config.Duration(cfg.Registration.TTL, registration.DefaultTTL))

	modules := []Module{
		view.NewModule(view.NewHandler(views, view.HandlerConfig{
			AuthEnabled: cfg.Auth.Enabled,
			AdminRole:   cfg.Auth.AdminRole,
		})),
		catalogpages.NewModule(catalogpages.NewPageHandler(views, catalogpages.PageConfig{View: publicView})),
		inventory.NewModule(inventory.NewPageHandler(views, inventory.PageConfig{View: adminView}), adminGuard...),
		registration.NewModule(registration.NewHandler(regSvc)),
	}
	if cfg.Auth.Enabled {
		authSvc := auth.NewService(client, cfg.Remote.Endpoints.Login, authCfg.Secret)
		modules = append(modules, auth.NewModule(auth.NewHandler(authSvc, auth.CookieConfig{
			Name:   cfg.Auth.CookieName,
			Secure: cfg.Auth.CookieSecure,
		})))
	}

	// 6. Engine and middleware (not gin.Default()).
	gin.SetMode(cfg.Server.Mode)
	engine := gin.New()
	engine.Use(
		middleware.Recovery(log.Logger),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			TrustUpstream: false,
		}),
		middleware.Logger(log.Logger),
		middleware.CORSWithConfig(resolveCORSConfig(cfg.Server.Mode, cfg.Server.CORS)),
	)
	if cfg.Auth.Enabled {
		engine.Use(middleware.Authenticate(authCfg))
	}

	// 7. Templates.
	var fsys fs.FS
	if cfg.Server.Mode == gin.DebugMode {
		fsys, err = resolveDebugWebFS()
		if err != nil {
			return nil, fmt.Errorf("resolve debug template fs: %w", err)
		}
	} else {
		fsys = web.EmbeddedFS
	}
	renderer, err := NewTemplateRenderer(fsys, cfg.Server.Mode == gin.DebugMode)
	if err != nil {
		return nil, fmt.Errorf("setup template renderer: %w", err)
	}
	engine.HTMLRender = renderer

	// 8. CSRF secret.
	csrfSecret, err := resolveCSRFSecret(cfg.Server.CSRFSecret, cfg.Server.Mode, log.Logger)
	if err != nil {
		return nil, err
	}

	// 9. Routes.
	if err := RegisterRoutes(engine, &RouteDeps{
		Modules:     modules,
		DB:          a.db,
		Redis:       a.rdb,
		Mode:        cfg.Server.Mode,
		CSRFSecret:  csrfSecret,
		AuthEnabled: cfg.Auth.Enabled,
	}); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	a.engine = engine
	success = true
	return a, nil
}

// setupRegistrationStore opens the backend selected by registration.store.
func (a *App) setupRegistrationStore() (domain.PendingRegistrationStore, error) {
	cfg := a.cfg
	switch cfg.Registration.Store {
	case "redis":
		rdb, err := config.SetupRedis(context.Background(), &cfg.Redis, a.logger.Logger)
		if err != nil {
			return nil, fmt.Errorf("setup redis: %w", err)
		}
		a.rdb = rdb
		return registration.NewRedisStore(rdb, cfg.Registration.KeyPrefix), nil
	default:
		db, err := config.SetupDatabase(&cfg.Database, a.logger.Logger, &domain.PendingRegistration{})
		if err != nil {
			return nil, fmt.Errorf("setup database: %w", err)
		}
		a.db = db
		return registration.NewGormStore(db), nil
	}
}

// newAssetSource builds the gallery source named by assets.source. Concurrent
// identical loads across sessions share one upstream call.
func newAssetSource(cfg *config.Config, client remote.Client) (assets.Source, error) {
	var src assets.Source
	switch cfg.Assets.Source {
	case "object_store":
		osCfg := assets.ObjectStoreConfig{
			Endpoint:      cfg.Assets.ObjectStore.Endpoint,
			AccessKey:     cfg.Assets.ObjectStore.AccessKey,
			SecretKey:     cfg.Assets.ObjectStore.SecretKey,
			UseSSL:        cfg.Assets.ObjectStore.UseSSL,
			Region:        cfg.Assets.ObjectStore.Region,
			Bucket:        cfg.Assets.ObjectStore.Bucket,
			Prefix:        cfg.Assets.ObjectStore.Prefix,
			PresignExpiry: config.Duration(cfg.Assets.ObjectStore.PresignExpiry, assets.DefaultPresignExpiry),
		}
		mc, err := assets.NewMinioClient(osCfg)
		if err != nil {
			return nil, err
		}
		s, err := assets.NewObjectStoreSource(mc, osCfg)
		if err != nil {
			return nil, err
		}
		src = s
	default:
		s, err := assets.NewRESTSource(client, cfg.Remote.Endpoints.Assets, remote.BearerHeaders)
		if err != nil {
			return nil, err
		}
		src = s
	}
	return assets.Dedup(src), nil
}

// viewSpecs returns the mountable views. "public" and "admin" always exist;
// catalog.views may add more, which are public.
func viewSpecs(cfg *config.Config) map[string]view.Spec {
	names := []string{publicView, adminView}
	for name := range cfg.Catalog.Views {
		if name != publicView && name != adminView {
			names = append(names, name)
		}
	}
	specs := make(map[string]view.Spec, len(names))
	for _, name := range names {
		specs[name] = view.Spec{
			Initial: cfg.ViewDefaults(name),
			Admin:   name == adminView,
		}
	}
	return specs
}

func resolveCSRFSecret(secret, mode string, log *slog.Logger) (string, error) {
	if !isPlaceholderCSRFSecret(secret) {
		return secret, nil
	}
	if mode == gin.ReleaseMode {
		return "", errors.New("csrf_secret must be a non-placeholder value in release mode")
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate csrf secret: %w", err)
	}
	log.Warn("no csrf_secret configured, using random secret in non-release mode (will change on restart)")
	return hex.EncodeToString(b), nil
}

func isPlaceholderCSRFSecret(secret string) bool {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return true
	}

	switch strings.ToLower(trimmed) {
	case "change-me-to-a-random-secret", "change-me-in-env":
		return true
	default:
		return false
	}
}

// resolveCORSConfig applies server.cors over the defaults. In release mode
// an empty allowlist denies cross-origin requests.
func resolveCORSConfig(mode string, cfg config.CORSConfig) middleware.CORSConfig {
	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.AllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.AllowMethods
	}
	if len(cfg.AllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.AllowHeaders
	}
	if cfg.MaxAge != "" {
		if d, err := time.ParseDuration(cfg.MaxAge); err == nil {
			corsConfig.MaxAge = d
		}
	}
	corsConfig.AllowCredentials = cfg.AllowCredentials

	if len(cfg.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowOrigins
	} else if mode == gin.ReleaseMode {
		corsConfig.AllowOrigins = []string{}
	}
	return corsConfig
}

func resolveDebugWebFS() (fs.FS, error) {
	if _, file, _, ok := runtime.Caller(0); ok {
		webDir := filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", "web"))
		if stat, err := os.Stat(webDir); err == nil && stat.IsDir() {
			return os.DirFS(webDir), nil
		}
	}

	exePath, err := os.Executable()
	if err == nil {
		webDir := filepath.Join(filepath.Dir(exePath), "web")
		if stat, err := os.Stat(webDir); err == nil && stat.IsDir() {
			return os.DirFS(webDir), nil
		}
	}

	return nil, errors.New("debug web directory not found")
}

// Handler returns the HTTP handler, for tests and embedding.
func (a *App) Handler() http.Handler {
	return a.engine
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
// Shutdown drains HTTP requests for up to 5 seconds, then unmounts every view
// session and closes the store connections.
func (a *App) Run() error {
	if a == nil {
		return errors.New("app is nil")
	}
	if a.cfg == nil {
		return errors.New("app config is nil")
	}
	if a.engine == nil {
		return errors.New("app engine is nil")
	}

	log := a.log()
	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := newHTTPServer(addr, a.engine, config.Duration(a.cfg.Server.Timeout, 0))

	ctx, stop := notifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("server error: %w", err)
	}

	if runErr == nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", slog.Any("error", err))
		}
	}

	log.Info("server stopped")
	a.close()
	return runErr
}

// close releases everything New opened, in reverse order. It is safe on a
// partially built App.
func (a *App) close() {
	log := a.log()
	if a.views != nil {
		a.views.Close()
		a.views = nil
		log.Info("view sessions closed")
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			log.Error("redis close error", slog.Any("error", err))
		}
		a.rdb = nil
	}
	if a.db != nil {
		if err := config.CloseDatabase(a.db); err != nil {
			log.Error("database close error", slog.Any("error", err))
		} else {
			log.Info("database connection closed")
		}
		a.db = nil
	}
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
		a.logger = nil
	}
}

func (a *App) log() *slog.Logger {
	if a.logger != nil {
		return a.logger.Logger
	}
	return slog.Default()
}
