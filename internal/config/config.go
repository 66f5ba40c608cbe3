package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/simp-lee/gemfront/internal/catalog"
)

// Config is the top-level application configuration.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Log          LogConfig          `koanf:"log"`
	Database     DatabaseConfig     `koanf:"database"`
	Redis        RedisConfig        `koanf:"redis"`
	Remote       RemoteConfig       `koanf:"remote"`
	Catalog      CatalogConfig      `koanf:"catalog"`
	Assets       AssetsConfig       `koanf:"assets"`
	Registration RegistrationConfig `koanf:"registration"`
	Auth         AuthConfig         `koanf:"auth"`

	filterTable *catalog.FilterTable
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host       string     `koanf:"host"`
	Port       int        `koanf:"port"`
	Mode       string     `koanf:"mode"`
	CSRFSecret string     `koanf:"csrf_secret"`
	Timeout    string     `koanf:"timeout"`
	CORS       CORSConfig `koanf:"cors"`
}

// CORSConfig holds CORS middleware settings.
type CORSConfig struct {
	AllowOrigins     []string `koanf:"allow_origins"`
	AllowMethods     []string `koanf:"allow_methods"`
	AllowHeaders     []string `koanf:"allow_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           string   `koanf:"max_age"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string         `koanf:"driver"`
	SQLite   SQLiteConfig   `koanf:"sqlite"`
	Postgres PostgresConfig `koanf:"postgres"`
	Pool     PoolConfig     `koanf:"pool"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
	SSLMode  string `koanf:"sslmode"`
}

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxIdleConns    int    `koanf:"max_idle_conns"`
	MaxOpenConns    int    `koanf:"max_open_conns"`
	ConnMaxLifetime string `koanf:"conn_max_lifetime"`
}

// RedisConfig holds the Redis connection used by the redis registration store.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level           string `koanf:"level"`
	Format          string `koanf:"format"`
	Color           *bool  `koanf:"color"`
	FilePath        string `koanf:"file_path"`
	MaxSizeMB       int    `koanf:"max_size_mb"`
	RetentionDays   int    `koanf:"retention_days"`
	MaxBackups      int    `koanf:"max_backups"`
	CompressRotated *bool  `koanf:"compress_rotated"`
}

// RemoteConfig points at the gemstone REST API.
type RemoteConfig struct {
	BaseURL   string          `koanf:"base_url"`
	Timeout   string          `koanf:"timeout"`
	Endpoints EndpointsConfig `koanf:"endpoints"`
}

// EndpointsConfig holds the remote API paths, relative to base_url.
type EndpointsConfig struct {
	Listing         string `koanf:"listing"`
	Search          string `koanf:"search"`
	Login           string `koanf:"login"`
	RegisterSendOTP string `koanf:"register_send_otp"`
	RegisterVerify  string `koanf:"register_verify"`
	RegisterResend  string `koanf:"register_resend"`
	Assets          string `koanf:"assets"`
}

// CatalogConfig holds the grid defaults and the central filter table.
type CatalogConfig struct {
	Debounce         string                `koanf:"debounce"`
	RequestTimeout   string                `koanf:"request_timeout"`
	DefaultPageSize  int                   `koanf:"default_page_size"`
	MaxPageSize      int                   `koanf:"max_page_size"`
	DefaultSortBy    string                `koanf:"default_sort_by"`
	DefaultSortOrder string                `koanf:"default_sort_order"`
	SortFields       []string              `koanf:"sort_fields"`
	KnownParams      []string              `koanf:"known_params"`
	Filters          []FilterConfig        `koanf:"filters"`
	Views            map[string]ViewConfig `koanf:"views"`
	Sessions         SessionsConfig        `koanf:"sessions"`
}

// FilterConfig is one row of the filter table.
type FilterConfig struct {
	Key     string            `koanf:"key"`
	Param   string            `koanf:"param"`
	Kind    string            `koanf:"kind"`
	Options []string          `koanf:"options"`
	Values  map[string]string `koanf:"values"`
	Min     float64           `koanf:"min"`
	Max     float64           `koanf:"max"`
}

// ViewConfig overrides the grid defaults for one view ("admin", "public").
// Filters may only restate rows of the central table.
type ViewConfig struct {
	PageSize  int            `koanf:"page_size"`
	SortBy    string         `koanf:"sort_by"`
	SortOrder string         `koanf:"sort_order"`
	Filters   []FilterConfig `koanf:"filters"`
}

// SessionsConfig bounds the server-side view sessions.
type SessionsConfig struct {
	IdleTTL string `koanf:"idle_ttl"`
	Max     int    `koanf:"max"`
}

// AssetsConfig selects where gallery URLs come from.
type AssetsConfig struct {
	Source      string            `koanf:"source"`
	Timeout     string            `koanf:"timeout"`
	ObjectStore ObjectStoreConfig `koanf:"object_store"`
}

// ObjectStoreConfig holds the S3-compatible bucket settings.
type ObjectStoreConfig struct {
	Endpoint      string `koanf:"endpoint"`
	AccessKey     string `koanf:"access_key"`
	SecretKey     string `koanf:"secret_key"`
	UseSSL        bool   `koanf:"use_ssl"`
	Region        string `koanf:"region"`
	Bucket        string `koanf:"bucket"`
	Prefix        string `koanf:"prefix"`
	PresignExpiry string `koanf:"presign_expiry"`
}

// RegistrationConfig holds the pending-registration store settings.
type RegistrationConfig struct {
	Store     string `koanf:"store"`
	TTL       string `koanf:"ttl"`
	KeyPrefix string `koanf:"key_prefix"`
}

// AuthConfig holds session verification settings.
type AuthConfig struct {
	Enabled      bool   `koanf:"enabled"`
	JWTSecret    string `koanf:"jwt_secret"`
	CookieName   string `koanf:"cookie_name"`
	CookieSecure bool   `koanf:"cookie_secure"`
	TokenExpiry  string `koanf:"token_expiry"`
	AdminRole    string `koanf:"admin_role"`
}

// Load reads configuration from a YAML file and overlays environment variables.
// Environment variables use the prefix "APP__" and double-underscore as the
// hierarchy separator. Single underscores are preserved as part of the key name.
// For example, APP__SERVER__PORT=9090 overrides server.port and
// APP__REMOTE__BASE_URL=https://api.example.com overrides remote.base_url.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}

	// APP__CATALOG__SESSIONS__IDLE_TTL -> catalog.sessions.idle_ttl
	if err := k.Load(env.Provider("APP__", ".", func(s string) string {
		key := strings.TrimPrefix(s, "APP__")
		key = strings.ToLower(key)
		key = strings.ReplaceAll(key, "__", ".")
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints and supported values.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateRegistration(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateAssets(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	return c.validateLog()
}

func (c *Config) validateServer() error {
	mode := strings.TrimSpace(c.Server.Mode)
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		c.Server.Mode = mode
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", c.Server.Mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", c.Server.Port)
	}

	host := strings.TrimSpace(c.Server.Host)
	if host == "" {
		return fmt.Errorf("server.host is required")
	}
	c.Server.Host = host

	c.Server.Timeout = strings.TrimSpace(c.Server.Timeout)
	if _, err := optionalDuration("server.timeout", c.Server.Timeout); err != nil {
		return err
	}

	c.Server.CORS.MaxAge = strings.TrimSpace(c.Server.CORS.MaxAge)
	if ma := c.Server.CORS.MaxAge; ma != "" {
		d, err := time.ParseDuration(ma)
		if err != nil {
			return fmt.Errorf("invalid server.cors.max_age %q: must be a valid duration (e.g. \"24h\", \"3600s\"): %w", c.Server.CORS.MaxAge, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid server.cors.max_age %q: must be greater than 0", c.Server.CORS.MaxAge)
		}
	}
	return nil
}

func (c *Config) validateDatabase() error {
	// The database only backs the database registration store.
	if c.Database.Driver == "" && c.Registration.Store == "redis" {
		return nil
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid database.driver %q: must be one of %q, %q", c.Database.Driver, "sqlite", "postgres")
	}

	if c.Database.Driver == "sqlite" {
		sqlitePath := strings.TrimSpace(c.Database.SQLite.Path)
		if sqlitePath == "" {
			return fmt.Errorf("database.sqlite.path is required when driver is sqlite")
		}
		c.Database.SQLite.Path = sqlitePath
	}

	if c.Database.Driver == "postgres" {
		host := strings.TrimSpace(c.Database.Postgres.Host)
		if host == "" {
			return fmt.Errorf("database.postgres.host is required when driver is postgres")
		}
		if c.Database.Postgres.Port < 1 || c.Database.Postgres.Port > 65535 {
			return fmt.Errorf("invalid database.postgres.port %d: must be between 1 and 65535", c.Database.Postgres.Port)
		}
		user := strings.TrimSpace(c.Database.Postgres.User)
		if user == "" {
			return fmt.Errorf("database.postgres.user is required when driver is postgres")
		}
		dbName := strings.TrimSpace(c.Database.Postgres.DBName)
		if dbName == "" {
			return fmt.Errorf("database.postgres.dbname is required when driver is postgres")
		}
		sslMode := strings.TrimSpace(c.Database.Postgres.SSLMode)
		switch sslMode {
		case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
		default:
			return fmt.Errorf("invalid database.postgres.sslmode %q: must be one of %q, %q, %q, %q, %q, %q", c.Database.Postgres.SSLMode, "disable", "allow", "prefer", "require", "verify-ca", "verify-full")
		}
		if c.Server.Mode == gin.ReleaseMode {
			switch sslMode {
			case "require", "verify-ca", "verify-full":
			default:
				return fmt.Errorf("invalid database.postgres.sslmode %q for server.mode %q: must be one of %q, %q, %q", c.Database.Postgres.SSLMode, gin.ReleaseMode, "require", "verify-ca", "verify-full")
			}
		}

		c.Database.Postgres.Host = host
		c.Database.Postgres.User = user
		c.Database.Postgres.DBName = dbName
		c.Database.Postgres.SSLMode = sslMode
	}

	c.Database.Pool.ConnMaxLifetime = strings.TrimSpace(c.Database.Pool.ConnMaxLifetime)
	if _, err := optionalDuration("database.pool.conn_max_lifetime", c.Database.Pool.ConnMaxLifetime); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRemote() error {
	base := strings.TrimSpace(c.Remote.BaseURL)
	if base == "" {
		return fmt.Errorf("remote.base_url is required")
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid remote.base_url %q: must be an absolute http(s) URL", c.Remote.BaseURL)
	}
	c.Remote.BaseURL = base

	c.Remote.Timeout = strings.TrimSpace(c.Remote.Timeout)
	if _, err := optionalDuration("remote.timeout", c.Remote.Timeout); err != nil {
		return err
	}

	ep := &c.Remote.Endpoints
	paths := []struct {
		name  string
		value *string
		def   string
	}{
		{"remote.endpoints.listing", &ep.Listing, "/gems"},
		{"remote.endpoints.search", &ep.Search, "/gems/search"},
		{"remote.endpoints.login", &ep.Login, "/auth/login"},
		{"remote.endpoints.register_send_otp", &ep.RegisterSendOTP, "/auth/register/send-otp"},
		{"remote.endpoints.register_verify", &ep.RegisterVerify, "/auth/register/verify-otp"},
		{"remote.endpoints.register_resend", &ep.RegisterResend, "/auth/register/resend-otp"},
		{"remote.endpoints.assets", &ep.Assets, "/gems/{id}/{kinds}"},
	}
	for _, p := range paths {
		v := strings.TrimSpace(*p.value)
		if v == "" {
			v = p.def
		}
		if !strings.HasPrefix(v, "/") {
			return fmt.Errorf("invalid %s %q: must start with '/'", p.name, *p.value)
		}
		*p.value = v
	}
	if !strings.Contains(ep.Assets, "{id}") {
		return fmt.Errorf("invalid remote.endpoints.assets %q: must contain {id}", ep.Assets)
	}
	return nil
}

func (c *Config) validateCatalog() error {
	cat := &c.Catalog

	cat.Debounce = strings.TrimSpace(cat.Debounce)
	if _, err := optionalDuration("catalog.debounce", cat.Debounce); err != nil {
		return err
	}
	cat.RequestTimeout = strings.TrimSpace(cat.RequestTimeout)
	if _, err := optionalDuration("catalog.request_timeout", cat.RequestTimeout); err != nil {
		return err
	}

	if cat.DefaultPageSize == 0 {
		cat.DefaultPageSize = 20
	}
	if cat.MaxPageSize == 0 {
		cat.MaxPageSize = 100
	}
	if cat.DefaultPageSize < 1 || cat.MaxPageSize < 1 {
		return fmt.Errorf("invalid catalog page sizes: default_page_size and max_page_size must be positive")
	}
	if cat.DefaultPageSize > cat.MaxPageSize {
		return fmt.Errorf("invalid catalog.default_page_size %d: must not exceed max_page_size %d", cat.DefaultPageSize, cat.MaxPageSize)
	}

	order, err := sortOrder("catalog.default_sort_order", cat.DefaultSortOrder)
	if err != nil {
		return err
	}
	cat.DefaultSortOrder = string(order)
	cat.DefaultSortBy = strings.TrimSpace(cat.DefaultSortBy)
	if cat.DefaultSortBy != "" && len(cat.SortFields) > 0 && !contains(cat.SortFields, cat.DefaultSortBy) {
		return fmt.Errorf("invalid catalog.default_sort_by %q: not one of catalog.sort_fields", cat.DefaultSortBy)
	}

	specs, err := filterSpecs("catalog.filters", cat.Filters)
	if err != nil {
		return err
	}
	table, err := catalog.NewFilterTable(specs, cat.KnownParams)
	if err != nil {
		return fmt.Errorf("catalog.filters: %w", err)
	}

	for name, view := range cat.Views {
		field := "catalog.views." + name
		if view.PageSize < 0 || view.PageSize > cat.MaxPageSize {
			return fmt.Errorf("invalid %s.page_size %d: must be between 0 (unset) and %d", field, view.PageSize, cat.MaxPageSize)
		}
		vo, err := sortOrder(field+".sort_order", view.SortOrder)
		if err != nil {
			return err
		}
		view.SortOrder = string(vo)
		viewSpecs, err := filterSpecs(field+".filters", view.Filters)
		if err != nil {
			return err
		}
		if err := table.CheckView(name, viewSpecs); err != nil {
			return err
		}
		cat.Views[name] = view
	}

	cat.Sessions.IdleTTL = strings.TrimSpace(cat.Sessions.IdleTTL)
	if _, err := optionalDuration("catalog.sessions.idle_ttl", cat.Sessions.IdleTTL); err != nil {
		return err
	}
	if cat.Sessions.Max < 0 {
		return fmt.Errorf("invalid catalog.sessions.max %d: must not be negative", cat.Sessions.Max)
	}

	c.filterTable = table
	return nil
}

func (c *Config) validateAssets() error {
	a := &c.Assets
	a.Source = strings.ToLower(strings.TrimSpace(a.Source))
	if a.Source == "" {
		a.Source = "remote"
	}
	a.Timeout = strings.TrimSpace(a.Timeout)
	if _, err := optionalDuration("assets.timeout", a.Timeout); err != nil {
		return err
	}

	switch a.Source {
	case "remote":
	case "object_store":
		store := &a.ObjectStore
		if strings.TrimSpace(store.Endpoint) == "" {
			return fmt.Errorf("assets.object_store.endpoint is required when assets.source is object_store")
		}
		if strings.TrimSpace(store.Bucket) == "" {
			return fmt.Errorf("assets.object_store.bucket is required when assets.source is object_store")
		}
		store.PresignExpiry = strings.TrimSpace(store.PresignExpiry)
		if _, err := optionalDuration("assets.object_store.presign_expiry", store.PresignExpiry); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid assets.source %q: must be one of %q, %q", c.Assets.Source, "remote", "object_store")
	}
	return nil
}

func (c *Config) validateRegistration() error {
	r := &c.Registration
	r.Store = strings.ToLower(strings.TrimSpace(r.Store))
	if r.Store == "" {
		r.Store = "database"
	}
	switch r.Store {
	case "database":
	case "redis":
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("redis.addr is required when registration.store is redis")
		}
	default:
		return fmt.Errorf("invalid registration.store %q: must be one of %q, %q", c.Registration.Store, "database", "redis")
	}

	r.TTL = strings.TrimSpace(r.TTL)
	if r.TTL == "" {
		r.TTL = "30m"
	}
	if _, err := optionalDuration("registration.ttl", r.TTL); err != nil {
		return err
	}
	if r.KeyPrefix == "" {
		r.KeyPrefix = "registration:"
	}
	return nil
}

func (c *Config) validateAuth() error {
	a := &c.Auth
	if a.CookieName == "" {
		a.CookieName = "session"
	}
	if a.AdminRole == "" {
		a.AdminRole = "admin"
	}
	a.TokenExpiry = strings.TrimSpace(a.TokenExpiry)
	if a.TokenExpiry == "" {
		a.TokenExpiry = "24h"
	}
	if _, err := optionalDuration("auth.token_expiry", a.TokenExpiry); err != nil {
		return err
	}

	if !a.Enabled {
		return nil
	}
	jwtSecret := strings.TrimSpace(a.JWTSecret)
	if jwtSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	if len(jwtSecret) < 32 {
		return fmt.Errorf("invalid auth.jwt_secret: must be at least 32 characters")
	}
	a.JWTSecret = jwtSecret

	if c.Server.Mode == gin.ReleaseMode {
		if CountSecretClasses(jwtSecret) < 3 {
			return fmt.Errorf("auth.jwt_secret must include at least 3 character classes (lowercase, uppercase, digit, symbol) in release mode")
		}
		if !a.CookieSecure {
			return fmt.Errorf("auth.cookie_secure must be true in release mode")
		}
	}
	return nil
}

func (c *Config) validateLog() error {
	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Log.Level = level
	default:
		return fmt.Errorf("invalid log.level %q: must be one of %q, %q, %q, %q", c.Log.Level, "debug", "info", "warn", "error")
	}

	format := strings.ToLower(strings.TrimSpace(c.Log.Format))
	switch format {
	case "text", "json":
		c.Log.Format = format
	default:
		return fmt.Errorf("invalid log.format %q: must be one of %q, %q", c.Log.Format, "text", "json")
	}
	return nil
}

// FilterTable returns the table built by Validate.
func (c *Config) FilterTable() *catalog.FilterTable {
	return c.filterTable
}

// ViewDefaults returns the initial query state of the named view: the
// catalog defaults with the view's overrides applied.
func (c *Config) ViewDefaults(name string) catalog.QueryState {
	s := catalog.QueryState{
		Page:      1,
		PageSize:  c.Catalog.DefaultPageSize,
		SortBy:    c.Catalog.DefaultSortBy,
		SortOrder: catalog.SortOrder(c.Catalog.DefaultSortOrder),
	}
	if v, ok := c.Catalog.Views[name]; ok {
		if v.PageSize > 0 {
			s.PageSize = v.PageSize
		}
		if v.SortBy != "" {
			s.SortBy = v.SortBy
			s.SortOrder = catalog.SortOrder(v.SortOrder)
		}
	}
	if c.filterTable != nil {
		s.Filters = c.filterTable.Defaults()
	}
	return s
}

// Duration parses a duration field that Validate has already checked,
// returning def when the field is empty.
func Duration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}

func optionalDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be greater than 0", name, value)
	}
	return d, nil
}

func sortOrder(name, value string) (catalog.SortOrder, error) {
	v := catalog.SortOrder(strings.ToLower(strings.TrimSpace(value)))
	if v == "" {
		return catalog.SortAsc, nil
	}
	if !v.Valid() {
		return "", fmt.Errorf("invalid %s %q: must be one of %q, %q", name, value, catalog.SortAsc, catalog.SortDesc)
	}
	return v, nil
}

func filterSpecs(field string, rows []FilterConfig) ([]catalog.FilterSpec, error) {
	specs := make([]catalog.FilterSpec, 0, len(rows))
	for i, r := range rows {
		kind, ok := catalog.ParseFilterKind(r.Kind)
		if !ok {
			return nil, fmt.Errorf("invalid %s[%d].kind %q: must be one of %q, %q, %q", field, i, r.Kind, "set", "range", "bool")
		}
		specs = append(specs, catalog.FilterSpec{
			Key:     r.Key,
			Param:   r.Param,
			Kind:    kind,
			Options: r.Options,
			Values:  r.Values,
			Min:     r.Min,
			Max:     r.Max,
		})
	}
	return specs, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// CountSecretClasses counts how many character classes (lowercase, uppercase,
// digit, symbol) are present in the given secret string.
func CountSecretClasses(secret string) int {
	hasLower := false
	hasUpper := false
	hasDigit := false
	hasSymbol := false

	for _, r := range secret {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	classes := 0
	for _, ok := range []bool{hasLower, hasUpper, hasDigit, hasSymbol} {
		if ok {
			classes++
		}
	}
	return classes
}
