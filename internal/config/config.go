// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database selection, crate-opening limits,
// session validation, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-storefront-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// SessionConfig controls how callers are authenticated.
type SessionConfig struct {
	CookieName     string        // SESSION_COOKIE
	TTL            time.Duration // SESSION_TTL, lifetime of sessions created by the CLI
	JWTSecret      string        // SESSION_JWT_SECRET, enables bearer tokens when set
	JWTIssuer      string        // SESSION_JWT_ISSUER, checked when set
	AllowDevHeader bool          // ALLOW_DEV_USER_HEADER, trust X-User-ID (never in production)
}

// PityDefaults are applied to crates whose catalog entry omits thresholds.
type PityDefaults struct {
	Rare      int // DEFAULT_RARE_PITY
	Legendary int // DEFAULT_LEGENDARY_PITY
}

// CreditPackage is a purchasable bundle of store credits.
type CreditPackage struct {
	ID         int     `json:"id"         yaml:"id"`
	Name       string  `json:"name"       yaml:"name"`
	Credits    int64   `json:"credits"    yaml:"credits"`
	Bonus      int64   `json:"bonus"      yaml:"bonus"`
	PriceCents int64   `json:"-"          yaml:"price_cents"`
	Price      float64 `json:"price"      yaml:"-"`
}

// Total is the number of credits granted, bonus included.
func (p CreditPackage) Total() int64 { return p.Credits + p.Bonus }

// DefaultCreditPackages returns the stock package list.
func DefaultCreditPackages() []CreditPackage {
	pk := func(id int, name string, credits, bonus, cents int64) CreditPackage {
		return CreditPackage{ID: id, Name: name, Credits: credits, Bonus: bonus, PriceCents: cents, Price: float64(cents) / 100}
	}
	return []CreditPackage{
		pk(1, "Starter Pack", 1000, 0, 499),
		pk(2, "Adventure Pack", 2500, 250, 999),
		pk(3, "Hero Pack", 5000, 750, 1999),
		pk(4, "Legend Pack", 10000, 2000, 3499),
		pk(5, "Ultimate Pack", 25000, 6250, 7999),
		pk(6, "Mega Pack", 50000, 15000, 14999),
	}
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBDriver       string // sqlite|postgres
	DBDSN          string // file path (sqlite) or connection string (postgres)
	DBMaxOpenConns int

	// Catalog
	CatalogPath    string // optional YAML seed applied by "serve" and "seed"
	CreditPackages []CreditPackage
	Pity           PityDefaults

	// Crate opening / purchases
	OpenTimeout     time.Duration // bound on a whole crate open
	PurchaseTimeout time.Duration // bound on purchases and credit top-ups
	RefundTimeout   time.Duration // bound on the compensating refund

	// Sessions
	Session SessionConfig

	// Rate limiting
	RateRPS       float64 // tokens per second (>= 0)
	RateBurst     int     // bucket size (>= 1)
	OpenRateRPS   float64 // tighter bucket for POST /crate/open
	OpenRateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api")),

		// Storage
		DBDriver:       strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBDSN:          getenv("DB_DSN", "storefront.db"),
		DBMaxOpenConns: getint("DB_MAX_OPEN_CONNS", 10),

		// Catalog
		CatalogPath:    getenv("CATALOG_PATH", ""),
		CreditPackages: DefaultCreditPackages(),
		Pity: PityDefaults{
			Rare:      getint("DEFAULT_RARE_PITY", 10),
			Legendary: getint("DEFAULT_LEGENDARY_PITY", 50),
		},

		// Crate opening / purchases
		OpenTimeout:     getdur("OPEN_TIMEOUT", 5*time.Second),
		PurchaseTimeout: getdur("PURCHASE_TIMEOUT", 5*time.Second),
		RefundTimeout:   getdur("REFUND_TIMEOUT", 5*time.Second),

		// Sessions
		Session: SessionConfig{
			CookieName:     getenv("SESSION_COOKIE", "session_id"),
			TTL:            getdur("SESSION_TTL", 7*24*time.Hour),
			JWTSecret:      getenv("SESSION_JWT_SECRET", ""),
			JWTIssuer:      getenv("SESSION_JWT_ISSUER", ""),
			AllowDevHeader: getbool("ALLOW_DEV_USER_HEADER", false),
		},

		// Rate limiting
		RateRPS:       getfloat("RATE_RPS", 5.0),
		RateBurst:     getint("RATE_BURST", 10),
		OpenRateRPS:   getfloat("OPEN_RATE_RPS", 1.0),
		OpenRateBurst: getint("OPEN_RATE_BURST", 3),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-storefront-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if strings.TrimSpace(cfg.DBDSN) == "" {
		return cfg, errors.New("DB_DSN must not be empty")
	}
	if cfg.DBMaxOpenConns < 1 {
		return cfg, errors.New("DB_MAX_OPEN_CONNS must be >= 1")
	}
	if cfg.Pity.Rare < 1 || cfg.Pity.Legendary < 1 {
		return cfg, errors.New("DEFAULT_RARE_PITY and DEFAULT_LEGENDARY_PITY must be >= 1")
	}
	if cfg.OpenTimeout <= 0 || cfg.PurchaseTimeout <= 0 || cfg.RefundTimeout <= 0 {
		return cfg, errors.New("OPEN_TIMEOUT, PURCHASE_TIMEOUT and REFUND_TIMEOUT must be positive durations")
	}
	if strings.TrimSpace(cfg.Session.CookieName) == "" {
		return cfg, errors.New("SESSION_COOKIE must not be empty")
	}
	if cfg.Session.TTL <= 0 {
		return cfg, errors.New("SESSION_TTL must be > 0")
	}
	if cfg.RateRPS < 0 || cfg.OpenRateRPS < 0 {
		return cfg, errors.New("RATE_RPS and OPEN_RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 || cfg.OpenRateBurst < 1 {
		return cfg, errors.New("RATE_BURST and OPEN_RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
