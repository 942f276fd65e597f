// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, sessions, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Per-route idempotency and rate limiting behind the session check, so
//     limits are keyed by user and replays can bypass them
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-storefront-backend/docs"
	"github.com/tbourn/go-storefront-backend/internal/auth"
	"github.com/tbourn/go-storefront-backend/internal/config"
	"github.com/tbourn/go-storefront-backend/internal/http/handlers"
	"github.com/tbourn/go-storefront-backend/internal/http/middleware"
	"github.com/tbourn/go-storefront-backend/internal/repo"
	"github.com/tbourn/go-storefront-backend/internal/services"
)

// ScopeCrateOpen namespaces Idempotency-Key lookups of crate opens. The key
// itself is stored as the opening's attempt id.
const ScopeCrateOpen = "crate:open"

// Deps are the collaborators RegisterRoutes does not build from config.
type Deps struct {
	// Deliverer hands rewards to the game; nil means services.LogDeliverer.
	Deliverer services.Deliverer
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), CORS and security
// headers, health and metrics endpoints, optional Swagger UI, and then mounts
// the storefront API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RequestLogger + RedactingLogger: scoped logger, access log with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and Security headers
//
// Per route, in order: session check, idempotency validator, rate limiters.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, deps Deps) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Request-scoped logger, then structured access logs with redaction
	r.Use(middleware.RequestLogger())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (64 KiB; every payload is a single id)
	r.Use(limitBody(64 << 10))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture and security headers
	r.Use(corsMiddleware(cfg.CORS)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/readiness
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ready", readiness(db))

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← db/config
	crateSvc := services.NewCrateService(db)
	crateSvc.OpenTimeout = cfg.OpenTimeout
	crateSvc.RefundTimeout = cfg.RefundTimeout

	purchaseSvc := services.NewPurchaseService(db)
	purchaseSvc.Timeout = cfg.PurchaseTimeout
	purchaseSvc.RefundTimeout = cfg.RefundTimeout
	purchaseSvc.IdempotencyTTL = cfg.IdempotencyTTL

	if deps.Deliverer != nil {
		crateSvc.Deliverer = deps.Deliverer
		purchaseSvc.Deliverer = deps.Deliverer
	}

	storeSvc := &services.StoreService{DB: db}
	creditSvc := &services.CreditService{DB: db, Packages: cfg.CreditPackages, Timeout: cfg.PurchaseTimeout}

	h := handlers.New(crateSvc, storeSvc, purchaseSvc, creditSvc)

	validator := auth.NewValidator(db, auth.Options{
		CookieName:     cfg.Session.CookieName,
		JWTSecret:      []byte(cfg.Session.JWTSecret),
		JWTIssuer:      cfg.Session.JWTIssuer,
		AllowDevHeader: cfg.Session.AllowDevHeader,
	})

	// Token buckets per user (or IP on public routes); crate opens get a
	// tighter one on top of the general bucket.
	limited := middleware.NewRateLimiter("general", cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).Handler()
	openLimited := middleware.NewRateLimiter("crate_open", cfg.OpenRateRPS, cfg.OpenRateBurst, middleware.KeyByUserOrIP()).Handler()

	openIdem := middleware.IdempotencyValidator(middleware.IdempotencyOptions{
		Scope: ScopeCrateOpen,
		// A key only counts as a replay for the purchase it opened.
		Match: func(c *gin.Context, userID, key string) (bool, error) {
			var body struct {
				PurchaseID int64 `json:"purchaseId"`
			}
			if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
				return false, err
			}
			return repo.OpeningAttemptExists(c.Request.Context(), db, userID, key, body.PurchaseID)
		},
	})
	purchaseIdem := middleware.IdempotencyValidator(middleware.IdempotencyOptions{
		Scope: services.ScopeStorePurchase,
		Lookup: func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	})
	gz := gzip.Gzip(gzip.DefaultCompression)

	api := groupWithPrefix(r, cfg.APIBasePath)

	// Public catalog
	api.GET("/store/items", limited, gz, h.StoreItems)
	api.GET("/credits/packages", limited, h.CreditPackages)

	// Session required
	authed := api.Group("", auth.RequireSession(validator))
	{
		crate := authed.Group("/crate")
		crate.POST("/open", middleware.NoStore(), openIdem, limited, openLimited, h.OpenCrate)
		crate.GET("/contents", limited, gz, h.CrateContents)
		crate.GET("/user-crates", limited, gz, h.UserCrates)

		authed.POST("/store/purchase", middleware.NoStore(), purchaseIdem, limited, h.PurchaseItem)

		credits := authed.Group("/credits", middleware.NoStore())
		credits.POST("/purchase", limited, h.PurchaseCredits)
		credits.GET("/history", limited, gz, h.CreditHistory)

		authed.GET("/account/balance", middleware.NoStore(), limited, h.AccountBalance)
	}
}

// corsMiddleware returns the CORS chain. With no allowlist every origin is
// accepted without credentials; with one, matching origins are echoed and
// may send the session cookie.
func corsMiddleware(cc config.CORSConfig) []gin.HandlerFunc {
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", auth.DevUserHeader, middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", middleware.HeaderIdempotencyReplayed}
	methods := []string{"GET", "POST", "OPTIONS"}

	if len(cc.AllowedOrigins) == 0 {
		return []gin.HandlerFunc{
			// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     methods,
				AllowHeaders:     allowHeaders,
				ExposeHeaders:    exposeHeaders,
				AllowCredentials: false, // must remain false with AllowAllOrigins
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(cc.AllowedOrigins))
	for _, o := range cc.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:     cc.AllowedOrigins,
			AllowMethods:     methods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// readiness reports 503 until the database answers a ping.
func readiness(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			err = sqlDB.PingContext(ctx)
			cancel()
		}
		if err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("readiness ping failed")
			handlers.Fail(c, http.StatusServiceUnavailable, "not_ready", "database unavailable")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
