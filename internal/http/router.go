// Package httpapi wires the HTTP transport (Gin) to the handlers and the
// middleware. It centralizes cross-cutting concerns such as tracing,
// correlation IDs, logging/redaction, panic recovery, metrics, CORS, security
// headers, authentication, idempotency and rate limiting.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-advisor-backend/internal/config"
	"github.com/tbourn/go-advisor-backend/internal/domain"
	"github.com/tbourn/go-advisor-backend/internal/http/handlers"
	"github.com/tbourn/go-advisor-backend/internal/http/middleware"
)

// Deps are the collaborators the routes need besides the handlers.
type Deps struct {
	Handlers *handlers.Handlers
	// Tokens verifies bearer access tokens.
	Tokens middleware.TokenParser
	// IdempotencyLookup resolves Idempotency-Key replays on /ans/create.
	IdempotencyLookup middleware.IdempotencyLookup
}

var corsMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}

var corsHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey, "If-None-Match"}

var corsExpose = []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", handlers.HeaderIdempotencyReplayed}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the API under cfg.APIBasePath.
//
// Global middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with secret scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter (JSON; multipart is bounded by the upload handlers)
//  6. Metrics
//  7. CORS and security headers
//  8. gzip
//
// Authentication, idempotency and rate limiting run per route group, after
// the caller is known: Auth → IdempotencyValidator → RateLimiter.
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	r.MaxMultipartMemory = cfg.Upload.MaxBytes

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(middleware.MaxBody(cfg.Security.MaxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     corsMethods,
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    corsExpose,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     corsMethods,
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    corsExpose,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
		NoStorePrefixes: []string{
			apiPath(cfg, "/auth"),
			apiPath(cfg, "/users/profile"),
		},
	}))

	// Prometheus scrapes and uploaded images gain nothing from gzip.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", uploadsPath(cfg)})))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	if cfg.Upload.Backend == "disk" {
		r.Static(uploadsPath(cfg), cfg.Upload.Dir)
	}

	mountAPI(groupWithPrefix(r, cfg.APIBasePath), d, cfg)
}

// mountAPI registers the versioned endpoints.
func mountAPI(api *gin.RouterGroup, d Deps, cfg config.Config) {
	h := d.Handlers
	auth := middleware.Auth(d.Tokens)
	// One limiter for every authenticated route, so buckets are per caller.
	limit := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).Handler()

	admin := middleware.RequireRole(domain.RoleAdmin)
	staff := middleware.RequireRole(domain.RoleAdmin, domain.RoleModerator)
	user := middleware.RequireRole(domain.RoleUser)

	pub := api.Group("/auth")
	{
		pub.POST("/login", h.Login)
		pub.POST("/verify-otp", h.VerifyOTP)
		pub.POST("/social-login", h.SocialLogin)
		pub.POST("/verify-email", h.VerifyEmail)
		pub.POST("/forget-password", h.ForgetPassword)
		pub.POST("/reset-password", h.ResetPassword)
		pub.POST("/refresh-token", h.RefreshToken)
		pub.POST("/resend-verification", h.ResendVerification)
	}
	me := api.Group("/auth", auth, limit)
	{
		me.POST("/change-password", h.ChangePassword)
		me.DELETE("/delete-account", h.DeleteAccount)
	}

	api.POST("/users/create-user", h.CreateUser)
	users := api.Group("/users", auth, limit)
	{
		users.POST("/create-moderator", admin, h.CreateModerator)
		users.GET("/profile", h.Profile)
		users.PATCH("/update-profile", h.UpdateProfile)
		users.GET("/get-all-users", admin, h.ListUsers)
		users.GET("/get-all-users/:id", admin, h.GetUser)
	}

	// The idempotency validator runs before the limiter so replays bypass it.
	api.POST("/ans/create",
		auth, user,
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, d.IdempotencyLookup),
		limit,
		h.CreateAnswer,
	)
	rooms := api.Group("/rooms", auth, user, limit)
	{
		rooms.GET("", h.ListRooms)
		rooms.GET("/:id/turns", h.ListTurns)
	}

	clients := api.Group("/clients", auth, limit)
	{
		clients.POST("/create-client", staff, h.CreateClient)
		clients.GET("", h.ListClients)
		clients.GET("/:id", h.GetClient)
		clients.PATCH("/:id", staff, h.UpdateClient)
		clients.DELETE("/:id", staff, h.DeleteClient)
	}
}

// uploadsPath is where the disk backend's files are served.
func uploadsPath(cfg config.Config) string {
	p := cfg.Upload.PublicURL
	if p == "" || !strings.HasPrefix(p, "/") {
		return "/uploads"
	}
	return p
}

// apiPath joins the API base path and p.
func apiPath(cfg config.Config, p string) string {
	return strings.TrimSuffix(cfg.APIBasePath, "/") + p
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
