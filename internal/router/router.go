package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/exam"
	"github.com/stemsi/exstem-proctor/internal/handler"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/monitoring"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/web"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth   *handler.AuthHandler
	Portal *handler.ExamPortalHandler
	WS     *handler.WSHandler
	System *handler.SystemHandler
}

// Middlewares groups the session-aware middleware built in main.
// LoginLimiter may be nil to disable login rate limiting.
type Middlewares struct {
	LoadSession  gin.HandlerFunc
	LoginLimiter *middleware.RateLimiter
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	cfg *config.Config,
	handlers *Handlers,
	mw *Middlewares,
	log zerolog.Logger,
) (*gin.Engine, error) {
	gin.SetMode(cfg.GinMode)
	router := gin.New()

	// ClientIP keys the login limiter; only listed proxies may set it via
	// X-Forwarded-For. An empty list trusts none.
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list and allow
	// the session cookie; otherwise allow all (*) so dev works without
	// extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(logger.RequestLogger(log))
	router.Use(monitoring.MetricsMiddleware())
	router.Use(middleware.Brotli())

	router.SetHTMLTemplate(web.Templates())

	static := router.Group("/static")
	static.Use(middleware.CacheControl(3600))
	{
		static.StaticFS("/", web.StaticFS())
	}

	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", monitoring.PrometheusHandler())

	// ─── 1. Pages ──────────────────────────────────────────────────────
	pages := router.Group("/")
	pages.Use(middleware.NoStore(), mw.LoadSession)
	{
		pages.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusFound, exam.PageLogin.Path())
		})
		pages.GET("/login", handlers.Auth.LoginPage)
		if mw.LoginLimiter != nil {
			pages.POST("/login", mw.LoginLimiter.MiddlewareWith(handlers.Auth.LoginThrottled), handlers.Auth.Login)
		} else {
			pages.POST("/login", handlers.Auth.Login)
		}
		pages.GET("/logout", handlers.Auth.Logout)
	}

	gated := pages.Group("/")
	gated.Use(middleware.RequireLogin(exam.PageLogin.Path()))
	{
		gated.GET("/instructions", handlers.Portal.Instructions)
		gated.GET("/checking", handlers.Portal.Checking)
		gated.GET("/exam", handlers.Portal.Exam)
		gated.GET("/result", handlers.Portal.Result)
		gated.POST("/submit_exam", handlers.Portal.SubmitExam)
	}

	// ─── 2. API (401 instead of redirects) ─────────────────────────────
	api := router.Group("/api")
	api.Use(middleware.NoStore(), mw.LoadSession, middleware.RequireSession())
	{
		api.POST("/checking/submit", handlers.Portal.SubmitCheck)
		api.GET("/exam/time", handlers.Portal.ExamTime)
		api.POST("/exam/answers", handlers.Portal.Autosave)
	}

	// ─── 3. WebSocket ──────────────────────────────────────────────────
	wsGroup := router.Group("/ws")
	wsGroup.Use(mw.LoadSession, middleware.RequireSession())
	{
		wsGroup.GET("/exam", handlers.WS.ExamStream)
	}

	return router, nil
}
