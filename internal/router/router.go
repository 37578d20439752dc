package router

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"civicwatch/docs"
	"civicwatch/internal/auth"
	"civicwatch/internal/config"
	"civicwatch/internal/handler"
	"civicwatch/internal/ratelimit"
)

// Dependencies are the collaborators the routes are wired to.
type Dependencies struct {
	AuthHandler         *handler.AuthHandler
	ReportHandler       *handler.ReportHandler
	AdminHandler        *handler.AdminHandler
	NotificationHandler *handler.NotificationHandler
	WebSocket           http.Handler

	JWTService  *auth.JWTService
	AuthLimiter middleware.RateLimiterStore
	APILimiter  middleware.RateLimiterStore

	// UploadDir is served under /uploads when images are stored on local disk.
	UploadDir string
	Logger    *slog.Logger
}

// Register wires routes and middleware.
func Register(e *echo.Echo, cfg *config.Config, deps Dependencies) {
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(deps.Logger, cfg.Env == config.EnvDevelopment)
	e.Validator = handler.NewCustomValidator()

	e.Use(middleware.RequestID())
	e.Use(handler.RequestLogger(deps.Logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	// Room for the largest image plus multipart framing.
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dK", (cfg.UploadMaxBytes+1<<20)/1024)))

	if cfg.SwaggerHost != "" {
		host := strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "https://"), "http://")
		docs.SwaggerInfo.Host = strings.TrimSuffix(host, "/")
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	e.GET("/ws", echo.WrapHandler(deps.WebSocket))
	if deps.UploadDir != "" {
		e.Static("/uploads", deps.UploadDir)
	}

	authLimit := ratelimit.Middleware(deps.AuthLimiter)
	apiLimit := ratelimit.Middleware(deps.APILimiter)
	requireToken := echojwt.WithConfig(echojwt.Config{
		ContextKey:     handler.ContextKeyIdentity,
		TokenLookup:    "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: handler.ParseToken(deps.JWTService),
		ErrorHandler:   handler.JWTErrorHandler,
	})

	api := e.Group("/api")

	// Credential endpoints share the stricter limit.
	authRoutes := api.Group("/auth", authLimit)
	authRoutes.POST("/register", deps.AuthHandler.Register)
	authRoutes.POST("/login", deps.AuthHandler.Login)
	authRoutes.GET("/verify", deps.AuthHandler.Verify, requireToken)
	authRoutes.PATCH("/profile", deps.AuthHandler.UpdateProfile, requireToken)
	api.POST("/admin/login", deps.AuthHandler.AdminLogin, authLimit)

	reports := api.Group("/reports", apiLimit, requireToken)
	reports.POST("", deps.ReportHandler.Create)
	reports.GET("/mine", deps.ReportHandler.ListMine)
	reports.GET("/nearby", deps.ReportHandler.Nearby)
	reports.GET("/:id", deps.ReportHandler.Get)
	reports.POST("/:id/image", deps.ReportHandler.UploadImage)
	reports.DELETE("/:id", deps.ReportHandler.Delete)

	admin := api.Group("/admin", apiLimit, requireToken, handler.RequireAdmin())
	admin.GET("/reports", deps.AdminHandler.ListReports)
	admin.PATCH("/reports/:id/status", deps.AdminHandler.UpdateStatus)
	admin.GET("/stats", deps.AdminHandler.Stats)

	if !cfg.IsProduction() {
		api.POST("/test-notification", deps.NotificationHandler.Send, apiLimit)
	}
}
