package http

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/litebrowse/litebrowse/internal/observability"
	"github.com/litebrowse/litebrowse/internal/session"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	Session *session.Session

	// Metrics is served at /metrics when set
	Metrics *observability.Metrics

	// Middleware wraps every route before the handlers run, outermost first
	Middleware []func(http.Handler) http.Handler

	Logger *slog.Logger
}

// NewRouter builds the echo router with every API route registered.
func NewRouter(cfg RouterConfig) *echo.Echo {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.WARN)
	e.HTTPErrorHandler = ErrorHandler

	for _, m := range cfg.Middleware {
		e.Use(echo.WrapMiddleware(m))
	}
	e.Use(echo.WrapMiddleware(RequestIDMiddleware))
	e.Use(middleware.Recover())
	e.Use(RequestLogger(cfg.Logger))

	RegisterRoutes(e, NewHandler(cfg.Session))
	if cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.Metrics.Handler()))
	}
	return e
}

// RegisterRoutes mounts the API under /v1 plus the health check.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/healthz", h.Health)

	v1 := e.Group("/v1")
	v1.GET("/tables", h.ListTables)
	v1.GET("/tables/:name", h.TableInfo)
	v1.GET("/tables/:name/rows", h.Rows)
	v1.POST("/tables/:name/rows", h.InsertRow)
	v1.PUT("/tables/:name/rows", h.UpdateRow)
	v1.DELETE("/tables/:name/rows", h.DeleteRow)
	v1.POST("/query", h.Query)
	v1.GET("/history", h.History)
	v1.GET("/schema", h.Schema)
	v1.GET("/ddl/:name", h.DDL)
	v1.GET("/info", h.Info)
	v1.POST("/integrity", h.Integrity)
}
