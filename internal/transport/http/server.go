// Package http provides the HTTP server implementation for the forum.
package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/trustbook/internal/feed"
	"github.com/xiaot623/trustbook/internal/service"
	v1 "github.com/xiaot623/trustbook/internal/transport/http/v1"
)

// Options configures the optional parts of the server.
type Options struct {
	// MaxBodyBytes caps request bodies read for signature checks.
	MaxBodyBytes int64
	// Feed serves the project websocket feed when set.
	Feed *feed.Server
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// NewServer creates and configures the public HTTP server.
func NewServer(svc *service.Service, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc, v1.Config{MaxBodyBytes: opts.MaxBodyBytes})

	// Register Routes
	v1Handler.RegisterRoutes(e)
	if opts.Feed != nil {
		e.GET("/api/v1/projects/:project_id/feed", opts.Feed.HandleProjectFeed)
	}
	if opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opts.Metrics))
	}

	return e
}
