package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"vn.io.arda/notifeed/internal/transport/mw"
)

// NewRouter sets up all Echo routes and middleware.
func NewRouter(h *Handler, consoleAPIKey string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(mw.RequestLogger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"Authorization", "Content-Type", mw.ConsoleKeyHeader},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))

	// Health (no auth required)
	e.GET("/health", h.Health)

	console := e.Group("/console")
	console.Use(mw.ConsoleKey(consoleAPIKey))

	console.GET("/notifications", h.Feed)
	console.DELETE("/notifications", h.Clear)
	console.POST("/notifications/load", h.LoadNotifications)
	console.POST("/notifications/unread-count/load", h.LoadUnread)
	console.GET("/notifications/page", h.Page)
	console.PUT("/notifications/:id/read", h.MarkRead)
	console.POST("/notifications/read-all", h.MarkAllRead)
	console.DELETE("/notifications/:id", h.Delete)

	console.PUT("/session/token", h.SetToken)
	console.DELETE("/session/token", h.Logout)
	console.PUT("/session/route", h.SetRoute)
	console.GET("/connection", h.Connection)

	// SSE endpoint
	console.GET("/stream", h.Stream)

	return e
}
