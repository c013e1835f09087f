package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"vn.io.arda/notifeed/internal/application"
	"vn.io.arda/notifeed/internal/store"
)

// Handler holds all console HTTP handler methods.
type Handler struct {
	session *application.Session
	hub     *Hub
}

// NewHandler creates a new Handler.
func NewHandler(session *application.Session, hub *Hub) *Handler {
	return &Handler{session: session, hub: hub}
}

// --- Feed ---

// Feed GET /console/notifications
func (h *Handler) Feed(c echo.Context) error {
	return c.JSON(http.StatusOK, h.session.Feed())
}

// LoadNotifications POST /console/notifications/load?limit=
func (h *Handler) LoadNotifications(c echo.Context) error {
	limit := parseIntQuery(c, "limit", store.DefaultSnapshotLimit)
	if err := h.session.LoadNotifications(c.Request().Context(), limit); err != nil {
		log.Warn().Err(err).Msg("console: load notifications failed")
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, h.session.Feed())
}

// LoadUnread POST /console/notifications/unread-count/load
func (h *Handler) LoadUnread(c echo.Context) error {
	if err := h.session.LoadUnread(c.Request().Context()); err != nil {
		log.Warn().Err(err).Msg("console: load unread count failed")
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"count": h.session.UnreadCount()})
}

// Page GET /console/notifications/page?page=&size=
func (h *Handler) Page(c echo.Context) error {
	page := parseIntQuery(c, "page", 0)
	size := parseIntQuery(c, "size", store.DefaultSnapshotLimit)
	if size == 0 || size > 100 {
		size = store.DefaultSnapshotLimit
	}

	p, err := h.session.Page(c.Request().Context(), page, size)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

// MarkRead PUT /console/notifications/:id/read
func (h *Handler) MarkRead(c echo.Context) error {
	h.session.MarkAsRead(c.Request().Context(), c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// MarkAllRead POST /console/notifications/read-all
func (h *Handler) MarkAllRead(c echo.Context) error {
	h.session.MarkAllRead(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

// Delete DELETE /console/notifications/:id
func (h *Handler) Delete(c echo.Context) error {
	h.session.DeleteNotification(c.Request().Context(), c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// Clear DELETE /console/notifications
func (h *Handler) Clear(c echo.Context) error {
	h.session.ClearNotifications()
	return c.NoContent(http.StatusNoContent)
}

// --- Session ---

// SetToken PUT /console/session/token
func (h *Handler) SetToken(c echo.Context) error {
	var req application.TokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	h.session.SetToken(req.Token)
	return c.JSON(http.StatusOK, h.session.Connection())
}

// Logout DELETE /console/session/token
func (h *Handler) Logout(c echo.Context) error {
	h.session.SetToken("")
	return c.NoContent(http.StatusNoContent)
}

// SetRoute PUT /console/session/route
func (h *Handler) SetRoute(c echo.Context) error {
	var req application.RouteRequest
	if err := c.Bind(&req); err != nil || req.Route == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "route is required")
	}
	h.session.SetRoute(req.Route)
	return c.JSON(http.StatusOK, h.session.Connection())
}

// Connection GET /console/connection
func (h *Handler) Connection(c echo.Context) error {
	return c.JSON(http.StatusOK, h.session.Connection())
}

// --- SSE Handler ---

// Stream GET /console/stream, SSE of state changes
func (h *Handler) Stream(c echo.Context) error {
	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable Nginx/APISIX buffering
	w.WriteHeader(http.StatusOK)

	changes, cancel := h.hub.Subscribe()
	defer cancel()

	// Send initial "connected" event with the current feed
	w.Write(buildSSEMessage("connected", h.session.Feed()))
	w.Flush()

	log.Info().Msg("console stream opened")

	ctx := c.Request().Context()
	for {
		select {
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			if _, err := w.Write(buildSSEMessage(string(change.Type), change)); err != nil {
				return nil
			}
			w.Flush()

		case <-ctx.Done():
			log.Info().Msg("console stream closed by client")
			return nil
		}
	}
}

// --- Healthcheck ---

// Health GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"connection":     h.session.Status().State.String(),
		"stream_clients": h.hub.ConnectedCount(),
	})
}

// --- Helpers ---

func parseIntQuery(c echo.Context, key string, def int) int {
	v, err := strconv.Atoi(c.QueryParam(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

// buildSSEMessage formats a payload as a named SSE data frame.
func buildSSEMessage(event string, payload any) []byte {
	b, err := json.Marshal(payload)
	if err != nil {
		b = []byte(fmt.Sprintf("%q", err.Error()))
	}
	return []byte("event: " + event + "\ndata: " + string(b) + "\n\n")
}
