package mw

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

// ConsoleKeyHeader carries the console API key.
const ConsoleKeyHeader = "X-Console-Key"

// ConsoleKey guards the console API with a shared key taken from the
// X-Console-Key header, a Bearer Authorization header, or the "key" query
// parameter (browsers cannot set headers on EventSource). An empty key leaves
// the console open, which is only meant for local development.
func ConsoleKey(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if key == "" {
				return next(c)
			}
			if !matches(presentedKey(c.Request()), key) {
				log.Warn().Str("path", c.Path()).Str("ip", c.RealIP()).Msg("console key rejected")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid console key")
			}
			return next(c)
		}
	}
}

// RequestLogger logs one zerolog line per request.
func RequestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("console request")
			return nil
		},
	})
}

func presentedKey(r *http.Request) string {
	if k := r.Header.Get(ConsoleKeyHeader); k != "" {
		return k
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("key")
}

func matches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
