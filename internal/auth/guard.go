// Package auth provides the access token sources of a session and the checks
// that decide whether backend calls may run.
package auth

import (
	"net/url"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// publicRoutes are the auth pages on which the feed stays suspended.
var publicRoutes = mapset.NewSet("/signin", "/signup", "/forgot-password", "/reset-password")

// IsPublicRoute reports whether route is an auth page. Case, query strings,
// fragments and trailing slashes are ignored.
func IsPublicRoute(route string) bool {
	return publicRoutes.Contains(cleanRoute(route))
}

// Allowed reports whether a session holding token on route may call the backend.
func Allowed(token, route string, now time.Time) bool {
	return Valid(token, now) && !IsPublicRoute(route)
}

func cleanRoute(route string) string {
	route = strings.TrimSpace(route)
	if u, err := url.Parse(route); err == nil {
		route = u.Path
	} else if i := strings.IndexAny(route, "?#"); i >= 0 {
		route = route[:i]
	}
	route = strings.ToLower(route)
	route = strings.TrimRight(route, "/")
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return route
}
