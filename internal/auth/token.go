package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Valid reports whether token can be sent to the backend. An empty token or a
// JWT whose exp claim has passed is not valid; opaque tokens are valid when
// non-empty. Signatures are checked by the backend, not here.
func Valid(token string, now time.Time) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}
	if exp, ok := ExpiresAt(token); ok {
		return now.Before(exp)
	}
	return true
}

// Subject returns the sub claim of a JWT, or "" for opaque tokens.
func Subject(token string) string {
	claims, ok := parseClaims(token)
	if !ok {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}

// ExpiresAt returns the exp claim of a JWT.
func ExpiresAt(token string) (time.Time, bool) {
	claims, ok := parseClaims(token)
	if !ok {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func parseClaims(token string) (jwt.MapClaims, bool) {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return nil, false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, false
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	return claims, ok
}
