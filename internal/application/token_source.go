package application

import "context"

// TokenSource supplies the access token of the session.
// Implementations live in internal/auth and internal/infrastructure/keycloak.
type TokenSource interface {
	Name() string

	// Token returns the current token, or "" when signed out.
	Token(ctx context.Context) (string, error)

	// Watch calls fn with the current token and on every change until ctx is done.
	Watch(ctx context.Context, fn func(token string)) error
}
