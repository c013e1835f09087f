package auth

import (
	"context"
	"fmt"
	"strings"

	"vn.io.arda/notifeed/internal/config"
	"vn.io.arda/notifeed/internal/infrastructure/keycloak"
)

// Source supplies the session's access token.
type Source interface {
	Name() string
	// Token returns the current token, or "" when signed out.
	Token(ctx context.Context) (string, error)
	// Watch calls fn with the current token and again whenever it changes. It
	// blocks until ctx is done.
	Watch(ctx context.Context, fn func(token string)) error
}

// FromConfig builds the token source selected by cfg.Source.
func FromConfig(cfg config.AuthConfig) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Source)) {
	case "", "static":
		return NewStaticSource(cfg.Token), nil
	case "file":
		if cfg.File == "" {
			return nil, fmt.Errorf("auth source file: auth.file is empty")
		}
		return NewFileSource(cfg.File), nil
	case "keyring":
		ring, err := OpenKeyring(cfg.Keyring.Service)
		if err != nil {
			return nil, err
		}
		return NewKeyringSource(ring, cfg.Keyring.Key, cfg.Keyring.PollInterval), nil
	case "keycloak":
		kc := cfg.Keycloak
		if kc.ClientSecret == "" {
			return nil, fmt.Errorf("auth source keycloak: client secret is empty")
		}
		return keycloak.NewTokenSource(kc.BaseURL, kc.Realm, kc.ClientID, kc.ClientSecret), nil
	}
	return nil, fmt.Errorf("unknown auth source %q", cfg.Source)
}

// StaticSource serves a fixed token.
type StaticSource struct {
	token string
}

func NewStaticSource(token string) *StaticSource {
	return &StaticSource{token: strings.TrimSpace(token)}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Token(context.Context) (string, error) {
	return s.token, nil
}

func (s *StaticSource) Watch(ctx context.Context, fn func(string)) error {
	fn(s.token)
	<-ctx.Done()
	return nil
}
