package keycloak

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// refreshSkew renews the token this long before it expires, but never
	// earlier than three quarters into its lifetime.
	refreshSkew = 30 * time.Second
	retryAfter  = 10 * time.Second
)

// TokenSource obtains access tokens from Keycloak with the client-credentials
// grant and renews them before they expire.
type TokenSource struct {
	baseURL      string // e.g. "http://keycloak:8080"
	realm        string
	clientID     string
	clientSecret string

	httpClient *http.Client
	now        func() time.Time

	mu        sync.Mutex
	token     string
	refreshAt time.Time
}

// NewTokenSource creates a Keycloak client-credentials token source.
func NewTokenSource(baseURL, realm, clientID, clientSecret string) *TokenSource {
	return &TokenSource{
		baseURL:      strings.TrimRight(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		now:          time.Now,
	}
}

// WithHTTPClient replaces the HTTP client used for token requests.
func (s *TokenSource) WithHTTPClient(c *http.Client) *TokenSource {
	s.httpClient = c
	return s
}

func (s *TokenSource) Name() string { return "keycloak" }

// Token returns the cached token, fetching a new one when it is about to expire.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.refreshAt) {
		return s.token, nil
	}
	tok, ttl, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	s.token = tok
	s.refreshAt = s.now().Add(ttl - skewFor(ttl))
	return tok, nil
}

// Watch reports every renewed token until ctx is done. Fetch failures are
// retried; the last good token is kept meanwhile.
func (s *TokenSource) Watch(ctx context.Context, fn func(string)) error {
	var last string
	for {
		wait := retryAfter
		tok, err := s.Token(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Str("realm", s.realm).Msg("keycloak token refresh failed")
		} else {
			if tok != last {
				last = tok
				fn(tok)
			}
			wait = s.untilRefresh()
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (s *TokenSource) untilRefresh() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.refreshAt.Sub(s.now())
	if d < time.Second {
		d = time.Second
	}
	return d
}

func skewFor(ttl time.Duration) time.Duration {
	if skew := ttl / 4; skew < refreshSkew {
		return skew
	}
	return refreshSkew
}

// fetch requests a new access token from the realm's token endpoint.
func (s *TokenSource) fetch(ctx context.Context) (string, time.Duration, error) {
	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", s.baseURL, s.realm)

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("keycloak token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("keycloak token: status %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", 0, err
	}
	if tok.AccessToken == "" {
		return "", 0, fmt.Errorf("keycloak returned empty access_token")
	}
	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return tok.AccessToken, ttl, nil
}
