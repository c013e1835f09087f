package auth

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vn.io.arda/notifeed/internal/config"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func TestIsPublicRoute(t *testing.T) {
	tests := []struct {
		route string
		want  bool
	}{
		{"/signin", true},
		{"/signin/", true},
		{"/SignUp?next=/home", true},
		{"/forgot-password#top", true},
		{"reset-password", true},
		{"/", false},
		{"", false},
		{"/notifications", false},
		{"/signin/extra", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPublicRoute(tt.route), tt.route)
	}
}

func TestValid(t *testing.T) {
	now := time.Now()

	assert.False(t, Valid("", now))
	assert.False(t, Valid("   ", now))
	assert.True(t, Valid("opaque-token", now))
	assert.True(t, Valid(signed(t, jwt.MapClaims{"sub": "u1", "exp": now.Add(time.Hour).Unix()}), now))
	assert.False(t, Valid(signed(t, jwt.MapClaims{"sub": "u1", "exp": now.Add(-time.Minute).Unix()}), now))
	assert.True(t, Valid(signed(t, jwt.MapClaims{"sub": "u1"}), now))
}

func TestSubjectAndExpiry(t *testing.T) {
	exp := time.Unix(1_900_000_000, 0)
	tok := signed(t, jwt.MapClaims{"sub": "user-7", "exp": exp.Unix()})

	assert.Equal(t, "user-7", Subject(tok))
	got, ok := ExpiresAt(tok)
	require.True(t, ok)
	assert.True(t, got.Equal(exp))

	assert.Empty(t, Subject("opaque"))
	_, ok = ExpiresAt("opaque")
	assert.False(t, ok)
}

func TestAllowed(t *testing.T) {
	now := time.Now()
	assert.True(t, Allowed("tok", "/", now))
	assert.False(t, Allowed("tok", "/signin", now))
	assert.False(t, Allowed("", "/", now))
}

func TestFromConfig(t *testing.T) {
	src, err := FromConfig(config.AuthConfig{Source: "static", Token: " abc "})
	require.NoError(t, err)
	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	src, err = FromConfig(config.AuthConfig{Source: "keycloak", Keycloak: config.KeycloakConfig{
		BaseURL: "http://kc", Realm: "arda", ClientID: "c", ClientSecret: "s",
	}})
	require.NoError(t, err)
	assert.Equal(t, "keycloak", src.Name())

	_, err = FromConfig(config.AuthConfig{Source: "file"})
	assert.Error(t, err)
	_, err = FromConfig(config.AuthConfig{Source: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestFileSourceMissingFileIsSignedOut(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "token"))
	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestFileSourceWatchReportsChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0o600))

	src := NewFileSource(path)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = src.Watch(ctx, func(tok string) { got <- tok })
	}()

	assert.Equal(t, "first", waitToken(t, got))

	replaceFile(t, path, "second")
	assert.Equal(t, "second", waitToken(t, got))

	require.NoError(t, os.Remove(path))
	assert.Equal(t, "", waitToken(t, got))

	cancel()
	<-done
}

func TestKeyringSourceWatchPolls(t *testing.T) {
	ring := &lockedRing{ring: keyring.NewArrayKeyring([]keyring.Item{{Key: "access_token", Data: []byte("k1")}})}
	src := NewKeyringSource(ring, "access_token", 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = src.Watch(ctx, func(tok string) { got <- tok })
	}()

	assert.Equal(t, "k1", waitToken(t, got))
	require.NoError(t, ring.Set(keyring.Item{Key: "access_token", Data: []byte("k2")}))
	assert.Equal(t, "k2", waitToken(t, got))

	cancel()
	<-done
}

func TestKeyringSourceMissingKey(t *testing.T) {
	src := NewKeyringSource(keyring.NewArrayKeyring(nil), "access_token", time.Second)
	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func waitToken(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case tok := <-ch:
		return tok
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for token")
		return ""
	}
}

// replaceFile swaps the content in with a rename, the way editors and token
// helpers update credentials.
func replaceFile(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

type lockedRing struct {
	mu   sync.Mutex
	ring keyring.Keyring
}

func (l *lockedRing) Get(key string) (keyring.Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.Get(key)
}

func (l *lockedRing) GetMetadata(key string) (keyring.Metadata, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.GetMetadata(key)
}

func (l *lockedRing) Set(item keyring.Item) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.Set(item)
}

func (l *lockedRing) Remove(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.Remove(key)
}

func (l *lockedRing) Keys() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.Keys()
}
