package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/99designs/keyring"
	"github.com/rs/zerolog/log"
)

const defaultKeyringPoll = 5 * time.Second

// OpenKeyring opens the system keyring under service.
func OpenKeyring(service string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/" + service + "/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt(service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// KeyringSource reads the token stored under key. Keyrings have no change
// notification, so Watch polls.
type KeyringSource struct {
	ring     keyring.Keyring
	key      string
	interval time.Duration
}

func NewKeyringSource(ring keyring.Keyring, key string, interval time.Duration) *KeyringSource {
	if interval <= 0 {
		interval = defaultKeyringPoll
	}
	return &KeyringSource{ring: ring, key: key, interval: interval}
}

func (k *KeyringSource) Name() string { return "keyring" }

func (k *KeyringSource) Token(context.Context) (string, error) {
	item, err := k.ring.Get(k.key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", k.key, err)
	}
	return string(item.Data), nil
}

func (k *KeyringSource) Watch(ctx context.Context, fn func(string)) error {
	last, err := k.Token(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("keyring token unavailable")
	}
	fn(last)

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tok, err := k.Token(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("keyring token unavailable")
				continue
			}
			if tok != last {
				last = tok
				fn(tok)
			}
		}
	}
}
