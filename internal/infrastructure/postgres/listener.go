package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"vn.io.arda/notifeed/internal/config"
	"vn.io.arda/notifeed/internal/normalize"
	"vn.io.arda/notifeed/internal/push"
)

func init() {
	push.Register("postgres", func(cfg config.PushConfig, creds push.Credentials) (push.Transport, bool) {
		if cfg.Postgres.DSN == "" {
			return nil, false
		}
		if _, ok := push.ChannelFor(cfg.Postgres.Channel, creds); !ok {
			return nil, false
		}
		return New(cfg.Postgres, creds, cfg.HandshakeTimeout), true
	})
}

// Listener relays NOTIFY payloads published on a PostgreSQL channel. Payloads
// naming another recipient are skipped.
type Listener struct {
	dsn       string
	channel   string
	subject   string
	handshake time.Duration
}

// New creates a new postgres Listener. A {subject} placeholder in the channel
// name is replaced with the token's subject.
func New(cfg config.PostgresConfig, creds push.Credentials, handshake time.Duration) *Listener {
	if handshake <= 0 {
		handshake = 10 * time.Second
	}
	channel, _ := push.ChannelFor(cfg.Channel, creds)
	return &Listener{dsn: cfg.DSN, channel: channel, subject: creds.Subject, handshake: handshake}
}

func (l *Listener) Name() string { return "postgres" }

// Channel returns the resolved LISTEN channel.
func (l *Listener) Channel() string { return l.channel }

var recipientKeys = []string{"recipient", "recipientId", "userId"}

// Accepts reports whether a NOTIFY payload is meant for the listener's user.
// Payloads without a recipient field, at the top level or under data, reach
// everyone. A recipient with no known subject is never accepted.
func (l *Listener) Accepts(payload []byte) bool {
	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil {
		return true
	}
	recipient, ok := recipientOf(obj)
	if !ok {
		if inner, isObj := obj["data"].(map[string]any); isObj {
			recipient, ok = recipientOf(inner)
		}
	}
	if !ok {
		return true
	}
	return l.subject != "" && recipient == l.subject
}

func recipientOf(obj map[string]any) (string, bool) {
	for _, key := range recipientKeys {
		if v, ok := normalize.Lookup(obj, key); ok {
			return fmt.Sprint(v), true
		}
	}
	return "", false
}

// Connect opens a dedicated connection and issues LISTEN.
func (l *Listener) Connect(ctx context.Context) (push.Channel, error) {
	hctx, cancel := context.WithTimeout(ctx, l.handshake)
	defer cancel()

	conn, err := pgx.Connect(hctx, l.dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	if _, err := conn.Exec(hctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("postgres listen %s: %w", l.channel, err)
	}

	log.Debug().Str("channel", l.channel).Msg("postgres relay listening")

	// pgx.Conn is not safe for concurrent use, so it is closed only after the
	// reader has returned.
	read := func(ctx context.Context, emit func(push.Frame) bool) error {
		for {
			n, err := conn.WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("postgres wait for notification: %w", err)
			}
			if !l.Accepts([]byte(n.Payload)) {
				log.Debug().Str("channel", l.channel).Msg("skipping postgres notification for another user")
				continue
			}
			if !emit(push.Frame{Data: []byte(n.Payload)}) {
				return nil
			}
		}
	}
	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}
	return push.Open(ctx, read, cleanup), nil
}
