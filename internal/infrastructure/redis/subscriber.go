package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"vn.io.arda/notifeed/internal/config"
	"vn.io.arda/notifeed/internal/push"
)

func init() {
	push.Register("redis", func(cfg config.PushConfig, creds push.Credentials) (push.Transport, bool) {
		if cfg.Redis.URL == "" {
			return nil, false
		}
		if _, ok := push.ChannelFor(cfg.Redis.Channel, creds); !ok {
			return nil, false
		}
		return New(cfg.Redis, creds, cfg.HandshakeTimeout), true
	})
}

// Subscriber listens on a Redis pub/sub channel fed by a server relay.
type Subscriber struct {
	url       string
	channel   string
	handshake time.Duration
}

// New creates a Subscriber. A {subject} placeholder in the channel name is
// replaced with the token's subject.
func New(cfg config.RedisConfig, creds push.Credentials, handshake time.Duration) *Subscriber {
	if handshake <= 0 {
		handshake = 10 * time.Second
	}
	channel, _ := push.ChannelFor(cfg.Channel, creds)
	return &Subscriber{
		url:       cfg.URL,
		channel:   channel,
		handshake: handshake,
	}
}

func (s *Subscriber) Name() string { return "redis" }

// Channel returns the resolved pub/sub channel name.
func (s *Subscriber) Channel() string { return s.channel }

// Connect subscribes and waits for the server to confirm the subscription.
func (s *Subscriber) Connect(ctx context.Context) (push.Channel, error) {
	opt, err := goredis.ParseURL(s.url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	client := goredis.NewClient(opt)

	hctx, cancel := context.WithTimeout(ctx, s.handshake)
	defer cancel()

	pubsub := client.Subscribe(hctx, s.channel)
	if _, err := pubsub.Receive(hctx); err != nil {
		_ = pubsub.Close()
		_ = client.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", s.channel, err)
	}

	log.Debug().Str("channel", s.channel).Msg("redis relay subscribed")

	messages := pubsub.Channel()
	read := func(ctx context.Context, emit func(push.Frame) bool) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-messages:
				if !ok {
					return errors.New("redis subscription closed")
				}
				if !emit(push.Frame{Data: []byte(msg.Payload)}) {
					return nil
				}
			}
		}
	}
	cleanup := func() {
		_ = pubsub.Close()
		_ = client.Close()
	}
	return push.Open(ctx, read, cleanup), nil
}
