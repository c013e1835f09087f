package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/oauth"
	"vn.io.arda/notifeed/internal/config"
	_ "vn.io.arda/notifeed/internal/kafka/handlers"
	"vn.io.arda/notifeed/internal/kafka/registry"
	"vn.io.arda/notifeed/internal/push"
)

func init() {
	push.Register("kafka", func(cfg config.PushConfig, creds push.Credentials) (push.Transport, bool) {
		if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topic == "" {
			return nil, false
		}
		return New(cfg.Kafka, creds, cfg.HandshakeTimeout), true
	})
}

// Consumer tails a Kafka topic that a server relay fills with notification
// payloads. Records keyed with another user's subject are skipped. It also
// tails the arda domain event topics and renders the events it has handlers
// for as notifications addressed to the signed-in user.
type Consumer struct {
	cfg       config.KafkaConfig
	creds     push.Credentials
	handshake time.Duration
}

// New creates a Consumer for the given brokers and topic.
func New(cfg config.KafkaConfig, creds push.Credentials, handshake time.Duration) *Consumer {
	if handshake <= 0 {
		handshake = 10 * time.Second
	}
	return &Consumer{cfg: cfg, creds: creds, handshake: handshake}
}

func (c *Consumer) Name() string { return "kafka" }

// Connect creates the client and considers it connected once the brokers answer a ping.
func (c *Consumer) Connect(ctx context.Context) (push.Channel, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(c.cfg.Brokers...),
		kgo.ConsumeTopics(c.topics()...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	}
	if c.cfg.SASLOAuth && c.creds.Token != "" {
		opts = append(opts, kgo.SASL(oauth.Auth{Token: c.creds.Token}.AsMechanism()))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	hctx, cancel := context.WithTimeout(ctx, c.handshake)
	defer cancel()
	if err := client.Ping(hctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping: %w", err)
	}

	log.Debug().Strs("brokers", c.cfg.Brokers).Strs("topics", c.topics()).Msg("kafka relay connected")

	return push.Open(ctx, c.poll(client), client.Close), nil
}

// poll begins polling Kafka and emitting records. Returns when ctx is cancelled
// or a fetch fails.
func (c *Consumer) poll(client *kgo.Client) push.ReadFunc {
	return func(ctx context.Context, emit func(push.Frame) bool) error {
		for {
			fetches := client.PollFetches(ctx)
			if fetches.IsClientClosed() || ctx.Err() != nil {
				return nil
			}

			var fetchErr error
			fetches.EachError(func(topic string, partition int32, err error) {
				log.Error().Err(err).Str("topic", topic).Int32("partition", partition).Msg("kafka fetch error")
				if fetchErr == nil {
					fetchErr = err
				}
			})
			if fetchErr != nil {
				return fetchErr
			}

			open := true
			fetches.EachRecord(func(r *kgo.Record) {
				if !open {
					return
				}
				if data, ok := c.frameFor(r); ok {
					open = emit(push.Frame{Data: data})
				}
			})
			if !open {
				return nil
			}
		}
	}
}

// topics is the relay topic followed by the event topics that have handlers.
func (c *Consumer) topics() []string {
	out := []string{c.cfg.Topic}
	for _, t := range c.cfg.EventTopics {
		if t != "" && t != c.cfg.Topic && registry.Handles(t) {
			out = append(out, t)
		}
	}
	return out
}

func (c *Consumer) frameFor(r *kgo.Record) ([]byte, bool) {
	if r.Topic == c.cfg.Topic || !registry.Handles(r.Topic) {
		if !c.forMe(r) {
			return nil, false
		}
		return Unwrap(r.Value), true
	}

	d := registry.Dispatch(r.Topic, r.Value)
	if d == nil {
		return nil, false
	}
	if d.Recipient != "" && c.creds.Subject != "" && d.Recipient != c.creds.Subject {
		return nil, false
	}
	out, err := json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{Type: "notification", Data: d.Notification})
	if err != nil {
		log.Warn().Err(err).Str("topic", r.Topic).Msg("kafka event not encodable")
		return nil, false
	}
	return out, true
}

func (c *Consumer) forMe(r *kgo.Record) bool {
	if len(r.Key) == 0 || c.creds.Subject == "" {
		return true
	}
	if string(r.Key) != c.creds.Subject {
		log.Debug().Str("key", string(r.Key)).Msg("skipping kafka record for another user")
		return false
	}
	return true
}

// --- Shared event envelope ---

// EventEnvelope is the common wrapper used by all arda services for Kafka messages.
type EventEnvelope struct {
	EventType string          `json:"eventType"`
	EventID   string          `json:"eventId"`
	TenantKey string          `json:"tenantKey"`
	Payload   json.RawMessage `json:"payload"`
}

var errNotEnvelope = errors.New("not an event envelope")

// ParseEnvelope decodes the common event envelope.
func ParseEnvelope(data []byte) (*EventEnvelope, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.EventType == "" || len(env.Payload) == 0 {
		return nil, errNotEnvelope
	}
	return &env, nil
}

// Unwrap turns an envelope into the {"type","data"} shape the normalizer reads.
// Anything else is returned unchanged.
func Unwrap(data []byte) []byte {
	env, err := ParseEnvelope(data)
	if err != nil {
		return data
	}
	out, err := json.Marshal(struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}{Type: env.EventType, Data: env.Payload})
	if err != nil {
		return data
	}
	return out
}
