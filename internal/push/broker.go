package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"
	"vn.io.arda/notifeed/internal/config"
)

func init() {
	Register("broker", func(cfg config.PushConfig, creds Credentials) (Transport, bool) {
		if cfg.Broker.URL == "" || cfg.Broker.Destination == "" {
			return nil, false
		}
		return NewBroker(cfg.Broker, creds, cfg.HandshakeTimeout), true
	})
}

// Broker subscribes to a user destination on a STOMP message broker reached
// over WebSocket.
type Broker struct {
	cfg       config.BrokerConfig
	creds     Credentials
	handshake time.Duration
}

func NewBroker(cfg config.BrokerConfig, creds Credentials, handshake time.Duration) *Broker {
	if handshake <= 0 {
		handshake = 10 * time.Second
	}
	return &Broker{cfg: cfg, creds: creds, handshake: handshake}
}

func (b *Broker) Name() string { return "broker" }

func (b *Broker) Connect(ctx context.Context) (Channel, error) {
	endpoint, err := WithAccessToken(b.cfg.URL, b.creds.Token, true)
	if err != nil {
		return nil, fmt.Errorf("broker url: %w", err)
	}

	hctx, cancel := context.WithTimeout(ctx, b.handshake)
	defer cancel()

	header := http.Header{}
	if b.creds.Token != "" {
		header.Set("Authorization", "Bearer "+b.creds.Token)
	}
	ws, _, err := websocket.Dial(hctx, endpoint, &websocket.DialOptions{
		HTTPHeader:   header,
		Subprotocols: []string{"v12.stomp", "v11.stomp", "v10.stomp"},
	})
	if err != nil {
		return nil, fmt.Errorf("broker dial: %w", err)
	}

	// The net.Conn outlives the handshake; its context is the stream's parent.
	netConn := websocket.NetConn(ctx, ws, websocket.MessageText)
	_ = netConn.SetDeadline(time.Now().Add(b.handshake))

	conn, err := stomp.Connect(netConn, b.connectOptions()...)
	if err != nil {
		_ = netConn.Close()
		return nil, fmt.Errorf("broker stomp connect: %w", err)
	}
	_ = netConn.SetDeadline(time.Time{})

	sub, err := conn.Subscribe(b.cfg.Destination, stomp.AckAuto, stomp.SubscribeOpt.Id(uuid.NewString()))
	if err != nil {
		_ = conn.MustDisconnect()
		return nil, fmt.Errorf("broker subscribe %s: %w", b.cfg.Destination, err)
	}

	log.Debug().Str("destination", b.cfg.Destination).Msg("broker subscribed")

	read := func(ctx context.Context, emit func(Frame) bool) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-sub.C:
				if !ok {
					return errors.New("broker subscription closed")
				}
				if msg.Err != nil {
					return msg.Err
				}
				binary := strings.Contains(strings.ToLower(msg.ContentType), "msgpack")
				if !emit(Frame{Data: msg.Body, Binary: binary}) {
					return nil
				}
			}
		}
	}
	cleanup := func() {
		_ = sub.Unsubscribe()
		_ = conn.MustDisconnect()
	}
	return Open(ctx, read, cleanup), nil
}

func (b *Broker) connectOptions() []func(*stomp.Conn) error {
	opts := []func(*stomp.Conn) error{
		stomp.ConnOpt.Host(hostOf(b.cfg.URL)),
	}
	if b.cfg.HeartBeat > 0 {
		opts = append(opts, stomp.ConnOpt.HeartBeat(b.cfg.HeartBeat, b.cfg.HeartBeat))
	}
	if b.creds.Token != "" {
		opts = append(opts,
			stomp.ConnOpt.Login(b.cfg.Login, b.creds.Token),
			stomp.ConnOpt.Header("Authorization", "Bearer "+b.creds.Token),
		)
	}
	return opts
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "/"
	}
	return u.Hostname()
}
