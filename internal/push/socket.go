package push

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nhooyr.io/websocket"
	"vn.io.arda/notifeed/internal/config"
)

func init() {
	Register("socket", func(cfg config.PushConfig, creds Credentials) (Transport, bool) {
		if cfg.Socket.URL == "" {
			return nil, false
		}
		return NewSocket(cfg.Socket.URL, creds, cfg.HandshakeTimeout), true
	})
}

const socketReadLimit = 1 << 20

// Socket is a plain WebSocket carrying one notification payload per message.
// Binary messages are msgpack encoded.
type Socket struct {
	url       string
	creds     Credentials
	handshake time.Duration
}

func NewSocket(url string, creds Credentials, handshake time.Duration) *Socket {
	if handshake <= 0 {
		handshake = 10 * time.Second
	}
	return &Socket{url: url, creds: creds, handshake: handshake}
}

func (s *Socket) Name() string { return "socket" }

func (s *Socket) Connect(ctx context.Context) (Channel, error) {
	endpoint, err := WithAccessToken(s.url, s.creds.Token, true)
	if err != nil {
		return nil, fmt.Errorf("socket url: %w", err)
	}

	hctx, cancel := context.WithTimeout(ctx, s.handshake)
	defer cancel()

	ws, _, err := websocket.Dial(hctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("socket dial: %w", err)
	}
	ws.SetReadLimit(socketReadLimit)

	read := func(ctx context.Context, emit func(Frame) bool) error {
		for {
			typ, data, err := ws.Read(ctx)
			if err != nil {
				if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			if !emit(Frame{Data: data, Binary: typ == websocket.MessageBinary}) {
				return nil
			}
		}
	}
	cleanup := func() {
		_ = ws.Close(websocket.StatusNormalClosure, "")
	}
	return Open(ctx, read, cleanup), nil
}
