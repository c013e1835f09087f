// Package push defines the realtime transports a session tries in cascade order.
//
// A Transport performs the handshake; the resulting Channel delivers raw frames
// until the connection ends. Frames are normalized by the connection manager, so
// transports never interpret payloads.
package push

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// ErrClosed is reported by a Channel whose peer ended the connection without an error.
var ErrClosed = errors.New("push: channel closed by peer")

// Frame is one raw inbound message.
type Frame struct {
	Data   []byte
	Binary bool
}

// Channel is an established push connection.
type Channel interface {
	// Frames is closed when the connection ends, after which Err reports why.
	Frames() <-chan Frame
	// Err is nil when the channel was closed locally.
	Err() error
	// Close tears the connection down and waits for its reader to exit.
	Close() error
}

// Transport is one push strategy.
type Transport interface {
	Name() string
	// Connect blocks until the handshake succeeds or fails.
	Connect(ctx context.Context) (Channel, error)
}

// Credentials are the identity a transport is bound to.
type Credentials struct {
	Token   string
	Subject string
}

// WithAccessToken returns rawURL with an access_token query parameter. http(s)
// schemes are rewritten to ws(s) when websocket is true.
func WithAccessToken(rawURL, token string, websocket bool) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if websocket {
		switch strings.ToLower(u.Scheme) {
		case "http":
			u.Scheme = "ws"
		case "https":
			u.Scheme = "wss"
		}
	}
	if token != "" {
		q := u.Query()
		q.Set("access_token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// SubjectPlaceholder in a relay channel name is replaced with the token's subject.
const SubjectPlaceholder = "{subject}"

// ChannelFor resolves a relay channel template for creds. ok is false when the
// template needs a subject and the token carries none, so an opaque token never
// lands on a channel shared by every user.
func ChannelFor(template string, creds Credentials) (channel string, ok bool) {
	if !strings.Contains(template, SubjectPlaceholder) {
		return template, template != ""
	}
	if creds.Subject == "" {
		return "", false
	}
	return strings.ReplaceAll(template, SubjectPlaceholder, creds.Subject), true
}
