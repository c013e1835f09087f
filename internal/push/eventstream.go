package push

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"vn.io.arda/notifeed/internal/config"
	"vn.io.arda/notifeed/internal/domain"
)

func init() {
	Register("stream", func(cfg config.PushConfig, creds Credentials) (Transport, bool) {
		if cfg.Stream.URL == "" {
			return nil, false
		}
		return NewEventStream(cfg.Stream.URL, creds, cfg.HandshakeTimeout, nil), true
	})
}

const maxEventSize = 1 << 20

// EventStream reads a server-sent event stream.
type EventStream struct {
	url        string
	creds      Credentials
	handshake  time.Duration
	httpClient *http.Client

	mu          sync.Mutex
	lastEventID string
}

func NewEventStream(url string, creds Credentials, handshake time.Duration, httpClient *http.Client) *EventStream {
	if handshake <= 0 {
		handshake = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &EventStream{url: url, creds: creds, handshake: handshake, httpClient: httpClient}
}

func (e *EventStream) Name() string { return "stream" }

func (e *EventStream) Connect(ctx context.Context) (Channel, error) {
	endpoint, err := WithAccessToken(e.url, e.creds.Token, false)
	if err != nil {
		return nil, fmt.Errorf("stream url: %w", err)
	}

	reqCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if id := e.resumeID(); id != "" {
		req.Header.Set("Last-Event-ID", id)
	}

	// The response body lives as long as the stream, so only the header phase is timed.
	timer := time.AfterFunc(e.handshake, cancel)
	resp, err := e.httpClient.Do(req)
	if !timer.Stop() && err == nil {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream handshake: timed out after %s", e.handshake)
	}
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stream connect: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream connect: %w", domain.ErrUnauthenticated)
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream connect: status %d", resp.StatusCode)
	case !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream"):
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream connect: unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	read := func(_ context.Context, emit func(Frame) bool) error {
		return e.readEvents(resp, emit)
	}
	cleanup := func() {
		cancel()
		resp.Body.Close()
	}
	return &eventChannel{Stream: Open(reqCtx, read, cleanup), cancel: cancel}, nil
}

// eventChannel cancels the request before waiting for the reader, since a body
// read does not observe the stream context.
type eventChannel struct {
	*Stream
	cancel context.CancelFunc
}

func (c *eventChannel) Close() error {
	c.cancel()
	return c.Stream.Close()
}

func (e *EventStream) readEvents(resp *http.Response, emit func(Frame) bool) error {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var (
		event string
		data  []string
	)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if line == "" {
			if len(data) > 0 {
				if !emit(Frame{Data: eventPayload(event, strings.Join(data, "\n"))}) {
					return nil
				}
			}
			event, data = "", nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event = value
		case "data":
			data = append(data, value)
		case "id":
			e.mu.Lock()
			e.lastEventID = value
			e.mu.Unlock()
		}
	}
	return scanner.Err()
}

func (e *EventStream) resumeID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastEventID
}

// eventPayload folds a named event into the envelope the normalizer expects.
// Unnamed events and the default "message" event pass through unchanged.
func eventPayload(event, data string) []byte {
	if event == "" || event == "message" {
		return []byte(data)
	}
	b, err := json.Marshal(map[string]string{"type": event, "data": data})
	if err != nil {
		return []byte(data)
	}
	return b
}
