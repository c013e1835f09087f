// Package api is the HTTP client for the REST notification backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"vn.io.arda/notifeed/internal/domain"
	"vn.io.arda/notifeed/internal/normalize"
)

// ErrUnauthenticated is returned for 401 responses. Callers treat it as "not
// signed in" and stay silent.
var ErrUnauthenticated = domain.ErrUnauthenticated

// ErrNoToken is returned without a network round trip when no token is available.
var ErrNoToken = fmt.Errorf("api: no access token: %w", domain.ErrUnauthenticated)

type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// TokenFunc returns the current access token, or "" when signed out.
type TokenFunc func() string

// Client implements domain.Backend over HTTP.
type Client struct {
	baseURL    string
	token      TokenFunc
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

var _ domain.Backend = (*Client)(nil)

func NewClient(baseURL string, token TokenFunc, httpClient *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:8090/api/v1"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
		maxRetries: 3,
		baseDelay:  200 * time.Millisecond,
		maxDelay:   2 * time.Second,
	}
}

// WithRetries overrides the retry budget; 0 disables retries.
func (c *Client) WithRetries(n int) *Client {
	if n >= 0 {
		c.maxRetries = n
	}
	return c
}

// List fetches the newest notifications. The backend answers with a bare array
// or an object wrapping it in "data" or "content".
func (c *Client) List(ctx context.Context, limit int) ([]domain.Notification, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var raw any
	if err := c.doJSON(ctx, http.MethodGet, "/notifications?"+q.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notificationsOf(raw), nil
}

// ListPage fetches one page of the listing. A bare array becomes a single page.
func (c *Client) ListPage(ctx context.Context, page, size int) (*domain.Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	var raw any
	if err := c.doJSON(ctx, http.MethodGet, "/notifications?"+q.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("list notifications page %d: %w", page, err)
	}

	content := notificationsOf(raw)
	p := &domain.Page{Content: content, TotalPages: 1, TotalElements: len(content), Number: page}
	if obj, ok := raw.(map[string]any); ok {
		if v, ok := normalize.Lookup(obj, "totalPages"); ok {
			p.TotalPages, _ = normalize.CountValue(v)
		}
		if v, ok := normalize.Lookup(obj, "totalElements"); ok {
			p.TotalElements, _ = normalize.CountValue(v)
		}
		if v, ok := normalize.Lookup(obj, "number"); ok {
			p.Number, _ = normalize.CountValue(v)
		}
	}
	return p, nil
}

// CountUnread returns the unread badge count. The backend answers with a bare
// number or {"count": n}.
func (c *Client) CountUnread(ctx context.Context) (int, error) {
	var raw any
	if err := c.doJSON(ctx, http.MethodGet, "/notifications/unread-count", &raw); err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	if obj, ok := raw.(map[string]any); ok {
		for _, key := range []string{"count", "unreadCount", "unread"} {
			if v, ok := normalize.Lookup(obj, key); ok {
				raw = v
				break
			}
		}
	}
	n, ok := normalize.CountValue(raw)
	if !ok {
		return 0, fmt.Errorf("unread count: unexpected body %v", raw)
	}
	return n, nil
}

func (c *Client) MarkRead(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodPut, "/notifications/"+url.PathEscape(id)+"/read", nil); err != nil {
		return fmt.Errorf("mark read %s: %w", id, err)
	}
	return nil
}

func (c *Client) MarkAllRead(ctx context.Context) error {
	if err := c.doJSON(ctx, http.MethodPost, "/notifications/read-all", nil); err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/notifications/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, requestPath string, out any) error {
	token := ""
	if c.token != nil {
		token = strings.TrimSpace(c.token())
	}
	if token == "" {
		return ErrNoToken
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Correlation-Id", uuid.NewString())
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries && ctx.Err() == nil {
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode <= 299:
			if out == nil || len(payload) == 0 {
				return nil
			}
			dec := json.NewDecoder(bytes.NewReader(payload))
			dec.UseNumber()
			return dec.Decode(out)
		case resp.StatusCode == http.StatusUnauthorized:
			return ErrUnauthenticated
		case retryable(resp.StatusCode) && attempt < c.maxRetries:
			if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		var errPayload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(payload, &errPayload)
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Code:       errPayload.Code,
			Message:    errPayload.Message,
		}
	}
}

// IsStatus reports whether err is an *HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == code
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

func notificationsOf(raw any) []domain.Notification {
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case map[string]any:
		for _, key := range []string{"data", "content", "items"} {
			if list, ok := v[key].([]any); ok {
				items = list
				break
			}
		}
	}

	out := make([]domain.Notification, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, normalize.DecodeNotification(obj))
	}
	return out
}

func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfter(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	return delay
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := http.ParseTime(header); err == nil {
		if delta := time.Until(ts); delta > 0 {
			return delta
		}
	}
	return 0
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
