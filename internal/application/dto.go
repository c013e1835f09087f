package application

import "vn.io.arda/notifeed/internal/domain"

// TokenRequest is the body of PUT /console/session/token.
type TokenRequest struct {
	Token string `json:"token"`
}

// RouteRequest is the body of PUT /console/session/route.
type RouteRequest struct {
	Route string `json:"route"`
}

// FeedResponse is the consumer view of the store.
type FeedResponse struct {
	Notifications []domain.Notification    `json:"notifications"`
	UnreadCount   int                      `json:"unreadCount"`
	Live          *domain.LiveNotification `json:"live,omitempty"`
}

// ConnectionResponse describes the session for diagnostics.
type ConnectionResponse struct {
	State       string `json:"state"`
	Label       string `json:"label"`
	Transport   string `json:"transport,omitempty"`
	Attempt     int    `json:"attempt,omitempty"`
	NextRetryMs int64  `json:"nextRetryMs,omitempty"`
	Polling     bool   `json:"polling"`
	Allowed     bool   `json:"allowed"`
	Route       string `json:"route"`
	Subject     string `json:"subject,omitempty"`
}

// Feed snapshots the consumer-visible state.
func (s *Session) Feed() FeedResponse {
	return FeedResponse{
		Notifications: s.Notifications(),
		UnreadCount:   s.UnreadCount(),
		Live:          s.LiveNotification(),
	}
}

// Connection snapshots the connection state.
func (s *Session) Connection() ConnectionResponse {
	st := s.Status()
	return ConnectionResponse{
		State:       st.State.String(),
		Label:       st.Label(),
		Transport:   st.Transport,
		Attempt:     st.Attempt,
		NextRetryMs: st.NextRetry.Milliseconds(),
		Polling:     st.Polling,
		Allowed:     s.Allowed(),
		Route:       s.Route(),
		Subject:     s.Subject(),
	}
}
