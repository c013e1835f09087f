package application

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"vn.io.arda/notifeed/internal/api"
	"vn.io.arda/notifeed/internal/auth"
	"vn.io.arda/notifeed/internal/config"
	"vn.io.arda/notifeed/internal/connection"
	"vn.io.arda/notifeed/internal/domain"
	"vn.io.arda/notifeed/internal/polling"
	"vn.io.arda/notifeed/internal/presenter"
	"vn.io.arda/notifeed/internal/push"
	"vn.io.arda/notifeed/internal/store"
)

// Hub is the interface for fanning changes out to consumer surfaces.
// Implementation lives in transport/http/sse_hub.go.
type Hub interface {
	Broadcast(change domain.Change)
	Subscribe() (<-chan domain.Change, func())
}

// TransportFactory builds the push cascade bound to a token.
type TransportFactory func(creds push.Credentials) []push.Transport

// Options configures a Session.
type Options struct {
	// Backend defaults to an api.Client on APIBaseURL that reads the session token.
	Backend    domain.Backend
	APIBaseURL string
	HTTPClient *http.Client
	MaxRetries int

	// Transports defaults to push.Build over Push.
	Transports TransportFactory
	Push       config.PushConfig

	Hub           Hub
	Notifier      presenter.Notifier
	PresenterTTL  time.Duration
	Capacity      int
	SnapshotLimit int
	PollInterval  time.Duration
	Scheduler     connection.Scheduler
	// Route is the initial route.
	Route string

	now func() time.Time
}

// OptionsFromConfig maps the loaded configuration onto session options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		APIBaseURL:    cfg.API.BaseURL,
		HTTPClient:    &http.Client{Timeout: cfg.API.Timeout},
		MaxRetries:    cfg.API.MaxRetries,
		Push:          cfg.Push,
		PresenterTTL:  cfg.Presenter.TTL,
		Capacity:      cfg.Store.Capacity,
		SnapshotLimit: cfg.Store.SnapshotLimit,
		PollInterval:  cfg.Polling.Interval,
		Route:         cfg.Auth.Route,
	}
}

// Session is the owned state container of one signed-in user: the store, the
// live presenter, the poller and the connection manager, plus the token and
// route that decide whether any of them may talk to the backend.
//
// stateMu guards token and route and is taken by the store's guard from the
// manager loop. lifeMu serializes manager start and stop and is never held
// while stateMu is wanted by the caller.
type Session struct {
	store      *store.Store
	presenter  *presenter.Presenter
	poller     *polling.Poller
	hub        Hub
	transports TransportFactory
	scheduler  connection.Scheduler
	snapshot   int
	now        func() time.Time

	stateMu sync.RWMutex
	token   string
	subject string
	route   string

	lifeMu  sync.Mutex
	baseCtx context.Context
	manager *connection.Manager
}

func New(opts Options) *Session {
	s := &Session{
		hub:        opts.Hub,
		transports: opts.Transports,
		scheduler:  opts.Scheduler,
		snapshot:   opts.SnapshotLimit,
		now:        opts.now,
		route:      opts.Route,
		baseCtx:    context.Background(),
	}
	if s.hub == nil {
		s.hub = nopHub{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.snapshot <= 0 {
		s.snapshot = store.DefaultSnapshotLimit
	}
	if s.transports == nil {
		pushCfg := opts.Push
		s.transports = func(creds push.Credentials) []push.Transport {
			return push.Build(pushCfg, creds)
		}
	}

	backend := opts.Backend
	if backend == nil {
		client := api.NewClient(opts.APIBaseURL, s.AccessToken, opts.HTTPClient)
		if opts.MaxRetries > 0 {
			client.WithRetries(opts.MaxRetries)
		}
		backend = client
	}

	s.presenter = presenter.New(presenter.Options{
		Notifier: opts.Notifier,
		TTL:      opts.PresenterTTL,
		OnChange: func(live *domain.LiveNotification) {
			s.hub.Broadcast(domain.Change{Type: domain.ChangeLive, Live: live})
		},
	})
	s.store = store.New(store.Options{
		Backend:       backend,
		Guard:         s.Allowed,
		Presenter:     s.presenter,
		Broadcaster:   s.hub,
		Capacity:      opts.Capacity,
		SnapshotLimit: s.snapshot,
	})
	s.poller = polling.New(opts.PollInterval, s.store.LoadUnreadCount)
	return s
}

// Start binds the session to ctx and brings the feed up if a valid token is
// present on a non-public route.
func (s *Session) Start(ctx context.Context) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	s.baseCtx = ctx
	s.reconcile()
}

// Close tears the feed down. The collection is kept.
func (s *Session) Close() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	s.stopManager()
	s.presenter.Dismiss()
}

// Follow feeds every token reported by src into SetToken until ctx is done.
func (s *Session) Follow(ctx context.Context, src TokenSource) error {
	return src.Watch(ctx, s.SetToken)
}

// SetToken replaces the access token. Any change tears the push connection
// down, since transports are bound to the token they were built with. An
// empty or expired token is a logout and also clears the collection, as does
// a token for a different user.
func (s *Session) SetToken(token string) {
	s.stateMu.Lock()
	if token == s.token {
		s.stateMu.Unlock()
		return
	}
	hadToken := s.token != ""
	subject := auth.Subject(token)
	switched := hadToken && subject != s.subject
	s.token = token
	s.subject = subject
	s.stateMu.Unlock()

	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.stopManager()
	switch {
	case !auth.Valid(token, s.now()):
		log.Info().Msg("signed out, clearing notifications")
		s.store.Clear()
	case switched:
		log.Info().Str("subject", subject).Msg("user changed, clearing notifications")
		s.store.Clear()
	}
	s.reconcile()
}

// SetRoute records the current route. Entering an auth page suspends the feed
// without clearing it; leaving one resumes it.
func (s *Session) SetRoute(route string) {
	s.stateMu.Lock()
	s.route = route
	s.stateMu.Unlock()

	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	s.reconcile()
}

// ClearNotifications tears the feed down and empties the collection, the
// counter and the live notification.
func (s *Session) ClearNotifications() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	s.stopManager()
	s.store.Clear()
}

// AccessToken returns the current token.
func (s *Session) AccessToken() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.token
}

// Subject returns the sub claim of the current token.
func (s *Session) Subject() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.subject
}

func (s *Session) Route() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.route
}

// Allowed reports whether backend calls may run now.
func (s *Session) Allowed() bool {
	s.stateMu.RLock()
	token, route := s.token, s.route
	s.stateMu.RUnlock()
	return auth.Allowed(token, route, s.now())
}

// Status returns the connection state of the feed.
func (s *Session) Status() connection.Status {
	s.lifeMu.Lock()
	m := s.manager
	s.lifeMu.Unlock()
	if m == nil {
		return connection.Status{State: connection.Idle}
	}
	return m.Status()
}

// Subscribe registers a consumer for state changes.
func (s *Session) Subscribe() (<-chan domain.Change, func()) {
	return s.hub.Subscribe()
}

// ─── Consumer operations ─────────────────────────────────────────────────────

func (s *Session) Notifications() []domain.Notification {
	return s.store.Notifications()
}

func (s *Session) UnreadCount() int {
	return s.store.UnreadCount()
}

func (s *Session) LiveNotification() *domain.LiveNotification {
	return s.store.LiveNotification()
}

func (s *Session) LoadNotifications(ctx context.Context, limit int) error {
	return s.store.LoadSnapshot(ctx, limit)
}

func (s *Session) LoadUnread(ctx context.Context) error {
	return s.store.LoadUnreadCount(ctx)
}

func (s *Session) MarkAsRead(ctx context.Context, id string) {
	s.store.MarkRead(ctx, id)
}

func (s *Session) MarkAllRead(ctx context.Context) {
	s.store.MarkAllRead(ctx)
}

func (s *Session) DeleteNotification(ctx context.Context, id string) {
	s.store.Delete(ctx, id)
}

func (s *Session) Page(ctx context.Context, page, size int) (*domain.Page, error) {
	return s.store.Page(ctx, page, size)
}

// ─── Lifecycle (lifeMu held) ─────────────────────────────────────────────────

func (s *Session) reconcile() {
	if !s.Allowed() {
		s.stopManager()
		return
	}
	if s.manager != nil {
		return
	}

	token := s.AccessToken()
	creds := push.Credentials{Token: token, Subject: auth.Subject(token)}
	transports := s.transports(creds)

	s.manager = connection.New(connection.Options{
		Transports:    transports,
		Store:         s.store,
		Fallback:      s.poller,
		Scheduler:     s.scheduler,
		SnapshotLimit: s.snapshot,
		OnStatus: func(st connection.Status) {
			s.hub.Broadcast(domain.Change{Type: domain.ChangeConnection, Connection: st.Label()})
		},
	})
	log.Info().Int("transports", len(transports)).Str("subject", creds.Subject).Msg("starting notification feed")
	s.manager.Start(s.baseCtx)
}

func (s *Session) stopManager() {
	if s.manager == nil {
		return
	}
	s.manager.Stop()
	s.manager = nil
	log.Info().Msg("notification feed stopped")
}

type nopHub struct{}

func (nopHub) Broadcast(domain.Change) {}

func (nopHub) Subscribe() (<-chan domain.Change, func()) {
	ch := make(chan domain.Change)
	close(ch)
	return ch, func() {}
}
