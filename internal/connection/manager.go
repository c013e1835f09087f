// Package connection runs the push connection state machine of a session:
// it walks the transport cascade, feeds inbound frames through the normalizer
// into the store, falls back to polling, and reconnects with backoff.
package connection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"vn.io.arda/notifeed/internal/domain"
	"vn.io.arda/notifeed/internal/normalize"
	"vn.io.arda/notifeed/internal/push"
)

// Store is the part of the notification store the manager drives.
type Store interface {
	LoadSnapshot(ctx context.Context, limit int) error
	LoadUnreadCount(ctx context.Context) error
	Apply(ctx context.Context, ev domain.Event)
}

// Fallback is the polling loop used while no push channel is connected.
type Fallback interface {
	Start(ctx context.Context)
	Stop()
}

// Options configures a Manager. Store is required.
type Options struct {
	Transports    []push.Transport
	Store         Store
	Fallback      Fallback
	Scheduler     Scheduler
	SnapshotLimit int
	// OnStatus is called from the run loop after every state transition.
	OnStatus func(Status)
}

// Manager owns one run-loop goroutine. The open channel, the backoff timer and
// the attempt counter are touched only by that goroutine.
type Manager struct {
	transports    []push.Transport
	store         Store
	fallback      Fallback
	sched         Scheduler
	snapshotLimit int
	onStatus      func(Status)

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}

	// run-loop state
	channel push.Channel
	timer   Timer
	attempt int
}

func New(opts Options) *Manager {
	m := &Manager{
		transports:    opts.Transports,
		store:         opts.Store,
		fallback:      opts.Fallback,
		sched:         opts.Scheduler,
		snapshotLimit: opts.SnapshotLimit,
		onStatus:      opts.OnStatus,
		status:        Status{State: Idle},
	}
	if m.fallback == nil {
		m.fallback = nopFallback{}
	}
	if m.sched == nil {
		m.sched = RealScheduler{}
	}
	if m.snapshotLimit <= 0 {
		m.snapshotLimit = 20
	}
	return m
}

// Start loads the initial snapshot and begins the transport cascade. It is a
// no-op while the manager is running.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go m.run(loopCtx, done)
}

// Stop tears the session's connection down and waits for the loop to exit:
// the channel is closed, then the retry timer is cancelled, then the poller
// stops and the attempt counter resets. The manager ends Idle.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Status returns a snapshot of the connection state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	m.setStatus(Status{State: Connecting})
	if err := m.store.LoadSnapshot(ctx, m.snapshotLimit); err != nil {
		log.Warn().Err(err).Msg("initial snapshot load failed")
	}
	if err := m.store.LoadUnreadCount(ctx); err != nil {
		log.Warn().Err(err).Msg("initial unread count load failed")
	}
	m.connect(ctx)

	for {
		var frames <-chan push.Frame
		if m.channel != nil {
			frames = m.channel.Frames()
		}
		var fire <-chan time.Time
		if m.timer != nil {
			fire = m.timer.C()
		}

		select {
		case <-ctx.Done():
			m.teardown()
			return
		case f, ok := <-frames:
			if !ok {
				m.disconnected(ctx)
				continue
			}
			m.handle(ctx, f)
		case <-fire:
			m.timer = nil
			m.connect(ctx)
		}
	}
}

// connect runs the cascade once; the first transport whose handshake succeeds wins.
func (m *Manager) connect(ctx context.Context) {
	m.setStatus(Status{State: Connecting, Attempt: m.attempt})

	for _, t := range m.transports {
		if ctx.Err() != nil {
			return
		}
		ch, err := t.Connect(ctx)
		if err != nil {
			logConnectFailure(t.Name(), err)
			continue
		}

		m.fallback.Stop()
		m.channel = ch
		m.attempt = 0
		m.setStatus(Status{State: Connected, Transport: t.Name()})
		log.Info().Str("transport", t.Name()).Msg("push channel connected")
		return
	}

	if ctx.Err() != nil {
		return
	}
	m.fallback.Start(ctx)
	if len(m.transports) == 0 {
		log.Info().Msg("no push transport configured, polling only")
		m.setStatus(Status{State: Disconnected, Polling: true})
		return
	}
	m.scheduleRetry()
}

func (m *Manager) disconnected(ctx context.Context) {
	name := m.Status().Transport
	err := m.channel.Err()
	_ = m.channel.Close()
	m.channel = nil

	log.Warn().Err(err).Str("transport", name).Msg("push channel disconnected")
	m.setStatus(Status{State: Disconnected, Transport: name})

	if ctx.Err() != nil {
		return
	}
	m.fallback.Start(ctx)
	m.scheduleRetry()
}

func (m *Manager) scheduleRetry() {
	m.attempt++
	delay := Delay(m.attempt)
	m.timer = m.sched.After(delay)
	m.setStatus(Status{State: Backoff, Attempt: m.attempt, NextRetry: delay, Polling: true})
	log.Debug().Int("attempt", m.attempt).Dur("delay", delay).Msg("push reconnect scheduled")
}

func (m *Manager) handle(ctx context.Context, f push.Frame) {
	var ev domain.Event
	if f.Binary {
		ev = normalize.NormalizeBinary(f.Data)
	} else {
		ev = normalize.Normalize(f.Data)
	}

	if ev.Kind == domain.KindUnrecognized {
		log.Debug().Int("bytes", len(f.Data)).Msg("dropping unrecognized push message")
		return
	}
	m.store.Apply(ctx, ev)
}

func (m *Manager) teardown() {
	if m.channel != nil {
		_ = m.channel.Close()
		m.channel = nil
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.fallback.Stop()
	m.attempt = 0
	m.setStatus(Status{State: Idle})
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()

	if m.onStatus != nil {
		m.onStatus(s)
	}
}

func logConnectFailure(name string, err error) {
	if errors.Is(err, domain.ErrUnauthenticated) {
		log.Debug().Str("transport", name).Msg("push transport rejected token")
		return
	}
	log.Warn().Err(err).Str("transport", name).Msg("push transport unavailable")
}

type nopFallback struct{}

func (nopFallback) Start(context.Context) {}
func (nopFallback) Stop()                 {}
