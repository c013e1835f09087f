package connection_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vn.io.arda/notifeed/internal/connection"
	"vn.io.arda/notifeed/internal/domain"
	"vn.io.arda/notifeed/internal/push"
)

// ─── Fakes ───────────────────────────────────────────────────────────────────

type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) add(s string) {
	l.mu.Lock()
	l.entries = append(l.entries, s)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

type fakeStore struct {
	log       *eventLog
	mu        sync.Mutex
	snapshots []int
	counts    int
	applied   chan domain.Event
}

func newFakeStore(log *eventLog) *fakeStore {
	return &fakeStore{log: log, applied: make(chan domain.Event, 16)}
}

func (s *fakeStore) LoadSnapshot(_ context.Context, limit int) error {
	s.mu.Lock()
	s.snapshots = append(s.snapshots, limit)
	s.mu.Unlock()
	s.log.add("store.snapshot")
	return nil
}

func (s *fakeStore) LoadUnreadCount(context.Context) error {
	s.mu.Lock()
	s.counts++
	s.mu.Unlock()
	s.log.add("store.count")
	return nil
}

func (s *fakeStore) Apply(_ context.Context, ev domain.Event) {
	s.applied <- ev
}

type fakeFallback struct {
	log     *eventLog
	mu      sync.Mutex
	running bool
}

func (f *fakeFallback) Start(context.Context) {
	f.mu.Lock()
	f.running = true
	f.mu.Unlock()
	f.log.add("fallback.start")
}

func (f *fakeFallback) Stop() {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
	f.log.add("fallback.stop")
}

func (f *fakeFallback) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

type fakeChannel struct {
	log    *eventLog
	name   string
	frames chan push.Frame
	once   sync.Once
}

func (c *fakeChannel) Frames() <-chan push.Frame { return c.frames }
func (c *fakeChannel) Err() error                { return push.ErrClosed }

func (c *fakeChannel) Close() error {
	c.log.add(c.name + ".close")
	c.peerClose()
	return nil
}

func (c *fakeChannel) peerClose() {
	c.once.Do(func() { close(c.frames) })
}

type fakeTransport struct {
	log  *eventLog
	name string

	mu       sync.Mutex
	fail     bool
	channels []*fakeChannel
}

func (t *fakeTransport) Name() string { return t.name }

func (t *fakeTransport) setFail(fail bool) {
	t.mu.Lock()
	t.fail = fail
	t.mu.Unlock()
}

func (t *fakeTransport) Connect(context.Context) (push.Channel, error) {
	t.log.add(t.name + ".connect")
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail {
		return nil, errors.New(t.name + " unavailable")
	}
	ch := &fakeChannel{log: t.log, name: t.name, frames: make(chan push.Frame)}
	t.channels = append(t.channels, ch)
	return ch, nil
}

func (t *fakeTransport) last() *fakeChannel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channels[len(t.channels)-1]
}

type manualTimer struct {
	log     *eventLog
	d       time.Duration
	c       chan time.Time
	stopped bool
}

func (t *manualTimer) C() <-chan time.Time { return t.c }

func (t *manualTimer) Stop() bool {
	t.stopped = true
	t.log.add("timer.stop")
	return true
}

type manualScheduler struct {
	log    *eventLog
	mu     sync.Mutex
	timers []*manualTimer
}

func (s *manualScheduler) After(d time.Duration) connection.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{log: s.log, d: d, c: make(chan time.Time, 1)}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.timers))
	for i, t := range s.timers {
		out[i] = t.d
	}
	return out
}

func (s *manualScheduler) fireLast() {
	s.mu.Lock()
	t := s.timers[len(s.timers)-1]
	s.mu.Unlock()
	t.c <- time.Now()
}

type harness struct {
	log      *eventLog
	store    *fakeStore
	fallback *fakeFallback
	sched    *manualScheduler
	statuses chan connection.Status
	manager  *connection.Manager
}

func newHarness(transports ...*fakeTransport) *harness {
	h := &harness{
		log:      &eventLog{},
		statuses: make(chan connection.Status, 128),
	}
	h.store = newFakeStore(h.log)
	h.fallback = &fakeFallback{log: h.log}
	h.sched = &manualScheduler{log: h.log}

	list := make([]push.Transport, len(transports))
	for i, t := range transports {
		t.log = h.log
		list[i] = t
	}

	h.manager = connection.New(connection.Options{
		Transports:    list,
		Store:         h.store,
		Fallback:      h.fallback,
		Scheduler:     h.sched,
		SnapshotLimit: 20,
		OnStatus: func(s connection.Status) {
			if s.State == connection.Connected {
				h.log.add("status.connected")
			}
			h.statuses <- s
		},
	})
	return h
}

func (h *harness) waitFor(t *testing.T, state connection.State) connection.Status {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s := <-h.statuses:
			if s.State == state {
				return s
			}
		case <-timeout:
			t.Fatalf("timed out waiting for state %s (last %s)", state, h.manager.Status().State)
		}
	}
}

func indexOf(entries []string, s string) int {
	for i, e := range entries {
		if e == s {
			return i
		}
	}
	return -1
}

// ─── Tests ───────────────────────────────────────────────────────────────────

func TestDelaySchedule(t *testing.T) {
	cases := map[int]time.Duration{
		0:  time.Second,
		1:  2 * time.Second,
		2:  4 * time.Second,
		3:  8 * time.Second,
		4:  16 * time.Second,
		5:  30 * time.Second,
		6:  30 * time.Second,
		50: 30 * time.Second,
	}
	for n, want := range cases {
		assert.Equal(t, want, connection.Delay(n), "attempt %d", n)
	}
}

func TestFreshLoginLoadsOnceAndCascadesInOrder(t *testing.T) {
	broker := &fakeTransport{name: "broker", fail: true}
	stream := &fakeTransport{name: "stream"}
	socket := &fakeTransport{name: "socket"}
	h := newHarness(broker, stream, socket)

	h.manager.Start(context.Background())
	s := h.waitFor(t, connection.Connected)
	defer h.manager.Stop()

	assert.Equal(t, "stream", s.Transport)
	h.store.mu.Lock()
	assert.Equal(t, []int{20}, h.store.snapshots)
	assert.Equal(t, 1, h.store.counts)
	h.store.mu.Unlock()

	entries := h.log.snapshot()
	assert.Less(t, indexOf(entries, "store.snapshot"), indexOf(entries, "broker.connect"))
	assert.Less(t, indexOf(entries, "broker.connect"), indexOf(entries, "stream.connect"))
	assert.Equal(t, -1, indexOf(entries, "socket.connect"), "cascade must stop at first success")
	assert.Less(t, indexOf(entries, "fallback.stop"), indexOf(entries, "status.connected"))
}

func TestBackoffDoublesAndResetsAfterSuccess(t *testing.T) {
	socket := &fakeTransport{name: "socket", fail: true}
	h := newHarness(socket)

	h.manager.Start(context.Background())
	defer h.manager.Stop()

	s := h.waitFor(t, connection.Backoff)
	assert.Equal(t, 1, s.Attempt)
	assert.True(t, h.fallback.Running(), "polling must run while no channel is up")

	h.sched.fireLast()
	h.waitFor(t, connection.Backoff)
	h.sched.fireLast()
	h.waitFor(t, connection.Backoff)

	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, h.sched.delays())

	socket.setFail(false)
	h.sched.fireLast()
	h.waitFor(t, connection.Connected)
	assert.False(t, h.fallback.Running(), "polling must stop once connected")

	socket.last().peerClose()
	h.waitFor(t, connection.Disconnected)
	s = h.waitFor(t, connection.Backoff)

	assert.Equal(t, 1, s.Attempt)
	delays := h.sched.delays()
	assert.Equal(t, 2*time.Second, delays[len(delays)-1], "attempt counter must reset after a success")
	assert.True(t, h.fallback.Running())
}

func TestBackoffCapsAtThirtySeconds(t *testing.T) {
	h := newHarness(&fakeTransport{name: "socket", fail: true})
	h.manager.Start(context.Background())
	defer h.manager.Stop()

	h.waitFor(t, connection.Backoff)
	for i := 0; i < 7; i++ {
		h.sched.fireLast()
		h.waitFor(t, connection.Backoff)
	}

	delays := h.sched.delays()
	assert.Equal(t, 30*time.Second, delays[len(delays)-1])
	for _, d := range delays {
		assert.LessOrEqual(t, d, 30*time.Second)
	}
}

func TestNoTransportsPollsWithoutRetry(t *testing.T) {
	h := newHarness()
	h.manager.Start(context.Background())
	defer h.manager.Stop()

	s := h.waitFor(t, connection.Disconnected)

	assert.True(t, s.Polling)
	assert.True(t, h.fallback.Running())
	assert.Empty(t, h.sched.delays())
}

func TestFramesAreNormalizedAndUnrecognizedDropped(t *testing.T) {
	socket := &fakeTransport{name: "socket"}
	h := newHarness(socket)
	h.manager.Start(context.Background())
	defer h.manager.Stop()
	h.waitFor(t, connection.Connected)

	ch := socket.last()
	ch.frames <- push.Frame{Data: []byte(`garbage`)}
	ch.frames <- push.Frame{Data: []byte(`{"status":"ok"}`)}
	ch.frames <- push.Frame{Data: []byte(`{"type":"notification","id":7,"title":"T"}`)}
	ch.frames <- push.Frame{Data: []byte(`{"type":"unread_count","count":3}`)}

	ev := <-h.store.applied
	require.Equal(t, domain.KindNotification, ev.Kind)
	assert.Equal(t, "7", ev.Notification.ID)

	ev = <-h.store.applied
	require.Equal(t, domain.KindUnreadCount, ev.Kind)
	assert.Equal(t, 3, ev.Count)

	assert.Equal(t, connection.Connected, h.manager.Status().State, "bad frames must not close the channel")
}

func TestStopWhileConnectedClosesChannelThenPoller(t *testing.T) {
	socket := &fakeTransport{name: "socket"}
	h := newHarness(socket)
	h.manager.Start(context.Background())
	h.waitFor(t, connection.Connected)

	h.manager.Stop()

	entries := h.log.snapshot()
	closeAt := indexOf(entries, "socket.close")
	require.NotEqual(t, -1, closeAt)
	assert.Less(t, closeAt, len(entries)-1)
	assert.Equal(t, "fallback.stop", entries[len(entries)-1])
	assert.Equal(t, connection.Idle, h.manager.Status().State)
}

func TestStopDuringBackoffCancelsTimer(t *testing.T) {
	h := newHarness(&fakeTransport{name: "socket", fail: true})
	h.manager.Start(context.Background())
	h.waitFor(t, connection.Backoff)

	h.manager.Stop()

	entries := h.log.snapshot()
	require.GreaterOrEqual(t, len(entries), 2)
	assert.Equal(t, []string{"timer.stop", "fallback.stop"}, entries[len(entries)-2:])
	assert.False(t, h.fallback.Running())
	assert.Equal(t, connection.Idle, h.manager.Status().State)
	assert.Equal(t, 0, h.manager.Status().Attempt)
}

func TestStartIsIdempotentAndRestartable(t *testing.T) {
	socket := &fakeTransport{name: "socket"}
	h := newHarness(socket)

	h.manager.Start(context.Background())
	h.manager.Start(context.Background())
	h.waitFor(t, connection.Connected)
	h.manager.Stop()
	h.manager.Stop()

	h.manager.Start(context.Background())
	h.waitFor(t, connection.Connected)
	h.manager.Stop()

	socket.mu.Lock()
	defer socket.mu.Unlock()
	assert.Len(t, socket.channels, 2)
}

func TestStatusLabel(t *testing.T) {
	s := connection.Status{State: connection.Backoff, Attempt: 2, NextRetry: 4 * time.Second}
	assert.Equal(t, "Thử kết nối lại sau 4s (lần 2)", s.Label())
	assert.Equal(t, "Đã kết nối (socket)", connection.Status{State: connection.Connected, Transport: "socket"}.Label())
}
