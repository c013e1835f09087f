package presenter

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"vn.io.arda/notifeed/internal/domain"
	"vn.io.arda/notifeed/internal/messages"
)

// DefaultTTL is how long a live notification stays visible.
const DefaultTTL = 6 * time.Second

// desktopQueue bounds the desktop notifications waiting for the notifier.
// Further notifications are dropped until it drains.
const desktopQueue = 8

// Permission is the desktop notification permission state.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

// Notifier raises OS-level notifications.
type Notifier interface {
	Permission() Permission
	RequestPermission(ctx context.Context) Permission
	Notify(title, body string) error
}

type stopper interface {
	Stop() bool
}

// Options configures a Presenter.
type Options struct {
	Notifier Notifier
	TTL      time.Duration
	// OnChange is called with the new live notification, or nil when it clears.
	OnChange func(*domain.LiveNotification)

	now       func() time.Time
	afterFunc func(time.Duration, func()) stopper
}

// Presenter holds the single "just arrived" notification and mirrors it to the
// desktop when permitted.
type Presenter struct {
	notifier  Notifier
	ttl       time.Duration
	onChange  func(*domain.LiveNotification)
	now       func() time.Time
	afterFunc func(time.Duration, func()) stopper

	mu        sync.Mutex
	current   *domain.LiveNotification
	timer     stopper
	seq       uint64
	requested bool

	desktop  chan domain.Notification
	draining bool
	worker   sync.WaitGroup
}

func New(opts Options) *Presenter {
	p := &Presenter{
		notifier:  opts.Notifier,
		ttl:       opts.TTL,
		onChange:  opts.OnChange,
		now:       opts.now,
		afterFunc: opts.afterFunc,
		desktop:   make(chan domain.Notification, desktopQueue),
	}
	if p.notifier == nil {
		p.notifier = NopNotifier{}
	}
	if p.ttl <= 0 {
		p.ttl = DefaultTTL
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.afterFunc == nil {
		p.afterFunc = func(d time.Duration, f func()) stopper { return time.AfterFunc(d, f) }
	}
	return p
}

// Present replaces the live notification and restarts the auto-clear timer.
func (p *Presenter) Present(n domain.Notification) {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.seq++
	seq := p.seq
	live := &domain.LiveNotification{Notification: n, ShownAt: p.now()}
	p.current = live
	p.timer = p.afterFunc(p.ttl, func() { p.expire(seq) })
	p.mu.Unlock()

	p.emit(live)
	p.queueDesktop(n)
}

// Dismiss clears the live notification immediately.
func (p *Presenter) Dismiss() {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.seq++
	hadCurrent := p.current != nil
	p.current = nil
	p.mu.Unlock()

	if hadCurrent {
		p.emit(nil)
	}
}

// Current returns a copy of the live notification, or nil.
func (p *Presenter) Current() *domain.LiveNotification {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	live := *p.current
	return &live
}

// expire clears the live notification if no newer one superseded it.
func (p *Presenter) expire(seq uint64) {
	p.mu.Lock()
	if seq != p.seq {
		p.mu.Unlock()
		return
	}
	p.current = nil
	p.timer = nil
	p.mu.Unlock()

	p.emit(nil)
}

func (p *Presenter) emit(live *domain.LiveNotification) {
	if p.onChange == nil {
		return
	}
	if live != nil {
		cp := *live
		live = &cp
	}
	p.onChange(live)
}

// queueDesktop hands n to the desktop worker so a slow notifier never holds up
// the caller. The worker exits once the queue is empty.
func (p *Presenter) queueDesktop(n domain.Notification) {
	select {
	case p.desktop <- n:
	default:
		log.Debug().Str("id", n.ID).Msg("desktop queue full, notification dropped")
		return
	}

	p.mu.Lock()
	if p.draining {
		p.mu.Unlock()
		return
	}
	p.draining = true
	p.worker.Add(1)
	p.mu.Unlock()

	go p.drainDesktop()
}

func (p *Presenter) drainDesktop() {
	defer p.worker.Done()
	for {
		select {
		case n := <-p.desktop:
			p.raiseDesktop(n)
		default:
			p.mu.Lock()
			if len(p.desktop) == 0 {
				p.draining = false
				p.mu.Unlock()
				return
			}
			p.mu.Unlock()
		}
	}
}

func (p *Presenter) raiseDesktop(n domain.Notification) {
	switch p.notifier.Permission() {
	case PermissionGranted:
	case PermissionDenied:
		return
	default:
		p.mu.Lock()
		already := p.requested
		p.requested = true
		p.mu.Unlock()
		if already {
			return
		}
		if p.notifier.RequestPermission(context.Background()) != PermissionGranted {
			return
		}
	}

	title, body := messages.Toast(n.Title, n.Message, n.ActorName)
	if err := p.notifier.Notify(title, body); err != nil {
		log.Warn().Err(err).Str("id", n.ID).Msg("desktop notification failed")
	}
}
