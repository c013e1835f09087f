package presenter

import (
	"context"
	"sync"
	"testing"
	"time"

	"vn.io.arda/notifeed/internal/domain"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) afterFunc(d time.Duration, f func()) stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

type fakeNotifier struct {
	perm      Permission
	onRequest Permission
	requests  int
	notified  []string
}

func (n *fakeNotifier) Permission() Permission { return n.perm }

func (n *fakeNotifier) RequestPermission(context.Context) Permission {
	n.requests++
	n.perm = n.onRequest
	return n.perm
}

func (n *fakeNotifier) Notify(title, _ string) error {
	n.notified = append(n.notified, title)
	return nil
}

func newTestPresenter(n Notifier, clock *fakeClock, changes *[]*domain.LiveNotification) *Presenter {
	return New(Options{
		Notifier:  n,
		afterFunc: clock.afterFunc,
		OnChange: func(l *domain.LiveNotification) {
			*changes = append(*changes, l)
		},
	})
}

func TestPresentSetsLiveAndSchedulesClear(t *testing.T) {
	clock := &fakeClock{}
	var changes []*domain.LiveNotification
	p := newTestPresenter(&fakeNotifier{perm: PermissionDenied}, clock, &changes)

	p.Present(domain.Notification{ID: "1", Title: "A"})

	if got := p.Current(); got == nil || got.Notification.ID != "1" {
		t.Fatalf("expected live notification 1, got %+v", got)
	}
	if len(clock.timers) != 1 || clock.timers[0].d != DefaultTTL {
		t.Fatalf("expected one %s timer, got %+v", DefaultTTL, clock.timers)
	}

	clock.timers[0].f()

	if p.Current() != nil {
		t.Fatal("expected live notification to clear after ttl")
	}
	if len(changes) != 2 || changes[1] != nil {
		t.Fatalf("expected set then clear change, got %d changes", len(changes))
	}
}

func TestPresentSupersedesAndRestartsTimer(t *testing.T) {
	clock := &fakeClock{}
	var changes []*domain.LiveNotification
	p := newTestPresenter(&fakeNotifier{perm: PermissionDenied}, clock, &changes)

	p.Present(domain.Notification{ID: "1"})
	p.Present(domain.Notification{ID: "2"})
	p.worker.Wait()

	if !clock.timers[0].stopped {
		t.Fatal("first timer must be stopped when superseded")
	}

	// A late callback of the superseded timer must not clear the newer notification.
	clock.timers[0].f()
	if got := p.Current(); got == nil || got.Notification.ID != "2" {
		t.Fatalf("expected notification 2 to remain, got %+v", got)
	}

	clock.timers[1].f()
	if p.Current() != nil {
		t.Fatal("expected clear after second timer")
	}
}

func TestDesktopGranted(t *testing.T) {
	n := &fakeNotifier{perm: PermissionGranted}
	var changes []*domain.LiveNotification
	p := newTestPresenter(n, &fakeClock{}, &changes)

	p.Present(domain.Notification{ID: "1", Title: "Hi"})
	p.worker.Wait()

	if len(n.notified) != 1 || n.notified[0] != "Hi" {
		t.Fatalf("expected desktop notification, got %v", n.notified)
	}
	if n.requests != 0 {
		t.Fatal("must not request when already granted")
	}
}

func TestDesktopDeniedNeverRequests(t *testing.T) {
	n := &fakeNotifier{perm: PermissionDenied, onRequest: PermissionGranted}
	var changes []*domain.LiveNotification
	p := newTestPresenter(n, &fakeClock{}, &changes)

	p.Present(domain.Notification{ID: "1"})
	p.Present(domain.Notification{ID: "2"})
	p.worker.Wait()

	if n.requests != 0 || len(n.notified) != 0 {
		t.Fatalf("denied permission must stay silent: requests=%d notified=%v", n.requests, n.notified)
	}
}

func TestDesktopDefaultRequestsOnce(t *testing.T) {
	n := &fakeNotifier{perm: PermissionDefault, onRequest: PermissionDefault}
	var changes []*domain.LiveNotification
	p := newTestPresenter(n, &fakeClock{}, &changes)

	p.Present(domain.Notification{ID: "1"})
	p.Present(domain.Notification{ID: "2"})
	p.worker.Wait()

	if n.requests != 1 {
		t.Fatalf("expected a single permission request, got %d", n.requests)
	}
	if len(n.notified) != 0 {
		t.Fatal("must not notify while permission is undetermined")
	}
}

func TestDesktopDefaultGrantedNotifies(t *testing.T) {
	n := &fakeNotifier{perm: PermissionDefault, onRequest: PermissionGranted}
	var changes []*domain.LiveNotification
	p := newTestPresenter(n, &fakeClock{}, &changes)

	p.Present(domain.Notification{ID: "1", Title: ""})
	p.worker.Wait()

	if len(n.notified) != 1 {
		t.Fatalf("expected notification after grant, got %v", n.notified)
	}
}

type blockingNotifier struct {
	release chan struct{}
	titles  chan string
}

func (n *blockingNotifier) Permission() Permission { return PermissionGranted }

func (n *blockingNotifier) RequestPermission(context.Context) Permission { return PermissionGranted }

func (n *blockingNotifier) Notify(title, _ string) error {
	<-n.release
	n.titles <- title
	return nil
}

func TestSlowDesktopNotifierDoesNotBlockPresent(t *testing.T) {
	n := &blockingNotifier{release: make(chan struct{}), titles: make(chan string, 4)}
	var changes []*domain.LiveNotification
	p := newTestPresenter(n, &fakeClock{}, &changes)

	done := make(chan struct{})
	go func() {
		p.Present(domain.Notification{ID: "1", Title: "A"})
		p.Present(domain.Notification{ID: "2", Title: "B"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Present blocked on the desktop notifier")
	}
	if got := p.Current(); got == nil || got.Notification.ID != "2" {
		t.Fatalf("expected live notification 2, got %+v", got)
	}

	close(n.release)
	p.worker.Wait()
	if a, b := <-n.titles, <-n.titles; a != "A" || b != "B" {
		t.Fatalf("expected desktop notifications in order, got %s, %s", a, b)
	}
}

func TestDismiss(t *testing.T) {
	clock := &fakeClock{}
	var changes []*domain.LiveNotification
	p := newTestPresenter(&fakeNotifier{perm: PermissionDenied}, clock, &changes)
	p.Present(domain.Notification{ID: "1"})

	p.Dismiss()
	p.Dismiss()

	if p.Current() != nil {
		t.Fatal("expected no live notification")
	}
	if !clock.timers[0].stopped {
		t.Fatal("dismiss must stop the timer")
	}
	if len(changes) != 2 {
		t.Fatalf("second dismiss must not emit, got %d changes", len(changes))
	}
}

func TestDesktopNotifierRequestResolution(t *testing.T) {
	granted := NewDesktopNotifier("", PermissionDefault, true)
	if got := granted.RequestPermission(context.Background()); got != PermissionGranted {
		t.Fatalf("expected granted, got %s", got)
	}

	denied := NewDesktopNotifier("", "bogus", false)
	if denied.Permission() != PermissionDefault {
		t.Fatal("unknown permission must map to default")
	}
	if got := denied.RequestPermission(context.Background()); got != PermissionDenied {
		t.Fatalf("expected denied, got %s", got)
	}
	if denied.Permission() != PermissionDenied {
		t.Fatal("request result must be remembered")
	}
}
