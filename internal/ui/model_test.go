package ui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vn.io.arda/notifeed/internal/connection"
	"vn.io.arda/notifeed/internal/domain"
	"vn.io.arda/notifeed/internal/messages"
)

type fakeFeed struct {
	mu     sync.Mutex
	items  []domain.Notification
	unread int
	live   *domain.LiveNotification
	calls  []string
}

func (f *fakeFeed) Notifications() []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Notification(nil), f.items...)
}

func (f *fakeFeed) UnreadCount() int                           { return f.unread }
func (f *fakeFeed) LiveNotification() *domain.LiveNotification { return f.live }
func (f *fakeFeed) Allowed() bool                              { return true }

func (f *fakeFeed) Status() connection.Status {
	return connection.Status{State: connection.Connected, Transport: "stream"}
}

func (f *fakeFeed) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeFeed) LoadNotifications(context.Context, int) error    { f.record("load"); return nil }
func (f *fakeFeed) LoadUnread(context.Context) error                { f.record("unread"); return nil }
func (f *fakeFeed) MarkAsRead(_ context.Context, id string)         { f.record("read:" + id) }
func (f *fakeFeed) MarkAllRead(context.Context)                     { f.record("read-all") }
func (f *fakeFeed) DeleteNotification(_ context.Context, id string) { f.record("delete:" + id) }

func newFeed() *fakeFeed {
	return &fakeFeed{
		items: []domain.Notification{
			{ID: "n2", Title: "Phiếu chi đã duyệt"},
			{ID: "n1", Title: "", Read: true},
		},
		unread: 1,
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestViewShowsBadgeStatusAndItems(t *testing.T) {
	m, _ := update(t, New(newFeed(), nil), tea.WindowSizeMsg{Width: 100, Height: 20})

	view := m.View()
	assert.Contains(t, view, messages.Badge(1))
	assert.Contains(t, view, messages.Connected("stream"))
	assert.Contains(t, view, "Phiếu chi đã duyệt")
	assert.Contains(t, view, messages.UntitledNotification)
}

func TestViewShowsToast(t *testing.T) {
	feed := newFeed()
	feed.live = &domain.LiveNotification{Notification: domain.Notification{ID: "n3", ActorName: "Lan"}}

	m, _ := update(t, New(feed, nil), tea.WindowSizeMsg{Width: 100, Height: 20})
	assert.Contains(t, m.View(), messages.NewNotificationTitle)
}

func TestKeysDriveFeed(t *testing.T) {
	feed := newFeed()
	m, _ := update(t, New(feed, nil), tea.WindowSizeMsg{Width: 100, Height: 20})

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	done := cmd().(doneMsg)
	assert.Equal(t, messages.MarkedRead, done.flash)

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})
	cmd()
	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	cmd()
	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	cmd()

	feed.mu.Lock()
	assert.Equal(t, []string{"read:n2", "read-all", "delete:n2", "load", "unread"}, feed.calls)
	feed.mu.Unlock()

	m, _ = update(t, m, done)
	assert.Contains(t, m.View(), messages.MarkedRead)
}

func TestChangesRefreshList(t *testing.T) {
	feed := newFeed()
	changes := make(chan domain.Change, 1)
	m := New(feed, changes)

	feed.mu.Lock()
	feed.items = append([]domain.Notification{{ID: "n9", Title: "Mới"}}, feed.items...)
	feed.mu.Unlock()
	changes <- domain.Change{Type: domain.ChangeNotifications}

	msg := make(chan tea.Msg, 1)
	go func() { msg <- m.Init()() }()
	select {
	case got := <-msg:
		m, _ = update(t, m, got)
	case <-time.After(time.Second):
		t.Fatal("no change message")
	}
	assert.Len(t, m.list.Items(), 3)
}

func TestQuit(t *testing.T) {
	_, cmd := update(t, New(newFeed(), nil), tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestEmptyFeed(t *testing.T) {
	m := New(&fakeFeed{}, nil)
	assert.True(t, strings.Contains(m.View(), messages.EmptyFeed))
}
