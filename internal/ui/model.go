// Package ui is the terminal consumer of a session: a header bell with the
// unread badge, the notification list and the live toast.
package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"vn.io.arda/notifeed/internal/connection"
	"vn.io.arda/notifeed/internal/domain"
	"vn.io.arda/notifeed/internal/messages"
	"vn.io.arda/notifeed/internal/store"
)

const opTimeout = 15 * time.Second

// Feed is the part of the session the view reads and drives.
type Feed interface {
	Notifications() []domain.Notification
	UnreadCount() int
	LiveNotification() *domain.LiveNotification
	Status() connection.Status
	Allowed() bool
	LoadNotifications(ctx context.Context, limit int) error
	LoadUnread(ctx context.Context) error
	MarkAsRead(ctx context.Context, id string)
	MarkAllRead(ctx context.Context)
	DeleteNotification(ctx context.Context, id string)
}

// changeMsg carries one state change from the session.
type changeMsg domain.Change

// doneMsg reports a finished user action.
type doneMsg struct {
	flash string
	err   error
}

// Model is the bubbletea model of the feed view.
type Model struct {
	feed    Feed
	changes <-chan domain.Change
	keys    KeyMap
	list    list.Model
	help    help.Model
	flash   string
	width   int
	height  int
}

// New creates the view. changes is the session's change subscription.
func New(feed Feed, changes <-chan domain.Change) Model {
	l := list.New(nil, delegate{}, 80, 20)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetShowPagination(true)

	m := Model{
		feed:    feed,
		changes: changes,
		keys:    DefaultKeyMap(),
		list:    l,
		help:    help.New(),
	}
	m.refresh()
	return m
}

// Init starts listening for session changes.
func (m Model) Init() tea.Cmd {
	return m.waitForChange()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case changeMsg:
		m.refresh()
		if m.width > 0 {
			m.resize()
		}
		return m, m.waitForChange()

	case doneMsg:
		if msg.err != nil {
			m.flash = msg.err.Error()
		} else {
			m.flash = msg.flash
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit, true
	case key.Matches(msg, m.keys.MarkRead):
		id, ok := m.selectedID()
		if !ok {
			return nil, true
		}
		return m.run(messages.MarkedRead, func(ctx context.Context) error {
			m.feed.MarkAsRead(ctx, id)
			return nil
		}), true
	case key.Matches(msg, m.keys.MarkAll):
		return m.run(messages.MarkedAllRead, func(ctx context.Context) error {
			m.feed.MarkAllRead(ctx)
			return nil
		}), true
	case key.Matches(msg, m.keys.Delete):
		id, ok := m.selectedID()
		if !ok {
			return nil, true
		}
		return m.run(messages.Deleted, func(ctx context.Context) error {
			m.feed.DeleteNotification(ctx, id)
			return nil
		}), true
	case key.Matches(msg, m.keys.Reload):
		return m.run(messages.Reloaded, func(ctx context.Context) error {
			if err := m.feed.LoadNotifications(ctx, store.DefaultSnapshotLimit); err != nil {
				return err
			}
			return m.feed.LoadUnread(ctx)
		}), true
	}
	return nil, false
}

// run performs a session call off the update loop.
func (m Model) run(flash string, op func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return doneMsg{flash: flash, err: op(ctx)}
	}
}

func (m Model) waitForChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	ch := m.changes
	return func() tea.Msg {
		change, ok := <-ch
		if !ok {
			return nil
		}
		return changeMsg(change)
	}
}

func (m Model) selectedID() (string, bool) {
	it, ok := m.list.SelectedItem().(item)
	if !ok {
		return "", false
	}
	return it.n.ID, true
}

func (m *Model) refresh() {
	ns := m.feed.Notifications()
	items := make([]list.Item, len(ns))
	for i, n := range ns {
		items[i] = item{n: n}
	}
	m.list.SetItems(items)
}

func (m *Model) resize() {
	used := lipgloss.Height(m.header()) + lipgloss.Height(m.footer())
	if live := m.toast(); live != "" {
		used += lipgloss.Height(live)
	}
	h := m.height - used
	if h < 1 {
		h = 1
	}
	m.list.SetSize(m.width, h)
	m.help.Width = m.width
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	if toast := m.toast(); toast != "" {
		b.WriteString(toast)
		b.WriteString("\n")
	}

	switch {
	case !m.feed.Allowed() && len(m.list.Items()) == 0:
		b.WriteString(dimStyle.PaddingLeft(1).Render(messages.SignedOut))
		b.WriteString("\n")
	case len(m.list.Items()) == 0:
		b.WriteString(dimStyle.PaddingLeft(1).Render(messages.EmptyFeed))
		b.WriteString("\n")
	default:
		b.WriteString(m.list.View())
		b.WriteString("\n")
	}

	b.WriteString(m.footer())
	return b.String()
}

func (m Model) header() string {
	bell := headerStyle.Render("🔔") + badgeStyle.Render(messages.Badge(m.feed.UnreadCount()))
	status := statusStyle.Render(m.feed.Status().Label())

	gap := m.width - lipgloss.Width(bell) - lipgloss.Width(status)
	if gap < 1 {
		gap = 1
	}
	return bell + strings.Repeat(" ", gap) + status
}

func (m Model) toast() string {
	live := m.feed.LiveNotification()
	if live == nil {
		return ""
	}
	n := live.Notification
	title, body := messages.Toast(n.Title, n.Message, n.ActorName)
	return toastStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lipgloss.NewStyle().Bold(true).Render(title), body))
}

func (m Model) footer() string {
	lines := []string{}
	if m.flash != "" {
		lines = append(lines, flashStyle.Render(m.flash))
	}
	lines = append(lines, m.help.View(m.keys))
	return strings.Join(lines, "\n")
}
