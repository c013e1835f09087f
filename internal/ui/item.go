package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"vn.io.arda/notifeed/internal/domain"
	"vn.io.arda/notifeed/internal/messages"
)

// item wraps a notification so it can be used in a bubbles/list.
type item struct {
	n domain.Notification
}

func (i item) FilterValue() string { return i.n.Title }

// delegate renders one notification per line.
type delegate struct{}

func (delegate) Height() int                         { return 1 }
func (delegate) Spacing() int                        { return 0 }
func (delegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (delegate) Render(w io.Writer, m list.Model, index int, li list.Item) {
	it, ok := li.(item)
	if !ok {
		return
	}

	marker := "●"
	style := unreadStyle
	if it.n.Read {
		marker = " "
		style = readStyle
	}

	line := fmt.Sprintf("%s %s", marker, messages.Title(it.n.Title))
	if it.n.ActorName != "" {
		line += dimStyle.Render(" · " + it.n.ActorName)
	}
	if ts := shortTime(it.n.CreatedAt); ts != "" {
		line += dimStyle.Render("  " + ts)
	}

	if index == m.Index() {
		line = selectedStyle.Render(line)
	} else {
		line = style.Render(line)
	}
	fmt.Fprint(w, line)
}

func shortTime(createdAt string) string {
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return createdAt
	}
	return t.Local().Format("02/01 15:04")
}
