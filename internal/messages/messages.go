package messages

import (
	"fmt"
	"strings"
	"time"
)

// ─── Toast builders ──────────────────────────────────────────────────────────

// Toast returns the title and body shown for a freshly arrived notification.
// Missing fields fall back to generic Vietnamese strings.
func Toast(title, message, actorName string) (string, string) {
	t := strings.TrimSpace(title)
	if t == "" {
		t = NewNotificationTitle
	}

	body := strings.TrimSpace(message)
	switch {
	case body != "":
	case strings.TrimSpace(actorName) != "":
		body = fmt.Sprintf(FromActorBody, strings.TrimSpace(actorName))
	default:
		body = NewNotificationBody
	}
	return t, body
}

// Title returns the list label of a notification.
func Title(title string) string {
	if strings.TrimSpace(title) == "" {
		return UntitledNotification
	}
	return title
}

// ─── Status builders ─────────────────────────────────────────────────────────

func Connected(transport string) string {
	return fmt.Sprintf(StatusConnected, transport)
}

func Backoff(delay time.Duration, attempt int) string {
	return fmt.Sprintf(StatusBackoff, delay, attempt)
}

// Badge renders the unread counter the way the header bell shows it.
func Badge(count int) string {
	if count > 99 {
		return UnreadBadgeMany
	}
	return fmt.Sprintf(UnreadBadge, count)
}

// ─── Domain event builders ───────────────────────────────────────────────────

func TaskAssigned(taskName, processName string) (string, string) {
	return TaskAssignedTitle, fmt.Sprintf(TaskAssignedBody, taskName, processName)
}

func TaskCompleted(taskName string) (string, string) {
	return TaskCompletedTitle, fmt.Sprintf(TaskCompletedBody, taskName)
}

func ApprovalRequired(taskName, processName string) (string, string) {
	return ApprovalRequiredTitle, fmt.Sprintf(ApprovalRequiredBody, taskName, processName)
}

func LeadStatusChanged(entityName string) (string, string) {
	return LeadStatusChangedTitle, fmt.Sprintf(LeadStatusChangedBody, entityName)
}

func DealUpdated(entityName string) (string, string) {
	return DealUpdatedTitle, fmt.Sprintf(DealUpdatedBody, entityName)
}

func LoginNewDevice(ip string) (string, string) {
	return LoginNewDeviceTitle, fmt.Sprintf(LoginNewDeviceBody, ip)
}

func PasswordChanged() (string, string) {
	return PasswordChangedTitle, PasswordChangedBody
}
