package handlers

import (
	"vn.io.arda/notifeed/internal/kafka/registry"
	"vn.io.arda/notifeed/internal/messages"
)

const securityLink = "/account/security"

type accountPayload struct {
	UserID string `json:"userId"`
	IP     string `json:"ip"`
}

func init() {
	Register("iam-events", "LOGIN_NEW_DEVICE", accountHandler(func(p accountPayload) (string, string) {
		return messages.LoginNewDevice(p.IP)
	}))
	Register("iam-events", "PASSWORD_CHANGED", accountHandler(func(accountPayload) (string, string) {
		return messages.PasswordChanged()
	}))
}

// accountHandler drops events without a user; a security notice must never
// reach other listeners.
func accountHandler(render func(accountPayload) (string, string)) registry.EventHandler {
	return func(data []byte) *registry.Delivery {
		eventID, p, ok := decodeEvent[accountPayload](data)
		if !ok || p.UserID == "" {
			return nil
		}
		title, body := render(p)
		return deliver(p.UserID, eventID, title, body, securityLink)
	}
}
