package handlers

import (
	"encoding/json"
	"strings"

	"vn.io.arda/notifeed/internal/kafka/registry"
)

func init() {
	RegisterDirect("notification-commands", handleDirectCommand)
}

// handleDirectCommand shows ad-hoc notifications. USER-scoped commands reach
// their target only; TENANT and PLATFORM commands reach every listener.
// ROLE commands need a role lookup the client cannot do and are skipped.
func handleDirectCommand(data []byte) *registry.Delivery {
	var cmd struct {
		CommandID   string `json:"commandId"`
		TenantKey   string `json:"tenantKey"`
		TargetScope string `json:"targetScope"`
		TargetID    string `json:"targetId"`
		Title       string `json:"title"`
		Body        string `json:"body"`
		Link        string `json:"link"`
	}

	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil
	}

	recipient := ""
	switch strings.ToUpper(cmd.TargetScope) {
	case "USER":
		if cmd.TargetID == "" {
			return nil
		}
		recipient = cmd.TargetID
	case "TENANT", "PLATFORM":
	default:
		return nil
	}
	if cmd.Title == "" {
		return nil
	}

	return deliver(recipient, cmd.CommandID, cmd.Title, cmd.Body, cmd.Link)
}
