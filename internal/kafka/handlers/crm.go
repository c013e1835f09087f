package handlers

import (
	"vn.io.arda/notifeed/internal/kafka/registry"
	"vn.io.arda/notifeed/internal/messages"
)

type entityPayload struct {
	EntityID   string `json:"entityId"`
	EntityName string `json:"entityName"`
	OwnerID    string `json:"ownerId"`
}

func init() {
	Register("crm-events", "LEAD_STATUS_CHANGED", entityHandler("/crm/leads/", messages.LeadStatusChanged))
	Register("crm-events", "DEAL_UPDATED", entityHandler("/crm/deals/", messages.DealUpdated))
}

func entityHandler(linkPrefix string, render func(entityName string) (string, string)) registry.EventHandler {
	return func(data []byte) *registry.Delivery {
		eventID, p, ok := decodeEvent[entityPayload](data)
		if !ok || p.OwnerID == "" {
			return nil
		}
		title, body := render(p.EntityName)
		return deliver(p.OwnerID, eventID, title, body, linkPrefix+p.EntityID)
	}
}
