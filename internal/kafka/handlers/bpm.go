package handlers

import (
	"vn.io.arda/notifeed/internal/kafka/registry"
	"vn.io.arda/notifeed/internal/messages"
)

type taskPayload struct {
	TaskID      string `json:"taskId"`
	TaskName    string `json:"taskName"`
	AssigneeID  string `json:"assigneeId"`
	ProcessName string `json:"processName"`
}

var taskEvents = map[string]func(taskPayload) (string, string){
	"TASK_ASSIGNED": func(p taskPayload) (string, string) {
		return messages.TaskAssigned(p.TaskName, p.ProcessName)
	},
	"TASK_COMPLETED": func(p taskPayload) (string, string) {
		return messages.TaskCompleted(p.TaskName)
	},
	"APPROVAL_REQUIRED": func(p taskPayload) (string, string) {
		return messages.ApprovalRequired(p.TaskName, p.ProcessName)
	},
}

func init() {
	for eventType, render := range taskEvents {
		Register("bpm-events", eventType, taskHandler(render))
	}
}

// taskHandler addresses task events to the assignee and links to the task.
func taskHandler(render func(taskPayload) (string, string)) registry.EventHandler {
	return func(data []byte) *registry.Delivery {
		eventID, p, ok := decodeEvent[taskPayload](data)
		if !ok || p.AssigneeID == "" {
			return nil
		}
		link := ""
		if p.TaskID != "" {
			link = "/bpm/tasks/" + p.TaskID
		}
		title, body := render(p)
		return deliver(p.AssigneeID, eventID, title, body, link)
	}
}
