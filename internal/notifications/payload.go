package notifications

import (
	"time"

	"github.com/bissquit/oprisk/internal/domain"
)

// MessageType selects the template family for a notification.
type MessageType string

// Message types.
const (
	MessageTypeEscalation MessageType = "escalation" // manual or automatic escalation
	MessageTypeSLABreach  MessageType = "sla_breach" // escalation raised by the SLA sweeper
)

// NotificationPayload contains data for rendering a notification.
type NotificationPayload struct {
	MessageType MessageType              `json:"message_type"`
	Event       domain.NotificationEvent `json:"event"`
	IncidentURL string                   `json:"incident_url,omitempty"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// NewPayload builds the payload for an escalation event.
func NewPayload(event domain.NotificationEvent, baseURL string, now time.Time) NotificationPayload {
	messageType := MessageTypeEscalation
	if event.Type == domain.EscalationTypeSLABreach {
		messageType = MessageTypeSLABreach
	}

	var incidentURL string
	if baseURL != "" {
		incidentURL = baseURL + "/incidents/" + event.IncidentID
	}

	return NotificationPayload{
		MessageType: messageType,
		Event:       event,
		IncidentURL: incidentURL,
		GeneratedAt: now,
	}
}
