package domain

import "time"

// EscalationType describes what triggered an escalation.
type EscalationType string

// Escalation types.
const (
	EscalationTypeManual    EscalationType = "manual"
	EscalationTypeAutomatic EscalationType = "automatic"
	EscalationTypeSLABreach EscalationType = "sla_breach"
)

// IsValid checks if the escalation type is valid.
func (t EscalationType) IsValid() bool {
	return t == EscalationTypeManual || t == EscalationTypeAutomatic || t == EscalationTypeSLABreach
}

// IncidentEscalation is the audit record of a single escalation transition.
// EscalationLevel holds the incident level after the transition.
type IncidentEscalation struct {
	ID              string         `json:"id"`
	IncidentID      string         `json:"incident_id"`
	EscalationLevel int            `json:"escalation_level"`
	FromActor       string         `json:"from_actor"`
	ToActor         string         `json:"to_actor,omitempty"`
	Reason          string         `json:"reason"`
	Type            EscalationType `json:"escalation_type"`
	CreatedAt       time.Time      `json:"created_at"`
	AcknowledgedAt  *time.Time     `json:"acknowledged_at,omitempty"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
}

// IsOpen reports whether the escalation has not been resolved yet.
func (e *IncidentEscalation) IsOpen() bool {
	return e.ResolvedAt == nil
}

// NotificationEvent asks an external dispatcher to announce an escalation.
type NotificationEvent struct {
	IncidentID      string         `json:"incident_id"`
	EscalationID    string         `json:"escalation_id"`
	EscalationLevel int            `json:"escalation_level"`
	Type            EscalationType `json:"escalation_type"`
	Severity        string         `json:"severity"`
	Title           string         `json:"title"`
	Reason          string         `json:"reason"`
	ToActor         string         `json:"to_actor,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}
