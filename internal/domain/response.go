package domain

import "time"

// ResponseType classifies an incident response log entry.
type ResponseType string

// Response types.
const (
	ResponseTypeStatusChange ResponseType = "status_change"
	ResponseTypeAssignment   ResponseType = "assignment"
	ResponseTypeAlert        ResponseType = "alert"
	ResponseTypeNote         ResponseType = "note"
)

// IsValid checks if the response type is valid.
func (t ResponseType) IsValid() bool {
	switch t {
	case ResponseTypeStatusChange, ResponseTypeAssignment,
		ResponseTypeAlert, ResponseTypeNote:
		return true
	}
	return false
}

// IncidentResponse is an append-only audit entry attached to an incident.
type IncidentResponse struct {
	ID               string          `json:"id"`
	IncidentID       string          `json:"incident_id"`
	Type             ResponseType    `json:"response_type"`
	Content          string          `json:"content"`
	PreviousStatus   *IncidentStatus `json:"previous_status,omitempty"`
	NewStatus        *IncidentStatus `json:"new_status,omitempty"`
	PreviousAssignee *string         `json:"previous_assignee,omitempty"`
	NewAssignee      *string         `json:"new_assignee,omitempty"`
	AlertRecipient   *string         `json:"alert_recipient,omitempty"`
	CreatedBy        string          `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
}
