package domain

import "time"

// IncidentStatus represents the lifecycle status of an incident.
type IncidentStatus string

// Incident statuses.
const (
	IncidentStatusOpen       IncidentStatus = "open"
	IncidentStatusInProgress IncidentStatus = "in_progress"
	IncidentStatusResolved   IncidentStatus = "resolved"
	IncidentStatusClosed     IncidentStatus = "closed"
)

// IsValid checks if the incident status is valid.
func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentStatusOpen, IncidentStatusInProgress,
		IncidentStatusResolved, IncidentStatusClosed:
		return true
	}
	return false
}

// IsClosed reports whether the incident accepts no further mutations.
func (s IncidentStatus) IsClosed() bool {
	return s == IncidentStatusClosed
}

// IncidentSeverity represents the severity of an incident.
type IncidentSeverity string

// Incident severities.
const (
	IncidentSeverityLow      IncidentSeverity = "low"
	IncidentSeverityMedium   IncidentSeverity = "medium"
	IncidentSeverityHigh     IncidentSeverity = "high"
	IncidentSeverityCritical IncidentSeverity = "critical"
)

// IsValid checks if the severity is valid.
func (s IncidentSeverity) IsValid() bool {
	switch s {
	case IncidentSeverityLow, IncidentSeverityMedium,
		IncidentSeverityHigh, IncidentSeverityCritical:
		return true
	}
	return false
}

// Default SLA thresholds applied when an incident does not carry its own.
const (
	DefaultMaxResponseTimeHours   = 24
	DefaultMaxResolutionTimeHours = 72
)

// Incident is an operational-risk incident tracked against response and resolution SLAs.
// Zero MaxResponseTimeHours or MaxResolutionTimeHours means the default applies.
type Incident struct {
	ID                     string           `json:"id"`
	OrganizationID         string           `json:"organization_id"`
	Title                  string           `json:"title"`
	Severity               IncidentSeverity `json:"severity"`
	Status                 IncidentStatus   `json:"status"`
	EscalationLevel        int              `json:"escalation_level"`
	AssignedTo             *string          `json:"assigned_to,omitempty"`
	ReportedAt             time.Time        `json:"reported_at"`
	FirstResponseAt        *time.Time       `json:"first_response_at,omitempty"`
	ResolvedAt             *time.Time       `json:"resolved_at,omitempty"`
	MaxResponseTimeHours   float64          `json:"max_response_time_hours"`
	MaxResolutionTimeHours float64          `json:"max_resolution_time_hours"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
}

// SLAState is the classification of a single SLA dimension.
type SLAState string

// SLA states.
const (
	SLAStateMet      SLAState = "met"
	SLAStateBreached SLAState = "breached"
	SLAStatePending  SLAState = "pending"
)

// SLAStatus is the result of evaluating an incident against its SLA thresholds.
// ResponseHours and ResolutionHours are set only when the corresponding timestamp exists.
type SLAStatus struct {
	Response        SLAState `json:"response"`
	Resolution      SLAState `json:"resolution"`
	ResponseHours   *float64 `json:"response_hours,omitempty"`
	ResolutionHours *float64 `json:"resolution_hours,omitempty"`
	ElapsedHours    float64  `json:"elapsed_hours"`
}

// Breached reports whether either dimension is breached.
func (s SLAStatus) Breached() bool {
	return s.Response == SLAStateBreached || s.Resolution == SLAStateBreached
}
