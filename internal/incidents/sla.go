package incidents

import (
	"math"
	"time"

	"github.com/bissquit/oprisk/internal/domain"
)

// SLAPolicy holds the thresholds used when an incident does not carry its own.
type SLAPolicy struct {
	DefaultMaxResponseHours   float64
	DefaultMaxResolutionHours float64
}

// DefaultSLAPolicy returns the 24h response / 72h resolution policy.
func DefaultSLAPolicy() SLAPolicy {
	return SLAPolicy{
		DefaultMaxResponseHours:   domain.DefaultMaxResponseTimeHours,
		DefaultMaxResolutionHours: domain.DefaultMaxResolutionTimeHours,
	}
}

// EvaluateSLA classifies an incident under the default policy.
func EvaluateSLA(incident domain.Incident, now time.Time) (domain.SLAStatus, error) {
	return DefaultSLAPolicy().Evaluate(incident, now)
}

// Evaluate classifies the response and resolution SLA state of an incident at now.
// It has no side effects, so it can be replayed on closed incidents.
func (p SLAPolicy) Evaluate(incident domain.Incident, now time.Time) (domain.SLAStatus, error) {
	if incident.ReportedAt.IsZero() {
		return domain.SLAStatus{}, &domain.ValidationError{Field: "reported_at", Reason: "is required"}
	}

	maxResponse, err := threshold("max_response_time_hours", incident.MaxResponseTimeHours, p.DefaultMaxResponseHours)
	if err != nil {
		return domain.SLAStatus{}, err
	}
	maxResolution, err := threshold("max_resolution_time_hours", incident.MaxResolutionTimeHours, p.DefaultMaxResolutionHours)
	if err != nil {
		return domain.SLAStatus{}, err
	}

	if incident.FirstResponseAt != nil && incident.FirstResponseAt.Before(incident.ReportedAt) {
		return domain.SLAStatus{}, &domain.ValidationError{Field: "first_response_at", Reason: "is before reported_at"}
	}
	if incident.ResolvedAt != nil && incident.ResolvedAt.Before(incident.ReportedAt) {
		return domain.SLAStatus{}, &domain.ValidationError{Field: "resolved_at", Reason: "is before reported_at"}
	}

	elapsed := now.Sub(incident.ReportedAt).Hours()

	status := domain.SLAStatus{ElapsedHours: elapsed}
	status.Response, status.ResponseHours = classify(incident.ReportedAt, incident.FirstResponseAt, maxResponse, elapsed)
	status.Resolution, status.ResolutionHours = classify(incident.ReportedAt, incident.ResolvedAt, maxResolution, elapsed)
	return status, nil
}

func classify(reportedAt time.Time, doneAt *time.Time, maxHours, elapsed float64) (domain.SLAState, *float64) {
	if doneAt != nil {
		hours := doneAt.Sub(reportedAt).Hours()
		if hours <= maxHours {
			return domain.SLAStateMet, &hours
		}
		return domain.SLAStateBreached, &hours
	}
	if elapsed > maxHours {
		return domain.SLAStateBreached, nil
	}
	return domain.SLAStatePending, nil
}

// threshold resolves an incident-level threshold, where zero means "use the default".
func threshold(field string, value, fallback float64) (float64, error) {
	if math.IsNaN(value) || value < 0 {
		return 0, &domain.ValidationError{Field: field, Reason: "must not be negative"}
	}
	if value > 0 {
		return value, nil
	}
	if math.IsNaN(fallback) || fallback <= 0 {
		return 0, &domain.ValidationError{Field: field, Reason: "default threshold must be positive"}
	}
	return fallback, nil
}
