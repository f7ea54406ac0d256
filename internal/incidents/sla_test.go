package incidents

import (
	"math"
	"testing"
	"time"

	"github.com/bissquit/oprisk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func at(hours float64) *time.Time {
	ts := t0.Add(time.Duration(hours * float64(time.Hour)))
	return &ts
}

func TestEvaluateSLA_ResponseBreachedResolutionPending(t *testing.T) {
	incident := domain.Incident{
		ReportedAt:             t0,
		MaxResponseTimeHours:   24,
		MaxResolutionTimeHours: 72,
	}

	status, err := EvaluateSLA(incident, *at(25))
	require.NoError(t, err)

	assert.Equal(t, domain.SLAStateBreached, status.Response)
	assert.Equal(t, domain.SLAStatePending, status.Resolution)
	assert.True(t, status.Breached())
	assert.InDelta(t, 25.0, status.ElapsedHours, 1e-9)
	assert.Nil(t, status.ResponseHours)
}

func TestEvaluateSLA_Table(t *testing.T) {
	tests := []struct {
		name        string
		incident    domain.Incident
		nowHours    float64
		response    domain.SLAState
		resolution  domain.SLAState
		responseHrs *float64
	}{
		{
			name:       "fresh incident is pending",
			incident:   domain.Incident{ReportedAt: t0},
			nowHours:   1,
			response:   domain.SLAStatePending,
			resolution: domain.SLAStatePending,
		},
		{
			name:       "elapsed exactly at threshold is still pending",
			incident:   domain.Incident{ReportedAt: t0, MaxResponseTimeHours: 4},
			nowHours:   4,
			response:   domain.SLAStatePending,
			resolution: domain.SLAStatePending,
		},
		{
			name:        "response exactly at threshold is met",
			incident:    domain.Incident{ReportedAt: t0, MaxResponseTimeHours: 4, FirstResponseAt: at(4)},
			nowHours:    10,
			response:    domain.SLAStateMet,
			resolution:  domain.SLAStatePending,
			responseHrs: ptr(4.0),
		},
		{
			name:        "late response stays breached after the fact",
			incident:    domain.Incident{ReportedAt: t0, MaxResponseTimeHours: 4, FirstResponseAt: at(5)},
			nowHours:    6,
			response:    domain.SLAStateBreached,
			resolution:  domain.SLAStatePending,
			responseHrs: ptr(5.0),
		},
		{
			name: "resolved late",
			incident: domain.Incident{
				ReportedAt:      t0,
				FirstResponseAt: at(1),
				ResolvedAt:      at(80),
				Status:          domain.IncidentStatusClosed,
			},
			nowHours:    500,
			response:    domain.SLAStateMet,
			resolution:  domain.SLAStateBreached,
			responseHrs: ptr(1.0),
		},
		{
			name:        "resolution elapsed beyond default",
			incident:    domain.Incident{ReportedAt: t0, FirstResponseAt: at(2)},
			nowHours:    73,
			response:    domain.SLAStateMet,
			resolution:  domain.SLAStateBreached,
			responseHrs: ptr(2.0),
		},
		{
			name:       "zero thresholds fall back to defaults",
			incident:   domain.Incident{ReportedAt: t0},
			nowHours:   24.5,
			response:   domain.SLAStateBreached,
			resolution: domain.SLAStatePending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := EvaluateSLA(tt.incident, *at(tt.nowHours))
			require.NoError(t, err)

			assert.Equal(t, tt.response, status.Response)
			assert.Equal(t, tt.resolution, status.Resolution)
			if tt.responseHrs != nil {
				require.NotNil(t, status.ResponseHours)
				assert.InDelta(t, *tt.responseHrs, *status.ResponseHours, 1e-9)
			}
		})
	}
}

func TestEvaluateSLA_Deterministic(t *testing.T) {
	incident := domain.Incident{
		ReportedAt:      t0,
		FirstResponseAt: at(3),
		ResolvedAt:      at(50),
		Status:          domain.IncidentStatusClosed,
	}

	first, err := EvaluateSLA(incident, *at(1000))
	require.NoError(t, err)
	second, err := EvaluateSLA(incident, *at(1000))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEvaluateSLA_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		incident domain.Incident
		field    string
	}{
		{
			name:     "missing reported_at",
			incident: domain.Incident{},
			field:    "reported_at",
		},
		{
			name:     "negative response threshold",
			incident: domain.Incident{ReportedAt: t0, MaxResponseTimeHours: -1},
			field:    "max_response_time_hours",
		},
		{
			name:     "NaN resolution threshold",
			incident: domain.Incident{ReportedAt: t0, MaxResolutionTimeHours: math.NaN()},
			field:    "max_resolution_time_hours",
		},
		{
			name:     "first response before report",
			incident: domain.Incident{ReportedAt: t0, FirstResponseAt: at(-1)},
			field:    "first_response_at",
		},
		{
			name:     "resolution before report",
			incident: domain.Incident{ReportedAt: t0, ResolvedAt: at(-2)},
			field:    "resolved_at",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EvaluateSLA(tt.incident, *at(1))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)

			var vErr *domain.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestSLAPolicy_CustomDefaults(t *testing.T) {
	policy := SLAPolicy{DefaultMaxResponseHours: 1, DefaultMaxResolutionHours: 8}

	status, err := policy.Evaluate(domain.Incident{ReportedAt: t0}, *at(2))
	require.NoError(t, err)
	assert.Equal(t, domain.SLAStateBreached, status.Response)
	assert.Equal(t, domain.SLAStatePending, status.Resolution)

	// incident-level thresholds win over the policy defaults
	status, err = policy.Evaluate(domain.Incident{ReportedAt: t0, MaxResponseTimeHours: 3}, *at(2))
	require.NoError(t, err)
	assert.Equal(t, domain.SLAStatePending, status.Response)
}

func TestSLAPolicy_InvalidDefault(t *testing.T) {
	policy := SLAPolicy{DefaultMaxResponseHours: 0, DefaultMaxResolutionHours: 72}

	_, err := policy.Evaluate(domain.Incident{ReportedAt: t0}, *at(1))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func ptr[T any](v T) *T {
	return &v
}
