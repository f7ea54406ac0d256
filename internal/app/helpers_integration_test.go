//go:build integration

package app_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bissquit/oprisk/internal/domain"
	"github.com/bissquit/oprisk/internal/testutil"
	"github.com/stretchr/testify/require"
)

type incidentOption func(*incidentRow)

type incidentRow struct {
	title         string
	severity      domain.IncidentSeverity
	status        domain.IncidentStatus
	reportedAgo   time.Duration
	maxResponse   float64
	maxResolution float64
}

func reportedAgo(d time.Duration) incidentOption {
	return func(r *incidentRow) { r.reportedAgo = d }
}

func withStatus(s domain.IncidentStatus) incidentOption {
	return func(r *incidentRow) { r.status = s }
}

func withThresholds(response, resolution float64) incidentOption {
	return func(r *incidentRow) {
		r.maxResponse = response
		r.maxResolution = resolution
	}
}

// createTestIncident inserts an incident directly; the API has no create endpoint.
func createTestIncident(t *testing.T, opts ...incidentOption) string {
	t.Helper()

	row := incidentRow{
		title:         "Payment gateway latency",
		severity:      domain.IncidentSeverityHigh,
		status:        domain.IncidentStatusOpen,
		maxResponse:   24,
		maxResolution: 72,
	}
	for _, opt := range opts {
		opt(&row)
	}

	var id string
	err := testDB.QueryRow(context.Background(), `
		INSERT INTO incidents
			(organization_id, title, severity, status, reported_at,
			 max_response_time_hours, max_resolution_time_hours)
		VALUES ('org-1', $1, $2, $3, $4, $5, $6)
		RETURNING id
	`, row.title, row.severity, row.status, time.Now().Add(-row.reportedAgo),
		row.maxResponse, row.maxResolution,
	).Scan(&id)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = testDB.Exec(context.Background(), `DELETE FROM incidents WHERE id = $1`, id)
	})
	return id
}

type vendorRow struct {
	name        string
	criticality domain.Criticality
	status      domain.VendorStatus
	assessed    *time.Time
	contractEnd *time.Time
	slaExpiry   *time.Time
}

func createTestVendor(t *testing.T, v vendorRow) string {
	t.Helper()

	if v.status == "" {
		v.status = domain.VendorStatusActive
	}

	var id string
	err := testDB.QueryRow(context.Background(), `
		INSERT INTO vendors (name, criticality, status, last_assessment_date, contract_end_date, sla_expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, v.name, v.criticality, v.status, v.assessed, v.contractEnd, v.slaExpiry).Scan(&id)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = testDB.Exec(context.Background(), `DELETE FROM vendors WHERE id = $1`, id)
	})
	return id
}

func daysFromNow(days int) *time.Time {
	d := time.Now().UTC().AddDate(0, 0, days)
	return &d
}

func escalate(t *testing.T, client *testutil.Client, incidentID, reason string) domain.IncidentEscalation {
	t.Helper()

	resp, err := client.POST("/api/v1/incidents/"+incidentID+"/escalations", map[string]string{"reason": reason})
	require.NoError(t, err)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("escalate: status=%d body=%s", resp.StatusCode, testutil.ReadBody(t, resp))
	}

	var result struct {
		Data domain.IncidentEscalation `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

func incidentLevel(t *testing.T, incidentID string) int {
	t.Helper()

	var level int
	err := testDB.QueryRow(context.Background(),
		`SELECT escalation_level FROM incidents WHERE id = $1`, incidentID).Scan(&level)
	require.NoError(t, err)
	return level
}
