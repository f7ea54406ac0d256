// Package postgres provides PostgreSQL implementation of the incidents repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/oprisk/internal/domain"
	"github.com/bissquit/oprisk/internal/incidents"
	pgutil "github.com/bissquit/oprisk/internal/pkg/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const incidentColumns = `
	id, organization_id, title, severity, status, escalation_level, assigned_to,
	reported_at, first_response_at, resolved_at,
	max_response_time_hours, max_resolution_time_hours, created_at, updated_at
`

const escalationColumns = `
	id, incident_id, escalation_level, from_actor, COALESCE(to_actor, ''), reason,
	escalation_type, created_at, acknowledged_at, resolved_at
`

const responseColumns = `
	id, incident_id, response_type, content, previous_status, new_status,
	previous_assignee, new_assignee, alert_recipient, created_by, created_at
`

// Repository implements the incidents.Repository interface using PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	db   pgutil.Querier
}

var _ incidents.Repository = (*Repository)(nil)

// NewRepository creates a new PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, db: pool}
}

// WithTx runs fn against a repository bound to one transaction. Nested calls reuse
// the outer transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(tx incidents.Repository) error) error {
	if r.pool == nil {
		return fn(r)
	}
	return pgutil.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&Repository{db: tx})
	})
}

// GetIncident retrieves an incident by ID.
func (r *Repository) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`

	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgutil.IsInvalidInput(err) {
			return nil, &domain.NotFoundError{Entity: "incident", ID: id}
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return incident, nil
}

// LockIncident retrieves an incident with SELECT ... FOR UPDATE.
func (r *Repository) LockIncident(ctx context.Context, id string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1 FOR UPDATE`

	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgutil.IsInvalidInput(err) {
			return nil, &domain.NotFoundError{Entity: "incident", ID: id}
		}
		return nil, fmt.Errorf("lock incident: %w", err)
	}
	return incident, nil
}

// ListActiveIncidents returns incidents that are neither resolved nor closed.
func (r *Repository) ListActiveIncidents(ctx context.Context) ([]*domain.Incident, error) {
	query := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE status IN ('open', 'in_progress')
		ORDER BY reported_at
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active incidents: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		result = append(result, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}
	return result, nil
}

// UpdateIncident persists status, assignment and response timestamps of a non-closed incident.
func (r *Repository) UpdateIncident(ctx context.Context, incident *domain.Incident) error {
	query := `
		UPDATE incidents
		SET status = $2, assigned_to = $3, first_response_at = $4, resolved_at = $5, updated_at = $6
		WHERE id = $1 AND status <> 'closed'
	`
	result, err := r.db.Exec(ctx, query,
		incident.ID,
		incident.Status,
		incident.AssignedTo,
		incident.FirstResponseAt,
		incident.ResolvedAt,
		incident.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM incidents WHERE id = $1)`, incident.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check incident: %w", err)
	}
	if !exists {
		return &domain.NotFoundError{Entity: "incident", ID: incident.ID}
	}
	return &domain.InvalidStateError{Reason: "incident is closed"}
}

// UpdateIncidentEscalationLevel moves a non-closed incident from level-1 to level.
func (r *Repository) UpdateIncidentEscalationLevel(ctx context.Context, id string, level int) error {
	query := `
		UPDATE incidents
		SET escalation_level = $2, updated_at = NOW()
		WHERE id = $1 AND escalation_level = $2 - 1 AND status <> 'closed'
	`
	result, err := r.db.Exec(ctx, query, id, level)
	if err != nil {
		return fmt.Errorf("update escalation level: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	// Distinguish a missing incident from a lost race or a closed incident.
	var current int
	var status domain.IncidentStatus
	err = r.db.QueryRow(ctx, `SELECT escalation_level, status FROM incidents WHERE id = $1`, id).Scan(&current, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.NotFoundError{Entity: "incident", ID: id}
		}
		return fmt.Errorf("check incident level: %w", err)
	}
	if status.IsClosed() {
		return &domain.InvalidStateError{Reason: "incident is closed"}
	}
	return &domain.InvalidStateError{
		Reason: fmt.Sprintf("incident escalation level is %d, expected %d", current, level-1),
	}
}

// SaveEscalation inserts a new escalation record.
func (r *Repository) SaveEscalation(ctx context.Context, e *domain.IncidentEscalation) error {
	query := `
		INSERT INTO incident_escalations
			(id, incident_id, escalation_level, from_actor, to_actor, reason, escalation_type,
			 created_at, acknowledged_at, resolved_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		e.ID,
		e.IncidentID,
		e.EscalationLevel,
		e.FromActor,
		e.ToActor,
		e.Reason,
		e.Type,
		e.CreatedAt,
		e.AcknowledgedAt,
		e.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert escalation: %w", err)
	}
	return nil
}

// GetEscalation retrieves an escalation by ID.
func (r *Repository) GetEscalation(ctx context.Context, id string) (*domain.IncidentEscalation, error) {
	query := `SELECT ` + escalationColumns + ` FROM incident_escalations WHERE id = $1`

	escalation, err := scanEscalation(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgutil.IsInvalidInput(err) {
			return nil, &domain.NotFoundError{Entity: "escalation", ID: id}
		}
		return nil, fmt.Errorf("get escalation: %w", err)
	}
	return escalation, nil
}

// ListEscalations returns escalations of an incident ordered by creation time.
func (r *Repository) ListEscalations(ctx context.Context, incidentID string) ([]*domain.IncidentEscalation, error) {
	query := `
		SELECT ` + escalationColumns + `
		FROM incident_escalations
		WHERE incident_id = $1
		ORDER BY created_at, escalation_level
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list escalations: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.IncidentEscalation, 0)
	for rows.Next() {
		escalation, err := scanEscalation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan escalation: %w", err)
		}
		result = append(result, escalation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escalations: %w", err)
	}
	return result, nil
}

// UpdateEscalation persists acknowledgement and resolution timestamps.
func (r *Repository) UpdateEscalation(ctx context.Context, e *domain.IncidentEscalation) error {
	query := `
		UPDATE incident_escalations
		SET acknowledged_at = $2, resolved_at = $3
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, e.ID, e.AcknowledgedAt, e.ResolvedAt)
	if err != nil {
		return fmt.Errorf("update escalation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &domain.NotFoundError{Entity: "escalation", ID: e.ID}
	}
	return nil
}

// AppendResponse inserts a response log entry.
func (r *Repository) AppendResponse(ctx context.Context, resp *domain.IncidentResponse) error {
	query := `
		INSERT INTO incident_responses
			(id, incident_id, response_type, content, previous_status, new_status,
			 previous_assignee, new_assignee, alert_recipient, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		resp.ID,
		resp.IncidentID,
		resp.Type,
		resp.Content,
		statusArg(resp.PreviousStatus),
		statusArg(resp.NewStatus),
		resp.PreviousAssignee,
		resp.NewAssignee,
		resp.AlertRecipient,
		resp.CreatedBy,
		resp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

// ListResponses returns the response log of an incident ordered by creation time.
func (r *Repository) ListResponses(ctx context.Context, incidentID string) ([]*domain.IncidentResponse, error) {
	query := `
		SELECT ` + responseColumns + `
		FROM incident_responses
		WHERE incident_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.IncidentResponse, 0)
	for rows.Next() {
		var resp domain.IncidentResponse
		var previousStatus, newStatus *string
		err := rows.Scan(
			&resp.ID,
			&resp.IncidentID,
			&resp.Type,
			&resp.Content,
			&previousStatus,
			&newStatus,
			&resp.PreviousAssignee,
			&resp.NewAssignee,
			&resp.AlertRecipient,
			&resp.CreatedBy,
			&resp.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		resp.PreviousStatus = statusPtr(previousStatus)
		resp.NewStatus = statusPtr(newStatus)
		result = append(result, &resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}
	return result, nil
}

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var incident domain.Incident
	err := row.Scan(
		&incident.ID,
		&incident.OrganizationID,
		&incident.Title,
		&incident.Severity,
		&incident.Status,
		&incident.EscalationLevel,
		&incident.AssignedTo,
		&incident.ReportedAt,
		&incident.FirstResponseAt,
		&incident.ResolvedAt,
		&incident.MaxResponseTimeHours,
		&incident.MaxResolutionTimeHours,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

func scanEscalation(row pgx.Row) (*domain.IncidentEscalation, error) {
	var e domain.IncidentEscalation
	err := row.Scan(
		&e.ID,
		&e.IncidentID,
		&e.EscalationLevel,
		&e.FromActor,
		&e.ToActor,
		&e.Reason,
		&e.Type,
		&e.CreatedAt,
		&e.AcknowledgedAt,
		&e.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func statusArg(s *domain.IncidentStatus) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func statusPtr(s *string) *domain.IncidentStatus {
	if s == nil {
		return nil
	}
	v := domain.IncidentStatus(*s)
	return &v
}
