// Package incidents implements SLA evaluation, escalation and the response log for incidents.
package incidents

import (
	"context"

	"github.com/bissquit/oprisk/internal/domain"
)

// Repository defines the interface for incident storage.
// Lookups of unknown ids return an error matching domain.ErrNotFound.
type Repository interface {
	GetIncident(ctx context.Context, id string) (*domain.Incident, error)

	// LockIncident reads an incident and holds its row until the transaction opened
	// by WithTx ends. Outside WithTx it behaves like GetIncident.
	LockIncident(ctx context.Context, id string) (*domain.Incident, error)

	ListActiveIncidents(ctx context.Context) ([]*domain.Incident, error)

	// UpdateIncident refuses to touch an incident that is already closed and returns
	// an error matching domain.ErrInvalidState instead.
	UpdateIncident(ctx context.Context, incident *domain.Incident) error

	// UpdateIncidentEscalationLevel moves a non-closed incident from level-1 to level.
	// Any other starting point yields an error matching domain.ErrInvalidState.
	UpdateIncidentEscalationLevel(ctx context.Context, id string, level int) error

	SaveEscalation(ctx context.Context, escalation *domain.IncidentEscalation) error
	GetEscalation(ctx context.Context, id string) (*domain.IncidentEscalation, error)
	ListEscalations(ctx context.Context, incidentID string) ([]*domain.IncidentEscalation, error)
	UpdateEscalation(ctx context.Context, escalation *domain.IncidentEscalation) error

	// AppendResponse adds an entry to the incident response log. Entries are never
	// updated or deleted.
	AppendResponse(ctx context.Context, response *domain.IncidentResponse) error
	ListResponses(ctx context.Context, incidentID string) ([]*domain.IncidentResponse, error)

	// WithTx runs fn against a repository bound to a single transaction. The transaction
	// commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}

// NotificationDispatcher receives escalation announcements. Notify must not block
// on delivery.
type NotificationDispatcher interface {
	Notify(event domain.NotificationEvent)
}

type nopDispatcher struct{}

func (nopDispatcher) Notify(domain.NotificationEvent) {}
