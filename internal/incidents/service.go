package incidents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/oprisk/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// SystemActor stamps records created by automatic escalation.
const SystemActor = "system"

// Service implements incident escalation and response-log business logic.
// It holds no per-incident state; callers serialize Escalate per incident.
type Service struct {
	repo       Repository
	dispatcher NotificationDispatcher
	clock      clockwork.Clock
	sla        SLAPolicy
}

// NewService creates a new incident service. A nil dispatcher drops notifications.
func NewService(repo Repository, dispatcher NotificationDispatcher, clock clockwork.Clock, sla SLAPolicy) *Service {
	if dispatcher == nil {
		dispatcher = nopDispatcher{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		clock:      clock,
		sla:        sla,
	}
}

// EscalateInput holds data for an escalation transition.
type EscalateInput struct {
	Reason    string
	Type      domain.EscalationType
	FromActor string
	ToActor   string
}

// GetIncident retrieves an incident by ID.
func (s *Service) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	return s.repo.GetIncident(ctx, id)
}

// EvaluateSLA loads an incident and classifies its SLA state at the current time.
func (s *Service) EvaluateSLA(ctx context.Context, id string) (*domain.Incident, domain.SLAStatus, error) {
	incident, err := s.repo.GetIncident(ctx, id)
	if err != nil {
		return nil, domain.SLAStatus{}, err
	}

	status, err := s.sla.Evaluate(*incident, s.clock.Now())
	if err != nil {
		return nil, domain.SLAStatus{}, err
	}
	return incident, status, nil
}

// Escalate raises the incident's escalation level by exactly one.
//
// The escalation record, the level update and an alert entry in the response log are
// written in one transaction. The notification is emitted after commit and never awaited.
// Callers must not run two Escalate calls for the same incident concurrently.
func (s *Service) Escalate(ctx context.Context, incidentID string, input EscalateInput) (*domain.IncidentEscalation, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, &domain.InvalidStateError{Reason: "escalation reason is required"}
	}

	escalationType := input.Type
	if escalationType == "" {
		escalationType = domain.EscalationTypeManual
	}
	if !escalationType.IsValid() {
		return nil, &domain.ValidationError{Field: "escalation_type", Reason: fmt.Sprintf("unknown type %q", input.Type)}
	}

	fromActor := strings.TrimSpace(input.FromActor)
	if fromActor == "" {
		if escalationType == domain.EscalationTypeManual {
			return nil, &domain.ValidationError{Field: "from_actor", Reason: "manual escalation requires an actor"}
		}
		fromActor = SystemActor
	}

	incident, err := s.repo.GetIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if incident.Status.IsClosed() {
		return nil, &domain.InvalidStateError{Reason: "incident is closed"}
	}

	now := s.clock.Now().UTC()
	escalation := &domain.IncidentEscalation{
		ID:              uuid.NewString(),
		IncidentID:      incident.ID,
		EscalationLevel: incident.EscalationLevel + 1,
		FromActor:       fromActor,
		ToActor:         strings.TrimSpace(input.ToActor),
		Reason:          reason,
		Type:            escalationType,
		CreatedAt:       now,
	}

	alert := &domain.IncidentResponse{
		ID:         uuid.NewString(),
		IncidentID: incident.ID,
		Type:       domain.ResponseTypeAlert,
		Content:    fmt.Sprintf("Escalated to level %d: %s", escalation.EscalationLevel, reason),
		CreatedBy:  fromActor,
		CreatedAt:  now,
	}
	if escalation.ToActor != "" {
		alert.AlertRecipient = &escalation.ToActor
	}

	err = s.repo.WithTx(ctx, func(tx Repository) error {
		if err := tx.SaveEscalation(ctx, escalation); err != nil {
			return fmt.Errorf("save escalation: %w", err)
		}
		if err := tx.UpdateIncidentEscalationLevel(ctx, incident.ID, escalation.EscalationLevel); err != nil {
			return fmt.Errorf("update escalation level: %w", err)
		}
		if err := tx.AppendResponse(ctx, alert); err != nil {
			return fmt.Errorf("append escalation alert: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordEscalation(escalationType)

	s.dispatcher.Notify(domain.NotificationEvent{
		IncidentID:      incident.ID,
		EscalationID:    escalation.ID,
		EscalationLevel: escalation.EscalationLevel,
		Type:            escalation.Type,
		Severity:        string(incident.Severity),
		Title:           incident.Title,
		Reason:          escalation.Reason,
		ToActor:         escalation.ToActor,
		CreatedAt:       escalation.CreatedAt,
	})

	return escalation, nil
}

// ListEscalations returns the escalation history of an incident ordered by creation time.
func (s *Service) ListEscalations(ctx context.Context, incidentID string) ([]*domain.IncidentEscalation, error) {
	if _, err := s.repo.GetIncident(ctx, incidentID); err != nil {
		return nil, err
	}
	return s.repo.ListEscalations(ctx, incidentID)
}

// AcknowledgeEscalation marks an escalation as acknowledged by actor.
func (s *Service) AcknowledgeEscalation(ctx context.Context, escalationID, actor string) (*domain.IncidentEscalation, error) {
	return s.updateEscalation(ctx, escalationID, actor, "acknowledged", func(e *domain.IncidentEscalation, now time.Time) error {
		if e.AcknowledgedAt != nil {
			return &domain.InvalidStateError{Reason: "escalation already acknowledged"}
		}
		e.AcknowledgedAt = &now
		return nil
	})
}

// ResolveEscalation closes an escalation. An unacknowledged escalation is
// acknowledged at the same instant.
func (s *Service) ResolveEscalation(ctx context.Context, escalationID, actor string) (*domain.IncidentEscalation, error) {
	return s.updateEscalation(ctx, escalationID, actor, "resolved", func(e *domain.IncidentEscalation, now time.Time) error {
		if e.ResolvedAt != nil {
			return &domain.InvalidStateError{Reason: "escalation already resolved"}
		}
		if e.AcknowledgedAt == nil {
			e.AcknowledgedAt = &now
		}
		e.ResolvedAt = &now
		return nil
	})
}

// updateEscalation applies mutate to an escalation of a non-closed incident and
// records who did it as a note in the incident response log.
func (s *Service) updateEscalation(ctx context.Context, escalationID, actor, action string, mutate func(*domain.IncidentEscalation, time.Time) error) (*domain.IncidentEscalation, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, &domain.ValidationError{Field: "actor", Reason: "is required"}
	}

	var escalation *domain.IncidentEscalation
	err := s.repo.WithTx(ctx, func(tx Repository) error {
		var err error
		escalation, err = tx.GetEscalation(ctx, escalationID)
		if err != nil {
			return err
		}

		incident, err := tx.LockIncident(ctx, escalation.IncidentID)
		if err != nil {
			return err
		}
		if incident.Status.IsClosed() {
			return &domain.InvalidStateError{Reason: "incident is closed"}
		}

		now := s.clock.Now().UTC()
		if err := mutate(escalation, now); err != nil {
			return err
		}
		if err := tx.UpdateEscalation(ctx, escalation); err != nil {
			return fmt.Errorf("update escalation: %w", err)
		}

		note := &domain.IncidentResponse{
			ID:         uuid.NewString(),
			IncidentID: incident.ID,
			Type:       domain.ResponseTypeNote,
			Content:    fmt.Sprintf("Escalation to level %d %s by %s", escalation.EscalationLevel, action, actor),
			CreatedBy:  actor,
			CreatedAt:  now,
		}
		if err := tx.AppendResponse(ctx, note); err != nil {
			return fmt.Errorf("append response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return escalation, nil
}
