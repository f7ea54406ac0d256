package incidents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/oprisk/internal/domain"
	"github.com/google/uuid"
)

// ChangeStatus moves an incident to a new status and records the transition.
// Resolving stamps resolved_at; reopening a resolved incident clears it.
func (s *Service) ChangeStatus(ctx context.Context, incidentID string, status domain.IncidentStatus, actor, note string) (*domain.IncidentResponse, error) {
	if !status.IsValid() {
		return nil, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}

	return s.mutate(ctx, incidentID, actor, func(incident *domain.Incident, now time.Time) (*domain.IncidentResponse, error) {
		previous := incident.Status
		if previous == status {
			return nil, &domain.InvalidStateError{Reason: fmt.Sprintf("incident is already %s", status)}
		}

		incident.Status = status
		switch status {
		case domain.IncidentStatusResolved, domain.IncidentStatusClosed:
			if incident.ResolvedAt == nil {
				incident.ResolvedAt = &now
			}
		default:
			incident.ResolvedAt = nil
		}

		content := strings.TrimSpace(note)
		if content == "" {
			content = fmt.Sprintf("Status changed from %s to %s", previous, status)
		}

		return &domain.IncidentResponse{
			Type:           domain.ResponseTypeStatusChange,
			Content:        content,
			PreviousStatus: &previous,
			NewStatus:      &status,
		}, nil
	})
}

// Assign hands the incident to assignee and records the change.
func (s *Service) Assign(ctx context.Context, incidentID, assignee, actor string) (*domain.IncidentResponse, error) {
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return nil, &domain.ValidationError{Field: "assignee", Reason: "is required"}
	}

	return s.mutate(ctx, incidentID, actor, func(incident *domain.Incident, _ time.Time) (*domain.IncidentResponse, error) {
		previous := incident.AssignedTo
		if previous != nil && *previous == assignee {
			return nil, &domain.InvalidStateError{Reason: "incident is already assigned to " + assignee}
		}
		incident.AssignedTo = &assignee

		return &domain.IncidentResponse{
			Type:             domain.ResponseTypeAssignment,
			Content:          "Assigned to " + assignee,
			PreviousAssignee: previous,
			NewAssignee:      &assignee,
		}, nil
	})
}

// AddNote appends a free-text note to the response log.
func (s *Service) AddNote(ctx context.Context, incidentID, content, actor string) (*domain.IncidentResponse, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &domain.ValidationError{Field: "content", Reason: "is required"}
	}
	return s.appendOnly(ctx, incidentID, actor, &domain.IncidentResponse{
		Type:    domain.ResponseTypeNote,
		Content: content,
	})
}

// RecordAlert appends an alert sent to recipient.
func (s *Service) RecordAlert(ctx context.Context, incidentID, recipient, content, actor string) (*domain.IncidentResponse, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return nil, &domain.ValidationError{Field: "recipient", Reason: "is required"}
	}
	content = strings.TrimSpace(content)
	if content == "" {
		content = "Alert sent to " + recipient
	}
	return s.appendOnly(ctx, incidentID, actor, &domain.IncidentResponse{
		Type:           domain.ResponseTypeAlert,
		Content:        content,
		AlertRecipient: &recipient,
	})
}

// History returns the response log of an incident ordered by creation time.
func (s *Service) History(ctx context.Context, incidentID string) ([]*domain.IncidentResponse, error) {
	if _, err := s.repo.GetIncident(ctx, incidentID); err != nil {
		return nil, err
	}
	return s.repo.ListResponses(ctx, incidentID)
}

// mutate applies change to the incident and appends the response it produces, both
// in one transaction. The first status change or assignment counts as first response.
func (s *Service) mutate(ctx context.Context, incidentID, actor string, change func(*domain.Incident, time.Time) (*domain.IncidentResponse, error)) (*domain.IncidentResponse, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, &domain.ValidationError{Field: "actor", Reason: "is required"}
	}

	var response *domain.IncidentResponse
	err := s.repo.WithTx(ctx, func(tx Repository) error {
		incident, err := tx.LockIncident(ctx, incidentID)
		if err != nil {
			return err
		}
		if incident.Status.IsClosed() {
			return &domain.InvalidStateError{Reason: "incident is closed"}
		}

		now := s.clock.Now().UTC()
		response, err = change(incident, now)
		if err != nil {
			return err
		}

		if incident.FirstResponseAt == nil {
			incident.FirstResponseAt = &now
		}
		incident.UpdatedAt = now

		if err := tx.UpdateIncident(ctx, incident); err != nil {
			return fmt.Errorf("update incident: %w", err)
		}

		response.ID = uuid.NewString()
		response.IncidentID = incident.ID
		response.CreatedBy = actor
		response.CreatedAt = now
		if err := tx.AppendResponse(ctx, response); err != nil {
			return fmt.Errorf("append response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

// appendOnly adds response to the log of a non-closed incident. The incident row
// stays locked until the entry is written so a concurrent close cannot slip in between.
func (s *Service) appendOnly(ctx context.Context, incidentID, actor string, response *domain.IncidentResponse) (*domain.IncidentResponse, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, &domain.ValidationError{Field: "actor", Reason: "is required"}
	}

	err := s.repo.WithTx(ctx, func(tx Repository) error {
		incident, err := tx.LockIncident(ctx, incidentID)
		if err != nil {
			return err
		}
		if incident.Status.IsClosed() {
			return &domain.InvalidStateError{Reason: "incident is closed"}
		}

		response.ID = uuid.NewString()
		response.IncidentID = incident.ID
		response.CreatedBy = actor
		response.CreatedAt = s.clock.Now().UTC()

		if err := tx.AppendResponse(ctx, response); err != nil {
			return fmt.Errorf("append response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}
