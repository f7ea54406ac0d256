package incidents

import (
	"net/http"

	"github.com/bissquit/oprisk/internal/domain"
	"github.com/bissquit/oprisk/internal/pkg/ctxlog"
	"github.com/bissquit/oprisk/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the incidents module.
type Handler struct {
	service   *Service
	escalator Escalator
	validator *validator.Validate
}

// NewHandler creates a new incidents handler. Escalations go through escalator so the
// host can serialize them per incident.
func NewHandler(service *Service, escalator Escalator) *Handler {
	if escalator == nil {
		escalator = service
	}
	return &Handler{
		service:   service,
		escalator: escalator,
		validator: validator.New(),
	}
}

// RegisterRoutes registers read-only routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/incidents/{id}/sla", h.GetSLA)
	r.Get("/incidents/{id}/escalations", h.ListEscalations)
	r.Get("/incidents/{id}/responses", h.ListResponses)
}

// RegisterOperatorRoutes registers routes that require operator role.
func (h *Handler) RegisterOperatorRoutes(r chi.Router) {
	r.Post("/incidents/{id}/escalations", h.Escalate)
	r.Post("/incidents/{id}/responses", h.CreateResponse)
	r.Post("/escalations/{id}/acknowledge", h.AcknowledgeEscalation)
	r.Post("/escalations/{id}/resolve", h.ResolveEscalation)
}

// EscalateRequest represents the request body for escalating an incident.
type EscalateRequest struct {
	Reason  string `json:"reason" validate:"max=1000"`
	Type    string `json:"type" validate:"omitempty,oneof=manual automatic"`
	ToActor string `json:"to_actor" validate:"max=255"`
}

// CreateResponseRequest represents the request body for a response log entry.
type CreateResponseRequest struct {
	ResponseType string `json:"response_type" validate:"required,oneof=status_change assignment alert note"`
	Content      string `json:"content" validate:"max=4000"`
	Status       string `json:"status" validate:"omitempty,oneof=open in_progress resolved closed"`
	Assignee     string `json:"assignee" validate:"max=255"`
	Recipient    string `json:"recipient" validate:"max=255"`
}

// SLAResponse is the SLA evaluation of a single incident.
type SLAResponse struct {
	IncidentID      string                `json:"incident_id"`
	Status          domain.IncidentStatus `json:"status"`
	EscalationLevel int                   `json:"escalation_level"`
	SLA             domain.SLAStatus      `json:"sla"`
}

// GetSLA handles GET /incidents/{id}/sla.
func (h *Handler) GetSLA(w http.ResponseWriter, r *http.Request) {
	ctx := ctxlog.With(r.Context(), "incident_id", chi.URLParam(r, "id"))

	incident, status, err := h.service.EvaluateSLA(ctx, chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleDomainError(ctx, w, err)
		return
	}

	httputil.Success(w, http.StatusOK, SLAResponse{
		IncidentID:      incident.ID,
		Status:          incident.Status,
		EscalationLevel: incident.EscalationLevel,
		SLA:             status,
	})
}

// ListEscalations handles GET /incidents/{id}/escalations.
func (h *Handler) ListEscalations(w http.ResponseWriter, r *http.Request) {
	escalations, err := h.service.ListEscalations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleDomainError(r.Context(), w, err)
		return
	}
	if escalations == nil {
		escalations = []*domain.IncidentEscalation{}
	}
	httputil.Success(w, http.StatusOK, escalations)
}

// Escalate handles POST /incidents/{id}/escalations.
func (h *Handler) Escalate(w http.ResponseWriter, r *http.Request) {
	incidentID := chi.URLParam(r, "id")
	ctx := ctxlog.With(r.Context(), "incident_id", incidentID)

	var req EscalateRequest
	if !httputil.DecodeJSON(w, r, h.validator, &req) {
		return
	}

	actor, _ := httputil.ActorFromContext(ctx)
	escalation, err := h.escalator.Escalate(ctx, incidentID, EscalateInput{
		Reason:    req.Reason,
		Type:      domain.EscalationType(req.Type),
		FromActor: actor.ID,
		ToActor:   req.ToActor,
	})
	if err != nil {
		httputil.HandleDomainError(ctx, w, err)
		return
	}

	ctxlog.FromContext(ctx).Info("incident escalated",
		"escalation_id", escalation.ID,
		"level", escalation.EscalationLevel,
		"type", escalation.Type,
	)
	httputil.Success(w, http.StatusCreated, escalation)
}

// AcknowledgeEscalation handles POST /escalations/{id}/acknowledge.
func (h *Handler) AcknowledgeEscalation(w http.ResponseWriter, r *http.Request) {
	actor, _ := httputil.ActorFromContext(r.Context())
	escalation, err := h.service.AcknowledgeEscalation(r.Context(), chi.URLParam(r, "id"), actor.ID)
	if err != nil {
		httputil.HandleDomainError(r.Context(), w, err)
		return
	}
	httputil.Success(w, http.StatusOK, escalation)
}

// ResolveEscalation handles POST /escalations/{id}/resolve.
func (h *Handler) ResolveEscalation(w http.ResponseWriter, r *http.Request) {
	actor, _ := httputil.ActorFromContext(r.Context())
	escalation, err := h.service.ResolveEscalation(r.Context(), chi.URLParam(r, "id"), actor.ID)
	if err != nil {
		httputil.HandleDomainError(r.Context(), w, err)
		return
	}
	httputil.Success(w, http.StatusOK, escalation)
}

// ListResponses handles GET /incidents/{id}/responses.
func (h *Handler) ListResponses(w http.ResponseWriter, r *http.Request) {
	responses, err := h.service.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleDomainError(r.Context(), w, err)
		return
	}
	if responses == nil {
		responses = []*domain.IncidentResponse{}
	}
	httputil.Success(w, http.StatusOK, responses)
}

// CreateResponse handles POST /incidents/{id}/responses.
func (h *Handler) CreateResponse(w http.ResponseWriter, r *http.Request) {
	incidentID := chi.URLParam(r, "id")
	ctx := ctxlog.With(r.Context(), "incident_id", incidentID)

	var req CreateResponseRequest
	if !httputil.DecodeJSON(w, r, h.validator, &req) {
		return
	}

	actor, _ := httputil.ActorFromContext(ctx)

	var (
		response *domain.IncidentResponse
		err      error
	)
	switch domain.ResponseType(req.ResponseType) {
	case domain.ResponseTypeStatusChange:
		response, err = h.service.ChangeStatus(ctx, incidentID, domain.IncidentStatus(req.Status), actor.ID, req.Content)
	case domain.ResponseTypeAssignment:
		response, err = h.service.Assign(ctx, incidentID, req.Assignee, actor.ID)
	case domain.ResponseTypeAlert:
		response, err = h.service.RecordAlert(ctx, incidentID, req.Recipient, req.Content, actor.ID)
	case domain.ResponseTypeNote:
		response, err = h.service.AddNote(ctx, incidentID, req.Content, actor.ID)
	}
	if err != nil {
		httputil.HandleDomainError(ctx, w, err)
		return
	}

	httputil.Success(w, http.StatusCreated, response)
}
