package incidents

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bissquit/oprisk/internal/domain"
	"github.com/bissquit/oprisk/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, repo *mockRepository) http.Handler {
	t.Helper()

	service, _, _ := newTestService(repo)
	handler := NewHandler(service, NewSerializedEscalator(service))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := httputil.WithActor(req.Context(), domain.Actor{ID: "alice", Role: domain.RoleOperator})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	handler.RegisterRoutes(r)
	handler.RegisterOperatorRoutes(r)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	return rec, envelope
}

func TestHandler_GetSLA(t *testing.T) {
	incident := openIncident("inc-1", 1)
	incident.MaxResponseTimeHours = 1
	router := newTestRouter(t, newMockRepository(incident))

	rec, envelope := doRequest(t, router, http.MethodGet, "/incidents/inc-1/sla", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got SLAResponse
	require.NoError(t, json.Unmarshal(envelope["data"], &got))
	assert.Equal(t, "inc-1", got.IncidentID)
	assert.Equal(t, 1, got.EscalationLevel)
	assert.Equal(t, domain.SLAStateBreached, got.SLA.Response)
	assert.Equal(t, domain.SLAStatePending, got.SLA.Resolution)

	rec, _ = doRequest(t, router, http.MethodGet, "/incidents/missing/sla", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_Escalate(t *testing.T) {
	repo := newMockRepository(openIncident("inc-1", 1))
	router := newTestRouter(t, repo)

	rec, envelope := doRequest(t, router, http.MethodPost, "/incidents/inc-1/escalations",
		`{"reason":"SLA breach","to_actor":"cro@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var escalation domain.IncidentEscalation
	require.NoError(t, json.Unmarshal(envelope["data"], &escalation))
	assert.Equal(t, 2, escalation.EscalationLevel)
	assert.Equal(t, "alice", escalation.FromActor)
	assert.Equal(t, "cro@example.com", escalation.ToActor)
	assert.Equal(t, domain.EscalationTypeManual, escalation.Type)

	rec, envelope = doRequest(t, router, http.MethodGet, "/incidents/inc-1/escalations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.IncidentEscalation
	require.NoError(t, json.Unmarshal(envelope["data"], &list))
	assert.Len(t, list, 1)
}

func TestHandler_EscalateRejectsSLABreachType(t *testing.T) {
	repo := newMockRepository(openIncident("inc-1", 0))
	router := newTestRouter(t, repo)

	rec, envelope := doRequest(t, router, http.MethodPost, "/incidents/inc-1/escalations", `{"reason":"r","type":"sla_breach"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, envelope, "error")
	assert.Empty(t, repo.escalationLog())
	assert.Zero(t, repo.incident("inc-1").EscalationLevel)

	rec, _ = doRequest(t, router, http.MethodPost, "/incidents/inc-1/escalations", `{"reason":"r","type":"automatic"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandler_EscalateErrors(t *testing.T) {
	closed := openIncident("inc-closed", 0)
	closed.Status = domain.IncidentStatusClosed
	router := newTestRouter(t, newMockRepository(openIncident("inc-1", 0), closed))

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"malformed body", "/incidents/inc-1/escalations", `{`, http.StatusBadRequest},
		{"unknown type", "/incidents/inc-1/escalations", `{"reason":"r","type":"panic"}`, http.StatusBadRequest},
		{"sweeper-only type", "/incidents/inc-1/escalations", `{"reason":"r","type":"sla_breach"}`, http.StatusBadRequest},
		{"empty reason", "/incidents/inc-1/escalations", `{"reason":""}`, http.StatusConflict},
		{"closed incident", "/incidents/inc-closed/escalations", `{"reason":"r"}`, http.StatusConflict},
		{"unknown incident", "/incidents/missing/escalations", `{"reason":"r"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, envelope := doRequest(t, router, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, envelope, "error")
		})
	}
}

func TestHandler_AcknowledgeAndResolve(t *testing.T) {
	repo := newMockRepository(openIncident("inc-1", 0))
	router := newTestRouter(t, repo)

	_, envelope := doRequest(t, router, http.MethodPost, "/incidents/inc-1/escalations", `{"reason":"r"}`)
	var escalation domain.IncidentEscalation
	require.NoError(t, json.Unmarshal(envelope["data"], &escalation))

	rec, envelope := doRequest(t, router, http.MethodPost, "/escalations/"+escalation.ID+"/acknowledge", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(envelope["data"], &escalation))
	assert.NotNil(t, escalation.AcknowledgedAt)

	rec, _ = doRequest(t, router, http.MethodPost, "/escalations/"+escalation.ID+"/acknowledge", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, envelope = doRequest(t, router, http.MethodPost, "/escalations/"+escalation.ID+"/resolve", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(envelope["data"], &escalation))
	assert.NotNil(t, escalation.ResolvedAt)

	rec, _ = doRequest(t, router, http.MethodPost, "/escalations/unknown/resolve", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_CreateResponse(t *testing.T) {
	repo := newMockRepository(openIncident("inc-1", 0))
	router := newTestRouter(t, repo)

	tests := []struct {
		name     string
		body     string
		status   int
		respType domain.ResponseType
	}{
		{"status change", `{"response_type":"status_change","status":"in_progress"}`, http.StatusCreated, domain.ResponseTypeStatusChange},
		{"assignment", `{"response_type":"assignment","assignee":"bob"}`, http.StatusCreated, domain.ResponseTypeAssignment},
		{"alert", `{"response_type":"alert","recipient":"risk@example.com"}`, http.StatusCreated, domain.ResponseTypeAlert},
		{"note", `{"response_type":"note","content":"vendor called back"}`, http.StatusCreated, domain.ResponseTypeNote},
		{"missing type", `{"content":"x"}`, http.StatusBadRequest, ""},
		{"unknown status", `{"response_type":"status_change","status":"paused"}`, http.StatusBadRequest, ""},
		{"status change without status", `{"response_type":"status_change"}`, http.StatusBadRequest, ""},
		{"empty note", `{"response_type":"note"}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, envelope := doRequest(t, router, http.MethodPost, "/incidents/inc-1/responses", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.respType == "" {
				return
			}

			var response domain.IncidentResponse
			require.NoError(t, json.Unmarshal(envelope["data"], &response))
			assert.Equal(t, tt.respType, response.Type)
			assert.Equal(t, "alice", response.CreatedBy)
		})
	}

	rec, envelope := doRequest(t, router, http.MethodGet, "/incidents/inc-1/responses", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []domain.IncidentResponse
	require.NoError(t, json.Unmarshal(envelope["data"], &history))
	assert.Len(t, history, 4)
}

func TestHandler_EmptyListsAreArrays(t *testing.T) {
	router := newTestRouter(t, newMockRepository(openIncident("inc-1", 0)))

	for _, path := range []string{"/incidents/inc-1/escalations", "/incidents/inc-1/responses"} {
		rec, envelope := doRequest(t, router, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, string(envelope["data"]))
	}
}
