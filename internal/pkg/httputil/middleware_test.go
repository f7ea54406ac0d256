package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bissquit/oprisk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator map[string]domain.Actor

func (s stubValidator) ValidateToken(_ context.Context, token string) (domain.Actor, error) {
	actor, ok := s[token]
	if !ok {
		return domain.Actor{}, errors.New("unknown token")
	}
	return actor, nil
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Message
}

func TestAuthMiddleware(t *testing.T) {
	validator := stubValidator{
		"op-token": {ID: "alice", Role: domain.RoleOperator},
	}

	var seen domain.Actor
	handler := AuthMiddleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		require.True(t, ok)
		seen = actor
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name        string
		header      string
		wantStatus  int
		wantMessage string
	}{
		{"missing header", "", http.StatusUnauthorized, "missing authorization header"},
		{"wrong scheme", "Basic op-token", http.StatusUnauthorized, "invalid authorization header format"},
		{"no token", "Bearer", http.StatusUnauthorized, "invalid authorization header format"},
		{"unknown token", "Bearer forged", http.StatusUnauthorized, "invalid or expired token"},
		{"valid", "Bearer op-token", http.StatusNoContent, ""},
		{"lowercase scheme", "bearer op-token", http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = domain.Actor{}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, errorMessage(t, rec))
				assert.Empty(t, seen.ID)
			} else {
				assert.Equal(t, "alice", seen.ID)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireRole(domain.RoleOperator)(ok)

	tests := []struct {
		name       string
		actor      *domain.Actor
		wantStatus int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"viewer", &domain.Actor{ID: "v", Role: domain.RoleViewer}, http.StatusForbidden},
		{"operator", &domain.Actor{ID: "o", Role: domain.RoleOperator}, http.StatusOK},
		{"admin", &domain.Actor{ID: "a", Role: domain.RoleAdmin}, http.StatusOK},
		{"unknown role", &domain.Actor{ID: "x", Role: "root"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.actor != nil {
				req = req.WithContext(WithActor(req.Context(), *tt.actor))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware([]string{"https://ops.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "https://ops.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestHandleDomainError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "not found",
			err:         &domain.NotFoundError{Entity: "incident", ID: "42"},
			wantStatus:  http.StatusNotFound,
			wantMessage: `incident "42" not found`,
		},
		{
			name:        "wrapped invalid state",
			err:         fmt.Errorf("escalate: %w", &domain.InvalidStateError{Reason: "incident is closed"}),
			wantStatus:  http.StatusConflict,
			wantMessage: "escalate: invalid state: incident is closed",
		},
		{
			name:        "validation",
			err:         &domain.ValidationError{Field: "max_response_time_hours", Reason: "must not be negative"},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "validation error: max_response_time_hours: must not be negative",
		},
		{
			name:        "internal",
			err:         errors.New("connection reset by peer"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleDomainError(context.Background(), rec, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMessage, errorMessage(t, rec))
		})
	}
}

func TestHandleDomainError_ExtraMappingsFirst(t *testing.T) {
	errLocked := errors.New("locked")
	rec := httptest.NewRecorder()

	HandleDomainError(context.Background(), rec, errLocked, ErrorMapping{
		Error:   errLocked,
		Status:  http.StatusLocked,
		Message: "resource is locked",
	})

	assert.Equal(t, http.StatusLocked, rec.Code)
	assert.Equal(t, "resource is locked", errorMessage(t, rec))
}
