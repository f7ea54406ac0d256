package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/oprisk/internal/domain"
	"github.com/bissquit/oprisk/internal/pkg/ctxlog"
)

// ErrorMapping defines how a domain error maps to an HTTP response.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string // if empty, uses err.Error()
}

// HandleError maps a domain error to an HTTP response using provided mappings.
// If no mapping matches, logs the error and returns 500 Internal Server Error.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	for _, m := range mappings {
		if errors.Is(err, m.Error) {
			msg := m.Message
			if msg == "" {
				msg = err.Error()
			}
			Error(w, m.Status, msg)
			return
		}
	}
	ctxlog.FromContext(ctx).Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}

// DomainErrors maps the domain error kinds to HTTP responses.
var DomainErrors = []ErrorMapping{
	{Error: domain.ErrNotFound, Status: http.StatusNotFound},
	{Error: domain.ErrValidation, Status: http.StatusBadRequest},
	{Error: domain.ErrInvalidState, Status: http.StatusConflict},
}

// HandleDomainError maps domain errors, then extra mappings, to an HTTP response.
func HandleDomainError(ctx context.Context, w http.ResponseWriter, err error, extra ...ErrorMapping) {
	HandleError(ctx, w, err, append(extra, DomainErrors...))
}
