package vendors

import (
	"errors"
	"net/http"

	"github.com/bissquit/oprisk/internal/domain"
	"github.com/bissquit/oprisk/internal/pkg/ctxlog"
	"github.com/bissquit/oprisk/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for vendor risk scoring.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new vendors handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers vendor routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/vendors/{id}/risk", h.GetRisk)
	r.Post("/vendors/risk/batch", h.ScoreBatch)
}

// BatchRequest represents the request body for batch scoring.
type BatchRequest struct {
	VendorIDs []string `json:"vendor_ids" validate:"required,min=1,max=500,dive,required"`
}

// BatchItem is one entry of a batch scoring response.
type BatchItem struct {
	VendorID string                  `json:"vendor_id"`
	Score    *domain.VendorRiskScore `json:"score,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// GetRisk handles GET /vendors/{id}/risk.
func (h *Handler) GetRisk(w http.ResponseWriter, r *http.Request) {
	score, err := h.service.ScoreVendorByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleDomainError(r.Context(), w, err)
		return
	}
	httputil.Success(w, http.StatusOK, score)
}

// ScoreBatch handles POST /vendors/risk/batch.
func (h *Handler) ScoreBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !httputil.DecodeJSON(w, r, h.validator, &req) {
		return
	}

	results := h.service.ScoreVendorBatch(r.Context(), req.VendorIDs)

	items := make([]BatchItem, 0, len(results))
	failed := 0
	for _, res := range results {
		item := BatchItem{VendorID: res.VendorID, Score: res.Score}
		if res.Err != nil {
			item.Error = batchError(res.Err)
			failed++
		}
		items = append(items, item)
	}

	if failed > 0 {
		ctxlog.FromContext(r.Context()).Warn("batch scoring completed with failures",
			"total", len(items),
			"failed", failed,
		)
	}
	httputil.Success(w, http.StatusOK, items)
}

func batchError(err error) string {
	if errors.Is(err, domain.ErrNotFound) {
		return err.Error()
	}
	return "internal error"
}
