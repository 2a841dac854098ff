package api

import (
	"log/slog"
	"net/http"

	"github.com/onnwee/foryou/internal/middleware"
	"github.com/onnwee/foryou/internal/store"
	"github.com/onnwee/foryou/internal/trends"
)

// TrendsResponse represents the response for the trends endpoint.
type TrendsResponse struct {
	Trends []store.TopicCount `json:"trends"`
}

// TrendsHandlers holds dependencies for trends HTTP handlers.
type TrendsHandlers struct {
	service *trends.Service
}

// NewTrendsHandlers creates a new TrendsHandlers instance.
func NewTrendsHandlers(service *trends.Service) *TrendsHandlers {
	return &TrendsHandlers{
		service: service,
	}
}

// GetTrends handles GET /api/trends - returns topics ranked by recent post
// volume.
func (h *TrendsHandlers) GetTrends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	limit := parseQueryInt(r, "limit", trends.DefaultLimit)
	if limit < 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "limit must be non-negative")
		return
	}

	topics, err := h.service.Trending(r.Context(), limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to compute trends", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to compute trends")
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, TrendsResponse{Trends: topics})
}
