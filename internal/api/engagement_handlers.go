package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/foryou/internal/middleware"
	"github.com/onnwee/foryou/internal/social"
	"github.com/onnwee/foryou/internal/store"
)

// EngageRequest represents the request body for recording an engagement.
type EngageRequest struct {
	UserID         string `json:"user_id"`
	PostID         string `json:"post_id"`
	EngagementType string `json:"engagement_type"`
}

// EngageResponse represents the response after recording an engagement.
type EngageResponse struct {
	Status         string `json:"status"`
	EngagementType string `json:"engagement_type"`
}

// EngagementHandlers holds dependencies for engagement HTTP handlers.
type EngagementHandlers struct {
	store store.Store
	now   func() time.Time
}

// NewEngagementHandlers creates a new EngagementHandlers instance.
func NewEngagementHandlers(st store.Store) *EngagementHandlers {
	return &EngagementHandlers{
		store: st,
		now:   time.Now,
	}
}

// parseEngagementType validates an engagement type string.
func parseEngagementType(s string) (social.EngagementType, bool) {
	for _, t := range social.EngagementTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Engage handles POST /api/engage - records a user action on a post.
// Engagements are append-only; counts derived from them reshape the feed on
// the next request.
func (h *EngagementHandlers) Engage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req EngageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if req.UserID == "" || req.PostID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "user_id and post_id are required")
		return
	}

	engagementType, ok := parseEngagementType(req.EngagementType)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, fmt.Sprintf("Invalid engagement_type: %s", req.EngagementType))
		return
	}

	engagement := social.Engagement{
		UserID:    req.UserID,
		PostID:    req.PostID,
		Type:      engagementType,
		CreatedAt: h.now().UTC(),
	}

	if err := h.store.AddEngagement(r.Context(), engagement); err != nil {
		slog.ErrorContext(r.Context(), "failed to record engagement", "error", err, "user_id", req.UserID, "post_id", req.PostID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to record engagement")
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, EngageResponse{
		Status:         "ok",
		EngagementType: req.EngagementType,
	})
}
