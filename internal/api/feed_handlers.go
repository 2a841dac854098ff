// Package api provides HTTP handlers for the For You feed API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/onnwee/foryou/internal/feed"
	"github.com/onnwee/foryou/internal/middleware"
	"github.com/onnwee/foryou/internal/seen"
	"github.com/onnwee/foryou/internal/social"
	"github.com/onnwee/foryou/internal/store"
)

// MaxFeedLimit caps the number of items any feed request can ask for.
const MaxFeedLimit = 200

// DefaultExplainLimit is the item count for the explain endpoint when the
// request does not specify one.
const DefaultExplainLimit = 20

// FeedRequest represents the request body for POST /api/feed.
type FeedRequest struct {
	UserID      string                       `json:"user_id"`
	Preferences *social.AlgorithmPreferences `json:"preferences,omitempty"`
	Limit       int                          `json:"limit,omitempty"`
	Cursor      *string                      `json:"cursor,omitempty"`
	// IncludeExplanations defaults to true when omitted.
	IncludeExplanations *bool    `json:"include_explanations,omitempty"`
	FollowingOnly       bool     `json:"following_only,omitempty"`
	SeenPostIDs         []string `json:"seen_post_ids,omitempty"`
}

// FeedHandlers holds dependencies for feed HTTP handlers.
type FeedHandlers struct {
	mixer   *feed.Mixer
	store   store.Store
	prefs   store.PreferenceStore
	tracker seen.Tracker
}

// NewFeedHandlers creates a new FeedHandlers instance.
func NewFeedHandlers(mixer *feed.Mixer, st store.Store, prefs store.PreferenceStore, tracker seen.Tracker) *FeedHandlers {
	return &FeedHandlers{
		mixer:   mixer,
		store:   st,
		prefs:   prefs,
		tracker: tracker,
	}
}

// extractUserID extracts the user ID from the URL path after the given prefix.
// Returns an error if the ID is missing or followed by extra segments.
func extractUserID(r *http.Request, prefix string) (string, error) {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	if rest == r.URL.Path || rest == "" || strings.Contains(rest, "/") {
		return "", fmt.Errorf("user ID is required")
	}
	return rest, nil
}

// parseQueryInt parses an integer query parameter, falling back to def when
// the parameter is absent or invalid.
func parseQueryInt(r *http.Request, key string, def int) int {
	if val := r.URL.Query().Get(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

// parseQueryBool parses a boolean query parameter, falling back to def when
// the parameter is absent or invalid.
func parseQueryBool(r *http.Request, key string, def bool) bool {
	if val := r.URL.Query().Get(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return def
}

// CreateFeed handles POST /api/feed - returns the ranked feed for a user,
// honoring per-request preference overrides.
func (h *FeedHandlers) CreateFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req FeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if req.UserID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "user_id is required")
		return
	}
	if req.Limit < 0 || req.Limit > MaxFeedLimit {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, fmt.Sprintf("limit must be between 0 and %d", MaxFeedLimit))
		return
	}

	includeExplanations := true
	if req.IncludeExplanations != nil {
		includeExplanations = *req.IncludeExplanations
	}

	h.serveFeed(w, r, feedParams{
		userID:              req.UserID,
		preferences:         req.Preferences,
		limit:               req.Limit,
		includeExplanations: includeExplanations,
		followingOnly:       req.FollowingOnly,
		extraSeen:           req.SeenPostIDs,
	})
}

// GetFeed handles GET /api/feed/{user_id} - returns the ranked feed using
// the user's stored preferences.
func (h *FeedHandlers) GetFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	userID, err := extractUserID(r, "/api/feed/")
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "User ID is required")
		return
	}

	limit := parseQueryInt(r, "limit", 0)
	if limit < 0 || limit > MaxFeedLimit {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, fmt.Sprintf("limit must be between 0 and %d", MaxFeedLimit))
		return
	}

	h.serveFeed(w, r, feedParams{
		userID:              userID,
		limit:               limit,
		includeExplanations: parseQueryBool(r, "include_explanations", true),
		followingOnly:       parseQueryBool(r, "following_only", false),
	})
}

// ExplainFeed handles GET /api/explain/feed/{user_id} - returns the feed with
// full ranking explanations attached to every item.
func (h *FeedHandlers) ExplainFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	userID, err := extractUserID(r, "/api/explain/feed/")
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "User ID is required")
		return
	}

	limit := parseQueryInt(r, "limit", DefaultExplainLimit)
	if limit < 0 || limit > MaxFeedLimit {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, fmt.Sprintf("limit must be between 0 and %d", MaxFeedLimit))
		return
	}

	h.serveFeed(w, r, feedParams{
		userID:              userID,
		limit:               limit,
		includeExplanations: true,
	})
}

// feedParams are the resolved inputs for one feed request.
type feedParams struct {
	userID              string
	preferences         *social.AlgorithmPreferences
	limit               int
	includeExplanations bool
	followingOnly       bool
	extraSeen           []string
}

// serveFeed validates the viewer, assembles seen-post state, runs the ranking
// pipeline, and records the returned posts as seen.
func (h *FeedHandlers) serveFeed(w http.ResponseWriter, r *http.Request, p feedParams) {
	ctx := middleware.SetViewerID(r.Context(), p.userID)
	middleware.UpdateResponseContext(w, ctx)

	// Unknown viewers get a 404 before the pipeline runs
	if _, err := h.store.GetUser(ctx, p.userID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "User not found")
			return
		}
		slog.ErrorContext(ctx, "failed to load user", "error", err, "user_id", p.userID)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load user")
		return
	}

	prefs := p.preferences
	if prefs == nil {
		stored, err := h.prefs.Get(ctx, p.userID)
		if err != nil {
			slog.ErrorContext(ctx, "failed to load preferences", "error", err, "user_id", p.userID)
			ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load preferences")
			return
		}
		prefs = &stored
	}

	// Merge the tracker's seen set with ids the caller supplied explicitly
	seenIDs := h.tracker.Seen(ctx, p.userID)
	for _, id := range p.extraSeen {
		seenIDs[id] = true
	}

	resp, err := h.mixer.GetFeed(ctx, feed.Request{
		UserID:              p.userID,
		Preferences:         prefs,
		Limit:               p.limit,
		SeenPostIDs:         seenIDs,
		IncludeExplanations: p.includeExplanations,
		FollowingOnly:       p.followingOnly,
	})
	if err != nil {
		slog.ErrorContext(ctx, "feed pipeline failed", "error", err, "user_id", p.userID)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to build feed")
		return
	}

	// Returned posts count as seen for subsequent requests
	if len(resp.Items) > 0 {
		returned := make([]string, 0, len(resp.Items))
		for _, item := range resp.Items {
			returned = append(returned, item.Post.ID)
		}
		h.tracker.Mark(ctx, p.userID, returned)
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}
