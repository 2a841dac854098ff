package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/foryou/internal/middleware"
	"github.com/onnwee/foryou/internal/social"
	"github.com/onnwee/foryou/internal/store"
)

// DefaultUserListLimit is the user list page size when the request does not
// specify one.
const DefaultUserListLimit = 100

// PreferencesUpdateRequest represents the request body for updating
// algorithm preferences.
type PreferencesUpdateRequest struct {
	Preferences *social.AlgorithmPreferences `json:"preferences"`
}

// UserListResponse represents the response for listing users.
type UserListResponse struct {
	Users []*social.User `json:"users"`
}

// UserHandlers holds dependencies for user HTTP handlers.
type UserHandlers struct {
	store store.Store
	prefs store.PreferenceStore
}

// NewUserHandlers creates a new UserHandlers instance.
func NewUserHandlers(st store.Store, prefs store.PreferenceStore) *UserHandlers {
	return &UserHandlers{
		store: st,
		prefs: prefs,
	}
}

// ListUsers handles GET /api/users - lists user profiles.
func (h *UserHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	limit := parseQueryInt(r, "limit", DefaultUserListLimit)
	if limit < 0 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "limit must be non-negative")
		return
	}

	ids, err := h.store.ListUserIDs(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list users", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list users")
		return
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	users, err := h.store.GetUsers(r.Context(), ids)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load users", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load users")
		return
	}

	// Preserve id order; drop ids with no surviving record
	ordered := make([]*social.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := users[id]; ok {
			ordered = append(ordered, u)
		}
	}

	writeJSON(r.Context(), w, http.StatusOK, UserListResponse{Users: ordered})
}

// UserRoutes dispatches /api/users/{user_id} and
// /api/users/{user_id}/preferences to the appropriate handler.
func (h *UserHandlers) UserRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/users/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		h.getUser(w, r, parts[0])
	case len(parts) == 2 && parts[0] != "" && parts[1] == "preferences":
		switch r.Method {
		case http.MethodGet:
			h.getPreferences(w, r, parts[0])
		case http.MethodPut:
			h.putPreferences(w, r, parts[0])
		default:
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		}
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
	}
}

// getUser handles GET /api/users/{user_id}.
func (h *UserHandlers) getUser(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	user, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "User not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to load user", "error", err, "user_id", userID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load user")
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, user)
}

// getPreferences handles GET /api/users/{user_id}/preferences.
// Returns defaults when the user has never stored preferences.
func (h *UserHandlers) getPreferences(w http.ResponseWriter, r *http.Request, userID string) {
	prefs, err := h.prefs.Get(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load preferences", "error", err, "user_id", userID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load preferences")
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, prefs)
}

// putPreferences handles PUT /api/users/{user_id}/preferences.
func (h *UserHandlers) putPreferences(w http.ResponseWriter, r *http.Request, userID string) {
	var req PreferencesUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if req.Preferences == nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "preferences is required")
		return
	}
	if errMsg := validatePreferences(req.Preferences); errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	if err := h.prefs.Put(r.Context(), userID, *req.Preferences); err != nil {
		slog.ErrorContext(r.Context(), "failed to store preferences", "error", err, "user_id", userID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to store preferences")
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, req.Preferences)
}

// validatePreferences checks that all slider values are within [0, 1].
// Returns an error message if validation fails, empty string if valid.
func validatePreferences(p *social.AlgorithmPreferences) string {
	sliders := map[string]float64{
		"recency_vs_popularity":    p.RecencyVsPopularity,
		"friends_vs_global":        p.FriendsVsGlobal,
		"niche_vs_viral":           p.NicheVsViral,
		"tech_weight":              p.TechWeight,
		"politics_weight":          p.PoliticsWeight,
		"culture_weight":           p.CultureWeight,
		"memes_weight":             p.MemesWeight,
		"finance_weight":           p.FinanceWeight,
		"diversity_strength":       p.DiversityStrength,
		"exploration":              p.Exploration,
		"negative_signal_strength": p.NegativeSignalStrength,
	}
	// Deterministic message: report the lexicographically first offender
	var bad string
	for name, v := range sliders {
		if v < 0 || v > 1 {
			if bad == "" || name < bad {
				bad = name
			}
		}
	}
	if bad != "" {
		return fmt.Sprintf("%s must be between 0.0 and 1.0", bad)
	}
	return ""
}
