package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/foryou/internal/middleware"
	"github.com/onnwee/foryou/internal/store"
)

// PostHandlers holds dependencies for post HTTP handlers.
type PostHandlers struct {
	store store.Store
}

// NewPostHandlers creates a new PostHandlers instance.
func NewPostHandlers(st store.Store) *PostHandlers {
	return &PostHandlers{
		store: st,
	}
}

// extractPostID extracts the post ID from the URL path.
// Returns the post ID and an error if the ID is missing or invalid.
func extractPostID(r *http.Request) (string, error) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/posts/")
	if rest == r.URL.Path || rest == "" || strings.Contains(rest, "/") {
		return "", fmt.Errorf("post ID is required")
	}
	return rest, nil
}

// GetPost handles GET /api/posts/{post_id} - retrieves a single post.
func (h *PostHandlers) GetPost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	postID, err := extractPostID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Post ID is required")
		return
	}

	post, err := h.store.GetPost(r.Context(), postID)
	if err != nil {
		if errors.Is(err, store.ErrPostNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Post not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to load post", "error", err, "post_id", postID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load post")
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, post)
}
