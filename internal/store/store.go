// Package store provides the read/write store the feed pipeline consumes:
// indexed access to users, posts, and append-only engagements. Two
// implementations exist: an in-memory store guarded by an RWMutex and a
// Postgres-backed store.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/onnwee/foryou/internal/social"
)

// Common errors for store operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrPostNotFound = errors.New("post not found")
)

// TopicCount is one entry of a topic frequency ranking.
type TopicCount struct {
	Topic social.Topic `json:"topic"`
	Count int          `json:"count"`
}

// Store is the data access contract consumed by the feed pipeline and the
// API layer. Batch getters silently drop missing ids. Engagements are
// append-only; users and posts are replace-in-place keyed by id.
//
// A maxAge of zero means "use the store's retention window".
type Store interface {
	// AddUser inserts or replaces a user.
	AddUser(ctx context.Context, user *social.User) error

	// UpdateUser replaces a user (e.g. after follow/unfollow).
	UpdateUser(ctx context.Context, user *social.User) error

	// GetUser retrieves a user by id. Returns ErrUserNotFound if absent.
	GetUser(ctx context.Context, id string) (*social.User, error)

	// GetUsers retrieves the users that exist among ids, keyed by id.
	GetUsers(ctx context.Context, ids []string) (map[string]*social.User, error)

	// ListUserIDs returns all known user ids.
	ListUserIDs(ctx context.Context) ([]string, error)

	// AddPost inserts or replaces a post.
	AddPost(ctx context.Context, post *social.Post) error

	// GetPost retrieves a post by id. Returns ErrPostNotFound if absent.
	GetPost(ctx context.Context, id string) (*social.Post, error)

	// GetPosts retrieves the posts that exist among ids, keyed by id.
	GetPosts(ctx context.Context, ids []string) (map[string]*social.Post, error)

	// GetPostsByAuthor returns an author's posts, newest first.
	GetPostsByAuthor(ctx context.Context, authorID string, limit int) ([]*social.Post, error)

	// GetRecentPostIDsForFollowing returns up to limitPerAuthor recent post
	// ids per followed author within maxAge, newest first per author,
	// flattened in following order.
	GetRecentPostIDsForFollowing(ctx context.Context, followingIDs []string, limitPerAuthor int, maxAge time.Duration) ([]string, error)

	// GetGlobalRecent returns ids of original-type posts within maxAge,
	// strictly newest first (id ascending on equal timestamps).
	GetGlobalRecent(ctx context.Context, limit int, maxAge time.Duration) ([]string, error)

	// AddEngagement appends an engagement record.
	AddEngagement(ctx context.Context, e social.Engagement) error

	// GetEngagementCounts returns per-action counts for a post. Every
	// engagement type is present in the result, defaulting to zero.
	GetEngagementCounts(ctx context.Context, postID string) (map[social.EngagementType]int, error)

	// GetUserEngagementPostIDs returns post ids the user engaged with,
	// most recent first, deduplicated.
	GetUserEngagementPostIDs(ctx context.Context, userID string, limit int) ([]string, error)

	// GetTopicCounts returns (topic, count) pairs for posts within maxAge,
	// descending by count.
	GetTopicCounts(ctx context.Context, maxAge time.Duration, limit int) ([]TopicCount, error)
}

// PreferenceStore holds per-user algorithm preference overrides. It is an
// explicit dependency of the API layer, not ambient state.
type PreferenceStore interface {
	// Get returns the stored preferences for a user, or the defaults when
	// none are stored.
	Get(ctx context.Context, userID string) (social.AlgorithmPreferences, error)

	// Put stores preferences for a user, replacing any previous value.
	Put(ctx context.Context, userID string, prefs social.AlgorithmPreferences) error
}
