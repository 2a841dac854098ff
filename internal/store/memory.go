package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/onnwee/foryou/internal/social"
)

// DefaultRetention is the window posts stay visible to the recent-post
// indexes when no maxAge is given.
const DefaultRetention = 7 * 24 * time.Hour

// MemoryStore is an in-memory implementation of Store.
// Thread-safe via RWMutex. Safe for concurrent readers with append-only
// engagement writes; users and posts are replaced in place.
type MemoryStore struct {
	mu             sync.RWMutex
	users          map[string]*social.User
	userOrder      []string
	posts          map[string]*social.Post
	engagements    []social.Engagement
	recentByAuthor map[string][]string // author id -> post ids in insertion order
	retention      time.Duration
	now            func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithRetention overrides the default retention window.
func WithRetention(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.retention = d }
}

// WithClock overrides the store's clock. Used by tests to pin "now".
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		users:          make(map[string]*social.User),
		posts:          make(map[string]*social.Post),
		recentByAuthor: make(map[string][]string),
		retention:      DefaultRetention,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddUser inserts or replaces a user.
func (s *MemoryStore) AddUser(_ context.Context, user *social.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; !exists {
		s.userOrder = append(s.userOrder, user.ID)
	}
	userCopy := *user
	s.users[user.ID] = &userCopy
	return nil
}

// UpdateUser replaces a user. Unknown ids are inserted, matching the
// replace-in-place contract.
func (s *MemoryStore) UpdateUser(ctx context.Context, user *social.User) error {
	return s.AddUser(ctx, user)
}

// GetUser retrieves a user by id.
func (s *MemoryStore) GetUser(_ context.Context, id string) (*social.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	userCopy := *u
	return &userCopy, nil
}

// GetUsers retrieves the users that exist among ids.
func (s *MemoryStore) GetUsers(_ context.Context, ids []string) (map[string]*social.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*social.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			userCopy := *u
			out[id] = &userCopy
		}
	}
	return out, nil
}

// ListUserIDs returns all known user ids in insertion order.
func (s *MemoryStore) ListUserIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.userOrder))
	copy(out, s.userOrder)
	return out, nil
}

// AddPost inserts or replaces a post and indexes it under its author.
func (s *MemoryStore) AddPost(_ context.Context, post *social.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.posts[post.ID]; !exists {
		s.recentByAuthor[post.AuthorID] = append(s.recentByAuthor[post.AuthorID], post.ID)
	}
	postCopy := *post
	s.posts[post.ID] = &postCopy
	return nil
}

// GetPost retrieves a post by id.
func (s *MemoryStore) GetPost(_ context.Context, id string) (*social.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	postCopy := *p
	return &postCopy, nil
}

// GetPosts retrieves the posts that exist among ids.
func (s *MemoryStore) GetPosts(_ context.Context, ids []string) (map[string]*social.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*social.Post, len(ids))
	for _, id := range ids {
		if p, ok := s.posts[id]; ok {
			postCopy := *p
			out[id] = &postCopy
		}
	}
	return out, nil
}

// GetPostsByAuthor returns an author's posts, newest first, id ascending on
// equal timestamps.
func (s *MemoryStore) GetPostsByAuthor(_ context.Context, authorID string, limit int) ([]*social.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.recentByAuthor[authorID]
	posts := make([]*social.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.posts[id]; ok {
			postCopy := *p
			posts = append(posts, &postCopy)
		}
	}
	sortPostsNewestFirst(posts)
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

// GetRecentPostIDsForFollowing returns recent post ids per followed author,
// newest first within each author, flattened in following order.
func (s *MemoryStore) GetRecentPostIDsForFollowing(_ context.Context, followingIDs []string, limitPerAuthor int, maxAge time.Duration) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-s.window(maxAge))
	var out []string
	for _, authorID := range followingIDs {
		ids := s.recentByAuthor[authorID]
		if len(ids) == 0 {
			continue
		}
		posts := make([]*social.Post, 0, len(ids))
		for _, id := range ids {
			if p, ok := s.posts[id]; ok && !p.CreatedAt.Before(cutoff) {
				posts = append(posts, p)
			}
		}
		sortPostsNewestFirst(posts)
		for i, p := range posts {
			if limitPerAuthor > 0 && i >= limitPerAuthor {
				break
			}
			out = append(out, p.ID)
		}
	}
	return out, nil
}

// GetGlobalRecent returns ids of original posts within the window, strictly
// newest first.
func (s *MemoryStore) GetGlobalRecent(_ context.Context, limit int, maxAge time.Duration) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-s.window(maxAge))
	acc := make([]*social.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if p.PostType == social.PostTypeOriginal && !p.CreatedAt.Before(cutoff) {
			acc = append(acc, p)
		}
	}
	sortPostsNewestFirst(acc)
	if limit > 0 && len(acc) > limit {
		acc = acc[:limit]
	}
	out := make([]string, len(acc))
	for i, p := range acc {
		out[i] = p.ID
	}
	return out, nil
}

// AddEngagement appends an engagement record.
func (s *MemoryStore) AddEngagement(_ context.Context, e social.Engagement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.engagements = append(s.engagements, e)
	return nil
}

// GetEngagementCounts returns per-action counts for a post with every
// engagement type present.
func (s *MemoryStore) GetEngagementCounts(_ context.Context, postID string) (map[social.EngagementType]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[social.EngagementType]int, len(social.EngagementTypes))
	for _, t := range social.EngagementTypes {
		counts[t] = 0
	}
	for _, e := range s.engagements {
		if e.PostID == postID {
			counts[e.Type]++
		}
	}
	return counts, nil
}

// GetUserEngagementPostIDs returns post ids the user engaged with, most
// recent first, deduplicated.
func (s *MemoryStore) GetUserEngagementPostIDs(_ context.Context, userID string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for i := len(s.engagements) - 1; i >= 0; i-- {
		e := s.engagements[i]
		if e.UserID != userID || seen[e.PostID] {
			continue
		}
		seen[e.PostID] = true
		out = append(out, e.PostID)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// GetTopicCounts returns topic frequencies for posts within the window,
// descending by count, topic ascending on ties.
func (s *MemoryStore) GetTopicCounts(_ context.Context, maxAge time.Duration, limit int) ([]TopicCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-s.window(maxAge))
	counts := make(map[social.Topic]int)
	for _, p := range s.posts {
		if p.CreatedAt.Before(cutoff) {
			continue
		}
		for _, t := range p.Topics {
			counts[t]++
		}
	}
	out := make([]TopicCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, TopicCount{Topic: t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Topic < out[j].Topic
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) window(maxAge time.Duration) time.Duration {
	if maxAge > 0 {
		return maxAge
	}
	return s.retention
}

// sortPostsNewestFirst orders posts by created_at DESC, id ASC (tie-breaker)
// for stable, deterministic output.
func sortPostsNewestFirst(posts []*social.Post) {
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID < posts[j].ID
	})
}
