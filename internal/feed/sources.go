package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/onnwee/foryou/internal/social"
	"github.com/onnwee/foryou/internal/store"
)

// Default pool sizes for candidate sourcing. The in/out-of-network split at
// this layer is caller-controlled; friends_vs_global only informs pool
// sizing upstream.
const (
	DefaultLimitInNetwork    = 200
	DefaultLimitPerAuthor    = 20
	DefaultLimitOutOfNetwork = 150

	// FollowingOnlyLimit is the in-network pool size when the feed is
	// restricted to followed accounts.
	FollowingOnlyLimit = 300
)

// InNetworkCandidates sources recent posts from accounts the viewer follows:
// up to DefaultLimitPerAuthor most-recent posts per followed author, merged
// and truncated to limit. Returns an empty list for viewers who follow no
// one.
func InNetworkCandidates(ctx context.Context, st store.Store, userID string, limit int, maxAge time.Duration) ([]*Candidate, error) {
	viewer, err := st.GetUser(ctx, userID)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load viewer: %w", err)
	}
	if len(viewer.FollowingIDs) == 0 {
		return nil, nil
	}

	postIDs, err := st.GetRecentPostIDsForFollowing(ctx, viewer.FollowingIDs, DefaultLimitPerAuthor, maxAge)
	if err != nil {
		return nil, fmt.Errorf("failed to load following posts: %w", err)
	}
	if limit > 0 && len(postIDs) > limit {
		postIDs = postIDs[:limit]
	}
	return buildCandidates(ctx, st, postIDs, SourceInNetwork)
}

// OutOfNetworkCandidates sources the global recent pool of original posts,
// drops authors the viewer already follows, and truncates to limit.
func OutOfNetworkCandidates(ctx context.Context, st store.Store, userID string, limit int, maxAge time.Duration) ([]*Candidate, error) {
	following := make(map[string]bool)
	viewer, err := st.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to load viewer: %w", err)
	}
	if viewer != nil {
		for _, id := range viewer.FollowingIDs {
			following[id] = true
		}
	}

	allIDs, err := st.GetGlobalRecent(ctx, limit*2, maxAge)
	if err != nil {
		return nil, fmt.Errorf("failed to load global recent: %w", err)
	}
	posts, err := st.GetPosts(ctx, allIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}

	oonIDs := make([]string, 0, limit)
	for _, id := range allIDs {
		p, ok := posts[id]
		if !ok || following[p.AuthorID] {
			continue
		}
		oonIDs = append(oonIDs, id)
		if limit > 0 && len(oonIDs) >= limit {
			break
		}
	}
	return buildCandidates(ctx, st, oonIDs, SourceOutOfNetwork)
}

// MergeCandidates concatenates in-network and out-of-network pools,
// in-network first. The merge order has no semantic weight; scoring
// determines final order.
func MergeCandidates(inNetwork, outOfNetwork []*Candidate) []*Candidate {
	out := make([]*Candidate, 0, len(inNetwork)+len(outOfNetwork))
	out = append(out, inNetwork...)
	out = append(out, outOfNetwork...)
	return out
}

// buildCandidates resolves posts, authors, and live engagement counts for
// the given post ids, preserving id order. Missing posts are dropped;
// missing authors yield nil-author candidates.
func buildCandidates(ctx context.Context, st store.Store, postIDs []string, source Source) ([]*Candidate, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}
	posts, err := st.GetPosts(ctx, postIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}
	authorIDs := make([]string, 0, len(posts))
	for _, id := range postIDs {
		if p, ok := posts[id]; ok {
			authorIDs = append(authorIDs, p.AuthorID)
		}
	}
	authors, err := st.GetUsers(ctx, authorIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load authors: %w", err)
	}

	out := make([]*Candidate, 0, len(posts))
	for _, id := range postIDs {
		p, ok := posts[id]
		if !ok {
			continue
		}
		counts, err := st.GetEngagementCounts(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load engagement counts: %w", err)
		}
		out = append(out, &Candidate{
			Post:             p,
			Author:           authors[p.AuthorID],
			Source:           source,
			EngagementCounts: counts,
		})
	}
	return out, nil
}

// engagementCount tolerates sparse maps from external-source candidates.
func engagementCount(c *Candidate, t social.EngagementType) int {
	if c.EngagementCounts == nil {
		return 0
	}
	return c.EngagementCounts[t]
}
