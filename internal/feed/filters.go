package feed

import (
	"time"
)

// DefaultMaxAge is the pre-scoring age cutoff for candidates.
const DefaultMaxAge = 168 * time.Hour

// Pre-scoring filters. Each filter is a total function over a candidate
// list: it never mutates its input and never reorders surviving items, so
// applying the chain twice yields the same result as applying it once.

// DropDuplicates removes duplicate post ids, keeping the first occurrence.
func DropDuplicates(candidates []*Candidate) []*Candidate {
	seen := make(map[string]bool, len(candidates))
	out := make([]*Candidate, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.Post.ID] {
			continue
		}
		seen[c.Post.ID] = true
		out = append(out, c)
	}
	return out
}

// FilterByAge drops posts older than maxAge relative to now.
func FilterByAge(candidates []*Candidate, maxAge time.Duration, now time.Time) []*Candidate {
	cutoff := now.Add(-maxAge)
	out := make([]*Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.Post.CreatedAt.Before(cutoff) {
			out = append(out, c)
		}
	}
	return out
}

// FilterSelfPosts removes candidates authored by the viewer.
func FilterSelfPosts(candidates []*Candidate, viewerID string) []*Candidate {
	out := make([]*Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Post.AuthorID != viewerID {
			out = append(out, c)
		}
	}
	return out
}

// FilterSeen removes post ids present in the caller's seen set. No-op when
// the set is empty.
func FilterSeen(candidates []*Candidate, seenPostIDs map[string]bool) []*Candidate {
	if len(seenPostIDs) == 0 {
		return candidates
	}
	out := make([]*Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !seenPostIDs[c.Post.ID] {
			out = append(out, c)
		}
	}
	return out
}

// ApplyPreScoringFilters runs the standard filter chain: duplicates, age,
// self posts, seen posts.
func ApplyPreScoringFilters(candidates []*Candidate, viewerID string, maxAge time.Duration, seenPostIDs map[string]bool, now time.Time) []*Candidate {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	out := DropDuplicates(candidates)
	out = FilterByAge(out, maxAge, now)
	out = FilterSelfPosts(out, viewerID)
	out = FilterSeen(out, seenPostIDs)
	return out
}
