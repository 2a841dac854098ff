package feed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/onnwee/foryou/internal/social"
	"github.com/onnwee/foryou/internal/store"
)

func newSourcingStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	return store.NewMemoryStore(store.WithClock(func() time.Time { return testNow }))
}

func addUser(t *testing.T, st *store.MemoryStore, id string, following ...string) {
	t.Helper()
	if err := st.AddUser(context.Background(), &social.User{
		ID:           id,
		Handle:       id,
		FollowingIDs: following,
	}); err != nil {
		t.Fatalf("AddUser(%s): %v", id, err)
	}
}

func addPost(t *testing.T, st *store.MemoryStore, id, authorID string, age time.Duration) {
	t.Helper()
	if err := st.AddPost(context.Background(), &social.Post{
		ID:        id,
		AuthorID:  authorID,
		Text:      "post " + id,
		PostType:  social.PostTypeOriginal,
		CreatedAt: testNow.Add(-age),
	}); err != nil {
		t.Fatalf("AddPost(%s): %v", id, err)
	}
}

func TestInNetworkCandidates_UnknownViewer(t *testing.T) {
	st := newSourcingStore(t)

	got, err := InNetworkCandidates(context.Background(), st, "ghost", DefaultLimitInNetwork, 0)
	if err != nil {
		t.Fatalf("InNetworkCandidates: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no candidates for unknown viewer, got %d", len(got))
	}
}

func TestInNetworkCandidates_NoFollowing(t *testing.T) {
	st := newSourcingStore(t)
	addUser(t, st, "u1")
	addUser(t, st, "a1")
	addPost(t, st, "p1", "a1", time.Hour)

	got, err := InNetworkCandidates(context.Background(), st, "u1", DefaultLimitInNetwork, 0)
	if err != nil {
		t.Fatalf("InNetworkCandidates: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("viewer follows no one; expected empty pool, got %d candidates", len(got))
	}
}

func TestInNetworkCandidates_OnlyFollowedAuthors(t *testing.T) {
	st := newSourcingStore(t)
	addUser(t, st, "u1", "a1")
	addUser(t, st, "a1")
	addUser(t, st, "a2")
	addPost(t, st, "p1", "a1", time.Hour)
	addPost(t, st, "p2", "a2", time.Hour)

	got, err := InNetworkCandidates(context.Background(), st, "u1", DefaultLimitInNetwork, 0)
	if err != nil {
		t.Fatalf("InNetworkCandidates: %v", err)
	}
	if len(got) != 1 || got[0].Post.ID != "p1" {
		t.Fatalf("expected only p1 from followed author, got %v", candidateIDs(got))
	}
	if got[0].Source != SourceInNetwork {
		t.Errorf("source = %s, want %s", got[0].Source, SourceInNetwork)
	}
	if got[0].Author == nil || got[0].Author.ID != "a1" {
		t.Error("expected resolved author a1")
	}
}

func TestInNetworkCandidates_PerAuthorCap(t *testing.T) {
	st := newSourcingStore(t)
	addUser(t, st, "u1", "a1")
	addUser(t, st, "a1")
	for i := 0; i < DefaultLimitPerAuthor+5; i++ {
		addPost(t, st, fmt.Sprintf("p%02d", i), "a1", time.Duration(i)*time.Minute)
	}

	got, err := InNetworkCandidates(context.Background(), st, "u1", DefaultLimitInNetwork, 0)
	if err != nil {
		t.Fatalf("InNetworkCandidates: %v", err)
	}
	if len(got) != DefaultLimitPerAuthor {
		t.Errorf("expected %d candidates after per-author cap, got %d", DefaultLimitPerAuthor, len(got))
	}
	// Newest first within the author
	if got[0].Post.ID != "p00" {
		t.Errorf("expected newest post first, got %s", got[0].Post.ID)
	}
}

func TestInNetworkCandidates_MaxAge(t *testing.T) {
	st := newSourcingStore(t)
	addUser(t, st, "u1", "a1")
	addUser(t, st, "a1")
	addPost(t, st, "fresh", "a1", time.Hour)
	addPost(t, st, "stale", "a1", 48*time.Hour)

	got, err := InNetworkCandidates(context.Background(), st, "u1", DefaultLimitInNetwork, 24*time.Hour)
	if err != nil {
		t.Fatalf("InNetworkCandidates: %v", err)
	}
	if len(got) != 1 || got[0].Post.ID != "fresh" {
		t.Errorf("expected only fresh post inside window, got %v", candidateIDs(got))
	}
}

func TestOutOfNetworkCandidates_ExcludesFollowed(t *testing.T) {
	st := newSourcingStore(t)
	addUser(t, st, "u1", "a1")
	addUser(t, st, "a1")
	addUser(t, st, "a2")
	addPost(t, st, "p1", "a1", time.Hour)
	addPost(t, st, "p2", "a2", 2*time.Hour)

	got, err := OutOfNetworkCandidates(context.Background(), st, "u1", DefaultLimitOutOfNetwork, 0)
	if err != nil {
		t.Fatalf("OutOfNetworkCandidates: %v", err)
	}
	if len(got) != 1 || got[0].Post.ID != "p2" {
		t.Fatalf("expected only p2 from unfollowed author, got %v", candidateIDs(got))
	}
	if got[0].Source != SourceOutOfNetwork {
		t.Errorf("source = %s, want %s", got[0].Source, SourceOutOfNetwork)
	}
}

func TestOutOfNetworkCandidates_UnknownViewerGetsGlobalPool(t *testing.T) {
	st := newSourcingStore(t)
	addUser(t, st, "a1")
	addPost(t, st, "p1", "a1", time.Hour)

	got, err := OutOfNetworkCandidates(context.Background(), st, "ghost", DefaultLimitOutOfNetwork, 0)
	if err != nil {
		t.Fatalf("OutOfNetworkCandidates: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("unknown viewer still gets the global pool, got %d candidates", len(got))
	}
}

func TestOutOfNetworkCandidates_Limit(t *testing.T) {
	st := newSourcingStore(t)
	addUser(t, st, "u1")
	for i := 0; i < 10; i++ {
		author := fmt.Sprintf("a%d", i)
		addUser(t, st, author)
		addPost(t, st, fmt.Sprintf("p%d", i), author, time.Duration(i)*time.Minute)
	}

	got, err := OutOfNetworkCandidates(context.Background(), st, "u1", 3, 0)
	if err != nil {
		t.Fatalf("OutOfNetworkCandidates: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected pool truncated to 3, got %d", len(got))
	}
	if got[0].Post.ID != "p0" {
		t.Errorf("expected newest post first, got %s", got[0].Post.ID)
	}
}

func TestMergeCandidates(t *testing.T) {
	in := []*Candidate{makeCandidate("p1", "a1", time.Hour, SourceInNetwork)}
	out := []*Candidate{makeCandidate("p2", "a2", time.Hour, SourceOutOfNetwork)}

	merged := MergeCandidates(in, out)
	if len(merged) != 2 || merged[0].Post.ID != "p1" || merged[1].Post.ID != "p2" {
		t.Errorf("merge order wrong: %v", candidateIDs(merged))
	}

	if got := MergeCandidates(nil, nil); len(got) != 0 {
		t.Errorf("merging empty pools should be empty, got %d", len(got))
	}
}

func TestBuildCandidates_EngagementCounts(t *testing.T) {
	st := newSourcingStore(t)
	addUser(t, st, "u1", "a1")
	addUser(t, st, "a1")
	addPost(t, st, "p1", "a1", time.Hour)

	for i := 0; i < 3; i++ {
		if err := st.AddEngagement(context.Background(), social.Engagement{
			UserID:    fmt.Sprintf("fan%d", i),
			PostID:    "p1",
			Type:      social.EngagementLike,
			CreatedAt: testNow,
		}); err != nil {
			t.Fatalf("AddEngagement: %v", err)
		}
	}

	got, err := InNetworkCandidates(context.Background(), st, "u1", DefaultLimitInNetwork, 0)
	if err != nil {
		t.Fatalf("InNetworkCandidates: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].EngagementCounts[social.EngagementLike] != 3 {
		t.Errorf("like count = %d, want 3", got[0].EngagementCounts[social.EngagementLike])
	}
}
