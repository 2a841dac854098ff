package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onnwee/foryou/internal/feed"
	"github.com/onnwee/foryou/internal/seen"
	"github.com/onnwee/foryou/internal/social"
	"github.com/onnwee/foryou/internal/store"
)

var handlerNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type feedFixture struct {
	handlers *FeedHandlers
	store    *store.MemoryStore
	prefs    *store.MemoryPreferenceStore
	tracker  *seen.MemoryTracker
}

func newFeedFixture(t *testing.T) *feedFixture {
	t.Helper()
	st := store.NewMemoryStore(store.WithClock(func() time.Time { return handlerNow }))
	prefs := store.NewMemoryPreferenceStore()
	tracker := seen.NewMemoryTracker(0)
	mixer := feed.NewMixer(st, feed.WithClock(func() time.Time { return handlerNow }))
	return &feedFixture{
		handlers: NewFeedHandlers(mixer, st, prefs, tracker),
		store:    st,
		prefs:    prefs,
		tracker:  tracker,
	}
}

func (f *feedFixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	users := []*social.User{
		{ID: "viewer", Handle: "viewer", FollowingIDs: []string{"friend"}},
		{ID: "friend", Handle: "friend"},
		{ID: "stranger", Handle: "stranger"},
	}
	for _, u := range users {
		if err := f.store.AddUser(ctx, u); err != nil {
			t.Fatalf("AddUser: %v", err)
		}
	}
	posts := []*social.Post{
		{ID: "friend_post", AuthorID: "friend", Text: "hi", PostType: social.PostTypeOriginal, CreatedAt: handlerNow.Add(-time.Hour)},
		{ID: "stranger_post", AuthorID: "stranger", Text: "yo", PostType: social.PostTypeOriginal, CreatedAt: handlerNow.Add(-2 * time.Hour)},
	}
	for _, p := range posts {
		if err := f.store.AddPost(ctx, p); err != nil {
			t.Fatalf("AddPost: %v", err)
		}
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func decodeFeed(t *testing.T, rec *httptest.ResponseRecorder) social.FeedResponse {
	t.Helper()
	var resp social.FeedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode feed body: %v", err)
	}
	return resp
}

func postJSON(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
}

func TestCreateFeed(t *testing.T) {
	f := newFeedFixture(t)
	f.seed(t)

	rec := httptest.NewRecorder()
	f.handlers.CreateFeed(rec, postJSON(t, "/api/feed", FeedRequest{UserID: "viewer"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeFeed(t, rec)
	if len(resp.Items) != 2 {
		t.Errorf("feed size = %d, want 2", len(resp.Items))
	}
	if resp.NextCursor != nil {
		t.Errorf("next_cursor = %v, want null", *resp.NextCursor)
	}
	// Explanations default on when the body omits the flag
	for i, item := range resp.Items {
		if item.RankingExplanation == nil {
			t.Errorf("item %d: missing explanation", i)
		}
	}
}

func TestCreateFeed_ExplanationsOff(t *testing.T) {
	f := newFeedFixture(t)
	f.seed(t)

	off := false
	rec := httptest.NewRecorder()
	f.handlers.CreateFeed(rec, postJSON(t, "/api/feed", FeedRequest{
		UserID:              "viewer",
		IncludeExplanations: &off,
	}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	for i, item := range decodeFeed(t, rec).Items {
		if item.RankingExplanation != nil {
			t.Errorf("item %d: explanation present when disabled", i)
		}
	}
}

func TestCreateFeed_UnknownUser(t *testing.T) {
	f := newFeedFixture(t)

	rec := httptest.NewRecorder()
	f.handlers.CreateFeed(rec, postJSON(t, "/api/feed", FeedRequest{UserID: "ghost"}))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != ErrCodeNotFound {
		t.Errorf("error code = %s, want %s", resp.Error.Code, ErrCodeNotFound)
	}
}

func TestCreateFeed_Validation(t *testing.T) {
	f := newFeedFixture(t)
	f.seed(t)

	tests := []struct {
		name     string
		req      FeedRequest
		wantCode string
	}{
		{"missing user_id", FeedRequest{}, ErrCodeValidation},
		{"negative limit", FeedRequest{UserID: "viewer", Limit: -1}, ErrCodeValidation},
		{"limit above cap", FeedRequest{UserID: "viewer", Limit: MaxFeedLimit + 1}, ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			f.handlers.CreateFeed(rec, postJSON(t, "/api/feed", tt.req))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if resp := decodeError(t, rec); resp.Error.Code != tt.wantCode {
				t.Errorf("error code = %s, want %s", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestCreateFeed_InvalidJSON(t *testing.T) {
	f := newFeedFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/feed", bytes.NewReader([]byte("{not json")))
	f.handlers.CreateFeed(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != ErrCodeBadRequest {
		t.Errorf("error code = %s, want %s", resp.Error.Code, ErrCodeBadRequest)
	}
}

func TestCreateFeed_MethodNotAllowed(t *testing.T) {
	f := newFeedFixture(t)

	rec := httptest.NewRecorder()
	f.handlers.CreateFeed(rec, httptest.NewRequest(http.MethodGet, "/api/feed", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestCreateFeed_SeenPostIDsExcluded(t *testing.T) {
	f := newFeedFixture(t)
	f.seed(t)

	rec := httptest.NewRecorder()
	f.handlers.CreateFeed(rec, postJSON(t, "/api/feed", FeedRequest{
		UserID:      "viewer",
		SeenPostIDs: []string{"friend_post"},
	}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	for _, item := range decodeFeed(t, rec).Items {
		if item.Post.ID == "friend_post" {
			t.Error("explicitly seen post returned in feed")
		}
	}
}

func TestCreateFeed_MarksReturnedAsSeen(t *testing.T) {
	f := newFeedFixture(t)
	f.seed(t)

	rec := httptest.NewRecorder()
	f.handlers.CreateFeed(rec, postJSON(t, "/api/feed", FeedRequest{UserID: "viewer"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	first := decodeFeed(t, rec)
	if len(first.Items) == 0 {
		t.Fatal("expected feed items")
	}

	// Second request must not repeat anything from the first.
	rec = httptest.NewRecorder()
	f.handlers.CreateFeed(rec, postJSON(t, "/api/feed", FeedRequest{UserID: "viewer"}))
	second := decodeFeed(t, rec)

	returned := make(map[string]bool)
	for _, item := range first.Items {
		returned[item.Post.ID] = true
	}
	for _, item := range second.Items {
		if returned[item.Post.ID] {
			t.Errorf("post %s repeated across requests", item.Post.ID)
		}
	}
}

func TestCreateFeed_PreferenceOverrides(t *testing.T) {
	f := newFeedFixture(t)
	f.seed(t)

	prefs := social.DefaultPreferences()
	prefs.FriendsVsGlobal = 0.0
	rec := httptest.NewRecorder()
	f.handlers.CreateFeed(rec, postJSON(t, "/api/feed", FeedRequest{
		UserID:      "viewer",
		Preferences: &prefs,
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeFeed(t, rec)
	if len(resp.Items) == 0 {
		t.Fatal("expected feed items")
	}
	// Heavily friend-weighted prefs must rank the in-network post first.
	if resp.Items[0].Post.ID != "friend_post" {
		t.Errorf("top post = %s, want friend_post", resp.Items[0].Post.ID)
	}
}

func TestGetFeed(t *testing.T) {
	f := newFeedFixture(t)
	f.seed(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/feed/viewer?limit=1", nil)
	f.handlers.GetFeed(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeFeed(t, rec)
	if len(resp.Items) != 1 {
		t.Errorf("feed size = %d, want 1", len(resp.Items))
	}
}

func TestGetFeed_UsesStoredPreferences(t *testing.T) {
	f := newFeedFixture(t)
	f.seed(t)

	stored := social.DefaultPreferences()
	stored.FriendsVsGlobal = 0.0
	if err := f.prefs.Put(context.Background(), "viewer", stored); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rec := httptest.NewRecorder()
	f.handlers.GetFeed(rec, httptest.NewRequest(http.MethodGet, "/api/feed/viewer", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeFeed(t, rec)
	if len(resp.Items) == 0 || resp.Items[0].Post.ID != "friend_post" {
		t.Error("stored friend-weighted preferences should rank friend_post first")
	}
}

func TestGetFeed_MissingUserID(t *testing.T) {
	f := newFeedFixture(t)

	rec := httptest.NewRecorder()
	f.handlers.GetFeed(rec, httptest.NewRequest(http.MethodGet, "/api/feed/", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestExplainFeed(t *testing.T) {
	f := newFeedFixture(t)
	f.seed(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/explain/feed/viewer", nil)
	f.handlers.ExplainFeed(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeFeed(t, rec)
	if len(resp.Items) == 0 {
		t.Fatal("expected feed items")
	}
	for i, item := range resp.Items {
		expl := item.RankingExplanation
		if expl == nil {
			t.Fatalf("item %d: explain endpoint must always attach explanations", i)
		}
		if expl.Rank != i+1 {
			t.Errorf("item %d: rank = %d, want %d", i, expl.Rank, i+1)
		}
		if len(expl.ActionScores) == 0 {
			t.Errorf("item %d: explanation has no action scores", i)
		}
	}
}

func TestExplainFeed_UnknownUser(t *testing.T) {
	f := newFeedFixture(t)

	rec := httptest.NewRecorder()
	f.handlers.ExplainFeed(rec, httptest.NewRequest(http.MethodGet, "/api/explain/feed/ghost", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
