package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onnwee/foryou/internal/social"
	"github.com/onnwee/foryou/internal/store"
)

func newUserFixture(t *testing.T) (*UserHandlers, *store.MemoryStore, *store.MemoryPreferenceStore) {
	t.Helper()
	st := store.NewMemoryStore(store.WithClock(func() time.Time { return handlerNow }))
	prefs := store.NewMemoryPreferenceStore()
	return NewUserHandlers(st, prefs), st, prefs
}

func TestListUsers(t *testing.T) {
	h, st, _ := newUserFixture(t)
	ctx := context.Background()

	for _, id := range []string{"u3", "u1", "u2"} {
		if err := st.AddUser(ctx, &social.User{ID: id, Handle: id}); err != nil {
			t.Fatalf("AddUser: %v", err)
		}
	}

	rec := httptest.NewRecorder()
	h.ListUsers(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp UserListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Users) != 3 {
		t.Fatalf("users = %d, want 3", len(resp.Users))
	}
	// Insertion order, not lexicographic
	want := []string{"u3", "u1", "u2"}
	for i, u := range resp.Users {
		if u.ID != want[i] {
			t.Errorf("position %d: %s, want %s", i, u.ID, want[i])
		}
	}
}

func TestListUsers_Limit(t *testing.T) {
	h, st, _ := newUserFixture(t)
	ctx := context.Background()
	for _, id := range []string{"u1", "u2", "u3"} {
		if err := st.AddUser(ctx, &social.User{ID: id}); err != nil {
			t.Fatalf("AddUser: %v", err)
		}
	}

	rec := httptest.NewRecorder()
	h.ListUsers(rec, httptest.NewRequest(http.MethodGet, "/api/users?limit=2", nil))
	var resp UserListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Users) != 2 {
		t.Errorf("users = %d, want 2", len(resp.Users))
	}
}

func TestGetUser(t *testing.T) {
	h, st, _ := newUserFixture(t)
	if err := st.AddUser(context.Background(), &social.User{ID: "u1", Handle: "alice"}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	rec := httptest.NewRecorder()
	h.UserRoutes(rec, httptest.NewRequest(http.MethodGet, "/api/users/u1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var u social.User
	if err := json.Unmarshal(rec.Body.Bytes(), &u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.Handle != "alice" {
		t.Errorf("handle = %s, want alice", u.Handle)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	h, _, _ := newUserFixture(t)

	rec := httptest.NewRecorder()
	h.UserRoutes(rec, httptest.NewRequest(http.MethodGet, "/api/users/ghost", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != ErrCodeNotFound {
		t.Errorf("error code = %s, want %s", resp.Error.Code, ErrCodeNotFound)
	}
}

func TestGetPreferences_DefaultsWhenUnset(t *testing.T) {
	h, _, _ := newUserFixture(t)

	rec := httptest.NewRecorder()
	h.UserRoutes(rec, httptest.NewRequest(http.MethodGet, "/api/users/u1/preferences", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var prefs social.AlgorithmPreferences
	if err := json.Unmarshal(rec.Body.Bytes(), &prefs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if prefs != social.DefaultPreferences() {
		t.Errorf("prefs = %+v, want defaults", prefs)
	}
}

func TestPutPreferences(t *testing.T) {
	h, _, prefsStore := newUserFixture(t)

	prefs := social.DefaultPreferences()
	prefs.TechWeight = 0.9
	body, err := json.Marshal(PreferencesUpdateRequest{Preferences: &prefs})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/users/u1/preferences", bytes.NewReader(body))
	h.UserRoutes(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	stored, err := prefsStore.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.TechWeight != 0.9 {
		t.Errorf("stored tech_weight = %f, want 0.9", stored.TechWeight)
	}
}

func TestPutPreferences_Validation(t *testing.T) {
	h, _, _ := newUserFixture(t)

	bad := social.DefaultPreferences()
	bad.DiversityStrength = 1.5
	bad.Exploration = -0.2
	body, err := json.Marshal(PreferencesUpdateRequest{Preferences: &bad})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/users/u1/preferences", bytes.NewReader(body))
	h.UserRoutes(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Error.Code != ErrCodeValidation {
		t.Errorf("error code = %s, want %s", resp.Error.Code, ErrCodeValidation)
	}
	// Lexicographically first offender wins the message
	if want := "diversity_strength must be between 0.0 and 1.0"; resp.Error.Message != want {
		t.Errorf("message = %q, want %q", resp.Error.Message, want)
	}
}

func TestPutPreferences_MissingBody(t *testing.T) {
	h, _, _ := newUserFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/users/u1/preferences", bytes.NewReader([]byte(`{}`)))
	h.UserRoutes(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != ErrCodeValidation {
		t.Errorf("error code = %s, want %s", resp.Error.Code, ErrCodeValidation)
	}
}

func TestUserRoutes_UnknownPath(t *testing.T) {
	h, _, _ := newUserFixture(t)

	rec := httptest.NewRecorder()
	h.UserRoutes(rec, httptest.NewRequest(http.MethodGet, "/api/users/u1/posts", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestValidatePreferences(t *testing.T) {
	good := social.DefaultPreferences()
	if msg := validatePreferences(&good); msg != "" {
		t.Errorf("defaults flagged invalid: %s", msg)
	}

	edges := social.AlgorithmPreferences{NicheVsViral: 1.0}
	if msg := validatePreferences(&edges); msg != "" {
		t.Errorf("boundary values flagged invalid: %s", msg)
	}

	bad := social.DefaultPreferences()
	bad.MemesWeight = -0.1
	if msg := validatePreferences(&bad); msg != "memes_weight must be between 0.0 and 1.0" {
		t.Errorf("message = %q", msg)
	}
}
