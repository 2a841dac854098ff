package feed

import (
	"math"
	"testing"
	"time"

	"github.com/onnwee/foryou/internal/social"
)

func scoredCandidate(postID, authorID string, score float64) *ScoredCandidate {
	c := makeCandidate(postID, authorID, time.Hour, SourceInNetwork)
	return &ScoredCandidate{
		Candidate:  c,
		FinalScore: score,
		Explanation: &social.RankingExplanation{
			PostID:     postID,
			FinalScore: score,
			Source:     string(c.Source),
		},
	}
}

func TestRerankForDiversity_FirstOccurrenceUnpenalized(t *testing.T) {
	prefs := social.DefaultPreferences()
	prefs.DiversityStrength = 1.0

	out := RerankForDiversity([]*ScoredCandidate{
		scoredCandidate("p1", "a1", 1.0),
		scoredCandidate("p2", "a2", 0.9),
	}, prefs)

	for _, s := range out {
		if s.Explanation.DiversityPenalty != 0 {
			t.Errorf("post %s: first occurrence of an author got penalty %f",
				s.Candidate.Post.ID, s.Explanation.DiversityPenalty)
		}
	}
}

func TestRerankForDiversity_RepeatPenalties(t *testing.T) {
	prefs := social.DefaultPreferences()
	prefs.DiversityStrength = 1.0

	out := RerankForDiversity([]*ScoredCandidate{
		scoredCandidate("p1", "a1", 1.0),
		scoredCandidate("p2", "a1", 0.9),
		scoredCandidate("p3", "a1", 0.8),
	}, prefs)

	byPost := make(map[string]*ScoredCandidate)
	for _, s := range out {
		byPost[s.Candidate.Post.ID] = s
	}

	wantPenalties := map[string]float64{"p1": 0, "p2": 0.15, "p3": 0.30}
	for id, want := range wantPenalties {
		got := byPost[id].Explanation.DiversityPenalty
		if math.Abs(got-want) > scoreTolerance {
			t.Errorf("post %s: penalty = %f, want %f", id, got, want)
		}
	}
	if got := byPost["p2"].FinalScore; math.Abs(got-0.75) > scoreTolerance {
		t.Errorf("p2 penalized score = %f, want 0.75", got)
	}
}

func TestRerankForDiversity_ZeroFloor(t *testing.T) {
	prefs := social.DefaultPreferences()
	prefs.DiversityStrength = 1.0

	out := RerankForDiversity([]*ScoredCandidate{
		scoredCandidate("p1", "a1", 1.0),
		scoredCandidate("p2", "a1", 0.05),
	}, prefs)

	for _, s := range out {
		if s.FinalScore < 0 {
			t.Errorf("post %s: penalized score went negative: %f",
				s.Candidate.Post.ID, s.FinalScore)
		}
		if s.Candidate.Post.ID == "p2" && s.FinalScore != 0 {
			t.Errorf("p2 score = %f, want floored to 0", s.FinalScore)
		}
	}
}

func TestRerankForDiversity_ReordersAfterPenalty(t *testing.T) {
	prefs := social.DefaultPreferences()
	prefs.DiversityStrength = 1.0

	// a1's second post drops below a2's after the 0.15 penalty.
	out := RerankForDiversity([]*ScoredCandidate{
		scoredCandidate("p1", "a1", 1.0),
		scoredCandidate("p2", "a1", 0.9),
		scoredCandidate("p3", "a2", 0.85),
	}, prefs)

	wantOrder := []string{"p1", "p3", "p2"}
	for i, want := range wantOrder {
		if got := out[i].Candidate.Post.ID; got != want {
			t.Errorf("position %d: got %s, want %s", i, got, want)
		}
	}
	for i, s := range out {
		if s.Explanation.Rank != i+1 {
			t.Errorf("position %d: rank = %d, want %d", i, s.Explanation.Rank, i+1)
		}
	}
}

func TestRerankForDiversity_ZeroStrengthKeepsScores(t *testing.T) {
	prefs := social.DefaultPreferences()
	prefs.DiversityStrength = 0

	out := RerankForDiversity([]*ScoredCandidate{
		scoredCandidate("p1", "a1", 1.0),
		scoredCandidate("p2", "a1", 0.9),
		scoredCandidate("p3", "a1", 0.8),
	}, prefs)

	wantScores := map[string]float64{"p1": 1.0, "p2": 0.9, "p3": 0.8}
	for _, s := range out {
		if want := wantScores[s.Candidate.Post.ID]; s.FinalScore != want {
			t.Errorf("post %s: score = %f, want %f (no penalty at zero strength)",
				s.Candidate.Post.ID, s.FinalScore, want)
		}
	}
}

func TestRerankForDiversity_StableForEqualScores(t *testing.T) {
	prefs := social.DefaultPreferences()
	prefs.DiversityStrength = 0

	out := RerankForDiversity([]*ScoredCandidate{
		scoredCandidate("p1", "a1", 0.5),
		scoredCandidate("p2", "a2", 0.5),
		scoredCandidate("p3", "a3", 0.5),
	}, prefs)

	wantOrder := []string{"p1", "p2", "p3"}
	for i, want := range wantOrder {
		if got := out[i].Candidate.Post.ID; got != want {
			t.Errorf("position %d: got %s, want %s (equal scores must keep input order)", i, got, want)
		}
	}
}

func TestRerankForDiversity_DoesNotMutateInput(t *testing.T) {
	prefs := social.DefaultPreferences()
	prefs.DiversityStrength = 1.0

	in := []*ScoredCandidate{
		scoredCandidate("p1", "a1", 1.0),
		scoredCandidate("p2", "a1", 0.9),
	}
	RerankForDiversity(in, prefs)

	if in[1].FinalScore != 0.9 {
		t.Errorf("input score mutated: %f", in[1].FinalScore)
	}
	if in[1].Explanation.DiversityPenalty != 0 {
		t.Errorf("input explanation mutated: penalty %f", in[1].Explanation.DiversityPenalty)
	}
}
