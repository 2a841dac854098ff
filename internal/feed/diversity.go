package feed

import (
	"sort"

	"github.com/onnwee/foryou/internal/social"
)

// diversityPenaltyStep scales the per-repeat penalty before the
// diversity_strength preference is applied.
const diversityPenaltyStep = 0.15

// RerankForDiversity attenuates repeated-author scores so the final feed is
// not dominated by a single author.
//
// The input is first stably sorted descending by score to establish a
// tentative order. Walking that order, the nth occurrence (1-indexed) of an
// author receives a penalty of (n−1) × diversity_strength × 0.15, subtracted
// from the score and floored at zero. The list is then re-sorted by the
// penalized scores and 1-based ranks are assigned in final order.
//
// The first item from any author always carries a zero penalty, and an
// author's later occurrences never carry a smaller penalty than earlier
// ones. Input candidates are not mutated.
func RerankForDiversity(scored []*ScoredCandidate, prefs social.AlgorithmPreferences) []*ScoredCandidate {
	strength := prefs.DiversityStrength

	tentative := make([]*ScoredCandidate, len(scored))
	copy(tentative, scored)
	sortByScoreDesc(tentative)

	authorCounts := make(map[string]int)
	out := make([]*ScoredCandidate, 0, len(tentative))
	for i, s := range tentative {
		authorID := s.Candidate.Post.AuthorID
		authorCounts[authorID]++
		penalty := float64(authorCounts[authorID]-1) * strength * diversityPenaltyStep
		newScore := s.FinalScore - penalty
		if newScore < 0 {
			newScore = 0
		}

		expl := *s.Explanation
		expl.FinalScore = newScore
		expl.Rank = i + 1
		expl.DiversityPenalty = penalty
		out = append(out, &ScoredCandidate{
			Candidate:   s.Candidate,
			FinalScore:  newScore,
			Explanation: &expl,
		})
	}

	sortByScoreDesc(out)
	for i, s := range out {
		s.Explanation.Rank = i + 1
	}
	return out
}

// sortByScoreDesc sorts descending by score, preserving input order for
// equal scores.
func sortByScoreDesc(scored []*ScoredCandidate) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].FinalScore > scored[j].FinalScore
	})
}
