package feed

import (
	"math"
	"time"

	"github.com/onnwee/foryou/internal/social"
)

// Action names used by the multi-action scorer.
const (
	ActionLike          = "like"
	ActionRepost        = "repost"
	ActionReply         = "reply"
	ActionQuote         = "quote"
	ActionClick         = "click"
	ActionShare         = "share"
	ActionFollowAuthor  = "follow_author"
	ActionNotInterested = "not_interested"
	ActionBlockAuthor   = "block_author"
	ActionMuteAuthor    = "mute_author"
	ActionReport        = "report"
)

// actionWeight pairs an action with its scoring weight. Slices, not maps, so
// explanation order is deterministic.
type actionWeight struct {
	action string
	weight float64
}


// ActionModel maps a candidate and preferences to per-action probabilities
// in [0, 1]. The heuristic model is the default; a learned model can replace
// it without touching pipeline wiring.
type ActionModel interface {
	Probabilities(c *Candidate, prefs social.AlgorithmPreferences, now time.Time) map[string]float64
}

// HeuristicActionModel derives action "probabilities" from engagement counts
// and age. No learned model is involved; the outputs are deterministic
// functions of the candidate and preferences.
type HeuristicActionModel struct{}

// Probabilities implements ActionModel.
func (HeuristicActionModel) Probabilities(c *Candidate, prefs social.AlgorithmPreferences, now time.Time) map[string]float64 {
	likes := float64(engagementCount(c, social.EngagementLike))
	reposts := float64(engagementCount(c, social.EngagementRepost))
	replies := float64(engagementCount(c, social.EngagementReply))

	recency := recencyScore(c.Post.CreatedAt, now)

	// Popularity saturates via tanh so runaway posts stay bounded in [0, 1].
	pop := likes*1.0 + reposts*2.0 + replies*1.5
	popScore := math.Min(1.0, math.Tanh(pop/10)*0.5+0.5)

	rv := prefs.RecencyVsPopularity
	basePositive := (1-rv)*recency + rv*popScore

	neg := prefs.NegativeSignalStrength
	return map[string]float64{
		ActionLike:          basePositive * (0.4 + 0.3*math.Min(1, likes/20)),
		ActionRepost:        basePositive * (0.2 + 0.2*math.Min(1, reposts/10)),
		ActionReply:         basePositive * 0.25,
		ActionQuote:         basePositive * 0.15,
		ActionClick:         basePositive * 0.5,
		ActionShare:         basePositive * 0.2,
		ActionFollowAuthor:  basePositive * 0.1,
		ActionNotInterested: 0.05 * neg,
		ActionBlockAuthor:   0.02 * neg,
		ActionMuteAuthor:    0.03 * neg,
		ActionReport:        0.01 * neg,
	}
}

// recencyScore decays over hours: 1 at zero age, 0.5 at one hour.
func recencyScore(createdAt, now time.Time) float64 {
	ageSeconds := now.Sub(createdAt).Seconds()
	return 1.0 / (1.0 + ageSeconds/3600)
}

// topicBoost averages the viewer's preference weights over the post's
// topics. Posts without topics are neutral (0.5).
func topicBoost(topics []social.Topic, prefs social.AlgorithmPreferences) float64 {
	if len(topics) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, t := range topics {
		sum += prefs.TopicWeight(t)
	}
	return sum / float64(len(topics))
}

// Scorer computes the multi-action weighted score and explanation for each
// candidate.
type Scorer struct {
	model   ActionModel
	weights []actionWeight
}

// NewScorer creates a scorer backed by the given action model and the default
// action weights. A nil model uses the heuristic default.
func NewScorer(model ActionModel) *Scorer {
	if model == nil {
		model = HeuristicActionModel{}
	}
	return &Scorer{model: model, weights: weightTable(nil)}
}

// Score computes the final score and explanation per candidate. Input order
// is preserved; the diversity pass owns ordering.
//
// The decomposition recorded in each explanation is exact: the weighted sum
// of contributions times the in-network multiplier, plus the centered topic
// and recency adjustments, reproduces the final score. Neutral boosts (0.5)
// contribute zero. Scores are unclamped and may be negative.
func (s *Scorer) Score(candidates []*Candidate, prefs social.AlgorithmPreferences, now time.Time) []*ScoredCandidate {
	out := make([]*ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		probs := s.model.Probabilities(c, prefs, now)
		topic := topicBoost(c.Post.Topics, prefs)
		recency := recencyScore(c.Post.CreatedAt, now)

		weighted := 0.0
		actionScores := make([]social.ActionScore, 0, len(s.weights))
		for _, aw := range s.weights {
			p := probs[aw.action]
			contrib := aw.weight * p
			weighted += contrib
			actionScores = append(actionScores, social.ActionScore{
				Action:       aw.action,
				Weight:       aw.weight,
				Probability:  p,
				Contribution: contrib,
			})
		}

		// In-network multiplier: when friends_vs_global is low the viewer
		// prefers followed accounts, so in-network candidates get up to 1.5x.
		multiplier := 1.0
		if c.Source == SourceInNetwork {
			multiplier = 1.0 + (1.0-prefs.FriendsVsGlobal)*0.5
		}
		final := weighted*multiplier + 0.2*(topic-0.5) + 0.1*(recency-0.5)

		out = append(out, &ScoredCandidate{
			Candidate:  c,
			FinalScore: final,
			Explanation: &social.RankingExplanation{
				PostID:       c.Post.ID,
				FinalScore:   final,
				Rank:         0,
				Source:       string(c.Source),
				ActionScores: actionScores,
				RecencyBoost: recency,
				TopicBoost:   topic,
				Breakdown: social.ScoreBreakdown{
					WeightedSum:         weighted,
					InNetworkMultiplier: multiplier,
					Probabilities:       probs,
				},
			},
		})
	}
	return out
}
