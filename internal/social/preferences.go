package social

// AlgorithmPreferences are the user-facing sliders that drive ranking.
// All values are nominally in [0, 1]; out-of-range values are accepted and
// simply bias the output. Input sanitization belongs to the API layer.
type AlgorithmPreferences struct {
	// RecencyVsPopularity blends the base positive signal:
	// 0 = pure recency, 1 = pure popularity.
	RecencyVsPopularity float64 `json:"recency_vs_popularity"`

	// FriendsVsGlobal: 0 = mostly following, 1 = more out-of-network.
	FriendsVsGlobal float64 `json:"friends_vs_global"`

	// NicheVsViral: 0 = diverse/niche, 1 = viral/popular.
	NicheVsViral float64 `json:"niche_vs_viral"`

	// Topic weights, used as relative weights per post topic.
	TechWeight     float64 `json:"tech_weight"`
	PoliticsWeight float64 `json:"politics_weight"`
	CultureWeight  float64 `json:"culture_weight"`
	MemesWeight    float64 `json:"memes_weight"`
	FinanceWeight  float64 `json:"finance_weight"`

	// DiversityStrength: 0 = allow author stacking, 1 = strong author diversity.
	DiversityStrength float64 `json:"diversity_strength"`

	// Exploration: 0 = safe/filter-bubble, 1 = more exploration.
	Exploration float64 `json:"exploration"`

	// NegativeSignalStrength scales the negative-action probabilities.
	NegativeSignalStrength float64 `json:"negative_signal_strength"`
}

// DefaultPreferences returns the baseline slider values applied when a
// request or user carries no overrides.
func DefaultPreferences() AlgorithmPreferences {
	return AlgorithmPreferences{
		RecencyVsPopularity:    0.3,
		FriendsVsGlobal:        0.4,
		NicheVsViral:           0.5,
		TechWeight:             0.2,
		PoliticsWeight:         0.2,
		CultureWeight:          0.2,
		MemesWeight:            0.2,
		FinanceWeight:          0.2,
		DiversityStrength:      0.6,
		Exploration:            0.3,
		NegativeSignalStrength: 0.8,
	}
}

// TopicWeight returns the preference weight for a post topic. Topics without
// a dedicated slider (news, other) get a small constant weight.
func (p AlgorithmPreferences) TopicWeight(t Topic) float64 {
	switch t {
	case TopicTech:
		return p.TechWeight
	case TopicPolitics:
		return p.PoliticsWeight
	case TopicCulture:
		return p.CultureWeight
	case TopicMemes:
		return p.MemesWeight
	case TopicFinance:
		return p.FinanceWeight
	default:
		return 0.1
	}
}
