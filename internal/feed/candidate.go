// Package feed implements the personalized "For You" ranking pipeline:
// candidate sourcing from in-network and out-of-network pools, pre-scoring
// filters, multi-action weighted scoring with per-item explanation,
// author-diversity re-ranking, and top-K selection with thread hydration.
//
// The pipeline is a single-pass, synchronous computation per request. It
// holds no mutable state between requests; every stage operates on the
// candidate list it is given and the read snapshot provided by the store.
package feed

import (
	"github.com/onnwee/foryou/internal/social"
)

// Source tags where a candidate was sourced from.
type Source string

// Candidate sources.
const (
	SourceInNetwork    Source = "in_network"
	SourceOutOfNetwork Source = "out_of_network"
)

// Candidate is a post enriched with author and engagement metadata for
// scoring. Candidates are created fresh per ranking request and discarded
// after response assembly.
type Candidate struct {
	// Post is the underlying post. Never nil.
	Post *social.Post

	// Author is the resolved author record. Nil authors are not an error;
	// they render neutral in scoring inputs.
	Author *social.User

	// Source tags the sourcing pool this candidate came from.
	Source Source

	// EngagementCounts holds live per-action counts keyed by action type.
	EngagementCounts map[social.EngagementType]int

	// RawFeatures is reserved for speculative signals and is not a stable
	// surface.
	RawFeatures map[string]float64
}

// ScoredCandidate pairs a candidate with its final score and explanation.
// Explanation.PostID always equals Candidate.Post.ID.
type ScoredCandidate struct {
	Candidate   *Candidate
	FinalScore  float64
	Explanation *social.RankingExplanation
}
