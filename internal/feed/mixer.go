package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/onnwee/foryou/internal/social"
	"github.com/onnwee/foryou/internal/store"
	"github.com/onnwee/foryou/internal/tracing"
)

// DefaultFeedLimit is the number of items returned when the request does
// not specify one.
const DefaultFeedLimit = 50

// externalFetchLimit bounds the external source's contribution per request.
const externalFetchLimit = 25

// Request describes one feed ranking call.
type Request struct {
	// UserID is the viewer. Callers must validate existence beforehand; the
	// pipeline treats unknown viewers as users with no following and no
	// posts.
	UserID string

	// Preferences overrides the default sliders when non-nil.
	Preferences *social.AlgorithmPreferences

	// Limit is the number of items to return. Defaults to DefaultFeedLimit.
	Limit int

	// SeenPostIDs are excluded from the result.
	SeenPostIDs map[string]bool

	// IncludeExplanations controls whether explanation payloads are
	// attached. Presentation-only: scoring and ordering are unaffected.
	IncludeExplanations bool

	// FollowingOnly bypasses out-of-network sourcing entirely.
	FollowingOnly bool
}

// Mixer orchestrates the ranking pipeline in a fixed order:
// sources → filters → scorer → diversity → selection → hydration.
type Mixer struct {
	store    store.Store
	scorer   *Scorer
	external ExternalSource
	metrics  *Metrics
	now      func() time.Time
}

// MixerOption configures a Mixer.
type MixerOption func(*Mixer)

// WithActionModel replaces the heuristic action-probability model.
func WithActionModel(model ActionModel) MixerOption {
	return func(m *Mixer) {
		if model != nil {
			m.scorer.model = model
		}
	}
}

// WithActionWeights replaces the default action weights, typically loaded
// from a calibration file.
func WithActionWeights(w *ActionWeights) MixerOption {
	return func(m *Mixer) { m.scorer.weights = weightTable(w) }
}

// WithExternalSource attaches an optional external content source.
func WithExternalSource(src ExternalSource) MixerOption {
	return func(m *Mixer) { m.external = src }
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(metrics *Metrics) MixerOption {
	return func(m *Mixer) { m.metrics = metrics }
}

// WithClock overrides the mixer's clock. Used by tests to pin "now"; with a
// fixed clock and a fixed store snapshot GetFeed is a pure function.
func WithClock(now func() time.Time) MixerOption {
	return func(m *Mixer) { m.now = now }
}

// NewMixer creates a feed mixer over the given store.
func NewMixer(st store.Store, opts ...MixerOption) *Mixer {
	m := &Mixer{
		store:  st,
		scorer: NewScorer(nil),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetFeed runs the full pipeline and returns a ranked, hydrated feed.
// It fails only by propagating store errors.
func (m *Mixer) GetFeed(ctx context.Context, req Request) (*social.FeedResponse, error) {
	prefs := social.DefaultPreferences()
	if req.Preferences != nil {
		prefs = *req.Preferences
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	now := m.now()

	mode := "for_you"
	if req.FollowingOnly {
		mode = "following"
	}
	m.metrics.observeRequest(mode)

	// 1) Candidate sourcing.
	stageStart := time.Now()
	ctx, endSpan := tracing.StartSpan(ctx, "feed.sourcing")
	candidates, err := m.sourceCandidates(ctx, req)
	endSpan(err)
	if err != nil {
		return nil, err
	}
	m.metrics.observeStage(StageSourcing, stageStart, len(candidates))

	// 2) Pre-scoring filters.
	stageStart = time.Now()
	filtered := ApplyPreScoringFilters(candidates, req.UserID, DefaultMaxAge, req.SeenPostIDs, now)
	m.metrics.observeStage(StageFiltering, stageStart, len(filtered))

	// 3) Weighted scoring with explanations.
	stageStart = time.Now()
	scored := m.scorer.Score(filtered, prefs, now)
	m.metrics.observeStage(StageScoring, stageStart, len(scored))

	// 4) Author diversity re-ranking.
	stageStart = time.Now()
	scored = RerankForDiversity(scored, prefs)
	m.metrics.observeStage(StageDiversity, stageStart, len(scored))

	// 5) Selection: RerankForDiversity returns final descending order.
	if len(scored) > limit {
		scored = scored[:limit]
	}

	// 6) Hydration.
	stageStart = time.Now()
	ctx, endSpan = tracing.StartSpan(ctx, "feed.hydration")
	items, err := m.hydrate(ctx, scored, req.IncludeExplanations)
	endSpan(err)
	if err != nil {
		return nil, err
	}
	m.metrics.observeStage(StageHydration, stageStart, len(items))

	return &social.FeedResponse{Items: items, NextCursor: nil}, nil
}

// sourceCandidates runs the sourcing stage. In following-only mode the
// out-of-network pool and the external source are bypassed entirely.
func (m *Mixer) sourceCandidates(ctx context.Context, req Request) ([]*Candidate, error) {
	if req.FollowingOnly {
		return InNetworkCandidates(ctx, m.store, req.UserID, FollowingOnlyLimit, 0)
	}

	inNetwork, err := InNetworkCandidates(ctx, m.store, req.UserID, DefaultLimitInNetwork, 0)
	if err != nil {
		return nil, err
	}
	outOfNetwork, err := OutOfNetworkCandidates(ctx, m.store, req.UserID, DefaultLimitOutOfNetwork, 0)
	if err != nil {
		return nil, err
	}
	merged := MergeCandidates(inNetwork, outOfNetwork)

	if m.external != nil && m.external.Available() {
		external := m.external.Fetch(ctx, externalFetchLimit)
		if len(external) == 0 {
			m.metrics.observeExternalFailure()
		}
		merged = append(merged, external...)
	}
	return merged, nil
}

// hydrate builds feed items: live engagement counts override the post's
// denormalized counters, and replies/quotes get their referenced post
// attached with its author, one level deep only.
func (m *Mixer) hydrate(ctx context.Context, scored []*ScoredCandidate, includeExplanations bool) ([]social.FeedItem, error) {
	items := make([]social.FeedItem, 0, len(scored))
	for _, sc := range scored {
		post := *sc.Candidate.Post
		post.LikeCount = engagementCount(sc.Candidate, social.EngagementLike)
		post.RepostCount = engagementCount(sc.Candidate, social.EngagementRepost)
		post.ReplyCount = engagementCount(sc.Candidate, social.EngagementReply)
		post.QuoteCount = engagementCount(sc.Candidate, social.EngagementQuote)

		item := social.FeedItem{
			Post: social.PostWithAuthor{Post: post, Author: sc.Candidate.Author},
		}
		if includeExplanations {
			item.RankingExplanation = sc.Explanation
		}

		if post.ParentID != "" {
			parent, err := m.hydrateReference(ctx, post.ParentID)
			if err != nil {
				return nil, err
			}
			item.ParentPost = parent
		}
		if post.QuotedID != "" {
			quoted, err := m.hydrateReference(ctx, post.QuotedID)
			if err != nil {
				return nil, err
			}
			item.QuotedPost = quoted
		}
		items = append(items, item)
	}
	return items, nil
}

// hydrateReference resolves a referenced post with its author. Absent posts
// hydrate to nil; absent authors hydrate to a nil author field.
func (m *Mixer) hydrateReference(ctx context.Context, postID string) (*social.PostWithAuthor, error) {
	post, err := m.store.GetPost(ctx, postID)
	if errors.Is(err, store.ErrPostNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate post %s: %w", postID, err)
	}
	author, err := m.store.GetUser(ctx, post.AuthorID)
	if err != nil && !errors.Is(err, store.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to hydrate author %s: %w", post.AuthorID, err)
	}
	return &social.PostWithAuthor{Post: *post, Author: author}, nil
}
