// Package social defines the core domain types shared across the feed
// pipeline, stores, and API layer: users, posts, engagements, and the
// ranking explanation shapes returned to clients.
package social

import "time"

// PostType identifies the kind of a post.
type PostType string

// Post types.
const (
	PostTypeOriginal PostType = "original"
	PostTypeReply    PostType = "reply"
	PostTypeRepost   PostType = "repost"
	PostTypeQuote    PostType = "quote"
)

// Topic is a coarse content category attached to posts and user profiles.
type Topic string

// Topics.
const (
	TopicTech     Topic = "tech"
	TopicPolitics Topic = "politics"
	TopicCulture  Topic = "culture"
	TopicMemes    Topic = "memes"
	TopicFinance  Topic = "finance"
	TopicNews     Topic = "news"
	TopicOther    Topic = "other"
)

// EngagementType identifies a recorded user action on a post.
type EngagementType string

// Engagement types. Engagements are append-only; counts are derived.
const (
	EngagementLike          EngagementType = "like"
	EngagementRepost        EngagementType = "repost"
	EngagementReply         EngagementType = "reply"
	EngagementQuote         EngagementType = "quote"
	EngagementProfileClick  EngagementType = "profile_click"
	EngagementNotInterested EngagementType = "not_interested"
)

// EngagementTypes lists all engagement types. Count maps returned by stores
// carry every entry here, defaulting to zero.
var EngagementTypes = []EngagementType{
	EngagementLike,
	EngagementRepost,
	EngagementReply,
	EngagementQuote,
	EngagementProfileClick,
	EngagementNotInterested,
}

// User is a member profile including its following list.
type User struct {
	ID             string   `json:"id"`
	Handle         string   `json:"handle"`
	DisplayName    string   `json:"display_name"`
	Bio            string   `json:"bio,omitempty"`
	Topics         []Topic  `json:"topics,omitempty"`
	AvatarURL      string   `json:"avatar_url,omitempty"`
	FollowingIDs   []string `json:"following_ids"`
	FollowersCount int      `json:"followers_count"`
	FollowingCount int      `json:"following_count"`
}

// Follows reports whether the user follows the given author.
func (u *User) Follows(authorID string) bool {
	for _, id := range u.FollowingIDs {
		if id == authorID {
			return true
		}
	}
	return false
}

// Post is a content item. The *Count fields are denormalized counters; the
// feed pipeline overrides them with live engagement counts at hydration time.
type Post struct {
	ID          string    `json:"id"`
	AuthorID    string    `json:"author_id"`
	Text        string    `json:"text"`
	PostType    PostType  `json:"post_type"`
	ParentID    string    `json:"parent_id,omitempty"`
	QuotedID    string    `json:"quoted_id,omitempty"`
	Topics      []Topic   `json:"topics,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LikeCount   int       `json:"like_count"`
	RepostCount int       `json:"repost_count"`
	ReplyCount  int       `json:"reply_count"`
	QuoteCount  int       `json:"quote_count"`
	ViewCount   int       `json:"view_count"`
}

// PostWithAuthor pairs a post with its resolved author for display.
// Author is nil when the author record is missing.
type PostWithAuthor struct {
	Post
	Author *User `json:"author,omitempty"`
}

// Engagement is a single recorded action by a user on a post.
type Engagement struct {
	UserID    string         `json:"user_id"`
	PostID    string         `json:"post_id"`
	Type      EngagementType `json:"engagement_type"`
	CreatedAt time.Time      `json:"created_at"`
}

// ActionScore is one term of a ranking explanation: the predicted probability
// of an action, the weight applied to it, and the resulting contribution
// (weight × probability).
type ActionScore struct {
	Action       string  `json:"action"`
	Weight       float64 `json:"weight"`
	Probability  float64 `json:"probability"`
	Contribution float64 `json:"contribution"`
}

// ScoreBreakdown carries the auxiliary values needed to reconstruct a final
// score from its explanation. Extra is reserved for speculative signals and
// is not a stable surface.
type ScoreBreakdown struct {
	// WeightedSum is the sum of all action contributions before the
	// in-network multiplier is applied.
	WeightedSum float64 `json:"weighted_sum"`
	// InNetworkMultiplier is 1.0 for out-of-network candidates.
	InNetworkMultiplier float64 `json:"in_network_multiplier"`
	// Probabilities is the raw per-action probability map.
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
	// Extra holds unstable auxiliary values.
	Extra map[string]float64 `json:"extra,omitempty"`
}

// RankingExplanation decomposes a final score into its contributing terms.
// The decomposition is exact: weighted_sum × in_network_multiplier
// + 0.2×(topic_boost−0.5) + 0.1×(recency_boost−0.5) − diversity_penalty
// reproduces FinalScore (subject only to the zero floor applied by the
// diversity pass).
type RankingExplanation struct {
	PostID           string         `json:"post_id"`
	FinalScore       float64        `json:"final_score"`
	Rank             int            `json:"rank"`
	Source           string         `json:"source"`
	ActionScores     []ActionScore  `json:"action_scores"`
	DiversityPenalty float64        `json:"diversity_penalty"`
	RecencyBoost     float64        `json:"recency_boost"`
	TopicBoost       float64        `json:"topic_boost"`
	Breakdown        ScoreBreakdown `json:"breakdown"`
}

// FeedItem is one hydrated entry of a ranked feed.
type FeedItem struct {
	Post               PostWithAuthor      `json:"post"`
	RankingExplanation *RankingExplanation `json:"ranking_explanation,omitempty"`
	ParentPost         *PostWithAuthor     `json:"parent_post,omitempty"`
	QuotedPost         *PostWithAuthor     `json:"quoted_post,omitempty"`
}

// FeedResponse is the ranked feed returned to the API layer. NextCursor is
// always empty: the feed is single-page.
type FeedResponse struct {
	Items      []FeedItem `json:"items"`
	NextCursor *string    `json:"next_cursor"`
}
