package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/onnwee/foryou/internal/social"
	"github.com/onnwee/foryou/internal/tracing"
)

// Schema is the DDL for the Postgres-backed store. Applied by InitSchema;
// idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	handle TEXT NOT NULL,
	display_name TEXT NOT NULL,
	bio TEXT NOT NULL DEFAULT '',
	topics TEXT[] NOT NULL DEFAULT '{}',
	avatar_url TEXT NOT NULL DEFAULT '',
	following_ids TEXT[] NOT NULL DEFAULT '{}',
	followers_count INTEGER NOT NULL DEFAULT 0,
	following_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS posts (
	id TEXT PRIMARY KEY,
	author_id TEXT NOT NULL,
	text TEXT NOT NULL,
	post_type TEXT NOT NULL DEFAULT 'original',
	parent_id TEXT,
	quoted_id TEXT,
	topics TEXT[] NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL,
	like_count INTEGER NOT NULL DEFAULT 0,
	repost_count INTEGER NOT NULL DEFAULT 0,
	reply_count INTEGER NOT NULL DEFAULT 0,
	quote_count INTEGER NOT NULL DEFAULT 0,
	view_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_posts_author_created ON posts (author_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_posts_created ON posts (created_at DESC);

CREATE TABLE IF NOT EXISTS engagements (
	seq BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL,
	post_id TEXT NOT NULL,
	engagement_type TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_engagements_post ON engagements (post_id);
CREATE INDEX IF NOT EXISTS idx_engagements_user ON engagements (user_id, seq DESC);

CREATE TABLE IF NOT EXISTS algorithm_preferences (
	user_id TEXT PRIMARY KEY,
	prefs JSONB NOT NULL
);
`

const postColumns = "id, author_id, text, post_type, parent_id, quoted_id, topics, created_at, like_count, repost_count, reply_count, quote_count, view_count"

const userColumns = "id, handle, display_name, bio, topics, avatar_url, following_ids, followers_count, following_count"

// PostgresStore is a Postgres-backed implementation of Store using raw SQL.
type PostgresStore struct {
	db        *sql.DB
	retention time.Duration
}

// NewPostgresStore wraps an open database handle. The retention window is
// used when callers pass a zero maxAge; pass 0 to use DefaultRetention.
func NewPostgresStore(db *sql.DB, retention time.Duration) *PostgresStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &PostgresStore{db: db, retention: retention}
}

// InitSchema creates the store's tables if they do not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// AddUser inserts or replaces a user.
func (s *PostgresStore) AddUser(ctx context.Context, user *social.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			handle = EXCLUDED.handle,
			display_name = EXCLUDED.display_name,
			bio = EXCLUDED.bio,
			topics = EXCLUDED.topics,
			avatar_url = EXCLUDED.avatar_url,
			following_ids = EXCLUDED.following_ids,
			followers_count = EXCLUDED.followers_count,
			following_count = EXCLUDED.following_count`,
		user.ID, user.Handle, user.DisplayName, user.Bio,
		pq.Array(topicsToStrings(user.Topics)), user.AvatarURL,
		pq.Array(user.FollowingIDs), user.FollowersCount, user.FollowingCount)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// UpdateUser replaces a user.
func (s *PostgresStore) UpdateUser(ctx context.Context, user *social.User) error {
	return s.AddUser(ctx, user)
}

// GetUser retrieves a user by id.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*social.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUsers retrieves the users that exist among ids.
func (s *PostgresStore) GetUsers(ctx context.Context, ids []string) (map[string]*social.User, error) {
	if len(ids) == 0 {
		return map[string]*social.User{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*social.User, len(ids))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

// ListUserIDs returns all known user ids.
func (s *PostgresStore) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AddPost inserts or replaces a post.
func (s *PostgresStore) AddPost(ctx context.Context, post *social.Post) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (`+postColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			topics = EXCLUDED.topics,
			like_count = EXCLUDED.like_count,
			repost_count = EXCLUDED.repost_count,
			reply_count = EXCLUDED.reply_count,
			quote_count = EXCLUDED.quote_count,
			view_count = EXCLUDED.view_count`,
		post.ID, post.AuthorID, post.Text, string(post.PostType),
		nullIfEmpty(post.ParentID), nullIfEmpty(post.QuotedID),
		pq.Array(topicsToStrings(post.Topics)), post.CreatedAt,
		post.LikeCount, post.RepostCount, post.ReplyCount, post.QuoteCount, post.ViewCount)
	if err != nil {
		return fmt.Errorf("failed to upsert post: %w", err)
	}
	return nil
}

// GetPost retrieves a post by id.
func (s *PostgresStore) GetPost(ctx context.Context, id string) (*social.Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return p, nil
}

// GetPosts retrieves the posts that exist among ids.
func (s *PostgresStore) GetPosts(ctx context.Context, ids []string) (_ map[string]*social.Post, err error) {
	if len(ids) == 0 {
		return map[string]*social.Post{}, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()
	rows, err := s.db.QueryContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*social.Post, len(ids))
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// GetPostsByAuthor returns an author's posts, newest first.
func (s *PostgresStore) GetPostsByAuthor(ctx context.Context, authorID string, limit int) ([]*social.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE author_id = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2`, authorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query author posts: %w", err)
	}
	defer rows.Close()

	var out []*social.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetRecentPostIDsForFollowing returns recent post ids per followed author,
// newest first within each author, flattened in following order.
func (s *PostgresStore) GetRecentPostIDsForFollowing(ctx context.Context, followingIDs []string, limitPerAuthor int, maxAge time.Duration) (_ []string, err error) {
	if len(followingIDs) == 0 {
		return nil, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	cutoff := time.Now().Add(-s.window(maxAge))
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM (
			SELECT id, author_id, created_at,
			       row_number() OVER (PARTITION BY author_id ORDER BY created_at DESC, id ASC) AS rn
			FROM posts
			WHERE author_id = ANY($1) AND created_at >= $2
		) recent
		WHERE rn <= $3
		ORDER BY array_position($1, author_id), created_at DESC, id ASC`,
		pq.Array(followingIDs), cutoff, limitPerAuthor)
	if err != nil {
		return nil, fmt.Errorf("failed to query following posts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// GetGlobalRecent returns ids of original posts, newest first.
func (s *PostgresStore) GetGlobalRecent(ctx context.Context, limit int, maxAge time.Duration) (_ []string, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	cutoff := time.Now().Add(-s.window(maxAge))
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM posts
		WHERE post_type = 'original' AND created_at >= $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query global recent: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AddEngagement appends an engagement record.
func (s *PostgresStore) AddEngagement(ctx context.Context, e social.Engagement) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "engagements", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO engagements (user_id, post_id, engagement_type, created_at)
		VALUES ($1, $2, $3, $4)`,
		e.UserID, e.PostID, string(e.Type), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert engagement: %w", err)
	}
	return nil
}

// GetEngagementCounts returns per-action counts for a post with every
// engagement type present.
func (s *PostgresStore) GetEngagementCounts(ctx context.Context, postID string) (map[social.EngagementType]int, error) {
	counts := make(map[social.EngagementType]int, len(social.EngagementTypes))
	for _, t := range social.EngagementTypes {
		counts[t] = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT engagement_type, count(*) FROM engagements
		WHERE post_id = $1
		GROUP BY engagement_type`, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to query engagement counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		counts[social.EngagementType(typ)] = n
	}
	return counts, rows.Err()
}

// GetUserEngagementPostIDs returns post ids the user engaged with, most
// recent first, deduplicated.
func (s *PostgresStore) GetUserEngagementPostIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id FROM (
			SELECT post_id, max(seq) AS last_seq
			FROM engagements
			WHERE user_id = $1
			GROUP BY post_id
		) recent
		ORDER BY last_seq DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query user engagements: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// GetTopicCounts returns topic frequencies for recent posts, descending by
// count.
func (s *PostgresStore) GetTopicCounts(ctx context.Context, maxAge time.Duration, limit int) ([]TopicCount, error) {
	cutoff := time.Now().Add(-s.window(maxAge))
	rows, err := s.db.QueryContext(ctx, `
		SELECT topic, count(*) AS n
		FROM posts, unnest(topics) AS topic
		WHERE created_at >= $1
		GROUP BY topic
		ORDER BY n DESC, topic ASC
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query topic counts: %w", err)
	}
	defer rows.Close()

	var out []TopicCount
	for rows.Next() {
		var tc TopicCount
		if err := rows.Scan(&tc.Topic, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) window(maxAge time.Duration) time.Duration {
	if maxAge > 0 {
		return maxAge
	}
	return s.retention
}

// PostgresPreferenceStore stores per-user preference overrides as JSONB.
type PostgresPreferenceStore struct {
	db *sql.DB
}

// NewPostgresPreferenceStore wraps an open database handle.
func NewPostgresPreferenceStore(db *sql.DB) *PostgresPreferenceStore {
	return &PostgresPreferenceStore{db: db}
}

// Get returns the stored preferences for a user, or the defaults when none
// are stored.
func (s *PostgresPreferenceStore) Get(ctx context.Context, userID string) (social.AlgorithmPreferences, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT prefs FROM algorithm_preferences WHERE user_id = $1`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return social.DefaultPreferences(), nil
	}
	if err != nil {
		return social.AlgorithmPreferences{}, fmt.Errorf("failed to get preferences: %w", err)
	}
	var prefs social.AlgorithmPreferences
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return social.AlgorithmPreferences{}, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return prefs, nil
}

// Put stores preferences for a user, replacing any previous value.
func (s *PostgresPreferenceStore) Put(ctx context.Context, userID string, prefs social.AlgorithmPreferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO algorithm_preferences (user_id, prefs)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET prefs = EXCLUDED.prefs`,
		userID, raw)
	if err != nil {
		return fmt.Errorf("failed to store preferences: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*social.User, error) {
	var u social.User
	var topics, following pq.StringArray
	if err := row.Scan(&u.ID, &u.Handle, &u.DisplayName, &u.Bio, &topics,
		&u.AvatarURL, &following, &u.FollowersCount, &u.FollowingCount); err != nil {
		return nil, err
	}
	u.Topics = stringsToTopics(topics)
	u.FollowingIDs = []string(following)
	return &u, nil
}

func scanPost(row rowScanner) (*social.Post, error) {
	var p social.Post
	var topics pq.StringArray
	var parentID, quotedID sql.NullString
	var postType string
	if err := row.Scan(&p.ID, &p.AuthorID, &p.Text, &postType, &parentID, &quotedID,
		&topics, &p.CreatedAt, &p.LikeCount, &p.RepostCount, &p.ReplyCount,
		&p.QuoteCount, &p.ViewCount); err != nil {
		return nil, err
	}
	p.PostType = social.PostType(postType)
	p.ParentID = parentID.String
	p.QuotedID = quotedID.String
	p.Topics = stringsToTopics(topics)
	return &p, nil
}

func topicsToStrings(topics []social.Topic) []string {
	out := make([]string, len(topics))
	for i, t := range topics {
		out[i] = string(t)
	}
	return out
}

func stringsToTopics(ss []string) []social.Topic {
	if len(ss) == 0 {
		return nil
	}
	out := make([]social.Topic, len(ss))
	for i, s := range ss {
		out[i] = social.Topic(s)
	}
	return out
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
