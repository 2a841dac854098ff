package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/onnwee/foryou/internal/social"
)

// ExternalSource is an optional pluggable content source feeding synthetic
// out-of-network candidates into the pipeline. Implementations degrade to an
// empty list on any failure; Fetch never blocks beyond its bounded timeout
// and never returns an error.
type ExternalSource interface {
	// Available reports whether the source is configured and usable.
	Available() bool

	// Fetch returns up to limit candidates, or an empty list on failure.
	Fetch(ctx context.Context, limit int) []*Candidate
}

// NewsAuthorID is the synthetic author id for external news candidates.
const NewsAuthorID = "news_api"

const (
	defaultNewsBaseURL = "https://newsapi.org"
	defaultNewsTimeout = 10 * time.Second
	newsTextMaxLen     = 280
)

// newsCategoryTopics maps NewsAPI categories onto feed topics.
var newsCategoryTopics = map[string]social.Topic{
	"business":      social.TopicFinance,
	"entertainment": social.TopicCulture,
	"general":       social.TopicNews,
	"health":        social.TopicOther,
	"science":       social.TopicTech,
	"sports":        social.TopicCulture,
	"technology":    social.TopicTech,
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NewsConfig configures the NewsAPI source.
type NewsConfig struct {
	// APIKey enables the source; an empty key makes it unavailable.
	APIKey string

	// Category is a NewsAPI category (technology, business, ...). Unknown
	// categories are omitted from the request.
	Category string

	// Country is a two-letter country code for top headlines.
	Country string

	// BaseURL overrides the NewsAPI endpoint. Used by tests.
	BaseURL string

	// Timeout bounds the headline fetch. Defaults to 10s.
	Timeout time.Duration
}

// NewsSource fetches top headlines from NewsAPI and converts them into
// synthetic out-of-network candidates. Missing credentials, network errors,
// and malformed payloads all degrade to an empty contribution.
type NewsSource struct {
	cfg    NewsConfig
	client *http.Client
	now    func() time.Time
}

// NewNewsSource creates a NewsAPI-backed external source.
func NewNewsSource(cfg NewsConfig) *NewsSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultNewsBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultNewsTimeout
	}
	return &NewsSource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
}

// Available reports whether an API key is configured.
func (s *NewsSource) Available() bool {
	return strings.TrimSpace(s.cfg.APIKey) != ""
}

type newsArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
}

type newsResponse struct {
	Articles []newsArticle `json:"articles"`
}

// Fetch returns up to limit headline candidates tagged out_of_network.
func (s *NewsSource) Fetch(ctx context.Context, limit int) []*Candidate {
	if !s.Available() || limit <= 0 {
		return nil
	}
	pageSize := limit
	if pageSize > 100 {
		pageSize = 100
	}

	params := url.Values{}
	params.Set("apiKey", strings.TrimSpace(s.cfg.APIKey))
	params.Set("pageSize", fmt.Sprint(pageSize))
	country := strings.ToLower(strings.TrimSpace(s.cfg.Country))
	if len(country) == 2 {
		params.Set("country", country)
	}
	category := strings.ToLower(strings.TrimSpace(s.cfg.Category))
	if _, ok := newsCategoryTopics[category]; ok {
		params.Set("category", category)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.cfg.BaseURL+"/v2/top-headlines?"+params.Encode(), nil)
	if err != nil {
		slog.Warn("news source request build failed", "error", err)
		return nil
	}
	resp, err := s.client.Do(req)
	if err != nil {
		slog.Warn("news source fetch failed", "error", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slog.Warn("news source returned non-OK status", "status", resp.StatusCode)
		return nil
	}

	var payload newsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		slog.Warn("news source payload decode failed", "error", err)
		return nil
	}

	now := s.now()
	topic := social.TopicNews
	if t, ok := newsCategoryTopics[category]; ok {
		topic = t
	}

	out := make([]*Candidate, 0, limit)
	for i, a := range payload.Articles {
		if len(out) >= limit {
			break
		}
		title := strings.TrimSpace(a.Title)
		if title == "" {
			continue
		}
		text := title
		if desc := strings.TrimSpace(a.Description); desc != "" {
			text = title + " " + desc
		}
		text = sanitizeText(text, newsTextMaxLen)

		createdAt := now.Add(-time.Duration(i) * time.Minute)
		if a.PublishedAt != "" {
			if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
				createdAt = t
			}
		}

		sourceName := a.Source.Name
		if sourceName == "" {
			sourceName = "News"
		}
		author := &social.User{
			ID:          NewsAuthorID,
			Handle:      NewsAuthorID,
			DisplayName: sourceName,
			Bio:         "Headlines from News API",
			Topics:      []social.Topic{topic},
		}
		post := &social.Post{
			ID:        fmt.Sprintf("news_%d_%d", createdAt.Unix(), i),
			AuthorID:  NewsAuthorID,
			Text:      text,
			PostType:  social.PostTypeOriginal,
			Topics:    []social.Topic{topic},
			CreatedAt: createdAt,
		}
		counts := make(map[social.EngagementType]int, len(social.EngagementTypes))
		for _, t := range social.EngagementTypes {
			counts[t] = 0
		}
		out = append(out, &Candidate{
			Post:             post,
			Author:           author,
			Source:           SourceOutOfNetwork,
			EngagementCounts: counts,
		})
	}
	return out
}

// sanitizeText collapses whitespace runs and caps the text length,
// appending an ellipsis when truncated.
func sanitizeText(s string, maxLen int) string {
	t := whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
	runes := []rune(t)
	if len(runes) > maxLen {
		t = string(runes[:maxLen-3]) + "..."
	}
	return t
}
