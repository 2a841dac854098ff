// Package trends surfaces trending topics over the recent post window. It is
// peripheral to the ranking pipeline and reads the same store.
package trends

import (
	"context"
	"fmt"
	"time"

	"github.com/onnwee/foryou/internal/store"
)

// DefaultWindow is the lookback window for trending topics.
const DefaultWindow = 24 * time.Hour

// DefaultLimit caps the number of returned topics.
const DefaultLimit = 20

// Service computes trending topics.
type Service struct {
	store  store.Store
	window time.Duration
}

// NewService creates a trends service. A non-positive window uses
// DefaultWindow.
func NewService(st store.Store, window time.Duration) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Service{store: st, window: window}
}

// Trending returns up to limit (topic, count) pairs for recent posts,
// descending by count.
func (s *Service) Trending(ctx context.Context, limit int) ([]store.TopicCount, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	counts, err := s.store.GetTopicCounts(ctx, s.window, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load topic counts: %w", err)
	}
	return counts, nil
}
