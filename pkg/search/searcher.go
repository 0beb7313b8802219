// pkg/search/searcher.go
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/tenderops/tender-ingress/pkg/embed"
	"github.com/tenderops/tender-ingress/pkg/model"
	"github.com/tenderops/tender-ingress/pkg/store"
)

// ErrEmptyQuery indicates a search request with no query text.
var ErrEmptyQuery = errors.New("search query cannot be empty")

// ErrInvalidLimit indicates a search limit outside the allowed range.
var ErrInvalidLimit = errors.New("search limit out of range")

// Searcher embeds free-text queries and ranks cleaned tenders by cosine
// similarity to them.
type Searcher struct {
	store        store.Store
	embedder     *embed.Embedder
	defaultLimit int
	maxLimit     int
	logger       *zap.Logger
}

// NewSearcher creates a searcher over the given store and embedder.
func NewSearcher(st store.Store, embedder *embed.Embedder, defaultLimit, maxLimit int) (*Searcher, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if defaultLimit <= 0 || maxLimit < defaultLimit {
		return nil, fmt.Errorf("invalid limits: default %d, max %d", defaultLimit, maxLimit)
	}
	return &Searcher{
		store:        st,
		embedder:     embedder,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		logger:       zap.L().Named("search"),
	}, nil
}

// Search embeds the query and returns the closest tenders. A zero limit
// falls back to the default; negative or oversized limits are rejected.
// Similarities are rounded to three decimals.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]model.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	if limit == 0 {
		limit = s.defaultLimit
	}
	if limit < 0 || limit > s.maxLimit {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrInvalidLimit, limit, s.maxLimit)
	}

	vec := s.embedder.Embed(query)

	hits, err := s.store.SearchByEmbedding(ctx, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	for i := range hits {
		hits[i].Similarity = roundSimilarity(hits[i].Similarity)
	}

	s.logger.Debug("Search complete",
		zap.String("query", query),
		zap.Int("limit", limit),
		zap.Int("hits", len(hits)))
	return hits, nil
}

func roundSimilarity(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*1000) / 1000
}
