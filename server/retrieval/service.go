// Package retrieval serves semantic queries over the stored decision
// vectors: embed the query, rank stored vectors by cosine distance.
package retrieval

import (
	"context"
	"strings"

	"github.com/openjuris/lexvec/internal/apperrors"
	"github.com/openjuris/lexvec/server/ai"
	"github.com/openjuris/lexvec/store"
)

// DefaultTopK is the result count used when the caller passes k == 0.
const DefaultTopK = 5

// Match is one ranked retrieval result.
type Match struct {
	UID      string  `json:"uid"`
	Content  string  `json:"content"`
	Distance float64 `json:"distance"`
}

// Service performs nearest-neighbor retrieval. Read-only.
type Service struct {
	store    *store.Store
	embedder ai.EmbeddingService
}

// NewService creates a retrieval service.
func NewService(s *store.Store, embedder ai.EmbeddingService) *Service {
	return &Service{
		store:    s,
		embedder: embedder,
	}
}

// Search embeds query and returns up to k matches ordered by ascending
// cosine distance, ties broken by row id. k == 0 means DefaultTopK;
// a negative k or a blank query is an invalid argument. An embedding
// failure aborts the search: there is no fallback ranking.
func (s *Service) Search(ctx context.Context, query string, k int) ([]*Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.InvalidArgument("query text must not be empty")
	}
	if k < 0 {
		return nil, apperrors.Newf(apperrors.ErrCodeInvalidArgument, "k must be positive, got %d", k)
	}
	if k == 0 {
		k = DefaultTopK
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		if apperrors.CodeOf(err) != "" {
			return nil, err
		}
		return nil, apperrors.EmbeddingFailed("failed to embed query", err)
	}

	results, err := s.store.SearchDecisionVectors(ctx, &store.VectorSearchOptions{
		Vector: embedding,
		Limit:  k,
	})
	if err != nil {
		return nil, apperrors.PersistenceFailed("vector search failed", err)
	}

	matches := make([]*Match, len(results))
	for i, r := range results {
		matches[i] = &Match{
			UID:      r.UID,
			Content:  r.Content,
			Distance: r.Distance,
		}
	}
	return matches, nil
}
