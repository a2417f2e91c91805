// Package ai provides the embedding boundary: text in, fixed-length vector out.
package ai

import "context"

// EmbeddingService turns text into a fixed-dimension vector.
type EmbeddingService interface {
	// Embed generates an embedding for the given text. The returned vector
	// always has exactly Dimensions() elements, or an error is returned.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions returns the fixed vector dimension.
	Dimensions() int
}
