package ai

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/openjuris/lexvec/internal/apperrors"
)

// Config holds the embedding provider configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	MaxRetries int
	Timeout    time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.openai.com/v1",
		Model:      "text-embedding-3-small",
		Dimensions: 768,
		MaxRetries: 3,
		Timeout:    30 * time.Second,
	}
}

// Provider generates embeddings through any OpenAI-compatible API.
type Provider struct {
	client *openai.Client
	config *Config
}

// NewProvider creates a new embedding provider.
func NewProvider(cfg *Config) *Provider {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 768
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Provider{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

// Dimensions returns the configured vector dimension.
func (p *Provider) Dimensions() int {
	return p.config.Dimensions
}

// Embed generates an embedding vector for the given text. A response whose
// length differs from the configured dimension is an error: a vector of the
// wrong length must never reach the store.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	var result []float32
	err := p.doWithRetry(ctx, func() error {
		req := openai.EmbeddingRequest{
			Input:      []string{text},
			Model:      openai.EmbeddingModel(p.config.Model),
			Dimensions: p.config.Dimensions,
		}

		resp, err := p.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return apperrors.New(apperrors.ErrCodeEmbeddingFailed, "empty embedding response")
		}
		result = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, apperrors.EmbeddingFailed("failed to generate embedding", err)
	}

	if len(result) != p.config.Dimensions {
		return nil, apperrors.Newf(apperrors.ErrCodeEmbeddingFailed,
			"embedding has dimension %d, expected %d", len(result), p.config.Dimensions)
	}
	return result, nil
}

// doWithRetry executes fn with exponential backoff.
func (p *Provider) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			if attempt < p.config.MaxRetries-1 {
				waitTime := time.Duration(math.Pow(2, float64(attempt))) * time.Second
				slog.Debug("embedding request failed, retrying",
					"attempt", attempt+1,
					"wait_time", waitTime,
					"error", err)
				select {
				case <-time.After(waitTime):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}
