// Package llm provides embedding and chat model clients for the configured provider.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/edgeflare/ragapi/pkg/config"
	"github.com/edgeflare/ragapi/pkg/metrics"
	"go.uber.org/zap"
)

var (
	ErrUnknownProvider = errors.New("llm: unknown provider")
	ErrEmptyResponse   = errors.New("llm: empty response")
	ErrEmptyInput      = errors.New("llm: input is empty")
)

// Embedder turns texts into embedding vectors, one per input text and in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatModel answers a single-turn prompt.
type ChatModel interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// New builds the embedder and chat model for cfg.Provider. The embedder is cached when
// provider.embeddingCacheTTL > 0 and the chat model is guarded by a circuit breaker when
// provider.breaker.enabled is set.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Embedder, ChatModel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := cfg.Provider
	logger = logger.With(zap.String("provider", p.Name))

	var (
		embedder Embedder
		chat     ChatModel
	)
	switch p.Name {
	case config.ProviderBedrock:
		b, err := NewBedrockFromConfig(ctx, p.Region, BedrockOptions{
			EmbeddingModel: p.EmbeddingModel,
			ChatModel:      p.ChatModel,
			Dimensions:     cfg.Store.Dimensions,
			MaxTokens:      p.MaxTokens,
			Temperature:    p.Temperature,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		embedder, chat = b, b
	case config.ProviderOpenAI:
		o := NewOpenAI(OpenAIOptions{
			APIURL:         p.APIURL,
			APIKey:         p.APIKey,
			EmbeddingModel: p.EmbeddingModel,
			ChatModel:      p.ChatModel,
			Dimensions:     cfg.Store.Dimensions,
			MaxTokens:      p.MaxTokens,
			Temperature:    p.Temperature,
		})
		embedder, chat = o, o
	case config.ProviderOllama:
		o := NewOllama(OllamaOptions{
			APIURL:         p.APIURL,
			APIKey:         p.APIKey,
			EmbeddingModel: p.EmbeddingModel,
			ChatModel:      p.ChatModel,
			MaxTokens:      p.MaxTokens,
			Temperature:    p.Temperature,
		}, logger)
		embedder, chat = o, o
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p.Name)
	}

	embedder = instrumentedEmbedder{next: embedder}
	chat = instrumentedChat{next: chat}

	if p.EmbeddingCacheTTL > 0 {
		embedder = NewCachedEmbedder(embedder, p.EmbeddingCacheTTL, p.EmbeddingCacheSize)
	}
	if p.Breaker.Enabled {
		chat = NewBreakerChatModel(chat, p.Breaker, logger)
	}

	logger.Info("model provider ready",
		zap.String("embedding_model", p.EmbeddingModel),
		zap.String("chat_model", p.ChatModel),
	)
	return embedder, chat, nil
}

// instrumentedEmbedder and instrumentedChat count provider failures by operation.
type instrumentedEmbedder struct{ next Embedder }

func (e instrumentedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := e.next.Embed(ctx, texts)
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("embed").Inc()
	}
	return out, err
}

type instrumentedChat struct{ next ChatModel }

func (c instrumentedChat) Invoke(ctx context.Context, prompt string) (string, error) {
	out, err := c.next.Invoke(ctx, prompt)
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("chat").Inc()
	}
	return out, err
}
