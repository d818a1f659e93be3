package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/edgeflare/ragapi/pkg/llm"
	"github.com/edgeflare/ragapi/pkg/metrics"
	"github.com/edgeflare/ragapi/pkg/vectorstore"
	"go.uber.org/zap"
)

// NoContextResponse is returned, without calling the chat model, when nothing relevant is found.
const NoContextResponse = "I don't have enough relevant information to answer that question."

var ErrEmptyQuery = errors.New("rag: query is empty")

type QueryOptions struct {
	TopK int
	// MaxDistance drops matches whose cosine distance is greater.
	MaxDistance float64
}

// Service answers questions from the stored chunks.
type Service struct {
	store    vectorstore.Store
	embedder llm.Embedder
	chat     llm.ChatModel
	logger   *zap.Logger
	opts     QueryOptions
}

func NewService(store vectorstore.Store, embedder llm.Embedder, chat llm.ChatModel, opts QueryOptions, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, embedder: embedder, chat: chat, opts: opts, logger: logger}
}

// Query answers text from the chunks within MaxDistance of it. When none qualify the chat model
// is not called and NoContextResponse is returned with no sources.
func (s *Service) Query(ctx context.Context, text string) (*QueryResponse, error) {
	started := time.Now()
	outcome, retrieved := metrics.OutcomeError, 0
	defer func() {
		metrics.ObserveQuery(outcome, started, retrieved)
	}()

	text = strings.TrimSpace(text)
	if text == "" {
		outcome = metrics.OutcomeEmptyQuery
		return nil, ErrEmptyQuery
	}

	embeddings, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("expected 1 query embedding, got %d", len(embeddings))
	}

	matches, err := s.store.Search(ctx, embeddings[0], s.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to search store: %w", err)
	}

	var relevant []vectorstore.Match
	for _, m := range matches {
		if m.Distance <= s.opts.MaxDistance {
			relevant = append(relevant, m)
		}
	}
	retrieved = len(relevant)

	if len(relevant) == 0 {
		outcome = metrics.OutcomeNoContext
		s.logger.Info("no relevant context", zap.String("query", text), zap.Int("candidates", len(matches)))
		return &QueryResponse{QueryText: text, ResponseText: NoContextResponse, Sources: []string{}}, nil
	}

	passages := make([]string, len(relevant))
	sources := make([]string, 0, len(relevant))
	for i, m := range relevant {
		passages[i] = m.Content
		if m.ID != "" {
			sources = append(sources, m.ID)
		}
	}

	prompt, err := BuildPrompt(passages, text)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	answer, err := s.chat.Invoke(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to invoke chat model: %w", err)
	}

	outcome = metrics.OutcomeAnswered
	s.logger.Info("answered query", zap.String("query", text), zap.Strings("sources", sources))
	return &QueryResponse{QueryText: text, ResponseText: answer, Sources: sources}, nil
}
