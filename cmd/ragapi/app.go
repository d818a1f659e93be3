package ragapi

import (
	"context"
	"fmt"

	"github.com/edgeflare/ragapi/pkg/config"
	"github.com/edgeflare/ragapi/pkg/llm"
	"github.com/edgeflare/ragapi/pkg/rag"
	"github.com/edgeflare/ragapi/pkg/vectorstore"
	"go.uber.org/zap"
)

// app holds the components shared by the subcommands, built once per process.
type app struct {
	store    vectorstore.Store
	embedder llm.Embedder
	chat     llm.ChatModel
}

// newApp is replaced in tests.
var newApp = openApp

func openApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	store, err := vectorstore.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	embedder, chat, err := llm.New(ctx, cfg, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to init model provider: %w", err)
	}

	return &app{store: store, embedder: embedder, chat: chat}, nil
}

func (a *app) queryService(cfg *config.Config, logger *zap.Logger) *rag.Service {
	return rag.NewService(a.store, a.embedder, a.chat, rag.QueryOptions{
		TopK:        cfg.RAG.TopK,
		MaxDistance: cfg.RAG.MaxDistance,
	}, logger)
}

func (a *app) Close() error {
	return a.store.Close()
}
