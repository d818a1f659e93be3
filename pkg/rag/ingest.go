package rag

import (
	"cmp"
	"context"
	"fmt"

	"github.com/edgeflare/ragapi/pkg/llm"
	"github.com/edgeflare/ragapi/pkg/metrics"
	"github.com/edgeflare/ragapi/pkg/vectorstore"
	"go.uber.org/zap"
)

const defaultBatchSize = 64

// Ingester loads the PDF corpus into a vector store.
type Ingester struct {
	store      vectorstore.Store
	embedder   llm.Embedder
	splitter   *Splitter
	logger     *zap.Logger
	load       func(dir string) ([]Document, error)
	sourceDir  string
	sourceName string
	batchSize  int
}

type IngesterOptions struct {
	SourceDir    string
	// SourceName replaces SourceDir in document sources, e.g. the s3:// URI the directory
	// was downloaded from. Empty keeps the local paths.
	SourceName   string
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int // texts per embedding call
}

func NewIngester(store vectorstore.Store, embedder llm.Embedder, opts IngesterOptions, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{
		store:      store,
		embedder:   embedder,
		splitter:   NewSplitter(opts.ChunkSize, opts.ChunkOverlap),
		logger:     logger,
		load:       LoadPDFDirectory,
		sourceDir:  opts.SourceDir,
		sourceName: opts.SourceName,
		batchSize:  cmp.Or(opts.BatchSize, defaultBatchSize),
	}
}

// Populate adds chunks that are not yet in the store. With reset, the store is cleared first.
// Re-running on an unchanged corpus adds nothing.
func (in *Ingester) Populate(ctx context.Context, reset bool) (*PopulateResult, error) {
	if reset {
		in.logger.Info("clearing database")
		if err := in.store.Reset(ctx); err != nil {
			return nil, fmt.Errorf("failed to reset store: %w", err)
		}
	}

	in.logger.Info("loading documents", zap.String("source", in.sourceDir))
	docs, err := in.load(in.sourceDir)
	if err != nil {
		return nil, err
	}
	if in.sourceName != "" {
		if err := rebaseSources(docs, in.sourceDir, in.sourceName); err != nil {
			return nil, err
		}
	}

	chunks, err := in.splitter.SplitDocuments(docs)
	if err != nil {
		return nil, err
	}
	AssignChunkIDs(chunks)
	for _, c := range chunks {
		in.logger.Debug("chunk", zap.String("id", c.ID), zap.String("content", c.Content))
	}

	result := &PopulateResult{Loaded: len(docs), Chunks: len(chunks)}

	result.Existing, err = in.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	in.logger.Info("existing documents in store", zap.Int("count", result.Existing))

	newChunks, err := in.filterNew(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if len(newChunks) == 0 {
		in.logger.Info("no new documents to add")
		return result, nil
	}

	in.logger.Info("adding new documents", zap.Int("count", len(newChunks)))
	for start := 0; start < len(newChunks); start += in.batchSize {
		batch := newChunks[start:min(start+in.batchSize, len(newChunks))]
		if err := in.addBatch(ctx, batch); err != nil {
			return result, err
		}
		result.Added += len(batch)
		metrics.IngestedChunks.Add(float64(len(batch)))
	}
	return result, nil
}

func (in *Ingester) filterNew(ctx context.Context, chunks []Chunk) ([]Chunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	existing, err := in.store.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing ids: %w", err)
	}

	var fresh []Chunk
	for _, c := range chunks {
		if _, ok := existing[c.ID]; !ok {
			fresh = append(fresh, c)
		}
	}
	return fresh, nil
}

func (in *Ingester) addBatch(ctx context.Context, batch []Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}
	embeddings, err := in.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("mismatch between chunks and embeddings length: %d vs %d", len(batch), len(embeddings))
	}

	records := make([]vectorstore.Record, len(batch))
	for i, c := range batch {
		records[i] = vectorstore.Record{
			ID:        c.ID,
			Content:   c.Content,
			Source:    c.Source,
			Page:      c.Page,
			Embedding: embeddings[i],
		}
	}
	if err := in.store.Add(ctx, records); err != nil {
		return fmt.Errorf("failed to add chunks: %w", err)
	}
	return nil
}
